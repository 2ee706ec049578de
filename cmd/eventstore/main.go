// Event Storeサービスのエントリポイント。
// 全サービスのイベントを永続化する追記専用ストア。
// タスク変更の監査証跡とレポートサービスの投影元として機能する。
package main

import (
	"log"

	"github.com/nao1215/crmhub/internal/eventstore"
	"github.com/nao1215/crmhub/pkg/config"
)

func main() {
	cfg, err := config.Load[config.EventStore]()
	if err != nil {
		log.Fatalf("Event Store設定の読み込みに失敗: %v", err)
	}

	server, err := eventstore.NewServer(cfg)
	if err != nil {
		log.Fatalf("Event Storeサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Event Storeサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("Event Storeサービスの起動に失敗: %v", err)
	}
}
