// 通知サービスのエントリポイント。
// タスク変更通知の保存と、ユーザーごとの通知一覧・既読管理を担当する。
package main

import (
	"log"

	"github.com/nao1215/crmhub/internal/notification"
	"github.com/nao1215/crmhub/pkg/config"
)

func main() {
	cfg, err := config.Load[config.Notification]()
	if err != nil {
		log.Fatalf("通知サービス設定の読み込みに失敗: %v", err)
	}

	server, err := notification.NewServer(cfg)
	if err != nil {
		log.Fatalf("通知サーバーの初期化に失敗: %v", err)
	}

	log.Printf("通知サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}
