// タスクサービスのエントリポイント。
// タスクのCRUDと、変更確定後の通知ファンアウトを担当する。
// 通知文面の作成に必要な表示名・顧客名・商談名は各サービスへのHTTP呼び出しで解決する。
package main

import (
	"log"

	"github.com/nao1215/crmhub/internal/task"
	"github.com/nao1215/crmhub/pkg/config"
)

func main() {
	cfg, err := config.Load[config.Task]()
	if err != nil {
		log.Fatalf("タスクサービス設定の読み込みに失敗: %v", err)
	}

	server, err := task.NewServer(cfg)
	if err != nil {
		log.Fatalf("タスクサーバーの初期化に失敗: %v", err)
	}

	log.Printf("タスクサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("タスクサービスの起動に失敗: %v", err)
	}
}
