// 顧客サービスのエントリポイント。
// 顧客と連絡先のCRUDを管理する。
package main

import (
	"log"

	"github.com/nao1215/crmhub/internal/customer"
	"github.com/nao1215/crmhub/pkg/config"
)

func main() {
	cfg, err := config.Load[config.Customer]()
	if err != nil {
		log.Fatalf("顧客サービス設定の読み込みに失敗: %v", err)
	}

	server, err := customer.NewServer(cfg)
	if err != nil {
		log.Fatalf("顧客サーバーの初期化に失敗: %v", err)
	}

	log.Printf("顧客サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("顧客サービスの起動に失敗: %v", err)
	}
}
