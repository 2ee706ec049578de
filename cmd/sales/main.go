// 商談サービスのエントリポイント。
// 商談のCRUDとステージ遷移を管理する。
package main

import (
	"log"

	"github.com/nao1215/crmhub/internal/sales"
	"github.com/nao1215/crmhub/pkg/config"
)

func main() {
	cfg, err := config.Load[config.Sales]()
	if err != nil {
		log.Fatalf("商談サービス設定の読み込みに失敗: %v", err)
	}

	server, err := sales.NewServer(cfg)
	if err != nil {
		log.Fatalf("商談サーバーの初期化に失敗: %v", err)
	}

	log.Printf("商談サービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("商談サービスの起動に失敗: %v", err)
	}
}
