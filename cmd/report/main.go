// レポートサービスのエントリポイント。
// Event Storeをポーリングしてタスクの集計と活動フィードのRead Modelを構築する。
package main

import (
	"log"

	"github.com/nao1215/crmhub/internal/report"
	"github.com/nao1215/crmhub/pkg/config"
)

func main() {
	cfg, err := config.Load[config.Report]()
	if err != nil {
		log.Fatalf("レポートサービス設定の読み込みに失敗: %v", err)
	}

	server, err := report.NewServer(cfg)
	if err != nil {
		log.Fatalf("レポートサーバーの初期化に失敗: %v", err)
	}

	log.Printf("レポートサービスを起動します: :%s", cfg.Port)
	if err := server.Run(); err != nil {
		log.Fatalf("レポートサービスの起動に失敗: %v", err)
	}
}
