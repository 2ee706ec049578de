package sales

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// initSchema は商談テーブルを作成する。
func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		stage TEXT NOT NULL DEFAULT 'prospect',
		amount INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deals_customer_id ON deals(customer_id);
	CREATE INDEX IF NOT EXISTS idx_deals_stage ON deals(stage);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの初期化に失敗しました: %w", err)
	}
	return nil
}
