package customer

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// initSchema は顧客テーブルと連絡先テーブルを作成する。
func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	);
	CREATE INDEX IF NOT EXISTS idx_contacts_customer_id ON contacts(customer_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの初期化に失敗しました: %w", err)
	}
	return nil
}
