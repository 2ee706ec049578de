package gateway

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// initSchema はユーザーテーブルを作成する。
func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		display_name TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		last_login_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの初期化に失敗しました: %w", err)
	}
	return nil
}
