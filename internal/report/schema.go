package report

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// initSchema はRead Modelのテーブルを作成する。
func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS task_read_models (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		status TEXT NOT NULL,
		assigned_to TEXT NOT NULL,
		created_by TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_task_read_models_status ON task_read_models(status);

	CREATE TABLE IF NOT EXISTS activities (
		event_id TEXT PRIMARY KEY,
		task_id TEXT NOT NULL,
		actor_uid TEXT NOT NULL,
		action TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activities_occurred_at ON activities(occurred_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの初期化に失敗しました: %w", err)
	}
	return nil
}
