package task

import (
	"embed"

	"github.com/jmoiron/sqlx"

	"github.com/nao1215/crmhub/pkg/migration"
)

//go:embed migrations
var migrationsFS embed.FS

// initSchema はマイグレーションを実行してタスクテーブルのスキーマを適用する。
func initSchema(db *sqlx.DB) error {
	_, err := migration.Run(db.DB, migrationsFS, "migrations")
	return err
}
