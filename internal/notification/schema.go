package notification

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS notifications (
    -- 通知の一意識別子（UUID）
    id TEXT PRIMARY KEY,
    -- 通知先のユーザーID
    recipient_uid TEXT NOT NULL,
    -- 通知メッセージ本文
    message TEXT NOT NULL,
    -- 通知の発生元タスクID
    related_task_id TEXT NOT NULL,
    -- 通知の既読状態
    is_read INTEGER NOT NULL DEFAULT 0,
    -- 通知の作成日時
    created_at DATETIME NOT NULL
);

-- ユーザーIDでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_notifications_recipient
    ON notifications(recipient_uid);

-- 未読通知の検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_notifications_unread
    ON notifications(recipient_uid, is_read) WHERE is_read = 0;

-- タスクIDとメッセージ本文による重複チェックを高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_notifications_task_message
    ON notifications(related_task_id, message);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
