package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound は通知が存在しないことを表すエラー。
var ErrNotFound = errors.New("通知が見つかりません")

// Notification は通知テーブルの1行を表す。
type Notification struct {
	// ID は通知の一意識別子（UUID）。
	ID string `db:"id"`
	// RecipientUID は通知先のユーザーID。
	RecipientUID string `db:"recipient_uid"`
	// Message は通知メッセージ本文。
	Message string `db:"message"`
	// RelatedTaskID は通知の発生元タスクID。
	RelatedTaskID string `db:"related_task_id"`
	// IsRead は通知の既読状態。
	IsRead bool `db:"is_read"`
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time `db:"created_at"`
}

// Store は通知テーブルへのアクセスを提供する。
type Store struct {
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Insert は通知を1件挿入する。
func (s *Store) Insert(ctx context.Context, n Notification) error {
	const query = `
		INSERT INTO notifications (id, recipient_uid, message, related_task_id, is_read, created_at)
		VALUES (:id, :recipient_uid, :message, :related_task_id, :is_read, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("通知の挿入に失敗: %w", err)
	}
	return nil
}

// FindByTaskAndMessage はタスクIDとメッセージ本文が一致する通知を1件返す。
// 重複排除のための検索に使用する。存在しない場合はErrNotFoundを返す。
func (s *Store) FindByTaskAndMessage(ctx context.Context, taskID, message string) (Notification, error) {
	const query = `
		SELECT id, recipient_uid, message, related_task_id, is_read, created_at
		FROM notifications
		WHERE related_task_id = ? AND message = ?
		LIMIT 1`
	var n Notification
	if err := s.db.GetContext(ctx, &n, query, taskID, message); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("通知の検索に失敗: %w", err)
	}
	return n, nil
}

// GetByID は指定IDの通知を返す。存在しない場合はErrNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, id string) (Notification, error) {
	const query = `
		SELECT id, recipient_uid, message, related_task_id, is_read, created_at
		FROM notifications
		WHERE id = ?`
	var n Notification
	if err := s.db.GetContext(ctx, &n, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, fmt.Errorf("通知の取得に失敗: %w", err)
	}
	return n, nil
}

// ListByRecipient は指定ユーザーの通知一覧を新しい順に返す。
func (s *Store) ListByRecipient(ctx context.Context, recipientUID string) ([]Notification, error) {
	const query = `
		SELECT id, recipient_uid, message, related_task_id, is_read, created_at
		FROM notifications
		WHERE recipient_uid = ?
		ORDER BY created_at DESC, id`
	notifications := []Notification{}
	if err := s.db.SelectContext(ctx, &notifications, query, recipientUID); err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	return notifications, nil
}

// ListUnread は指定ユーザーの未読通知一覧を新しい順に返す。
func (s *Store) ListUnread(ctx context.Context, recipientUID string) ([]Notification, error) {
	const query = `
		SELECT id, recipient_uid, message, related_task_id, is_read, created_at
		FROM notifications
		WHERE recipient_uid = ? AND is_read = 0
		ORDER BY created_at DESC, id`
	notifications := []Notification{}
	if err := s.db.SelectContext(ctx, &notifications, query, recipientUID); err != nil {
		return nil, fmt.Errorf("未読通知一覧の取得に失敗: %w", err)
	}
	return notifications, nil
}

// MarkRead は指定IDの通知を既読にする。
func (s *Store) MarkRead(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("通知の既読化に失敗: %w", err)
	}
	return nil
}

// MarkAllRead は指定ユーザーの全通知を既読にする。
func (s *Store) MarkAllRead(ctx context.Context, recipientUID string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE recipient_uid = ?`, recipientUID); err != nil {
		return fmt.Errorf("全通知の既読化に失敗: %w", err)
	}
	return nil
}
