package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nao1215/crmhub/internal/fanout"
)

// ErrTaskNotFound はタスクが存在しないことを表すエラー。
var ErrTaskNotFound = errors.New("タスクが見つかりません")

// Task はタスクテーブルの1行を表す。
type Task struct {
	// ID はタスクの一意識別子（UUID）。
	ID string `db:"id"`
	// Title はタスクのタイトル。
	Title string `db:"title"`
	// Description はタスクの詳細説明。
	Description string `db:"description"`
	// Status はタスクの状態。
	Status string `db:"status"`
	// AssignedTo は担当者のユーザーID。
	AssignedTo string `db:"assigned_to"`
	// CreatedBy は作成者のユーザーID。
	CreatedBy string `db:"created_by"`
	// CustomerID は関連する顧客のID。未設定の場合は空文字列。
	CustomerID string `db:"customer_id"`
	// DealID は関連する商談のID。未設定の場合は空文字列。
	DealID string `db:"deal_id"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `db:"updated_at"`
}

// snapshot はファンアウトエンジンに渡すタスクのスナップショットを返す。
func (t Task) snapshot() *fanout.Task {
	return &fanout.Task{
		ID:         t.ID,
		Title:      t.Title,
		Status:     fanout.Status(t.Status),
		AssignedTo: t.AssignedTo,
		CreatedBy:  t.CreatedBy,
		CustomerID: t.CustomerID,
		DealID:     t.DealID,
	}
}

// Store はタスクテーブルへのアクセスを提供する。
type Store struct {
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// selectColumns はタスク取得クエリで共通するSELECT句。
const selectColumns = `
	SELECT id, title, description, status, assigned_to, created_by,
	       customer_id, deal_id, created_at, updated_at
	FROM tasks`

// Insert はタスクを1件挿入する。
func (s *Store) Insert(ctx context.Context, t Task) error {
	const query = `
		INSERT INTO tasks (id, title, description, status, assigned_to, created_by,
		                   customer_id, deal_id, created_at, updated_at)
		VALUES (:id, :title, :description, :status, :assigned_to, :created_by,
		        :customer_id, :deal_id, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("タスクの挿入に失敗: %w", err)
	}
	return nil
}

// GetByID は指定IDのタスクを返す。存在しない場合はErrTaskNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, id string) (Task, error) {
	var t Task
	if err := s.db.GetContext(ctx, &t, selectColumns+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrTaskNotFound
		}
		return Task{}, fmt.Errorf("タスクの取得に失敗: %w", err)
	}
	return t, nil
}

// List は全タスクを作成日時の新しい順に返す。
// assignedToが空でない場合は担当者で絞り込む。
func (s *Store) List(ctx context.Context, assignedTo string) ([]Task, error) {
	tasks := []Task{}
	if assignedTo != "" {
		if err := s.db.SelectContext(ctx, &tasks,
			selectColumns+` WHERE assigned_to = ? ORDER BY created_at DESC, id`, assignedTo); err != nil {
			return nil, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
		}
		return tasks, nil
	}
	if err := s.db.SelectContext(ctx, &tasks, selectColumns+` ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}
	return tasks, nil
}

// Update はタスクの全フィールドを更新する。対象が存在しない場合はErrTaskNotFoundを返す。
func (s *Store) Update(ctx context.Context, t Task) error {
	const query = `
		UPDATE tasks
		SET title = :title, description = :description, status = :status,
		    assigned_to = :assigned_to, customer_id = :customer_id, deal_id = :deal_id,
		    updated_at = :updated_at
		WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, query, t)
	if err != nil {
		return fmt.Errorf("タスクの更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新行数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Delete は指定IDのタスクを削除する。対象が存在しない場合はErrTaskNotFoundを返す。
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除行数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
