package report

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// TaskReadModel はタスクの投影結果を表す。
type TaskReadModel struct {
	ID         string    `db:"id"`
	Title      string    `db:"title"`
	Status     string    `db:"status"`
	AssignedTo string    `db:"assigned_to"`
	CreatedBy  string    `db:"created_by"`
	Deleted    bool      `db:"deleted"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Activity はタスク変更の活動記録を表す。
// EventIDを主キーとすることで同じイベントの二重投影を防ぐ。
type Activity struct {
	EventID    string    `db:"event_id"`
	TaskID     string    `db:"task_id"`
	ActorUID   string    `db:"actor_uid"`
	Action     string    `db:"action"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
}

// StatusSummary はステータス別のタスク件数を表す。
type StatusSummary struct {
	// Todo は未着手のタスク件数。
	Todo int64 `json:"todo"`
	// InProgress は進行中のタスク件数。
	InProgress int64 `json:"in_progress"`
	// Done は完了済みのタスク件数。
	Done int64 `json:"done"`
	// Total は削除されていない全タスク件数。
	Total int64 `json:"total"`
}

// Store はRead Modelの永続化を担当する。
type Store struct {
	db *sqlx.DB
}

// NewStore はStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// UpsertTask はタスクのRead Modelを挿入または更新する。
func (s *Store) UpsertTask(ctx context.Context, t TaskReadModel) error {
	query := `INSERT INTO task_read_models (id, title, status, assigned_to, created_by, deleted, updated_at)
	          VALUES (:id, :title, :status, :assigned_to, :created_by, :deleted, :updated_at)
	          ON CONFLICT(id) DO UPDATE SET
	              title = excluded.title,
	              status = excluded.status,
	              assigned_to = excluded.assigned_to,
	              created_by = excluded.created_by,
	              deleted = excluded.deleted,
	              updated_at = excluded.updated_at`
	if _, err := s.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("Read Modelの更新に失敗しました: %w", err)
	}
	return nil
}

// GetTask はIDでRead Modelを取得する。存在しない場合はsql.ErrNoRowsを包んだエラーを返す。
func (s *Store) GetTask(ctx context.Context, id string) (TaskReadModel, error) {
	var t TaskReadModel
	if err := s.db.GetContext(ctx, &t, `SELECT * FROM task_read_models WHERE id = ?`, id); err != nil {
		return TaskReadModel{}, fmt.Errorf("Read Modelの取得に失敗しました: %w", err)
	}
	return t, nil
}

// UpdateTaskStatus はタスクのステータスを更新する。
// Read Modelに存在しないタスクは無視する（イベントの取りこぼしに対する縮退動作）。
func (s *Store) UpdateTaskStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_read_models SET status = ?, updated_at = ? WHERE id = ?`, status, at, id)
	if err != nil {
		return fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateTaskAssignee はタスクの担当者を更新する。
func (s *Store) UpdateTaskAssignee(ctx context.Context, id, assignedTo string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_read_models SET assigned_to = ?, updated_at = ? WHERE id = ?`, assignedTo, at, id)
	if err != nil {
		return fmt.Errorf("担当者の更新に失敗しました: %w", err)
	}
	return nil
}

// MarkTaskDeleted はタスクを削除済みとして記録する。
func (s *Store) MarkTaskDeleted(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_read_models SET deleted = 1, updated_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("削除フラグの更新に失敗しました: %w", err)
	}
	return nil
}

// InsertActivity は活動記録を挿入する。同じイベントIDの記録は無視される。
func (s *Store) InsertActivity(ctx context.Context, a Activity) error {
	query := `INSERT OR IGNORE INTO activities (event_id, task_id, actor_uid, action, detail, occurred_at)
	          VALUES (:event_id, :task_id, :actor_uid, :action, :detail, :occurred_at)`
	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("活動記録の挿入に失敗しました: %w", err)
	}
	return nil
}

// ListActivities は活動記録を新しい順に最大limit件返す。
func (s *Store) ListActivities(ctx context.Context, limit int) ([]Activity, error) {
	activities := []Activity{}
	err := s.db.SelectContext(ctx, &activities,
		`SELECT * FROM activities ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("活動記録の取得に失敗しました: %w", err)
	}
	return activities, nil
}

// Summarize は削除されていないタスクのステータス別件数を集計する。
func (s *Store) Summarize(ctx context.Context) (StatusSummary, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int64  `db:"count"`
	}{}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT status, COUNT(*) AS count FROM task_read_models WHERE deleted = 0 GROUP BY status`)
	if err != nil {
		return StatusSummary{}, fmt.Errorf("集計に失敗しました: %w", err)
	}

	var summary StatusSummary
	for _, r := range rows {
		switch r.Status {
		case "todo":
			summary.Todo = r.Count
		case "in_progress":
			summary.InProgress = r.Count
		case "done":
			summary.Done = r.Count
		}
		summary.Total += r.Count
	}
	return summary, nil
}

// DeleteAll はRead Modelの全データを削除する。再構築の前処理として使用する。
func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM task_read_models`); err != nil {
		return fmt.Errorf("Read Modelの全削除に失敗しました: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activities`); err != nil {
		return fmt.Errorf("活動記録の全削除に失敗しました: %w", err)
	}
	return nil
}
