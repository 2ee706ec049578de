package fanout

// Status はタスクの進行状態を表す。
type Status string

const (
	// StatusTodo は未着手のタスクを表す。タスク作成時の初期値。
	StatusTodo Status = "todo"
	// StatusInProgress は進行中のタスクを表す。
	StatusInProgress Status = "in_progress"
	// StatusDone は完了したタスクを表す。
	StatusDone Status = "done"
)

// ValidStatus はsが定義済みのタスク状態かどうかを返す。
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone:
		return true
	}
	return false
}

// Task はファンアウトエンジンが参照するタスクのスナップショット。
// タスクサービスのレコードから、通知の計算に必要なフィールドのみを写し取る。
type Task struct {
	// ID はタスクの一意識別子。
	ID string
	// Title はタスクのタイトル。
	Title string
	// Status はタスクの進行状態。
	Status Status
	// AssignedTo は担当者のユーザーID。
	AssignedTo string
	// CreatedBy は作成者のユーザーID。作成後は変更されない。
	CreatedBy string
	// CustomerID は関連する顧客のID。未設定の場合は空文字列。
	CustomerID string
	// DealID は関連する商談のID。未設定の場合は空文字列。
	DealID string
}
