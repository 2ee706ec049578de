package fanout

// Event はタスクのライフサイクルイベントの種類を表す。
type Event string

const (
	// EventCreated はタスクが作成されたことを表す。
	EventCreated Event = "created"
	// EventUpdated はタスクが更新されたことを表す。
	EventUpdated Event = "updated"
	// EventDeleted はタスクが削除されたことを表す。
	EventDeleted Event = "deleted"
)

// Kind はタスク変更の分類を表す。1回の変更につき1つだけ決まる。
type Kind string

const (
	// KindCreated はタスクの新規作成を表す。
	KindCreated Kind = "created"
	// KindStatusChanged は進行状態の変更を表す。
	KindStatusChanged Kind = "status_changed"
	// KindReassigned は担当者の変更を表す。
	KindReassigned Kind = "reassigned"
	// KindGenericUpdate はタイトル・説明・顧客・商談・期日など、
	// 文面を区別しないその他のフィールド変更を表す。
	KindGenericUpdate Kind = "generic_update"
	// KindDeleted はタスクの削除を表す。
	KindDeleted Kind = "deleted"
)

// Change は変更分類の結果。文面の組み立てと通知先の決定に使われる。
type Change struct {
	// Kind は変更の分類。
	Kind Kind
	// FromStatus は変更前の進行状態。Kind == KindStatusChanged の場合のみ有効。
	FromStatus Status
	// ToStatus は変更後の進行状態。Kind == KindStatusChanged の場合のみ有効。
	ToStatus Status
	// FromAssignee は変更前の担当者のユーザーID。更新イベントで設定される。
	FromAssignee string
	// ToAssignee は変更後の担当者のユーザーID。更新イベントで設定される。
	ToAssignee string
	// Reassigned は担当者変更が起きたかどうか。
	// 状態変更が分類として優先された場合でも、旧担当者への通知判定のために保持する。
	Reassigned bool
}

// updateRule は更新イベントの分類規則。優先順位順のテーブルとして定義し、
// 最初に一致した規則だけが適用される。
type updateRule struct {
	// kind はこの規則が割り当てる分類。
	kind Kind
	// applies はこの規則が一致するかどうかを判定する。
	applies func(prev, next *Task) bool
	// build は分類結果のChangeを構築する。
	build func(prev, next *Task) Change
}

// updateRules は更新イベントの分類規則テーブル。上から順に評価される。
// 優先順位: 状態変更 > 担当者変更 > その他の変更。
// 複数フィールドが同時に変わっても分類は1つだけ決まる（1更新=1通知文面）。
var updateRules = []updateRule{
	{
		kind:    KindStatusChanged,
		applies: func(prev, next *Task) bool { return prev.Status != next.Status },
		build: func(prev, next *Task) Change {
			return Change{
				Kind:       KindStatusChanged,
				FromStatus: prev.Status,
				ToStatus:   next.Status,
			}
		},
	},
	{
		kind:    KindReassigned,
		applies: func(prev, next *Task) bool { return prev.AssignedTo != next.AssignedTo },
		build: func(prev, next *Task) Change {
			return Change{Kind: KindReassigned}
		},
	},
	{
		kind:    KindGenericUpdate,
		applies: func(_, _ *Task) bool { return true },
		build: func(prev, next *Task) Change {
			return Change{Kind: KindGenericUpdate}
		},
	},
}

// Classify はイベント種別と変更前後のタスクから変更の分類を決定する。
// 作成イベントでは prev を、削除イベントでは next を参照しない（nilでよい）。
// 更新イベントは updateRules テーブルの先頭から評価し、最初に一致した分類を返す。
func Classify(ev Event, prev, next *Task) Change {
	switch ev {
	case EventCreated:
		return Change{Kind: KindCreated, ToAssignee: next.AssignedTo}
	case EventDeleted:
		return Change{Kind: KindDeleted, FromAssignee: prev.AssignedTo, ToAssignee: prev.AssignedTo}
	}

	for _, rule := range updateRules {
		if !rule.applies(prev, next) {
			continue
		}
		change := rule.build(prev, next)
		// 担当者情報と担当者変更の有無は分類に関わらず常に記録する。
		change.FromAssignee = prev.AssignedTo
		change.ToAssignee = next.AssignedTo
		change.Reassigned = prev.AssignedTo != next.AssignedTo
		return change
	}

	// updateRulesの末尾は常に一致するため、ここには到達しない。
	return Change{Kind: KindGenericUpdate, FromAssignee: prev.AssignedTo, ToAssignee: next.AssignedTo}
}
