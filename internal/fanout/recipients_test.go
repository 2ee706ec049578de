package fanout

import (
	"reflect"
	"testing"
)

// TestResolveCreated は作成イベントの通知先決定のテスト。
func TestResolveCreated(t *testing.T) {
	t.Parallel()

	t.Run("作成者と担当者が異なる場合は両方が通知先になる", func(t *testing.T) {
		t.Parallel()
		next := &Task{ID: "task-1", AssignedTo: "u2", CreatedBy: "u1"}
		change := Classify(EventCreated, nil, next)

		got := Resolve(EventCreated, change, nil, next)

		want := []string{"u2", "u1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})

	t.Run("自己割り当ての場合は担当者1人のみ", func(t *testing.T) {
		t.Parallel()
		next := &Task{ID: "task-1", AssignedTo: "u1", CreatedBy: "u1"}
		change := Classify(EventCreated, nil, next)

		got := Resolve(EventCreated, change, nil, next)

		want := []string{"u1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})
}

// TestResolveUpdated は更新イベントの通知先決定のテスト。
func TestResolveUpdated(t *testing.T) {
	t.Parallel()

	t.Run("状態変更のみの場合は新担当者のみ", func(t *testing.T) {
		t.Parallel()
		prev := &Task{ID: "task-1", Status: StatusTodo, AssignedTo: "u2"}
		next := &Task{ID: "task-1", Status: StatusDone, AssignedTo: "u2"}
		change := Classify(EventUpdated, prev, next)

		got := Resolve(EventUpdated, change, prev, next)

		want := []string{"u2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})

	t.Run("担当者変更の場合は新旧両方の担当者", func(t *testing.T) {
		t.Parallel()
		prev := &Task{ID: "task-1", Status: StatusTodo, AssignedTo: "u2"}
		next := &Task{ID: "task-1", Status: StatusTodo, AssignedTo: "u3"}
		change := Classify(EventUpdated, prev, next)

		got := Resolve(EventUpdated, change, prev, next)

		want := []string{"u3", "u2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})

	t.Run("状態変更と担当者変更が同時に起きても旧担当者は通知先に含まれる", func(t *testing.T) {
		t.Parallel()
		prev := &Task{ID: "task-1", Status: StatusTodo, AssignedTo: "u2"}
		next := &Task{ID: "task-1", Status: StatusDone, AssignedTo: "u3"}
		change := Classify(EventUpdated, prev, next)

		if change.Kind != KindStatusChanged {
			t.Fatalf("前提: Kind: got %s, want %s", change.Kind, KindStatusChanged)
		}

		got := Resolve(EventUpdated, change, prev, next)

		want := []string{"u3", "u2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})

	t.Run("その他の変更の場合は担当者のみ", func(t *testing.T) {
		t.Parallel()
		prev := &Task{ID: "task-1", Title: "旧", Status: StatusTodo, AssignedTo: "u2"}
		next := &Task{ID: "task-1", Title: "新", Status: StatusTodo, AssignedTo: "u2"}
		change := Classify(EventUpdated, prev, next)

		got := Resolve(EventUpdated, change, prev, next)

		want := []string{"u2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})
}

// TestResolveDeleted は削除イベントの通知先決定のテスト。
func TestResolveDeleted(t *testing.T) {
	t.Parallel()

	t.Run("作成者と担当者の和集合が通知先になる", func(t *testing.T) {
		t.Parallel()
		prev := &Task{ID: "task-1", AssignedTo: "u2", CreatedBy: "u1"}
		change := Classify(EventDeleted, prev, nil)

		got := Resolve(EventDeleted, change, prev, nil)

		want := []string{"u1", "u2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})

	t.Run("作成者と担当者が同一の場合は1人に集約される", func(t *testing.T) {
		t.Parallel()
		prev := &Task{ID: "task-1", AssignedTo: "u1", CreatedBy: "u1"}
		change := Classify(EventDeleted, prev, nil)

		got := Resolve(EventDeleted, change, prev, nil)

		want := []string{"u1"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("通知先: got %v, want %v", got, want)
		}
	})
}

// TestDedupeUIDs は通知先集合の重複除去のテスト。
func TestDedupeUIDs(t *testing.T) {
	t.Parallel()

	got := dedupeUIDs([]string{"u1", "u2", "u1", "", "u3", "u2"})
	want := []string{"u1", "u2", "u3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("重複除去: got %v, want %v", got, want)
	}
}
