package event

import (
	"encoding/json"
	"testing"
)

// TestNew はイベント生成のテスト。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("各フィールドが設定される", func(t *testing.T) {
		t.Parallel()
		data := TaskCreatedData{
			ActorUID:   "u1",
			Title:      "契約書ドラフト",
			Status:     "todo",
			AssignedTo: "u2",
			CreatedBy:  "u1",
		}

		e, err := New("task-abc", AggregateTypeTask, TypeTaskCreated, 1, data)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		if e.ID == "" {
			t.Error("ID が空")
		}
		if e.AggregateID != "task-abc" {
			t.Errorf("AggregateID: got %s, want task-abc", e.AggregateID)
		}
		if e.AggregateType != AggregateTypeTask {
			t.Errorf("AggregateType: got %s, want %s", e.AggregateType, AggregateTypeTask)
		}
		if e.EventType != TypeTaskCreated {
			t.Errorf("EventType: got %s, want %s", e.EventType, TypeTaskCreated)
		}
		if e.Version != 1 {
			t.Errorf("Version: got %d, want 1", e.Version)
		}
		if e.CreatedAt.IsZero() {
			t.Error("CreatedAt が未設定")
		}
	})

	t.Run("データがJSONとしてシリアライズされる", func(t *testing.T) {
		t.Parallel()
		data := TaskDeletedData{ActorUID: "u1", Title: "見積書作成", Status: "done"}

		e, err := New("task-abc", AggregateTypeTask, TypeTaskDeleted, 3, data)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(e.Data, &decoded); err != nil {
			t.Fatalf("Dataのデシリアライズに失敗: %v", err)
		}
		if decoded["actor_uid"] != "u1" {
			t.Errorf("actor_uid: got %v, want u1", decoded["actor_uid"])
		}
		if decoded["title"] != "見積書作成" {
			t.Errorf("title: got %v, want 見積書作成", decoded["title"])
		}
	})

	t.Run("生成されるIDは呼び出しごとに異なる", func(t *testing.T) {
		t.Parallel()
		e1, err := New("task-abc", AggregateTypeTask, TypeTaskCreated, 1, TaskCreatedData{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		e2, err := New("task-abc", AggregateTypeTask, TypeTaskCreated, 2, TaskCreatedData{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if e1.ID == e2.ID {
			t.Errorf("IDが重複: %s", e1.ID)
		}
	})
}

// TestDecodeData はイベントデータのデシリアライズのテスト。
func TestDecodeData(t *testing.T) {
	t.Parallel()

	t.Run("元のデータ構造体に復元できる", func(t *testing.T) {
		t.Parallel()
		original := TaskUpdatedData{
			ActorUID:     "u1",
			ChangeKind:   "status_changed",
			FromStatus:   "todo",
			ToStatus:     "done",
			FromAssignee: "u2",
			ToAssignee:   "u2",
		}
		e, err := New("task-abc", AggregateTypeTask, TypeTaskUpdated, 2, original)
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		decoded, err := DecodeData[TaskUpdatedData](e)
		if err != nil {
			t.Fatalf("DecodeData: %v", err)
		}
		if *decoded != original {
			t.Errorf("復元結果: got %+v, want %+v", *decoded, original)
		}
	})

	t.Run("不正なJSONはエラーになる", func(t *testing.T) {
		t.Parallel()
		e := &Event{Data: []byte("{不正なJSON")}

		if _, err := DecodeData[TaskUpdatedData](e); err == nil {
			t.Error("不正なJSONでエラーが返らない")
		}
	})
}
