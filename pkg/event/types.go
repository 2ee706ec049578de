package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeTask はタスクエンティティを表す。
	AggregateTypeTask AggregateType = "Task"
	// AggregateTypeCustomer は顧客エンティティを表す。
	AggregateTypeCustomer AggregateType = "Customer"
	// AggregateTypeDeal は商談エンティティを表す。
	AggregateTypeDeal AggregateType = "Deal"
	// AggregateTypeUser はユーザーエンティティを表す。
	AggregateTypeUser AggregateType = "User"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeTaskCreated はタスクが作成されたことを表す。
	TypeTaskCreated Type = "TaskCreated"
	// TypeTaskUpdated はタスクが更新されたことを表す。
	TypeTaskUpdated Type = "TaskUpdated"
	// TypeTaskDeleted はタスクが削除されたことを表す。
	TypeTaskDeleted Type = "TaskDeleted"

	// TypeCustomerCreated は顧客が登録されたことを表す。
	TypeCustomerCreated Type = "CustomerCreated"
	// TypeCustomerDeleted は顧客が削除されたことを表す。
	TypeCustomerDeleted Type = "CustomerDeleted"

	// TypeDealCreated は商談が登録されたことを表す。
	TypeDealCreated Type = "DealCreated"
	// TypeDealStageChanged は商談のステージが変わったことを表す。
	TypeDealStageChanged Type = "DealStageChanged"

	// TypeUserRegistered はユーザーが登録されたことを表す。
	TypeUserRegistered Type = "UserRegistered"

	// TypeNotificationSent は通知が保存されたことを表す。
	TypeNotificationSent Type = "NotificationSent"
)

// Event はEvent Sourcingにおける不変のイベントレコードを表す。
// タスク・顧客・商談の状態変更はこの構造体としてEvent Storeに永続化され、
// レポートサービスの読み取りモデルと監査証跡の元データになる。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。楽観的排他制御に使用する。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// TaskCreatedData はTaskCreatedイベントのデータ。
type TaskCreatedData struct {
	// ActorUID は作成を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// Title はタスクのタイトル。
	Title string `json:"title"`
	// Status はタスクの初期状態。
	Status string `json:"status"`
	// AssignedTo は担当者のユーザーID。
	AssignedTo string `json:"assigned_to"`
	// CreatedBy は作成者のユーザーID。
	CreatedBy string `json:"created_by"`
	// CustomerID は関連する顧客のID。未設定の場合は空文字列。
	CustomerID string `json:"customer_id,omitempty"`
	// DealID は関連する商談のID。未設定の場合は空文字列。
	DealID string `json:"deal_id,omitempty"`
}

// TaskUpdatedData はTaskUpdatedイベントのデータ。
type TaskUpdatedData struct {
	// ActorUID は更新を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// ChangeKind はファンアウトエンジンが分類した変更の種類。
	ChangeKind string `json:"change_kind"`
	// FromStatus は変更前の状態。状態変更の場合のみ設定される。
	FromStatus string `json:"from_status,omitempty"`
	// ToStatus は変更後の状態。状態変更の場合のみ設定される。
	ToStatus string `json:"to_status,omitempty"`
	// FromAssignee は変更前の担当者のユーザーID。
	FromAssignee string `json:"from_assignee,omitempty"`
	// ToAssignee は変更後の担当者のユーザーID。
	ToAssignee string `json:"to_assignee,omitempty"`
}

// TaskDeletedData はTaskDeletedイベントのデータ。
type TaskDeletedData struct {
	// ActorUID は削除を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// Title は削除されたタスクのタイトル。
	Title string `json:"title"`
	// Status は削除時点のタスクの状態。
	Status string `json:"status"`
}

// CustomerCreatedData はCustomerCreatedイベントのデータ。
type CustomerCreatedData struct {
	// ActorUID は登録を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// Name は顧客名。
	Name string `json:"name"`
}

// CustomerDeletedData はCustomerDeletedイベントのデータ。
type CustomerDeletedData struct {
	// ActorUID は削除を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
}

// DealCreatedData はDealCreatedイベントのデータ。
type DealCreatedData struct {
	// ActorUID は登録を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// Name は商談名。
	Name string `json:"name"`
	// CustomerID は商談先の顧客ID。
	CustomerID string `json:"customer_id"`
	// Stage は商談の初期ステージ。
	Stage string `json:"stage"`
	// Amount は商談金額（最小通貨単位）。
	Amount int64 `json:"amount"`
}

// DealStageChangedData はDealStageChangedイベントのデータ。
type DealStageChangedData struct {
	// ActorUID は変更を実行したユーザーのID。
	ActorUID string `json:"actor_uid"`
	// FromStage は変更前のステージ。
	FromStage string `json:"from_stage"`
	// ToStage は変更後のステージ。
	ToStage string `json:"to_stage"`
}

// UserRegisteredData はUserRegisteredイベントのデータ。
type UserRegisteredData struct {
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// DisplayName はユーザーの表示名。
	DisplayName string `json:"display_name"`
}

// NotificationSentData はNotificationSentイベントのデータ。
type NotificationSentData struct {
	// RecipientUID は通知先のユーザーID。
	RecipientUID string `json:"recipient_uid"`
	// Message は通知メッセージ。
	Message string `json:"message"`
	// RelatedTaskID は通知の起点となったタスクのID。
	RelatedTaskID string `json:"related_task_id,omitempty"`
}
