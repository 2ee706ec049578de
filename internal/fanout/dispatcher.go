package fanout

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// ErrNotificationNotFound は重複確認の問い合わせで通知が見つからなかったことを表す。
// NotificationStoreの実装はFindByTaskAndMessageでこのエラーを返すこと。
var ErrNotificationNotFound = errors.New("notification not found")

// Notification は1人の宛先に対する通知レコード。
// messageとrecipientUIDは作成後に変更されない。既読フラグのみが後から変更される。
type Notification struct {
	// ID は通知の一意識別子。ストアが採番する。
	ID string
	// RecipientUID は通知先のユーザーID。1レコードにつき1宛先。
	RecipientUID string
	// Message は組み立て済みの通知文面。
	Message string
	// RelatedTaskID は通知の起点となったタスクのID。重複確認に使う弱参照。
	RelatedTaskID string
	// Read は既読状態。
	Read bool
	// CreatedAt は通知の作成日時。
	CreatedAt time.Time
}

// NotificationStore は通知レコードの永続化の境界。
type NotificationStore interface {
	// FindByTaskAndMessage は同一タスク・同一文面の既存通知を検索する。
	// 見つからない場合はErrNotificationNotFoundを返す。
	FindByTaskAndMessage(ctx context.Context, taskID, message string) (*Notification, error)
	// Insert は通知レコードを1件追加する。
	Insert(ctx context.Context, n Notification) (*Notification, error)
}

// Directory はユーザーIDから表示名を解決する読み取り専用の境界。
type Directory interface {
	// DisplayName はユーザーの表示名を返す。未知のIDの場合はエラーを返す。
	DisplayName(ctx context.Context, uid string) (string, error)
}

// ReferenceResolver は顧客・商談の参照IDから表示名を解決する境界。
type ReferenceResolver interface {
	// CustomerName は顧客名を返す。未知のIDの場合はエラーを返す。
	CustomerName(ctx context.Context, customerID string) (string, error)
	// DealName は商談名を返す。未知のIDの場合はエラーを返す。
	DealName(ctx context.Context, dealID string) (string, error)
}

// Dispatcher はタスク変更イベントごとに通知のファンアウトを実行する。
// 呼び出し間で状態を持たず、同一タスクへの並行呼び出しの調停も行わない
// （並行した同一タスクの更新は、それぞれが観測した前後ペアに基づいて独立に通知を計算する）。
type Dispatcher struct {
	// store は通知レコードの書き込み先。
	store NotificationStore
	// directory はユーザー表示名の解決先。
	directory Directory
	// refs は顧客・商談名の解決先。
	refs ReferenceResolver
	// composer は通知文面の組み立て器。
	composer *Composer
}

// NewDispatcher は新しいDispatcherを生成する。
func NewDispatcher(store NotificationStore, directory Directory, refs ReferenceResolver, composer *Composer) *Dispatcher {
	return &Dispatcher{
		store:     store,
		directory: directory,
		refs:      refs,
		composer:  composer,
	}
}

// OnTaskCreated はタスク作成イベントのファンアウトを実行する。
// 担当者に通知し、作成者が担当者と異なる場合は委任確認の文面で作成者にも通知する。
// 同一タスク・同一文面の通知が既に存在する場合は挿入をスキップする（重複抑止）。
// 通知書き込みの失敗は宛先ごとに隔離され、呼び出し元へは伝播しない。
func (d *Dispatcher) OnTaskCreated(ctx context.Context, next *Task, actorUID string) error {
	mctx := MessageContext{
		ActorName:    d.displayName(ctx, actorUID),
		Title:        next.Title,
		CustomerName: d.customerName(ctx, next.CustomerID),
		DealName:     d.dealName(ctx, next.DealID),
		AssigneeName: d.displayName(ctx, next.AssignedTo),
		SelfAssigned: actorUID == next.AssignedTo,
	}

	change := Classify(EventCreated, nil, next)
	recipients := Resolve(EventCreated, change, nil, next)

	assigneeMessage := d.composer.Compose(change, mctx)
	delegatedMessage := d.composer.ComposeDelegated(mctx)

	deliveries := make([]delivery, 0, len(recipients))
	for _, uid := range recipients {
		msg := assigneeMessage
		if uid != next.AssignedTo {
			// 作成者への委任確認は担当者向けとは別の文面となる。
			msg = delegatedMessage
		}
		deliveries = append(deliveries, delivery{recipientUID: uid, message: msg, dedupe: true})
	}

	d.dispatch(ctx, next.ID, deliveries)
	return nil
}

// OnTaskUpdated はタスク更新イベントのファンアウトを実行する。
// 変更分類は1つだけ決まり、全宛先が同じ文面を受け取る。
// 状態変更と担当者変更が同時に起きた場合、文面は状態変更に従うが旧担当者にも通知する。
// 更新の通知は時間的に別個のため、重複抑止は行わず常に新規レコードを挿入する。
func (d *Dispatcher) OnTaskUpdated(ctx context.Context, prev, next *Task, actorUID string) error {
	change := Classify(EventUpdated, prev, next)

	mctx := MessageContext{
		ActorName:    d.displayName(ctx, actorUID),
		Title:        next.Title,
		CustomerName: d.customerName(ctx, next.CustomerID),
		DealName:     d.dealName(ctx, next.DealID),
	}
	if change.Kind == KindReassigned {
		mctx.FromName = d.displayName(ctx, prev.AssignedTo)
		mctx.ToName = d.displayName(ctx, next.AssignedTo)
	}

	msg := d.composer.Compose(change, mctx)
	recipients := Resolve(EventUpdated, change, prev, next)

	deliveries := make([]delivery, 0, len(recipients))
	for _, uid := range recipients {
		deliveries = append(deliveries, delivery{recipientUID: uid, message: msg})
	}

	d.dispatch(ctx, next.ID, deliveries)
	return nil
}

// OnTaskDeleted はタスク削除イベントのファンアウトを実行する。
// 作成者と担当者（同一人物の場合は1件）に通知する。重複抑止は行わない。
func (d *Dispatcher) OnTaskDeleted(ctx context.Context, prev *Task, actorUID string) error {
	change := Classify(EventDeleted, prev, nil)

	mctx := MessageContext{
		ActorName:    d.displayName(ctx, actorUID),
		Title:        prev.Title,
		CustomerName: d.customerName(ctx, prev.CustomerID),
		DealName:     d.dealName(ctx, prev.DealID),
	}

	msg := d.composer.Compose(change, mctx)
	recipients := Resolve(EventDeleted, change, prev, nil)

	deliveries := make([]delivery, 0, len(recipients))
	for _, uid := range recipients {
		deliveries = append(deliveries, delivery{recipientUID: uid, message: msg})
	}

	d.dispatch(ctx, prev.ID, deliveries)
	return nil
}

// delivery は1宛先分の書き込み要求。
type delivery struct {
	// recipientUID は通知先のユーザーID。
	recipientUID string
	// message は組み立て済みの通知文面。
	message string
	// dedupe は挿入前に同一タスク・同一文面の既存通知を確認するかどうか。
	dedupe bool
}

// dispatch は宛先ごとの通知書き込みを並行して実行する。
// 宛先間に順序の依存はなく、一部の書き込みが失敗しても残りの宛先への試行は継続する。
// 失敗はログに記録するのみで、適用済みのタスク変更を巻き戻すことはない。
func (d *Dispatcher) dispatch(ctx context.Context, taskID string, deliveries []delivery) {
	var wg sync.WaitGroup
	for _, dv := range deliveries {
		wg.Add(1)
		go func(dv delivery) {
			defer wg.Done()
			d.deliver(ctx, taskID, dv)
		}(dv)
	}
	wg.Wait()
}

// deliver は1宛先分の通知書き込みを実行する。
func (d *Dispatcher) deliver(ctx context.Context, taskID string, dv delivery) {
	if dv.dedupe {
		existing, err := d.store.FindByTaskAndMessage(ctx, taskID, dv.message)
		if err == nil && existing != nil {
			// 既存レコードをそのまま採用し、重複挿入を抑止する。
			return
		}
		if err != nil && !errors.Is(err, ErrNotificationNotFound) {
			// 重複確認は防御的なチェックに過ぎない。確認に失敗しても挿入は試みる。
			log.Printf("[Fanout] 重複確認に失敗: task_id=%s, recipient=%s, error=%v", taskID, dv.recipientUID, err)
		}
	}

	if _, err := d.store.Insert(ctx, Notification{
		RecipientUID:  dv.recipientUID,
		Message:       dv.message,
		RelatedTaskID: taskID,
	}); err != nil {
		log.Printf("[Fanout] 通知の書き込みに失敗: task_id=%s, recipient=%s, error=%v", taskID, dv.recipientUID, err)
	}
}

// displayName はユーザー表示名を解決する。解決失敗は空文字列に縮退し、
// Composerがプレースホルダーに置き換える。ファンアウトを妨げることはない。
func (d *Dispatcher) displayName(ctx context.Context, uid string) string {
	if uid == "" {
		return ""
	}
	name, err := d.directory.DisplayName(ctx, uid)
	if err != nil {
		log.Printf("[Fanout] 表示名の解決に失敗: uid=%s, error=%v", uid, err)
		return ""
	}
	return name
}

// customerName は顧客名を解決する。未設定・解決失敗は空文字列に縮退する。
func (d *Dispatcher) customerName(ctx context.Context, customerID string) string {
	if customerID == "" {
		return ""
	}
	name, err := d.refs.CustomerName(ctx, customerID)
	if err != nil {
		log.Printf("[Fanout] 顧客名の解決に失敗: customer_id=%s, error=%v", customerID, err)
		return ""
	}
	return name
}

// dealName は商談名を解決する。未設定・解決失敗は空文字列に縮退する。
func (d *Dispatcher) dealName(ctx context.Context, dealID string) string {
	if dealID == "" {
		return ""
	}
	name, err := d.refs.DealName(ctx, dealID)
	if err != nil {
		log.Printf("[Fanout] 商談名の解決に失敗: deal_id=%s, error=%v", dealID, err)
		return ""
	}
	return name
}
