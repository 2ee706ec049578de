package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/nao1215/crmhub/pkg/event"
	"github.com/nao1215/crmhub/pkg/httpclient"
)

// Projector はEvent Storeのイベントをポーリングし、Read Modelを更新するバックグラウンドプロセス。
type Projector struct {
	// store はRead Modelへのアクセスを提供する。
	store *Store
	// client はEvent Storeとの通信用HTTPクライアント。
	client *httpclient.Client
	// interval はポーリング間隔。
	interval time.Duration
	// lastTimestamp は最後に処理したイベントのタイムスタンプ。
	lastTimestamp time.Time
	// mu はlastTimestampへの並行アクセスを保護するミューテックス。
	mu sync.Mutex
	// cancel はバックグラウンドゴルーチンを停止するためのキャンセル関数。
	cancel context.CancelFunc
}

// NewProjector は新しいProjectorを生成する。
func NewProjector(store *Store, eventstoreURL string, interval time.Duration) *Projector {
	return &Projector{
		store:         store,
		client:        httpclient.New(eventstoreURL),
		interval:      interval,
		lastTimestamp: time.Time{},
	}
}

// Start はバックグラウンドでEvent Storeのポーリングを開始する。
func (p *Projector) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	go func() {
		log.Println("Projector: Event Storeポーリングを開始します")
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Println("Projector: ポーリングを停止しました")
				return
			case <-ticker.C:
				if err := p.poll(ctx); err != nil {
					log.Printf("Projector: ポーリングエラー: %v", err)
				}
			}
		}
	}()
}

// Stop はバックグラウンドのポーリングを停止する。
func (p *Projector) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

// eventStoreResponse はEvent Store APIから返されるイベントのJSON構造。
type eventStoreResponse struct {
	// ID はイベントの一意識別子。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `json:"event_type"`
	// Data はイベント固有のデータ（JSON文字列）。
	Data string `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// occurredAt はイベントの作成日時を返す。パースできない場合は現在時刻に縮退する。
func (ev eventStoreResponse) occurredAt() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ev.CreatedAt); err == nil {
		return t
	}
	return time.Now().UTC()
}

// poll はEvent Storeから新しいイベントを取得してRead Modelに反映する。
func (p *Projector) poll(ctx context.Context) error {
	p.mu.Lock()
	since := p.lastTimestamp
	p.mu.Unlock()

	sinceStr := since.UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("/api/v1/events/since?since=%s", url.QueryEscape(sinceStr))

	var events []eventStoreResponse
	if err := p.client.GetJSON(ctx, path, &events); err != nil {
		return fmt.Errorf("Event Storeからのイベント取得に失敗: %w", err)
	}

	if len(events) == 0 {
		return nil
	}

	var latestTimestamp time.Time
	for _, ev := range events {
		if err := p.processEvent(ctx, ev); err != nil {
			log.Printf("Projector: イベント処理エラー (id=%s, type=%s): %v", ev.ID, ev.EventType, err)
			continue
		}

		if createdAt, err := time.Parse(time.RFC3339Nano, ev.CreatedAt); err == nil && createdAt.After(latestTimestamp) {
			latestTimestamp = createdAt
		}
	}

	if !latestTimestamp.IsZero() {
		p.mu.Lock()
		// 同じイベントを再取得しないように1ナノ秒進める
		p.lastTimestamp = latestTimestamp.Add(1 * time.Nanosecond)
		p.mu.Unlock()
	}

	log.Printf("Projector: %d件のイベントを処理しました", len(events))
	return nil
}

// processEvent は1つのイベントをRead Modelに反映する。
func (p *Projector) processEvent(ctx context.Context, ev eventStoreResponse) error {
	// タスク関連のイベントのみ処理する
	if ev.AggregateType != string(event.AggregateTypeTask) {
		return nil
	}

	switch event.Type(ev.EventType) {
	case event.TypeTaskCreated:
		return p.handleTaskCreated(ctx, ev)
	case event.TypeTaskUpdated:
		return p.handleTaskUpdated(ctx, ev)
	case event.TypeTaskDeleted:
		return p.handleTaskDeleted(ctx, ev)
	default:
		return nil
	}
}

// handleTaskCreated はTaskCreatedイベントをRead Modelに反映する。
func (p *Projector) handleTaskCreated(ctx context.Context, ev eventStoreResponse) error {
	var data event.TaskCreatedData
	if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
		return fmt.Errorf("TaskCreatedDataのデシリアライズに失敗: %w", err)
	}

	occurred := ev.occurredAt()
	if err := p.store.UpsertTask(ctx, TaskReadModel{
		ID:         ev.AggregateID,
		Title:      data.Title,
		Status:     data.Status,
		AssignedTo: data.AssignedTo,
		CreatedBy:  data.CreatedBy,
		Deleted:    false,
		UpdatedAt:  occurred,
	}); err != nil {
		return err
	}

	return p.store.InsertActivity(ctx, Activity{
		EventID:    ev.ID,
		TaskID:     ev.AggregateID,
		ActorUID:   data.ActorUID,
		Action:     "created",
		Detail:     data.Title,
		OccurredAt: occurred,
	})
}

// handleTaskUpdated はTaskUpdatedイベントをRead Modelに反映する。
// 変更の分類に応じてステータスまたは担当者を更新する。
func (p *Projector) handleTaskUpdated(ctx context.Context, ev eventStoreResponse) error {
	var data event.TaskUpdatedData
	if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
		return fmt.Errorf("TaskUpdatedDataのデシリアライズに失敗: %w", err)
	}

	occurred := ev.occurredAt()
	var detail string
	switch data.ChangeKind {
	case "status_changed":
		if err := p.store.UpdateTaskStatus(ctx, ev.AggregateID, data.ToStatus, occurred); err != nil {
			return err
		}
		detail = fmt.Sprintf("%s -> %s", data.FromStatus, data.ToStatus)
	case "reassigned":
		if err := p.store.UpdateTaskAssignee(ctx, ev.AggregateID, data.ToAssignee, occurred); err != nil {
			return err
		}
		detail = fmt.Sprintf("%s -> %s", data.FromAssignee, data.ToAssignee)
	}

	return p.store.InsertActivity(ctx, Activity{
		EventID:    ev.ID,
		TaskID:     ev.AggregateID,
		ActorUID:   data.ActorUID,
		Action:     data.ChangeKind,
		Detail:     detail,
		OccurredAt: occurred,
	})
}

// handleTaskDeleted はTaskDeletedイベントをRead Modelに反映する。
func (p *Projector) handleTaskDeleted(ctx context.Context, ev eventStoreResponse) error {
	var data event.TaskDeletedData
	if err := json.Unmarshal([]byte(ev.Data), &data); err != nil {
		return fmt.Errorf("TaskDeletedDataのデシリアライズに失敗: %w", err)
	}

	occurred := ev.occurredAt()
	if err := p.store.MarkTaskDeleted(ctx, ev.AggregateID, occurred); err != nil {
		return err
	}

	return p.store.InsertActivity(ctx, Activity{
		EventID:    ev.ID,
		TaskID:     ev.AggregateID,
		ActorUID:   data.ActorUID,
		Action:     "deleted",
		Detail:     data.Title,
		OccurredAt: occurred,
	})
}

// RebuildFromEventStore はRead Modelを全削除し、Event Storeの全イベントから再構築する。
// Read Modelが破損した場合や整合性を回復する必要がある場合に使用する。
func (p *Projector) RebuildFromEventStore(ctx context.Context) error {
	log.Println("Projector: Read Modelの再構築を開始します")

	if err := p.store.DeleteAll(ctx); err != nil {
		return err
	}

	var events []eventStoreResponse
	if err := p.client.GetJSON(ctx, "/api/v1/events", &events); err != nil {
		return fmt.Errorf("Event Storeからの全イベント取得に失敗: %w", err)
	}

	var processedCount int
	for _, ev := range events {
		if err := p.processEvent(ctx, ev); err != nil {
			log.Printf("Projector: 再構築中のイベント処理エラー (id=%s, type=%s): %v", ev.ID, ev.EventType, err)
			continue
		}
		processedCount++
	}

	// 最後のイベント以降からポーリングを再開する
	if len(events) > 0 {
		last := events[len(events)-1]
		if createdAt, err := time.Parse(time.RFC3339Nano, last.CreatedAt); err == nil {
			p.mu.Lock()
			p.lastTimestamp = createdAt.Add(1 * time.Nanosecond)
			p.mu.Unlock()
		}
	}

	log.Printf("Projector: Read Modelの再構築が完了しました（%d件のイベントを処理）", processedCount)
	return nil
}
