package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// StoredEvent はイベントテーブルの1行を表す。
type StoredEvent struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `db:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `db:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `db:"aggregate_type"`
	// EventType はイベントの種類。
	EventType string `db:"event_type"`
	// Data はイベント固有のデータ（JSON文字列）。
	Data string `db:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `db:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `db:"created_at"`
}

// Store はイベントテーブルへのアクセスを提供する。
type Store struct {
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// selectColumns はイベント取得クエリで共通するSELECT句。
const selectColumns = `SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at FROM events`

// Append はイベントを追記する。
// バージョンは同一Aggregate内の最大バージョン+1をトランザクション内で採番する。
func (s *Store) Append(ctx context.Context, ev StoredEvent) (StoredEvent, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return StoredEvent{}, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var version int64
	if err := tx.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM events WHERE aggregate_id = ?`, ev.AggregateID); err != nil {
		return StoredEvent{}, fmt.Errorf("バージョンの採番に失敗: %w", err)
	}
	ev.Version = version

	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
		VALUES (:id, :aggregate_id, :aggregate_type, :event_type, :data, :version, :created_at)`, ev); err != nil {
		return StoredEvent{}, fmt.Errorf("イベントの挿入に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return StoredEvent{}, fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return ev, nil
}

// ListAll は全イベントを作成日時順に返す。
func (s *Store) ListAll(ctx context.Context) ([]StoredEvent, error) {
	events := []StoredEvent{}
	if err := s.db.SelectContext(ctx, &events, selectColumns+` ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("全イベントの取得に失敗: %w", err)
	}
	return events, nil
}

// ListByAggregateID は指定Aggregateのイベントをバージョン順に返す。
func (s *Store) ListByAggregateID(ctx context.Context, aggregateID string) ([]StoredEvent, error) {
	events := []StoredEvent{}
	if err := s.db.SelectContext(ctx, &events,
		selectColumns+` WHERE aggregate_id = ? ORDER BY version`, aggregateID); err != nil {
		return nil, fmt.Errorf("Aggregateイベントの取得に失敗: %w", err)
	}
	return events, nil
}

// ListByType は指定タイプのイベントを作成日時順に返す。
func (s *Store) ListByType(ctx context.Context, eventType string) ([]StoredEvent, error) {
	events := []StoredEvent{}
	if err := s.db.SelectContext(ctx, &events,
		selectColumns+` WHERE event_type = ? ORDER BY created_at, id`, eventType); err != nil {
		return nil, fmt.Errorf("タイプ別イベントの取得に失敗: %w", err)
	}
	return events, nil
}

// ListSince は指定日時以降に作成されたイベントを作成日時順に返す。
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]StoredEvent, error) {
	events := []StoredEvent{}
	if err := s.db.SelectContext(ctx, &events,
		selectColumns+` WHERE created_at >= ? ORDER BY created_at, id`, since); err != nil {
		return nil, fmt.Errorf("日時指定イベントの取得に失敗: %w", err)
	}
	return events, nil
}

// LatestVersion は指定Aggregateの最新バージョンを返す。イベントがない場合は0を返す。
func (s *Store) LatestVersion(ctx context.Context, aggregateID string) (int64, error) {
	var version int64
	if err := s.db.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`, aggregateID); err != nil {
		return 0, fmt.Errorf("最新バージョンの取得に失敗: %w", err)
	}
	return version, nil
}
