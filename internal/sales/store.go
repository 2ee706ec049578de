package sales

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrDealNotFound は商談が見つからない場合のエラー。
var ErrDealNotFound = errors.New("商談が見つかりません")

// Stage は商談のステージを表す。
type Stage string

const (
	// StageProspect は見込み段階を表す。
	StageProspect Stage = "prospect"
	// StageNegotiation は交渉中を表す。
	StageNegotiation Stage = "negotiation"
	// StageWon は受注を表す。
	StageWon Stage = "won"
	// StageLost は失注を表す。
	StageLost Stage = "lost"
)

// ValidStage はsが定義済みのステージかどうかを返す。
func ValidStage(s Stage) bool {
	switch s {
	case StageProspect, StageNegotiation, StageWon, StageLost:
		return true
	default:
		return false
	}
}

// Deal は商談を表す。金額は最小通貨単位の整数で保持する。
type Deal struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	CustomerID string    `db:"customer_id"`
	Stage      string    `db:"stage"`
	Amount     int64     `db:"amount"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Store は商談の永続化を担当する。
type Store struct {
	db *sqlx.DB
}

// NewStore はStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Insert は商談を登録する。
func (s *Store) Insert(ctx context.Context, d Deal) error {
	query := `INSERT INTO deals (id, name, customer_id, stage, amount, created_at, updated_at)
	          VALUES (:id, :name, :customer_id, :stage, :amount, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("商談の登録に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDで商談を取得する。
func (s *Store) GetByID(ctx context.Context, id string) (Deal, error) {
	var d Deal
	err := s.db.GetContext(ctx, &d, `SELECT * FROM deals WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Deal{}, ErrDealNotFound
	}
	if err != nil {
		return Deal{}, fmt.Errorf("商談の取得に失敗しました: %w", err)
	}
	return d, nil
}

// List は商談一覧を作成日時の新しい順で返す。
// customerIDが空でない場合は該当顧客の商談に絞り込む。
func (s *Store) List(ctx context.Context, customerID string) ([]Deal, error) {
	deals := []Deal{}
	var err error
	if customerID != "" {
		err = s.db.SelectContext(ctx, &deals,
			`SELECT * FROM deals WHERE customer_id = ? ORDER BY created_at DESC`, customerID)
	} else {
		err = s.db.SelectContext(ctx, &deals, `SELECT * FROM deals ORDER BY created_at DESC`)
	}
	if err != nil {
		return nil, fmt.Errorf("商談一覧の取得に失敗しました: %w", err)
	}
	return deals, nil
}

// Update は商談を更新する。対象が存在しない場合はErrDealNotFoundを返す。
func (s *Store) Update(ctx context.Context, d Deal) error {
	query := `UPDATE deals SET name = :name, customer_id = :customer_id, stage = :stage,
	          amount = :amount, updated_at = :updated_at WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, query, d)
	if err != nil {
		return fmt.Errorf("商談の更新に失敗しました: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rows == 0 {
		return ErrDealNotFound
	}
	return nil
}

// Delete は商談を削除する。対象が存在しない場合はErrDealNotFoundを返す。
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("商談の削除に失敗しました: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rows == 0 {
		return ErrDealNotFound
	}
	return nil
}
