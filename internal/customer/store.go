package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrCustomerNotFound は顧客が見つからない場合のエラー。
var ErrCustomerNotFound = errors.New("顧客が見つかりません")

// Customer は顧客を表す。
type Customer struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Note      string    `db:"note"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Contact は顧客に紐づく連絡先を表す。
type Contact struct {
	ID         string    `db:"id"`
	CustomerID string    `db:"customer_id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Phone      string    `db:"phone"`
	Role       string    `db:"role"`
	CreatedAt  time.Time `db:"created_at"`
}

// Store は顧客と連絡先の永続化を担当する。
type Store struct {
	db *sqlx.DB
}

// NewStore はStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Insert は顧客を登録する。
func (s *Store) Insert(ctx context.Context, c Customer) error {
	query := `INSERT INTO customers (id, name, email, phone, note, created_at, updated_at)
	          VALUES (:id, :name, :email, :phone, :note, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("顧客の登録に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDで顧客を取得する。
func (s *Store) GetByID(ctx context.Context, id string) (Customer, error) {
	var c Customer
	err := s.db.GetContext(ctx, &c, `SELECT * FROM customers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Customer{}, ErrCustomerNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("顧客の取得に失敗しました: %w", err)
	}
	return c, nil
}

// List は全顧客を名前順で返す。
func (s *Store) List(ctx context.Context) ([]Customer, error) {
	customers := []Customer{}
	err := s.db.SelectContext(ctx, &customers, `SELECT * FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("顧客一覧の取得に失敗しました: %w", err)
	}
	return customers, nil
}

// Update は顧客を更新する。対象が存在しない場合はErrCustomerNotFoundを返す。
func (s *Store) Update(ctx context.Context, c Customer) error {
	query := `UPDATE customers SET name = :name, email = :email, phone = :phone,
	          note = :note, updated_at = :updated_at WHERE id = :id`
	result, err := s.db.NamedExecContext(ctx, query, c)
	if err != nil {
		return fmt.Errorf("顧客の更新に失敗しました: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rows == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// Delete は顧客と紐づく連絡先を削除する。
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM contacts WHERE customer_id = ?`, id); err != nil {
		return fmt.Errorf("連絡先の削除に失敗しました: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("顧客の削除に失敗しました: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rows == 0 {
		return ErrCustomerNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// InsertContact は連絡先を登録する。
func (s *Store) InsertContact(ctx context.Context, c Contact) error {
	query := `INSERT INTO contacts (id, customer_id, name, email, phone, role, created_at)
	          VALUES (:id, :customer_id, :name, :email, :phone, :role, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, c); err != nil {
		return fmt.Errorf("連絡先の登録に失敗しました: %w", err)
	}
	return nil
}

// ListContacts は指定顧客の連絡先を登録順で返す。
func (s *Store) ListContacts(ctx context.Context, customerID string) ([]Contact, error) {
	contacts := []Contact{}
	err := s.db.SelectContext(ctx, &contacts,
		`SELECT * FROM contacts WHERE customer_id = ? ORDER BY created_at ASC`, customerID)
	if err != nil {
		return nil, fmt.Errorf("連絡先一覧の取得に失敗しました: %w", err)
	}
	return contacts, nil
}
