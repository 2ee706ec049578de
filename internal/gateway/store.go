package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrUserNotFound はユーザーが見つからない場合のエラー。
var ErrUserNotFound = errors.New("ユーザーが見つかりません")

// User はユーザーアカウントを表す。
type User struct {
	ID           string       `db:"id" json:"id"`
	Email        string       `db:"email" json:"email"`
	PasswordHash string       `db:"password_hash" json:"-"`
	DisplayName  string       `db:"display_name" json:"display_name"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	LastLoginAt  sql.NullTime `db:"last_login_at" json:"-"`
}

// userStore はユーザーの永続化を担当する。
type userStore struct {
	db *sqlx.DB
}

func newUserStore(db *sqlx.DB) *userStore {
	return &userStore{db: db}
}

// Insert はユーザーを登録する。
func (s *userStore) Insert(ctx context.Context, u User) (*User, error) {
	query := `INSERT INTO users (id, email, password_hash, display_name, created_at)
	          VALUES (:id, :email, :password_hash, :display_name, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, query, u); err != nil {
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}
	return &u, nil
}

// GetByID はIDでユーザーを取得する。
func (s *userStore) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return &u, nil
}

// GetByEmail はメールアドレスでユーザーを取得する。
func (s *userStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return &u, nil
}

// List は全ユーザーを登録日時順で返す。担当者選択のために利用される。
func (s *userStore) List(ctx context.Context) ([]User, error) {
	users := []User{}
	err := s.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// UpdateLastLogin は最終ログイン日時を更新する。
func (s *userStore) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("最終ログイン日時の更新に失敗しました: %w", err)
	}
	return nil
}
