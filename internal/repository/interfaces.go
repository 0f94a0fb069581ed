// Package repository はユーザーとセッションの永続化を扱う。
//
// 検索系のメソッドは該当行がない場合にエラーではなくnilを返す。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/bizdesk/internal/model"
)

// ErrEmailTaken は users.email の一意制約違反。
var ErrEmailTaken = errors.New("email address is already registered")

// UserRepository は users テーブルへのアクセス。
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail は大文字小文字を区別せずに照合する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create は重複時に ErrEmailTaken を返す。
	Create(ctx context.Context, user *model.User) error
	// DeleteByID はユーザーを削除する。sessions は外部キーでCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository は sessions テーブルへのアクセス。
// セッションIDはクライアントが保持するベアラートークンそのもの。
type SessionRepository interface {
	Create(ctx context.Context, session *model.Session) error
	// FindByID は有効期限内のセッションのみ返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
}
