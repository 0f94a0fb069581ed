package appcontext

import (
	"context"

	"github.com/hitoshi/bizdesk/internal/model"
)

// Authenticator は認証コラボレーターのインターフェース。
type Authenticator interface {
	// Login はメールアドレスとパスワードを検証し、トークンとユーザーを返す。
	// 失敗時のエラーは*model.APIErrorを含むことがあり、そのMessageが通知に表示される。
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	// Logout はトークンに紐づくリモートセッションを破棄する。
	Logout(ctx context.Context, token string) error
}

// ProfileFetcher はプロフィールコラボレーターのインターフェース。
type ProfileFetcher interface {
	GetProfile(ctx context.Context, token string) (*model.User, error)
}
