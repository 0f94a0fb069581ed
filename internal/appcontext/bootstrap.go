package appcontext

import (
	"context"
	"log/slog"

	"github.com/hitoshi/bizdesk/internal/appstate"
	"github.com/hitoshi/bizdesk/internal/metrics"
	"github.com/hitoshi/bizdesk/internal/storage"
)

// bootstrap は保存済みの認証トークンからセッションを解決する。
// 失敗はすべて未ログイン扱いとし、通知は表示しない。
// どの経路でも最後にSET_USERを発行するため、Booting状態のまま残ることはない。
func (p *Provider) bootstrap(ctx context.Context) {
	token, ok := p.storage.GetItem(storage.KeyAuthToken)
	if !ok || token == "" {
		p.logger.Debug("保存済みの認証トークンはありません")
		p.store.Dispatch(appstate.SetUser{User: nil})
		return
	}

	user, err := p.profiles.GetProfile(ctx, token)
	if err != nil || user == nil {
		attrs := []any{}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		p.logger.Info("保存済みトークンからセッションを復元できませんでした", attrs...)
		p.metrics.RecordSessionResolve(metrics.ResultFailure)

		if err := p.storage.RemoveItem(storage.KeyAuthToken); err != nil {
			p.logger.Error("認証トークンの削除に失敗しました",
				slog.String("error", err.Error()),
			)
		}
		p.store.Dispatch(appstate.SetUser{User: nil})
		return
	}

	p.metrics.RecordSessionResolve(metrics.ResultSuccess)
	p.logger.Info("セッションを復元しました", slog.String("user_id", user.ID))
	p.store.Dispatch(appstate.SetUser{User: user})
}
