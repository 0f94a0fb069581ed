// Package appcontext はアプリケーション全体で共有するコンテキストを提供する。
// 状態Store・通知スケジューラ・セッション復元・テーマ永続化を束ね、
// 画面から呼び出す操作（ログイン、通知表示、テーマ切り替えなど）を公開する。
package appcontext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/hitoshi/bizdesk/internal/appstate"
	"github.com/hitoshi/bizdesk/internal/metrics"
	"github.com/hitoshi/bizdesk/internal/model"
	"github.com/hitoshi/bizdesk/internal/notification"
	"github.com/hitoshi/bizdesk/internal/storage"
	"github.com/hitoshi/bizdesk/internal/theme"
)

// ErrIncompleteLoginResult はAuthenticatorがエラーなしでトークンまたはユーザーを欠いた結果を返したことを示す。
var ErrIncompleteLoginResult = errors.New("login response is missing the token or user")

// Options はProviderの任意設定。ゼロ値のフィールドはデフォルトで補う。
type Options struct {
	Clock           clock.WithDelayedExecution
	Metrics         metrics.MetricsCollector
	Logger          *slog.Logger
	Presenter       theme.Presenter
	DefaultDuration time.Duration
}

// Provider はアプリケーションコンテキストの実体。
// プロセスごとに明示的に生成し、利用側へ引き渡して使う。
type Provider struct {
	store     *appstate.Store
	scheduler *notification.Scheduler
	theme     *theme.Persistence
	storage   storage.Storage
	auth      Authenticator
	profiles  ProfileFetcher
	sanitizer *notification.Sanitizer
	metrics   metrics.MetricsCollector
	clock     clock.WithDelayedExecution
	logger    *slog.Logger

	defaultDuration time.Duration

	initOnce    sync.Once
	detachTheme func()
}

// NewProvider はProviderを生成する。セッション復元はInitで行う。
func NewProvider(auth Authenticator, profiles ProfileFetcher, st storage.Storage, opts Options) *Provider {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = model.DefaultNotificationDuration
	}

	p := &Provider{
		store:           appstate.NewStore(opts.Logger),
		theme:           theme.NewPersistence(st, opts.Presenter, opts.Logger),
		storage:         st,
		auth:            auth,
		profiles:        profiles,
		sanitizer:       notification.NewSanitizer(),
		metrics:         opts.Metrics,
		clock:           opts.Clock,
		logger:          opts.Logger,
		defaultDuration: opts.DefaultDuration,
	}
	p.scheduler = notification.NewScheduler(opts.Clock, p.expire, opts.Logger)
	// Init前のSetThemeも保存されるよう、生成時点で購読しておく
	p.detachTheme = p.theme.Attach(p.store)
	return p
}

// Init はテーマを復元し、保存済みトークンからセッションを解決する。
// 何度呼んでも処理は最初の1回のみ実行される。
func (p *Provider) Init(ctx context.Context) {
	p.initOnce.Do(func() {
		p.theme.Restore(p.store)
		p.bootstrap(ctx)
	})
}

// Login はメールアドレスとパスワードでログインする。
// 失敗時はエラー通知を表示したうえでエラーを返す（呼び出し側で再通知しないこと）。
// 成否にかかわらず、戻る時点でローディング状態は解除されている。
func (p *Provider) Login(ctx context.Context, email, password string) error {
	p.store.Dispatch(appstate.SetLoading{Loading: true})
	defer p.store.Dispatch(appstate.SetLoading{Loading: false})

	result, err := p.auth.Login(ctx, email, password)
	if err == nil && (result == nil || result.User == nil || result.Token == "") {
		err = ErrIncompleteLoginResult
	}
	if err != nil {
		p.metrics.RecordLogin(metrics.ResultFailure)
		p.logger.Info("ログインに失敗しました",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		p.ShowNotification(model.NotificationInput{
			Kind:    model.NotificationError,
			Title:   "Login failed",
			Message: model.ErrorMessage(err),
		})
		return fmt.Errorf("ログインに失敗しました: %w", err)
	}

	if err := p.storage.SetItem(storage.KeyAuthToken, result.Token); err != nil {
		p.logger.Error("認証トークンの保存に失敗しました",
			slog.String("error", err.Error()),
		)
	}
	p.store.Dispatch(appstate.SetUser{User: result.User})
	p.metrics.RecordLogin(metrics.ResultSuccess)
	p.logger.Info("ログインしました", slog.String("user_id", result.User.ID))

	p.ShowNotification(model.NotificationInput{
		Kind:    model.NotificationSuccess,
		Title:   "Welcome back",
		Message: fmt.Sprintf("Signed in as %s", displayName(result.User)),
	})
	return nil
}

// Logout はログアウトする。リモート呼び出しが失敗してもローカルのセッションは必ず破棄する。
func (p *Provider) Logout(ctx context.Context) {
	token, _ := p.storage.GetItem(storage.KeyAuthToken)

	remoteFailed := false
	if err := p.auth.Logout(ctx, token); err != nil {
		remoteFailed = true
		p.logger.Warn("リモートのログアウトに失敗しました。ローカルのセッションは破棄します",
			slog.String("error", err.Error()),
		)
	}
	p.metrics.RecordLogout(remoteFailed)

	if err := p.storage.RemoveItem(storage.KeyAuthToken); err != nil {
		p.logger.Error("認証トークンの削除に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	cleared := len(p.store.State().Notifications)
	p.store.Dispatch(appstate.Logout{})
	p.disarmRemoved()
	p.metrics.RecordNotificationRemoved(metrics.RemovedCleared, cleared)

	p.ShowNotification(model.NotificationInput{
		Kind:    model.NotificationInfo,
		Title:   "Signed out",
		Message: "You have been signed out.",
	})
}

// ShowNotification は通知を追加し、表示時間経過後に自動で消去するタイマーを設定する。
// 採番した通知IDを返す。
func (p *Provider) ShowNotification(in model.NotificationInput) string {
	d := in.Duration
	if d <= 0 {
		d = p.defaultDuration
	}

	n := model.Notification{
		ID:       notification.NewID(p.clock.Now()),
		Kind:     in.Kind,
		Title:    p.sanitizer.Text(in.Title),
		Message:  p.sanitizer.Text(in.Message),
		Duration: d,
		Action:   in.Action,
	}

	p.store.Dispatch(appstate.AddNotification{Notification: n})
	p.scheduler.Arm(n.ID, n.EffectiveDuration())
	// 追加からArmまでの間にLOGOUTやCLEARで消された場合はタイマーを残さない
	if _, ok := p.store.State().Notification(n.ID); !ok {
		p.scheduler.Disarm(n.ID)
	}
	p.metrics.RecordNotificationShown(string(n.Kind))
	return n.ID
}

// HideNotification は通知を消去する。存在しないIDや消去済みのIDでは何もしない。
func (p *Provider) HideNotification(id string) {
	p.scheduler.Disarm(id)
	p.remove(id, metrics.RemovedDismissed)
}

// ClearNotifications はすべての通知とそのタイマーを消去する。
func (p *Provider) ClearNotifications() {
	cleared := len(p.store.State().Notifications)
	p.store.Dispatch(appstate.ClearNotifications{})
	p.disarmRemoved()
	p.metrics.RecordNotificationRemoved(metrics.RemovedCleared, cleared)
}

// ToggleSidebar はサイドバーの折りたたみ状態を切り替える。
func (p *Provider) ToggleSidebar() {
	p.store.Dispatch(appstate.ToggleSidebar{})
}

// SetTheme はテーマを変更する。保存と表示層への反映はテーマ永続化が行う。
func (p *Provider) SetTheme(t model.Theme) {
	p.store.Dispatch(appstate.SetTheme{Theme: t})
}

// SetCurrentPage は現在のページ名を設定する。
func (p *Provider) SetCurrentPage(page string) {
	p.store.Dispatch(appstate.SetCurrentPage{Page: page})
}

// SetBreadcrumbs はパンくずリストを設定する。
func (p *Provider) SetBreadcrumbs(list []model.Breadcrumb) {
	p.store.Dispatch(appstate.SetBreadcrumbs{Breadcrumbs: list})
}

// State は現在の状態のスナップショットを返す。
func (p *Provider) State() appstate.State {
	return p.store.State()
}

// Subscribe は状態遷移の購読を登録する。戻り値で購読を解除できる。
func (p *Provider) Subscribe(l appstate.Listener) func() {
	return p.store.Subscribe(l)
}

// Close は未発火の通知タイマーをすべて停止し、テーマの購読を解除する。
func (p *Provider) Close() {
	p.scheduler.Stop()
	p.detachTheme()
}

// expire は通知タイマーの発火時に呼ばれる。
// 呼び出し時点でスケジューラからタイマーは取り除かれている。
func (p *Provider) expire(id string) {
	p.remove(id, metrics.RemovedExpired)
}

// disarmRemoved はStoreに存在しない通知のタイマーを解除する。
// 一括消去のDispatch後に呼ぶ。消去後に追加された通知のタイマーは残る。
func (p *Provider) disarmRemoved() {
	p.scheduler.Retain(func(id string) bool {
		_, ok := p.store.State().Notification(id)
		return ok
	})
}

func (p *Provider) remove(id, reason string) {
	if _, ok := p.store.State().Notification(id); !ok {
		return
	}
	p.store.Dispatch(appstate.RemoveNotification{ID: id})
	p.metrics.RecordNotificationRemoved(reason, 1)
}

func displayName(u *model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
