// Package theme はテーマ設定の永続化と表示層への反映を提供する。
package theme

import (
	"log/slog"

	"github.com/hitoshi/bizdesk/internal/appstate"
	"github.com/hitoshi/bizdesk/internal/model"
	"github.com/hitoshi/bizdesk/internal/storage"
)

// Presenter はテーマを表示層へ反映するインターフェース。
// ダークモードを示す単一のフラグのみを扱う。
type Presenter interface {
	SetDarkMode(dark bool)
}

// StateStore はPersistenceが必要とするStoreの部分集合。
type StateStore interface {
	Dispatch(action appstate.Action)
	Subscribe(l appstate.Listener) func()
}

// Persistence はテーマの変更をストレージと表示層に同期する。
type Persistence struct {
	storage   storage.Storage
	presenter Presenter
	logger    *slog.Logger
}

// NewPersistence はPersistenceを生成する。presenterはnilでもよい。
func NewPersistence(s storage.Storage, presenter Presenter, logger *slog.Logger) *Persistence {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persistence{
		storage:   s,
		presenter: presenter,
		logger:    logger,
	}
}

// Attach はStoreを購読し、SetThemeが適用されるたびに保存と反映を行う。
// 戻り値で購読を解除できる。
func (p *Persistence) Attach(store StateStore) func() {
	return store.Subscribe(func(prev, next appstate.State, action appstate.Action) {
		if _, ok := action.(appstate.SetTheme); !ok {
			return
		}
		p.apply(next.Theme)
	})
}

// Restore は保存済みのテーマを読み込み、存在すればSetThemeを発行する。
// 不正な値は無視する。
func (p *Persistence) Restore(store StateStore) (model.Theme, bool) {
	raw, ok := p.storage.GetItem(storage.KeyTheme)
	if !ok {
		return "", false
	}
	t, valid := model.ParseTheme(raw)
	if !valid {
		p.logger.Warn("保存済みテーマが不正なため無視します", slog.String("theme", raw))
		return "", false
	}

	store.Dispatch(appstate.SetTheme{Theme: t})
	return t, true
}

func (p *Persistence) apply(t model.Theme) {
	if err := p.storage.SetItem(storage.KeyTheme, string(t)); err != nil {
		p.logger.Error("テーマの保存に失敗しました",
			slog.String("theme", string(t)),
			slog.String("error", err.Error()),
		)
	}
	if p.presenter != nil {
		p.presenter.SetDarkMode(t == model.ThemeDark)
	}
}
