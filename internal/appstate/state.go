// Package appstate はアプリケーション全体で共有する状態と、
// その状態遷移（reducer）を提供する。
package appstate

import (
	"slices"

	"github.com/hitoshi/bizdesk/internal/model"
)

// Stage はローディング状態と認証状態から導出される状態機械の段階。
type Stage string

const (
	// StageBooting は起動直後でセッション解決前の段階。
	StageBooting Stage = "booting"
	// StageAnonymous は未認証の段階。
	StageAnonymous Stage = "anonymous"
	// StageAuthenticated は認証済みの段階。
	StageAuthenticated Stage = "authenticated"
)

// State はアプリケーション全体の状態。
// 変更はStore.Dispatch経由のReduceでのみ行う。
type State struct {
	User             *model.User
	IsAuthenticated  bool
	IsLoading        bool
	Notifications    []model.Notification
	Theme            model.Theme
	SidebarCollapsed bool
	CurrentPage      string
	Breadcrumbs      []model.Breadcrumb
}

// InitialState は起動直後（Booting）の状態を返す。
func InitialState() State {
	return State{
		IsLoading:     true,
		Theme:         model.ThemeLight,
		Notifications: []model.Notification{},
		Breadcrumbs:   []model.Breadcrumb{},
	}
}

// Stage は現在の段階を返す。
// ユーザー未確定のままローディング中であればBooting。
// ユーザーがいればログイン処理中などでローディング中でもAuthenticatedとする。
func (s State) Stage() Stage {
	switch {
	case s.IsLoading && s.User == nil:
		return StageBooting
	case s.User == nil:
		return StageAnonymous
	default:
		return StageAuthenticated
	}
}

// HasRole はログイン中のユーザーが指定ロールを持つかを返す。
func (s State) HasRole(role model.Role) bool {
	return s.User != nil && s.User.Role == role
}

// Notification は指定IDの通知を返す。
func (s State) Notification(id string) (model.Notification, bool) {
	for _, n := range s.Notifications {
		if n.ID == id {
			return n, true
		}
	}
	return model.Notification{}, false
}

// clone はスライスとユーザーをコピーした状態を返す。
// Store外に渡した状態から内部状態が書き換えられないようにする。
func (s State) clone() State {
	c := s
	if s.User != nil {
		u := *s.User
		c.User = &u
	}
	c.Notifications = slices.Clone(s.Notifications)
	if c.Notifications == nil {
		c.Notifications = []model.Notification{}
	}
	c.Breadcrumbs = slices.Clone(s.Breadcrumbs)
	if c.Breadcrumbs == nil {
		c.Breadcrumbs = []model.Breadcrumb{}
	}
	return c
}
