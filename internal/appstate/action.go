package appstate

import "github.com/hitoshi/bizdesk/internal/model"

// Action はStoreに送る状態遷移要求。
// 実装はこのパッケージ内の型に限定され、Reduceで全種別を網羅的に処理する。
type Action interface {
	actionName() string
}

// SetUser はセッションの主体を設定する。nilの場合は未認証になる。
type SetUser struct{ User *model.User }

// SetLoading はローディング状態のみを変更する。
type SetLoading struct{ Loading bool }

// Logout はテーマ以外の状態を初期化し、未認証状態にする。
type Logout struct{}

// AddNotification は通知を末尾に追加する。
type AddNotification struct{ Notification model.Notification }

// RemoveNotification は指定IDの通知を削除する。存在しない場合は何もしない。
type RemoveNotification struct{ ID string }

// ClearNotifications は全ての通知を削除する。
type ClearNotifications struct{}

// SetTheme はテーマを変更する。
type SetTheme struct{ Theme model.Theme }

// ToggleSidebar はサイドバーの折りたたみ状態を反転する。
type ToggleSidebar struct{}

// SetCurrentPage は現在のページ名を設定する。
type SetCurrentPage struct{ Page string }

// SetBreadcrumbs はパンくずリストを置き換える。
type SetBreadcrumbs struct{ Breadcrumbs []model.Breadcrumb }

func (SetUser) actionName() string            { return "SET_USER" }
func (SetLoading) actionName() string         { return "SET_LOADING" }
func (Logout) actionName() string             { return "LOGOUT" }
func (AddNotification) actionName() string    { return "ADD_NOTIFICATION" }
func (RemoveNotification) actionName() string { return "REMOVE_NOTIFICATION" }
func (ClearNotifications) actionName() string { return "CLEAR_NOTIFICATIONS" }
func (SetTheme) actionName() string           { return "SET_THEME" }
func (ToggleSidebar) actionName() string      { return "TOGGLE_SIDEBAR" }
func (SetCurrentPage) actionName() string     { return "SET_CURRENT_PAGE" }
func (SetBreadcrumbs) actionName() string     { return "SET_BREADCRUMBS" }

// ActionName はログ出力用のアクション名を返す。
func ActionName(a Action) string {
	if a == nil {
		return ""
	}
	return a.actionName()
}
