package appstate

import (
	"slices"

	"github.com/hitoshi/bizdesk/internal/model"
)

// Reduce は現在の状態とアクションから次の状態を計算する。
// 副作用を持たない全域関数であり、引数の状態を書き換えない。
// 未知のアクションに対しては状態をそのまま返す。
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case SetUser:
		s.User = a.User
		s.IsAuthenticated = a.User != nil
		s.IsLoading = false
		return s

	case SetLoading:
		s.IsLoading = a.Loading
		return s

	case Logout:
		// テーマのみ引き継いで初期化する
		next := InitialState()
		next.IsLoading = false
		next.Theme = s.Theme
		return next

	case AddNotification:
		s.Notifications = append(slices.Clone(s.Notifications), a.Notification)
		return s

	case RemoveNotification:
		idx := slices.IndexFunc(s.Notifications, func(n model.Notification) bool {
			return n.ID == a.ID
		})
		if idx < 0 {
			return s
		}
		s.Notifications = slices.Delete(slices.Clone(s.Notifications), idx, idx+1)
		return s

	case ClearNotifications:
		s.Notifications = []model.Notification{}
		return s

	case SetTheme:
		s.Theme = a.Theme
		return s

	case ToggleSidebar:
		s.SidebarCollapsed = !s.SidebarCollapsed
		return s

	case SetCurrentPage:
		s.CurrentPage = a.Page
		return s

	case SetBreadcrumbs:
		s.Breadcrumbs = slices.Clone(a.Breadcrumbs)
		if s.Breadcrumbs == nil {
			s.Breadcrumbs = []model.Breadcrumb{}
		}
		return s

	default:
		return s
	}
}
