package appstate

import (
	"sync"
	"testing"

	"github.com/hitoshi/bizdesk/internal/model"
)

func TestNewStore_StartsBooting(t *testing.T) {
	s := NewStore(nil)

	if s.State().Stage() != StageBooting {
		t.Errorf("Stage() = %q, want %q", s.State().Stage(), StageBooting)
	}
}

func TestStore_Dispatch_AppliesInOrder(t *testing.T) {
	s := NewStore(nil)

	s.Dispatch(SetUser{User: testUser()})
	s.Dispatch(SetTheme{Theme: model.ThemeDark})
	s.Dispatch(Logout{})

	st := s.State()
	if st.Stage() != StageAnonymous {
		t.Errorf("Stage() = %q, want %q", st.Stage(), StageAnonymous)
	}
	if st.Theme != model.ThemeDark {
		t.Errorf("Theme = %q, want dark", st.Theme)
	}
}

func TestStore_State_ReturnsSnapshot(t *testing.T) {
	s := NewStore(nil)
	s.Dispatch(SetUser{User: testUser()})
	s.Dispatch(AddNotification{Notification: model.Notification{ID: "a"}})

	snap := s.State()
	snap.User.Name = "mutated"
	snap.Notifications[0].ID = "mutated"

	st := s.State()
	if st.User.Name != "Test User" {
		t.Errorf("User.Name = %q, snapshot mutation leaked into store", st.User.Name)
	}
	if st.Notifications[0].ID != "a" {
		t.Errorf("Notifications[0].ID = %q, snapshot mutation leaked into store", st.Notifications[0].ID)
	}
}

func TestStore_Subscribe_ReceivesEveryTransition(t *testing.T) {
	s := NewStore(nil)

	var names []string
	s.Subscribe(func(prev, next State, action Action) {
		names = append(names, ActionName(action))
	})

	s.Dispatch(SetLoading{Loading: true})
	s.Dispatch(ToggleSidebar{})
	s.Dispatch(ToggleSidebar{})

	want := []string{"SET_LOADING", "TOGGLE_SIDEBAR", "TOGGLE_SIDEBAR"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestStore_Subscribe_PrevAndNext(t *testing.T) {
	s := NewStore(nil)

	var gotPrev, gotNext model.Theme
	s.Subscribe(func(prev, next State, action Action) {
		gotPrev, gotNext = prev.Theme, next.Theme
	})

	s.Dispatch(SetTheme{Theme: model.ThemeDark})

	if gotPrev != model.ThemeLight || gotNext != model.ThemeDark {
		t.Errorf("prev=%q next=%q, want light -> dark", gotPrev, gotNext)
	}
}

func TestStore_Unsubscribe_StopsNotifications(t *testing.T) {
	s := NewStore(nil)

	count := 0
	unsubscribe := s.Subscribe(func(prev, next State, action Action) {
		count++
	})

	s.Dispatch(ToggleSidebar{})
	unsubscribe()
	s.Dispatch(ToggleSidebar{})

	if count != 1 {
		t.Errorf("listener called %d times, want 1", count)
	}
}

func TestStore_ListenerMayDispatch(t *testing.T) {
	s := NewStore(nil)

	var order []string
	s.Subscribe(func(prev, next State, action Action) {
		order = append(order, ActionName(action))
		if _, ok := action.(SetCurrentPage); ok {
			s.Dispatch(SetBreadcrumbs{Breadcrumbs: []model.Breadcrumb{{Label: next.CurrentPage}}})
		}
	})

	s.Dispatch(SetCurrentPage{Page: "Products"})

	if len(order) != 2 || order[0] != "SET_CURRENT_PAGE" || order[1] != "SET_BREADCRUMBS" {
		t.Errorf("order = %v", order)
	}
	if bc := s.State().Breadcrumbs; len(bc) != 1 || bc[0].Label != "Products" {
		t.Errorf("Breadcrumbs = %+v", bc)
	}
}

func TestStore_ConcurrentDispatch_NoLostUpdates(t *testing.T) {
	s := NewStore(nil)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(ToggleSidebar{})
		}()
	}
	wg.Wait()

	// 偶数回の反転なので元に戻る
	if s.State().SidebarCollapsed {
		t.Error("SidebarCollapsed should be false after an even number of toggles")
	}
}
