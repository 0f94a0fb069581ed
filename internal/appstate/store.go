package appstate

import (
	"log/slog"
	"slices"
	"sync"
)

// Listener は状態遷移の通知を受け取る関数。
// prevとnextはスナップショットであり、書き換えてもStoreには影響しない。
type Listener func(prev, next State, action Action)

type subscription struct {
	id int
	fn Listener
}

type change struct {
	prev   State
	next   State
	action Action
}

// Store はアプリケーション状態を保持する唯一の場所。
// Dispatchは排他的に適用され、適用順にListenerへ通知される。
type Store struct {
	mu        sync.Mutex
	state     State
	logger    *slog.Logger
	listeners []subscription
	nextID    int
	pending   []change
	draining  bool
}

// NewStore は初期状態（Booting）のStoreを生成する。
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		state:  InitialState(),
		logger: logger,
	}
}

// State は現在の状態のスナップショットを返す。
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Dispatch はアクションを適用して状態を遷移させる。
// Listenerはロック外で呼ばれるため、Listener内からDispatchしてもよい。
// その場合の通知は現在の通知が終わった後に順番に行われる。
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, action)
	s.state = next
	s.pending = append(s.pending, change{prev: prev, next: next, action: action})

	s.logger.Debug("状態を遷移しました",
		slog.String("action", ActionName(action)),
		slog.String("stage", string(next.Stage())),
		slog.Int("notifications", len(next.Notifications)),
	)

	// 別のDispatchが通知中であれば、そちらに配送を任せる
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]
		listeners := slices.Clone(s.listeners)
		s.mu.Unlock()

		for _, l := range listeners {
			l.fn(c.prev.clone(), c.next.clone(), c.action)
		}

		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}

// Subscribe はListenerを登録し、登録解除用の関数を返す。
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: l})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool {
			return sub.id == id
		})
	}
}
