// Package notification は一時通知の自動消去スケジューラと、
// 通知IDの採番、通知テキストのサニタイズを提供する。
package notification

import (
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ExpireFunc は通知の表示時間が経過したときに呼ばれる関数。
type ExpireFunc func(id string)

type armedTimer struct {
	timer clock.Timer
	gen   uint64
}

// Scheduler は通知IDごとの消去タイマーを管理する。
// 通知自体の所有権は持たず、表示時間経過後にExpireFuncを1回だけ呼ぶ。
type Scheduler struct {
	clock    clock.WithDelayedExecution
	onExpire ExpireFunc
	logger   *slog.Logger

	mu      sync.Mutex
	timers  map[string]armedTimer
	gen     uint64
	stopped bool
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// clkがnilの場合は実時間のクロックを使用する。
func NewScheduler(clk clock.WithDelayedExecution, onExpire ExpireFunc, logger *slog.Logger) *Scheduler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		clock:    clk,
		onExpire: onExpire,
		logger:   logger,
		timers:   make(map[string]armedTimer),
	}
}

// Arm は指定IDの通知をd経過後に消去するタイマーを設定する。
// 同一IDで未発火のタイマーがある場合は置き換える。
// Stop後の呼び出しは無視する。
func (s *Scheduler) Arm(id string, d time.Duration) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	prev, hadPrev := s.timers[id]
	s.gen++
	gen := s.gen
	// タイマー生成前に世代だけ登録しておき、生成直後の発火も取りこぼさない
	s.timers[id] = armedTimer{gen: gen}
	s.mu.Unlock()

	// クロックのロックと s.mu を同時に保持しないよう、Stop/AfterFuncはロック外で呼ぶ
	if hadPrev && prev.timer != nil {
		prev.timer.Stop()
	}
	t := s.clock.AfterFunc(d, func() { s.fire(id, gen) })

	s.mu.Lock()
	at, ok := s.timers[id]
	if ok && at.gen == gen {
		at.timer = t
		s.timers[id] = at
	}
	s.mu.Unlock()

	if !ok || at.gen != gen {
		// 生成中にDisarm、Stop、または再設定された
		t.Stop()
		return
	}

	s.logger.Debug("通知タイマーを設定しました",
		slog.String("notification_id", id),
		slog.Duration("duration", d),
	)
}

// Disarm は指定IDのタイマーを取り消す。
// 発火済みまたは未登録のIDに対しては何もしない。
func (s *Scheduler) Disarm(id string) bool {
	s.mu.Lock()
	at, ok := s.timers[id]
	if ok {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if at.timer != nil {
		at.timer.Stop()
	}
	return true
}

// DisarmAll は全てのタイマーを取り消し、取り消した件数を返す。
func (s *Scheduler) DisarmAll() int {
	s.mu.Lock()
	armed := s.timers
	s.timers = make(map[string]armedTimer)
	s.mu.Unlock()

	for _, at := range armed {
		if at.timer != nil {
			at.timer.Stop()
		}
	}
	return len(armed)
}

// Retain はkeepがfalseを返したIDのタイマーを取り消し、取り消した件数を返す。
// keepはロック外で呼ぶため、keep内で他のロックを取ってもよい。
func (s *Scheduler) Retain(keep func(id string) bool) int {
	s.mu.Lock()
	ids := make([]string, 0, len(s.timers))
	for id := range s.timers {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	n := 0
	for _, id := range ids {
		if !keep(id) && s.Disarm(id) {
			n++
		}
	}
	return n
}

// Pending は指定IDのタイマーが未発火で残っているかを返す。
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Len は未発火のタイマー数を返す。
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop は全てのタイマーを取り消し、以降のArmを無視する。
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.DisarmAll()
}

// fire はタイマー発火時に呼ばれる。
// 登録を先に外してからExpireFuncを呼ぶため、ExpireFunc内のDisarmは空振りになる。
func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	at, ok := s.timers[id]
	if !ok || at.gen != gen {
		// Disarm済み、または再設定された古いタイマー
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	s.logger.Debug("通知タイマーが発火しました", slog.String("notification_id", id))

	if s.onExpire != nil {
		s.onExpire(id)
	}
}
