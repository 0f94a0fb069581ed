package model

import "time"

// NotificationKind は通知の種別（重要度）を表す。
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
	NotificationWarning NotificationKind = "warning"
	NotificationInfo    NotificationKind = "info"
)

// DefaultNotificationDuration は表示時間未指定時の自動消去までの時間。
const DefaultNotificationDuration = 5 * time.Second

// NotificationAction は通知に1つだけ付与できる操作ボタン。
type NotificationAction struct {
	Label   string
	OnClick func()
}

// NotificationInput は通知の表示要求。IDは表示時に採番される。
type NotificationInput struct {
	Kind     NotificationKind
	Title    string
	Message  string
	Duration time.Duration
	Action   *NotificationAction
}

// Notification は表示中の一時的な通知を表す。
type Notification struct {
	ID       string
	Kind     NotificationKind
	Title    string
	Message  string
	Duration time.Duration
	Action   *NotificationAction
}

// EffectiveDuration は0以下の表示時間をデフォルト値に置き換えて返す。
func (n Notification) EffectiveDuration() time.Duration {
	if n.Duration <= 0 {
		return DefaultNotificationDuration
	}
	return n.Duration
}
