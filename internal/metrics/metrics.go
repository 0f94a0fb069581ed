// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// 通知削除理由ラベルの値
const (
	RemovedExpired   = "expired"
	RemovedDismissed = "dismissed"
	RemovedCleared   = "cleared"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ログイン・ログアウト・セッション解決はサーバーのハンドラーとクライアントのProviderの両方が記録する。
// 通知とコラボレーターのレイテンシはクライアントのみが記録する。
type MetricsCollector interface {
	RecordLogin(result string)
	RecordLogout(remoteFailed bool)
	RecordSessionResolve(result string)
	RecordNotificationShown(kind string)
	RecordNotificationRemoved(reason string, count int)
	RecordCollaboratorLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins               *prometheus.CounterVec
	logouts              *prometheus.CounterVec
	sessionResolves      *prometheus.CounterVec
	notificationsShown   *prometheus.CounterVec
	notificationsRemoved *prometheus.CounterVec
	collaboratorLatency  *prometheus.HistogramVec
	httpStatus           *prometheus.CounterVec
}

func newCollector() *Collector {
	return &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_login_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_logout_total",
			Help: "ログアウトの合計数（セッション破棄の成否別）",
		}, []string{"remote"}),
		sessionResolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_session_resolve_total",
			Help: "トークンからのセッション解決の合計数（結果別）",
		}, []string{"result"}),
		notificationsShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_notifications_shown_total",
			Help: "表示された通知の合計数（種別別）",
		}, []string{"kind"}),
		notificationsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_notifications_removed_total",
			Help: "削除された通知の合計数（理由別）",
		}, []string{"reason"}),
		collaboratorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizdesk_collaborator_latency_seconds",
			Help:    "認証コラボレーター呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}
}

// NewCollector はAPIサーバー用のCollectorを生成する。
// レジストリにはサーバーで記録される系列（ログイン、ログアウト、セッション解決、HTTPステータス）のみを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := newCollector()
	reg.MustRegister(
		c.logins,
		c.logouts,
		c.sessionResolves,
		c.httpStatus,
	)
	return c
}

// NewClientCollector はCLIクライアント用のCollectorを生成する。
// HTTPステータス以外の系列をすべて登録する。
func NewClientCollector(reg prometheus.Registerer) *Collector {
	c := newCollector()
	reg.MustRegister(
		c.logins,
		c.logouts,
		c.sessionResolves,
		c.notificationsShown,
		c.notificationsRemoved,
		c.collaboratorLatency,
	)
	return c
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// RecordLogout はログアウトを記録する。
func (c *Collector) RecordLogout(remoteFailed bool) {
	remote := ResultSuccess
	if remoteFailed {
		remote = ResultFailure
	}
	c.logouts.WithLabelValues(remote).Inc()
}

// RecordSessionResolve はセッション解決の結果を記録する。
func (c *Collector) RecordSessionResolve(result string) {
	c.sessionResolves.WithLabelValues(result).Inc()
}

// RecordNotificationShown は通知の表示を記録する。
func (c *Collector) RecordNotificationShown(kind string) {
	c.notificationsShown.WithLabelValues(kind).Inc()
}

// RecordNotificationRemoved は通知の削除を記録する。
func (c *Collector) RecordNotificationRemoved(reason string, count int) {
	if count <= 0 {
		return
	}
	c.notificationsRemoved.WithLabelValues(reason).Add(float64(count))
}

// RecordCollaboratorLatency はコラボレーター呼び出しのレイテンシを記録する。
func (c *Collector) RecordCollaboratorLatency(operation string, duration time.Duration) {
	c.collaboratorLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordLogin(string) {}
func (Nop) RecordLogout(bool) {}
func (Nop) RecordSessionResolve(string) {}
func (Nop) RecordNotificationShown(string) {}
func (Nop) RecordNotificationRemoved(string, int) {}
func (Nop) RecordCollaboratorLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile はgathererの内容をnode_exporterのtextfileコレクター形式でpathに書き出す。
// 短命なCLIプロセスのメトリクスを残すために使う。
func WriteTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
