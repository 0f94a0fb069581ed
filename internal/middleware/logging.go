package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/bizdesk/internal/metrics"
)

// quietPaths はDockerヘルスチェックやスクレイプで頻繁に呼ばれるため、成功時はDebugで記録する。
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// requestLogKey はリクエストログに後から値を書き足すための領域を格納するキー。
var requestLogKey = contextKey("request_log")

// requestLogFields は内側のミドルウェアが確定させた値を外側のロギングへ渡す。
// コンテキストは内側へしか伝わらないため、ポインタを共有する。
type requestLogFields struct {
	userID string
}

// annotateRequestLog は認証済みユーザーIDをリクエストログに記録させる。
// ロギングミドルウェアの外で呼ばれた場合は何もしない。
func annotateRequestLog(ctx context.Context, userID string) {
	if f, ok := ctx.Value(requestLogKey).(*requestLogFields); ok {
		f.userID = userID
	}
}

// responseRecorder はステータスコードと書き込みバイト数を記録する。
type responseRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.written {
		rr.status = code
		rr.written = true
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.written {
		rr.status = http.StatusOK
		rr.written = true
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

// NewLoggingMiddleware はリクエストごとにJSON構造化ログを1行出力するミドルウェアを返す。
// ログにはmethod、path、status、bytes、remote_ip、duration_ms、user_id（認証済みの場合）を含む。
// ステータスコードはメトリクスにも記録する。mがnilの場合は記録しない。
func NewLoggingMiddleware(logger *slog.Logger, m metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if m == nil {
		m = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			fields := &requestLogFields{}

			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestLogKey, fields)))

			m.RecordHTTPStatus(rec.status)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int("bytes", rec.bytes),
				slog.String("remote_ip", clientIP(r)),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			userID := fields.userID
			if userID == "" {
				userID, _ = UserIDFromContext(r.Context())
			}
			if userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			logger.Log(r.Context(), requestLogLevel(r.URL.Path, rec.status), "http_request", args...)
		})
	}
}

// requestLogLevel はステータスコードに応じたログレベルを返す。
func requestLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case quietPaths[path]:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
