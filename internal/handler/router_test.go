package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/bizdesk/internal/auth"
	"github.com/hitoshi/bizdesk/internal/metrics"
	"github.com/hitoshi/bizdesk/internal/middleware"
	"github.com/hitoshi/bizdesk/internal/model"
)

// --- モック定義 ---

type mockSessionFinder struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinder) FindByID(_ context.Context, id string) (*model.Session, error) {
	return m.sessions[id], nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

// newTestRouter はモック依存でルーターを構築する。
func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	if deps.RateLimiter == nil {
		deps.RateLimiter = middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(10))
		t.Cleanup(deps.RateLimiter.Stop)
	}
	if deps.SessionFinder == nil {
		deps.SessionFinder = &mockSessionFinder{sessions: map[string]*model.Session{
			"valid": {ID: "valid", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)},
		}}
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.UserService == nil {
		deps.UserService = &mockUserService{}
	}
	if deps.CORSAllowedOrigin == "" {
		deps.CORSAllowedOrigin = "http://localhost:3000"
	}
	return NewRouter(deps)
}

func TestNewRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		checker    HealthChecker
		wantStatus int
	}{
		{name: "no checker", checker: nil, wantStatus: http.StatusOK},
		{name: "db reachable", checker: &mockHealthChecker{}, wantStatus: http.StatusOK},
		{name: "db down", checker: &mockHealthChecker{err: errors.New("refused")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &RouterDeps{HealthChecker: tt.checker})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewRouter_AuthRoutes(t *testing.T) {
	r := newTestRouter(t, &RouterDeps{
		AuthService: &mockAuthService{
			loginFn: func(ctx context.Context, email, password string) (*model.LoginResult, error) {
				return &model.LoginResult{Token: "t", User: &model.User{ID: "u"}}, nil
			},
			getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
				return &model.User{ID: "u"}, nil
			},
		},
	})

	tests := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"x"}`, http.StatusOK},
		{http.MethodPost, "/api/auth/logout", "", http.StatusNoContent},
		{http.MethodGet, "/api/auth/me", "", http.StatusOK},
		{http.MethodGet, "/api/auth/login", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Authorization", "Bearer valid")
			w := httptest.NewRecorder()

			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestNewRouter_LoginIsRateLimitedPerIP(t *testing.T) {
	cfg := middleware.DefaultRateLimiterConfig(1)
	rl := middleware.NewRateLimiter(cfg)
	defer rl.Stop()

	r := newTestRouter(t, &RouterDeps{
		RateLimiter: rl,
		AuthService: &mockAuthService{
			loginFn: func(ctx context.Context, email, password string) (*model.LoginResult, error) {
				return &model.LoginResult{Token: "t", User: &model.User{ID: "u"}}, nil
			},
		},
	})

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@b.com","password":"x"}`))
		req.RemoteAddr = "192.0.2.10:5000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}
}

func TestNewRouter_WithdrawRequiresSession(t *testing.T) {
	var withdrawn string
	r := newTestRouter(t, &RouterDeps{
		UserService: &mockUserService{
			withdrawFn: func(ctx context.Context, userID string) error {
				withdrawn = userID
				return nil
			},
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/users/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("without token: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer valid")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("with token: status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if withdrawn != "user-1" {
		t.Errorf("withdrawn user = %q, want user-1", withdrawn)
	}
}

func TestNewRouter_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	r := newTestRouter(t, &RouterDeps{
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),
	})

	// 401を1回発生させる
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `bizdesk_http_status_total{status_code="401"} 1`) {
		t.Errorf("metrics output missing 401 counter:\n%s", w.Body.String())
	}
}

func TestNewRouter_MetricsRecordAuthOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := newTestRouter(t, &RouterDeps{
		RateLimiter:    newRouterTestLimiter(t, 100),
		Metrics:        metrics.NewCollector(reg),
		MetricsHandler: metrics.Handler(reg),
		AuthService: &mockAuthService{
			loginFn: func(ctx context.Context, email, password string) (*model.LoginResult, error) {
				if password != "correct-horse" {
					return nil, auth.ErrInvalidCredentials
				}
				return &model.LoginResult{Token: "valid", User: &model.User{ID: "user-1"}}, nil
			},
			logoutFn: func(ctx context.Context, sessionID string) error {
				return errors.New("db down")
			},
			getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
				if sessionID != "valid" {
					return nil, auth.ErrSessionNotFound
				}
				return &model.User{ID: "user-1"}, nil
			},
		},
	})

	send := func(method, path, body, token string) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	send(http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"wrong"}`, "")
	send(http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"wrong"}`, "")
	send(http.MethodPost, "/api/auth/login", `{"email":"a@b.com","password":"correct-horse"}`, "")
	send(http.MethodGet, "/api/auth/me", "", "valid")
	send(http.MethodGet, "/api/auth/me", "", "stale")
	send(http.MethodPost, "/api/auth/logout", "", "valid")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()

	for _, want := range []string{
		`bizdesk_login_total{result="failure"} 2`,
		`bizdesk_login_total{result="success"} 1`,
		`bizdesk_session_resolve_total{result="success"} 1`,
		`bizdesk_session_resolve_total{result="failure"} 1`,
		`bizdesk_logout_total{remote="failure"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s:\n%s", want, body)
		}
	}
	if strings.Contains(body, "bizdesk_notifications_shown_total") {
		t.Error("server metrics must not export client notification series")
	}
}

// newRouterTestLimiter はテスト終了時に停止するレートリミッターを返す。
func newRouterTestLimiter(t *testing.T, perMinute int) *middleware.RateLimiter {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(perMinute))
	t.Cleanup(rl.Stop)
	return rl
}

func TestNewRouter_MetricsNotMountedWithoutHandler(t *testing.T) {
	r := newTestRouter(t, &RouterDeps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	r := newTestRouter(t, &RouterDeps{CORSAllowedOrigin: "https://app.example.com"})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
