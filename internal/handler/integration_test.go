package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/bizdesk/internal/appcontext"
	"github.com/hitoshi/bizdesk/internal/appstate"
	"github.com/hitoshi/bizdesk/internal/auth"
	"github.com/hitoshi/bizdesk/internal/authclient"
	"github.com/hitoshi/bizdesk/internal/middleware"
	"github.com/hitoshi/bizdesk/internal/model"
	"github.com/hitoshi/bizdesk/internal/repository"
	"github.com/hitoshi/bizdesk/internal/storage"
	"github.com/hitoshi/bizdesk/internal/user"
)

// --- インメモリリポジトリ ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func (m *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *memUserRepo) Create(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	m.users[u.ID] = u
	return nil
}

func (m *memUserRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
}

func (m *memSessionRepo) Create(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return s, nil
}

func (m *memSessionRepo) DeleteByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memSessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

var _ repository.UserRepository = (*memUserRepo)(nil)
var _ repository.SessionRepository = (*memSessionRepo)(nil)

// startBackend は実際の認証サービスでAPIサーバーを起動し、
// そこに接続するクライアントを返す。
func startBackend(t *testing.T) (*authclient.Client, *memSessionRepo) {
	t.Helper()

	users := &memUserRepo{users: map[string]*model.User{}}
	sessions := &memSessionRepo{sessions: map[string]*model.Session{}}
	authSvc := auth.NewService(users, sessions, auth.ServiceConfig{SessionMaxAge: 3600, BcryptCost: bcrypt.MinCost})

	if _, err := authSvc.CreateUser(context.Background(), auth.CreateUserInput{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "correct-horse",
		Role:     model.RoleCreator,
	}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(100))
	t.Cleanup(rl.Stop)

	discard := slog.New(slog.NewJSONHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(&RouterDeps{
		SessionFinder:     sessions,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            discard,
		AuthService:       authSvc,
		UserService:       user.NewService(users, sessions, discard),
	}))
	t.Cleanup(srv.Close)

	return authclient.NewClient(srv.URL, srv.Client(), nil, nil, discard), sessions
}

func TestIntegration_LoginRestoreLogout(t *testing.T) {
	client, sessions := startBackend(t)
	st := storage.NewMemoryStorage()
	ctx := context.Background()

	// 1. 初回起動: トークンなし
	p := appcontext.NewProvider(client, client, st, appcontext.Options{})
	p.Init(ctx)
	if got := p.State().Stage(); got != appstate.StageAnonymous {
		t.Fatalf("stage after first Init = %q, want anonymous", got)
	}

	// 2. ログイン
	if err := p.Login(ctx, "alice@example.com", "correct-horse"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	s := p.State()
	if !s.IsAuthenticated || s.User.Email != "alice@example.com" || !s.HasRole(model.RoleCreator) {
		t.Fatalf("state after login = %+v", s)
	}
	token, ok := st.GetItem(storage.KeyAuthToken)
	if !ok || token == "" {
		t.Fatal("token should be persisted after login")
	}
	p.Close()

	// 3. 再起動: 保存済みトークンからセッションを復元
	restarted := appcontext.NewProvider(client, client, st, appcontext.Options{})
	defer restarted.Close()
	restarted.Init(ctx)
	if got := restarted.State(); !got.IsAuthenticated || got.User.Name != "Alice" {
		t.Fatalf("restored state = %+v", got)
	}

	// 4. ログアウト: サーバー側のセッションも破棄される
	restarted.Logout(ctx)
	if restarted.State().IsAuthenticated {
		t.Error("should be anonymous after logout")
	}
	if _, ok := st.GetItem(storage.KeyAuthToken); ok {
		t.Error("token should be removed after logout")
	}
	if got, _ := sessions.FindByID(ctx, token); got != nil {
		t.Error("server session should be deleted after logout")
	}
}

func TestIntegration_WrongPasswordShowsServerMessage(t *testing.T) {
	client, _ := startBackend(t)
	p := appcontext.NewProvider(client, client, storage.NewMemoryStorage(), appcontext.Options{})
	defer p.Close()
	p.Init(context.Background())

	err := p.Login(context.Background(), "alice@example.com", "wrong")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCredentials {
		t.Fatalf("Login() error = %v, want INVALID_CREDENTIALS", err)
	}
	s := p.State()
	if s.IsAuthenticated || s.IsLoading {
		t.Errorf("state = %+v, want anonymous and not loading", s)
	}
	if len(s.Notifications) != 1 || s.Notifications[0].Message != "Invalid credentials" {
		t.Errorf("notifications = %+v", s.Notifications)
	}
}

func TestIntegration_ExpiredTokenFallsBackToAnonymous(t *testing.T) {
	client, _ := startBackend(t)
	st := storage.NewMemoryStorage()
	if err := st.SetItem(storage.KeyAuthToken, "stale-token"); err != nil {
		t.Fatal(err)
	}

	p := appcontext.NewProvider(client, client, st, appcontext.Options{})
	defer p.Close()
	p.Init(context.Background())

	if got := p.State().Stage(); got != appstate.StageAnonymous {
		t.Errorf("stage = %q, want anonymous", got)
	}
	if _, ok := st.GetItem(storage.KeyAuthToken); ok {
		t.Error("stale token should be removed")
	}
}
