// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/bizdesk/internal/auth"
	"github.com/hitoshi/bizdesk/internal/metrics"
	"github.com/hitoshi/bizdesk/internal/middleware"
	"github.com/hitoshi/bizdesk/internal/model"
)

// maxLoginBodyBytes はログインリクエストボディの上限サイズ。
const maxLoginBodyBytes = 1 << 16

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// loginRequest はPOST /api/auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// meResponse はGET /api/auth/me のレスポンスボディ。
type meResponse struct {
	User *model.User `json:"user"`
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。mがnilの場合は何も記録しない。
func NewAuthHandler(service AuthServiceInterface, m metrics.MetricsCollector) *AuthHandler {
	if m == nil {
		m = metrics.Nop{}
	}
	return &AuthHandler{service: service, metrics: m}
}

// Login はメールアドレスとパスワードで認証し、トークンとユーザーを返す。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("request body must be a JSON object"))
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("email and password are required"))
		return
	}

	result, err := h.service.Login(r.Context(), email, req.Password)
	if err != nil {
		h.metrics.RecordLogin(metrics.ResultFailure)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCredentialsError())
			return
		}
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordLogin(metrics.ResultSuccess)
	middleware.WriteJSON(w, http.StatusOK, result)
}

// Logout はセッションを破棄する。
// トークンが無い、または既に無効な場合も204を返す。
// セッション削除に失敗した場合は remote="failure" として記録する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.BearerToken(r); token != "" {
		err := h.service.Logout(r.Context(), token)
		if err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
		h.metrics.RecordLogout(err != nil)
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	token := middleware.BearerToken(r)
	if token == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), token)
	if err != nil {
		h.metrics.RecordSessionResolve(metrics.ResultFailure)
		if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrUserNotFound) {
			writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordSessionResolve(metrics.ResultSuccess)
	middleware.WriteJSON(w, http.StatusOK, meResponse{User: user})
}
