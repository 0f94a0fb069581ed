package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/bizdesk/internal/middleware"
	"github.com/hitoshi/bizdesk/internal/model"
	"github.com/hitoshi/bizdesk/internal/user"
)

// UserServiceInterface は退会処理を行うサービス。
type UserServiceInterface interface {
	Withdraw(ctx context.Context, userID string) error
}

var _ UserServiceInterface = (*user.Service)(nil)

// UserHandler は /api/users 配下を扱う。
type UserHandler struct {
	service UserServiceInterface
}

func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Withdraw は DELETE /api/users/me。
// 認証ミドルウェアが積んだユーザーIDのアカウントを削除し、本文なしの204を返す。
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := middleware.UserIDFromContext(ctx)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Withdraw(ctx, userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
