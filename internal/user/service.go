// Package user はユーザーアカウント管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/bizdesk/internal/model"
	"github.com/hitoshi/bizdesk/internal/repository"
)

// Service はアカウントの退会を扱う。
type Service struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	logger   *slog.Logger
}

// NewService はServiceを生成する。loggerがnilの場合はslog.Default()を使う。
func NewService(users repository.UserRepository, sessions repository.SessionRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, logger: logger}
}

// Withdraw はユーザーを退会させる。
// 他端末に残ったトークンがすぐ使えなくなるよう、ユーザーより先に全セッションを削除する。
// セッションの削除に失敗した場合はユーザーを残したままエラーを返す。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions of user %s: %w", userID, err)
	}
	if err := s.users.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
		slog.String("role", string(u.Role)),
	)
	return nil
}
