// Package auth はユーザー名・パスワード認証とセッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnlog/internal/model"
	"github.com/hitoshi/learnlog/internal/repository"
)

// minUsernameLength はユーザー名の最小文字数。
const minUsernameLength = 3

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
// 現在ユーザーの状態は保持しない: セッションは常に明示的な値として
// 呼び出し元へ返し、アンビエントなシングルトンは持たない。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Register は新規ユーザーを登録し、セッションを発行する。
// ユーザー名が既に存在する場合（大文字小文字を区別した完全一致）は
// DuplicateUsernameエラーを返し、セッションは発行しない。
func (s *Service) Register(ctx context.Context, username, password string) (*model.PublicUser, *model.Session, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, nil, err
	}

	// 既存ユーザー名のチェック
	existing, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing != nil {
		return nil, nil, model.NewDuplicateUsernameError(username)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		// 事前チェックと同時登録が競合した場合
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, nil, model.NewDuplicateUsernameError(username)
		}
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	pub := user.Public()
	return &pub, session, nil
}

// Login はユーザー名とパスワードを検証し、セッションを発行する。
// ユーザー名不在とパスワード不一致はいずれもInvalidCredentialsとして
// 区別せずに返す。
func (s *Service) Login(ctx context.Context, username, password string) (*model.PublicUser, *model.Session, error) {
	if username == "" || password == "" {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !VerifyPassword(user.PasswordHash, password) {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	pub := user.Public()
	return &pub, session, nil
}

// Logout はセッションを破棄する。ネットワーク先はセッションストアのみ。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションIDから現在のユーザーの公開情報を取得する。
// セッション復元（起動時のCookie再提示）のパスで使用する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.PublicUser, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	pub := user.Public()
	return &pub, nil
}

// validateCredentials は登録時の入力値を検証する。
func validateCredentials(username, password string) error {
	if username == "" {
		return model.NewValidationError("ユーザー名が空です")
	}
	if len([]rune(username)) < minUsernameLength {
		return model.NewValidationError(fmt.Sprintf("ユーザー名は%d文字以上で指定してください", minUsernameLength))
	}
	if password == "" {
		return model.NewValidationError("パスワードが空です")
	}
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
