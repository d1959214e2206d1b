package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnlog/internal/middleware"
)

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Withdraw(ctx context.Context, userID string) error
}

// UserSessionCloser は退会時にユーザーの全セッション状態を破棄するインターフェース。
type UserSessionCloser interface {
	RemoveByUserID(userID string)
}

// UserHandler はユーザー管理（退会）のHTTPハンドラー。
type UserHandler struct {
	service       UserServiceInterface
	sessionCloser UserSessionCloser
	config        AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, sessionCloser UserSessionCloser, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service:       service,
		sessionCloser: sessionCloser,
		config:        config,
	}
}

// Withdraw は退会処理を実行する。
// DELETE /api/users/me
// トピック・セッション・ユーザーをすべて削除し、セッションCookieをクリアする。
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	// 保留中のノートコミットを含むセッション状態を破棄する
	if h.sessionCloser != nil {
		h.sessionCloser.RemoveByUserID(userID)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
