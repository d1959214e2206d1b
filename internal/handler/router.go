package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/learnlog/internal/middleware"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	AuthHandler    *AuthHandler
	StateHandler   *StateHandler
	TopicHandler   *TopicHandler
	PreviewHandler *PreviewHandler
	UserHandler    *UserHandler

	SessionFinder  middleware.SessionFinder
	RateLimiter    *middleware.RateLimiter
	StatusRecorder middleware.HTTPStatusRecorder // nilの場合は計測しない
	MetricsHandler http.Handler                  // nilの場合は/metricsを公開しない
	Logger         *slog.Logger

	CORSOrigin   string
	CookieSecure bool
	CookieDomain string
}

// NewRouter はアプリケーションのHTTPルーターを構築する。
//
// ミドルウェアの適用順序:
//  1. Recovery（パニックからの復帰）
//  2. SecurityHeaders
//  3. Metrics（ステータスコード計測）
//  4. Logging
//  5. CORS
//  6. CSRF
//  7. Session + RateLimit（/api配下のみ）
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.CookieSecure,
		CookieDomain: deps.CookieDomain,
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSOrigin))
	r.Use(middleware.NewCSRFMiddleware(csrfConfig))

	// ヘルスチェックと監視（認証不要）
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 認証エンドポイント（セッション不要）
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", deps.AuthHandler.Register)
		r.Post("/login", deps.AuthHandler.Login)
		r.Post("/logout", deps.AuthHandler.Logout)
		r.Get("/me", deps.AuthHandler.Me)
	})

	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig).ServeHTTP)

	// 認証必須のAPIエンドポイント
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/state", func(r chi.Router) {
			r.Get("/", deps.StateHandler.Get)
			r.Post("/filter", deps.StateHandler.SetFilter)
			r.Post("/select", deps.StateHandler.Select)
			r.Post("/back", deps.StateHandler.Back)
		})

		r.Route("/topics", func(r chi.Router) {
			r.Post("/", deps.TopicHandler.Create)

			r.Route("/{topicID}", func(r chi.Router) {
				r.Patch("/", deps.TopicHandler.Rename)
				r.Delete("/", deps.TopicHandler.Delete)
				r.Put("/progress", deps.TopicHandler.UpdateProgress)
				r.Post("/resources", deps.TopicHandler.AddResource)
				r.Post("/resources/import", deps.TopicHandler.ImportResources)
				r.Delete("/resources/{resourceID}", deps.TopicHandler.DeleteResource)
				r.Put("/notes", deps.TopicHandler.UpdateNotes)
				r.Post("/notes/flush", deps.TopicHandler.FlushNotes)

				// AI講評は外部コストが高いため独立したレート制限を適用する
				r.With(deps.RateLimiter.CritiqueMiddleware()).Post("/critique", deps.TopicHandler.Critique)
			})
		})

		r.Get("/resources/preview", deps.PreviewHandler.Get)
		r.Delete("/users/me", deps.UserHandler.Withdraw)
	})

	return r
}
