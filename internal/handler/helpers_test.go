package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/learnlog/internal/coordinator"
	"github.com/hitoshi/learnlog/internal/middleware"
	"github.com/hitoshi/learnlog/internal/model"
	"github.com/hitoshi/learnlog/internal/preview"
	"github.com/hitoshi/learnlog/internal/topic"
)

// --- モック定義 ---

// memTopicRepo はテスト用のインメモリトピックリポジトリ。
type memTopicRepo struct {
	mu     sync.Mutex
	topics map[string]*model.Topic
	order  []string
}

func newMemTopicRepo() *memTopicRepo {
	return &memTopicRepo{topics: make(map[string]*model.Topic)}
}

func (r *memTopicRepo) FindByID(_ context.Context, id string) (*model.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.topics[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (r *memTopicRepo) ListByUserID(_ context.Context, userID string) ([]*model.Topic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.Topic
	for _, id := range r.order {
		t := r.topics[id]
		if t != nil && t.UserID == userID {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}

func (r *memTopicRepo) Create(_ context.Context, t *model.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.NewString()
	r.topics[t.ID] = t.Clone()
	r.order = append(r.order, t.ID)
	return nil
}

func (r *memTopicRepo) Replace(_ context.Context, t *model.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[t.ID]; !ok {
		return fmt.Errorf("topic not found: %s", t.ID)
	}
	r.topics[t.ID] = t.Clone()
	return nil
}

func (r *memTopicRepo) DeleteByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.topics, id)
	return nil
}

func (r *memTopicRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.topics {
		if t.UserID == userID {
			delete(r.topics, id)
		}
	}
	return nil
}

// storedNotes はストアに書き込まれたノート本文を返す。
func (r *memTopicRepo) storedNotes(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.topics[id]; ok {
		return t.Notes
	}
	return ""
}

// fakeSessionFinder は固定のセッションを返すSessionFinder。
type fakeSessionFinder struct {
	sessions map[string]*model.Session
}

func (f *fakeSessionFinder) FindByID(_ context.Context, id string) (*model.Session, error) {
	return f.sessions[id], nil
}

type mockCritiqueClient struct {
	critiqueFn func(ctx context.Context, topicName, notes string) (string, error)
}

func (m *mockCritiqueClient) Critique(ctx context.Context, topicName, notes string) (string, error) {
	return m.critiqueFn(ctx, topicName, notes)
}

type mockFeedImporter struct {
	fetchFn func(ctx context.Context, feedURL string) ([]model.Resource, error)
}

func (m *mockFeedImporter) Fetch(ctx context.Context, feedURL string) ([]model.Resource, error) {
	return m.fetchFn(ctx, feedURL)
}

type mockPreviewFetcher struct {
	fetchFn func(ctx context.Context, rawURL string) (*preview.Preview, error)
}

func (m *mockPreviewFetcher) FetchTitle(ctx context.Context, rawURL string) (*preview.Preview, error) {
	return m.fetchFn(ctx, rawURL)
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	return m.withdrawFn(ctx, userID)
}

// --- テスト環境 ---

const (
	testUserID    = "user-1"
	testSessionID = "sess-1"
	testCSRFToken = "test-csrf-token"
)

// testEnv はルーター統合テストの環境一式。
type testEnv struct {
	router      http.Handler
	repo        *memTopicRepo
	registry    *coordinator.Registry
	critique    *mockCritiqueClient
	importer    *mockFeedImporter
	preview     *mockPreviewFetcher
	userService *mockUserService
}

// newTestEnv は認証済みセッションを1つ持つテスト環境を構築する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newMemTopicRepo()
	topicService := topic.NewService(repo)
	registry := coordinator.NewRegistry(topicService, 20*time.Millisecond, nil)
	t.Cleanup(registry.CloseAll)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(6000, 6000))
	t.Cleanup(rateLimiter.Stop)

	sessionFinder := &fakeSessionFinder{
		sessions: map[string]*model.Session{
			testSessionID: {
				ID:        testSessionID,
				UserID:    testUserID,
				ExpiresAt: time.Now().Add(time.Hour),
			},
		},
	}

	env := &testEnv{
		repo:     repo,
		registry: registry,
		critique: &mockCritiqueClient{
			critiqueFn: func(context.Context, string, string) (string, error) {
				return "よく書けています。", nil
			},
		},
		importer: &mockFeedImporter{
			fetchFn: func(context.Context, string) ([]model.Resource, error) {
				return nil, nil
			},
		},
		preview: &mockPreviewFetcher{
			fetchFn: func(_ context.Context, rawURL string) (*preview.Preview, error) {
				return &preview.Preview{URL: rawURL, Title: "example"}, nil
			},
		},
		userService: &mockUserService{
			withdrawFn: func(context.Context, string) error { return nil },
		},
	}

	authConfig := AuthHandlerConfig{SessionMaxAge: 3600}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env.router = NewRouter(RouterDeps{
		AuthHandler:    NewAuthHandler(nil, registry, authConfig),
		StateHandler:   NewStateHandler(registry),
		TopicHandler:   NewTopicHandler(registry, env.critique, env.importer, nil),
		PreviewHandler: NewPreviewHandler(env.preview),
		UserHandler:    NewUserHandler(env.userService, registry, authConfig),
		SessionFinder:  sessionFinder,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		CORSOrigin:     "http://localhost:5173",
	})

	return env
}

// do は認証済みリクエストを実行する。CSRFトークンも設定する。
func (env *testEnv) do(method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: testSessionID})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: testCSRFToken})
	req.Header.Set("X-CSRF-Token", testCSRFToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}
