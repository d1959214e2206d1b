package topic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnlog/internal/model"
	"github.com/hitoshi/learnlog/internal/repository"
)

// --- モック定義 ---

type mockTopicRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.Topic, error)
	listByUserIDFn   func(ctx context.Context, userID string) ([]*model.Topic, error)
	createFn         func(ctx context.Context, topic *model.Topic) error
	replaceFn        func(ctx context.Context, topic *model.Topic) error
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockTopicRepo) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTopicRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTopicRepo) Create(ctx context.Context, topic *model.Topic) error {
	if m.createFn != nil {
		return m.createFn(ctx, topic)
	}
	topic.ID = uuid.New().String()
	return nil
}

func (m *mockTopicRepo) Replace(ctx context.Context, topic *model.Topic) error {
	if m.replaceFn != nil {
		return m.replaceFn(ctx, topic)
	}
	return nil
}

func (m *mockTopicRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockTopicRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

var _ repository.TopicRepository = (*mockTopicRepo)(nil)

func ownedTopic(userID string) *model.Topic {
	return &model.Topic{
		ID:        "topic-1",
		UserID:    userID,
		Name:      "Go Generics",
		Category:  "Programming",
		Progress:  model.ProgressNotStarted,
		Resources: []model.Resource{},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// --- テスト ---

func TestCreate_ValidInput_StoreAssignsID(t *testing.T) {
	repo := &mockTopicRepo{
		createFn: func(ctx context.Context, topic *model.Topic) error {
			topic.ID = "store-assigned"
			return nil
		},
	}
	svc := NewService(repo)

	topic, err := svc.Create(context.Background(), "user-1", "Go Generics", "Programming")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if topic.ID != "store-assigned" {
		t.Errorf("ID = %q, want store-assigned", topic.ID)
	}
	if topic.Progress != model.ProgressNotStarted {
		t.Errorf("progress = %q, want %q", topic.Progress, model.ProgressNotStarted)
	}
	if topic.Resources == nil || len(topic.Resources) != 0 {
		t.Error("expected empty resources slice")
	}
}

func TestCreate_EmptyName_ReturnsValidationError(t *testing.T) {
	svc := NewService(&mockTopicRepo{})

	_, err := svc.Create(context.Background(), "user-1", "   ", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestGet_OtherUsersTopic_ReturnsNotFound(t *testing.T) {
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("someone-else"), nil
		},
	}
	svc := NewService(repo)

	_, err := svc.Get(context.Background(), "user-1", "topic-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTopicNotFound {
		t.Fatalf("expected TopicNotFound, got %v", err)
	}
}

func TestUpdateProgress_ValidValue_ReplacesDocument(t *testing.T) {
	var replaced *model.Topic
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("user-1"), nil
		},
		replaceFn: func(ctx context.Context, topic *model.Topic) error {
			replaced = topic
			return nil
		},
	}
	svc := NewService(repo)

	topic, err := svc.UpdateProgress(context.Background(), "user-1", "topic-1", model.ProgressDone)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if topic.Progress != model.ProgressDone {
		t.Errorf("progress = %q, want %q", topic.Progress, model.ProgressDone)
	}
	if replaced == nil {
		t.Fatal("expected Replace to be called")
	}
}

func TestUpdateProgress_InvalidValue_ReturnsValidationError(t *testing.T) {
	svc := NewService(&mockTopicRepo{})

	_, err := svc.UpdateProgress(context.Background(), "user-1", "topic-1", model.Progress("almost"))
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestAddResource_ValidURL_AppendsWithGeneratedID(t *testing.T) {
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("user-1"), nil
		},
	}
	svc := NewService(repo)

	topic, err := svc.AddResource(context.Background(), "user-1", "topic-1", "https://go.dev/blog/intro-generics", "公式ブログ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(topic.Resources) != 1 {
		t.Fatalf("resources = %d, want 1", len(topic.Resources))
	}
	r := topic.Resources[0]
	if r.ID == "" {
		t.Error("expected generated resource ID")
	}
	if r.URL != "https://go.dev/blog/intro-generics" {
		t.Errorf("URL = %q", r.URL)
	}
}

func TestAddResource_GeneratedIDs_AreUniqueForSameInstant(t *testing.T) {
	stored := ownedTopic("user-1")
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return stored, nil
		},
		replaceFn: func(ctx context.Context, topic *model.Topic) error {
			stored = topic
			return nil
		},
	}
	svc := NewService(repo)

	// 同一瞬間の連続追加でもIDが衝突しないこと
	for i := 0; i < 5; i++ {
		if _, err := svc.AddResource(context.Background(), "user-1", "topic-1", "https://example.com/a", ""); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	seen := map[string]bool{}
	for _, r := range stored.Resources {
		if seen[r.ID] {
			t.Fatalf("duplicate resource ID: %s", r.ID)
		}
		seen[r.ID] = true
	}
}

func TestAddResource_InvalidScheme_ReturnsInvalidURLError(t *testing.T) {
	svc := NewService(&mockTopicRepo{})

	_, err := svc.AddResource(context.Background(), "user-1", "topic-1", "javascript:alert(1)", "")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidURL {
		t.Fatalf("expected InvalidURL, got %v", err)
	}
}

func TestDeleteResource_ExistingID_RemovesOnlyThatResource(t *testing.T) {
	stored := ownedTopic("user-1")
	stored.Resources = []model.Resource{
		{ID: "r1", URL: "https://example.com/1"},
		{ID: "r2", URL: "https://example.com/2"},
	}
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return stored, nil
		},
	}
	svc := NewService(repo)

	topic, err := svc.DeleteResource(context.Background(), "user-1", "topic-1", "r1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(topic.Resources) != 1 || topic.Resources[0].ID != "r2" {
		t.Errorf("resources = %+v, want only r2", topic.Resources)
	}
}

func TestDeleteResource_UnknownID_ReturnsResourceNotFound(t *testing.T) {
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("user-1"), nil
		},
	}
	svc := NewService(repo)

	_, err := svc.DeleteResource(context.Background(), "user-1", "topic-1", "nope")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeResourceNotFound {
		t.Fatalf("expected ResourceNotFound, got %v", err)
	}
}

func TestUpdateNotes_ReplacesNotes(t *testing.T) {
	var replaced *model.Topic
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("user-1"), nil
		},
		replaceFn: func(ctx context.Context, topic *model.Topic) error {
			replaced = topic
			return nil
		},
	}
	svc := NewService(repo)

	topic, err := svc.UpdateNotes(context.Background(), "user-1", "topic-1", "型パラメータの基本を学んだ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if topic.Notes != "型パラメータの基本を学んだ" {
		t.Errorf("notes = %q", topic.Notes)
	}
	if replaced == nil || replaced.Notes != topic.Notes {
		t.Error("expected Replace to receive updated notes")
	}
}

func TestDelete_MissingTopic_IsIdempotent(t *testing.T) {
	deleteCalled := false
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return nil, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			deleteCalled = true
			return nil
		},
	}
	svc := NewService(repo)

	if err := svc.Delete(context.Background(), "user-1", "already-gone"); err != nil {
		t.Fatalf("expected no error for missing topic, got %v", err)
	}
	if deleteCalled {
		t.Error("DeleteByID should not be called for missing topic")
	}
}

func TestDelete_OtherUsersTopic_ReturnsNotFound(t *testing.T) {
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("someone-else"), nil
		},
	}
	svc := NewService(repo)

	err := svc.Delete(context.Background(), "user-1", "topic-1")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeTopicNotFound {
		t.Fatalf("expected TopicNotFound, got %v", err)
	}
}

func TestAppendResources_AssignsIDsWhenMissing(t *testing.T) {
	repo := &mockTopicRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Topic, error) {
			return ownedTopic("user-1"), nil
		},
	}
	svc := NewService(repo)

	topic, err := svc.AppendResources(context.Background(), "user-1", "topic-1", []model.Resource{
		{URL: "https://example.com/entry1", Description: "記事1"},
		{URL: "https://example.com/entry2", Description: "記事2"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(topic.Resources) != 2 {
		t.Fatalf("resources = %d, want 2", len(topic.Resources))
	}
	for _, r := range topic.Resources {
		if r.ID == "" {
			t.Error("expected resource ID to be assigned")
		}
	}
}
