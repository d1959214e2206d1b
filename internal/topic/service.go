// Package topic はトピックドキュメントの操作を提供する。
//
// すべての操作は所有ユーザーでスコープされる。他ユーザーのトピックは
// 存在しないものとして扱い、TopicNotFoundを返す。
package topic

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/learnlog/internal/model"
	"github.com/hitoshi/learnlog/internal/repository"
)

// Service はトピックに関するビジネスロジックを提供する。
type Service struct {
	topicRepo repository.TopicRepository
}

// NewService はServiceを生成する。
func NewService(topicRepo repository.TopicRepository) *Service {
	return &Service{topicRepo: topicRepo}
}

// List は指定ユーザーのトピック一覧を作成日時昇順で返す。
func (s *Service) List(ctx context.Context, userID string) ([]*model.Topic, error) {
	topics, err := s.topicRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// Get は指定ユーザーが所有するトピックを取得する。
// 存在しない、または他ユーザーの所有の場合はTopicNotFoundを返す。
func (s *Service) Get(ctx context.Context, userID, topicID string) (*model.Topic, error) {
	if topicID == "" {
		return nil, model.NewTopicNotFoundError(topicID)
	}

	topic, err := s.topicRepo.FindByID(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("failed to find topic: %w", err)
	}
	if topic == nil || topic.UserID != userID {
		return nil, model.NewTopicNotFoundError(topicID)
	}
	return topic, nil
}

// Create は新しいトピックを作成する。IDはストア側で払い出される。
// カテゴリ未指定の場合はデフォルトバケットに分類される。
func (s *Service) Create(ctx context.Context, userID, name, category string) (*model.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("トピック名が空です")
	}

	now := time.Now()
	topic := &model.Topic{
		UserID:    userID,
		Name:      name,
		Category:  strings.TrimSpace(category),
		Progress:  model.ProgressNotStarted,
		Resources: []model.Resource{},
		Notes:     "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.topicRepo.Create(ctx, topic); err != nil {
		return nil, fmt.Errorf("failed to create topic: %w", err)
	}

	slog.Info("topic created",
		slog.String("topic_id", topic.ID),
		slog.String("user_id", userID),
	)

	return topic, nil
}

// UpdateProgress はトピックの進捗状態を更新し、更新後のトピックを返す。
func (s *Service) UpdateProgress(ctx context.Context, userID, topicID string, progress model.Progress) (*model.Topic, error) {
	if !progress.IsValid() {
		return nil, model.NewValidationError(fmt.Sprintf("不正な進捗状態です: %s", progress))
	}

	topic, err := s.Get(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	topic.Progress = progress
	if err := s.replace(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// Rename はトピック名とカテゴリを更新し、更新後のトピックを返す。
func (s *Service) Rename(ctx context.Context, userID, topicID, name, category string) (*model.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError("トピック名が空です")
	}

	topic, err := s.Get(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	topic.Name = name
	topic.Category = strings.TrimSpace(category)
	if err := s.replace(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// AddResource はトピックにリソースを追加し、更新後のトピックを返す。
// リソースIDは時刻由来ではなくUUIDで払い出す。
func (s *Service) AddResource(ctx context.Context, userID, topicID, rawURL, description string) (*model.Topic, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateResourceURL(rawURL); err != nil {
		return nil, err
	}

	topic, err := s.Get(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	topic.Resources = append(topic.Resources, model.Resource{
		ID:          uuid.New().String(),
		URL:         rawURL,
		Description: strings.TrimSpace(description),
	})
	if err := s.replace(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// DeleteResource はトピックからリソースを削除し、更新後のトピックを返す。
// 指定IDのリソースが存在しない場合はResourceNotFoundを返す。
func (s *Service) DeleteResource(ctx context.Context, userID, topicID, resourceID string) (*model.Topic, error) {
	topic, err := s.Get(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	found := false
	kept := make([]model.Resource, 0, len(topic.Resources))
	for _, r := range topic.Resources {
		if r.ID == resourceID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return nil, model.NewResourceNotFoundError(resourceID)
	}

	topic.Resources = kept
	if err := s.replace(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// UpdateNotes はトピックのノート本文を置き換え、更新後のトピックを返す。
// 遅延コミットの発火側から呼ばれる。
func (s *Service) UpdateNotes(ctx context.Context, userID, topicID, notes string) (*model.Topic, error) {
	topic, err := s.Get(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	topic.Notes = notes
	if err := s.replace(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// AppendResources は複数のリソースをまとめて追加し、更新後のトピックを返す。
// フィード取り込みで使用する。
func (s *Service) AppendResources(ctx context.Context, userID, topicID string, resources []model.Resource) (*model.Topic, error) {
	topic, err := s.Get(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	for _, r := range resources {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		topic.Resources = append(topic.Resources, r)
	}
	if err := s.replace(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// Delete は指定ユーザーが所有するトピックを削除する。
// 既に存在しないトピックの削除は成功として扱う（冪等）。
func (s *Service) Delete(ctx context.Context, userID, topicID string) error {
	topic, err := s.topicRepo.FindByID(ctx, topicID)
	if err != nil {
		return fmt.Errorf("failed to find topic: %w", err)
	}
	if topic == nil {
		// 既に削除済み
		return nil
	}
	if topic.UserID != userID {
		return model.NewTopicNotFoundError(topicID)
	}

	if err := s.topicRepo.DeleteByID(ctx, topicID); err != nil {
		return fmt.Errorf("failed to delete topic: %w", err)
	}

	slog.Info("topic deleted",
		slog.String("topic_id", topicID),
		slog.String("user_id", userID),
	)
	return nil
}

// replace はドキュメント全体の置き換えを実行する。
func (s *Service) replace(ctx context.Context, topic *model.Topic) error {
	topic.UpdatedAt = time.Now()
	if err := s.topicRepo.Replace(ctx, topic); err != nil {
		return fmt.Errorf("failed to replace topic: %w", err)
	}
	return nil
}

// validateResourceURL はリソースURLの形式を検証する。
// スキームはhttp/httpsのみ許可する。
func validateResourceURL(rawURL string) error {
	if rawURL == "" {
		return model.NewValidationError("URLが空です")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return model.NewInvalidURLError(fmt.Sprintf("スキーム %q は使用できません", u.Scheme))
	}
	if u.Host == "" {
		return model.NewInvalidURLError("ホストがありません")
	}
	return nil
}
