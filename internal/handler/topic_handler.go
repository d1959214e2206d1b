package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/learnlog/internal/coordinator"
	"github.com/hitoshi/learnlog/internal/metrics"
	"github.com/hitoshi/learnlog/internal/middleware"
	"github.com/hitoshi/learnlog/internal/model"
)

// CritiqueClientInterface はAI講評クライアントのインターフェース。
type CritiqueClientInterface interface {
	Critique(ctx context.Context, topicName, notes string) (string, error)
}

// FeedImporterInterface はフィード取り込みのインターフェース。
type FeedImporterInterface interface {
	Fetch(ctx context.Context, feedURL string) ([]model.Resource, error)
}

// TopicHandler はトピック操作のHTTPハンドラー。
// 状態の読み書きはすべてセッションのCoordinator経由で行う。
type TopicHandler struct {
	registry       *coordinator.Registry
	critiqueClient CritiqueClientInterface
	feedImporter   FeedImporterInterface
	metrics        metrics.MetricsCollector
}

// NewTopicHandler はTopicHandlerを生成する。
func NewTopicHandler(registry *coordinator.Registry, critiqueClient CritiqueClientInterface, feedImporter FeedImporterInterface, collector metrics.MetricsCollector) *TopicHandler {
	return &TopicHandler{
		registry:       registry,
		critiqueClient: critiqueClient,
		feedImporter:   feedImporter,
		metrics:        collector,
	}
}

// createTopicRequest はトピック作成リクエストのボディ。
type createTopicRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// renameTopicRequest はトピック更新リクエストのボディ。
type renameTopicRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// progressRequest は進捗更新リクエストのボディ。
type progressRequest struct {
	Progress string `json:"progress"`
}

// addResourceRequest はリソース追加リクエストのボディ。
type addResourceRequest struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

// notesRequest はノート更新リクエストのボディ。
type notesRequest struct {
	Notes string `json:"notes"`
}

// critiqueResponse はAI講評レスポンス。
type critiqueResponse struct {
	Critique string `json:"critique"`
}

// importRequest はフィード取り込みリクエストのボディ。
type importRequest struct {
	FeedURL string `json:"feed_url"`
}

// importResponse はフィード取り込みレスポンス。
type importResponse struct {
	Imported int          `json:"imported"`
	Topic    *model.Topic `json:"topic"`
}

// Create はトピックを作成する。
// POST /api/topics
func (h *TopicHandler) Create(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}

	var req createTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	created, err := coord.CreateTopic(r.Context(), req.Name, req.Category)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTopicCreated()
	}
	writeJSON(w, http.StatusCreated, created)
}

// Delete はトピックを削除する。
// DELETE /api/topics/{topicID}
// 存在しないトピックの削除は成功として扱う（冪等）。
func (h *TopicHandler) Delete(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	if err := coord.DeleteTopic(r.Context(), topicID); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordTopicDeleted()
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rename はトピック名とカテゴリを更新する。
// PATCH /api/topics/{topicID}
func (h *TopicHandler) Rename(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	var req renameTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	updated, err := coord.Rename(r.Context(), topicID, req.Name, req.Category)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// UpdateProgress は進捗状態を更新する。
// PUT /api/topics/{topicID}/progress
func (h *TopicHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	updated, err := coord.UpdateProgress(r.Context(), topicID, model.Progress(req.Progress))
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// AddResource はトピックにリソースを追加する。
// POST /api/topics/{topicID}/resources
func (h *TopicHandler) AddResource(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	var req addResourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	updated, err := coord.AddResource(r.Context(), topicID, req.URL, req.Description)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, updated)
}

// DeleteResource はトピックからリソースを削除する。
// DELETE /api/topics/{topicID}/resources/{resourceID}
func (h *TopicHandler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")
	resourceID := chi.URLParam(r, "resourceID")

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	updated, err := coord.DeleteResource(r.Context(), topicID, resourceID)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// UpdateNotes はノート編集を受け付ける。
// PUT /api/topics/{topicID}/notes
// ストアへの書き込みは遅延コミットされるため202を返す。
func (h *TopicHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	if err := coord.EditNotes(topicID, req.Notes); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// FlushNotes は保留中のノートコミットを即時実行する。
// POST /api/topics/{topicID}/notes/flush
// 明示的な保存操作やページ離脱時に使用する。
func (h *TopicHandler) FlushNotes(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}

	coord.FlushNotes()
	w.WriteHeader(http.StatusNoContent)
}

// Critique はトピックのノートに対するAI講評を取得する。
// POST /api/topics/{topicID}/critique
// 未コミットのノートも講評の対象に含める。
func (h *TopicHandler) Critique(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	topic, err := coord.Topic(topicID)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	start := time.Now()
	critique, err := h.critiqueClient.Critique(r.Context(), topic.Name, topic.Notes)
	if h.metrics != nil {
		h.metrics.RecordCritiqueLatency(time.Since(start))
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordCritiqueFailure()
		}
		middleware.HandleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCritiqueSuccess()
	}
	writeJSON(w, http.StatusOK, critiqueResponse{Critique: critique})
}

// ImportResources はフィードからリソースを一括取り込みする。
// POST /api/topics/{topicID}/resources/import
func (h *TopicHandler) ImportResources(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}
	topicID := chi.URLParam(r, "topicID")

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	resources, err := h.feedImporter.Fetch(r.Context(), req.FeedURL)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	updated, err := coord.ImportResources(r.Context(), topicID, resources)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordResourcesImported(len(resources))
	}
	writeJSON(w, http.StatusOK, importResponse{Imported: len(resources), Topic: updated})
}
