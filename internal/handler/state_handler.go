package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/learnlog/internal/coordinator"
	"github.com/hitoshi/learnlog/internal/middleware"
)

// StateHandler はセッション状態（ビュー・フィルタ・選択）のHTTPハンドラー。
type StateHandler struct {
	registry *coordinator.Registry
}

// NewStateHandler はStateHandlerを生成する。
func NewStateHandler(registry *coordinator.Registry) *StateHandler {
	return &StateHandler{registry: registry}
}

// coordinatorFor はリクエストのセッションに対応するCoordinatorを返す。
// セッション情報が無い場合は401を書き込みnilを返す。
func coordinatorFor(w http.ResponseWriter, r *http.Request, registry *coordinator.Registry) *coordinator.Coordinator {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	sessionID, err := middleware.SessionIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	return registry.Get(sessionID, userID)
}

// Get は現在の状態スナップショットを返す。
// GET /api/state
// 常にストアから読み直すため、他セッションでの変更が反映される。
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}

	if err := coord.Refresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, coord.Snapshot())
}

// filterRequest はカテゴリフィルタ設定リクエストのボディ。
type filterRequest struct {
	Category string `json:"category"`
}

// SetFilter はカテゴリフィルタを設定する。空文字で解除。
// POST /api/state/filter
func (h *StateHandler) SetFilter(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}

	var req filterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	coord.SetFilter(req.Category)
	writeJSON(w, http.StatusOK, coord.Snapshot())
}

// selectRequest はトピック選択リクエストのボディ。
type selectRequest struct {
	TopicID string `json:"topic_id"`
}

// Select はトピックを選択して詳細ビューへ遷移する。
// POST /api/state/select
// 指定トピックが存在しない場合は一覧ビューへ戻る（エラーにはしない）。
func (h *StateHandler) Select(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, invalidRequestError())
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	coord.Select(req.TopicID)
	writeJSON(w, http.StatusOK, coord.Snapshot())
}

// Back は一覧ビューへ戻る。
// POST /api/state/back
func (h *StateHandler) Back(w http.ResponseWriter, r *http.Request) {
	coord := coordinatorFor(w, r, h.registry)
	if coord == nil {
		return
	}

	if err := coord.EnsureFresh(r.Context()); err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	coord.Back()
	writeJSON(w, http.StatusOK, coord.Snapshot())
}
