package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/learnlog/internal/middleware"
	"github.com/hitoshi/learnlog/internal/model"
	"github.com/hitoshi/learnlog/internal/preview"
)

// PreviewFetcherInterface はページプレビュー取得のインターフェース。
type PreviewFetcherInterface interface {
	FetchTitle(ctx context.Context, rawURL string) (*preview.Preview, error)
}

// PreviewHandler はリソースURLのページ情報取得のHTTPハンドラー。
type PreviewHandler struct {
	fetcher PreviewFetcherInterface
}

// NewPreviewHandler はPreviewHandlerを生成する。
func NewPreviewHandler(fetcher PreviewFetcherInterface) *PreviewHandler {
	return &PreviewHandler{fetcher: fetcher}
}

// Get はURLのページタイトルを取得して返す。
// GET /api/resources/preview?url=...
func (h *PreviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("urlパラメータが必要です"))
		return
	}

	result, err := h.fetcher.FetchTitle(r.Context(), rawURL)
	if err != nil {
		middleware.HandleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
