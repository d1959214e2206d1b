package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/learnlog/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// invalidRequestError はリクエストボディのデコード失敗エラーを生成する。
func invalidRequestError() *model.APIError {
	return model.NewValidationError("リクエストボディの形式が不正です")
}
