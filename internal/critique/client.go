// Package critique はAIによるノート講評機能を提供する。
// Gemini互換のgenerateContentエンドポイントを呼び出す。
package critique

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/learnlog/internal/model"
)

// defaultEndpoint はGemini generateContent APIのエンドポイント。
const defaultEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

// promptTemplate は講評リクエストのプロンプト。
// トピック名とノート本文を埋め込む。
const promptTemplate = `あなたは学習メンターです。以下の学習ノートを読み、理解の深さを評価し、
改善点と次に学ぶべきことを日本語で簡潔に指摘してください。

トピック: %s

ノート:
%s`

// Sanitizer は講評テキストの無害化フック。
type Sanitizer interface {
	Sanitize(text string) string
}

// Client はGemini互換APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	sanitizer  Sanitizer
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// apiKeyが空の場合でも生成は成功し、呼び出し時にMissingCredentialを返す。
func NewClient(httpClient *http.Client, logger *slog.Logger, sanitizer Sanitizer, apiKey, endpoint string) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		sanitizer:  sanitizer,
		apiKey:     apiKey,
		endpoint:   endpoint,
	}
}

// generateRequest はgenerateContentのリクエストボディ。
type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

// generateResponse はgenerateContentのレスポンスボディ。
// 使用するフィールドのみ定義する。
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Critique はトピックのノートに対するAI講評を取得する。
// APIキー未設定とノート空の場合はネットワークアクセスを行わずにエラーを返す。
func (c *Client) Critique(ctx context.Context, topicName, notes string) (string, error) {
	if c.apiKey == "" {
		return "", model.NewMissingCredentialError()
	}
	if strings.TrimSpace(notes) == "" {
		return "", model.NewEmptyInputError()
	}

	prompt := fmt.Sprintf(promptTemplate, topicName, notes)
	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// APIキーはクエリパラメータで渡す
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"?key="+c.apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("AIエンドポイントの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamError("接続に失敗しました")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", model.NewUpstreamError("レスポンスの読み取りに失敗しました")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("AIエンドポイントがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", model.NewUpstreamError(fmt.Sprintf("ステータス %d", resp.StatusCode))
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("AIエンドポイントのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamError("レスポンスの形式が不正です")
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", model.NewUpstreamError("講評テキストが含まれていません")
	}

	text := result.Candidates[0].Content.Parts[0].Text
	if c.sanitizer != nil {
		text = c.sanitizer.Sanitize(text)
	}
	return text, nil
}
