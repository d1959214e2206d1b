// Package feedimport はRSS/Atomフィードからのリソース一括取り込みを提供する。
// フィードの各記事をリソース（URL + 説明）へ変換してトピックに追加する。
package feedimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/learnlog/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Importer はフィードからリソース候補を取得する。
type Importer struct {
	ssrfGuard    SSRFValidator
	logger       *slog.Logger
	timeout      time.Duration
	maxBodySize  int64
	maxResources int
}

// NewImporter はImporterの新しいインスタンスを生成する。
// maxResourcesは1回の取り込みで追加するリソース数の上限。
func NewImporter(ssrfGuard SSRFValidator, logger *slog.Logger, timeout time.Duration, maxBodySize int64, maxResources int) *Importer {
	return &Importer{
		ssrfGuard:    ssrfGuard,
		logger:       logger,
		timeout:      timeout,
		maxBodySize:  maxBodySize,
		maxResources: maxResources,
	}
}

// Fetch はフィードURLを取得・パースし、リソース候補のリストを返す。
// 記事数が上限を超える場合は先頭から上限数まで切り詰める。
// IDは払い出さない（保存時にトピックサービスが割り当てる）。
func (im *Importer) Fetch(ctx context.Context, feedURL string) ([]model.Resource, error) {
	if im.ssrfGuard != nil {
		if err := im.ssrfGuard.ValidateURL(feedURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Learnlog/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := im.httpClient().Do(req)
	if err != nil {
		im.logger.Error("フィードの取得に失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFeedImportFailedError("フィードの取得に失敗しました")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		im.logger.Warn("フィードがエラーステータスを返しました",
			slog.String("feed_url", feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewFeedImportFailedError(fmt.Sprintf("ステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, im.maxBodySize))
	if err != nil {
		return nil, model.NewFeedImportFailedError("レスポンスの読み取りに失敗しました")
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		im.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewFeedImportFailedError("フィードとして解釈できませんでした")
	}

	resources := make([]model.Resource, 0, len(parsedFeed.Items))
	for _, item := range parsedFeed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		resources = append(resources, model.Resource{
			URL:         item.Link,
			Description: item.Title,
		})
		if len(resources) >= im.maxResources {
			break
		}
	}

	if len(resources) == 0 {
		return nil, model.NewFeedImportFailedError("取り込み可能な記事がありません")
	}

	im.logger.Info("feed items imported",
		slog.String("feed_url", feedURL),
		slog.Int("resource_count", len(resources)),
	)

	return resources, nil
}

// httpClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (im *Importer) httpClient() *http.Client {
	if im.ssrfGuard != nil {
		return im.ssrfGuard.NewSafeClient(im.timeout)
	}
	return &http.Client{Timeout: im.timeout}
}
