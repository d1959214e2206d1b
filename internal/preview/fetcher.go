// Package preview はリソースURLのページ情報取得機能を提供する。
// リソース追加フォームで説明文の候補としてページタイトルを提示するために使う。
package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/learnlog/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Preview はページから取得したプレビュー情報。
type Preview struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Fetcher はページタイトルの取得機能を提供する。
type Fetcher struct {
	ssrfGuard   SSRFValidator
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(ssrfGuard SSRFValidator, timeout time.Duration, maxBodySize int64) *Fetcher {
	return &Fetcher{
		ssrfGuard:   ssrfGuard,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// FetchTitle はURLのページを取得し、タイトルを抽出して返す。
// 1. SSRF検証を実行
// 2. ページを取得（最大サイズ制限付き）
// 3. og:titleを優先し、なければtitle要素、どちらもなければホスト名
func (f *Fetcher) FetchTitle(ctx context.Context, rawURL string) (*Preview, error) {
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Learnlog/1.0")
	req.Header.Set("Accept", "text/html, */*")

	resp, err := f.httpClient().Do(req)
	if err != nil {
		return nil, model.NewPreviewFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewPreviewFailedError(fmt.Sprintf("ステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, model.NewPreviewFailedError("レスポンスの読み取りに失敗しました")
	}

	title := ""
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if strings.Contains(strings.ToLower(mediaType), "html") {
		title = extractTitle(body)
	}
	if title == "" {
		title = hostnameOf(rawURL)
	}

	return &Preview{URL: rawURL, Title: title}, nil
}

// httpClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *Fetcher) httpClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout)
	}
	return &http.Client{Timeout: f.timeout}
}

// extractTitle はHTMLのheadからページタイトルを抽出する。
// og:titleメタタグを優先し、なければtitle要素のテキストを返す。
func extractTitle(htmlBody []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))

	var title, ogTitle string
	inTitle := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return pickTitle(ogTitle, title)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return pickTitle(ogTitle, title)
			}

			if tagName == "title" {
				inTitle = true
				continue
			}

			if tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "property", "name":
					property = strings.ToLower(string(val))
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}
			if property == "og:title" && content != "" {
				ogTitle = content
			}

		case html.TextToken:
			if inTitle && title == "" {
				title = strings.TrimSpace(string(tokenizer.Text()))
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "title":
				inTitle = false
			case "head":
				return pickTitle(ogTitle, title)
			}
		}
	}
}

// pickTitle はog:titleを優先してタイトルを選択する。
func pickTitle(ogTitle, title string) string {
	if ogTitle != "" {
		return ogTitle
	}
	return title
}

// hostnameOf はURLからホスト名を取り出す。パース不能な場合は空文字を返す。
func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
