package feedimport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/learnlog/internal/model"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
}

func newTestImporter(maxResources int) *Importer {
	// httptestサーバーはループバックで動くため、SSRFガードなしで生成する
	return NewImporter(nil, newTestLogger(), 5*time.Second, 1024*1024, maxResources)
}

func rssFeed(itemCount int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Test Feed</title>`)
	for i := 1; i <= itemCount; i++ {
		fmt.Fprintf(&b, `<item><title>記事%d</title><link>https://example.com/entry%d</link></item>`, i, i)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestFetch_RSSFeed_ReturnsResources(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssFeed(3)))
	}))
	defer server.Close()

	resources, err := newTestImporter(20).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if len(resources) != 3 {
		t.Fatalf("resources = %d, want 3", len(resources))
	}
	if resources[0].URL != "https://example.com/entry1" {
		t.Errorf("URL = %q", resources[0].URL)
	}
	if resources[0].Description != "記事1" {
		t.Errorf("Description = %q", resources[0].Description)
	}
	// IDの払い出しは保存側の責務
	if resources[0].ID != "" {
		t.Errorf("ID = %q, want empty", resources[0].ID)
	}
}

func TestFetch_MoreItemsThanLimit_TruncatesToLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed(30)))
	}))
	defer server.Close()

	resources, err := newTestImporter(5).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if len(resources) != 5 {
		t.Errorf("resources = %d, want 5", len(resources))
	}
	// 先頭から順に取り込まれる
	if resources[0].URL != "https://example.com/entry1" {
		t.Errorf("first URL = %q", resources[0].URL)
	}
}

func TestFetch_AtomFeed_ReturnsResources(t *testing.T) {
	atom := `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <entry><title>エントリ1</title><link href="https://example.com/atom1"/></entry>
</feed>`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.Write([]byte(atom))
	}))
	defer server.Close()

	resources, err := newTestImporter(20).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if len(resources) != 1 || resources[0].URL != "https://example.com/atom1" {
		t.Errorf("resources = %+v", resources)
	}
}

func TestFetch_NotAFeed_ReturnsImportFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	defer server.Close()

	_, err := newTestImporter(20).Fetch(context.Background(), server.URL)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedImportFailed {
		t.Fatalf("expected FeedImportFailed, got %v", err)
	}
}

func TestFetch_ErrorStatus_ReturnsImportFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestImporter(20).Fetch(context.Background(), server.URL)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedImportFailed {
		t.Fatalf("expected FeedImportFailed, got %v", err)
	}
}

func TestFetch_EmptyFeed_ReturnsImportFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed(0)))
	}))
	defer server.Close()

	_, err := newTestImporter(20).Fetch(context.Background(), server.URL)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedImportFailed {
		t.Fatalf("expected FeedImportFailed, got %v", err)
	}
}

// blockingValidator は常に検証エラーを返すSSRFValidator。
type blockingValidator struct{}

func (blockingValidator) ValidateURL(string) error {
	return model.NewSSRFBlockedError()
}

func (blockingValidator) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func TestFetch_BlockedURL_NoRequestSent(t *testing.T) {
	requested := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer server.Close()

	im := NewImporter(blockingValidator{}, newTestLogger(), 5*time.Second, 1024*1024, 20)

	_, err := im.Fetch(context.Background(), server.URL)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSSRFBlocked {
		t.Fatalf("expected SSRFBlocked, got %v", err)
	}
	if requested {
		t.Error("blocked URL must not be requested")
	}
}
