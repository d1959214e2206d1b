package preview

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/learnlog/internal/model"
)

func newTestFetcher() *Fetcher {
	// httptestサーバーはループバックで動くため、SSRFガードなしで生成する
	return NewFetcher(nil, 5*time.Second, 1024*1024)
}

func TestFetchTitle_TitleElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Go Blog: Intro to Generics</title></head><body>x</body></html>`))
	}))
	defer server.Close()

	p, err := newTestFetcher().FetchTitle(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchTitle がエラーを返した: %v", err)
	}
	if p.Title != "Go Blog: Intro to Generics" {
		t.Errorf("title = %q", p.Title)
	}
	if p.URL != server.URL {
		t.Errorf("url = %q, want %q", p.URL, server.URL)
	}
}

func TestFetchTitle_OGTitleTakesPrecedence(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
<meta property="og:title" content="OGのタイトル">
<title>title要素のタイトル</title>
</head><body></body></html>`))
	}))
	defer server.Close()

	p, err := newTestFetcher().FetchTitle(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchTitle がエラーを返した: %v", err)
	}
	if p.Title != "OGのタイトル" {
		t.Errorf("title = %q, want og:title", p.Title)
	}
}

func TestFetchTitle_NoTitle_FallsBackToHostname(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head></head><body>no title</body></html>`))
	}))
	defer server.Close()

	p, err := newTestFetcher().FetchTitle(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchTitle がエラーを返した: %v", err)
	}
	if p.Title != "127.0.0.1" {
		t.Errorf("title = %q, want hostname fallback", p.Title)
	}
}

func TestFetchTitle_NonHTMLContent_FallsBackToHostname(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer server.Close()

	p, err := newTestFetcher().FetchTitle(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchTitle がエラーを返した: %v", err)
	}
	if p.Title != "127.0.0.1" {
		t.Errorf("title = %q, want hostname fallback", p.Title)
	}
}

func TestFetchTitle_ErrorStatus_ReturnsPreviewFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestFetcher().FetchTitle(context.Background(), server.URL)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePreviewFailed {
		t.Fatalf("expected PreviewFailed, got %v", err)
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

func TestFetchTitle_BlockedURL_NoRequestSent(t *testing.T) {
	requested := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer server.Close()

	f := NewFetcher(blockingValidator{}, 5*time.Second, 1024*1024)

	_, err := f.FetchTitle(context.Background(), server.URL)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeSSRFBlocked {
		t.Fatalf("expected SSRFBlocked, got %v", err)
	}
	if requested {
		t.Error("blocked URL must not be requested")
	}
}

func TestFetchTitle_BodyLargerThanLimit_TruncatedSafely(t *testing.T) {
	// タイトルは制限サイズ内にあるため抽出に成功する
	big := make([]byte, 64*1024)
	for i := range big {
		big[i] = 'a'
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>small title</title></head><body>`))
		w.Write(big)
	}))
	defer server.Close()

	f := NewFetcher(nil, 5*time.Second, 8*1024)
	p, err := f.FetchTitle(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("FetchTitle がエラーを返した: %v", err)
	}
	if p.Title != "small title" {
		t.Errorf("title = %q", p.Title)
	}
}
