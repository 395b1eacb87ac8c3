package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestFetchSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><p>Halo</p></body></html>"))
	}))
	defer srv.Close()

	page, err := New(Options{}).Fetch(context.Background(), srv.URL+"/berita")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(page.HTML, "Halo") {
		t.Errorf("unexpected body %q", page.HTML)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("expected browser user agent, got %q", gotUA)
	}
	if !strings.HasPrefix(gotLang, "id-ID") {
		t.Errorf("expected Indonesian Accept-Language, got %q", gotLang)
	}
}

func TestFetchStatusError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(Options{}).Fetch(context.Background(), srv.URL)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("expected 403 StatusError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected no retry for ordinary domains, got %d calls", calls)
	}
}

func TestFetchSlowDomainRetriesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := New(Options{SlowDomains: []string{"127.0.0.1"}})
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if !strings.Contains(page.HTML, "ok") {
		t.Errorf("unexpected body %q", page.HTML)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestFetchEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("   "))
	}))
	defer srv.Close()

	if _, err := New(Options{}).Fetch(context.Background(), srv.URL); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	if _, err := New(Options{}).Fetch(context.Background(), "not a url"); err == nil {
		t.Error("expected error for invalid url")
	}
}

func TestIsSlowMatchesSubdomains(t *testing.T) {
	f := New(Options{SlowDomains: []string{"kompas.com"}})
	if !f.isSlow("nasional.kompas.com") || !f.isSlow("kompas.com") {
		t.Error("expected kompas.com and subdomains to be slow")
	}
	if f.isSlow("notkompas.com") {
		t.Error("expected unrelated domain not to be slow")
	}
}
