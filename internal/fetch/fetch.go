package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

const maxBodyBytes = 8 << 20

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ErrEmptyBody is returned when a page answers 2xx with no content.
var ErrEmptyBody = errors.New("empty response body")

// StatusError is returned for non-2xx page responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.Code, http.StatusText(e.Code))
}

// Page is a fetched HTML document.
type Page struct {
	URL      string
	FinalURL string
	HTML     string
}

// Options configures a Fetcher.
type Options struct {
	Timeout     time.Duration
	SlowTimeout time.Duration
	// SlowDomains get the longer timeout and one retry over a plain
	// HTTP/1.1 transport when the first attempt fails.
	SlowDomains []string
	UserAgent   string
}

// Fetcher downloads article pages with browser-like headers.
type Fetcher struct {
	client      *http.Client
	slowClient  *http.Client
	rawClient   *http.Client
	slowDomains []string
	userAgent   string
}

// New creates a new page fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.SlowTimeout == 0 {
		opts.SlowTimeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	return &Fetcher{
		client:     newClient(opts.Timeout, nil),
		slowClient: newClient(opts.SlowTimeout, nil),
		rawClient: newClient(opts.SlowTimeout, &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
			TLSNextProto:      map[string]func(string, *tls.Conn) http.RoundTripper{},
			DisableKeepAlives: true,
		}),
		slowDomains: opts.SlowDomains,
		userAgent:   opts.UserAgent,
	}
}

func newClient(timeout time.Duration, transport http.RoundTripper) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Fetch downloads pageURL and returns its body decoded to UTF-8.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", pageURL)
	}

	if !f.isSlow(u.Hostname()) {
		return f.do(ctx, f.client, pageURL)
	}

	page, err := f.do(ctx, f.slowClient, pageURL)
	if err == nil {
		return page, nil
	}
	log.Printf("Fetch failed for %s (%v), retrying over raw transport", pageURL, err)
	return f.do(ctx, f.rawClient, pageURL)
}

func (f *Fetcher) do(ctx context.Context, client *http.Client, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	f.setBrowserHeaders(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding charset: %w", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyBody
	}

	return &Page{
		URL:      pageURL,
		FinalURL: resp.Request.URL.String(),
		HTML:     string(data),
	}, nil
}

func (f *Fetcher) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

func (f *Fetcher) isSlow(host string) bool {
	host = strings.ToLower(host)
	for _, d := range f.slowDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
