// Package classify scores a person's involvement in a news text for
// security and unrest risk by delegating to an external text-generation
// backend, then repairing and normalizing whatever comes back.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/llm"
	"github.com/TobiSchelling/tokohwatch/internal/match"
)

// Options tunes requests to the backend.
type Options struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// Client classifies texts. It never returns an error: every failure is
// reported through Record.Failure.
type Client struct {
	provider llm.Provider
	cache    Cache
	opts     Options
}

// New creates a classifier. A nil cache gets a fresh MemoryCache.
func New(provider llm.Provider, cache Cache, opts Options) *Client {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	return &Client{provider: provider, cache: cache, opts: opts}
}

// Classify assesses text for person p.
func (c *Client) Classify(ctx context.Context, text string, p Person) *Record {
	key := CacheKey(text, p.Name)
	if rec, ok := c.cache.Get(ctx, key); ok {
		log.Printf("Using cached analysis for %s", p.Name)
		return rec
	}

	found := match.Check(p.Name, p.Aliases, text)
	statements := match.Sentences(text, p.Name, p.Aliases)
	if !found.Found() && len(statements) == 0 {
		log.Printf("Skipping classification: %q not found in text", p.Name)
		rec := NotFound(p)
		c.cache.Set(ctx, key, rec)
		return rec
	}
	if found.Found() && !found.Strict() {
		log.Printf("Strict boundary check failed for %q despite word-boundary match", p.Name)
	}

	rec := c.request(ctx, text, p, statements)
	if !rec.Failed() || rec.Failure == FailureParse {
		c.cache.Set(ctx, key, rec)
	}
	return rec
}

func (c *Client) request(ctx context.Context, text string, p Person, statements []string) *Record {
	if c.provider == nil {
		return errored(p, errors.New("no classification backend configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	seed := Seed(p.Name)
	out, err := c.provider.Complete(ctx, llm.Request{
		System:      systemPrompt,
		Prompt:      buildPrompt(p, statements, text),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: c.opts.Temperature,
		Seed:        &seed,
	})
	if err != nil {
		return failureRecord(p, err)
	}

	raw := ParseResponse(out)
	if raw == nil {
		log.Printf("Failed to extract valid JSON from response for %s, using defaults", p.Name)
		return parseFailed(p)
	}
	return Normalize(raw, p)
}

func failureRecord(p Person, err error) *Record {
	var se *llm.StatusError
	var ne net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		log.Printf("Classification request timed out for %s: %v", p.Name, err)
		return timedOut(p)
	case errors.As(err, &se):
		log.Printf("Classification request failed for %s: HTTP %d %s", p.Name, se.Code, truncate(se.Body, 200))
		return httpFailed(p)
	default:
		log.Printf("Classification error for %s: %v", p.Name, err)
		return errored(p, err)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
