package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/tokohwatch/internal/config"
)

const defaultNewsAPIURL = "https://newsapi.org/v2/everything"

// NewsAPIClient searches the NewsAPI /v2/everything endpoint.
type NewsAPIClient struct {
	apiKey   string
	baseURL  string
	language string
	pageSize int
	client   *http.Client
}

// NewNewsAPIClient creates a client reading its key from the configured
// environment variable.
func NewNewsAPIClient(cfg config.NewsAPIConfig) *NewsAPIClient {
	c := &NewsAPIClient{
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		baseURL:  cfg.URL,
		language: cfg.Language,
		pageSize: cfg.PageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	if c.baseURL == "" {
		c.baseURL = defaultNewsAPIURL
	}
	if c.language == "" {
		c.language = "id"
	}
	if c.pageSize <= 0 || c.pageSize > 100 {
		c.pageSize = 100
	}
	return c
}

// IsConfigured returns whether the API key is available.
func (c *NewsAPIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Search returns articles matching query published between from and to.
// An empty to leaves the upper bound open.
func (c *NewsAPIClient) Search(ctx context.Context, query, from, to string) ([]Article, error) {
	params := url.Values{
		"q":        {query},
		"language": {c.language},
		"sortBy":   {"publishedAt"},
		"from":     {from},
		"pageSize": {strconv.Itoa(c.pageSize)},
	}
	if to != "" {
		params.Set("to", to)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building NewsAPI request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("NewsAPI request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("NewsAPI HTTP %d", resp.StatusCode)
	}

	var result struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Description string `json:"description"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding NewsAPI response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("NewsAPI status %q: %s", result.Status, result.Message)
	}

	var articles []Article
	for _, a := range result.Articles {
		if a.URL == "" || a.Title == "" {
			continue
		}
		if a.Title == "[Removed]" || a.URL == "https://removed.com" {
			continue
		}

		var published time.Time
		if a.PublishedAt != "" {
			if t, err := dateparse.ParseAny(a.PublishedAt); err == nil {
				published = t
			}
		}

		source := "NewsAPI"
		if a.Source.Name != "" {
			source = a.Source.Name
		}

		articles = append(articles, Article{
			URL:         a.URL,
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			Source:      source,
			PublishedAt: published,
		})
	}

	log.Printf("Fetched %d articles from NewsAPI for query: %s", len(articles), query)
	return articles, nil
}
