package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/TobiSchelling/tokohwatch/internal/config"
)

const defaultOllamaURL = "http://localhost:11434"

// Request is a single chat-style completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// Seed asks the backend for repeatable sampling. Backends that do not
	// support seeding ignore it.
	Seed *int
}

// Provider is the interface for text-generation backends.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.Code, e.Body)
}

func messages(req Request) []map[string]string {
	var msgs []map[string]string
	if req.System != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": req.System})
	}
	return append(msgs, map[string]string{"role": "user", "content": req.Prompt})
}

// OllamaProvider is a local Ollama provider.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, timeout time.Duration) *OllamaProvider {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if Ollama is running and the model is available.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false
	}

	modelBase := strings.SplitN(o.Model, ":", 2)[0]
	for _, m := range result.Models {
		if strings.Contains(m.Name, modelBase) {
			return true
		}
	}
	log.Printf("Ollama model %q not found", o.Model)
	return false
}

// Complete sends the request to Ollama's chat endpoint.
func (o *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	options := map[string]any{
		"num_predict": req.MaxTokens,
		"temperature": req.Temperature,
	}
	if req.Seed != nil {
		options["seed"] = *req.Seed
	}
	body := map[string]any{
		"model":    o.Model,
		"messages": messages(req),
		"stream":   false,
		"options":  options,
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/chat", "", body, &result); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return result.Message.Content, nil
}

// OpenAIProvider talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIProvider struct {
	Model  string
	URL    string
	APIKey string
	client *http.Client
}

// NewOpenAIProvider creates a new chat-completions provider. The API key is
// read from the environment variable named by apiKeyEnv.
func NewOpenAIProvider(model, endpoint, apiKeyEnv string, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		Model:  model,
		URL:    endpoint,
		APIKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: timeout},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Complete posts the request and returns the first choice's message content.
func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("API key not configured")
	}

	body := map[string]any{
		"model":       o.Model,
		"messages":    messages(req),
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}
	if req.Seed != nil {
		body["seed"] = *req.Seed
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := postJSON(ctx, o.client, o.URL, o.APIKey, body, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

func postJSON(ctx context.Context, client *http.Client, endpoint, bearer string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// CreateProvider creates a provider from the classifier configuration.
// Ollama falls back to the chat-completions endpoint when it is not running.
// Returns nil when no backend is usable.
func CreateProvider(cfg config.Classifier, timeout time.Duration) Provider {
	if strings.EqualFold(cfg.Provider, "ollama") {
		p := NewOllamaProvider(cfg.Model, cfg.URL, timeout)
		if p.IsConfigured() {
			log.Printf("Using Ollama with model: %s", cfg.Model)
			return p
		}
		log.Println("Ollama not available, trying chat-completions fallback...")
		cfg.URL = "https://api.openai.com/v1/chat/completions"
	}

	p := NewOpenAIProvider(cfg.Model, cfg.URL, cfg.APIKeyEnv, timeout)
	if p.IsConfigured() {
		log.Printf("Using %s with model: %s", cfg.URL, cfg.Model)
		return p
	}

	log.Printf("No classification backend available. Check Ollama is running or set %s.", cfg.APIKeyEnv)
	return nil
}
