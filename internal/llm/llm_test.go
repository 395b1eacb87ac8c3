package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseJSONResponsePlain(t *testing.T) {
	result := ParseJSONResponse(`{"key": "value", "num": 42}`)
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["key"] != "value" {
		t.Errorf("expected key='value', got %v", result["key"])
	}
	if result["num"] != float64(42) {
		t.Errorf("expected num=42, got %v", result["num"])
	}
}

func TestParseJSONResponseWithCodeFence(t *testing.T) {
	text := "Berikut hasil analisis:\n```json\n{\"kategori\": \"TINGGI\"}\n```\nSemoga membantu."
	result := ParseJSONResponse(text, "kategori")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["kategori"] != "TINGGI" {
		t.Errorf("expected kategori='TINGGI', got %v", result["kategori"])
	}
}

func TestParseJSONResponseSkipsUnrelatedObject(t *testing.T) {
	text := `Contoh format {"contoh": true} lalu hasil {"skor_risiko": 70}`
	result := ParseJSONResponse(text, "skor_risiko", "kategori")
	if result == nil {
		t.Fatal("expected non-nil result")
	}
	if result["skor_risiko"] != float64(70) {
		t.Errorf("got %v", result)
	}
}

func TestParseJSONResponseFencedFallback(t *testing.T) {
	// The object lacks every wanted key, so only the fenced pass accepts it.
	text := "```json\n{\"lain\": 1}\n```"
	result := ParseJSONResponse(text, "kategori")
	if result == nil || result["lain"] != float64(1) {
		t.Fatalf("got %v", result)
	}
}

func TestParseJSONResponseInvalid(t *testing.T) {
	if result := ParseJSONResponse("not json at all"); result != nil {
		t.Error("expected nil for invalid JSON")
	}
	if result := ParseJSONResponse("{broken"); result != nil {
		t.Error("expected nil for unbalanced JSON")
	}
}

func TestParseJSONResponseEmpty(t *testing.T) {
	if result := ParseJSONResponse("  \n "); result != nil {
		t.Error("expected nil for empty string")
	}
}

func TestFindObjectBracesInStrings(t *testing.T) {
	text := `hasil: {"ringkasan": "kutipan {tidak seimbang", "skor_risiko": 10} selesai`
	obj := FindObject(text, "ringkasan")
	if obj == nil {
		t.Fatal("expected object")
	}
	if obj["ringkasan"] != "kutipan {tidak seimbang" {
		t.Errorf("ringkasan = %v", obj["ringkasan"])
	}
}

func TestFencedBlocks(t *testing.T) {
	blocks := FencedBlocks("a\n```json\n{\"x\":1}\n```\nb\n```\n{\"y\":2}\n```")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %q", len(blocks), blocks)
	}
	if blocks[0] != `{"x":1}` || blocks[1] != `{"y":2}` {
		t.Errorf("blocks = %q", blocks)
	}
}

func TestOpenAIProviderComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"kategori\":\"SEDANG\"}"}}]}`))
	}))
	defer srv.Close()

	t.Setenv("TEST_CLASSIFIER_KEY", "secret")
	p := NewOpenAIProvider("gpt-test", srv.URL, "TEST_CLASSIFIER_KEY", 5*time.Second)
	if !p.IsConfigured() {
		t.Fatal("expected provider to be configured")
	}

	seed := 42
	out, err := p.Complete(context.Background(), Request{
		System: "sistem", Prompt: "halo", MaxTokens: 300, Temperature: 0.7, Seed: &seed,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != `{"kategori":"SEDANG"}` {
		t.Errorf("content = %q", out)
	}
	if got["seed"] != float64(42) {
		t.Errorf("seed = %v", got["seed"])
	}
	if got["max_tokens"] != float64(300) {
		t.Errorf("max_tokens = %v", got["max_tokens"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", got["messages"])
	}
}

func TestOpenAIProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	t.Setenv("TEST_CLASSIFIER_KEY", "secret")
	p := NewOpenAIProvider("gpt-test", srv.URL, "TEST_CLASSIFIER_KEY", 5*time.Second)
	_, err := p.Complete(context.Background(), Request{Prompt: "halo"})

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests {
		t.Errorf("code = %d", se.Code)
	}
}

func TestOpenAIProviderWithoutKey(t *testing.T) {
	t.Setenv("TEST_CLASSIFIER_KEY", "")
	p := NewOpenAIProvider("gpt-test", "http://127.0.0.1:1", "TEST_CLASSIFIER_KEY", time.Second)
	if p.IsConfigured() {
		t.Error("provider without key should not be configured")
	}
	if _, err := p.Complete(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Error("expected error without key")
	}
}

func TestOllamaProviderComplete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"message":{"content":"ok"}}`))
	}))
	defer srv.Close()

	seed := 7
	p := NewOllamaProvider("llama3", srv.URL, 5*time.Second)
	out, err := p.Complete(context.Background(), Request{Prompt: "halo", MaxTokens: 50, Seed: &seed})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "ok" {
		t.Errorf("content = %q", out)
	}
	opts, _ := got["options"].(map[string]any)
	if opts["seed"] != float64(7) || opts["num_predict"] != float64(50) {
		t.Errorf("options = %v", opts)
	}
}
