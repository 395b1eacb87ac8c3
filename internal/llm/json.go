package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONResponse pulls a JSON object out of an LLM reply. The first
// balanced object carrying one of keys wins; otherwise each ``` fenced block
// is tried in order. Returns nil when nothing decodes.
func ParseJSONResponse(text string, keys ...string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if obj := FindObject(text, keys...); obj != nil {
		return obj
	}

	for _, block := range FencedBlocks(text) {
		var obj map[string]any
		if err := json.Unmarshal([]byte(block), &obj); err == nil && obj != nil {
			return obj
		}
	}

	log.Printf("Failed to parse LLM response as JSON (%d chars)", len(text))
	return nil
}

// FindObject scans text for the first balanced {...} substring that decodes
// as a JSON object containing at least one of keys. With no keys any object
// qualifies. Prose before and after the object is ignored.
func FindObject(text string, keys ...string) map[string]any {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchBrace(text, start); end > start {
			var obj map[string]any
			if json.Unmarshal([]byte(text[start:end+1]), &obj) == nil && hasAnyKey(obj, keys) {
				return obj
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside JSON strings, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func hasAnyKey(obj map[string]any, keys []string) bool {
	if len(keys) == 0 {
		return true
	}
	for _, k := range keys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// FencedBlocks returns the contents of ``` fenced blocks in text with any
// leading "json" language tag removed.
func FencedBlocks(text string) []string {
	parts := strings.Split(text, "```")
	var blocks []string
	for i := 1; i < len(parts); i += 2 {
		block := strings.TrimSpace(parts[i])
		if len(block) >= 4 && strings.EqualFold(block[:4], "json") {
			block = strings.TrimSpace(block[4:])
		}
		if block != "" {
			blocks = append(blocks, block)
		}
	}
	return blocks
}
