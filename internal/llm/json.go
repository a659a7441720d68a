package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)
	codeFence  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

var errNoJSON = errors.New("no JSON object in response")

// extractJSONObject returns the first balanced JSON object in a model
// response, ignoring reasoning blocks, code fences and surrounding prose.
func extractJSONObject(response string) (string, error) {
	text := thinkBlock.ReplaceAllString(response, "")
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchingBrace(text, start)
		if end < 0 {
			break
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", errNoJSON
}

// matchingBrace returns the index of the brace closing the one at open,
// skipping braces inside string literals, or -1.
func matchingBrace(s string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// decodeJSON extracts and unmarshals a JSON object from a model response.
func decodeJSON[T any](response string) (T, error) {
	var out T
	raw, err := extractJSONObject(response)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("unmarshal JSON: %w", err)
	}
	return out, nil
}
