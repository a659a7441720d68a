package parser

import (
	"strings"
	"unicode"
)

// SplitText breaks text into pieces of at most maxRunes runes. It prefers
// sentence boundaries, then word boundaries, and cuts words only when a
// single word is longer than maxRunes.
func SplitText(text string, maxRunes int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxRunes <= 0 || runeLen(text) <= maxRunes {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
	}
	add := func(part string) {
		if current.Len() > 0 && runeLen(current.String())+1+runeLen(part) > maxRunes {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(part)
	}

	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if runeLen(sentence) <= maxRunes {
			add(sentence)
			continue
		}
		for _, word := range strings.Fields(sentence) {
			for _, part := range cutRunes(word, maxRunes) {
				add(part)
			}
		}
	}
	flush()

	return pieces
}

// splitSentences splits text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				// Likely an abbreviation like "Dr."
				if i > 1 && unicode.IsUpper(runes[i-1]) {
					continue
				}
				sentences = append(sentences, current.String())
				current.Reset()
			}
		}
	}

	if current.Len() > 0 {
		sentences = append(sentences, current.String())
	}

	return sentences
}

func cutRunes(word string, n int) []string {
	runes := []rune(word)
	if len(runes) <= n {
		return []string{word}
	}
	var out []string
	for len(runes) > n {
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
