// Package parser turns dictated body text into record content blocks.
package parser

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/raphaelgruber/dictate-go/internal/models"
)

// BlockParagraph is the only content block type records carry.
const (
	BlockParagraph  = "paragraph"
	DefaultMaxRunes = 2000
)

var (
	headingRegex  = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)
	emphasisRegex = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
)

// ParseBlocks turns a body into one paragraph block per non-empty line. Line
// text is kept as dictated: list markers, numbers and emphasis are not
// interpreted. Lines longer than maxRunes are split across consecutive
// paragraphs. maxRunes <= 0 uses DefaultMaxRunes.
func ParseBlocks(body string, maxRunes int) []models.Block {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}

	var blocks []models.Block
	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		for _, piece := range SplitText(line, maxRunes) {
			blocks = append(blocks, models.Block{Type: BlockParagraph, Text: piece})
		}
	}
	return blocks
}

func stripEmphasis(s string) string {
	return emphasisRegex.ReplaceAllString(s, "$1$2")
}

// FirstHeading returns the text of the first heading in body, if any.
func FirstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if match := headingRegex.FindStringSubmatch(strings.TrimSpace(line)); match != nil {
			return strings.TrimSpace(stripEmphasis(match[2]))
		}
	}
	return ""
}
