package docparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yourorg/docbind/pkg/types"
)

var ErrEmptyExample = errors.New("empty example")

// DecodeExample parses a JSON example block. Lines holding only ellipsis
// placeholders are dropped first; the text is never evaluated as code.
func DecodeExample(text string) (any, error) {
	cleaned := dropDanglingCommas(stripPlaceholders(text))
	if strings.TrimSpace(cleaned) == "" {
		return nil, ErrEmptyExample
	}
	var v any
	if err := types.JSON.UnmarshalFromString(cleaned, &v); err != nil {
		return nil, fmt.Errorf("decode example: %w", err)
	}
	return v, nil
}

func stripPlaceholders(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isPlaceholder(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func isPlaceholder(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	return strings.Trim(trimmed, ".… \t") == ""
}

// dropDanglingCommas removes a comma left in front of a closing bracket or
// brace once the elided elements after it are gone. String contents are
// copied as is.
func dropDanglingCommas(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inString, escaped := false, false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			b.WriteByte(c)
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
		if c == '"' {
			inString = true
		}
		if c == ',' && closesNext(text[i+1:]) {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesNext(rest string) bool {
	rest = strings.TrimLeft(rest, " \t\r\n")
	return rest != "" && (rest[0] == ']' || rest[0] == '}')
}
