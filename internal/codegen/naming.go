package codegen

import (
	"strings"
	"unicode"
)

// Identifier derives the camel-case binding identifier for an endpoint:
// section and endpoint names are joined, every run of non-word characters
// becomes a separator, and the lower-cased words are camel-cased.
func Identifier(section, endpoint string) string {
	words := splitWords(strings.ToLower(section + "_" + endpoint))
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(words[0])
	for _, w := range words[1:] {
		b.WriteString(upperFirst(w))
	}
	return b.String()
}

// Exported returns the leading-capital variant of a camel identifier.
func Exported(ident string) string {
	if ident == "" {
		return ""
	}
	if !unicode.IsLetter(rune(ident[0])) {
		return "Op" + ident
	}
	return upperFirst(ident)
}

// fieldName turns a documented parameter name into an exported Go field
// name, keeping its inner capitals ("instId" -> "InstId").
func fieldName(name string) string {
	var b strings.Builder
	for _, w := range splitWords(name) {
		b.WriteString(upperFirst(w))
	}
	out := b.String()
	switch {
	case out == "":
		return "Field"
	case !unicode.IsLetter(rune(out[0])):
		return "X" + out
	}
	return out
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !isWordRune(r)
	})
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
