package filter

import (
	"regexp"
	"strings"

	"github.com/yourorg/docbind/internal/config"
	"github.com/yourorg/docbind/pkg/types"
)

// RedactConfig is an alias of config.RedactConfig.
type RedactConfig = config.RedactConfig

var quotedPair = regexp.MustCompile(`"([^"\\]+)"(\s*:\s*)"[^"\\]*"`)

// Redact replaces example values of sensitive fields in request and
// response examples, so credentials shown in the reference never reach
// generated doc comments. Example values are copied, not modified.
func Redact(sections []types.Section, cfg RedactConfig) []types.Section {
	fieldSet := toLowerSet(cfg.Fields)
	if len(fieldSet) == 0 {
		return sections
	}
	replacement := cfg.Replacement

	out := make([]types.Section, len(sections))
	for i, sec := range sections {
		out[i] = sec
		out[i].Endpoints = make([]types.Endpoint, len(sec.Endpoints))
		for j, ep := range sec.Endpoints {
			ep.RequestExampleText = sanitizeText(ep.RequestExampleText, fieldSet, replacement)
			ep.ResponseExampleValue = sanitizeJSONValue(ep.ResponseExampleValue, fieldSet, replacement)
			out[i].Endpoints[j] = ep
		}
	}
	return out
}

func sanitizeText(text string, set map[string]struct{}, replacement string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	return quotedPair.ReplaceAllStringFunc(text, func(m string) string {
		sub := quotedPair.FindStringSubmatch(m)
		if _, ok := set[strings.ToLower(sub[1])]; !ok {
			return m
		}
		return `"` + sub[1] + `"` + sub[2] + `"` + replacement + `"`
	})
}

func sanitizeJSONValue(v any, set map[string]struct{}, replacement string) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			if _, ok := set[strings.ToLower(k)]; ok {
				out[k] = replacement
				continue
			}
			out[k] = sanitizeJSONValue(v2, set, replacement)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i := range val {
			out[i] = sanitizeJSONValue(val[i], set, replacement)
		}
		return out
	default:
		return val
	}
}
