package filter

import (
	"strings"
	"testing"

	"github.com/yourorg/docbind/pkg/types"
)

func TestRedactExamples(t *testing.T) {
	cfg := RedactConfig{Fields: []string{"apiKey", "secretKey"}, Replacement: "***REDACTED***"}
	in := []types.Section{{
		Name: "Sub-account",
		Endpoints: []types.Endpoint{{
			Name:               "Create an API Key for a sub-account",
			RequestExampleText: "POST /api/v5/users/subaccount/apikey\nbody\n{\n    \"subAcct\":\"panpanBroker2\",\n    \"apiKey\": \"a1b2\"\n}",
			ResponseExampleValue: map[string]any{
				"code": "0",
				"data": []any{map[string]any{"subAcct": "test", "apiKey": "a1b2", "secretKey": "c3d4", "perm": "read_only"}},
			},
		}},
	}}

	out := Redact(in, cfg)
	ep := out[0].Endpoints[0]

	if !strings.Contains(ep.RequestExampleText, `"apiKey": "***REDACTED***"`) {
		t.Fatalf("request example not redacted: %s", ep.RequestExampleText)
	}
	if !strings.Contains(ep.RequestExampleText, `"subAcct":"panpanBroker2"`) {
		t.Fatalf("unrelated field changed: %s", ep.RequestExampleText)
	}

	item := ep.ResponseExampleValue.(map[string]any)["data"].([]any)[0].(map[string]any)
	if item["apiKey"] != cfg.Replacement || item["secretKey"] != cfg.Replacement {
		t.Fatalf("response example not redacted: %+v", item)
	}
	if item["perm"] != "read_only" {
		t.Fatalf("unexpected perm %v", item["perm"])
	}

	orig := in[0].Endpoints[0].ResponseExampleValue.(map[string]any)["data"].([]any)[0].(map[string]any)
	if orig["apiKey"] != "a1b2" {
		t.Fatalf("input example was modified")
	}
	if !strings.Contains(in[0].Endpoints[0].RequestExampleText, "a1b2") {
		t.Fatalf("input request example was modified")
	}
}

func TestRedactWithoutFields(t *testing.T) {
	in := []types.Section{{Name: "Account"}}
	out := Redact(in, RedactConfig{})
	if &out[0] != &in[0] {
		t.Fatalf("expected the same tree back")
	}
}

func TestSanitizeJSONValueScalars(t *testing.T) {
	set := toLowerSet([]string{"sign"})
	if got := sanitizeJSONValue("plain", set, "x"); got != "plain" {
		t.Fatalf("unexpected %v", got)
	}
	if got := sanitizeJSONValue(nil, set, "x"); got != nil {
		t.Fatalf("unexpected %v", got)
	}
}
