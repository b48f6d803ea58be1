package generator

import (
	"fmt"
	"strings"

	"github.com/yourorg/docbind/internal/codegen"
	"github.com/yourorg/docbind/pkg/types"
)

// RenderTree serializes the section tree as the intermediate JSON artifact.
func RenderTree(sections []types.Section) ([]byte, error) {
	if sections == nil {
		sections = []types.Section{}
	}
	data, err := types.JSON.MarshalIndent(sections, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RenderMarkdown renders a human-readable reference of the parsed tree,
// linking each endpoint to its generated function.
func RenderMarkdown(sections []types.Section, bindings []codegen.Binding) string {
	funcs := make(map[string]string, len(bindings))
	for _, b := range bindings {
		funcs[b.Section+"\x00"+b.Endpoint] = b.FuncName
	}

	b := &strings.Builder{}
	fmt.Fprintln(b, "# API Reference")
	for _, sec := range sections {
		fmt.Fprintf(b, "\n## %s\n", sec.Name)
		for _, d := range sec.Description {
			fmt.Fprintf(b, "\n%s\n", d)
		}
		for _, ep := range sec.Endpoints {
			fmt.Fprintf(b, "\n### %s\n\n", ep.Name)
			if ep.HasDeclaration() {
				fmt.Fprintf(b, "`%s %s`", ep.Method, ep.Path)
			} else {
				b.WriteString("_no declaration_")
			}
			if fn, ok := funcs[sec.Name+"\x00"+ep.Name]; ok {
				fmt.Fprintf(b, " · `%s`", fn)
			}
			b.WriteString("\n")
			for _, d := range ep.Description {
				fmt.Fprintf(b, "\n%s\n", d)
			}
			if len(ep.RequestParams) > 0 {
				fmt.Fprintln(b, "\n#### Request Parameters")
				b.WriteString(renderParams(ep.RequestParams, "", true))
			}
			if len(ep.ResponseParams) > 0 {
				fmt.Fprintln(b, "\n#### Response Parameters")
				b.WriteString(renderParams(ep.ResponseParams, "", false))
			}
			if strings.TrimSpace(ep.RequestExampleText) != "" {
				fmt.Fprintf(b, "\n#### Request Example\n\n```\n%s\n```\n", strings.Trim(ep.RequestExampleText, "\n"))
			}
		}
	}
	return b.String()
}

func renderParams(params []types.Param, indent string, withRequired bool) string {
	b := &strings.Builder{}
	for _, p := range params {
		if withRequired {
			req := "optional"
			if !codegen.Optional(p) {
				req = "required"
			}
			fmt.Fprintf(b, "%s- %s (%s, %s): %s\n", indent, p.Name, p.Type, req, p.Description)
		} else {
			fmt.Fprintf(b, "%s- %s (%s): %s\n", indent, p.Name, p.Type, p.Description)
		}
		if len(p.Children) > 0 {
			b.WriteString(renderParams(p.Children, indent+"  ", withRequired))
		}
	}
	return b.String()
}
