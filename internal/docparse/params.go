package docparse

import (
	"fmt"
	"strings"

	"github.com/yourorg/docbind/pkg/types"
)

// DefaultNestMarker prefixes the names of nested parameter rows.
const DefaultNestMarker = ">"

type tableTarget int

const (
	targetNone tableTarget = iota
	targetRequest
	targetResponse
)

func (t tableTarget) String() string {
	switch t {
	case targetRequest:
		return "request"
	case targetResponse:
		return "response"
	default:
		return "none"
	}
}

// classifyTable sniffs the table shape from its header width.
func classifyTable(header []string) tableTarget {
	switch len(header) {
	case 3:
		return targetResponse
	case 4:
		return targetRequest
	default:
		return targetNone
	}
}

// buildParams turns the rows of a classified table into a parameter tree.
// The returned notes describe rows that had to be reinterpreted.
func buildParams(rows [][]string, target tableTarget, marker string) ([]types.Param, []string) {
	var (
		params []types.Param
		notes  []string
	)
	for i, row := range rows {
		depth, name := splitMarker(cell(row, 0), marker)
		if name == "" {
			continue
		}
		p := types.Param{
			Name:     name,
			Type:     cleanText(cell(row, 1)),
			Children: []types.Param{},
		}
		if target == targetRequest {
			p.Required = cleanText(cell(row, 2))
			p.Description = cleanText(cell(row, 3))
		} else {
			p.Description = cleanText(cell(row, 2))
		}
		if depth > 0 && len(params) == 0 {
			notes = append(notes, fmt.Sprintf("row %d: nested %q has no parent, kept at top level", i+1, name))
		}
		insertParam(&params, depth, p)
	}
	return params, notes
}

// insertParam places p under the most recent parameter at depth-1, clamping
// to the deepest ancestor that exists. Names already present are ignored.
func insertParam(list *[]types.Param, depth int, p types.Param) {
	if depth == 0 || len(*list) == 0 {
		for _, existing := range *list {
			if existing.Name == p.Name {
				return
			}
		}
		*list = append(*list, p)
		return
	}
	parent := &(*list)[len(*list)-1]
	insertParam(&parent.Children, depth-1, p)
}

func splitMarker(raw, marker string) (int, string) {
	if marker == "" {
		marker = DefaultNestMarker
	}
	rest := strings.TrimSpace(raw)
	depth := 0
	for strings.HasPrefix(rest, marker) {
		depth++
		rest = strings.TrimSpace(strings.TrimPrefix(rest, marker))
	}
	rest = strings.ReplaceAll(rest, marker, "")
	return depth, strings.Join(strings.Fields(rest), "")
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
