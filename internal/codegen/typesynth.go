package codegen

import (
	"fmt"
	"strings"

	"github.com/yourorg/docbind/pkg/types"
)

// StructType renders params as a Go struct type literal. Fields keep the
// parameter order; nested parameters become anonymous structs.
func StructType(params []types.Param) string {
	var b strings.Builder
	writeStruct(&b, params, 0)
	return b.String()
}

// ParamType renders the Go type of a single parameter.
func ParamType(p types.Param) string {
	var b strings.Builder
	writeParamType(&b, p, 0)
	return b.String()
}

// Optional reports whether a parameter may be omitted. Only an explicit
// "yes" makes it required.
func Optional(p types.Param) bool {
	return strings.ToLower(strings.TrimSpace(p.Required)) != "yes"
}

func writeStruct(b *strings.Builder, params []types.Param, depth int) {
	indent := strings.Repeat("\t", depth+1)
	used := make(map[string]int, len(params))

	b.WriteString("struct {\n")
	for _, p := range params {
		if p.Description != "" {
			fmt.Fprintf(b, "%s// %s\n", indent, p.Description)
		}
		b.WriteString(indent)
		b.WriteString(uniqueField(fieldName(p.Name), used))
		b.WriteString(" ")
		writeParamType(b, p, depth+1)
		fmt.Fprintf(b, " `json:\"%s\"`\n", jsonTag(p))
	}
	b.WriteString(strings.Repeat("\t", depth))
	b.WriteString("}")
}

func writeParamType(b *strings.Builder, p types.Param, depth int) {
	if len(p.Children) == 0 {
		b.WriteString(ScalarType(p.Type))
		return
	}
	if !strings.EqualFold(strings.TrimSpace(p.Type), "object") {
		b.WriteString("[]")
	}
	writeStruct(b, p.Children, depth)
}

// ScalarType maps a free-text type tag onto a Go type expression. A bare
// "Array" without children is read as []string.
func ScalarType(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	switch t {
	case "string":
		return "string"
	case "boolean", "bool":
		return "bool"
	case "integer", "int", "long", "int64":
		return "int64"
	case "number", "float", "double", "decimal":
		return "float64"
	case "object":
		return "map[string]any"
	case "array":
		return "[]string"
	}
	if elem, ok := strings.CutPrefix(t, "array of "); ok {
		return "[]" + ScalarType(strings.TrimSuffix(elem, "s"))
	}
	if elem, ok := strings.CutSuffix(t, "[]"); ok {
		return "[]" + ScalarType(elem)
	}
	return "any"
}

func jsonTag(p types.Param) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '"', '`', ',', ' ', '\t', '\n':
			return -1
		}
		return r
	}, p.Name)
	if Optional(p) {
		return name + ",omitempty"
	}
	return name
}

func uniqueField(name string, used map[string]int) string {
	used[name]++
	if n := used[name]; n > 1 {
		return fmt.Sprintf("%s%d", name, n)
	}
	return name
}
