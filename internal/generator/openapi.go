package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/yourorg/docbind/internal/codegen"
	"github.com/yourorg/docbind/pkg/rest"
	"github.com/yourorg/docbind/pkg/types"
)

const openAPIVersion = "3.0.3"

var httpMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// RenderOpenAPI describes the bound endpoints as an OpenAPI 3 document in
// YAML. Endpoints without a method/path declaration are left out.
func RenderOpenAPI(ctx context.Context, sections []types.Section, bindings []codegen.Binding, title string) ([]byte, error) {
	doc := &openapi3.T{
		OpenAPI: openAPIVersion,
		Info:    &openapi3.Info{Title: title, Version: "1.0.0"},
		Paths:   openapi3.NewPaths(),
	}
	seen := make(map[string]bool)
	for _, sec := range sections {
		if !seen[sec.Name] {
			seen[sec.Name] = true
			doc.Tags = append(doc.Tags, &openapi3.Tag{Name: sec.Name})
		}
	}

	endpoints := indexEndpoints(sections)
	for _, b := range bindings {
		ep, ok := endpoints[b.Section+"\x00"+b.Endpoint]
		if !ok || !ep.HasDeclaration() || !strings.HasPrefix(ep.Path, "/") || !httpMethods[strings.ToUpper(ep.Method)] {
			continue
		}

		op := openapi3.NewOperation()
		op.OperationID = b.FuncName
		op.Summary = ep.Name
		op.Description = strings.Join(ep.Description, "\n\n")
		op.Tags = []string{b.Section}

		if len(ep.RequestParams) > 0 {
			if b.Location == rest.InBody {
				schema := objectSchema(ep.RequestParams, true)
				if b.RequestIsArray {
					schema = openapi3.NewArraySchema().WithItems(schema)
				}
				op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(schema)}
			} else {
				for _, p := range ep.RequestParams {
					param := openapi3.NewQueryParameter(p.Name).
						WithDescription(p.Description).
						WithRequired(!codegen.Optional(p)).
						WithSchema(paramSchema(p, true))
					op.AddParameter(param)
				}
			}
		}

		payload := openapi3.NewSchema()
		if len(ep.ResponseParams) > 0 {
			payload = objectSchema(ep.ResponseParams, false)
		}
		if b.ResponseIsArray {
			payload = openapi3.NewArraySchema().WithItems(payload)
		}
		resp := openapi3.NewResponse().WithDescription("Successful response").WithJSONSchema(payload)
		op.Responses = openapi3.NewResponses(openapi3.WithStatus(200, &openapi3.ResponseRef{Value: resp}))

		item := doc.Paths.Value(ep.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(ep.Path, item)
		}
		item.SetOperation(strings.ToUpper(ep.Method), op)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	raw, err := doc.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

// ValidateOpenAPI loads a rendered document and reports what is wrong with it.
func ValidateOpenAPI(ctx context.Context, data []byte) []string {
	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return []string{err.Error()}
	}
	var errs []string
	if err := doc.Validate(ctx); err != nil {
		errs = append(errs, err.Error())
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		errs = append(errs, "missing or empty paths")
	}
	return errs
}

func indexEndpoints(sections []types.Section) map[string]*types.Endpoint {
	out := make(map[string]*types.Endpoint)
	for si := range sections {
		for ei := range sections[si].Endpoints {
			ep := &sections[si].Endpoints[ei]
			key := sections[si].Name + "\x00" + ep.Name
			if _, ok := out[key]; !ok {
				out[key] = ep
			}
		}
	}
	return out
}

func objectSchema(params []types.Param, withRequired bool) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for _, p := range params {
		schema.WithProperty(p.Name, paramSchema(p, withRequired))
		if withRequired && !codegen.Optional(p) {
			schema.Required = append(schema.Required, p.Name)
		}
	}
	return schema
}

func paramSchema(p types.Param, withRequired bool) *openapi3.Schema {
	var schema *openapi3.Schema
	switch {
	case len(p.Children) > 0:
		schema = objectSchema(p.Children, withRequired)
		if !strings.EqualFold(strings.TrimSpace(p.Type), "object") {
			schema = openapi3.NewArraySchema().WithItems(schema)
		}
	default:
		schema = goTypeSchema(codegen.ScalarType(p.Type))
	}
	schema.Description = p.Description
	return schema
}

// goTypeSchema mirrors the Go type chosen for a field so the document and
// the bindings agree.
func goTypeSchema(goType string) *openapi3.Schema {
	if elem, ok := strings.CutPrefix(goType, "[]"); ok {
		return openapi3.NewArraySchema().WithItems(goTypeSchema(elem))
	}
	switch goType {
	case "string":
		return openapi3.NewStringSchema()
	case "bool":
		return openapi3.NewBoolSchema()
	case "int64":
		return openapi3.NewInt64Schema()
	case "float64":
		return openapi3.NewFloat64Schema()
	case "map[string]any":
		return openapi3.NewObjectSchema()
	}
	return openapi3.NewSchema()
}
