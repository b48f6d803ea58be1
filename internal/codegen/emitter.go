package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"go/token"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/tools/imports"

	"github.com/yourorg/docbind/pkg/rest"
	"github.com/yourorg/docbind/pkg/types"
)

const (
	DefaultPackage    = "okxapi"
	DefaultRestImport = "github.com/yourorg/docbind/pkg/rest"
	DefaultFilename   = "bindings.go"

	generatedHeader = "// Code generated by docbind. DO NOT EDIT."
	noneExample     = "none"
)

var (
	ErrIdentifierCollision = errors.New("identifier collision")
	ErrEmptyIdentifier     = errors.New("endpoint has no usable identifier")
	ErrInvalidPackage      = errors.New("invalid package name")
)

// Options control the generated file. Zero values take the defaults.
type Options struct {
	Package    string
	RestImport string
	Filename   string
}

func (o Options) withDefaults() Options {
	if o.Package == "" {
		o.Package = DefaultPackage
	}
	if o.RestImport == "" {
		o.RestImport = DefaultRestImport
	}
	if o.Filename == "" {
		o.Filename = DefaultFilename
	}
	return o
}

// Binding describes one generated endpoint function.
type Binding struct {
	Section         string              `json:"section"`
	Endpoint        string              `json:"endpoint"`
	Ident           string              `json:"ident"`
	FuncName        string              `json:"funcName"`
	RequestType     string              `json:"requestType,omitempty"`
	ResponseType    string              `json:"responseType,omitempty"`
	Method          string              `json:"method"`
	Path            string              `json:"path"`
	Location        rest.ParamsLocation `json:"location"`
	RequestIsArray  bool                `json:"requestIsArray"`
	ResponseIsArray bool                `json:"responseIsArray"`
	RequestExample  string              `json:"requestExample"`
	ResponseExample string              `json:"responseExample"`

	endpoint *types.Endpoint
}

// Output is the formatted source and the bindings it declares.
type Output struct {
	Source   []byte
	Bindings []Binding
}

// Emitter turns a section tree into one Go source file.
type Emitter struct {
	opts   Options
	logger zerolog.Logger
}

// NewEmitter returns an Emitter with opts completed by the defaults.
func NewEmitter(opts Options, logger zerolog.Logger) *Emitter {
	return &Emitter{
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "emitter").Logger(),
	}
}

// Plan resolves identifiers, parameter locations and example payloads for
// every endpoint, in document order.
func (e *Emitter) Plan(sections []types.Section) ([]Binding, error) {
	declared := make(map[string]string)
	declare := func(name, owner string) error {
		if prev, ok := declared[name]; ok {
			return fmt.Errorf("%w: %s for %q already declared for %q", ErrIdentifierCollision, name, owner, prev)
		}
		declared[name] = owner
		return nil
	}

	var bindings []Binding
	for si := range sections {
		sec := &sections[si]
		for ei := range sec.Endpoints {
			ep := &sec.Endpoints[ei]
			owner := sec.Name + " / " + ep.Name

			ident := Identifier(sec.Name, ep.Name)
			if ident == "" {
				return nil, fmt.Errorf("%w: %q", ErrEmptyIdentifier, owner)
			}
			b := Binding{
				Section:  sec.Name,
				Endpoint: ep.Name,
				Ident:    ident,
				FuncName: Exported(ident),
				Method:   ep.Method,
				Path:     ep.Path,
				Location: paramsLocation(ep.RequestExampleText),
				endpoint: ep,
			}
			if err := declare(b.FuncName, owner); err != nil {
				return nil, err
			}
			if len(ep.RequestParams) > 0 {
				b.RequestType = b.FuncName + "Request"
				b.RequestIsArray = requestIsArray(ep.RequestExampleText)
				if err := declare(b.RequestType, owner); err != nil {
					return nil, err
				}
			}
			if len(ep.ResponseParams) > 0 {
				b.ResponseType = b.FuncName + "Response"
				if err := declare(b.ResponseType, owner); err != nil {
					return nil, err
				}
			}

			payload := responsePayload(ep.ResponseExampleValue)
			_, b.ResponseIsArray = payload.([]any)
			b.RequestExample = exampleText(ep.RequestExampleText)
			text, err := payloadText(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal response example of %q: %w", owner, err)
			}
			b.ResponseExample = text

			if !ep.HasDeclaration() {
				e.logger.Warn().Str("endpoint", owner).Msg("endpoint has no method/path declaration")
			}
			bindings = append(bindings, b)
		}
	}
	return bindings, nil
}

// Emit renders one formatted Go source file holding the types and
// functions of every endpoint.
func (e *Emitter) Emit(sections []types.Section) (*Output, error) {
	if !token.IsIdentifier(e.opts.Package) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPackage, e.opts.Package)
	}
	bindings, err := e.Plan(sections)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(generatedHeader + "\n\n")
	fmt.Fprintf(&buf, "package %s\n", e.opts.Package)
	if len(bindings) > 0 {
		e.writeImports(&buf)
	}
	for i := range bindings {
		writeBinding(&buf, &bindings[i])
	}

	src, err := imports.Process(e.opts.Filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("format generated source: %w", err)
	}

	e.logger.Debug().Int("bindings", len(bindings)).Int("bytes", len(src)).Msg("emitted bindings")
	return &Output{Source: src, Bindings: bindings}, nil
}

func (e *Emitter) writeImports(buf *bytes.Buffer) {
	buf.WriteString("\nimport (\n\t\"context\"\n\n")
	if path.Base(e.opts.RestImport) == "rest" {
		fmt.Fprintf(buf, "\t%q\n", e.opts.RestImport)
	} else {
		fmt.Fprintf(buf, "\trest %q\n", e.opts.RestImport)
	}
	buf.WriteString(")\n")
}

func writeBinding(buf *bytes.Buffer, b *Binding) {
	ep := b.endpoint
	if b.RequestType != "" {
		fmt.Fprintf(buf, "\n// %s is the request of %s.\ntype %s %s\n", b.RequestType, b.FuncName, b.RequestType, StructType(ep.RequestParams))
	}
	if b.ResponseType != "" {
		fmt.Fprintf(buf, "\n// %s is one item of the %s payload.\ntype %s %s\n", b.ResponseType, b.FuncName, b.ResponseType, StructType(ep.ResponseParams))
	}

	buf.WriteString("\n")
	writeDoc(buf, b)

	reqType, params := "", ""
	if b.RequestType != "" {
		reqType = b.RequestType
		if b.RequestIsArray {
			reqType = "[]" + reqType
		}
		params = ", params " + reqType
	}
	respType := "any"
	if b.ResponseType != "" {
		respType = b.ResponseType
	}
	if b.ResponseIsArray {
		respType = "[]" + respType
	}

	fmt.Fprintf(buf, "func %s(ctx context.Context, c rest.Sender%s) (%s, error) {\n", b.FuncName, params, respType)
	fmt.Fprintf(buf, "\tvar out %s\n", respType)
	buf.WriteString("\terr := rest.Call(ctx, c, rest.Request{\n")
	fmt.Fprintf(buf, "\t\tPath: %q,\n", b.Path)
	fmt.Fprintf(buf, "\t\tMethod: %q,\n", b.Method)
	if params != "" {
		buf.WriteString("\t\tParams: params,\n")
	}
	if b.Location == rest.InBody {
		buf.WriteString("\t\tParamsLocation: rest.InBody,\n")
	} else {
		buf.WriteString("\t\tParamsLocation: rest.InQuery,\n")
	}
	buf.WriteString("\t}, &out)\n\treturn out, err\n}\n")
}

func writeDoc(buf *bytes.Buffer, b *Binding) {
	line := func(s string) {
		if s == "" {
			buf.WriteString("//\n")
			return
		}
		buf.WriteString("// " + s + "\n")
	}
	block := func(s string) {
		for _, l := range strings.Split(s, "\n") {
			if l = strings.TrimRight(l, " \t\r"); l == "" {
				buf.WriteString("//\n")
				continue
			}
			buf.WriteString("//\t" + l + "\n")
		}
	}

	line(fmt.Sprintf("%s calls %q.", b.FuncName, b.Endpoint))
	if b.Method != "" || b.Path != "" {
		line("")
		line(strings.TrimSpace(b.Method + " " + b.Path))
	}
	for _, d := range b.endpoint.Description {
		line("")
		line(d)
	}
	line("")
	line("Request Example:")
	line("")
	block(b.RequestExample)
	line("")
	line("Response Example:")
	line("")
	block(b.ResponseExample)
}

// paramsLocation reads the parameter placement off the request example.
func paramsLocation(requestExample string) rest.ParamsLocation {
	if strings.Contains(requestExample, "body") {
		return rest.InBody
	}
	return rest.InQuery
}

func requestIsArray(requestExample string) bool {
	for _, l := range strings.Split(requestExample, "\n") {
		if strings.HasPrefix(strings.TrimSpace(l), "[") {
			return true
		}
	}
	return false
}

// responsePayload unwraps the {code, msg, data} envelope when present.
func responsePayload(v any) any {
	if m, ok := v.(map[string]any); ok {
		if data, ok := m["data"]; ok {
			return data
		}
	}
	return v
}

func exampleText(s string) string {
	s = strings.Trim(s, "\n")
	if strings.TrimSpace(s) == "" {
		return noneExample
	}
	return s
}

func payloadText(v any) (string, error) {
	if v == nil {
		return noneExample, nil
	}
	out, err := types.JSON.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
