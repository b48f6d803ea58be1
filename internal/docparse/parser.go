package docparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yourorg/docbind/pkg/types"
)

// DefaultRateLimitMarker selects the note headings kept as endpoint description.
const DefaultRateLimitMarker = "Rate Limit"

var (
	ErrNoSection  = errors.New("no open section")
	ErrNoEndpoint = errors.New("no open endpoint")
)

// StructuralError reports a node that cannot be attributed to the tree.
type StructuralError struct {
	Index int
	Kind  Kind
	Text  string
	Err   error
}

func (e *StructuralError) Error() string {
	text := e.Text
	if r := []rune(text); len(r) > 60 {
		text = string(r[:60]) + "..."
	}
	return fmt.Sprintf("node %d (%s %q): %v", e.Index, e.Kind, text, e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// Warning is a recoverable problem attributed to one endpoint or table.
type Warning struct {
	Index    int    `json:"index"`
	Section  string `json:"section"`
	Endpoint string `json:"endpoint"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("node %d [%s / %s]: %s", w.Index, w.Section, w.Endpoint, w.Message)
}

// Result is the parsed tree plus the warnings collected on the way.
type Result struct {
	Sections []types.Section
	Warnings []Warning
}

// Parser reduces a node sequence into sections.
type Parser struct {
	RateLimitMarker string
	NestMarker      string

	logger zerolog.Logger
}

// NewParser returns a parser with the default markers.
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{
		RateLimitMarker: DefaultRateLimitMarker,
		NestMarker:      DefaultNestMarker,
		logger:          logger,
	}
}

// state is the cursor pair threaded through one pass: the open section is
// the last one, the open endpoint is the last one of that section.
type state struct {
	sections []types.Section
	warnings []Warning
	index    int
}

func (s *state) section() *types.Section {
	if len(s.sections) == 0 {
		return nil
	}
	return &s.sections[len(s.sections)-1]
}

func (s *state) endpoint() *types.Endpoint {
	sec := s.section()
	if sec == nil || len(sec.Endpoints) == 0 {
		return nil
	}
	return &sec.Endpoints[len(sec.Endpoints)-1]
}

func (s *state) warn(format string, args ...any) {
	w := Warning{Index: s.index, Message: fmt.Sprintf(format, args...)}
	if sec := s.section(); sec != nil {
		w.Section = sec.Name
	}
	if ep := s.endpoint(); ep != nil {
		w.Endpoint = ep.Name
	}
	s.warnings = append(s.warnings, w)
}

// Parse runs the single forward pass. Structural errors abort the pass;
// everything else is recorded as a warning.
func (p *Parser) Parse(nodes []Node) (*Result, error) {
	st := &state{}
	for i, n := range nodes {
		st.index = i
		if err := p.step(st, n); err != nil {
			return nil, &StructuralError{Index: i, Kind: n.Kind, Text: cleanText(n.Text), Err: err}
		}
	}
	for _, w := range st.warnings {
		p.logger.Warn().
			Int("node", w.Index).
			Str("section", w.Section).
			Str("endpoint", w.Endpoint).
			Msg(w.Message)
	}
	p.logger.Debug().
		Int("nodes", len(nodes)).
		Int("sections", len(st.sections)).
		Int("endpoints", types.CountEndpoints(st.sections)).
		Msg("document parsed")
	return &Result{Sections: st.sections, Warnings: st.warnings}, nil
}

func (p *Parser) step(st *state, n Node) error {
	switch n.Kind {
	case KindSectionHeading:
		st.sections = append(st.sections, types.Section{
			Name:        cleanText(n.Text),
			Description: []string{},
			Endpoints:   []types.Endpoint{},
		})
	case KindEndpointHeading:
		sec := st.section()
		if sec == nil {
			return ErrNoSection
		}
		sec.Endpoints = append(sec.Endpoints, types.Endpoint{
			Name:           cleanText(n.Text),
			Description:    []string{},
			RequestParams:  []types.Param{},
			ResponseParams: []types.Param{},
		})
	case KindParagraph:
		return p.paragraph(st, n)
	case KindNoteHeading:
		if !strings.Contains(n.Text, p.RateLimitMarker) {
			return nil
		}
		sec := st.section()
		if sec == nil {
			return ErrNoSection
		}
		if ep := st.endpoint(); ep != nil {
			ep.Description = append(ep.Description, cleanText(n.Text))
		} else {
			sec.Description = append(sec.Description, cleanText(n.Text))
		}
	case KindCode:
		return p.code(st, n)
	case KindTable:
		return p.table(st, n)
	}
	return nil
}

func (p *Parser) paragraph(st *state, n Node) error {
	sec := st.section()
	if sec == nil {
		return ErrNoSection
	}
	text := cleanText(n.Text)
	ep := st.endpoint()
	switch {
	case ep == nil:
		sec.Description = append(sec.Description, text)
	case n.HasInlineCode && !ep.HasDeclaration():
		ep.Method, ep.Path = splitDeclaration(text)
	default:
		ep.Description = append(ep.Description, text)
	}
	return nil
}

func (p *Parser) code(st *state, n Node) error {
	ep := st.endpoint()
	if ep == nil {
		if st.section() == nil {
			return ErrNoSection
		}
		return ErrNoEndpoint
	}
	switch n.Flavor {
	case FlavorPlaintext:
		ep.RequestExampleText = n.Text
	case FlavorJSON:
		v, err := DecodeExample(n.Text)
		if err != nil {
			st.warn("response example dropped: %v", err)
			return nil
		}
		ep.ResponseExampleValue = v
	}
	return nil
}

func (p *Parser) table(st *state, n Node) error {
	ep := st.endpoint()
	if ep == nil {
		if st.section() == nil {
			return ErrNoSection
		}
		return ErrNoEndpoint
	}
	target := classifyTable(n.Header)
	if target == targetNone {
		st.warn("table with %d columns skipped", len(n.Header))
		return nil
	}
	list := &ep.ResponseParams
	if target == targetRequest {
		list = &ep.RequestParams
	}
	if len(*list) > 0 {
		return nil
	}
	params, notes := buildParams(n.Rows, target, p.NestMarker)
	for _, note := range notes {
		st.warn("%s table %s", target, note)
	}
	*list = params
	if *list == nil {
		*list = []types.Param{}
	}
	return nil
}

// splitDeclaration splits "GET /api/v5/account/balance" into method and path.
func splitDeclaration(text string) (string, string) {
	fields := strings.Fields(text)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return "", fields[0]
	default:
		return strings.ToUpper(fields[0]), strings.Join(fields[1:], " ")
	}
}
