package docparse

// Kind classifies a document node for the structural parser.
type Kind int

const (
	KindOther Kind = iota
	KindSectionHeading
	KindEndpointHeading
	KindNoteHeading
	KindParagraph
	KindCode
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindSectionHeading:
		return "section-heading"
	case KindEndpointHeading:
		return "endpoint-heading"
	case KindNoteHeading:
		return "note-heading"
	case KindParagraph:
		return "paragraph"
	case KindCode:
		return "code"
	case KindTable:
		return "table"
	default:
		return "other"
	}
}

// Code block flavors.
const (
	FlavorPlaintext = "plaintext"
	FlavorJSON      = "json"
)

// Node is one sibling in the documented region, detached from any DOM library.
type Node struct {
	Kind Kind
	ID   string
	Text string

	// HasInlineCode is set for paragraphs containing a code span.
	HasInlineCode bool

	// Flavor is set for code blocks.
	Flavor string

	// Header and Rows are set for tables.
	Header []string
	Rows   [][]string
}
