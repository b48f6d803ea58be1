package types

// Section is a top-level group of endpoints, in document order.
type Section struct {
	Name        string     `json:"name"`
	Description []string   `json:"description"`
	Endpoints   []Endpoint `json:"endpoints"`
}

// Endpoint describes one documented operation.
type Endpoint struct {
	Name                 string   `json:"name"`
	Description          []string `json:"description"`
	Method               string   `json:"method"`
	Path                 string   `json:"path"`
	RequestParams        []Param  `json:"requestParams"`
	ResponseParams       []Param  `json:"responseParams"`
	RequestExampleText   string   `json:"requestExampleText"`
	ResponseExampleValue any      `json:"responseExampleValue,omitempty"`
}

// Param is one documented request or response field (supports nested children).
type Param struct {
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Required    string  `json:"required"`
	Children    []Param `json:"children"`
}

// HasDeclaration reports whether the endpoint carries a "METHOD path" line.
func (e *Endpoint) HasDeclaration() bool {
	return e.Method != "" || e.Path != ""
}

// CountEndpoints returns the total number of endpoints across sections.
func CountEndpoints(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Endpoints)
	}
	return n
}
