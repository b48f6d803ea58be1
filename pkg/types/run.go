package types

import "time"

// Run statuses.
const (
	RunStatusStarted   = "started"
	RunStatusGenerated = "generated"
	RunStatusFailed    = "failed"
)

// Artifact kinds stored per run.
const (
	ArtifactTree     = "tree"
	ArtifactGo       = "go"
	ArtifactMarkdown = "markdown"
	ArtifactOpenAPI  = "openapi"
)

// Run records one generation pass over a source document.
type Run struct {
	ID            string    `json:"id"`
	SourceURL     string    `json:"source_url"`
	StartID       string    `json:"start_id"`
	EndID         string    `json:"end_id"`
	SectionCount  int       `json:"section_count"`
	EndpointCount int       `json:"endpoint_count"`
	WarningCount  int       `json:"warning_count"`
	OutputDigest  string    `json:"output_digest"`
	Status        string    `json:"status"`
	ErrorMsg      string    `json:"error_msg,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Artifact is one rendered output of a run.
type Artifact struct {
	RunID     string    `json:"run_id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
