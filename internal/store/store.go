package store

import (
	"errors"

	"github.com/yourorg/docbind/pkg/types"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	CreateRun(sourceURL, startID, endID string) (*types.Run, error)
	GetRun(id string) (*types.Run, error)
	UpdateRunStatus(id, status, errMsg string) error
	FinishRun(run *types.Run) error
	ListRuns() ([]types.Run, error)
	DeleteRun(id string) error

	SaveArtifact(a *types.Artifact) error
	GetArtifact(runID, kind string) (*types.Artifact, error)
	ListArtifactKinds(runID string) ([]string, error)

	Close() error
}
