package core

import (
	"strings"

	"github.com/google/uuid"
)

// ID is a time-ordered unique identifier.
type ID string

// NewID returns a UUIDv7, or a random UUIDv4 if the clock source fails.
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

func (id ID) String() string { return string(id) }

type (
	// RunID identifies one stability run.
	RunID ID
	// ExperimentID identifies one experiment inside a run.
	ExperimentID ID
	// DatasetName is the key a container is persisted under.
	DatasetName string
)

func NewRunID() RunID               { return RunID(NewID()) }
func NewExperimentID() ExperimentID { return ExperimentID(NewID()) }

func (id RunID) String() string        { return string(id) }
func (id ExperimentID) String() string { return string(id) }
func (n DatasetName) String() string   { return string(n) }

// ParseDatasetName trims s and rejects names that are blank or could escape
// a store directory.
func ParseDatasetName(s string) (DatasetName, error) {
	name := strings.TrimSpace(s)
	switch {
	case name == "":
		return "", NewInputError("dataset name cannot be empty")
	case name == "." || name == "..", strings.ContainsAny(name, `/\`):
		return "", NewInputError("invalid dataset name %q", s)
	}
	return DatasetName(name), nil
}
