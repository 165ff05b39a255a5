package task

import (
	"github.com/joshjon/kit/id"
	"go.jetify.com/typeid"
)

type idPrefix struct{}

func (idPrefix) Prefix() string { return "task" }

// ID is the unique, typed identifier for a Task.
type ID struct {
	typeid.TypeID[idPrefix]
}

// NewID generates a new unique Task ID.
func NewID() ID {
	return id.New[ID]()
}

// ParseID parses a string into a Task ID.
func ParseID(s string) (ID, error) {
	return id.Parse[ID](s)
}

// MustParseID parses a string into a Task ID, panicking on failure.
func MustParseID(s string) ID {
	return id.MustParse[ID](s)
}
