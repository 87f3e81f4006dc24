// Package uuid provides analysis ID generation and validation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates random (version 4) UUID strings, the format clients
// poll with.
type Generator struct{}

// New creates a Generator.
func New() *Generator {
	return &Generator{}
}

// NewID returns a new id string.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return id.String(), nil
}

// Parse validates a textual id.
func Parse(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	return parsed, nil
}
