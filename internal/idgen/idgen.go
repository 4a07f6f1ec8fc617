// Package idgen issues primary keys for pins and tags.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator issues unique identifiers. Implementations must be safe for
// concurrent use.
type Generator interface {
	Generate() (uuid.UUID, error)
}

// Func adapts a plain function to Generator.
type Func func() (uuid.UUID, error)

func (f Func) Generate() (uuid.UUID, error) { return f() }

type v7Gen struct {
	newID      func() (uuid.UUID, error)
	maxRetries int
}

type Option func(*v7Gen)

// WithRetries sets how many extra attempts follow a failed read from the
// random source. Negative values are ignored.
func WithRetries(n int) Option {
	return func(g *v7Gen) {
		if n >= 0 {
			g.maxRetries = n
		}
	}
}

// withSource replaces uuid.NewV7, for tests.
func withSource(fn func() (uuid.UUID, error)) Option {
	return func(g *v7Gen) { g.newID = fn }
}

// NewV7 returns a time-ordered generator. Rows inserted together stay close
// in the primary key index.
func NewV7(opts ...Option) Generator {
	g := &v7Gen{newID: uuid.NewV7, maxRetries: 1}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *v7Gen) Generate() (uuid.UUID, error) {
	var last error
	for range g.maxRetries + 1 {
		id, err := g.newID()
		if err == nil {
			return id, nil
		}
		last = err
	}
	return uuid.Nil, fmt.Errorf("idgen: uuid v7 failed after %d attempts: %w", g.maxRetries+1, last)
}
