package shortener

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds how many candidates are tried before giving up.
const DefaultMaxAttempts = 5

// CodeSource returns a fresh random candidate code.
type CodeSource func() string

// ClaimFunc atomically takes ownership of code, typically by inserting the
// record that carries it. It returns ErrDuplicateCode when code is taken.
type ClaimFunc func(ctx context.Context, code Code) error

// Generator produces unique short codes by drawing random candidates and
// claiming them against the store until one sticks.
type Generator struct {
	next        CodeSource
	maxAttempts int
}

// NewGenerator creates a generator drawing candidates from next.
// A non-positive maxAttempts falls back to DefaultMaxAttempts.
func NewGenerator(next CodeSource, maxAttempts int) *Generator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Generator{
		next:        next,
		maxAttempts: maxAttempts,
	}
}

// Generate returns the first candidate that claim accepts.
// Collisions are retried with a new candidate; any other claim error is returned as is.
func (g *Generator) Generate(ctx context.Context, claim ClaimFunc) (Code, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := Code(g.next())

		err := claim(ctx, code)
		if err == nil {
			return code, nil
		}

		if !errors.Is(err, ErrDuplicateCode) {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %d candidates collided", ErrGenerationExhausted, g.maxAttempts)
}
