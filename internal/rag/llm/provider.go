package llm

import (
	"context"
	"errors"
)

// Provider produces one completion for a system instruction and a user prompt.
type Provider interface {
	Generate(ctx context.Context, system string, user string) (string, error)
	Name() string
}

var ErrEmptyCompletion = errors.New("model returned an empty completion")
