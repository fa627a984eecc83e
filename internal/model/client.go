// Package model talks to an OpenAI-compatible chat-completions endpoint
// and decodes the reply into a typed answer envelope.
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/tabletalk/tabletalk/internal/prompt"
)

// ErrNotConfigured is returned by Disabled when no model backend is set up.
var ErrNotConfigured = errors.New("model backend is not configured")

// Client produces one answer envelope per composed prompt.
type Client interface {
	Complete(ctx context.Context, p prompt.Prompt) (Answer, error)
}

// Disabled is a Client for deployments without model credentials. It
// keeps upload and table browsing usable while every ask fails cleanly.
type Disabled struct {
	Reason string
}

func (d Disabled) Complete(context.Context, prompt.Prompt) (Answer, error) {
	if d.Reason != "" {
		return Answer{}, fmt.Errorf("%w: %s", ErrNotConfigured, d.Reason)
	}
	return Answer{}, ErrNotConfigured
}
