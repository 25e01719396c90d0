package app

import (
	"context"
)

// Stage starts one container of the environment described by a profile and records it in the
// session state.
type Stage interface {
	Name() string
	Execute(ctx context.Context, state *SessionState) error
}
