package domain

import (
	"context"
	"errors"
)

// Handler processes one job payload. Delivery is at-least-once: handlers
// must tolerate re-delivery of an already-completed payload.
type Handler func(ctx context.Context, payload map[string]any) error

type Service interface {
	Enqueue(ctx context.Context, name string, payload map[string]any) (string, error)
	Register(name string, handler Handler)
	// RunOnce claims and executes up to batch pending jobs. Exposed for the
	// worker loop and for tests driving the queue deterministically.
	RunOnce(ctx context.Context, batch int) (int, error)
}

var (
	ErrUnknownJob = errors.New("unknown_job")
	ErrEmptyName  = errors.New("empty_job_name")
)
