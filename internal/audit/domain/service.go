package domain

import (
	"context"
	"errors"
)

// Entry is one audit record request.
type Entry struct {
	Action         string
	TargetType     string
	TargetID       string
	Actor          string
	Description    string
	PreviousStatus string
	NewStatus      string
	Changeset      map[string]any
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
}

var (
	ErrInvalidAction = errors.New("invalid_action")
)
