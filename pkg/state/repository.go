package state

import "context"

// Repository persists file-mode progress for --resume.
type Repository interface {
	// Load returns an empty state and nil error if none was saved.
	Load(ctx context.Context) (State, error)

	// Save persists the state atomically.
	Save(ctx context.Context, state State) error
}

var _ Repository = (*FileRepository)(nil)
