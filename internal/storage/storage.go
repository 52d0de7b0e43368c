// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"lead_bot/internal/model"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Storage is the interface for all persistence operations.
type Storage interface {
	UpsertWorkspace(ctx context.Context, ws *model.Workspace) error
	GetWorkspace(ctx context.Context, id int64) (*model.Workspace, error)
	ListWorkspaces(ctx context.Context) ([]model.Workspace, error)

	AddPhrase(ctx context.Context, workspaceID int64, text string) (bool, error)
	ListPhrases(ctx context.Context, workspaceID int64) ([]model.Phrase, error)
	GetPhrase(ctx context.Context, id int64) (*model.Phrase, error)
	RemovePhrase(ctx context.Context, workspaceID int64, text string) (bool, error)
	ClearPhrases(ctx context.Context, workspaceID int64) (int64, error)

	IsNotified(ctx context.Context, workspaceID int64, postID string) (bool, error)
	RecordNotified(ctx context.Context, p *model.NotifiedPost) error
	ForgetNotified(ctx context.Context, workspaceID int64, postID string) error
	CountNotified(ctx context.Context, workspaceID int64) (int, error)
	PruneNotified(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
