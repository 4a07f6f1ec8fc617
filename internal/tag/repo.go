package tag

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists tags and their pin associations. Lookups by name
// normalize the name first. Missing rows are reported as errx.NotFound and
// per-user name clashes as errx.Conflict.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (Tag, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]Tag, error)
	FindByUserIDAndName(ctx context.Context, userID uuid.UUID, name string) (Tag, error)
	FindByUserIDWithPinCount(ctx context.Context, userID uuid.UUID, filter CountFilter) ([]WithCount, error)

	// FetchOrCreateByNames resolves raw names to tags, creating the missing
	// ones, and returns them in input order with duplicates removed. It is
	// idempotent and safe against concurrent callers.
	FetchOrCreateByNames(ctx context.Context, userID uuid.UUID, names []string) ([]Tag, error)

	Create(ctx context.Context, userID uuid.UUID, name string) (Tag, error)
	Rename(ctx context.Context, id uuid.UUID, name string) (Tag, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// MergeTags moves every pin association of the sources onto the target
	// and deletes the sources, all or nothing.
	MergeTags(ctx context.Context, userID uuid.UUID, sourceIDs []uuid.UUID, targetID uuid.UUID) error

	// DeleteTagsWithNoPins removes the user's tags that no pin carries and
	// returns how many were removed.
	DeleteTagsWithNoPins(ctx context.Context, userID uuid.UUID) (int64, error)
}
