package pin

import (
	"context"

	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/tag"
)

// Repository persists pins with their tag associations. Missing rows are
// reported as errx.NotFound and a second pin for the same user and URL as
// errx.Conflict.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (Pin, error)
	FindByUserIDAndURL(ctx context.Context, userID uuid.UUID, url string) (Pin, error)

	// FindByUserID lists pins newest first, ties broken by id. CountByUserID
	// applies exactly the same filter.
	FindByUserID(ctx context.Context, userID uuid.UUID, filter Filter, page *Page) ([]Pin, error)
	CountByUserID(ctx context.Context, userID uuid.UUID, filter Filter) (int, error)

	Create(ctx context.Context, params CreateParams) (Pin, error)
	Update(ctx context.Context, params UpdateParams) (Pin, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// TagResolver turns raw tag names into the owner's tags, creating missing
// ones. tag.Repository satisfies it.
type TagResolver interface {
	FetchOrCreateByNames(ctx context.Context, userID uuid.UUID, names []string) ([]tag.Tag, error)
}
