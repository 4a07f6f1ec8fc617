// Package pin manages saved bookmarks: the Pin entity, its filter
// composition, the PostgreSQL repository and the service that authorizes
// and validates every use case.
package pin

import (
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/tag"
)

const (
	MaxURLLength         = 2048
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
	MaxTagsPerPin        = 50
)

type Pin struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	ReadLater   bool      `json:"read_later"`
	Tags        []tag.Tag `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Pin) OwnerID() uuid.UUID { return p.UserID }

// TagNames returns the names of the pin's tags in stored order.
func (p Pin) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}

// Filter narrows a user's pins. Set fields are combined with AND; a nil
// ReadLater matches both states.
type Filter struct {
	Tag       string
	ReadLater *bool
	Search    string
	NoTags    bool
}

// Page bounds a listing. A nil *Page returns every match.
type Page struct {
	Limit  int
	Offset int
}

// CreateParams is what the repository stores for a new pin. TagNames are
// resolved to tags in the same transaction.
type CreateParams struct {
	UserID      uuid.UUID
	URL         string
	Title       string
	Description *string
	ReadLater   bool
	TagNames    []string
}

// UpdateParams carries the full new state of a pin. The tag set is replaced
// with TagNames only when ReplaceTags is set.
type UpdateParams struct {
	ID          uuid.UUID
	URL         string
	Title       string
	Description *string
	ReadLater   bool
	ReplaceTags bool
	TagNames    []string
}
