// Package tag manages user-scoped labels: name normalization, the
// idempotent fetch-or-create used when pins are saved, usage counts, merge
// and the orphan sweep.
package tag

import (
	"time"

	"github.com/google/uuid"
)

// MaxNameLength is the longest tag name, in runes, after normalization.
const MaxNameLength = 50

type Tag struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t Tag) OwnerID() uuid.UUID { return t.UserID }

// WithCount is a Tag plus the number of pins carrying it. PinCount is
// derived per query and never stored.
type WithCount struct {
	Tag
	PinCount int `json:"pin_count"`
}

// CountFilter narrows which pins are counted. A nil ReadLater counts every
// pin; ExcludeEmpty drops tags whose count is zero.
type CountFilter struct {
	ReadLater    *bool
	ExcludeEmpty bool
}
