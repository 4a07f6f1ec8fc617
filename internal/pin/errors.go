package pin

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pin %s not found", e.ID)
}

// UnauthorizedError reports that the actor may not perform Action. ID is
// uuid.Nil for collection-level actions.
type UnauthorizedError struct {
	ID     uuid.UUID
	Action string
}

func (e *UnauthorizedError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("not allowed to %s pins", e.Action)
	}
	return fmt.Sprintf("not allowed to %s pin %s", e.Action, e.ID)
}

// DuplicateError reports that the owner already saved URL. ExistingID and
// ExistingCreatedAt identify that pin so callers can link to it.
type DuplicateError struct {
	URL               string
	ExistingID        uuid.UUID
	ExistingCreatedAt time.Time
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("url %q is already pinned", e.URL)
}

// ErrorDetails is sent to clients with the 409 response.
func (e *DuplicateError) ErrorDetails() map[string]any {
	if e.ExistingID == uuid.Nil {
		return nil
	}
	return map[string]any{
		"existing_id":         e.ExistingID.String(),
		"existing_created_at": e.ExistingCreatedAt.UTC().Format(time.RFC3339),
	}
}
