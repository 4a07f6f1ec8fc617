package tag

import (
	"fmt"

	"github.com/google/uuid"
)

type NotFoundError struct {
	ID uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tag %s not found", e.ID)
}

// UnauthorizedError reports that the actor may not perform Action. ID is
// uuid.Nil for collection-level actions.
type UnauthorizedError struct {
	ID     uuid.UUID
	Action string
}

func (e *UnauthorizedError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("not allowed to %s tags", e.Action)
	}
	return fmt.Sprintf("not allowed to %s tag %s", e.Action, e.ID)
}

type DuplicateError struct {
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("tag %q already exists", e.Name)
}

func (e *DuplicateError) ErrorDetails() map[string]any {
	return map[string]any{"name": e.Name}
}
