package tag

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/access"
	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/validation"
)

// CreateInput is the data needed to create a tag.
type CreateInput struct {
	UserID uuid.UUID `json:"user_id"`
	Name   string    `json:"name"`
}

type RenameInput struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// MergeInput folds every source tag into the target.
type MergeInput struct {
	SourceIDs []uuid.UUID `json:"source_ids" validate:"min=1,max=100"`
	TargetID  uuid.UUID   `json:"target_id" validate:"required"`
}

// Service defines the tag use cases. Every method takes the caller's
// access.Control and checks it before touching the repository.
type Service interface {
	GetUserTags(ctx context.Context, ac access.Control) ([]Tag, error)
	GetUserTagsWithCount(ctx context.Context, ac access.Control, filter CountFilter) ([]WithCount, error)
	GetTag(ctx context.Context, ac access.Control, id uuid.UUID) (Tag, error)
	CreateTag(ctx context.Context, ac access.Control, in CreateInput) (Tag, error)
	RenameTag(ctx context.Context, ac access.Control, in RenameInput) (Tag, error)
	MergeTags(ctx context.Context, ac access.Control, in MergeInput) error
	DeleteTag(ctx context.Context, ac access.Control, id uuid.UUID) error
	DeleteTagsWithNoPins(ctx context.Context, ac access.Control, userID uuid.UUID) (int64, error)
}

type service struct {
	repo      Repository
	validator *validation.Validator
	logger    *slog.Logger
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Validator *validation.Validator
	Logger    *slog.Logger
}

// NewService creates a new service instance.
func NewService(repo Repository, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	v := config.Validator
	if v == nil {
		v = validation.New()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		repo:      repo,
		validator: v,
		logger:    logger,
	}
}

// denied builds the authorization failure for ac: Unauthorized when nobody
// is signed in, Forbidden otherwise.
func denied(op string, ac access.Control, id uuid.UUID, action string) error {
	kind := errx.Forbidden
	if ac.User() == nil {
		kind = errx.Unauthorized
	}
	return errx.E(op, kind, &UnauthorizedError{ID: id, Action: action})
}

func (s *service) GetUserTags(ctx context.Context, ac access.Control) ([]Tag, error) {
	const op = "tag.service.GetUserTags"

	user := ac.User()
	if user == nil {
		return nil, denied(op, ac, uuid.Nil, "list")
	}

	tags, err := s.repo.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return readable(ac, user.ID, tags), nil
}

func (s *service) GetUserTagsWithCount(ctx context.Context, ac access.Control, filter CountFilter) ([]WithCount, error) {
	const op = "tag.service.GetUserTagsWithCount"

	user := ac.User()
	if user == nil {
		return nil, denied(op, ac, uuid.Nil, "list")
	}

	tags, err := s.repo.FindByUserIDWithPinCount(ctx, user.ID, filter)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return readable(ac, user.ID, tags), nil
}

// readable keeps only the entities owned by userID that ac may read. Admins
// can read everything, so ownership is checked separately.
func readable[T access.Owned](ac access.Control, userID uuid.UUID, items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if it.OwnerID() == userID && ac.CanRead(it) {
			out = append(out, it)
		}
	}
	return out
}

func (s *service) GetTag(ctx context.Context, ac access.Control, id uuid.UUID) (Tag, error) {
	const op = "tag.service.GetTag"

	t, err := s.load(ctx, op, id)
	if err != nil {
		return Tag{}, err
	}
	if !ac.CanRead(t) {
		return Tag{}, denied(op, ac, id, "read")
	}
	return t, nil
}

func (s *service) CreateTag(ctx context.Context, ac access.Control, in CreateInput) (Tag, error) {
	const op = "tag.service.CreateTag"

	if !ac.CanCreateAs(in.UserID) {
		return Tag{}, denied(op, ac, uuid.Nil, "create")
	}

	name := NormalizeName(in.Name)
	if err := ValidateName("name", name); err != nil {
		return Tag{}, errx.E(op, errx.Invalid, err)
	}

	t, err := s.repo.Create(ctx, in.UserID, name)
	if err != nil {
		return Tag{}, errx.Wrap(op, err)
	}

	s.logger.InfoContext(ctx, "tag created",
		"tag_id", t.ID.String(),
		"user_id", t.UserID.String(),
	)
	return t, nil
}

func (s *service) RenameTag(ctx context.Context, ac access.Control, in RenameInput) (Tag, error) {
	const op = "tag.service.RenameTag"

	name := NormalizeName(in.Name)
	if err := ValidateName("name", name); err != nil {
		return Tag{}, errx.E(op, errx.Invalid, err)
	}

	current, err := s.load(ctx, op, in.ID)
	if err != nil {
		return Tag{}, err
	}
	if !ac.CanUpdate(current) {
		return Tag{}, denied(op, ac, in.ID, "update")
	}
	if current.Name == name {
		return current, nil
	}

	t, err := s.repo.Rename(ctx, in.ID, name)
	if err != nil {
		return Tag{}, errx.Wrap(op, err)
	}
	return t, nil
}

// MergeTags checks the target and every source before the repository merge
// runs, so a missing or foreign tag aborts with nothing changed.
func (s *service) MergeTags(ctx context.Context, ac access.Control, in MergeInput) error {
	const op = "tag.service.MergeTags"

	if ac.User() == nil {
		return denied(op, ac, uuid.Nil, "merge")
	}

	in.SourceIDs = dedupeIDs(in.SourceIDs)
	if err := s.validator.Validate(in); err != nil {
		return errx.E(op, errx.Invalid, err)
	}
	for _, id := range in.SourceIDs {
		if id == in.TargetID {
			return errx.E(op, errx.Invalid,
				validation.NewError("source_ids", "must not include the target tag"))
		}
	}

	target, err := s.load(ctx, op, in.TargetID)
	if err != nil {
		return err
	}
	if !ac.CanUpdate(target) {
		return denied(op, ac, target.ID, "merge")
	}

	for _, id := range in.SourceIDs {
		src, err := s.load(ctx, op, id)
		if err != nil {
			return err
		}
		if !ac.CanUpdate(src) {
			return denied(op, ac, id, "merge")
		}
		if src.UserID != target.UserID {
			return errx.E(op, errx.Invalid,
				validation.NewError("source_ids", "must belong to the same owner as the target tag"))
		}
	}

	if err := s.repo.MergeTags(ctx, target.UserID, in.SourceIDs, target.ID); err != nil {
		return errx.Wrap(op, err)
	}

	s.logger.InfoContext(ctx, "tags merged",
		"tag_id", target.ID.String(),
		"user_id", target.UserID.String(),
		"sources", len(in.SourceIDs),
	)
	return nil
}

func (s *service) DeleteTag(ctx context.Context, ac access.Control, id uuid.UUID) error {
	const op = "tag.service.DeleteTag"

	t, err := s.load(ctx, op, id)
	if err != nil {
		return err
	}
	if !ac.CanDelete(t) {
		return denied(op, ac, id, "delete")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return errx.Wrap(op, err)
	}
	if !deleted {
		return errx.E(op, errx.NotFound, &NotFoundError{ID: id})
	}
	return nil
}

// DeleteTagsWithNoPins is self-service only: the caller must be able to
// create as userID.
func (s *service) DeleteTagsWithNoPins(ctx context.Context, ac access.Control, userID uuid.UUID) (int64, error) {
	const op = "tag.service.DeleteTagsWithNoPins"

	if !ac.CanCreateAs(userID) {
		return 0, denied(op, ac, uuid.Nil, "clean up")
	}

	n, err := s.repo.DeleteTagsWithNoPins(ctx, userID)
	if err != nil {
		return 0, errx.Wrap(op, err)
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "orphan tags removed",
			"user_id", userID.String(),
			"count", n,
		)
	}
	return n, nil
}

func (s *service) load(ctx context.Context, op string, id uuid.UUID) (Tag, error) {
	t, err := s.repo.FindByID(ctx, id)
	if err == nil {
		return t, nil
	}
	var nf *NotFoundError
	if errx.KindOf(err) == errx.NotFound && !errors.As(err, &nf) {
		return Tag{}, errx.E(op, errx.NotFound, &NotFoundError{ID: id})
	}
	return Tag{}, errx.Wrap(op, err)
}
