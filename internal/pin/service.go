package pin

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/sync/errgroup"

	"github.com/sundayezeilo/pinboard/internal/access"
	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/pagination"
	"github.com/sundayezeilo/pinboard/internal/tag"
	"github.com/sundayezeilo/pinboard/internal/validation"
)

// CreateInput is the data needed to save a new pin.
type CreateInput struct {
	UserID      uuid.UUID `json:"user_id" validate:"required"`
	URL         string    `json:"url" validate:"required,max=2048,weburl"`
	Title       string    `json:"title" validate:"required,max=200,nocontrol"`
	Description *string   `json:"description" validate:"omitnil,max=1000"`
	ReadLater   bool      `json:"read_later"`
	Tags        []string  `json:"tags" validate:"max=50,dive,required,max=50,nocontrol"`
}

// UpdateInput is a partial update: nil fields keep their stored value. An
// empty Description clears it. A non-nil Tags replaces the whole tag set.
type UpdateInput struct {
	ID          uuid.UUID `json:"id" validate:"required"`
	URL         *string   `json:"url" validate:"omitnil,max=2048,weburl"`
	Title       *string   `json:"title" validate:"omitnil,min=1,max=200,nocontrol"`
	Description *string   `json:"description" validate:"omitnil,max=1000"`
	ReadLater   *bool     `json:"read_later"`
	Tags        *[]string `json:"tags" validate:"omitnil,max=50,dive,required,max=50,nocontrol"`
}

// ListResult is one page of a user's pins.
type ListResult struct {
	Pins       []Pin                 `json:"pins"`
	Pagination pagination.Pagination `json:"pagination"`
	TotalCount int                   `json:"total_count"`
}

// Service defines the pin use cases. Every method takes the caller's
// access.Control and checks it before any write.
type Service interface {
	CreatePin(ctx context.Context, ac access.Control, in CreateInput) (Pin, error)
	UpdatePin(ctx context.Context, ac access.Control, in UpdateInput) (Pin, error)
	DeletePin(ctx context.Context, ac access.Control, id uuid.UUID) error
	GetPin(ctx context.Context, ac access.Control, id uuid.UUID) (Pin, error)
	GetUserPinsWithPagination(ctx context.Context, ac access.Control, filter Filter, opts ...pagination.Option) (ListResult, error)
}

// TagCleaner removes a user's tags that no pin carries any more.
// tag.Repository satisfies it.
type TagCleaner interface {
	DeleteTagsWithNoPins(ctx context.Context, userID uuid.UUID) (int64, error)
}

type service struct {
	repo         Repository
	tags         TagCleaner
	validator    *validation.Validator
	sanitizer    *bluemonday.Policy
	logger       *slog.Logger
	pageDefaults []pagination.Option
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	TagCleaner      TagCleaner // optional; nil disables the orphan sweep
	Validator       *validation.Validator
	Logger          *slog.Logger
	DefaultPageSize int
	MaxPageSize     int
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

	var defaults []pagination.Option
	if config.DefaultPageSize > 0 {
		defaults = append(defaults, pagination.WithDefaultPageSize(config.DefaultPageSize))
	}
	if config.MaxPageSize > 0 {
		defaults = append(defaults, pagination.WithMaxPageSize(config.MaxPageSize))
	}

	return &service{
		repo:         repo,
		tags:         config.TagCleaner,
		validator:    v,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger,
		pageDefaults: defaults,
	}
}

func denied(op string, ac access.Control, id uuid.UUID, action string) error {
	kind := errx.Forbidden
	if ac.User() == nil {
		kind = errx.Unauthorized
	}
	return errx.E(op, kind, &UnauthorizedError{ID: id, Action: action})
}

// plainText strips markup from user supplied text and trims it.
func (s *service) plainText(in string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(in)))
}

func (s *service) optionalText(in *string) *string {
	if in == nil {
		return nil
	}
	out := s.plainText(*in)
	if out == "" {
		return nil
	}
	return &out
}

func (s *service) CreatePin(ctx context.Context, ac access.Control, in CreateInput) (Pin, error) {
	const op = "pin.service.CreatePin"

	if !ac.CanCreateAs(in.UserID) {
		return Pin{}, denied(op, ac, uuid.Nil, "create")
	}

	in.URL = strings.TrimSpace(in.URL)
	in.Title = s.plainText(in.Title)
	in.Description = s.optionalText(in.Description)
	in.Tags = tag.NormalizeNames(in.Tags)

	if err := s.validator.Validate(in); err != nil {
		return Pin{}, errx.E(op, errx.Invalid, err)
	}

	if err := s.checkDuplicate(ctx, op, in.UserID, in.URL, uuid.Nil); err != nil {
		return Pin{}, err
	}

	created, err := s.repo.Create(ctx, CreateParams{
		UserID:      in.UserID,
		URL:         in.URL,
		Title:       in.Title,
		Description: in.Description,
		ReadLater:   in.ReadLater,
		TagNames:    in.Tags,
	})
	if err != nil {
		return Pin{}, s.conflictOrWrap(ctx, op, err, in.UserID, in.URL)
	}

	s.logger.InfoContext(ctx, "pin created",
		"pin_id", created.ID.String(),
		"user_id", created.UserID.String(),
		"tags", len(created.Tags),
	)
	return created, nil
}

func (s *service) UpdatePin(ctx context.Context, ac access.Control, in UpdateInput) (Pin, error) {
	const op = "pin.service.UpdatePin"

	current, err := s.load(ctx, op, in.ID)
	if err != nil {
		return Pin{}, err
	}
	if !ac.CanUpdate(current) {
		return Pin{}, denied(op, ac, in.ID, "update")
	}

	if in.URL != nil {
		u := strings.TrimSpace(*in.URL)
		in.URL = &u
	}
	if in.Title != nil {
		t := s.plainText(*in.Title)
		in.Title = &t
	}
	if in.Description != nil {
		d := s.plainText(*in.Description)
		in.Description = &d
	}
	if in.Tags != nil {
		names := tag.NormalizeNames(*in.Tags)
		in.Tags = &names
	}
	if err := s.validator.Validate(in); err != nil {
		return Pin{}, errx.E(op, errx.Invalid, err)
	}

	params := UpdateParams{
		ID:          current.ID,
		URL:         current.URL,
		Title:       current.Title,
		Description: current.Description,
		ReadLater:   current.ReadLater,
	}
	if in.URL != nil {
		params.URL = *in.URL
	}
	if in.Title != nil {
		params.Title = *in.Title
	}
	if in.Description != nil {
		params.Description = nil
		if *in.Description != "" {
			params.Description = in.Description
		}
	}
	if in.ReadLater != nil {
		params.ReadLater = *in.ReadLater
	}
	if in.Tags != nil {
		params.ReplaceTags = true
		params.TagNames = *in.Tags
	}

	if params.URL != current.URL {
		if err := s.checkDuplicate(ctx, op, current.UserID, params.URL, current.ID); err != nil {
			return Pin{}, err
		}
	}

	updated, err := s.repo.Update(ctx, params)
	if err != nil {
		return Pin{}, s.conflictOrWrap(ctx, op, err, current.UserID, params.URL)
	}

	if params.ReplaceTags {
		s.sweepTags(ctx, current.UserID)
	}
	return updated, nil
}

func (s *service) DeletePin(ctx context.Context, ac access.Control, id uuid.UUID) error {
	const op = "pin.service.DeletePin"

	current, err := s.load(ctx, op, id)
	if err != nil {
		return err
	}
	if !ac.CanDelete(current) {
		return denied(op, ac, id, "delete")
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return errx.Wrap(op, err)
	}
	if !deleted {
		return errx.E(op, errx.NotFound, &NotFoundError{ID: id})
	}

	s.logger.InfoContext(ctx, "pin deleted",
		"pin_id", id.String(),
		"user_id", current.UserID.String(),
	)
	if len(current.Tags) > 0 {
		s.sweepTags(ctx, current.UserID)
	}
	return nil
}

func (s *service) GetPin(ctx context.Context, ac access.Control, id uuid.UUID) (Pin, error) {
	const op = "pin.service.GetPin"

	p, err := s.load(ctx, op, id)
	if err != nil {
		return Pin{}, err
	}
	if !ac.CanRead(p) {
		return Pin{}, denied(op, ac, id, "read")
	}
	return p, nil
}

// GetUserPinsWithPagination counts and fetches one page with the same
// filter. The page window does not depend on the total, so both queries run
// concurrently.
func (s *service) GetUserPinsWithPagination(ctx context.Context, ac access.Control, filter Filter, opts ...pagination.Option) (ListResult, error) {
	const op = "pin.service.GetUserPinsWithPagination"

	user := ac.User()
	if user == nil {
		return ListResult{}, denied(op, ac, uuid.Nil, "list")
	}

	all := make([]pagination.Option, 0, len(s.pageDefaults)+len(opts))
	all = append(all, s.pageDefaults...)
	all = append(all, opts...)
	window := pagination.FromTotalCount(0, all...)

	var (
		total int
		pins  []Pin
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.repo.CountByUserID(gctx, user.ID, filter)
		return err
	})
	g.Go(func() error {
		var err error
		pins, err = s.repo.FindByUserID(gctx, user.ID, filter, &Page{
			Limit:  window.Limit(),
			Offset: window.Offset(),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, errx.Wrap(op, err)
	}

	visible := make([]Pin, 0, len(pins))
	for _, p := range pins {
		if p.UserID == user.ID && ac.CanRead(p) {
			visible = append(visible, p)
			continue
		}
		s.logger.WarnContext(ctx, "dropped unreadable pin from listing",
			"pin_id", p.ID.String(),
			"user_id", user.ID.String(),
		)
	}

	return ListResult{
		Pins:       visible,
		Pagination: pagination.FromTotalCount(total, all...),
		TotalCount: total,
	}, nil
}

func (s *service) load(ctx context.Context, op string, id uuid.UUID) (Pin, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err == nil {
		return p, nil
	}
	var nf *NotFoundError
	if errx.KindOf(err) == errx.NotFound && !errors.As(err, &nf) {
		return Pin{}, errx.E(op, errx.NotFound, &NotFoundError{ID: id})
	}
	return Pin{}, errx.Wrap(op, err)
}

// checkDuplicate fails with a DuplicateError when userID already pinned url
// under an id other than self.
func (s *service) checkDuplicate(ctx context.Context, op string, userID uuid.UUID, url string, self uuid.UUID) error {
	existing, err := s.repo.FindByUserIDAndURL(ctx, userID, url)
	switch {
	case err == nil && existing.ID != self:
		return errx.E(op, errx.Conflict, duplicateOf(existing))
	case err == nil, errx.KindOf(err) == errx.NotFound:
		return nil
	default:
		return errx.Wrap(op, err)
	}
}

// conflictOrWrap handles a write that lost a race on the (user, url)
// constraint by reporting the pin that won.
func (s *service) conflictOrWrap(ctx context.Context, op string, err error, userID uuid.UUID, url string) error {
	if errx.KindOf(err) != errx.Conflict {
		return errx.Wrap(op, err)
	}
	existing, findErr := s.repo.FindByUserIDAndURL(ctx, userID, url)
	if findErr != nil {
		return errx.E(op, errx.Conflict, &DuplicateError{URL: url})
	}
	return errx.E(op, errx.Conflict, duplicateOf(existing))
}

func duplicateOf(p Pin) *DuplicateError {
	return &DuplicateError{
		URL:               p.URL,
		ExistingID:        p.ID,
		ExistingCreatedAt: p.CreatedAt,
	}
}

// sweepTags drops the owner's orphaned tags. It runs after the pin write
// committed, so a failure is logged and never returned.
func (s *service) sweepTags(ctx context.Context, userID uuid.UUID) {
	if s.tags == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	n, err := s.tags.DeleteTagsWithNoPins(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "orphan tag sweep failed",
			"user_id", userID.String(),
			"error", err.Error(),
			"error_kind", errx.KindOf(err),
		)
		return
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "orphan tags removed",
			"user_id", userID.String(),
			"count", n,
		)
	}
}
