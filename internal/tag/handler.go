package tag

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/access"
	"github.com/sundayezeilo/pinboard/internal/httpx"
)

// HTTPNameRequest is the body of tag create and rename requests.
type HTTPNameRequest struct {
	Name string `json:"name"`
}

// HTTPMergeRequest is the body of a merge request.
type HTTPMergeRequest struct {
	SourceIDs []uuid.UUID `json:"source_ids"`
	TargetID  uuid.UUID   `json:"target_id"`
}

// Handler provides HTTP handlers for the tag service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
	}
}

// Routes mounts the tag endpoints on r. The caller's access.Control must
// already be in the request context.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/merge", h.Merge)
	r.Post("/prune", h.Prune)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Rename)
	r.Delete("/{id}", h.Delete)
}

// List returns the caller's tags sorted by name. With counts=true each tag
// carries its pin count, optionally restricted by read_later and with
// hide_empty dropping unused tags.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := access.FromContext(ctx)
	q := r.URL.Query()

	withCounts, err := httpx.QueryBool(q, "counts")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	if withCounts == nil || !*withCounts {
		tags, err := h.service.GetUserTags(ctx, ac)
		if err != nil {
			httpx.WriteServiceError(w, r, h.logger, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"tags": tags})
		return
	}

	readLater, err := httpx.QueryBool(q, "read_later")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	hideEmpty, err := httpx.QueryBool(q, "hide_empty")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	tags, err := h.service.GetUserTagsWithCount(ctx, ac, CountFilter{
		ReadLater:    readLater,
		ExcludeEmpty: hideEmpty != nil && *hideEmpty,
	})
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	t, err := h.service.GetTag(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := access.FromContext(ctx)

	req, err := httpx.DecodeJSON[HTTPNameRequest](r)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	in := CreateInput{Name: req.Name}
	if u := ac.User(); u != nil {
		in.UserID = u.ID
	}

	t, err := h.service.CreateTag(ctx, ac, in)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	req, err := httpx.DecodeJSON[HTTPNameRequest](r)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	t, err := h.service.RenameTag(ctx, access.FromContext(ctx), RenameInput{ID: id, Name: req.Name})
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteTag(r.Context(), access.FromContext(r.Context()), id); err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteNoContent(w)
}

// Merge folds source_ids into target_id. Pins keep a single link to the
// target; the sources are deleted.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := httpx.DecodeJSON[HTTPMergeRequest](r)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	err = h.service.MergeTags(ctx, access.FromContext(ctx), MergeInput{
		SourceIDs: req.SourceIDs,
		TargetID:  req.TargetID,
	})
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	t, err := h.service.GetTag(ctx, access.FromContext(ctx), req.TargetID)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

// Prune deletes the caller's tags that no pin carries.
func (h *Handler) Prune(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := access.FromContext(ctx)

	var userID uuid.UUID
	if u := ac.User(); u != nil {
		userID = u.ID
	}

	n, err := h.service.DeleteTagsWithNoPins(ctx, ac, userID)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int64{"removed": n})
}
