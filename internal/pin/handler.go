package pin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sundayezeilo/pinboard/internal/access"
	"github.com/sundayezeilo/pinboard/internal/httpx"
	"github.com/sundayezeilo/pinboard/internal/pagination"
)

// HTTPCreateRequest represents the JSON request body for saving a pin.
type HTTPCreateRequest struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	ReadLater   bool     `json:"read_later"`
	Tags        []string `json:"tags,omitempty"`
}

// HTTPUpdateRequest is a partial update. Omitted fields keep their value;
// "tags" replaces the whole set when present and "description": null
// clears the description.
type HTTPUpdateRequest struct {
	URL         *string        `json:"url,omitempty"`
	Title       *string        `json:"title,omitempty"`
	Description NullableString `json:"description"`
	ReadLater   *bool          `json:"read_later,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
}

// NullableString tells an absent JSON field apart from an explicit null.
type NullableString struct {
	Set   bool
	Value *string
}

func (n *NullableString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	return json.Unmarshal(data, &n.Value)
}

func (n NullableString) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Value)
}

// update maps the field onto UpdateInput, where nil keeps the stored value
// and "" clears it.
func (n NullableString) update() *string {
	if !n.Set {
		return nil
	}
	if n.Value == nil {
		empty := ""
		return &empty
	}
	return n.Value
}

// Handler provides HTTP handlers for the pin service.
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

// Routes mounts the pin endpoints on r. The caller's access.Control must
// already be in the request context.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// List handles GET /pins. Query parameters: page, page_size, tag,
// read_later, q (search) and untagged.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	readLater, err := httpx.QueryBool(q, "read_later")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	untagged, err := httpx.QueryBool(q, "untagged")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	filter := Filter{
		Tag:       q.Get("tag"),
		ReadLater: readLater,
		Search:    strings.TrimSpace(q.Get("q")),
		NoTags:    untagged != nil && *untagged,
	}

	res, err := h.service.GetUserPinsWithPagination(ctx, access.FromContext(ctx), filter,
		pagination.FromQuery(q)...)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	p, err := h.service.GetPin(r.Context(), access.FromContext(r.Context()), id)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// Create handles POST /pins. A URL the caller already saved is answered
// with 409 and the existing pin's id.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ac := access.FromContext(ctx)

	req, err := httpx.DecodeJSON[HTTPCreateRequest](r)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	in := CreateInput{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		ReadLater:   req.ReadLater,
		Tags:        req.Tags,
	}
	if u := ac.User(); u != nil {
		in.UserID = u.ID
	}

	p, err := h.service.CreatePin(ctx, ac, in)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+p.ID.String())
	httpx.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	req, err := httpx.DecodeJSON[HTTPUpdateRequest](r)
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	p, err := h.service.UpdatePin(ctx, access.FromContext(ctx), UpdateInput{
		ID:          id,
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description.update(),
		ReadLater:   req.ReadLater,
		Tags:        req.Tags,
	})
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamUUID(r, "id")
	if err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeletePin(r.Context(), access.FromContext(r.Context()), id); err != nil {
		httpx.WriteServiceError(w, r, h.logger, err)
		return
	}
	httpx.WriteNoContent(w)
}
