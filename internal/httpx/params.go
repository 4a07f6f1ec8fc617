package httpx

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/validation"
)

// URLParamUUID parses the chi URL parameter key as a UUID.
func URLParamUUID(r *http.Request, key string) (uuid.UUID, error) {
	const op = "httpx.URLParamUUID"

	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, errx.E(op, errx.Invalid, validation.NewError(key, "must be a valid UUID"))
	}
	return id, nil
}

// QueryBool reads an optional boolean query parameter. A missing or empty
// value yields nil.
func QueryBool(q url.Values, key string) (*bool, error) {
	const op = "httpx.QueryBool"

	raw := q.Get(key)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errx.E(op, errx.Invalid, validation.NewError(key, fmt.Sprintf("must be a boolean, got %q", raw)))
	}
	return &b, nil
}
