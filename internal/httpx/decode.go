package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sundayezeilo/pinboard/internal/errx"
)

const (
	// MaxRequestBodySize is the maximum allowed request body size (1MB).
	MaxRequestBodySize = 1 << 20
)

// DecodeJSON decodes a single JSON object from the request body into T.
// Unknown fields are rejected. Every failure is an errx.Invalid whose
// message is safe to show to the client.
func DecodeJSON[T any](r *http.Request) (T, error) {
	const op = "httpx.DecodeJSON"

	var v T
	if r.Body == nil {
		return v, errx.E(op, errx.Invalid, errors.New("request body is empty"))
	}

	body := http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)
	defer func() {
		_ = body.Close()
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&v); err != nil {
		var zero T
		return zero, errx.E(op, errx.Invalid, decodeError(err))
	}

	if decoder.More() {
		var zero T
		return zero, errx.E(op, errx.Invalid, errors.New("request body contains multiple JSON objects"))
	}

	return v, nil
}

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var unmarshalErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &syntaxErr):
		return fmt.Errorf("malformed JSON at position %d", syntaxErr.Offset)
	case errors.As(err, &unmarshalErr):
		return fmt.Errorf("invalid value for field %q", unmarshalErr.Field)
	case errors.As(err, &maxBytesErr):
		return fmt.Errorf("request body too large (max %d bytes)", MaxRequestBodySize)
	case errors.Is(err, io.EOF):
		return errors.New("request body is empty")
	case errors.Is(err, io.ErrUnexpectedEOF):
		return errors.New("malformed JSON: unexpected end of body")
	}

	// encoding/json has no typed error for unknown fields.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return fmt.Errorf("unknown field %s", name)
	}
	return fmt.Errorf("failed to decode JSON: %w", err)
}
