package httpx

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sundayezeilo/pinboard/internal/errx"
)

type testRequest struct {
	URL       string   `json:"url"`
	Title     string   `json:"title"`
	ReadLater bool     `json:"read_later"`
	Tags      []string `json:"tags"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		errContains string
		validate    func(*testing.T, testRequest)
	}{
		{
			name: "valid JSON",
			body: `{"url":"https://go.dev","title":"Go","read_later":true,"tags":["go","lang"]}`,
			validate: func(t *testing.T, req testRequest) {
				if req.URL != "https://go.dev" {
					t.Errorf("expected url 'https://go.dev', got %q", req.URL)
				}
				if req.Title != "Go" {
					t.Errorf("expected title 'Go', got %q", req.Title)
				}
				if !req.ReadLater {
					t.Error("expected read_later true")
				}
				if len(req.Tags) != 2 {
					t.Errorf("expected 2 tags, got %v", req.Tags)
				}
			},
		},
		{
			name:        "empty body",
			body:        "",
			wantErr:     true,
			errContains: "request body is empty",
		},
		{
			name:        "malformed JSON - missing quote",
			body:        `{"url":"https://go.dev,"title":"Go"}`,
			wantErr:     true,
			errContains: "malformed JSON",
		},
		{
			name:        "malformed JSON - trailing comma",
			body:        `{"url":"https://go.dev","title":"Go",}`,
			wantErr:     true,
			errContains: "malformed JSON",
		},
		{
			name:        "truncated JSON",
			body:        `{"url":"https://go.dev"`,
			wantErr:     true,
			errContains: "malformed JSON",
		},
		{
			name:        "unknown field",
			body:        `{"url":"https://go.dev","title":"Go","user_id":"x"}`,
			wantErr:     true,
			errContains: `unknown field "user_id"`,
		},
		{
			name:        "invalid type for field",
			body:        `{"url":"https://go.dev","read_later":"yes"}`,
			wantErr:     true,
			errContains: `invalid value for field "read_later"`,
		},
		{
			name:        "multiple JSON objects",
			body:        `{"url":"https://go.dev"}{"url":"https://go.dev/doc"}`,
			wantErr:     true,
			errContains: "multiple JSON objects",
		},
		{
			name:        "body too large",
			body:        `{"title":"` + strings.Repeat("x", MaxRequestBodySize+1) + `"}`,
			wantErr:     true,
			errContains: "request body too large",
		},
		{
			name:        "trailing garbage",
			body:        `{"url":"https://go.dev"}extra`,
			wantErr:     true,
			errContains: "multiple JSON objects",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/pins", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			result, err := DecodeJSON[testRequest](req)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if kind := errx.KindOf(err); kind != errx.Invalid {
					t.Errorf("expected kind Invalid, got %v", kind)
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %q", tt.errContains, err.Error())
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestDecodeJSON_ZeroValueOnError(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/pins", strings.NewReader(`{"url":"https://go.dev","title":1}`))

	result, err := DecodeJSON[testRequest](req)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if result.URL != "" || result.Title != "" || result.Tags != nil {
		t.Errorf("expected zero value on error, got %+v", result)
	}
}

func TestDecodeJSON_ClosesBody(t *testing.T) {
	body := &testReadCloser{
		Reader: strings.NewReader(`{"url":"https://go.dev","title":"Go"}`),
	}

	req := httptest.NewRequest("POST", "/api/v1/pins", body)

	if _, err := DecodeJSON[testRequest](req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !body.closed {
		t.Error("expected body to be closed")
	}
}

// testReadCloser records whether the body was closed.
type testReadCloser struct {
	io.Reader
	closed bool
}

func (t *testReadCloser) Close() error {
	t.closed = true
	return nil
}
