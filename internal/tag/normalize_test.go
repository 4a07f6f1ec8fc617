package tag

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/sundayezeilo/pinboard/internal/validation"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Go", "go"},
		{"  JS  ", "js"},
		{"\tMixed Case\n", "mixed case"},
		{"\u00c9COLE", "\u00e9cole"},
		{"e\u0301cole", "\u00e9cole"}, // decomposed accent composes
		{"", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeNames(t *testing.T) {
	t.Run("dedupes keeping first occurrence order", func(t *testing.T) {
		got := NormalizeNames([]string{"JS", "go", "js", " JS ", "Go", "rust"})
		want := []string{"js", "go", "rust"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("NormalizeNames() = %v, want %v", got, want)
		}
	})

	t.Run("drops blank names", func(t *testing.T) {
		got := NormalizeNames([]string{"", "  ", "a"})
		if !reflect.DeepEqual(got, []string{"a"}) {
			t.Errorf("NormalizeNames() = %v, want [a]", got)
		}
	})

	t.Run("nil input yields empty slice", func(t *testing.T) {
		got := NormalizeNames(nil)
		if got == nil || len(got) != 0 {
			t.Errorf("NormalizeNames(nil) = %#v, want empty non-nil slice", got)
		}
	})
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "go", false},
		{"exactly max runes", strings.Repeat("é", MaxNameLength), false},
		{"empty", "", true},
		{"one over max", strings.Repeat("a", MaxNameLength+1), true},
		{"control character", "a\u0007b", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName("name", tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var ve *validation.Error
			if !errors.As(err, &ve) || ve.Fields["name"] == "" {
				t.Errorf("expected field error for name, got %v", err)
			}
		})
	}
}
