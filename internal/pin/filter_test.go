package pin

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestWhereClause(t *testing.T) {
	userID := uuid.New()
	yes := true

	tests := []struct {
		name     string
		filter   Filter
		contains []string
		args     []any
	}{
		{
			name:     "user only",
			filter:   Filter{},
			contains: []string{"p.user_id = $1"},
			args:     []any{userID},
		},
		{
			name:     "tag is normalized",
			filter:   Filter{Tag: "  GoLang "},
			contains: []string{"EXISTS", "t.name = $2"},
			args:     []any{userID, "golang"},
		},
		{
			name:     "blank tag is ignored",
			filter:   Filter{Tag: "   "},
			contains: []string{"p.user_id = $1"},
			args:     []any{userID},
		},
		{
			name:     "read later",
			filter:   Filter{ReadLater: &yes},
			contains: []string{"p.read_later = $2"},
			args:     []any{userID, true},
		},
		{
			name:     "search escapes wildcards",
			filter:   Filter{Search: " 100%_off\\ "},
			contains: []string{"p.title ILIKE $2", "p.description ILIKE $2", "p.url ILIKE $2"},
			args:     []any{userID, `%100\%\_off\\%`},
		},
		{
			name:     "no tags",
			filter:   Filter{NoTags: true},
			contains: []string{"NOT EXISTS"},
			args:     []any{userID},
		},
		{
			name:     "combined filters number their arguments in order",
			filter:   Filter{Tag: "go", ReadLater: &yes, Search: "docs"},
			contains: []string{"t.name = $2", "p.read_later = $3", "p.title ILIKE $4"},
			args:     []any{userID, "go", true, "%docs%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := whereClause(userID, tt.filter)

			for _, want := range tt.contains {
				if !strings.Contains(where, want) {
					t.Errorf("where = %q, missing %q", where, want)
				}
			}
			if len(args) != len(tt.args) {
				t.Fatalf("args = %v, want %v", args, tt.args)
			}
			for i := range args {
				if args[i] != tt.args[i] {
					t.Errorf("args[%d] = %v, want %v", i, args[i], tt.args[i])
				}
			}
		})
	}
}
