package pin

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sundayezeilo/pinboard/internal/tag"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause renders the predicate shared by FindByUserID and
// CountByUserID over the pins table aliased as p. Arguments are numbered
// from $1.
func whereClause(userID uuid.UUID, f Filter) (string, []any) {
	args := []any{userID}
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	conds := []string{"p.user_id = $1"}

	if name := tag.NormalizeName(f.Tag); name != "" {
		conds = append(conds, `EXISTS (
			SELECT 1 FROM pin_tags pt JOIN tags t ON t.id = pt.tag_id
			WHERE pt.pin_id = p.id AND t.name = `+arg(name)+`)`)
	}

	if f.ReadLater != nil {
		conds = append(conds, "p.read_later = "+arg(*f.ReadLater))
	}

	if q := strings.TrimSpace(f.Search); q != "" {
		n := arg("%" + likeEscaper.Replace(q) + "%")
		conds = append(conds, "(p.title ILIKE "+n+" OR p.description ILIKE "+n+" OR p.url ILIKE "+n+")")
	}

	if f.NoTags {
		conds = append(conds, "NOT EXISTS (SELECT 1 FROM pin_tags pt WHERE pt.pin_id = p.id)")
	}

	return strings.Join(conds, " AND "), args
}
