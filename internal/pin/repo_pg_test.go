package pin

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sundayezeilo/pinboard/internal/db"
	"github.com/sundayezeilo/pinboard/internal/db/dbtest"
	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/tag"
)

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM `+table).Scan(&n))
	return n
}

func TestPGRepository(t *testing.T) {
	pool := dbtest.NewPool(t)
	exec := db.NewExecutor(pool)
	tags := tag.NewRepository(exec, nil)
	repo := NewRepository(exec, tags, nil)
	ctx := context.Background()

	create := func(t *testing.T, userID uuid.UUID, url string, readLater bool, tagNames ...string) Pin {
		t.Helper()
		p, err := repo.Create(ctx, CreateParams{
			UserID:    userID,
			URL:       url,
			Title:     "Title of " + url,
			ReadLater: readLater,
			TagNames:  tagNames,
		})
		require.NoError(t, err)
		return p
	}

	t.Run("create stores the pin with sorted tags", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		desc := "notes"

		p, err := repo.Create(ctx, CreateParams{
			UserID:      user,
			URL:         "https://go.dev",
			Title:       "Go",
			Description: &desc,
			TagNames:    []string{"lang", "go"},
		})
		require.NoError(t, err)
		assert.Equal(t, 7, int(p.ID.Version()))
		assert.Equal(t, []string{"go", "lang"}, p.TagNames())

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.URL, found.URL)
		require.NotNil(t, found.Description)
		assert.Equal(t, "notes", *found.Description)
		assert.Equal(t, []string{"go", "lang"}, found.TagNames())
		assert.WithinDuration(t, p.CreatedAt, found.CreatedAt, time.Millisecond)
	})

	t.Run("create without tags returns an empty tag list", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		p := create(t, uuid.New(), "https://example.com", false)

		found, err := repo.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.NotNil(t, found.Tags)
		assert.Empty(t, found.Tags)
	})

	t.Run("same url twice for one user is a conflict", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		create(t, user, "https://example.com", false, "x")

		_, err := repo.Create(ctx, CreateParams{UserID: user, URL: "https://example.com", Title: "again", TagNames: []string{"y"}})
		assert.Equal(t, errx.Conflict, errx.KindOf(err))
		var de *DuplicateError
		require.ErrorAs(t, err, &de)

		// The failed insert must not leave its tag behind.
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM tags WHERE name = 'y'`).Scan(&n))
		assert.Zero(t, n)

		create(t, uuid.New(), "https://example.com", false)
	})

	t.Run("find by user and url", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		p := create(t, user, "https://example.com/a", false, "go")

		found, err := repo.FindByUserIDAndURL(ctx, user, "https://example.com/a")
		require.NoError(t, err)
		assert.Equal(t, p.ID, found.ID)
		assert.Equal(t, []string{"go"}, found.TagNames())

		_, err = repo.FindByUserIDAndURL(ctx, uuid.New(), "https://example.com/a")
		assert.Equal(t, errx.NotFound, errx.KindOf(err))
	})

	t.Run("find by id reports missing pins", func(t *testing.T) {
		id := uuid.New()
		_, err := repo.FindByID(ctx, id)
		assert.Equal(t, errx.NotFound, errx.KindOf(err))
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, id, nf.ID)
	})

	t.Run("listing is newest first and paged", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		var ids []uuid.UUID
		for _, u := range []string{"https://a.example", "https://b.example", "https://c.example"} {
			ids = append(ids, create(t, user, u, false).ID)
		}
		create(t, uuid.New(), "https://other.example", false)

		all, err := repo.FindByUserID(ctx, user, Filter{}, nil)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []uuid.UUID{ids[2], ids[1], ids[0]}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})

		page, err := repo.FindByUserID(ctx, user, Filter{}, &Page{Limit: 2, Offset: 2})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, ids[0], page[0].ID)
	})

	t.Run("count agrees with find for every filter", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		create(t, user, "https://go.dev/doc", true, "go", "docs")
		create(t, user, "https://go.dev/blog", false, "go")
		create(t, user, "https://rust-lang.org", true, "rust")
		create(t, user, "https://example.com/100%_off", false)
		create(t, uuid.New(), "https://go.dev/other", true, "go")

		yes, no := true, false
		filters := []struct {
			name   string
			filter Filter
			want   int
		}{
			{"none", Filter{}, 4},
			{"tag", Filter{Tag: "GO"}, 2},
			{"read later", Filter{ReadLater: &yes}, 2},
			{"not read later", Filter{ReadLater: &no}, 2},
			{"tag and read later", Filter{Tag: "go", ReadLater: &yes}, 1},
			{"search", Filter{Search: "go.dev"}, 2},
			{"search is literal", Filter{Search: "100%_"}, 1},
			{"underscore is not a wildcard", Filter{Search: "go_dev"}, 0},
			{"no tags", Filter{NoTags: true}, 1},
			{"unknown tag", Filter{Tag: "missing"}, 0},
		}
		for _, tt := range filters {
			t.Run(tt.name, func(t *testing.T) {
				n, err := repo.CountByUserID(ctx, user, tt.filter)
				require.NoError(t, err)
				pins, err := repo.FindByUserID(ctx, user, tt.filter, nil)
				require.NoError(t, err)

				assert.Equal(t, tt.want, n)
				assert.Len(t, pins, n)
				for _, p := range pins {
					assert.Equal(t, user, p.UserID)
				}
			})
		}
	})

	t.Run("update replaces fields and tags", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		p := create(t, user, "https://example.com", false, "a", "b")

		updated, err := repo.Update(ctx, UpdateParams{
			ID:          p.ID,
			URL:         "https://example.org",
			Title:       "New",
			ReadLater:   true,
			ReplaceTags: true,
			TagNames:    []string{"c", "b"},
		})
		require.NoError(t, err)
		assert.Equal(t, "https://example.org", updated.URL)
		assert.Equal(t, "New", updated.Title)
		assert.True(t, updated.ReadLater)
		assert.Nil(t, updated.Description)
		assert.Equal(t, []string{"b", "c"}, updated.TagNames())
		assert.False(t, updated.UpdatedAt.Before(p.UpdatedAt))
	})

	t.Run("update keeps tags unless asked to replace them", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		p := create(t, uuid.New(), "https://example.com", false, "keep")

		updated, err := repo.Update(ctx, UpdateParams{ID: p.ID, URL: p.URL, Title: "Renamed"})
		require.NoError(t, err)
		assert.Equal(t, []string{"keep"}, updated.TagNames())
	})

	t.Run("update to a taken url is a conflict", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		user := uuid.New()
		create(t, user, "https://taken.example", false)
		p := create(t, user, "https://free.example", false)

		_, err := repo.Update(ctx, UpdateParams{ID: p.ID, URL: "https://taken.example", Title: p.Title})
		assert.Equal(t, errx.Conflict, errx.KindOf(err))
	})

	t.Run("update of a missing pin is not found", func(t *testing.T) {
		_, err := repo.Update(ctx, UpdateParams{ID: uuid.New(), URL: "https://x.example", Title: "x"})
		assert.Equal(t, errx.NotFound, errx.KindOf(err))
	})

	t.Run("delete cascades to tag links", func(t *testing.T) {
		dbtest.Truncate(t, pool)
		p := create(t, uuid.New(), "https://example.com", false, "a", "b")
		require.Equal(t, 2, countRows(t, pool, "pin_tags"))

		deleted, err := repo.Delete(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Zero(t, countRows(t, pool, "pin_tags"))
		assert.Equal(t, 2, countRows(t, pool, "tags"))

		deleted, err = repo.Delete(ctx, p.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
