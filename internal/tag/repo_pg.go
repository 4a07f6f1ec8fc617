package tag

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/pinboard/internal/db"
	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/idgen"
)

const tagColumns = `id, user_id, name, created_at, updated_at`

type pgRepository struct {
	exec *db.Executor
	ids  idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository returns a Repository backed by PostgreSQL. Queries join the
// transaction carried by the context, if any.
func NewRepository(exec *db.Executor, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}
	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7()
	}
	return &pgRepository{exec: exec, ids: ids}
}

func scanTag(row pgx.CollectableRow) (Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanTagWithCount(row pgx.CollectableRow) (WithCount, error) {
	var t WithCount
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt, &t.UpdatedAt, &t.PinCount)
	return t, err
}

// mapRepoError turns driver errors into errx kinds, attaching the tag's
// typed cause where one applies.
func mapRepoError(op string, err error, id uuid.UUID, name string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, &NotFoundError{ID: id})
	case db.IsUniqueViolation(err, db.TagsUserNameUnique):
		return errx.E(op, errx.Conflict, &DuplicateError{Name: name})
	default:
		return db.MapError(op, err)
	}
}

func (r *pgRepository) queryOne(ctx context.Context, sql string, args ...any) (Tag, error) {
	rows, err := r.exec.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return Tag{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanTag)
}

func (r *pgRepository) queryMany(ctx context.Context, sql string, args ...any) ([]Tag, error) {
	rows, err := r.exec.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanTag)
}

func (r *pgRepository) FindByID(ctx context.Context, id uuid.UUID) (Tag, error) {
	const op = "tag.repo.FindByID"

	t, err := r.queryOne(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = $1`, id)
	if err != nil {
		return Tag{}, mapRepoError(op, err, id, "")
	}
	return t, nil
}

func (r *pgRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]Tag, error) {
	const op = "tag.repo.FindByUserID"

	tags, err := r.queryMany(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = $1 ORDER BY name ASC`, userID)
	if err != nil {
		return nil, db.MapError(op, err)
	}
	return tags, nil
}

func (r *pgRepository) FindByUserIDAndName(ctx context.Context, userID uuid.UUID, name string) (Tag, error) {
	const op = "tag.repo.FindByUserIDAndName"

	t, err := r.queryOne(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = $1 AND name = $2`,
		userID, NormalizeName(name))
	if err != nil {
		return Tag{}, mapRepoError(op, err, uuid.Nil, name)
	}
	return t, nil
}

func (r *pgRepository) FindByUserIDWithPinCount(ctx context.Context, userID uuid.UUID, filter CountFilter) ([]WithCount, error) {
	const op = "tag.repo.FindByUserIDWithPinCount"

	rows, err := r.exec.Conn(ctx).Query(ctx, `
		SELECT t.id, t.user_id, t.name, t.created_at, t.updated_at, COUNT(p.id) AS pin_count
		FROM tags t
		LEFT JOIN pin_tags pt ON pt.tag_id = t.id
		LEFT JOIN pins p ON p.id = pt.pin_id
			AND ($2::boolean IS NULL OR p.read_later = $2::boolean)
		WHERE t.user_id = $1
		GROUP BY t.id
		HAVING NOT $3::boolean OR COUNT(p.id) > 0
		ORDER BY t.name ASC`,
		userID, filter.ReadLater, filter.ExcludeEmpty)
	if err != nil {
		return nil, db.MapError(op, err)
	}
	tags, err := pgx.CollectRows(rows, scanTagWithCount)
	if err != nil {
		return nil, db.MapError(op, err)
	}
	return tags, nil
}

func (r *pgRepository) FetchOrCreateByNames(ctx context.Context, userID uuid.UUID, names []string) ([]Tag, error) {
	const op = "tag.repo.FetchOrCreateByNames"

	wanted := NormalizeNames(names)
	if len(wanted) == 0 {
		return []Tag{}, nil
	}
	for _, name := range wanted {
		if err := ValidateName("tags", name); err != nil {
			return nil, errx.E(op, errx.Invalid, err)
		}
	}

	out := make([]Tag, 0, len(wanted))
	err := r.exec.InTx(ctx, func(ctx context.Context) error {
		existing, err := r.queryMany(ctx,
			`SELECT `+tagColumns+` FROM tags WHERE user_id = $1 AND name = ANY($2)`,
			userID, wanted)
		if err != nil {
			return err
		}

		byName := make(map[string]Tag, len(wanted))
		for _, t := range existing {
			byName[t.Name] = t
		}

		for _, name := range wanted {
			t, ok := byName[name]
			if !ok {
				if t, err = r.insertOrFetch(ctx, userID, name); err != nil {
					return err
				}
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, db.MapError(op, err)
	}
	return out, nil
}

// insertOrFetch inserts one tag inside a savepoint. Losing a race to a
// concurrent insert of the same name rolls back only the savepoint; the
// winner's row is then read back.
func (r *pgRepository) insertOrFetch(ctx context.Context, userID uuid.UUID, name string) (Tag, error) {
	var created Tag
	err := r.exec.InTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = r.insert(ctx, userID, name)
		return err
	})
	if err == nil {
		return created, nil
	}
	if !db.IsUniqueViolation(err, db.TagsUserNameUnique) {
		return Tag{}, err
	}
	return r.queryOne(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE user_id = $1 AND name = $2`, userID, name)
}

func (r *pgRepository) insert(ctx context.Context, userID uuid.UUID, name string) (Tag, error) {
	id, err := r.ids.Generate()
	if err != nil {
		return Tag{}, errx.E("tag.repo.insert", errx.Unavailable, err)
	}
	return r.queryOne(ctx, `
		INSERT INTO tags (id, user_id, name)
		VALUES ($1, $2, $3)
		RETURNING `+tagColumns,
		id, userID, name)
}

func (r *pgRepository) Create(ctx context.Context, userID uuid.UUID, name string) (Tag, error) {
	const op = "tag.repo.Create"

	name = NormalizeName(name)
	if err := ValidateName("name", name); err != nil {
		return Tag{}, errx.E(op, errx.Invalid, err)
	}

	t, err := r.insert(ctx, userID, name)
	if err != nil {
		return Tag{}, mapRepoError(op, err, uuid.Nil, name)
	}
	return t, nil
}

func (r *pgRepository) Rename(ctx context.Context, id uuid.UUID, name string) (Tag, error) {
	const op = "tag.repo.Rename"

	name = NormalizeName(name)
	if err := ValidateName("name", name); err != nil {
		return Tag{}, errx.E(op, errx.Invalid, err)
	}

	t, err := r.queryOne(ctx, `
		UPDATE tags SET name = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+tagColumns,
		id, name)
	if err != nil {
		return Tag{}, mapRepoError(op, err, id, name)
	}
	return t, nil
}

func (r *pgRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "tag.repo.Delete"

	res, err := r.exec.Conn(ctx).Exec(ctx, `DELETE FROM tags WHERE id = $1`, id)
	if err != nil {
		return false, db.MapError(op, err)
	}
	return res.RowsAffected() > 0, nil
}

func (r *pgRepository) MergeTags(ctx context.Context, userID uuid.UUID, sourceIDs []uuid.UUID, targetID uuid.UUID) error {
	const op = "tag.repo.MergeTags"

	sources := dedupeIDs(sourceIDs)
	if len(sources) == 0 {
		return errx.E(op, errx.Invalid, errors.New("at least one source tag is required"))
	}
	for _, id := range sources {
		if id == targetID {
			return errx.E(op, errx.Invalid, errors.New("target tag cannot also be a source"))
		}
	}

	err := r.exec.InTx(ctx, func(ctx context.Context) error {
		conn := r.exec.Conn(ctx)

		// Locks the target row for the rest of the merge.
		res, err := conn.Exec(ctx,
			`UPDATE tags SET updated_at = now() WHERE id = $1 AND user_id = $2`,
			targetID, userID)
		if err != nil {
			return err
		}
		if res.RowsAffected() == 0 {
			return errx.E(op, errx.NotFound, &NotFoundError{ID: targetID})
		}

		if _, err := conn.Exec(ctx, `
			INSERT INTO pin_tags (pin_id, tag_id)
			SELECT DISTINCT pt.pin_id, $3::uuid
			FROM pin_tags pt
			JOIN tags t ON t.id = pt.tag_id
			WHERE t.user_id = $1
				AND pt.tag_id = ANY($2)
				AND NOT EXISTS (
					SELECT 1 FROM pin_tags x
					WHERE x.pin_id = pt.pin_id AND x.tag_id = $3::uuid
				)`,
			userID, sources, targetID); err != nil {
			return err
		}

		if _, err := conn.Exec(ctx, `
			DELETE FROM pin_tags pt
			USING tags t
			WHERE t.id = pt.tag_id AND t.user_id = $1 AND pt.tag_id = ANY($2)`,
			userID, sources); err != nil {
			return err
		}

		res, err = conn.Exec(ctx,
			`DELETE FROM tags WHERE user_id = $1 AND id = ANY($2)`, userID, sources)
		if err != nil {
			return err
		}
		if res.RowsAffected() != int64(len(sources)) {
			return errx.E(op, errx.NotFound,
				fmt.Errorf("deleted %d of %d source tags", res.RowsAffected(), len(sources)))
		}
		return nil
	})
	if err != nil {
		return db.MapError(op, err)
	}
	return nil
}

func (r *pgRepository) DeleteTagsWithNoPins(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "tag.repo.DeleteTagsWithNoPins"

	res, err := r.exec.Conn(ctx).Exec(ctx, `
		DELETE FROM tags t
		WHERE t.user_id = $1
			AND NOT EXISTS (SELECT 1 FROM pin_tags pt WHERE pt.tag_id = t.id)`,
		userID)
	if err != nil {
		return 0, db.MapError(op, err)
	}
	return res.RowsAffected(), nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
