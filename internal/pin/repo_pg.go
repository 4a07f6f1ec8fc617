package pin

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sundayezeilo/pinboard/internal/db"
	"github.com/sundayezeilo/pinboard/internal/errx"
	"github.com/sundayezeilo/pinboard/internal/idgen"
	"github.com/sundayezeilo/pinboard/internal/tag"
)

const pinColumns = `p.id, p.user_id, p.url, p.title, p.description, p.read_later, p.created_at, p.updated_at`

type pgRepository struct {
	exec *db.Executor
	tags TagResolver
	ids  idgen.Generator
}

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository returns a Repository backed by PostgreSQL. Tag names given
// to Create and Update are resolved through tags inside the pin's
// transaction.
func NewRepository(exec *db.Executor, tags TagResolver, config *RepositoryConfig) Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}
	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7()
	}
	return &pgRepository{exec: exec, tags: tags, ids: ids}
}

func scanPin(row pgx.CollectableRow) (Pin, error) {
	var p Pin
	err := row.Scan(&p.ID, &p.UserID, &p.URL, &p.Title, &p.Description,
		&p.ReadLater, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func mapRepoError(op string, err error, id uuid.UUID, url string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, &NotFoundError{ID: id})
	case db.IsUniqueViolation(err, db.PinsUserURLUnique):
		return errx.E(op, errx.Conflict, &DuplicateError{URL: url})
	default:
		return db.MapError(op, err)
	}
}

// findOne runs a single-pin query and attaches the pin's tags.
func (r *pgRepository) findOne(ctx context.Context, sql string, args ...any) (Pin, error) {
	rows, err := r.exec.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return Pin{}, err
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPin)
	if err != nil {
		return Pin{}, err
	}
	pins := []Pin{p}
	if err := r.attachTags(ctx, pins); err != nil {
		return Pin{}, err
	}
	return pins[0], nil
}

// attachTags loads the tags of every pin in one query.
func (r *pgRepository) attachTags(ctx context.Context, pins []Pin) error {
	if len(pins) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(pins))
	index := make(map[uuid.UUID]int, len(pins))
	for i, p := range pins {
		ids[i] = p.ID
		index[p.ID] = i
		pins[i].Tags = []tag.Tag{}
	}

	rows, err := r.exec.Conn(ctx).Query(ctx, `
		SELECT pt.pin_id, t.id, t.user_id, t.name, t.created_at, t.updated_at
		FROM pin_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.pin_id = ANY($1)
		ORDER BY t.name COLLATE "C" ASC`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var pinID uuid.UUID
		var t tag.Tag
		if err := rows.Scan(&pinID, &t.ID, &t.UserID, &t.Name, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return err
		}
		i := index[pinID]
		pins[i].Tags = append(pins[i].Tags, t)
	}
	return rows.Err()
}

func (r *pgRepository) FindByID(ctx context.Context, id uuid.UUID) (Pin, error) {
	const op = "pin.repo.FindByID"

	p, err := r.findOne(ctx, `SELECT `+pinColumns+` FROM pins p WHERE p.id = $1`, id)
	if err != nil {
		return Pin{}, mapRepoError(op, err, id, "")
	}
	return p, nil
}

func (r *pgRepository) FindByUserIDAndURL(ctx context.Context, userID uuid.UUID, url string) (Pin, error) {
	const op = "pin.repo.FindByUserIDAndURL"

	p, err := r.findOne(ctx,
		`SELECT `+pinColumns+` FROM pins p WHERE p.user_id = $1 AND p.url = $2`, userID, url)
	if err != nil {
		return Pin{}, mapRepoError(op, err, uuid.Nil, url)
	}
	return p, nil
}

func (r *pgRepository) FindByUserID(ctx context.Context, userID uuid.UUID, filter Filter, page *Page) ([]Pin, error) {
	const op = "pin.repo.FindByUserID"

	where, args := whereClause(userID, filter)
	sql := `SELECT ` + pinColumns + ` FROM pins p WHERE ` + where +
		` ORDER BY p.created_at DESC, p.id DESC`
	if page != nil {
		args = append(args, max(page.Limit, 0), max(page.Offset, 0))
		sql += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.exec.Conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.MapError(op, err)
	}
	pins, err := pgx.CollectRows(rows, scanPin)
	if err != nil {
		return nil, db.MapError(op, err)
	}
	if err := r.attachTags(ctx, pins); err != nil {
		return nil, db.MapError(op, err)
	}
	return pins, nil
}

func (r *pgRepository) CountByUserID(ctx context.Context, userID uuid.UUID, filter Filter) (int, error) {
	const op = "pin.repo.CountByUserID"

	where, args := whereClause(userID, filter)
	var n int
	if err := r.exec.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM pins p WHERE `+where, args...).Scan(&n); err != nil {
		return 0, db.MapError(op, err)
	}
	return n, nil
}

func (r *pgRepository) Create(ctx context.Context, params CreateParams) (Pin, error) {
	const op = "pin.repo.Create"

	id, err := r.ids.Generate()
	if err != nil {
		return Pin{}, errx.E(op, errx.Unavailable, err)
	}

	var created Pin
	err = r.exec.InTx(ctx, func(ctx context.Context) error {
		tags, err := r.tags.FetchOrCreateByNames(ctx, params.UserID, params.TagNames)
		if err != nil {
			return err
		}

		rows, err := r.exec.Conn(ctx).Query(ctx, `
			INSERT INTO pins AS p (id, user_id, url, title, description, read_later)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+pinColumns,
			id, params.UserID, params.URL, params.Title, params.Description, params.ReadLater)
		if err != nil {
			return err
		}
		if created, err = pgx.CollectExactlyOneRow(rows, scanPin); err != nil {
			return err
		}

		if err := r.linkTags(ctx, created.ID, tags); err != nil {
			return err
		}
		created.Tags = sortedTags(tags)
		return nil
	})
	if err != nil {
		return Pin{}, mapRepoError(op, err, id, params.URL)
	}
	return created, nil
}

func (r *pgRepository) Update(ctx context.Context, params UpdateParams) (Pin, error) {
	const op = "pin.repo.Update"

	var updated Pin
	err := r.exec.InTx(ctx, func(ctx context.Context) error {
		conn := r.exec.Conn(ctx)
		rows, err := conn.Query(ctx, `
			UPDATE pins AS p
			SET url = $2, title = $3, description = $4, read_later = $5, updated_at = now()
			WHERE p.id = $1
			RETURNING `+pinColumns,
			params.ID, params.URL, params.Title, params.Description, params.ReadLater)
		if err != nil {
			return err
		}
		if updated, err = pgx.CollectExactlyOneRow(rows, scanPin); err != nil {
			return err
		}

		if params.ReplaceTags {
			tags, err := r.tags.FetchOrCreateByNames(ctx, updated.UserID, params.TagNames)
			if err != nil {
				return err
			}
			if _, err := conn.Exec(ctx, `DELETE FROM pin_tags WHERE pin_id = $1`, updated.ID); err != nil {
				return err
			}
			if err := r.linkTags(ctx, updated.ID, tags); err != nil {
				return err
			}
		}

		pins := []Pin{updated}
		if err := r.attachTags(ctx, pins); err != nil {
			return err
		}
		updated = pins[0]
		return nil
	})
	if err != nil {
		return Pin{}, mapRepoError(op, err, params.ID, params.URL)
	}
	return updated, nil
}

func (r *pgRepository) linkTags(ctx context.Context, pinID uuid.UUID, tags []tag.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(tags))
	for i, t := range tags {
		ids[i] = t.ID
	}
	_, err := r.exec.Conn(ctx).Exec(ctx, `
		INSERT INTO pin_tags (pin_id, tag_id)
		SELECT $1, unnest($2::uuid[])
		ON CONFLICT DO NOTHING`,
		pinID, ids)
	return err
}

func (r *pgRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	const op = "pin.repo.Delete"

	res, err := r.exec.Conn(ctx).Exec(ctx, `DELETE FROM pins WHERE id = $1`, id)
	if err != nil {
		return false, db.MapError(op, err)
	}
	return res.RowsAffected() > 0, nil
}

func sortedTags(tags []tag.Tag) []tag.Tag {
	out := make([]tag.Tag, len(tags))
	copy(out, tags)
	slices.SortFunc(out, func(a, b tag.Tag) int { return strings.Compare(a.Name, b.Name) })
	return out
}
