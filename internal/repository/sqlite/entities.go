package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/models"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/pkg/repository"
)

func (r *SQLiteRepo) FetchCollection(ctx context.Context, c models.Collection) ([]models.Entity, error) {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return nil, err
	}
	return r.queryEntities(ctx, "collection", c, `SELECT body FROM entities WHERE collection = ? ORDER BY seq`, c)
}

func (r *SQLiteRepo) FetchByID(ctx context.Context, c models.Collection, id string) (models.Entity, error) {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return nil, err
	}
	row := r.conn.QueryRow(ctx, `SELECT body FROM entities WHERE collection = ? AND id = ?`, c, id)
	var body string
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s/%s: %w", c, id, repository.ErrNotFound)
		}
		return nil, &repository.FetchError{Op: "fetch by id", Collection: c, Err: err}
	}
	e, err := fixtures.Decode(c, []byte(body))
	if err != nil {
		return nil, &repository.FetchError{Op: "fetch by id", Collection: c, Err: err}
	}
	return e, nil
}

func (r *SQLiteRepo) FetchByOwner(ctx context.Context, c models.Collection, owner models.Owner) ([]models.Entity, error) {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return nil, err
	}
	ok, err := repository.OwnerExists(ctx, r, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Debug("owner does not resolve", slog.String("owner", owner.String()), slog.String("collection", string(c)))
		return []models.Entity{}, nil
	}
	return r.queryEntities(ctx, "fetch by owner", c,
		`SELECT body FROM entities WHERE collection = ? AND owner_type = ? AND owner_id = ? ORDER BY seq`,
		c, owner.Type, owner.ID)
}

func (r *SQLiteRepo) FetchByProject(ctx context.Context, c models.Collection, projectID string) ([]models.Entity, error) {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return nil, err
	}
	if _, err := r.FetchByID(ctx, models.Projects, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []models.Entity{}, nil
		}
		return nil, err
	}
	return r.queryEntities(ctx, "fetch by project", c,
		`SELECT body FROM entities WHERE collection = ? AND project_id = ? ORDER BY seq`, c, projectID)
}

func (r *SQLiteRepo) queryEntities(ctx context.Context, op string, c models.Collection, q string, args ...any) ([]models.Entity, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, &repository.FetchError{Op: op, Collection: c, Err: err}
	}
	defer rows.Close()

	out := []models.Entity{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, &repository.FetchError{Op: op, Collection: c, Err: err}
		}
		e, err := fixtures.Decode(c, []byte(body))
		if err != nil {
			return nil, &repository.FetchError{Op: op, Collection: c, Err: err}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &repository.FetchError{Op: op, Collection: c, Err: err}
	}
	return out, nil
}

// refs extracts the indexed owner and project columns of e.
func refs(e models.Entity) (ownerType, ownerID, projectID any) {
	if o, ok := e.(models.Owned); ok {
		if ref := o.OwnerRef(); ref.Type != "" {
			ownerType, ownerID = string(ref.Type), ref.ID
		}
	}
	if pc, ok := e.(models.ProjectChild); ok {
		projectID = pc.ProjectRef()
	}
	return ownerType, ownerID, projectID
}

// Upsert stores e under c. New records are appended after the collection's
// last record; updates keep their position.
func (r *SQLiteRepo) Upsert(ctx context.Context, c models.Collection, e models.Entity) (bool, error) {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return false, err
	}
	if e == nil {
		return false, fmt.Errorf("%s: entity is nil", c)
	}
	if err := models.Validate(e); err != nil {
		return false, err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return false, fmt.Errorf("encode %s/%s: %w", c, e.EntityID(), err)
	}
	ownerType, ownerID, projectID := refs(e)

	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	var seq int64
	inserted := false
	err = tx.QueryRowContext(ctx, `SELECT seq FROM entities WHERE collection = ? AND id = ?`, c, e.EntityID()).Scan(&seq)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		inserted = true
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM entities WHERE collection = ?`, c).Scan(&seq); err != nil {
			_ = tx.Rollback()
			return false, err
		}
	case err != nil:
		_ = tx.Rollback()
		return false, err
	}

	q := `INSERT INTO entities (collection, id, seq, owner_type, owner_id, project_id, body, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET owner_type = excluded.owner_type, owner_id = excluded.owner_id, project_id = excluded.project_id, body = excluded.body, updated = excluded.updated`
	if _, err := tx.ExecContext(ctx, q, c, e.EntityID(), seq, ownerType, ownerID, projectID, string(body), now()); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("upsert %s/%s: %w", c, e.EntityID(), err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	ev := notify.Update
	if inserted {
		ev = notify.Insert
	}
	r.publish(ctx, ev, string(c))
	return inserted, nil
}

func (r *SQLiteRepo) Delete(ctx context.Context, c models.Collection, id string) error {
	if _, err := models.ParseCollection(string(c)); err != nil {
		return err
	}
	res, err := r.conn.Exec(ctx, `DELETE FROM entities WHERE collection = ? AND id = ?`, c, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", c, id, repository.ErrNotFound)
	}
	r.publish(ctx, notify.Delete, string(c))
	return nil
}

// Count returns the number of records stored under c.
func (r *SQLiteRepo) Count(ctx context.Context, c models.Collection) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM entities WHERE collection = ?`, c).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Seed imports ds when the store holds no records yet and reports how many
// records it wrote. No change events are published.
func (r *SQLiteRepo) Seed(ctx context.Context, ds *fixtures.Dataset) (int, error) {
	var existing int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM entities`).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count entities: %w", err)
	}
	if existing > 0 {
		r.logger.Info("seed skipped, store not empty", slog.Int("records", existing))
		return 0, nil
	}

	tx, err := r.conn.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entities (collection, id, seq, owner_type, owner_id, project_id, body, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	written := 0
	ts := now()
	for _, c := range models.Collections {
		for i, e := range ds.Entities(c) {
			body, err := json.Marshal(e)
			if err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("encode %s/%s: %w", c, e.EntityID(), err)
			}
			ownerType, ownerID, projectID := refs(e)
			if _, err := stmt.ExecContext(ctx, c, e.EntityID(), i+1, ownerType, ownerID, projectID, string(body), ts); err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("seed %s/%s: %w", c, e.EntityID(), err)
			}
			written++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	r.logger.Info("seeded portfolio", slog.Int("records", written))
	return written, nil
}
