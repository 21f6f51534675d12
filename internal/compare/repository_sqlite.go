package compare

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLiteSchema mirrors PostgresSchema. Timestamps are unix milliseconds.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS compare_entry (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    id              TEXT NOT NULL UNIQUE,
    basket_id       TEXT NOT NULL,
    product_link    TEXT NOT NULL,
    product_name    TEXT NOT NULL DEFAULT '',
    brand           TEXT NOT NULL DEFAULT '',
    image_url       TEXT NOT NULL DEFAULT '',
    listed_price    REAL,
    price           REAL,
    protein_percent REAL,
    fat_percent     REAL,
    kcal_per_100g   REAL,
    weight_kg       REAL,
    revision        INTEGER NOT NULL DEFAULT 1,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS compare_entry_basket_idx ON compare_entry (basket_id, seq);
`

const (
	liteCountQuery  = `SELECT COUNT(*) FROM compare_entry WHERE basket_id = ?`
	liteInsertQuery = `
        INSERT INTO compare_entry (` + entryColumns + `, basket_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	liteMergeQuery = `
        UPDATE compare_entry SET
            protein_percent = COALESCE(?, protein_percent),
            fat_percent     = COALESCE(?, fat_percent),
            kcal_per_100g   = COALESCE(?, kcal_per_100g),
            price           = COALESCE(?, price),
            weight_kg       = COALESCE(?, weight_kg),
            revision        = revision + 1,
            updated_at      = ?
        WHERE basket_id = ? AND id = ?`
	liteSelectOneQuery = `SELECT ` + entryColumns + ` FROM compare_entry WHERE basket_id = ? AND id = ?`
	liteDeleteQuery    = `DELETE FROM compare_entry WHERE basket_id = ? AND id = ?`
	liteListQuery      = `SELECT ` + entryColumns + ` FROM compare_entry WHERE basket_id = ? ORDER BY seq`
	liteStatsQuery     = `
        SELECT COUNT(*), COALESCE(SUM(n), 0), COALESCE(SUM(CASE WHEN n >= ? THEN 1 ELSE 0 END), 0)
        FROM (SELECT COUNT(*) AS n FROM compare_entry GROUP BY basket_id)`
)

// SQLiteRepository stores baskets in a local SQLite file. The database must
// be opened with a single connection so transactions serialize writers.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("migrate compare schema: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Append(ctx context.Context, basketID string, e Entry, limit int) error {
	return r.tx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, liteCountQuery, basketID).Scan(&count); err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		if count >= limit {
			return ErrCapacityExceeded
		}
		if _, err := tx.ExecContext(ctx, liteInsertQuery,
			e.ID, e.ProductLink, e.ProductName, e.Brand, e.ImageURL, floatArg(e.ListedPrice), floatArg(e.Price),
			floatArg(e.ProteinPercent), floatArg(e.FatPercent), floatArg(e.KcalPer100g), floatArg(e.WeightKg), e.Revision,
			e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(), basketID,
		); err != nil {
			return fmt.Errorf("insert entry: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) Merge(ctx context.Context, basketID, id string, p Patch, now time.Time) (Entry, error) {
	var out Entry
	err := r.tx(ctx, func(tx *sql.Tx) error {
		if !p.Empty() {
			res, err := tx.ExecContext(ctx, liteMergeQuery,
				floatArg(p.ProteinPercent), floatArg(p.FatPercent), floatArg(p.KcalPer100g), floatArg(p.Price), floatArg(p.WeightKg), now.UnixMilli(), basketID, id)
			if err != nil {
				return fmt.Errorf("merge entry: %w", err)
			}
			if n, err := res.RowsAffected(); err == nil && n == 0 {
				return ErrNotFound
			}
		}
		e, err := scanLiteEntry(tx.QueryRowContext(ctx, liteSelectOneQuery, basketID, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		out = e
		return err
	})
	return out, err
}

func (r *SQLiteRepository) Delete(ctx context.Context, basketID, id string) error {
	if _, err := r.db.ExecContext(ctx, liteDeleteQuery, basketID, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, basketID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, liteListQuery, basketID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanLiteEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Counts(ctx context.Context, basketIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(basketIDs))
	if len(basketIDs) == 0 {
		return out, nil
	}
	placeholders := make([]string, len(basketIDs))
	args := make([]any, len(basketIDs))
	for i, id := range basketIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT basket_id, COUNT(*) FROM compare_entry WHERE basket_id IN (%s) GROUP BY basket_id`,
		strings.Join(placeholders, ","))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count baskets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Stats(ctx context.Context, limit int) (Stats, error) {
	var s Stats
	if err := r.db.QueryRowContext(ctx, liteStatsQuery, limit).Scan(&s.Baskets, &s.Entries, &s.FullBaskets); err != nil {
		return Stats{}, fmt.Errorf("basket stats: %w", err)
	}
	return s, nil
}

// tx runs fn in a transaction, committing when fn returns nil.
func (r *SQLiteRepository) tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

func scanLiteEntry(row rowScanner) (Entry, error) {
	var (
		e                                    Entry
		listed, price, protein, fat, kcal, w sql.NullFloat64
		created, updated                     int64
	)
	if err := row.Scan(&e.ID, &e.ProductLink, &e.ProductName, &e.Brand, &e.ImageURL,
		&listed, &price, &protein, &fat, &kcal, &w, &e.Revision, &created, &updated); err != nil {
		return Entry{}, err
	}
	e.ListedPrice = nullFloat(listed)
	e.Price = nullFloat(price)
	e.ProteinPercent = nullFloat(protein)
	e.FatPercent = nullFloat(fat)
	e.KcalPer100g = nullFloat(kcal)
	e.WeightKg = nullFloat(w)
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}
