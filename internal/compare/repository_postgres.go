package compare

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresSchema creates the basket tables. compare_basket exists so the
// capacity check has a row to lock even while the basket is still empty.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS compare_basket (
    basket_id  TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS compare_entry (
    seq             BIGSERIAL PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    basket_id       TEXT NOT NULL REFERENCES compare_basket (basket_id),
    product_link    TEXT NOT NULL,
    product_name    TEXT NOT NULL DEFAULT '',
    brand           TEXT NOT NULL DEFAULT '',
    image_url       TEXT NOT NULL DEFAULT '',
    listed_price    DOUBLE PRECISION,
    price           DOUBLE PRECISION,
    protein_percent DOUBLE PRECISION,
    fat_percent     DOUBLE PRECISION,
    kcal_per_100g   DOUBLE PRECISION,
    weight_kg       DOUBLE PRECISION,
    revision        INT NOT NULL DEFAULT 1,
    created_at      TIMESTAMPTZ NOT NULL,
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS compare_entry_basket_idx ON compare_entry (basket_id, seq);
`

const (
	entryColumns = `id, product_link, product_name, brand, image_url, listed_price, price,
        protein_percent, fat_percent, kcal_per_100g, weight_kg, revision, created_at, updated_at`

	pgEnsureBasketQuery = `INSERT INTO compare_basket (basket_id, created_at) VALUES ($1, $2) ON CONFLICT (basket_id) DO NOTHING`
	pgLockBasketQuery   = `SELECT basket_id FROM compare_basket WHERE basket_id = $1 FOR UPDATE`
	pgCountQuery        = `SELECT COUNT(*) FROM compare_entry WHERE basket_id = $1`
	pgInsertQuery       = `
        INSERT INTO compare_entry (` + entryColumns + `, basket_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	pgMergeQuery = `
        UPDATE compare_entry SET
            protein_percent = COALESCE($3::double precision, protein_percent),
            fat_percent     = COALESCE($4::double precision, fat_percent),
            kcal_per_100g   = COALESCE($5::double precision, kcal_per_100g),
            price           = COALESCE($6::double precision, price),
            weight_kg       = COALESCE($7::double precision, weight_kg),
            revision        = revision + 1,
            updated_at      = $8
        WHERE basket_id = $1 AND id = $2
        RETURNING ` + entryColumns
	pgSelectOneQuery = `SELECT ` + entryColumns + ` FROM compare_entry WHERE basket_id = $1 AND id = $2`
	pgDeleteQuery    = `DELETE FROM compare_entry WHERE basket_id = $1 AND id = $2`
	pgListQuery      = `SELECT ` + entryColumns + ` FROM compare_entry WHERE basket_id = $1 ORDER BY seq`
	pgCountsQuery    = `
        SELECT basket_id, COUNT(*) FROM compare_entry
        WHERE basket_id = ANY($1)
        GROUP BY basket_id`
	pgStatsQuery = `
        SELECT COUNT(*), COALESCE(SUM(n), 0), COUNT(*) FILTER (WHERE n >= $1)
        FROM (SELECT COUNT(*) AS n FROM compare_entry GROUP BY basket_id) b`
)

// PostgresRepository stores baskets in Postgres. It works with either the
// pgx stdlib driver or lib/pq.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate creates the tables when missing.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("migrate compare schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Append(ctx context.Context, basketID string, e Entry, limit int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, pgEnsureBasketQuery, basketID, e.CreatedAt); err != nil {
		return fmt.Errorf("ensure basket: %w", err)
	}
	var locked string
	if err := tx.QueryRowContext(ctx, pgLockBasketQuery, basketID).Scan(&locked); err != nil {
		return fmt.Errorf("lock basket: %w", err)
	}
	var count int
	if err := tx.QueryRowContext(ctx, pgCountQuery, basketID).Scan(&count); err != nil {
		return fmt.Errorf("count entries: %w", err)
	}
	if count >= limit {
		return ErrCapacityExceeded
	}
	if _, err := tx.ExecContext(ctx, pgInsertQuery,
		e.ID, e.ProductLink, e.ProductName, e.Brand, e.ImageURL, floatArg(e.ListedPrice), floatArg(e.Price),
		floatArg(e.ProteinPercent), floatArg(e.FatPercent), floatArg(e.KcalPer100g), floatArg(e.WeightKg), e.Revision, e.CreatedAt, e.UpdatedAt,
		basketID,
	); err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) Merge(ctx context.Context, basketID, id string, p Patch, now time.Time) (Entry, error) {
	// an empty patch must not bump the revision
	if p.Empty() {
		e, err := scanEntry(r.db.QueryRowContext(ctx, pgSelectOneQuery, basketID, id))
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return e, err
	}
	e, err := scanEntry(r.db.QueryRowContext(ctx, pgMergeQuery,
		basketID, id, floatArg(p.ProteinPercent), floatArg(p.FatPercent), floatArg(p.KcalPer100g), floatArg(p.Price), floatArg(p.WeightKg), now))
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("merge entry: %w", err)
	}
	return e, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, basketID, id string) error {
	if _, err := r.db.ExecContext(ctx, pgDeleteQuery, basketID, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, basketID string) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, pgListQuery, basketID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Counts(ctx context.Context, basketIDs []string) (map[string]int, error) {
	out := make(map[string]int, len(basketIDs))
	if len(basketIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, pgCountsQuery, pq.Array(basketIDs))
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

func (r *PostgresRepository) Stats(ctx context.Context, limit int) (Stats, error) {
	var s Stats
	if err := r.db.QueryRowContext(ctx, pgStatsQuery, limit).Scan(&s.Baskets, &s.Entries, &s.FullBaskets); err != nil {
		return Stats{}, fmt.Errorf("basket stats: %w", err)
	}
	return s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		e                                    Entry
		listed, price, protein, fat, kcal, w sql.NullFloat64
	)
	if err := row.Scan(&e.ID, &e.ProductLink, &e.ProductName, &e.Brand, &e.ImageURL,
		&listed, &price, &protein, &fat, &kcal, &w, &e.Revision, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return Entry{}, err
	}
	e.ListedPrice = nullFloat(listed)
	e.Price = nullFloat(price)
	e.ProteinPercent = nullFloat(protein)
	e.FatPercent = nullFloat(fat)
	e.KcalPer100g = nullFloat(kcal)
	e.WeightKg = nullFloat(w)
	return e, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// floatArg turns an optional value into a driver argument.
func floatArg(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
