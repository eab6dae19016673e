// Package index maintains a rebuildable SQLite index over the markdown
// store. The markdown files stay the source of truth: the index is a
// derived cache for fast counting and ranking queries, dropped and
// repopulated wholesale on every rebuild.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/iterata/iterata/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS corrections (
	correction_id   TEXT PRIMARY KEY,
	ts_ms           INTEGER NOT NULL,
	document_id     TEXT NOT NULL,
	field_path      TEXT NOT NULL,
	original_value  TEXT,
	corrected_value TEXT,
	explained       INTEGER NOT NULL,
	category        TEXT,
	corrector_id    TEXT
);
CREATE INDEX IF NOT EXISTS idx_corrections_field ON corrections(field_path);
CREATE INDEX IF NOT EXISTS idx_corrections_category ON corrections(category);
`

// StatusCounts summarizes the indexed records by explanation status.
type StatusCounts struct {
	Total     int `json:"total"`
	Inbox     int `json:"inbox"`
	Explained int `json:"explained"`
}

// FieldCount is one entry of a field frequency ranking.
type FieldCount struct {
	FieldPath string `json:"field_path"`
	Count     int    `json:"count"`
}

// CategoryCount is one entry of a category frequency ranking. Pending
// records carry no category and are not counted here.
type CategoryCount struct {
	Category models.CorrectionType `json:"category"`
	Count    int                   `json:"count"`
}

// Index wraps the SQLite database file.
type Index struct {
	db *sql.DB
}

// Open opens or creates the index database at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	// Single connection keeps writes serialized and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating index schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the database handle.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Rebuild replaces the entire index content with the given snapshot,
// atomically, and returns the number of indexed records.
func (ix *Index) Rebuild(ctx context.Context, records []models.Correction) (int, error) {
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting rebuild: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM corrections`); err != nil {
		return 0, fmt.Errorf("clearing index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO corrections (
			correction_id, ts_ms, document_id, field_path,
			original_value, corrected_value, explained, category, corrector_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range records {
		explained := 0
		category := sql.NullString{}
		if c.Explained {
			explained = 1
			category = sql.NullString{String: string(c.Category), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			c.ID,
			c.Timestamp.UTC().UnixMilli(),
			c.DocumentID,
			c.FieldPath,
			fmt.Sprintf("%v", c.OriginalValue),
			fmt.Sprintf("%v", c.CorrectedValue),
			explained,
			category,
			nullableString(c.CorrectorID),
		)
		if err != nil {
			return 0, fmt.Errorf("indexing correction %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return len(records), nil
}

// CountByStatus returns total, pending and explained record counts.
func (ix *Index) CountByStatus(ctx context.Context) (StatusCounts, error) {
	var counts StatusCounts
	err := ix.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN explained = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN explained = 1 THEN 1 ELSE 0 END), 0)
		FROM corrections
	`).Scan(&counts.Total, &counts.Inbox, &counts.Explained)
	if err != nil {
		return StatusCounts{}, fmt.Errorf("counting by status: %w", err)
	}
	return counts, nil
}

// CountByCategory ranks explained records by category, most frequent
// first, ties in category order.
func (ix *Index) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT category, COUNT(*) AS n
		FROM corrections
		WHERE explained = 1 AND category IS NOT NULL
		GROUP BY category
		ORDER BY n DESC, category ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("counting by category: %w", err)
	}
	defer rows.Close()

	var counts []CategoryCount
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		counts = append(counts, CategoryCount{
			Category: models.ParseCategory(cat),
			Count:    n,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting by category: %w", err)
	}
	return counts, nil
}

// TopFields ranks fields by correction count across all records, most
// frequent first, ties in field order.
func (ix *Index) TopFields(ctx context.Context, n int) ([]FieldCount, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT field_path, COUNT(*) AS n
		FROM corrections
		GROUP BY field_path
		ORDER BY n DESC, field_path ASC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("ranking fields: %w", err)
	}
	defer rows.Close()

	var counts []FieldCount
	for rows.Next() {
		var fc FieldCount
		if err := rows.Scan(&fc.FieldPath, &fc.Count); err != nil {
			return nil, fmt.Errorf("scanning field count: %w", err)
		}
		counts = append(counts, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ranking fields: %w", err)
	}
	return counts, nil
}

// nullableString stores empty strings as NULL.
func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
