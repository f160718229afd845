package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// symbolBatchSize is how many symbol rows are inserted between scheduler yields.
const symbolBatchSize = 250

// UpsertResource writes or updates the resource row and replaces its FTS row
// in one transaction. Quality, enrichment and summary fields are preserved.
func (s *Store) UpsertResource(ctx context.Context, r Resource, content string) error {
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		return withTx(ctx, db, func(tx *sql.Tx) error {
			return upsertResource(ctx, tx, r, content)
		})
	})
}

// ReplaceSymbols deletes every symbol of the resource and inserts syms in one
// transaction.
func (s *Store) ReplaceSymbols(ctx context.Context, resourceID string, syms []Symbol) error {
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		return withTx(ctx, db, func(tx *sql.Tx) error {
			return replaceSymbols(ctx, tx, resourceID, syms)
		})
	})
}

// WriteIndexed upserts the resource, its FTS row and its symbols in a single
// transaction. guard runs on the store's worker right before the transaction
// starts; when it returns false nothing is written and ErrSuperseded is returned.
func (s *Store) WriteIndexed(ctx context.Context, guard func() bool, r Resource, content string, syms []Symbol) error {
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		if guard != nil && !guard() {
			return ErrSuperseded
		}
		return withTx(ctx, db, func(tx *sql.Tx) error {
			if err := upsertResource(ctx, tx, r, content); err != nil {
				return err
			}
			return replaceSymbols(ctx, tx, r.ID, syms)
		})
	})
}

func upsertResource(ctx context.Context, tx *sql.Tx, r Resource, content string) error {
	// The AI flag belongs to the content it was computed from.
	_, err := tx.ExecContext(ctx, `
		INSERT INTO resources (id, path, language, last_modified, content_hash)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			language = excluded.language,
			last_modified = excluded.last_modified,
			ai_enriched = CASE WHEN resources.content_hash = excluded.content_hash THEN resources.ai_enriched ELSE 0 END,
			content_hash = excluded.content_hash
	`, r.ID, r.Path, r.Language, r.LastModified, r.ContentHash)
	if err != nil {
		return fail(OpStep, "upsert resource "+r.Path, err)
	}
	if err := deleteFTS(ctx, tx, "id", r.ID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO resources_fts (docid, id, content) SELECT rowid, id, ? FROM resources WHERE id = ?",
		content, r.ID,
	)
	return fail(OpStep, "insert fts "+r.Path, err)
}

func replaceSymbols(ctx context.Context, tx *sql.Tx, resourceID string, syms []Symbol) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE resource_id = ?", resourceID); err != nil {
		return fail(OpStep, "delete symbols", err)
	}
	if len(syms) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO symbols (id, resource_id, name, kind, line_start, line_end, description) VALUES (?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fail(OpPrepare, "insert symbols", err)
	}
	defer stmt.Close()

	seen := make(map[string]int, len(syms))
	for i, sym := range syms {
		if i > 0 && i%symbolBatchSize == 0 {
			runtime.Gosched()
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		id := symbolID(resourceID, sym, seen)
		var desc any
		if sym.Description != "" {
			desc = sym.Description
		}
		lineEnd := sym.LineEnd
		if lineEnd < sym.LineStart {
			lineEnd = sym.LineStart
		}
		kind := sym.Kind
		if kind == "" {
			kind = "unknown"
		}
		if _, err := stmt.ExecContext(ctx, id, resourceID, sym.Name, kind, sym.LineStart, lineEnd, desc); err != nil {
			return fail(OpStep, "insert symbol "+sym.Name, err)
		}
	}
	return nil
}

// symbolID composes resource id, line and name, adding a counter when the
// same pair repeats within one insertion.
func symbolID(resourceID string, sym Symbol, seen map[string]int) string {
	id := fmt.Sprintf("%s:%d:%s", resourceID, sym.LineStart, sym.Name)
	n := seen[id]
	seen[id] = n + 1
	if n > 0 {
		return fmt.Sprintf("%s#%d", id, n)
	}
	return id
}

func deleteFTS(ctx context.Context, tx *sql.Tx, column, value string) error {
	_, err := tx.ExecContext(ctx,
		"DELETE FROM resources_fts WHERE docid IN (SELECT rowid FROM resources WHERE "+column+" = ?)",
		value,
	)
	return fail(OpStep, "delete fts", err)
}

// DeleteResource removes the resource, its symbols (by cascade) and its FTS row.
// Deleting a missing id is not an error.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	return s.deleteBy(ctx, "id", id)
}

// DeleteResourceByPath is DeleteResource keyed by absolute path.
func (s *Store) DeleteResourceByPath(ctx context.Context, path string) error {
	return s.deleteBy(ctx, "path", path)
}

func (s *Store) deleteBy(ctx context.Context, column, value string) error {
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		return withTx(ctx, db, func(tx *sql.Tx) error {
			if err := deleteFTS(ctx, tx, column, value); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "DELETE FROM resources WHERE "+column+" = ?", value)
			return fail(OpStep, "delete resource", err)
		})
	})
}

// PruneOutside deletes every resource whose path is not under root and
// returns how many were removed.
func (s *Store) PruneOutside(ctx context.Context, root string) (int, error) {
	root = filepath.Clean(root)
	removed := 0
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		paths, err := queryStrings(ctx, db, "SELECT path FROM resources")
		if err != nil {
			return err
		}
		var outside []string
		for _, p := range paths {
			if !Within(root, p) {
				outside = append(outside, p)
			}
		}
		if len(outside) == 0 {
			return nil
		}
		return withTx(ctx, db, func(tx *sql.Tx) error {
			for _, p := range outside {
				if err := deleteFTS(ctx, tx, "path", p); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, "DELETE FROM resources WHERE path = ?", p); err != nil {
					return fail(OpStep, "prune "+p, err)
				}
				removed++
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Within reports whether path equals root or lies beneath it.
func Within(root, path string) bool {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if path == root {
		return true
	}
	if !strings.HasSuffix(root, string(filepath.Separator)) {
		root += string(filepath.Separator)
	}
	return strings.HasPrefix(path, root)
}

// IndexedPathsUnder returns the paths of all resources under root.
func (s *Store) IndexedPathsUnder(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		paths, err := queryStrings(ctx, db, "SELECT path FROM resources ORDER BY path")
		if err != nil {
			return err
		}
		for _, p := range paths {
			if Within(root, p) {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// ResourceState returns the stored mtime, hash and enrichment flag for id.
func (s *Store) ResourceState(ctx context.Context, id string) (ResourceState, error) {
	var st ResourceState
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		var enriched int
		err := db.QueryRowContext(ctx,
			"SELECT last_modified, content_hash, ai_enriched FROM resources WHERE id = ?", id,
		).Scan(&st.LastModified, &st.ContentHash, &enriched)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		st.AIEnriched = enriched != 0
		return fail(OpStep, "read resource state", err)
	})
	return st, err
}

// Resource returns the full resource row for an absolute path.
func (s *Store) Resource(ctx context.Context, path string) (*Resource, error) {
	var r Resource
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		var details, summary sql.NullString
		var enriched int
		err := db.QueryRowContext(ctx, `
			SELECT id, path, language, last_modified, content_hash, quality_score, quality_details, ai_enriched, summary
			FROM resources WHERE path = ?
		`, path).Scan(&r.ID, &r.Path, &r.Language, &r.LastModified, &r.ContentHash,
			&r.QualityScore, &details, &enriched, &summary)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fail(OpStep, "read resource", err)
		}
		r.QualityDetails = details.String
		r.Summary = summary.String
		r.AIEnriched = enriched != 0
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateQuality persists a heuristic assessment for the resource.
func (s *Store) UpdateQuality(ctx context.Context, id string, score float64, details string) error {
	return s.execOne(ctx, "update quality",
		"UPDATE resources SET quality_score = ?, quality_details = ? WHERE id = ?",
		clampScore(score), details, id,
	)
}

// MarkEnriched records a completed AI pass for the resource. An empty summary
// clears any previous one.
func (s *Store) MarkEnriched(ctx context.Context, id string, score float64, summary string) error {
	return s.execOne(ctx, "mark enriched",
		"UPDATE resources SET ai_enriched = 1, quality_score = ?, summary = NULLIF(?, '') WHERE id = ?",
		clampScore(score), summary, id,
	)
}

// AISummary returns the stored summary for an absolute path, or "".
func (s *Store) AISummary(ctx context.Context, path string) (string, error) {
	var summary sql.NullString
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		err := db.QueryRowContext(ctx, "SELECT summary FROM resources WHERE path = ?", path).Scan(&summary)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fail(OpStep, "read summary", err)
	})
	return summary.String, err
}

// execOne runs a single-row update and maps zero affected rows to ErrNotFound.
func (s *Store) execOne(ctx context.Context, what, query string, args ...any) error {
	return s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		res, err := db.ExecContext(ctx, query, args...)
		if err != nil {
			return fail(OpExec, what, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fail(OpExec, what, err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func clampScore(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func queryStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fail(OpPrepare, "query", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fail(OpStep, "scan", err)
		}
		out = append(out, v)
	}
	return out, fail(OpStep, "iterate", rows.Err())
}
