package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
)

// ScopedStats counts indexed and AI-enriched resources, and their average
// quality, restricted to paths under prefix with one of the given extensions.
// Extensions are given without the leading dot; an empty set allows all.
func (s *Store) ScopedStats(ctx context.Context, prefix string, exts []string) (ScopedStats, error) {
	var st ScopedStats
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		query := `SELECT COUNT(*), COALESCE(SUM(ai_enriched), 0), COALESCE(AVG(quality_score), 0) FROM resources WHERE 1 = 1`
		var args []any
		if prefix != "" {
			query += ` AND (path = ? OR path LIKE ? ESCAPE '\')`
			clean := filepath.Clean(prefix)
			args = append(args, clean, likeEscaper.Replace(strings.TrimSuffix(clean, string(filepath.Separator))+string(filepath.Separator))+"%")
		}
		if len(exts) > 0 {
			clauses := make([]string, len(exts))
			for i, ext := range exts {
				clauses[i] = `path LIKE ? ESCAPE '\'`
				args = append(args, "%."+likeEscaper.Replace(strings.TrimPrefix(ext, ".")))
			}
			query += " AND (" + strings.Join(clauses, " OR ") + ")"
		}
		err := db.QueryRowContext(ctx, query, args...).Scan(&st.Indexed, &st.Enriched, &st.AverageQuality)
		return fail(OpStep, "scoped stats", err)
	})
	return st, err
}

// Stats computes aggregate index statistics.
func (s *Store) Stats(ctx context.Context) (IndexStats, error) {
	st := IndexStats{
		SymbolsByKind: make(map[string]int),
		Languages:     make(map[string]int),
	}
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		err := db.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(ai_enriched), 0), COALESCE(AVG(quality_score), 0) FROM resources
		`).Scan(&st.Resources, &st.Enriched, &st.AverageQuality)
		if err != nil {
			return fail(OpStep, "resource counts", err)
		}
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM symbols").Scan(&st.Symbols); err != nil {
			return fail(OpStep, "symbol count", err)
		}
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&st.Memories); err != nil {
			return fail(OpStep, "memory count", err)
		}
		if err := countInto(ctx, db, "SELECT kind, COUNT(*) FROM symbols GROUP BY kind", st.SymbolsByKind); err != nil {
			return err
		}
		return countInto(ctx, db, "SELECT language, COUNT(*) FROM resources GROUP BY language", st.Languages)
	})
	if err != nil {
		return st, err
	}
	for _, p := range []string{s.path, s.path + "-wal"} {
		if info, err := os.Stat(p); err == nil {
			st.DatabaseBytes += info.Size()
		}
	}
	return st, nil
}

func countInto(ctx context.Context, db *sql.DB, query string, into map[string]int) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fail(OpPrepare, "group counts", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fail(OpStep, "scan group count", err)
		}
		into[key] = n
	}
	return fail(OpStep, "iterate group counts", rows.Err())
}
