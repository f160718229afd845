package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// likeEscaper escapes LIKE wildcards so user input matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// FindResourceMatches returns resources under root whose root-relative path
// contains needle (case-insensitive for ASCII). An empty root matches the
// whole stored path.
func (s *Store) FindResourceMatches(ctx context.Context, root, needle string, limit int) ([]ResourceMatch, error) {
	prefix := ""
	if root != "" {
		prefix = strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)
	}
	n := utf8.RuneCountInString(prefix)
	var out []ResourceMatch
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT path, quality_score, ai_enriched FROM resources
			WHERE substr(path, 1, ?) = ?
			  AND substr(path, ?) LIKE ? ESCAPE '\'
			ORDER BY path
			LIMIT ?
		`, n, prefix, n+1, containsPattern(needle), limit)
		if err != nil {
			return fail(OpPrepare, "find resources", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m ResourceMatch
			var enriched int
			if err := rows.Scan(&m.Path, &m.QualityScore, &enriched); err != nil {
				return fail(OpStep, "scan resource", err)
			}
			m.AIEnriched = enriched != 0
			out = append(out, m)
		}
		return fail(OpStep, "iterate resources", rows.Err())
	})
	return out, err
}

// ListResourcePaths pages through indexed paths ordered by path. An empty
// filter lists everything; otherwise paths must contain filter.
func (s *Store) ListResourcePaths(ctx context.Context, filter string, limit, offset int) ([]string, error) {
	var out []string
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		if filter == "" {
			out, err = queryStrings(ctx, db,
				"SELECT path FROM resources ORDER BY path LIMIT ? OFFSET ?", limit, offset)
		} else {
			out, err = queryStrings(ctx, db,
				`SELECT path FROM resources WHERE path LIKE ? ESCAPE '\' ORDER BY path LIMIT ? OFFSET ?`,
				containsPattern(filter), limit, offset)
		}
		return err
	})
	return out, err
}

// CandidatePathsForFTS returns paths whose content matches an FTS4 query expression.
func (s *Store) CandidatePathsForFTS(ctx context.Context, query string, limit int) ([]string, error) {
	var out []string
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		var err error
		out, err = queryStrings(ctx, db, `
			SELECT r.path FROM resources_fts f
			JOIN resources r ON r.rowid = f.docid
			WHERE resources_fts MATCH ?
			LIMIT ?
		`, query, limit)
		return err
	})
	return out, err
}

// SearchFTS returns full-text matches with a short highlighted snippet.
func (s *Store) SearchFTS(ctx context.Context, query string, limit int) ([]FTSHit, error) {
	var out []FTSHit
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT r.path, snippet(resources_fts, '[', ']', '...', 1, 12)
			FROM resources_fts f
			JOIN resources r ON r.rowid = f.docid
			WHERE resources_fts MATCH ?
			LIMIT ?
		`, query, limit)
		if err != nil {
			return fail(OpPrepare, "search fts", err)
		}
		defer rows.Close()
		for rows.Next() {
			var h FTSHit
			if err := rows.Scan(&h.Path, &h.Snippet); err != nil {
				return fail(OpStep, "scan fts", err)
			}
			out = append(out, h)
		}
		return fail(OpStep, "iterate fts", rows.Err())
	})
	return out, err
}

const symbolColumns = "s.id, s.resource_id, s.name, s.kind, s.line_start, s.line_end, COALESCE(s.description, '')"

func scanSymbol(rows *sql.Rows, extra ...any) (Symbol, error) {
	var sym Symbol
	dest := append([]any{&sym.ID, &sym.ResourceID, &sym.Name, &sym.Kind, &sym.LineStart, &sym.LineEnd, &sym.Description}, extra...)
	err := rows.Scan(dest...)
	return sym, err
}

// SearchSymbols returns symbols whose name contains nameLike, ordered by name.
func (s *Store) SearchSymbols(ctx context.Context, nameLike string, limit int) ([]Symbol, error) {
	var out []Symbol
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT `+symbolColumns+` FROM symbols s
			WHERE s.name LIKE ? ESCAPE '\'
			ORDER BY s.name
			LIMIT ?
		`, containsPattern(nameLike), limit)
		if err != nil {
			return fail(OpPrepare, "search symbols", err)
		}
		defer rows.Close()
		for rows.Next() {
			sym, err := scanSymbol(rows)
			if err != nil {
				return fail(OpStep, "scan symbol", err)
			}
			out = append(out, sym)
		}
		return fail(OpStep, "iterate symbols", rows.Err())
	})
	return out, err
}

// SearchSymbolsWithPaths is SearchSymbols joined to the owning resource path.
func (s *Store) SearchSymbolsWithPaths(ctx context.Context, nameLike string, limit int) ([]SymbolMatch, error) {
	var out []SymbolMatch
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `
			SELECT `+symbolColumns+`, r.path FROM symbols s
			JOIN resources r ON r.id = s.resource_id
			WHERE s.name LIKE ? ESCAPE '\'
			ORDER BY s.name, r.path
			LIMIT ?
		`, containsPattern(nameLike), limit)
		if err != nil {
			return fail(OpPrepare, "search symbols", err)
		}
		defer rows.Close()
		for rows.Next() {
			var m SymbolMatch
			sym, err := scanSymbol(rows, &m.Path)
			if err != nil {
				return fail(OpStep, "scan symbol", err)
			}
			m.Symbol = sym
			out = append(out, m)
		}
		return fail(OpStep, "iterate symbols", rows.Err())
	})
	return out, err
}

// SymbolsForResource returns every symbol of a resource ordered by line.
func (s *Store) SymbolsForResource(ctx context.Context, resourceID string) ([]Symbol, error) {
	var out []Symbol
	err := s.do(ctx, func(ctx context.Context, db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT "+symbolColumns+" FROM symbols s WHERE s.resource_id = ? ORDER BY s.line_start, s.name",
			resourceID,
		)
		if err != nil {
			return fail(OpPrepare, "list symbols", err)
		}
		defer rows.Close()
		for rows.Next() {
			sym, err := scanSymbol(rows)
			if err != nil {
				return fail(OpStep, "scan symbol", err)
			}
			out = append(out, sym)
		}
		return fail(OpStep, "iterate symbols", rows.Err())
	})
	return out, err
}
