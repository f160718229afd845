// Package search is the read surface over the index: symbol lookup, ranked
// file search, text search, file reads, summaries, stats and memories.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"codeindex/internal/index"
	"codeindex/internal/store"
)

// ErrOutsideRoot is returned for paths that resolve outside the project root.
var ErrOutsideRoot = index.ErrOutsideRoot

const (
	snippetLimit     = 240
	maxFindSuperset  = 2000
	maxTextCandidate = 800
	maxSearchTokens  = 3
	minTokenLength   = 3
)

// Store is the read side of the store used by the service.
type Store interface {
	SearchSymbols(ctx context.Context, nameLike string, limit int) ([]store.Symbol, error)
	SearchSymbolsWithPaths(ctx context.Context, nameLike string, limit int) ([]store.SymbolMatch, error)
	FindResourceMatches(ctx context.Context, root, needle string, limit int) ([]store.ResourceMatch, error)
	ListResourcePaths(ctx context.Context, filter string, limit, offset int) ([]string, error)
	CandidatePathsForFTS(ctx context.Context, query string, limit int) ([]string, error)
	SearchFTS(ctx context.Context, query string, limit int) ([]store.FTSHit, error)
	Resource(ctx context.Context, path string) (*store.Resource, error)
	SymbolsForResource(ctx context.Context, resourceID string) ([]store.Symbol, error)
	AISummary(ctx context.Context, path string) (string, error)
	Stats(ctx context.Context) (store.IndexStats, error)
	ScopedStats(ctx context.Context, prefix string, exts []string) (store.ScopedStats, error)
	AddMemory(ctx context.Context, m store.MemoryEntry) (store.MemoryEntry, error)
	ListMemories(ctx context.Context, tier store.Tier, limit int) ([]store.MemoryEntry, error)
	UpsertEmbedding(ctx context.Context, memoryID, modelID string, vector []float32) error
	SearchSimilarMemories(ctx context.Context, modelID string, vector []float32, limit int, tier store.Tier) ([]store.MemoryMatch, error)
}

// Embedder turns memory text into vectors. It is optional.
type Embedder interface {
	Model() string
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Service answers queries against one project's index.
type Service struct {
	store    Store
	root     string
	embedder Embedder
	logger   *slog.Logger
}

// New creates a service for the project at root. emb may be nil.
func New(s Store, root string, emb Embedder, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	return &Service{store: s, root: abs, embedder: emb, logger: logger}, nil
}

// Root returns the absolute project root.
func (s *Service) Root() string { return s.root }

// Rel returns path relative to the root, slash-separated.
func (s *Service) Rel(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// resolve turns a root-relative or absolute path into an absolute path inside
// the root.
func (s *Service) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, filepath.FromSlash(path))
	}
	path = filepath.Clean(path)
	if !store.Within(s.root, path) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	if target, err := filepath.EvalSymlinks(path); err == nil {
		realRoot, rerr := filepath.EvalSymlinks(s.root)
		if rerr != nil {
			realRoot = s.root
		}
		if !store.Within(realRoot, target) {
			return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
		}
	}
	return path, nil
}

// SearchSymbols returns symbols whose name contains nameLike, ordered by name.
func (s *Service) SearchSymbols(ctx context.Context, nameLike string, limit int) ([]store.Symbol, error) {
	return s.store.SearchSymbols(ctx, nameLike, limit)
}

// SearchSymbolsWithPaths is SearchSymbols with each symbol's file path.
func (s *Service) SearchSymbolsWithPaths(ctx context.Context, nameLike string, limit int) ([]store.SymbolMatch, error) {
	return s.store.SearchSymbolsWithPaths(ctx, nameLike, limit)
}

// FileMatch is one FindFiles result.
type FileMatch struct {
	Path    string
	RelPath string
	Score   float64
}

// FindFiles ranks indexed files whose path contains query.
func (s *Service) FindFiles(ctx context.Context, query string, limit int) ([]FileMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	superset := min(max(limit*10, 100), maxFindSuperset)
	matches, err := s.store.FindResourceMatches(ctx, s.root, query, superset)
	if err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	cands := make([]Candidate, len(matches))
	abs := make(map[string]string, len(matches))
	for i, m := range matches {
		rel := s.Rel(m.Path)
		abs[rel] = m.Path
		cands[i] = Candidate{RelPath: rel, QualityScore: m.QualityScore, AIEnriched: m.AIEnriched}
	}
	ranked := Rank(cands, query)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]FileMatch, len(ranked))
	for i, r := range ranked {
		out[i] = FileMatch{Path: abs[r.RelPath], RelPath: r.RelPath, Score: r.Score}
	}
	return out, nil
}

// searchTokens returns up to three of the longest alphanumeric runs in
// pattern that are at least three characters long.
func searchTokens(pattern string) []string {
	fields := strings.FieldsFunc(pattern, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, f := range fields {
		key := strings.ToLower(f)
		if utf8.RuneCountInString(f) < minTokenLength || seen[key] {
			continue
		}
		seen[key] = true
		tokens = append(tokens, f)
	}
	sort.SliceStable(tokens, func(i, j int) bool { return len(tokens[i]) > len(tokens[j]) })
	if len(tokens) > maxSearchTokens {
		tokens = tokens[:maxSearchTokens]
	}
	return tokens
}

func ftsQuery(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}

// SearchText finds lines containing pattern literally and returns them as
// "path:line: snippet" with paths relative to the root.
func (s *Service) SearchText(ctx context.Context, pattern string, limit int) ([]string, error) {
	if pattern == "" || limit <= 0 {
		return nil, nil
	}
	maxCandidates := min(max(50, limit*20), maxTextCandidate)

	var paths []string
	var err error
	if tokens := searchTokens(pattern); len(tokens) > 0 {
		paths, err = s.store.CandidatePathsForFTS(ctx, ftsQuery(tokens), maxCandidates)
	} else {
		paths, err = s.store.ListResourcePaths(ctx, "", maxCandidates, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("search candidates: %w", err)
	}

	var out []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if !store.Within(s.root, p) {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			s.logger.Debug("skip unreadable candidate", "path", p, "err", err)
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			if !strings.Contains(line, pattern) {
				continue
			}
			out = append(out, fmt.Sprintf("%s:%d: %s", s.Rel(p), i+1, snippet(line)))
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

func snippet(line string) string {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if utf8.RuneCountInString(line) <= snippetLimit {
		return line
	}
	return string([]rune(line)[:snippetLimit])
}

// FullText runs an FTS query expression and returns highlighted snippets.
func (s *Service) FullText(ctx context.Context, query string, limit int) ([]store.FTSHit, error) {
	return s.store.SearchFTS(ctx, query, limit)
}

// ListFiles pages through indexed paths, optionally filtered by substring.
func (s *Service) ListFiles(ctx context.Context, filter string, limit, offset int) ([]string, error) {
	return s.store.ListResourcePaths(ctx, filter, limit, offset)
}

// ReadFile returns the content of a file inside the project root.
func (s *Service) ReadFile(ctx context.Context, path string) (string, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileInfo is an indexed file with its symbols.
type FileInfo struct {
	store.Resource
	Symbols []store.Symbol
}

// File returns the stored record and symbols for a file.
func (s *Service) File(ctx context.Context, path string) (*FileInfo, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	r, err := s.store.Resource(ctx, abs)
	if err != nil {
		return nil, err
	}
	syms, err := s.store.SymbolsForResource(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return &FileInfo{Resource: *r, Symbols: syms}, nil
}

// Summary returns the AI summary for a file, or "" when it has none.
func (s *Service) Summary(ctx context.Context, path string) (string, error) {
	abs, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	return s.store.AISummary(ctx, abs)
}

// Stats returns aggregate statistics for the whole index.
func (s *Service) Stats(ctx context.Context) (store.IndexStats, error) {
	return s.store.Stats(ctx)
}

// ScopedStats aggregates files under prefix (root-relative or absolute) with
// the given extensions.
func (s *Service) ScopedStats(ctx context.Context, prefix string, exts []string) (store.ScopedStats, error) {
	abs := s.root
	if prefix != "" {
		var err error
		if abs, err = s.resolve(prefix); err != nil {
			return store.ScopedStats{}, err
		}
	}
	return s.store.ScopedStats(ctx, abs, exts)
}

// AddMemory stores a memory and, when an embedder is configured, its vector.
// Embedding failures are logged; the memory itself is kept.
func (s *Service) AddMemory(ctx context.Context, m store.MemoryEntry) (store.MemoryEntry, error) {
	saved, err := s.store.AddMemory(ctx, m)
	if err != nil {
		return saved, err
	}
	if s.embedder == nil {
		return saved, nil
	}
	vec, err := s.embedder.EmbedSingle(ctx, saved.Content)
	if err != nil {
		s.logger.Warn("embed memory", "id", saved.ID, "err", err)
		return saved, nil
	}
	if err := s.store.UpsertEmbedding(ctx, saved.ID, s.embedder.Model(), vec); err != nil {
		s.logger.Warn("store memory embedding", "id", saved.ID, "err", err)
	}
	return saved, nil
}

// ListMemories returns the newest memories of a tier ("" for all).
func (s *Service) ListMemories(ctx context.Context, tier store.Tier, limit int) ([]store.MemoryEntry, error) {
	return s.store.ListMemories(ctx, tier, limit)
}

// RecallMemories returns memories related to query. With an embedder it ranks
// by vector similarity; otherwise it falls back to a substring match over the
// newest memories.
func (s *Service) RecallMemories(ctx context.Context, query string, tier store.Tier, limit int) ([]store.MemoryMatch, error) {
	if s.embedder != nil {
		vec, err := s.embedder.EmbedSingle(ctx, query)
		if err == nil {
			return s.store.SearchSimilarMemories(ctx, s.embedder.Model(), vec, limit, tier)
		}
		s.logger.Warn("embed query, falling back to substring match", "err", err)
	}
	all, err := s.store.ListMemories(ctx, tier, max(limit*10, 100))
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []store.MemoryMatch
	for _, m := range all {
		if strings.Contains(strings.ToLower(m.Content), needle) || strings.Contains(strings.ToLower(m.Category), needle) {
			out = append(out, store.MemoryMatch{MemoryEntry: m, Distance: -1})
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// IsNotFound reports whether err means the file is not indexed.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
