package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"codeindex/internal/extract"
	"codeindex/internal/store"
)

var (
	// ErrUnindexable is returned for files that cannot be read as UTF-8 text.
	ErrUnindexable = errors.New("file is not indexable")
	// ErrOutsideRoot is returned for paths that resolve outside the project root.
	ErrOutsideRoot = errors.New("path is outside the project root")
)

// Store is the persistence the indexing components need.
type Store interface {
	ResourceState(ctx context.Context, id string) (store.ResourceState, error)
	WriteIndexed(ctx context.Context, guard func() bool, r store.Resource, content string, syms []store.Symbol) error
	DeleteResourceByPath(ctx context.Context, path string) error
	PruneOutside(ctx context.Context, root string) (int, error)
	IndexedPathsUnder(ctx context.Context, root string) ([]string, error)
	SetMeta(ctx context.Context, key, value string) error
	UpdateQuality(ctx context.Context, id string, score float64, details string) error
	MarkEnriched(ctx context.Context, id string, score float64, summary string) error
}

// Result describes one IndexFile call.
type Result struct {
	Path    string
	Skipped bool
	Symbols int
}

// Indexer indexes one file at a time into the Store.
type Indexer struct {
	store     Store
	extractor *extract.Extractor
	root      string
	realRoot  string
	logger    *slog.Logger
}

// NewIndexer creates an indexer confined to root.
func NewIndexer(s Store, ex *extract.Extractor, root string, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	return &Indexer{store: s, extractor: ex, root: abs, realRoot: resolved, logger: logger}, nil
}

// Root returns the absolute project root.
func (ix *Indexer) Root() string { return ix.root }

// Extractor returns the symbol extractor.
func (ix *Indexer) Extractor() *extract.Extractor { return ix.extractor }

// ResourceID derives the stable resource id for an absolute path.
func ResourceID(path string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.Clean(path))).String()
}

// ContentHash is the hex xxhash64 of content.
func ContentHash(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// resolve makes path absolute and rejects anything escaping the root, either
// lexically or through a symlink.
func (ix *Indexer) resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(ix.root, path)
	}
	path = filepath.Clean(path)
	if !store.Within(ix.root, path) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	if target, err := filepath.EvalSymlinks(path); err == nil && !store.Within(ix.realRoot, target) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return path, nil
}

// IndexFile indexes path if its content or mtime changed since the last run.
// guard may be nil; when it reports false at write time nothing is written and
// store.ErrSuperseded is returned.
func (ix *Indexer) IndexFile(ctx context.Context, path string, guard func() bool) (Result, error) {
	path, err := ix.resolve(path)
	if err != nil {
		return Result{}, err
	}
	res := Result{Path: path}

	info, err := os.Stat(path)
	if err != nil {
		return res, fmt.Errorf("%s: %w: %v", path, ErrUnindexable, err)
	}
	if !info.Mode().IsRegular() {
		return res, fmt.Errorf("%s: %w: not a regular file", path, ErrUnindexable)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("%s: %w: %v", path, ErrUnindexable, err)
	}
	if !utf8.Valid(raw) {
		return res, fmt.Errorf("%s: %w: invalid UTF-8", path, ErrUnindexable)
	}

	id := ResourceID(path)
	hash := ContentHash(raw)
	mtime := info.ModTime().Unix()

	prev, err := ix.store.ResourceState(ctx, id)
	switch {
	case err == nil:
		if prev.LastModified == mtime && prev.ContentHash == hash {
			res.Skipped = true
			return res, nil
		}
	case errors.Is(err, store.ErrNotFound):
	default:
		return res, fmt.Errorf("read state %s: %w", path, err)
	}

	content := string(raw)
	lang, found := ix.extractor.Extract(ctx, path, content)
	syms := make([]store.Symbol, len(found))
	for i, s := range found {
		syms[i] = store.Symbol{
			ResourceID: id,
			Name:       s.Name,
			Kind:       s.Kind,
			LineStart:  s.LineStart,
			LineEnd:    s.LineEnd,
		}
	}

	r := store.Resource{
		ID:           id,
		Path:         path,
		Language:     lang,
		LastModified: mtime,
		ContentHash:  hash,
	}
	if err := ix.store.WriteIndexed(ctx, guard, r, content, syms); err != nil {
		if errors.Is(err, store.ErrSuperseded) {
			return res, err
		}
		return res, fmt.Errorf("write %s: %w", path, err)
	}
	res.Symbols = len(syms)
	ix.logger.Debug("indexed file", "path", path, "language", lang, "symbols", len(syms))
	return res, nil
}

// RemoveFile deletes the resource for path, or every resource under it when
// path was a directory.
func (ix *Indexer) RemoveFile(ctx context.Context, path string) error {
	if !filepath.IsAbs(path) {
		path = filepath.Join(ix.root, path)
	}
	path = filepath.Clean(path)
	if !store.Within(ix.root, path) {
		return fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	if err := ix.store.DeleteResourceByPath(ctx, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	nested, err := ix.store.IndexedPathsUnder(ctx, path)
	if err != nil {
		return fmt.Errorf("list under %s: %w", path, err)
	}
	for _, p := range nested {
		if err := ix.store.DeleteResourceByPath(ctx, p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}
