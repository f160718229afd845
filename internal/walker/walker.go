package walker

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize is the largest file we'll consider (2 MB).
const DefaultMaxFileSize = 2 << 20

// DefaultExtensions are the indexable file extensions (without dot).
var DefaultExtensions = map[string]bool{
	"swift": true, "m": true, "h": true, "c": true, "cc": true, "cpp": true, "hpp": true,
	"go": true, "py": true, "pyi": true, "rb": true, "rs": true, "java": true, "kt": true, "kts": true,
	"js": true, "jsx": true, "mjs": true, "cjs": true, "ts": true, "tsx": true,
	"cs": true, "php": true, "sh": true, "sql": true,
	"html": true, "css": true, "scss": true,
	"md": true, "markdown": true, "txt": true,
	"json": true, "yaml": true, "yml": true, "toml": true, "xml": true, "plist": true,
}

// EnrichableExtensions is the narrower set considered by the AI pass.
var EnrichableExtensions = map[string]bool{
	"swift": true, "m": true, "c": true, "cpp": true,
	"go": true, "py": true, "rb": true, "rs": true, "java": true, "kt": true,
	"js": true, "jsx": true, "ts": true, "tsx": true, "cs": true, "php": true,
}

// Options configures a walk.
type Options struct {
	// Excluder filters project-relative paths; nil excludes nothing.
	Excluder *Excluder
	// Extensions is the allowed set, without dots. Nil means DefaultExtensions.
	Extensions map[string]bool
	// PrivateDir is the index's own directory name under the root, never descended.
	PrivateDir string
	// MaxFileSize skips larger files; 0 means DefaultMaxFileSize.
	MaxFileSize int64
}

// Extension returns the lower-cased extension of path without the dot.
func Extension(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Walk traverses the directory tree rooted at root and returns the absolute
// paths of indexable files in discovery order. Unreadable entries are skipped.
func Walk(ctx context.Context, root string, opts Options) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	exts := opts.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil // skip errors, keep walking
		}
		if path == absRoot {
			return nil
		}

		name := d.Name()
		rel, _ := filepath.Rel(absRoot, path)
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if strings.HasPrefix(name, ".") || name == opts.PrivateDir || opts.Excluder.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		// Skip symlinks and other non-regular files.
		if !d.Type().IsRegular() {
			return nil
		}
		if !exts[Extension(path)] {
			return nil
		}
		if opts.Excluder.Excluded(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return files, err
	}
	return files, nil
}
