package extract

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// Symbol kinds.
const (
	KindClass       = "class"
	KindStruct      = "struct"
	KindEnum        = "enum"
	KindProtocol    = "protocol"
	KindExtension   = "extension"
	KindFunction    = "function"
	KindInitializer = "initializer"
	KindVariable    = "variable"
	KindUnknown     = "unknown"
)

// Pattern maps one line-anchored expression to a symbol kind.
type Pattern struct {
	Kind string
	Expr *regexp.Regexp
	// Name, when set, is used instead of the first capture group.
	Name string
	// Exclude rejects a match whose name is in the set, letting later
	// patterns try the line.
	Exclude map[string]bool
}

// LanguageSpec describes how to find symbols in one language.
type LanguageSpec struct {
	Name       string
	Extensions []string
	// Patterns are tried in order against each line; the first match wins.
	Patterns []Pattern
	// Grammar is optional. When present, symbol end lines come from the
	// syntax tree instead of defaulting to the start line.
	Grammar *sitter.Language
	// DeclTypes lists the node types that count as declarations for span
	// resolution.
	DeclTypes []string
}

// Registry maps file extensions to language specs.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*LanguageSpec // extension (without dot) → spec
	langs map[string]*LanguageSpec // language name → spec
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		specs: make(map[string]*LanguageSpec),
		langs: make(map[string]*LanguageSpec),
	}
}

// Register adds a language spec. Later registrations of the same extension win.
func (r *Registry) Register(spec *LanguageSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langs[spec.Name] = spec
	for _, ext := range spec.Extensions {
		r.specs[strings.ToLower(ext)] = spec
	}
}

// Lookup returns the spec for a file path based on its extension, or nil.
func (r *Registry) Lookup(path string) *LanguageSpec {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.specs[ext]
}

// Language returns the spec registered under name, or nil.
func (r *Registry) Language(name string) *LanguageSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.langs[name]
}

// LanguageName returns the language tag for a file path, or "unknown".
func (r *Registry) LanguageName(path string) string {
	if spec := r.Lookup(path); spec != nil {
		return spec.Name
	}
	return "unknown"
}

// Extensions returns the set of all registered file extensions (without dot).
func (r *Registry) Extensions() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make(map[string]bool, len(r.specs))
	for ext := range r.specs {
		exts[ext] = true
	}
	return exts
}
