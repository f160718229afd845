package extract

import (
	"context"
	"strings"
)

// Symbol is a symbol candidate found in one file. Lines are 1-based.
type Symbol struct {
	Name      string
	Kind      string
	LineStart int
	LineEnd   int
}

// Extractor turns file content into symbol candidates using a Registry.
type Extractor struct {
	registry *Registry
}

// New creates an extractor backed by the given registry.
func New(r *Registry) *Extractor {
	return &Extractor{registry: r}
}

// Registry returns the registry the extractor consults.
func (e *Extractor) Registry() *Registry {
	return e.registry
}

// Extract returns the language tag for path and the symbols found in content.
// Files with no registered language yield "unknown" and no symbols.
func (e *Extractor) Extract(ctx context.Context, path, content string) (string, []Symbol) {
	spec := e.registry.Lookup(path)
	if spec == nil {
		return "unknown", nil
	}
	syms := Scan(spec.Patterns, content)
	if len(syms) > 0 && spec.Grammar != nil {
		resolveSpans(ctx, spec, []byte(content), syms)
	}
	return spec.Name, syms
}

// Scan runs an ordered pattern table over content line by line. The first
// pattern matching a line wins and a line yields at most one symbol.
func Scan(patterns []Pattern, content string) []Symbol {
	if len(patterns) == 0 {
		return nil
	}
	var syms []Symbol
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, p := range patterns {
			m := p.Expr.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := p.Name
			if name == "" && len(m) > 1 {
				name = m[1]
			}
			if name == "" || p.Exclude[name] {
				continue
			}
			syms = append(syms, Symbol{Name: name, Kind: p.Kind, LineStart: i + 1, LineEnd: i + 1})
			break
		}
	}
	return syms
}
