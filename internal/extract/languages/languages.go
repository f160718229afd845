// Package languages holds the pattern tables for every supported language.
package languages

import (
	"regexp"

	"codeindex/internal/extract"
)

// RegisterAll adds every built-in language to r.
func RegisterAll(r *extract.Registry) {
	RegisterSwift(r)
	RegisterPython(r)
	RegisterGo(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	RegisterRust(r)
	RegisterJava(r)
	RegisterKotlin(r)
	RegisterPlain(r)
}

// Default returns a registry with every built-in language registered.
func Default() *extract.Registry {
	r := extract.NewRegistry()
	RegisterAll(r)
	return r
}

func pat(kind, expr string) extract.Pattern {
	return extract.Pattern{Kind: kind, Expr: regexp.MustCompile(expr)}
}

func named(kind, name, expr string) extract.Pattern {
	return extract.Pattern{Kind: kind, Name: name, Expr: regexp.MustCompile(expr)}
}

func except(p extract.Pattern, names ...string) extract.Pattern {
	p.Exclude = make(map[string]bool, len(names))
	for _, n := range names {
		p.Exclude[n] = true
	}
	return p
}

// controlWords are keywords that look like calls in C-family method patterns.
var controlWords = []string{"if", "for", "while", "switch", "catch", "return", "function", "new", "else", "do", "try", "with", "typeof", "await", "throw"}
