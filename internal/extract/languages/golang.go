package languages

import (
	"codeindex/internal/extract"

	"github.com/smacker/go-tree-sitter/golang"
)

func RegisterGo(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "go",
		Extensions: []string{"go"},
		Patterns: []extract.Pattern{
			pat(extract.KindFunction, `^func\s+(?:\([^)]*\)\s*)?(\w+)`),
			pat(extract.KindStruct, `^\s*type\s+(\w+)(?:\[[^\]]*\])?\s+struct\b`),
			pat(extract.KindProtocol, `^\s*type\s+(\w+)(?:\[[^\]]*\])?\s+interface\b`),
			pat(extract.KindUnknown, `^\s*type\s+(\w+)`),
			pat(extract.KindVariable, `^(?:var|const)\s+(\w+)`),
		},
		Grammar: golang.GetLanguage(),
		DeclTypes: []string{
			"function_declaration", "method_declaration", "type_declaration",
			"var_declaration", "const_declaration",
		},
	})
}
