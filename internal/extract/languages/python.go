package languages

import (
	"codeindex/internal/extract"

	"github.com/smacker/go-tree-sitter/python"
)

func RegisterPython(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "python",
		Extensions: []string{"py", "pyi"},
		Patterns: []extract.Pattern{
			named(extract.KindInitializer, "__init__", `^\s*(?:async\s+)?def\s+__init__\s*\(`),
			pat(extract.KindFunction, `^\s*(?:async\s+)?def\s+(\w+)`),
			pat(extract.KindClass, `^\s*class\s+(\w+)`),
			pat(extract.KindVariable, `^([A-Za-z_]\w*)\s*(?::[^=]+)?=[^=]`),
		},
		Grammar:   python.GetLanguage(),
		DeclTypes: []string{"function_definition", "class_definition", "decorated_definition", "expression_statement"},
	})
}
