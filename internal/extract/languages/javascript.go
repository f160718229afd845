package languages

import (
	"codeindex/internal/extract"

	"github.com/smacker/go-tree-sitter/javascript"
)

const jsExport = `^\s*(?:export\s+(?:default\s+)?)?`

func RegisterJavaScript(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "javascript",
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		Patterns: []extract.Pattern{
			pat(extract.KindClass, jsExport+`class\s+(\w+)`),
			pat(extract.KindFunction, jsExport+`(?:async\s+)?function\s*\*?\s*(\w+)`),
			pat(extract.KindFunction, jsExport+`(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*=>|\w+\s*=>)`),
			named(extract.KindInitializer, "constructor", `^\s*constructor\s*\(`),
			except(pat(extract.KindFunction, `^\s+(?:static\s+)?(?:async\s+)?\*?(\w+)\s*\([^)]*\)\s*\{`), controlWords...),
			pat(extract.KindVariable, jsExport+`(?:const|let|var)\s+(\w+)`),
		},
		Grammar: javascript.GetLanguage(),
		DeclTypes: []string{
			"function_declaration", "generator_function_declaration", "class_declaration",
			"method_definition", "lexical_declaration", "variable_declaration",
		},
	})
}
