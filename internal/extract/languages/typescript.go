package languages

import (
	"codeindex/internal/extract"

	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	tsExport = `^\s*(?:export\s+(?:default\s+)?)?(?:declare\s+)?`
	tsMember = `^\s+(?:(?:public|private|protected|static|readonly|abstract|override|async)\s+)*`
)

func RegisterTypeScript(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "typescript",
		Extensions: []string{"ts", "tsx", "mts", "cts"},
		Patterns: []extract.Pattern{
			pat(extract.KindClass, tsExport+`(?:abstract\s+)?class\s+(\w+)`),
			pat(extract.KindProtocol, tsExport+`interface\s+(\w+)`),
			pat(extract.KindEnum, tsExport+`(?:const\s+)?enum\s+(\w+)`),
			pat(extract.KindUnknown, tsExport+`type\s+(\w+)\s*(?:<[^>]*>)?\s*=`),
			pat(extract.KindFunction, tsExport+`(?:async\s+)?function\s*\*?\s*(\w+)`),
			pat(extract.KindFunction, tsExport+`(?:const|let|var)\s+(\w+)\s*(?::[^=]+)?=\s*(?:async\s+)?(?:function\b|\([^)]*\)\s*(?::[^=]+)?=>|\w+\s*=>)`),
			named(extract.KindInitializer, "constructor", `^\s*(?:(?:public|private|protected)\s+)?constructor\s*\(`),
			except(pat(extract.KindFunction, tsMember+`(\w+)\s*(?:<[^>]*>)?\s*\([^)]*\)\s*(?::[^{]+)?\{`), controlWords...),
			pat(extract.KindVariable, tsExport+`(?:const|let|var)\s+(\w+)`),
		},
		Grammar: typescript.GetLanguage(),
		DeclTypes: []string{
			"function_declaration", "generator_function_declaration", "class_declaration",
			"abstract_class_declaration", "method_definition", "lexical_declaration",
			"variable_declaration", "interface_declaration", "type_alias_declaration",
			"enum_declaration",
		},
	})
}
