package languages

import "codeindex/internal/extract"

const rustVis = `^\s*(?:pub(?:\([^)]*\))?\s+)?`

func RegisterRust(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "rust",
		Extensions: []string{"rs"},
		Patterns: []extract.Pattern{
			pat(extract.KindFunction, rustVis+`(?:(?:const|async|unsafe|extern\s+"[^"]*")\s+)*fn\s+(\w+)`),
			pat(extract.KindStruct, rustVis+`struct\s+(\w+)`),
			pat(extract.KindEnum, rustVis+`enum\s+(\w+)`),
			pat(extract.KindProtocol, rustVis+`(?:unsafe\s+)?trait\s+(\w+)`),
			pat(extract.KindExtension, `^\s*(?:unsafe\s+)?impl(?:<[^>]*>)?\s+(?:[\w:]+(?:<[^>]*>)?\s+for\s+)?(\w+)`),
			pat(extract.KindVariable, rustVis+`(?:const|static)\s+(?:mut\s+)?(\w+)`),
			pat(extract.KindUnknown, rustVis+`type\s+(\w+)`),
		},
	})
}
