package languages

import "codeindex/internal/extract"

// plain lists languages that get a tag but no symbols.
var plain = map[string][]string{
	"markdown":   {"md", "markdown"},
	"text":       {"txt"},
	"json":       {"json"},
	"yaml":       {"yaml", "yml"},
	"toml":       {"toml"},
	"xml":        {"xml", "plist"},
	"html":       {"html", "htm"},
	"css":        {"css", "scss"},
	"shell":      {"sh", "bash", "zsh"},
	"sql":        {"sql"},
	"c":          {"c", "h"},
	"cpp":        {"cc", "cpp", "hpp"},
	"objectivec": {"m", "mm"},
	"ruby":       {"rb"},
	"csharp":     {"cs"},
	"php":        {"php"},
}

func RegisterPlain(r *extract.Registry) {
	for name, exts := range plain {
		r.Register(&extract.LanguageSpec{Name: name, Extensions: exts})
	}
}
