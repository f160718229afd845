package languages

import "codeindex/internal/extract"

const (
	javaMods = `^\s*(?:(?:@\w+(?:\([^)]*\))?|public|protected|private|static|final|abstract|sealed|non-sealed|strictfp|synchronized|native|default|transient|volatile)\s+)*`
	ktMods   = `^\s*(?:(?:@\w+(?:\([^)]*\))?|public|protected|private|internal|open|final|abstract|sealed|data|inner|override|suspend|inline|operator|infix|tailrec|external|lateinit|const|expect|actual|value|annotation|companion)\s+)*`
)

func RegisterJava(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "java",
		Extensions: []string{"java"},
		Patterns: []extract.Pattern{
			pat(extract.KindClass, javaMods+`(?:class|record)\s+(\w+)`),
			pat(extract.KindProtocol, javaMods+`@?interface\s+(\w+)`),
			pat(extract.KindEnum, javaMods+`enum\s+(\w+)`),
			named(extract.KindInitializer, "constructor", `^\s*(?:public|protected|private)\s+[A-Z]\w*\s*\([^;]*$`),
			except(pat(extract.KindFunction, javaMods+`(?:<[^>]+>\s+)?[\w<>\[\],.?]+(?:\s*<[^>]*>)?\s+(\w+)\s*\([^;]*$`), controlWords...),
			pat(extract.KindVariable, `^\s*(?:(?:public|protected|private|static|final|volatile|transient)\s+)+[\w<>\[\],.? ]+\s+(\w+)\s*(?:=|;)`),
		},
	})
}

func RegisterKotlin(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "kotlin",
		Extensions: []string{"kt", "kts"},
		Patterns: []extract.Pattern{
			pat(extract.KindEnum, ktMods+`enum\s+class\s+(\w+)`),
			pat(extract.KindProtocol, ktMods+`(?:fun\s+)?interface\s+(\w+)`),
			pat(extract.KindClass, ktMods+`(?:class|object)\s+(\w+)`),
			pat(extract.KindFunction, ktMods+`fun\s+(?:<[^>]+>\s+)?(?:[\w.]+\.)?(\w+)`),
			named(extract.KindInitializer, "constructor", ktMods+`constructor\s*\(`),
			named(extract.KindInitializer, "init", `^\s*init\s*\{`),
			pat(extract.KindVariable, ktMods+`(?:val|var)\s+(\w+)`),
			pat(extract.KindUnknown, ktMods+`typealias\s+(\w+)`),
		},
	})
}
