package languages

import "codeindex/internal/extract"

const swiftMods = `^\s*(?:(?:@\w+(?:\([^)]*\))?|public|private|internal|fileprivate|open|final|static|class|override|mutating|nonmutating|convenience|required|lazy|weak|unowned|dynamic|indirect|nonisolated|async)\s+)*`

// RegisterSwift adds Swift. There is no Swift grammar, so spans stay single-line.
func RegisterSwift(r *extract.Registry) {
	r.Register(&extract.LanguageSpec{
		Name:       "swift",
		Extensions: []string{"swift"},
		Patterns: []extract.Pattern{
			pat(extract.KindFunction, swiftMods+`func\s+(\w+)`),
			named(extract.KindInitializer, "init", swiftMods+`init[?!]?\s*[(<]`),
			pat(extract.KindClass, swiftMods+`(?:actor|class)\s+(\w+)`),
			pat(extract.KindStruct, swiftMods+`struct\s+(\w+)`),
			pat(extract.KindEnum, swiftMods+`enum\s+(\w+)`),
			pat(extract.KindProtocol, swiftMods+`protocol\s+(\w+)`),
			pat(extract.KindExtension, swiftMods+`extension\s+([\w.]+)`),
			pat(extract.KindVariable, swiftMods+`(?:let|var)\s+(\w+)`),
		},
	})
}
