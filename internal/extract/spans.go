package extract

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
)

// resolveSpans sets LineEnd for each symbol to the last row of the largest
// declaration node that starts on the symbol's line. Parse failures leave the
// symbols untouched.
func resolveSpans(ctx context.Context, spec *LanguageSpec, src []byte, syms []Symbol) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(spec.Grammar)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil || tree == nil {
		return
	}
	defer tree.Close()

	decl := make(map[string]bool, len(spec.DeclTypes))
	for _, t := range spec.DeclTypes {
		decl[t] = true
	}

	// start row (1-based) → furthest end row (1-based)
	ends := make(map[int]int)
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if decl[n.Type()] {
			start := int(n.StartPoint().Row) + 1
			end := int(n.EndPoint().Row) + 1
			if end > ends[start] {
				ends[start] = end
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(tree.RootNode())

	for i := range syms {
		if end, ok := ends[syms[i].LineStart]; ok && end >= syms[i].LineStart {
			syms[i].LineEnd = end
		}
	}
}
