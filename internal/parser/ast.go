package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// astNode is the parser's own view of one syntax node: a plain-Go copy of
// the tree-sitter node so the C-backed tree can be released as soon as
// parsing finishes, and so cached trees carry no cgo state.
type astNode struct {
	kind      string
	startByte int
	endByte   int
	startRow  int
	startCol  int
	endRow    int
	endCol    int
	hasError  bool
	children  []*astNode
}

// syntaxTree is one parsed file.
type syntaxTree struct {
	root *astNode
}

// parseSyntaxTree runs the language's tree-sitter grammar over source. A
// fresh sitter parser per call keeps this safe under the indexer's
// parallel per-file fan-out.
func parseSyntaxTree(ctx context.Context, source []byte, language string) (*syntaxTree, error) {
	lg, ok := languageGrammarFor(language)
	if !ok {
		return nil, errGrammarUnavailable
	}

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(lg.grammar)

	tree, err := p.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parser: %s grammar: %w", language, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parser: %s grammar produced no tree", language)
	}
	defer tree.Close()

	return &syntaxTree{root: copyNode(tree.RootNode())}, nil
}

func copyNode(n *sitter.Node) *astNode {
	if n == nil {
		return nil
	}
	out := &astNode{
		kind:      n.Type(),
		startByte: int(n.StartByte()),
		endByte:   int(n.EndByte()),
		startRow:  int(n.StartPoint().Row),
		startCol:  int(n.StartPoint().Column),
		endRow:    int(n.EndPoint().Row),
		endCol:    int(n.EndPoint().Column),
		hasError:  n.HasError(),
	}
	count := int(n.ChildCount())
	if count > 0 {
		out.children = make([]*astNode, 0, count)
		for i := 0; i < count; i++ {
			if c := n.Child(i); c != nil {
				out.children = append(out.children, copyNode(c))
			}
		}
	}
	return out
}

// text returns the source span the node covers.
func (n *astNode) text(source []byte) string {
	if n.startByte >= n.endByte || n.endByte > len(source) {
		return ""
	}
	return string(source[n.startByte:n.endByte])
}

// child returns the first direct child of the given kind.
func (n *astNode) child(kind string) *astNode {
	for _, c := range n.children {
		if c.kind == kind {
			return c
		}
	}
	return nil
}

// childrenOf returns every direct child of the given kind.
func (n *astNode) childrenOf(kind string) []*astNode {
	var out []*astNode
	for _, c := range n.children {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}
