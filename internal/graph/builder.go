package graph

import (
	"sort"
	"strconv"

	"github.com/unicore-dev/uce/internal/model"
)

// Builder constructs a Graph from a model.ProjectIndex: a file node and a
// defines edge per symbol, contains edges for nested symbols,
// extends/implements edges (creating placeholders for unresolved targets),
// a module node per import source, exports edges for exported symbols, and
// calls edges per call reference.
type Builder struct{}

// NewBuilder returns a Builder. It is stateless; one instance can build
// any number of graphs.
func NewBuilder() *Builder { return &Builder{} }

// Build constructs a fresh Graph from idx. Symbol names are resolved
// project-wide (a class in one file can extend a class defined in
// another), with the first file in lexicographic order winning on a name
// collision. Iteration is in repo-relative lexicographic file order,
// matching the ordering guarantee the rest of the core relies on for
// reproducibility.
func (b *Builder) Build(idx *model.ProjectIndex) *Graph {
	g := New()

	paths := make([]string, 0, len(idx.Files))
	for p := range idx.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	symbolID := make(map[string]string)
	for _, path := range paths {
		fi := idx.Files[path]
		for _, sym := range fi.Symbols {
			id := SymbolNodeID(model.NodeType(sym.Kind), fi.Path, sym.Name, sym.StartLine)
			if _, exists := symbolID[sym.Name]; !exists {
				symbolID[sym.Name] = id
			}
		}
	}

	for _, path := range paths {
		b.addFile(g, idx.Files[path], symbolID)
	}

	g.ClearDirty()
	return g
}

func (b *Builder) addFile(g *Graph, fi *model.FileIndex, symbolID map[string]string) {
	fileID := FileNodeID(fi.Path)
	g.AddNode(&model.GraphNode{
		ID:       fileID,
		Type:     model.NodeTypeFile,
		Name:     fi.Path,
		FilePath: fi.Path,
		Doc:      fi.Description,
	})

	for _, sym := range fi.Symbols {
		id := SymbolNodeID(model.NodeType(sym.Kind), fi.Path, sym.Name, sym.StartLine)
		g.AddNode(&model.GraphNode{
			ID:       id,
			Type:     model.NodeType(sym.Kind),
			Name:     sym.Name,
			FilePath: fi.Path,
			Line:     sym.StartLine,
			Exported: sym.Exported,
			Doc:      sym.Docstring,
		})
		g.AddEdge(&model.GraphEdge{From: fileID, To: id, Type: model.EdgeTypeDefines})
	}

	for _, sym := range fi.Symbols {
		childID := SymbolNodeID(model.NodeType(sym.Kind), fi.Path, sym.Name, sym.StartLine)
		if sym.Parent != "" {
			parentID := resolveOrPlaceholder(symbolID, sym.Parent, model.NodeTypeClass)
			g.AddEdge(&model.GraphEdge{From: parentID, To: childID, Type: model.EdgeTypeContains})
		}
		for _, base := range sym.Extends {
			targetID := resolveOrPlaceholder(symbolID, base, model.NodeTypeClass)
			g.AddEdge(&model.GraphEdge{From: childID, To: targetID, Type: model.EdgeTypeExtends})
		}
		for _, iface := range sym.Implements {
			targetID := resolveOrPlaceholder(symbolID, iface, model.NodeTypeInterface)
			g.AddEdge(&model.GraphEdge{From: childID, To: targetID, Type: model.EdgeTypeImplements})
		}
	}

	for _, imp := range fi.Imports {
		modID := "module:" + imp.Source
		g.AddNode(&model.GraphNode{ID: modID, Type: model.NodeTypeModule, Name: imp.Source})
		g.AddEdge(&model.GraphEdge{
			From:     fileID,
			To:       modID,
			Type:     model.EdgeTypeImports,
			Metadata: map[string]string{"kind": string(imp.Kind)},
		})
	}

	for _, exp := range fi.Exports {
		for _, n := range exp.Names {
			targetID, ok := symbolID[n.Name]
			if !ok {
				continue
			}
			g.AddEdge(&model.GraphEdge{From: fileID, To: targetID, Type: model.EdgeTypeExports})
		}
	}

	for _, call := range fi.CallRefs {
		callerID := fileID
		if call.Caller != "" {
			callerID = resolveOrPlaceholder(symbolID, call.Caller, model.NodeTypeFunction)
		}
		calleeID := resolveOrPlaceholder(symbolID, call.Callee, model.NodeTypeFunction)
		g.AddEdge(&model.GraphEdge{
			From:     callerID,
			To:       calleeID,
			Type:     model.EdgeTypeCalls,
			Metadata: map[string]string{"line": strconv.Itoa(call.Line)},
		})
	}
}

func resolveOrPlaceholder(symbolID map[string]string, name string, placeholderType model.NodeType) string {
	if id, ok := symbolID[name]; ok {
		return id
	}
	return PlaceholderNodeID(placeholderType, name)
}
