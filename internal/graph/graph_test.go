package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unicore-dev/uce/internal/model"
)

func buildInheritanceGraph() *Graph {
	g := New()
	animal := &model.GraphNode{ID: "class:a.go:Animal:1", Type: model.NodeTypeClass, Name: "Animal"}
	mammal := &model.GraphNode{ID: "class:a.go:Mammal:5", Type: model.NodeTypeClass, Name: "Mammal"}
	dog := &model.GraphNode{ID: "class:a.go:Dog:9", Type: model.NodeTypeClass, Name: "Dog"}
	g.AddNode(animal)
	g.AddNode(mammal)
	g.AddNode(dog)
	g.AddEdge(&model.GraphEdge{From: mammal.ID, To: animal.ID, Type: model.EdgeTypeExtends})
	g.AddEdge(&model.GraphEdge{From: dog.ID, To: mammal.ID, Type: model.EdgeTypeExtends})
	return g
}

func TestGetInheritanceChain_Up(t *testing.T) {
	g := buildInheritanceGraph()
	chain, err := g.GetInheritanceChain("class:a.go:Dog:9", InheritanceUp)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "Mammal", chain[0].Name)
	assert.Equal(t, "Animal", chain[1].Name)
}

func TestFindPath_RespectsMaxDepth(t *testing.T) {
	g := buildInheritanceGraph()

	path, err := g.FindPath("class:a.go:Dog:9", "class:a.go:Animal:1", PathOptions{MaxDepth: 1})
	require.NoError(t, err)
	assert.Nil(t, path)

	path, err = g.FindPath("class:a.go:Dog:9", "class:a.go:Animal:1", PathOptions{MaxDepth: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"class:a.go:Dog:9", "class:a.go:Mammal:5", "class:a.go:Animal:1"}, path)
}

func TestAddEdge_CreatesPlaceholderThenReplaced(t *testing.T) {
	g := New()
	caller := &model.GraphNode{ID: "function:a.go:main:1", Type: model.NodeTypeFunction, Name: "main"}
	g.AddNode(caller)
	g.AddEdge(&model.GraphEdge{From: caller.ID, To: PlaceholderNodeID(model.NodeTypeFunction, "helper"), Type: model.EdgeTypeCalls})

	placeholder := g.GetNode(PlaceholderNodeID(model.NodeTypeFunction, "helper"))
	require.NotNil(t, placeholder)
	assert.True(t, placeholder.Placeholder)

	// The authoritative symbol shows up later under the same id.
	real := &model.GraphNode{ID: PlaceholderNodeID(model.NodeTypeFunction, "helper"), Type: model.NodeTypeFunction, Name: "helper"}
	g.AddNode(real)

	resolved := g.GetNode(real.ID)
	assert.False(t, resolved.Placeholder)

	callees := g.GetCallees(caller.ID)
	require.Len(t, callees, 1)
	assert.Equal(t, "helper", callees[0].Name)
}

func TestGetCallersAndCallees(t *testing.T) {
	g := New()
	a := &model.GraphNode{ID: "function:a.go:a:1", Name: "a"}
	b := &model.GraphNode{ID: "function:a.go:b:2", Name: "b"}
	g.AddNode(a)
	g.AddNode(b)
	g.AddEdge(&model.GraphEdge{From: a.ID, To: b.ID, Type: model.EdgeTypeCalls})

	callers := g.GetCallers(b.ID)
	require.Len(t, callers, 1)
	assert.Equal(t, "a", callers[0].Name)

	callees := g.GetCallees(a.ID)
	require.Len(t, callees, 1)
	assert.Equal(t, "b", callees[0].Name)
}

func TestFindRelated_BoundsDepthAndFiltersEdgeType(t *testing.T) {
	g := New()
	a := &model.GraphNode{ID: "a"}
	b := &model.GraphNode{ID: "b"}
	c := &model.GraphNode{ID: "c"}
	g.AddNode(a)
	g.AddNode(b)
	g.AddNode(c)
	g.AddEdge(&model.GraphEdge{From: "a", To: "b", Type: model.EdgeTypeCalls})
	g.AddEdge(&model.GraphEdge{From: "b", To: "c", Type: model.EdgeTypeCalls})
	g.AddEdge(&model.GraphEdge{From: "a", To: "c", Type: model.EdgeTypeReferences})

	related, err := g.FindRelated("a", RelatedOptions{MaxDepth: 1, EdgeTypes: []model.EdgeType{model.EdgeTypeCalls}, Direction: DirOutgoing})
	require.NoError(t, err)
	require.Len(t, related.Nodes, 1)
	assert.Equal(t, "b", related.Nodes[0].ID)
}

func TestJSONRoundTrip(t *testing.T) {
	g := buildInheritanceGraph()
	data, err := g.ToJSON()
	require.NoError(t, err)

	restored := New()
	require.NoError(t, restored.FromJSON(data))

	chain, err := restored.GetInheritanceChain("class:a.go:Dog:9", InheritanceUp)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "Mammal", chain[0].Name)
}

func TestBuilder_BuildsFromProjectIndex(t *testing.T) {
	idx := model.NewProjectIndex("demo", "/repo")
	idx.Files["src/animal.go"] = &model.FileIndex{
		Path: "src/animal.go",
		Symbols: []*model.Symbol{
			{Name: "Animal", Kind: model.SymbolKindClass, StartLine: 1, Exported: true},
		},
	}
	idx.Files["src/dog.go"] = &model.FileIndex{
		Path: "src/dog.go",
		Symbols: []*model.Symbol{
			{Name: "Dog", Kind: model.SymbolKindClass, StartLine: 1, Exported: true, Extends: []string{"Animal"}},
		},
	}

	g := NewBuilder().Build(idx)
	fileNode := g.GetNode(FileNodeID("src/dog.go"))
	require.NotNil(t, fileNode)

	nodes := g.FindNodes(NodeFilter{Type: model.NodeTypeClass})
	require.Len(t, nodes, 2)
}
