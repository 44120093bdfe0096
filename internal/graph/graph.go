// Package graph implements the typed knowledge-graph multigraph: symbols,
// files, and modules as nodes; calls/contains/extends/implements/imports/
// exports/references/uses as edges. It is derived strictly from a
// model.ProjectIndex and rebuilt whenever that index's generation advances
// — nodes reference files and symbols only by id/string, never by Go
// pointer into the index.
//
// Connectivity is split between two structures. The structural layer is a
// github.com/dominikbraun/graph directed graph: its AdjacencyMap and
// PredecessorMap drive every neighborhood traversal, and its ShortestPath
// answers FindPath. Because that library models at most one edge per
// (source, target) pair, the typed layer — outEdges/inEdges lists keyed by
// endpoint — carries the edge records themselves, so two distinct
// relationship types between the same pair of nodes, e.g. both "calls" and
// "references", are never collapsed into one. Traversals discover node
// pairs structurally, then resolve each pair against the typed layer.
package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	dgraph "github.com/dominikbraun/graph"

	"github.com/unicore-dev/uce/internal/model"
)

// Direction constrains which edges FindRelated walks from a node.
type Direction string

const (
	DirOutgoing Direction = "outgoing"
	DirIncoming Direction = "incoming"
	DirBoth     Direction = "both"
)

// Graph is the queryable knowledge graph. Safe for concurrent use.
type Graph struct {
	mu sync.RWMutex

	g     dgraph.Graph[string, string]
	nodes map[string]*model.GraphNode

	// outEdges[src] and inEdges[dst] index edges by endpoint, preserving
	// every edge type even when several connect the same pair of nodes.
	outEdges map[string][]*model.GraphEdge
	inEdges  map[string][]*model.GraphEdge

	dirty atomic.Bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		g:        dgraph.New(dgraph.StringHash, dgraph.Directed()),
		nodes:    make(map[string]*model.GraphNode),
		outEdges: make(map[string][]*model.GraphEdge),
		inEdges:  make(map[string][]*model.GraphEdge),
	}
}

// FileNodeID returns the node id for a file: "file:<path>".
func FileNodeID(path string) string {
	return "file:" + path
}

// SymbolNodeID returns the node id for a located symbol:
// "<type>:<path>:<name>:<line>".
func SymbolNodeID(nodeType model.NodeType, path, name string, line int) string {
	return fmt.Sprintf("%s:%s:%s:%d", nodeType, path, name, line)
}

// PlaceholderNodeID returns the node id for a symbol referenced before it
// is defined: "<type>:<name>".
func PlaceholderNodeID(nodeType model.NodeType, name string) string {
	return fmt.Sprintf("%s:%s", nodeType, name)
}

func (g *Graph) ensureVertex(id string) {
	// AddVertex's only failure mode is ErrVertexAlreadyExists, which is
	// exactly the state ensureVertex wants.
	_ = g.g.AddVertex(id)
}

// AddNode inserts or replaces a node. A placeholder is replaced (not
// duplicated) when the authoritative node is later added: existing
// in/out edges referencing the id are left untouched, so reachability is
// unaffected by the swap.
func (g *Graph) AddNode(node *model.GraphNode) {
	if node == nil || node.ID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.nodes[node.ID]; ok && !existing.Placeholder && node.Placeholder {
		// Never let a placeholder clobber an authoritative node.
		return
	}
	g.nodes[node.ID] = node
	g.ensureVertex(node.ID)
	g.dirty.Store(true)
}

// GetNode returns the node with the given id, or nil if absent.
func (g *Graph) GetNode(id string) *model.GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id]
}

// AddEdge inserts a directed, typed edge, creating placeholder nodes for
// either endpoint if they don't exist yet. Multiple edges between the
// same pair (different types, or repeated call sites) are all kept.
func (g *Graph) AddEdge(edge *model.GraphEdge) {
	if edge == nil || edge.From == "" || edge.To == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[edge.From]; !ok {
		g.nodes[edge.From] = &model.GraphNode{ID: edge.From, Placeholder: true}
		g.ensureVertex(edge.From)
	}
	if _, ok := g.nodes[edge.To]; !ok {
		g.nodes[edge.To] = &model.GraphNode{ID: edge.To, Placeholder: true}
		g.ensureVertex(edge.To)
	}

	if edge.ID == "" {
		edge.ID = fmt.Sprintf("%s->%s:%s:%d", edge.From, edge.To, edge.Type, len(g.outEdges[edge.From]))
	}

	// Unit weight so ShortestPath minimizes hop count. A second edge
	// between the same pair only extends the typed lists; the structural
	// pair already exists.
	if err := g.g.AddEdge(edge.From, edge.To, dgraph.EdgeWeight(1)); err != nil && err != dgraph.ErrEdgeAlreadyExists {
		return
	}

	g.outEdges[edge.From] = append(g.outEdges[edge.From], edge)
	g.inEdges[edge.To] = append(g.inEdges[edge.To], edge)
	g.dirty.Store(true)
}

// MarkDirty flags the graph as stale relative to the ProjectIndex it was
// built from. Consulted by the retriever/indexer before serving a query.
func (g *Graph) MarkDirty() { g.dirty.Store(true) }

// Dirty reports whether the graph needs rebuilding from the current
// ProjectIndex generation.
func (g *Graph) Dirty() bool { return g.dirty.Load() }

// ClearDirty resets the dirty flag after a rebuild completes.
func (g *Graph) ClearDirty() { g.dirty.Store(false) }

// NodeFilter narrows FindNodes results. Zero-value fields are wildcards.
type NodeFilter struct {
	Type      model.NodeType
	Name      string
	NameRegex bool
	FilePath  string
	Exported  *bool
}

// FindNodes returns every node matching filter, in ascending id order for
// reproducibility.
func (g *Graph) FindNodes(filter NodeFilter) []*model.GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var re *regexp.Regexp
	if filter.NameRegex && filter.Name != "" {
		re, _ = regexp.Compile(filter.Name)
	}

	var out []*model.GraphNode
	for _, n := range g.nodes {
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.FilePath != "" && n.FilePath != filter.FilePath {
			continue
		}
		if filter.Exported != nil && n.Exported != *filter.Exported {
			continue
		}
		if filter.Name != "" {
			if re != nil {
				if !re.MatchString(n.Name) {
					continue
				}
			} else if !strings.Contains(n.Name, filter.Name) {
				continue
			}
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// edgesFrom returns the edges leaving id, applying an optional type
// allow-list.
func (g *Graph) edgesFrom(id string, types map[model.EdgeType]bool) []*model.GraphEdge {
	var out []*model.GraphEdge
	for _, e := range g.outEdges[id] {
		if types == nil || types[e.Type] {
			out = append(out, e)
		}
	}
	return out
}

func (g *Graph) edgesTo(id string, types map[model.EdgeType]bool) []*model.GraphEdge {
	var out []*model.GraphEdge
	for _, e := range g.inEdges[id] {
		if types == nil || types[e.Type] {
			out = append(out, e)
		}
	}
	return out
}

func typeSet(types []model.EdgeType) map[model.EdgeType]bool {
	if len(types) == 0 {
		return nil
	}
	m := make(map[model.EdgeType]bool, len(types))
	for _, t := range types {
		m[t] = true
	}
	return m
}

// neighborKeys returns a structural neighbor set's ids in ascending order,
// so traversal order is deterministic despite map iteration.
func neighborKeys(m map[string]dgraph.Edge[string]) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// typedEdgesWith resolves one structural (node, neighbor) pair against an
// endpoint's typed edge list: edges is outEdges[node] when outgoing,
// inEdges[node] otherwise, and the far endpoint must be neighbor.
func typedEdgesWith(edges []*model.GraphEdge, neighbor string, outgoing bool, types map[model.EdgeType]bool) []*model.GraphEdge {
	var out []*model.GraphEdge
	for _, e := range edges {
		far := e.To
		if !outgoing {
			far = e.From
		}
		if far != neighbor {
			continue
		}
		if types != nil && !types[e.Type] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// RelatedOptions bounds a FindRelated traversal.
type RelatedOptions struct {
	MaxDepth  int
	EdgeTypes []model.EdgeType
	Direction Direction
}

// RelatedResult is the bounded neighborhood discovered by FindRelated.
type RelatedResult struct {
	Nodes []*model.GraphNode
	Edges []*model.GraphEdge
	Paths map[string][]string
}

// FindRelated performs a bounded BFS from nodeID, following edges of the
// given types (all types if empty) in the given direction (both if
// unset), up to MaxDepth hops (default 2).
func (g *Graph) FindRelated(nodeID string, opts RelatedOptions) (*RelatedResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("graph: node %q not found", nodeID)
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 2
	}
	direction := opts.Direction
	if direction == "" {
		direction = DirBoth
	}
	types := typeSet(opts.EdgeTypes)

	// Structural neighborhoods come from the directed graph; each
	// discovered pair is then resolved against the typed edge lists.
	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return nil, fmt.Errorf("graph: adjacency map: %w", err)
	}
	var pred map[string]map[string]dgraph.Edge[string]
	if direction == DirIncoming || direction == DirBoth {
		if pred, err = g.g.PredecessorMap(); err != nil {
			return nil, fmt.Errorf("graph: predecessor map: %w", err)
		}
	}

	visited := map[string]int{nodeID: 0}
	paths := map[string][]string{nodeID: {nodeID}}
	queue := []string{nodeID}

	var resultNodes []*model.GraphNode
	var resultEdges []*model.GraphEdge
	seenEdge := make(map[string]bool)

	type hop struct {
		next  string
		edges []*model.GraphEdge
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		depth := visited[cur]
		if depth >= maxDepth {
			continue
		}

		var hops []hop
		if direction == DirOutgoing || direction == DirBoth {
			for _, next := range neighborKeys(adj[cur]) {
				if es := typedEdgesWith(g.outEdges[cur], next, true, types); len(es) > 0 {
					hops = append(hops, hop{next: next, edges: es})
				}
			}
		}
		if direction == DirIncoming || direction == DirBoth {
			for _, next := range neighborKeys(pred[cur]) {
				if es := typedEdgesWith(g.inEdges[cur], next, false, types); len(es) > 0 {
					hops = append(hops, hop{next: next, edges: es})
				}
			}
		}

		for _, h := range hops {
			for _, e := range h.edges {
				if !seenEdge[e.ID] {
					seenEdge[e.ID] = true
					resultEdges = append(resultEdges, e)
				}
			}
			if _, ok := visited[h.next]; ok {
				continue
			}
			visited[h.next] = depth + 1
			p := append(append([]string(nil), paths[cur]...), h.next)
			paths[h.next] = p
			if node, ok := g.nodes[h.next]; ok {
				resultNodes = append(resultNodes, node)
			}
			queue = append(queue, h.next)
		}
	}

	sort.Slice(resultNodes, func(i, j int) bool { return resultNodes[i].ID < resultNodes[j].ID })
	sort.Slice(resultEdges, func(i, j int) bool { return resultEdges[i].ID < resultEdges[j].ID })

	return &RelatedResult{Nodes: resultNodes, Edges: resultEdges, Paths: paths}, nil
}

// PathOptions bounds a FindPath search.
type PathOptions struct {
	MaxDepth int
}

// FindPath returns the shortest node-id path from source to target over
// all edge types, or nil if none exists within MaxDepth hops. The search
// itself is the structural graph's shortest-path (every edge carries unit
// weight, so it minimizes hop count); a shortest path longer than
// MaxDepth means no path fits the bound.
func (g *Graph) FindPath(source, target string, opts PathOptions) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[source]; !ok {
		return nil, fmt.Errorf("graph: source %q not found", source)
	}
	if _, ok := g.nodes[target]; !ok {
		return nil, fmt.Errorf("graph: target %q not found", target)
	}
	if source == target {
		return []string{source}, nil
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 10
	}

	path, err := dgraph.ShortestPath(g.g, source, target)
	if err != nil || len(path) == 0 {
		// Target not reachable at all.
		return nil, nil
	}
	if len(path)-1 > maxDepth {
		return nil, nil
	}
	return path, nil
}

// GetCallers returns the one-hop set of nodes with a "calls" edge into
// nodeID: structural predecessors, kept only when a typed calls edge
// backs the pair.
func (g *Graph) GetCallers(nodeID string) []*model.GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	pred, err := g.g.PredecessorMap()
	if err != nil {
		return nil
	}
	return g.neighborNodesByType(pred[nodeID], g.inEdges[nodeID], false, model.EdgeTypeCalls)
}

// GetCallees returns the one-hop set of nodes nodeID has a "calls" edge
// to: structural successors, kept only when a typed calls edge backs the
// pair.
func (g *Graph) GetCallees(nodeID string) []*model.GraphNode {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adj, err := g.g.AdjacencyMap()
	if err != nil {
		return nil
	}
	return g.neighborNodesByType(adj[nodeID], g.outEdges[nodeID], true, model.EdgeTypeCalls)
}

// neighborNodesByType resolves a structural neighbor set to nodes whose
// pair is backed by at least one typed edge of the given type, in
// ascending id order.
func (g *Graph) neighborNodesByType(neighbors map[string]dgraph.Edge[string], edges []*model.GraphEdge, outgoing bool, t model.EdgeType) []*model.GraphNode {
	types := typeSet([]model.EdgeType{t})
	var out []*model.GraphNode
	for _, id := range neighborKeys(neighbors) {
		if len(typedEdgesWith(edges, id, outgoing, types)) == 0 {
			continue
		}
		if n, ok := g.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// InheritanceDirection selects which way GetInheritanceChain walks.
type InheritanceDirection string

const (
	InheritanceUp   InheritanceDirection = "up"
	InheritanceDown InheritanceDirection = "down"
)

// GetInheritanceChain walks extends/implements edges from nodeID: "up"
// follows outgoing edges (nodeID's ancestors), "down" follows incoming
// edges (nodeID's descendants). The returned list is in traversal order,
// nearest first, and excludes nodeID itself.
func (g *Graph) GetInheritanceChain(nodeID string, direction InheritanceDirection) ([]*model.GraphNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[nodeID]; !ok {
		return nil, fmt.Errorf("graph: node %q not found", nodeID)
	}

	types := typeSet([]model.EdgeType{model.EdgeTypeExtends, model.EdgeTypeImplements})
	var chain []*model.GraphNode
	visited := map[string]bool{nodeID: true}
	cur := nodeID

	for {
		var next string
		if direction == InheritanceDown {
			edges := g.edgesTo(cur, types)
			if len(edges) == 0 {
				break
			}
			next = edges[0].From
		} else {
			edges := g.edgesFrom(cur, types)
			if len(edges) == 0 {
				break
			}
			next = edges[0].To
		}
		if visited[next] {
			// extends cycle: a source bug, recorded not looped.
			break
		}
		visited[next] = true
		if node, ok := g.nodes[next]; ok {
			chain = append(chain, node)
		}
		cur = next
	}
	return chain, nil
}
