package graph

import (
	"encoding/json"

	"github.com/unicore-dev/uce/internal/model"
)

// snapshot is the on-disk shape of graph.json: {nodes: [...], edges: [...]}.
type snapshot struct {
	Nodes []*nodeJSON `json:"nodes"`
	Edges []*edgeJSON `json:"edges"`
}

// ToJSON serializes every node and edge currently in the graph.
func (g *Graph) ToJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := snapshot{
		Nodes: make([]*nodeJSON, 0, len(g.nodes)),
		Edges: make([]*edgeJSON, 0),
	}
	for _, n := range g.nodes {
		snap.Nodes = append(snap.Nodes, toNodeJSON(n))
	}
	seen := make(map[string]bool)
	for _, edges := range g.outEdges {
		for _, e := range edges {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			snap.Edges = append(snap.Edges, toEdgeJSON(e))
		}
	}
	return json.Marshal(snap)
}

// FromJSON replaces the graph's contents with a previously serialized
// snapshot.
func (g *Graph) FromJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	fresh := New()
	for _, n := range snap.Nodes {
		fresh.AddNode(fromNodeJSON(n))
	}
	for _, e := range snap.Edges {
		fresh.AddEdge(fromEdgeJSON(e))
	}
	fresh.ClearDirty()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.g = fresh.g
	g.nodes = fresh.nodes
	g.outEdges = fresh.outEdges
	g.inEdges = fresh.inEdges
	g.dirty.Store(false)
	return nil
}

// nodeJSON/edgeJSON mirror model.GraphNode/GraphEdge exactly; they exist
// as a seam so a later wire-format change doesn't have to touch the
// in-memory model types.
type nodeJSON = jsonNode
type edgeJSON = jsonEdge

type jsonNode struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Name        string            `json:"name"`
	FilePath    string            `json:"file_path,omitempty"`
	Line        int               `json:"line,omitempty"`
	Exported    bool              `json:"exported,omitempty"`
	Doc         string            `json:"doc,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Placeholder bool              `json:"placeholder,omitempty"`
}

type jsonEdge struct {
	ID       string            `json:"id"`
	From     string            `json:"from"`
	To       string            `json:"to"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func toNodeJSON(n *model.GraphNode) *jsonNode {
	return &jsonNode{
		ID: n.ID, Type: string(n.Type), Name: n.Name, FilePath: n.FilePath,
		Line: n.Line, Exported: n.Exported, Doc: n.Doc, Metadata: n.Metadata,
		Placeholder: n.Placeholder,
	}
}

func fromNodeJSON(n *jsonNode) *model.GraphNode {
	return &model.GraphNode{
		ID: n.ID, Type: model.NodeType(n.Type), Name: n.Name, FilePath: n.FilePath,
		Line: n.Line, Exported: n.Exported, Doc: n.Doc, Metadata: n.Metadata,
		Placeholder: n.Placeholder,
	}
}

func toEdgeJSON(e *model.GraphEdge) *jsonEdge {
	return &jsonEdge{ID: e.ID, From: e.From, To: e.To, Type: string(e.Type), Metadata: e.Metadata}
}

func fromEdgeJSON(e *jsonEdge) *model.GraphEdge {
	return &model.GraphEdge{ID: e.ID, From: e.From, To: e.To, Type: model.EdgeType(e.Type), Metadata: e.Metadata}
}
