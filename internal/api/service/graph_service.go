package service

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
)

// GraphState is a consistent copy of the graph handed to readers and observers.
type GraphState struct {
	Nodes       []models.Node    `json:"nodes"`
	Edges       []models.Edge    `json:"edges"`
	Viewport    *models.Viewport `json:"viewport,omitempty"`
	ErrorNodeID string           `json:"errorNodeId,omitempty"`
}

// Pipeline returns the nodes and edges in the shape the exporter expects.
func (slf GraphState) Pipeline() models.Pipeline {
	return models.Pipeline{Nodes: slf.Nodes, Edges: slf.Edges}
}

// Persister receives explicit persistence requests from destructive mutations.
type Persister interface {
	Persist(state GraphState)
}

type GraphOption func(*GraphService)

// WithObserver registers a callback fired after every mutation with the resulting state.
// Observers run while mutations are serialized and must not call back into the service.
func WithObserver(fn func(GraphState)) GraphOption {
	return func(slf *GraphService) { slf.observers = append(slf.observers, fn) }
}

func WithPersister(p Persister) GraphOption {
	return func(slf *GraphService) { slf.persister = p }
}

func WithGraphLogger(logger zerolog.Logger) GraphOption {
	return func(slf *GraphService) { slf.logger = logger }
}

// WithSnapshot seeds the graph from a restored session.
func WithSnapshot(s *models.Snapshot) GraphOption {
	return func(slf *GraphService) {
		if s == nil {
			return
		}
		slf.nodes = cloneNodes(s.Nodes)
		slf.edges = cloneEdges(s.Edges)
		if s.Viewport != nil {
			v := *s.Viewport
			slf.viewport = &v
		}
		slf.primeIDs()
	}
}

// WithEdgeIDs overrides the edge id generator used by Connect.
func WithEdgeIDs(next func() string) GraphOption {
	return func(slf *GraphService) { slf.newEdgeID = next }
}

// GraphService is the single source of truth for the session graph.
// Every mutation runs to completion under mu before the next one starts.
type GraphService struct {
	mu          sync.Mutex
	nodes       []models.Node
	edges       []models.Edge
	viewport    *models.Viewport
	nodeIDs     map[models.NodeType]int
	errorNodeID string

	observers []func(GraphState)
	persister Persister
	newEdgeID func() string
	logger    zerolog.Logger
}

func NewGraphService(opts ...GraphOption) *GraphService {
	slf := &GraphService{
		nodes:     []models.Node{},
		edges:     []models.Edge{},
		nodeIDs:   make(map[models.NodeType]int),
		newEdgeID: uuid.NewString,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(slf)
	}
	return slf
}

// primeIDs raises each type counter to the highest ordinal already present,
// so ids allocated after a restore never collide with restored nodes.
func (slf *GraphService) primeIDs() {
	for _, n := range slf.nodes {
		t, ord, ok := models.ParseNodeID(n.ID)
		if !ok {
			continue
		}
		if ord > slf.nodeIDs[t] {
			slf.nodeIDs[t] = ord
		}
	}
}

// AllocateID returns the next id for t in the form <type>-<n>. Ordinals are never reused.
func (slf *GraphService) AllocateID(t models.NodeType) string {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.nodeIDs[t]++
	id := models.FormatNodeID(t, slf.nodeIDs[t])
	slf.changed()
	return id
}

// AddNode appends node. Ids are not checked for duplicates; callers use AllocateID.
func (slf *GraphService) AddNode(node models.Node) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	if node.Data == nil {
		node.Data = models.NewNodeData(node.Type, node.ID)
	}
	slf.nodes = append(slf.nodes, node.Clone())
	slf.errorNodeID = ""
	slf.logger.Debug().Str("nodeId", node.ID).Str("type", string(node.Type)).Msg("Node added")
	slf.changed()
}

// DeleteNode removes the node and every edge touching it, then requests a save.
func (slf *GraphService) DeleteNode(id string) string {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	removed := slf.removeNodes(map[string]bool{id: true})
	slf.errorNodeID = ""
	slf.logger.Info().Str("nodeId", id).Int("edgesRemoved", removed).Msg("Node deleted")
	slf.persist()
	slf.changed()
	return fmt.Sprintf("Node %s and its connections were removed.", id)
}

// ClearAll empties the graph and the id counters, then requests a save.
func (slf *GraphService) ClearAll() {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.nodes = []models.Node{}
	slf.edges = []models.Edge{}
	slf.nodeIDs = make(map[models.NodeType]int)
	slf.errorNodeID = ""
	slf.logger.Info().Msg("Graph cleared")
	slf.persist()
	slf.changed()
}

// Connect adds an edge for c with the default static style. An identical
// existing connection is returned unchanged instead of being duplicated.
// Both endpoints must exist.
func (slf *GraphService) Connect(c models.Connection) (models.Edge, error) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	for _, id := range []string{c.Source, c.Target} {
		if slf.nodeIndex(id) < 0 {
			return models.Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
		}
	}
	slf.errorNodeID = ""
	for _, e := range slf.edges {
		if e.Matches(c) {
			slf.changed()
			return e.Clone(), nil
		}
	}
	edge := models.NewEdge(slf.newEdgeID(), c)
	slf.edges = append(slf.edges, edge)
	slf.logger.Debug().Str("edgeId", edge.ID).Str("source", c.Source).Str("target", c.Target).Msg("Nodes connected")
	slf.changed()
	return edge.Clone(), nil
}

// UpdateNodeField replaces one entry of the node data. Neither field nor value is
// validated; a value that does not fit the typed field is stored as sent.
func (slf *GraphService) UpdateNodeField(id, field string, value any) error {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	idx := slf.nodeIndex(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node := slf.nodes[idx].Clone()
	if node.Data == nil {
		node.Data = models.NewNodeData(node.Type, node.ID)
	}
	node.Data.Set(field, value)
	slf.nodes[idx] = node
	slf.changed()
	return nil
}

func (slf *GraphService) DeleteEdge(id string) error {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	before := len(slf.edges)
	slf.edges = slices.DeleteFunc(slf.edges, func(e models.Edge) bool { return e.ID == id })
	if len(slf.edges) == before {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
	}
	slf.errorNodeID = ""
	slf.changed()
	return nil
}

func (slf *GraphService) UpdateEdgeLabel(id, label string) error {
	return slf.updateEdge(id, func(e *models.Edge) { e.Data.Label = label })
}

// UpdateEdgeAnimation toggles the animation and recolors the stroke with it.
func (slf *GraphService) UpdateEdgeAnimation(id string, animated bool) error {
	return slf.updateEdge(id, func(e *models.Edge) {
		e.Animated = animated
		e.Style.Stroke = models.StrokeFor(animated)
	})
}

func (slf *GraphService) updateEdge(id string, fn func(*models.Edge)) error {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	for i := range slf.edges {
		if slf.edges[i].ID == id {
			fn(&slf.edges[i])
			slf.changed()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrEdgeNotFound, id)
}

// SetErrorNode flags id as structurally invalid. It is the only way to set the signal.
func (slf *GraphService) SetErrorNode(id string) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.errorNodeID = id
	slf.changed()
}

func (slf *GraphService) ClearErrorNode() {
	slf.SetErrorNode("")
}

func (slf *GraphService) SetViewport(v models.Viewport) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.viewport = &v
	slf.changed()
}

func (slf *GraphService) ErrorNodeID() string {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	return slf.errorNodeID
}

func (slf *GraphService) State() GraphState {
	slf.mu.Lock()
	defer slf.mu.Unlock()
	return slf.state()
}

func (slf *GraphService) Node(id string) (models.Node, bool) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	idx := slf.nodeIndex(id)
	if idx < 0 {
		return models.Node{}, false
	}
	return slf.nodes[idx].Clone(), true
}

// Ports returns the connectable ports of a node, derived from its current data.
func (slf *GraphService) Ports(id string) ([]models.Port, error) {
	node, ok := slf.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return models.PortsFor(node), nil
}

func (slf *GraphService) state() GraphState {
	st := GraphState{
		Nodes:       cloneNodes(slf.nodes),
		Edges:       cloneEdges(slf.edges),
		ErrorNodeID: slf.errorNodeID,
	}
	if slf.viewport != nil {
		v := *slf.viewport
		st.Viewport = &v
	}
	return st
}

// removeNodes drops the given nodes and cascades to their edges. Returns the number of edges removed.
func (slf *GraphService) removeNodes(ids map[string]bool) int {
	slf.nodes = slices.DeleteFunc(slf.nodes, func(n models.Node) bool { return ids[n.ID] })
	before := len(slf.edges)
	slf.edges = slices.DeleteFunc(slf.edges, func(e models.Edge) bool {
		for id := range ids {
			if e.Touches(id) {
				return true
			}
		}
		return false
	})
	return before - len(slf.edges)
}

func (slf *GraphService) nodeIndex(id string) int {
	return slices.IndexFunc(slf.nodes, func(n models.Node) bool { return n.ID == id })
}

func (slf *GraphService) persist() {
	if slf.persister != nil {
		slf.persister.Persist(slf.state())
	}
}

func (slf *GraphService) changed() {
	if len(slf.observers) == 0 {
		return
	}
	st := slf.state()
	for _, fn := range slf.observers {
		fn(st)
	}
}

func cloneNodes(in []models.Node) []models.Node {
	out := make([]models.Node, len(in))
	for i, n := range in {
		out[i] = n.Clone()
	}
	return out
}

func cloneEdges(in []models.Edge) []models.Edge {
	out := make([]models.Edge, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}
