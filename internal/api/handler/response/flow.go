package response

import (
	"github.com/Dipanshuofficial/Flow/internal/api/models"
	"github.com/Dipanshuofficial/Flow/internal/api/service"
)

// NodeResponse is a node as the canvas renders it, with its derived ports.
type NodeResponse struct {
	models.Node
	Ports []models.Port `json:"ports"`
}

// MarshalJSON keeps the node wire shape and appends the ports.
func (slf NodeResponse) MarshalJSON() ([]byte, error) {
	return marshalWithPorts(slf.Node, slf.Ports)
}

type GraphResponse struct {
	Nodes       []NodeResponse   `json:"nodes"`
	Edges       []models.Edge    `json:"edges"`
	Viewport    *models.Viewport `json:"viewport,omitempty"`
	ErrorNodeID string           `json:"errorNodeId,omitempty"`
}

func NewGraphResponse(st service.GraphState) GraphResponse {
	nodes := make([]NodeResponse, 0, len(st.Nodes))
	for _, n := range st.Nodes {
		nodes = append(nodes, NewNodeResponse(n))
	}
	edges := st.Edges
	if edges == nil {
		edges = []models.Edge{}
	}
	return GraphResponse{
		Nodes:       nodes,
		Edges:       edges,
		Viewport:    st.Viewport,
		ErrorNodeID: st.ErrorNodeID,
	}
}

func NewNodeResponse(n models.Node) NodeResponse {
	return NodeResponse{Node: n, Ports: models.PortsFor(n)}
}

type IDResponse struct {
	ID string `json:"id"`
}

type ValidationResponse struct {
	Valid       bool          `json:"valid"`
	ErrorNodeID string        `json:"errorNodeId,omitempty"`
	Phase       service.Phase `json:"phase"`
}
