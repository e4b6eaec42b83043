package models

const (
	PrimaryColor   = "#FA8112"
	AlternateColor = "#3b82f6"

	EdgeTypeCustom   = "custom"
	MarkerArrowClose = "arrowclosed"
	DefaultStroke    = 2
)

type EdgeStyle struct {
	Stroke      string `json:"stroke,omitempty"`
	StrokeWidth int    `json:"strokeWidth,omitempty"`
}

type EdgeMarker struct {
	Type   string `json:"type"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Color  string `json:"color,omitempty"`
}

type EdgeData struct {
	Label string `json:"label"`
}

// Edge is a directed connection between a source port and a target port.
type Edge struct {
	ID           string      `json:"id"`
	Source       string      `json:"source"`
	Target       string      `json:"target"`
	SourceHandle string      `json:"sourceHandle,omitempty"`
	TargetHandle string      `json:"targetHandle,omitempty"`
	Type         string      `json:"type,omitempty"`
	Animated     bool        `json:"animated"`
	Selected     bool        `json:"selected,omitempty"`
	Style        EdgeStyle   `json:"style"`
	MarkerEnd    *EdgeMarker `json:"markerEnd,omitempty"`
	Data         EdgeData    `json:"data"`
}

// Connection is what the canvas reports when the user drags from one port to another.
type Connection struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// StrokeFor returns the stroke color paired with an animation state.
func StrokeFor(animated bool) string {
	if animated {
		return AlternateColor
	}
	return PrimaryColor
}

// NewEdge builds an edge with the default static style for a fresh connection.
func NewEdge(id string, c Connection) Edge {
	return Edge{
		ID:           id,
		Source:       c.Source,
		Target:       c.Target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
		Type:         EdgeTypeCustom,
		Animated:     false,
		Style:        EdgeStyle{Stroke: PrimaryColor, StrokeWidth: DefaultStroke},
		MarkerEnd:    &EdgeMarker{Type: MarkerArrowClose, Width: 20, Height: 20, Color: PrimaryColor},
		Data:         EdgeData{Label: ""},
	}
}

// Touches reports whether the edge starts or ends at nodeID.
func (slf Edge) Touches(nodeID string) bool {
	return slf.Source == nodeID || slf.Target == nodeID
}

// Matches reports whether the edge already represents the connection c.
func (slf Edge) Matches(c Connection) bool {
	return slf.Source == c.Source && slf.Target == c.Target &&
		slf.SourceHandle == c.SourceHandle && slf.TargetHandle == c.TargetHandle
}

func (slf Edge) Clone() Edge {
	out := slf
	if slf.MarkerEnd != nil {
		m := *slf.MarkerEnd
		out.MarkerEnd = &m
	}
	return out
}
