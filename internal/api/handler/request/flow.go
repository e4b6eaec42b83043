package request

import "github.com/Dipanshuofficial/Flow/internal/api/models"

// DropRequest carries the raw drag payload and the drop point already projected
// into graph coordinates.
type DropRequest struct {
	Payload  string          `json:"payload" validate:"required"`
	Position models.Position `json:"position"`
}

type AddNodeRequest struct {
	Type     models.NodeType `json:"type" validate:"required"`
	Position models.Position `json:"position"`
	// Data overrides the defaults of the new node, field by field.
	Data map[string]any `json:"data"`
}

type UpdateFieldRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

type EdgeLabelRequest struct {
	Label string `json:"label"`
}

type EdgeAnimationRequest struct {
	Animated *bool `json:"animated" validate:"required"`
}

type ErrorNodeRequest struct {
	NodeID string `json:"nodeId"`
}

type ViewportRequest struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom" validate:"gt=0"`
}
