package service

import (
	"math"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
)

type ChangeType string

const (
	ChangePosition   ChangeType = "position"
	ChangeSelect     ChangeType = "select"
	ChangeRemove     ChangeType = "remove"
	ChangeDimensions ChangeType = "dimensions"
	ChangeAdd        ChangeType = "add"
	ChangeReplace    ChangeType = "replace"
)

// NodeChange is one incremental visual change reported by the canvas.
type NodeChange struct {
	Type     ChangeType       `json:"type" validate:"required,oneof=position select remove dimensions add replace"`
	ID       string           `json:"id"`
	Position *models.Position `json:"position,omitempty"`
	Dragging bool             `json:"dragging,omitempty"`
	Selected bool             `json:"selected,omitempty"`
	Item     *models.Node     `json:"item,omitempty"`
}

type EdgeChange struct {
	Type     ChangeType   `json:"type" validate:"required,oneof=select remove add replace"`
	ID       string       `json:"id"`
	Selected bool         `json:"selected,omitempty"`
	Item     *models.Edge `json:"item,omitempty"`
}

// ApplyNodeChanges applies a batch of canvas changes. Any batch clears the error signal,
// since a move or removal can invalidate a previously detected cycle.
func (slf *GraphService) ApplyNodeChanges(changes []NodeChange) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.errorNodeID = ""
	removed := make(map[string]bool)
	for _, c := range changes {
		switch c.Type {
		case ChangeRemove:
			removed[c.ID] = true
		case ChangeAdd:
			if c.Item != nil {
				slf.nodes = append(slf.nodes, c.Item.Clone())
			}
		default:
			idx := slf.nodeIndex(c.ID)
			if idx < 0 {
				continue
			}
			slf.applyNodeChange(idx, c)
		}
	}
	if len(removed) > 0 {
		slf.removeNodes(removed)
	}
	slf.changed()
}

func (slf *GraphService) applyNodeChange(idx int, c NodeChange) {
	node := &slf.nodes[idx]
	switch c.Type {
	case ChangePosition:
		if c.Position == nil {
			return
		}
		if !finite(c.Position.X) || !finite(c.Position.Y) {
			slf.logger.Warn().Str("nodeId", c.ID).Msg("Ignoring non-finite node position")
			return
		}
		node.Position = *c.Position
	case ChangeSelect:
		node.Selected = c.Selected
	case ChangeReplace:
		if c.Item != nil {
			*node = c.Item.Clone()
		}
	case ChangeDimensions:
		// measured size belongs to the canvas
	}
}

func (slf *GraphService) ApplyEdgeChanges(changes []EdgeChange) {
	slf.mu.Lock()
	defer slf.mu.Unlock()

	slf.errorNodeID = ""
	for _, c := range changes {
		switch c.Type {
		case ChangeRemove:
			for i := range slf.edges {
				if slf.edges[i].ID == c.ID {
					slf.edges = append(slf.edges[:i], slf.edges[i+1:]...)
					break
				}
			}
		case ChangeAdd:
			if c.Item != nil && slf.nodeIndex(c.Item.Source) >= 0 && slf.nodeIndex(c.Item.Target) >= 0 {
				slf.edges = append(slf.edges, c.Item.Clone())
			}
		case ChangeSelect, ChangeReplace:
			for i := range slf.edges {
				if slf.edges[i].ID != c.ID {
					continue
				}
				if c.Type == ChangeSelect {
					slf.edges[i].Selected = c.Selected
				} else if c.Item != nil {
					slf.edges[i] = c.Item.Clone()
				}
				break
			}
		}
	}
	slf.changed()
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
