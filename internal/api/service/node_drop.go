package service

import (
	"encoding/json"
	"strings"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
)

// dropDescriptor is what the palette serializes into the drag payload.
type dropDescriptor struct {
	NodeType string `json:"nodeType"`
	Type     string `json:"type"`
}

// ParseDropPayload extracts the node type from a drag payload. The payload is normally a
// JSON descriptor but a bare type string is accepted as well. Unknown types are rejected.
func ParseDropPayload(raw string) (models.NodeType, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	name := raw
	var desc dropDescriptor
	if err := json.Unmarshal([]byte(raw), &desc); err == nil {
		switch {
		case desc.NodeType != "":
			name = desc.NodeType
		case desc.Type != "":
			name = desc.Type
		}
	}

	t := models.NodeType(name)
	if !t.Valid() {
		return "", false
	}
	return t, true
}

// Drop instantiates a node from a palette drop at a position already in graph space.
// Unrecognized payloads are ignored without creating anything.
func (slf *GraphService) Drop(payload string, at models.Position) (models.Node, bool) {
	t, ok := ParseDropPayload(payload)
	if !ok {
		slf.logger.Debug().Str("payload", payload).Msg("Ignoring unrecognized drop payload")
		return models.Node{}, false
	}
	if !finite(at.X) || !finite(at.Y) {
		return models.Node{}, false
	}

	id := slf.AllocateID(t)
	node := models.Node{
		ID:       id,
		Type:     t,
		Position: at,
		Data:     models.NewNodeData(t, id),
	}
	slf.AddNode(node)
	return node, true
}
