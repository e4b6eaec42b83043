package service

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
)

var ErrMalformedSnapshot = errors.New("malformed snapshot")

// SerializeState projects the live graph onto its durable form.
func SerializeState(st GraphState) models.Snapshot {
	s := models.Snapshot{
		Nodes: cloneNodes(st.Nodes),
		Edges: cloneEdges(st.Edges),
	}
	if st.Viewport != nil {
		v := *st.Viewport
		s.Viewport = &v
	}
	return s
}

func EncodeSnapshot(s models.Snapshot) ([]byte, error) {
	if s.Nodes == nil {
		s.Nodes = []models.Node{}
	}
	if s.Edges == nil {
		s.Edges = []models.Edge{}
	}
	return json.Marshal(s)
}

// DecodeSnapshot reads a stored snapshot. Missing nodes or edges decode as empty and a
// malformed viewport is dropped; a document that is not an object, or whose nodes or
// edges cannot be read, is rejected.
func DecodeSnapshot(raw []byte) (*models.Snapshot, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: null document", ErrMalformedSnapshot)
	}

	s := &models.Snapshot{Nodes: []models.Node{}, Edges: []models.Edge{}}
	if err := decodeField(doc, "nodes", &s.Nodes); err != nil {
		return nil, err
	}
	if err := decodeField(doc, "edges", &s.Edges); err != nil {
		return nil, err
	}
	if raw, ok := doc["viewport"]; ok {
		var v models.Viewport
		if json.Unmarshal(raw, &v) == nil && string(raw) != "null" {
			s.Viewport = &v
		}
	}
	if s.Nodes == nil {
		s.Nodes = []models.Node{}
	}
	if s.Edges == nil {
		s.Edges = []models.Edge{}
	}
	return s, nil
}

func decodeField(doc map[string]json.RawMessage, name string, dest any) error {
	raw, ok := doc[name]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedSnapshot, name, err)
	}
	return nil
}
