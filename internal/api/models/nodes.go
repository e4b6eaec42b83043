package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type NodeType string

const (
	NodeTypeLLM       NodeType = "llm"
	NodeTypeText      NodeType = "text"
	NodeTypeInput     NodeType = "customInput"
	NodeTypeOutput    NodeType = "customOutput"
	NodeTypeCondition NodeType = "condition"
	NodeTypeMerge     NodeType = "mergeNode"
	NodeTypeLoop      NodeType = "loopNode"
	NodeTypeDelay     NodeType = "delayNode"
	NodeTypeDataLog   NodeType = "dataLog"
)

// NodeTypes lists every node kind the canvas can instantiate, in palette order.
var NodeTypes = []NodeType{
	NodeTypeInput,
	NodeTypeOutput,
	NodeTypeLLM,
	NodeTypeText,
	NodeTypeCondition,
	NodeTypeMerge,
	NodeTypeLoop,
	NodeTypeDelay,
	NodeTypeDataLog,
}

func (slf NodeType) Valid() bool {
	for _, t := range NodeTypes {
		if t == slf {
			return true
		}
	}
	return false
}

// Label is the default human-readable label given to a freshly dropped node.
func (slf NodeType) Label() string {
	return fmt.Sprintf("%s node", slf)
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Node is a vertex of the pipeline graph. Its ID has the form <type>-<ordinal>.
type Node struct {
	ID       string
	Type     NodeType
	Position Position
	Data     NodeData
	Selected bool
}

// wireNode is the shape exchanged with the canvas, the snapshot store and the exporter.
type wireNode struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"type"`
	Position Position       `json:"position"`
	Data     map[string]any `json:"data"`
	Selected bool           `json:"selected,omitempty"`
}

func (slf Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireNode{
		ID:       slf.ID,
		Type:     slf.Type,
		Position: slf.Position,
		Data:     EncodeNodeData(slf.Data),
		Selected: slf.Selected,
	})
}

func (slf *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.ID == "" {
		return fmt.Errorf("node is missing an id")
	}
	*slf = Node{
		ID:       w.ID,
		Type:     w.Type,
		Position: w.Position,
		Data:     DecodeNodeData(w.Type, w.Data),
		Selected: w.Selected,
	}
	return nil
}

func (slf Node) Clone() Node {
	out := slf
	if slf.Data != nil {
		out.Data = slf.Data.clone()
	}
	return out
}

// ParseNodeID splits an id of the form <type>-<n>.
func ParseNodeID(id string) (NodeType, int, bool) {
	idx := strings.LastIndex(id, "-")
	if idx <= 0 || idx == len(id)-1 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil || n <= 0 {
		return "", 0, false
	}
	return NodeType(id[:idx]), n, true
}

// FormatNodeID builds the <type>-<n> form.
func FormatNodeID(t NodeType, n int) string {
	return fmt.Sprintf("%s-%d", t, n)
}
