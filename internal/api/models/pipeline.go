package models

// Pipeline is the payload exchanged with the remote validator and exporter.
type Pipeline struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Snapshot is the durable projection of a session used to restore it after a reload.
// It carries no schema version; readers tolerate missing fields.
type Snapshot struct {
	Nodes    []Node    `json:"nodes"`
	Edges    []Edge    `json:"edges"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// IsEmpty reports whether the snapshot holds no graph content.
func (slf *Snapshot) IsEmpty() bool {
	return slf == nil || (len(slf.Nodes) == 0 && len(slf.Edges) == 0)
}
