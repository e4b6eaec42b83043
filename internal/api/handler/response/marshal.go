package response

import (
	"encoding/json"

	"github.com/Dipanshuofficial/Flow/internal/api/models"
)

func marshalWithPorts(node models.Node, ports []models.Port) ([]byte, error) {
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if ports == nil {
		ports = []models.Port{}
	}
	encoded, err := json.Marshal(ports)
	if err != nil {
		return nil, err
	}
	doc["ports"] = encoded
	return json.Marshal(doc)
}
