package models

import "fmt"

type PortType string

const (
	PortTypeSource PortType = "source"
	PortTypeTarget PortType = "target"
)

type PortSide string

const (
	PortSideLeft  PortSide = "left"
	PortSideRight PortSide = "right"
)

// Port is a named attachment point on a node through which edges connect.
// Offset is the fractional vertical position along the node side; 0 means centered.
type Port struct {
	ID     string   `json:"id"`
	Type   PortType `json:"type"`
	Side   PortSide `json:"position"`
	Offset float64  `json:"offset,omitempty"`
}

// TemplateOutputPort is the static output every text node exposes.
const TemplateOutputPort = "output"

func target(id string, offset float64) Port {
	return Port{ID: id, Type: PortTypeTarget, Side: PortSideLeft, Offset: offset}
}

func source(id string, offset float64) Port {
	return Port{ID: id, Type: PortTypeSource, Side: PortSideRight, Offset: offset}
}

var staticPorts = map[NodeType][]Port{
	NodeTypeLLM:       {target("system", 0.33), target("prompt", 0.66), source("response", 0)},
	NodeTypeInput:     {source("value", 0)},
	NodeTypeOutput:    {target("value", 0)},
	NodeTypeCondition: {target("input", 0), source("true", 0.30), source("false", 0.70)},
	NodeTypeMerge:     {target("a", 0), target("b", 0), source("merged", 0)},
	NodeTypeLoop:      {target("in", 0), source("out", 0)},
	NodeTypeDelay:     {target("in", 0), source("out", 0)},
	NodeTypeDataLog:   {target("input", 0)},
}

// PortsFor returns the connectable ports of a node. Text nodes derive theirs from the template.
func PortsFor(node Node) []Port {
	if node.Type == NodeTypeText {
		text := DefaultTemplate
		if d, ok := node.Data.(*TextData); ok {
			text = d.Text
		}
		return DeriveTemplatePorts(node.ID, text)
	}
	ports := staticPorts[node.Type]
	out := make([]Port, len(ports))
	copy(out, ports)
	return out
}

// DeriveTemplatePorts materializes one target port per distinct template variable,
// spaced evenly down the left side, plus the static output on the right.
// A template without variables yields only the output port.
func DeriveTemplatePorts(nodeID, text string) []Port {
	vars := TemplateVariables(text)
	ports := make([]Port, 0, len(vars)+1)
	for i, v := range vars {
		ports = append(ports, target(fmt.Sprintf("%s-%s", nodeID, v), float64(i+1)/float64(len(vars)+1)))
	}
	return append(ports, source(TemplateOutputPort, 0))
}
