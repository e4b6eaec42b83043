package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTemplatePorts(t *testing.T) {
	ports := DeriveTemplatePorts("text-1", "Hello {{name}}, your {{name}} id is {{id}}")
	require.Len(t, ports, 3)

	assert.Equal(t, Port{ID: "text-1-name", Type: PortTypeTarget, Side: PortSideLeft, Offset: 1.0 / 3.0}, ports[0])
	assert.Equal(t, Port{ID: "text-1-id", Type: PortTypeTarget, Side: PortSideLeft, Offset: 2.0 / 3.0}, ports[1])
	assert.Equal(t, Port{ID: TemplateOutputPort, Type: PortTypeSource, Side: PortSideRight}, ports[2])
}

func TestDeriveTemplatePorts_NoVariables(t *testing.T) {
	ports := DeriveTemplatePorts("text-4", "static prompt")

	require.Len(t, ports, 1)
	assert.Equal(t, TemplateOutputPort, ports[0].ID)
	assert.Equal(t, PortTypeSource, ports[0].Type)
}

func TestDeriveTemplatePorts_OffsetsStrictlyInside(t *testing.T) {
	ports := DeriveTemplatePorts("text-2", "{{a}} {{b}} {{c}} {{d}}")
	require.Len(t, ports, 5)

	prev := 0.0
	for _, p := range ports[:4] {
		assert.Greater(t, p.Offset, prev)
		assert.Less(t, p.Offset, 1.0)
		prev = p.Offset
	}
	assert.InDelta(t, 0.2, ports[0].Offset, 1e-9)
	assert.InDelta(t, 0.8, ports[3].Offset, 1e-9)
}

func TestPortsFor(t *testing.T) {
	t.Run("llm", func(t *testing.T) {
		ports := PortsFor(Node{ID: "llm-1", Type: NodeTypeLLM})
		ids := portIDs(ports)
		assert.Equal(t, []string{"system", "prompt", "response"}, ids)
		assert.Equal(t, 0.33, ports[0].Offset)
		assert.Equal(t, 0.66, ports[1].Offset)
	})

	t.Run("condition", func(t *testing.T) {
		ports := PortsFor(Node{ID: "condition-1", Type: NodeTypeCondition})
		assert.Equal(t, []string{"input", "true", "false"}, portIDs(ports))
	})

	t.Run("text follows its template", func(t *testing.T) {
		node := Node{ID: "text-3", Type: NodeTypeText, Data: &TextData{Text: "{{question}}"}}
		assert.Equal(t, []string{"text-3-question", TemplateOutputPort}, portIDs(PortsFor(node)))
	})

	t.Run("text without data uses the default template", func(t *testing.T) {
		node := Node{ID: "text-5", Type: NodeTypeText}
		assert.Equal(t, []string{"text-5-input", TemplateOutputPort}, portIDs(PortsFor(node)))
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		ports := PortsFor(Node{ID: "llm-1", Type: NodeTypeLLM})
		ports[0].ID = "mutated"
		assert.Equal(t, "system", PortsFor(Node{ID: "llm-2", Type: NodeTypeLLM})[0].ID)
	})
}

func portIDs(ports []Port) []string {
	ids := make([]string, 0, len(ports))
	for _, p := range ports {
		ids = append(ids, p.ID)
	}
	return ids
}
