package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"
)

// NodeData is the per-type payload of a node. Each node type has its own variant;
// the untyped wire mapping is only produced and consumed by EncodeNodeData and DecodeNodeData.
type NodeData interface {
	Type() NodeType
	// Set replaces a single field. Values are never rejected: unknown fields and
	// values that do not fit the typed field are kept verbatim so nothing sent by
	// the canvas is lost on the way to the snapshot or the exporter.
	Set(field string, value any)
	fields() map[string]any
	common() *Common
	clone() NodeData
}

type Common struct {
	Label string
	Extra map[string]any
}

func (slf *Common) common() *Common { return slf }

func (slf *Common) setExtra(field string, value any) {
	if slf.Extra == nil {
		slf.Extra = make(map[string]any)
	}
	slf.Extra[field] = value
}

func (slf *Common) setLabel(value any) {
	assign(slf, "label", &slf.Label, value, toString)
}

func (slf Common) cloneCommon() Common {
	return Common{Label: slf.Label, Extra: maps.Clone(slf.Extra)}
}

type LLMData struct{ Common }

type TextData struct {
	Common
	Text string
}

type InputData struct {
	Common
	InputName string
	InputType string
}

type OutputData struct {
	Common
	OutputName string
	OutputType string
}

type ConditionOperator string

const (
	OperatorEquals   ConditionOperator = "equals"
	OperatorContains ConditionOperator = "contains"
	OperatorExists   ConditionOperator = "exists"
)

type ConditionData struct {
	Common
	Operator ConditionOperator
}

type MergeData struct{ Common }

type LoopData struct {
	Common
	Count int
}

type DelayData struct {
	Common
	// Delay in seconds.
	Delay float64
}

type DataLogData struct {
	Common
	Logs string
}

// GenericData holds the payload of a node whose type is not part of the palette.
// It only appears when restoring snapshots written by a different client build.
type GenericData struct {
	Common
	NodeType NodeType
}

const (
	DefaultTemplate = "{{input}}"
	DefaultIOType   = "Text"
)

// NewNodeData returns the default payload for a freshly created node.
func NewNodeData(t NodeType, id string) NodeData {
	c := Common{Label: t.Label()}
	switch t {
	case NodeTypeLLM:
		return &LLMData{Common: c}
	case NodeTypeText:
		return &TextData{Common: c, Text: DefaultTemplate}
	case NodeTypeInput:
		return &InputData{Common: c, InputName: strings.Replace(id, "customInput-", "input_", 1), InputType: DefaultIOType}
	case NodeTypeOutput:
		return &OutputData{Common: c, OutputName: strings.Replace(id, "customOutput-", "output_", 1), OutputType: DefaultIOType}
	case NodeTypeCondition:
		return &ConditionData{Common: c, Operator: OperatorEquals}
	case NodeTypeMerge:
		return &MergeData{Common: c}
	case NodeTypeLoop:
		return &LoopData{Common: c, Count: 1}
	case NodeTypeDelay:
		return &DelayData{Common: c}
	case NodeTypeDataLog:
		return &DataLogData{Common: c}
	default:
		return &GenericData{Common: c, NodeType: t}
	}
}

// DecodeNodeData converts a wire mapping into the typed variant for t.
// Fields absent from m keep their defaults.
func DecodeNodeData(t NodeType, m map[string]any) NodeData {
	d := NewNodeData(t, "")
	if _, ok := m["label"]; !ok {
		d.common().Label = ""
	}
	for k, v := range m {
		d.Set(k, v)
	}
	return d
}

// EncodeNodeData flattens a variant into the wire mapping. Extras are emitted last,
// so a raw value that did not convert replaces the zeroed typed field.
func EncodeNodeData(d NodeData) map[string]any {
	if d == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(d.common().Extra)+4)
	maps.Copy(out, d.fields())
	if d.common().Label != "" {
		out["label"] = d.common().Label
	}
	maps.Copy(out, d.common().Extra)
	return out
}

func (slf *LLMData) Type() NodeType { return NodeTypeLLM }
func (slf *LLMData) fields() map[string]any { return nil }
func (slf *LLMData) clone() NodeData { return &LLMData{Common: slf.cloneCommon()} }
func (slf *LLMData) Set(field string, v any) {
	if field == "label" {
		slf.setLabel(v)
		return
	}
	slf.setExtra(field, v)
}

func (slf *TextData) Type() NodeType { return NodeTypeText }
func (slf *TextData) fields() map[string]any { return map[string]any{"text": slf.Text} }
func (slf *TextData) clone() NodeData {
	return &TextData{Common: slf.cloneCommon(), Text: slf.Text}
}
func (slf *TextData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "text":
		assign(&slf.Common, field, &slf.Text, v, toString)
	default:
		slf.setExtra(field, v)
	}
}

func (slf *InputData) Type() NodeType { return NodeTypeInput }
func (slf *InputData) fields() map[string]any {
	return map[string]any{"inputName": slf.InputName, "inputType": slf.InputType}
}
func (slf *InputData) clone() NodeData {
	return &InputData{Common: slf.cloneCommon(), InputName: slf.InputName, InputType: slf.InputType}
}
func (slf *InputData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "inputName":
		assign(&slf.Common, field, &slf.InputName, v, toString)
	case "inputType":
		assign(&slf.Common, field, &slf.InputType, v, toString)
	default:
		slf.setExtra(field, v)
	}
}

func (slf *OutputData) Type() NodeType { return NodeTypeOutput }
func (slf *OutputData) fields() map[string]any {
	return map[string]any{"outputName": slf.OutputName, "outputType": slf.OutputType}
}
func (slf *OutputData) clone() NodeData {
	return &OutputData{Common: slf.cloneCommon(), OutputName: slf.OutputName, OutputType: slf.OutputType}
}
func (slf *OutputData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "outputName":
		assign(&slf.Common, field, &slf.OutputName, v, toString)
	case "outputType":
		assign(&slf.Common, field, &slf.OutputType, v, toString)
	default:
		slf.setExtra(field, v)
	}
}

func (slf *ConditionData) Type() NodeType { return NodeTypeCondition }
func (slf *ConditionData) fields() map[string]any {
	return map[string]any{"operator": string(slf.Operator)}
}
func (slf *ConditionData) clone() NodeData {
	return &ConditionData{Common: slf.cloneCommon(), Operator: slf.Operator}
}
func (slf *ConditionData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "operator":
		assign(&slf.Common, field, &slf.Operator, v, func(v any) (ConditionOperator, error) {
			s, err := toString(v)
			return ConditionOperator(s), err
		})
	default:
		slf.setExtra(field, v)
	}
}

func (slf *MergeData) Type() NodeType { return NodeTypeMerge }
func (slf *MergeData) fields() map[string]any { return nil }
func (slf *MergeData) clone() NodeData { return &MergeData{Common: slf.cloneCommon()} }
func (slf *MergeData) Set(field string, v any) {
	if field == "label" {
		slf.setLabel(v)
		return
	}
	slf.setExtra(field, v)
}

func (slf *LoopData) Type() NodeType { return NodeTypeLoop }
func (slf *LoopData) fields() map[string]any { return map[string]any{"count": slf.Count} }
func (slf *LoopData) clone() NodeData {
	return &LoopData{Common: slf.cloneCommon(), Count: slf.Count}
}
func (slf *LoopData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "count":
		assign(&slf.Common, field, &slf.Count, v, toInt)
	default:
		slf.setExtra(field, v)
	}
}

func (slf *DelayData) Type() NodeType { return NodeTypeDelay }
func (slf *DelayData) fields() map[string]any { return map[string]any{"delay": slf.Delay} }
func (slf *DelayData) clone() NodeData {
	return &DelayData{Common: slf.cloneCommon(), Delay: slf.Delay}
}
func (slf *DelayData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "delay":
		assign(&slf.Common, field, &slf.Delay, v, toFloat)
	default:
		slf.setExtra(field, v)
	}
}

func (slf *DataLogData) Type() NodeType { return NodeTypeDataLog }
func (slf *DataLogData) fields() map[string]any { return map[string]any{"logs": slf.Logs} }
func (slf *DataLogData) clone() NodeData {
	return &DataLogData{Common: slf.cloneCommon(), Logs: slf.Logs}
}
func (slf *DataLogData) Set(field string, v any) {
	switch field {
	case "label":
		slf.setLabel(v)
	case "logs":
		assign(&slf.Common, field, &slf.Logs, v, toString)
	default:
		slf.setExtra(field, v)
	}
}

func (slf *GenericData) Type() NodeType { return slf.NodeType }
func (slf *GenericData) fields() map[string]any { return nil }
func (slf *GenericData) clone() NodeData {
	return &GenericData{Common: slf.cloneCommon(), NodeType: slf.NodeType}
}
func (slf *GenericData) Set(field string, v any) {
	if field == "label" {
		slf.setLabel(v)
		return
	}
	slf.setExtra(field, v)
}

// assign stores the converted value in dst. A value that does not convert is kept
// verbatim in Extra under the same key and dst is zeroed; the raw value is what goes
// back on the wire.
func assign[T any](c *Common, field string, dst *T, v any, convert func(any) (T, error)) {
	converted, err := convert(v)
	if err != nil {
		var zero T
		*dst = zero
		c.setExtra(field, v)
		return
	}
	*dst = converted
	delete(c.Extra, field)
}

var errWrongKind = errors.New("unexpected value kind")

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: %T", errWrongKind, v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		if n == "" {
			return 0, nil
		}
		return strconv.ParseFloat(n, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %T", errWrongKind, v)
	}
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not a whole number", errWrongKind, f)
	}
	return int(f), nil
}
