// Package models defines the core domain models for conversational flow execution.
package models

import "time"

// NodeType tags a flow node. The tag set is closed; the interpreter treats
// unrecognized types as pass-through for forward compatibility.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeText      NodeType = "text"
	NodeTypeImage     NodeType = "image"
	NodeTypeVideo     NodeType = "video"
	NodeTypeButton    NodeType = "button"
	NodeTypeInput     NodeType = "input"
	NodeTypeSequence  NodeType = "sequence"
	NodeTypeCondition NodeType = "condition"
)

// ButtonOption is one enumerated choice on a button node. NextNode overrides
// the node's default outgoing edge when the subscriber picks this option.
type ButtonOption struct {
	Title    string `json:"title"               validate:"required"`
	NextNode string `json:"next_node,omitempty"`
}

// NodeData carries the type-specific payload of a node. Only the fields
// relevant to the node's type are populated by the flow editor.
type NodeData struct {
	Text         string         `json:"text,omitempty"`
	MediaURL     string         `json:"media_url,omitempty"`
	Buttons      []ButtonOption `json:"buttons,omitempty"`
	VariableName string         `json:"variable_name,omitempty"`
	DelaySeconds int            `json:"delay_seconds,omitempty"`
	Condition    *Condition     `json:"condition,omitempty"`
}

// FlowNode is one step in a flow definition.
type FlowNode struct {
	ID   string   `json:"id"   validate:"required"`
	Type NodeType `json:"type" validate:"required"`
	Data NodeData `json:"data"`
}

// FlowEdge is a one-directional connection between two nodes. Multiple edges
// leaving a branching node are disambiguated by node data (a button's
// next_node, a condition's true/false targets), never by edge order.
type FlowEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// FlowDefinition is an immutable snapshot of a conversation graph, authored by
// the flow editor subsystem. The engine only reads it. It is fetched once at
// execution start and re-fetched on resume; a definition changed between
// suspension and resume is an accepted race.
type FlowDefinition struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Nodes     []*FlowNode `json:"nodes"`
	Edges     []*FlowEdge `json:"edges"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// StartNode returns the flow's start node, or false if the definition has
// none (a definition error, fatal for the execution).
func (f *FlowDefinition) StartNode() (*FlowNode, bool) {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeStart {
			return node, true
		}
	}

	return nil, false
}

// NodeByID looks up a node by its identifier.
func (f *FlowDefinition) NodeByID(id string) (*FlowNode, bool) {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}

// DefaultNext returns the target of the node's default outgoing edge.
// Non-branching nodes have at most one outgoing edge; for branching nodes this
// is the fallback edge used when no branch-specific target applies.
func (f *FlowDefinition) DefaultNext(nodeID string) (string, bool) {
	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			return edge.Target, true
		}
	}

	return "", false
}
