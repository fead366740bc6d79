package workflow

import (
	"encoding/json"
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

// NodeKind is the closed set of node variants. Unknown kinds are
// rejected when the definition is parsed, not when it executes.
type NodeKind string

const (
	KindStart      NodeKind = "START"
	KindMessage    NodeKind = "MESSAGE"
	KindCondition  NodeKind = "CONDITION"
	KindAIResponse NodeKind = "AI_RESPONSE"
	KindAction     NodeKind = "ACTION"
)

// AI_RESPONSE modes.
const (
	AIModeClassify = "classify" // LLM returns a short token used as the outgoing port
	AIModeRespond  = "respond"  // LLM returns free text emitted to the user
)

// PortMain is the unconditional outgoing slot of MESSAGE/ACTION/START nodes.
// PortDefault is the fallback slot when no condition token matches.
const (
	PortMain    = "main"
	PortDefault = "default"
)

type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"type"`

	// Content is the message template (MESSAGE) or the prompt (AI_RESPONSE).
	Content string `json:"content,omitempty"`

	// Expression names what a CONDITION node evaluates: "input" for the
	// inbound text (the default) or a context key.
	Expression string `json:"expression,omitempty"`

	// Action is the registered action name for ACTION nodes.
	Action string            `json:"action,omitempty"`
	Params map[string]string `json:"params,omitempty"`

	// OutputKey is the context key written by ACTION results, classify
	// tokens, or consumed user input on awaiting nodes.
	OutputKey string `json:"output_key,omitempty"`

	// Mode selects AI_RESPONSE behavior (classify by default).
	Mode string `json:"mode,omitempty"`

	// AwaitsInput halts the interpreter at this node until the next
	// inbound message arrives.
	AwaitsInput bool `json:"awaits_input,omitempty"`
}

type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Port   string `json:"port"`

	// Condition is a pipe-delimited token list matched against the
	// evaluated text; empty means the edge's port is its sole token.
	Condition string `json:"condition,omitempty"`
}

// Graph is a decoded, validated workflow definition. It is read-only
// during execution and safe to share across conversations.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	byID    map[string]*Node
	out     map[string][]Edge
	startID string
}

var validKinds = map[NodeKind]bool{
	KindStart:      true,
	KindMessage:    true,
	KindCondition:  true,
	KindAIResponse: true,
	KindAction:     true,
}

// ParseDefinition decodes and validates a JSON workflow definition.
func ParseDefinition(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode workflow definition: %w", err)
	}
	if err := g.index(); err != nil {
		return nil, err
	}
	return &g, nil
}

// index builds lookup tables and enforces the load-time invariants:
// known kinds only, unique node ids, exactly one START, resolvable
// edge endpoints. Orphan non-terminal nodes are a known defect class
// and only logged.
func (g *Graph) index() error {
	g.byID = make(map[string]*Node, len(g.Nodes))
	g.out = make(map[string][]Edge, len(g.Nodes))
	g.startID = ""

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !validKinds[n.Kind] {
			return fmt.Errorf("%w: node %q has kind %q", ErrUnknownNodeKind, n.ID, n.Kind)
		}
		if n.ID == "" {
			return fmt.Errorf("workflow node at position %d has no id", i)
		}
		if _, dup := g.byID[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		g.byID[n.ID] = n
		if n.Kind == KindStart {
			if g.startID != "" {
				return fmt.Errorf("workflow has more than one START node (%q, %q)", g.startID, n.ID)
			}
			g.startID = n.ID
		}
	}
	if g.startID == "" {
		return fmt.Errorf("workflow has no START node")
	}

	for _, e := range g.Edges {
		if _, ok := g.byID[e.Source]; !ok {
			return fmt.Errorf("edge %q references unknown source node %q", e.ID, e.Source)
		}
		if _, ok := g.byID[e.Target]; !ok {
			return fmt.Errorf("edge %q references unknown target node %q", e.ID, e.Target)
		}
		// declaration order is significant for condition matching
		g.out[e.Source] = append(g.out[e.Source], e)
	}

	for _, n := range g.Nodes {
		if len(g.out[n.ID]) == 0 && !n.AwaitsInput && n.Kind != KindStart {
			klog.Warningf("workflow node %q (%s) has no outgoing edges and does not await input", n.ID, n.Kind)
		}
	}

	g.auditContextKeys()
	return nil
}

// auditContextKeys warns about context keys a node reads that no node
// in the graph writes. Seed context can still provide them at runtime,
// so a miss is a warning, not a load error.
func (g *Graph) auditContextKeys() {
	writes := map[string]bool{ContextKeyInput: true}
	for _, n := range g.Nodes {
		if n.OutputKey != "" {
			writes[n.OutputKey] = true
		}
		if n.Kind == KindAction && n.OutputKey == "" {
			writes[n.Action] = true
		}
	}
	for _, n := range g.Nodes {
		for _, key := range readKeys(n) {
			if !writes[key] {
				klog.V(6).Infof("workflow node %q reads context key %q that no node writes", n.ID, key)
			}
		}
	}
}

// readKeys lists the context keys a node consumes: the CONDITION
// expression and any template placeholders in its content.
func readKeys(n Node) []string {
	var keys []string
	if n.Kind == KindCondition {
		expr := strings.TrimPrefix(n.Expression, "context.")
		if expr != "" && expr != ContextKeyInput {
			keys = append(keys, expr)
		}
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(n.Content, -1) {
		if m[1] != ContextKeyInput {
			keys = append(keys, m[1])
		}
	}
	return keys
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.byID[id]
}

// StartID returns the id of the graph's single START node.
func (g *Graph) StartID() string {
	return g.startID
}

// Outgoing returns the outgoing edges of a node in declaration order.
func (g *Graph) Outgoing(id string) []Edge {
	return g.out[id]
}
