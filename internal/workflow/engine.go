package workflow

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/klog/v2"
)

// DefaultMaxHops caps automatic node traversals within a single turn so
// a malformed graph cannot spin the interpreter forever.
const DefaultMaxHops = 50

// Output is a message produced during a turn, to be delivered to the
// user by the caller.
type Output struct {
	Text string `json:"text"`
}

// Responder is the LLM capability AI_RESPONSE nodes delegate to.
type Responder interface {
	// Classify returns a short token for the current turn.
	Classify(ctx context.Context, prompt string, vars map[string]any) (string, error)
	// Respond returns free conversational text.
	Respond(ctx context.Context, prompt string, vars map[string]any) (string, error)
}

// ActionExecutor runs the side-effecting lookups ACTION nodes name
// (procedure listings, price quotes, webhook calls). The returned value
// is written into the conversation context.
type ActionExecutor interface {
	Execute(ctx context.Context, name string, params map[string]string, convContext map[string]any) (any, error)
}

// Engine interprets a workflow graph one turn at a time. It holds no
// per-conversation state; everything mutable lives in *State.
type Engine struct {
	llm     Responder
	actions ActionExecutor
	maxHops int
}

func NewEngine(llm Responder, actions ActionExecutor, maxHops int) *Engine {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return &Engine{llm: llm, actions: actions, maxHops: maxHops}
}

// Advance runs one turn: consume the inbound message (if the cursor is
// waiting for one), execute node side effects and walk edges until a
// node that awaits input is reached or the path terminates. The state
// is mutated in place; accumulated outputs are returned for delivery.
//
// Error contract:
//   - ErrWorkflowLoop: traversal cap hit, state restored to its
//     pre-call snapshot, no outputs.
//   - *NodeExecutionError: the failing node's side effect errored; the
//     cursor stays on that node so it retries on the next message, and
//     outputs produced before the failure are still returned.
//   - ErrNoMatchingEdge (wrapped): nothing matched and no default port
//     exists; the caller hands the turn to the intent router.
func (e *Engine) Advance(ctx context.Context, g *Graph, state *State, inbound string) ([]Output, error) {
	snapshot := state.Clone()
	var outputs []Output

	node := g.Node(state.CurrentNodeID)
	if node == nil {
		// corrupt or half-migrated graph; recover at START
		klog.Warningf("%v: cursor at missing node %q, resetting to START", ErrGraphIntegrity, state.CurrentNodeID)
		state.CurrentNodeID = g.StartID()
		state.AwaitingInput = false
		node = g.Node(state.CurrentNodeID)
	}

	if state.Context == nil {
		state.Context = make(map[string]any)
	}

	visiting := true
	text := strings.TrimSpace(inbound)
	if state.AwaitingInput {
		if text == "" {
			// nothing new to consume; stay put
			return nil, nil
		}
		state.Context[ContextKeyInput] = text
		if node.OutputKey != "" {
			state.Context[node.OutputKey] = text
		}
		state.AwaitingInput = false
		// the node's side effect already ran when the cursor arrived
		// here; resuming only selects the outgoing edge
		visiting = false
	} else if text != "" {
		state.Context[ContextKeyInput] = text
	}

	for hops := 0; ; hops++ {
		if hops >= e.maxHops {
			state.Restore(snapshot)
			return nil, fmt.Errorf("%w: aborted after %d hops at node %q", ErrWorkflowLoop, e.maxHops, node.ID)
		}

		evaluated, outs, err := e.executeNode(ctx, node, state, visiting)
		outputs = append(outputs, outs...)
		if err != nil {
			return outputs, &NodeExecutionError{NodeID: node.ID, Kind: node.Kind, Err: err}
		}

		if visiting && node.AwaitsInput {
			state.AwaitingInput = true
			return outputs, nil
		}
		visiting = true

		edges := g.Outgoing(node.ID)
		if len(edges) == 0 {
			// terminal node: park here until the next message
			klog.V(6).Infof("workflow halted at terminal node %q", node.ID)
			state.AwaitingInput = true
			return outputs, nil
		}

		edge, err := e.selectOutgoing(node, edges, evaluated)
		if err != nil {
			return outputs, fmt.Errorf("node %q: %w", node.ID, err)
		}

		next := g.Node(edge.Target)
		if next == nil {
			// index() guarantees edge targets resolve, so this only
			// happens if the graph was swapped mid-turn
			state.Restore(snapshot)
			return nil, fmt.Errorf("%w: edge %q targets missing node %q", ErrGraphIntegrity, edge.ID, edge.Target)
		}
		state.CurrentNodeID = next.ID
		node = next
	}
}

// executeNode runs the node's side effect (variant dispatch) and
// returns the text used for edge selection. When visiting is false the
// cursor is resuming after awaited input and emit/lookup effects are
// not replayed.
func (e *Engine) executeNode(ctx context.Context, node *Node, state *State, visiting bool) (string, []Output, error) {
	switch node.Kind {
	case KindStart:
		return "", nil, nil

	case KindMessage:
		if !visiting {
			return "", nil, nil
		}
		return "", []Output{{Text: Render(node.Content, state.Context)}}, nil

	case KindCondition:
		return evaluateExpression(node.Expression, state), nil, nil

	case KindAction:
		if !visiting {
			return "", nil, nil
		}
		if e.actions == nil {
			return "", nil, fmt.Errorf("no action executor configured")
		}
		result, err := e.actions.Execute(ctx, node.Action, node.Params, state.Context)
		if err != nil {
			return "", nil, fmt.Errorf("action %q: %w", node.Action, err)
		}
		key := node.OutputKey
		if key == "" {
			key = node.Action
		}
		state.Context[key] = result
		return "", nil, nil

	case KindAIResponse:
		if e.llm == nil {
			return "", nil, fmt.Errorf("no LLM responder configured")
		}
		prompt := Render(node.Content, state.Context)
		if node.Mode == AIModeRespond {
			if !visiting {
				return "", nil, nil
			}
			reply, err := e.llm.Respond(ctx, prompt, state.Context)
			if err != nil {
				return "", nil, err
			}
			if node.OutputKey != "" {
				state.Context[node.OutputKey] = reply
			}
			return "", []Output{{Text: reply}}, nil
		}
		// classify runs on visit and on resume: resuming means the
		// node waited for the text it is about to classify
		token, err := e.llm.Classify(ctx, prompt, state.Context)
		if err != nil {
			return "", nil, err
		}
		token = Normalize(token)
		if node.OutputKey != "" {
			state.Context[node.OutputKey] = token
		}
		klog.V(6).Infof("node %q classified turn as %q", node.ID, token)
		return token, nil, nil

	default:
		// unreachable: kinds are validated at load time
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownNodeKind, node.Kind)
	}
}

// selectOutgoing applies the per-kind port rule from the design:
// CONDITION and classify AI_RESPONSE match the evaluated token against
// each edge in declaration order with a "default" fallback; everything
// else follows the single "main" edge.
func (e *Engine) selectOutgoing(node *Node, edges []Edge, evaluated string) (Edge, error) {
	switch node.Kind {
	case KindCondition:
		return selectEdge(edges, evaluated)
	case KindAIResponse:
		if node.Mode == AIModeRespond {
			return mainEdge(edges)
		}
		return selectEdge(edges, evaluated)
	default:
		return mainEdge(edges)
	}
}
