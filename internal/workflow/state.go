package workflow

// ContextKeyInput is where the raw text of the last consumed inbound
// message is stored.
const ContextKeyInput = "input"

// State is the per-conversation cursor into a graph. It is loaded from
// and persisted to the conversation store around each turn.
type State struct {
	CurrentNodeID string
	Context       map[string]any
	AwaitingInput bool
}

// NewState creates a clean state positioned at the graph's START node.
func NewState(startNodeID string) *State {
	return &State{
		CurrentNodeID: startNodeID,
		Context:       make(map[string]any),
	}
}

// Clone deep-copies the state so the interpreter can restore it when a
// turn must be abandoned (loop guard).
func (s *State) Clone() *State {
	return &State{
		CurrentNodeID: s.CurrentNodeID,
		Context:       deepCopyMap(s.Context),
		AwaitingInput: s.AwaitingInput,
	}
}

// Restore overwrites the state with a previously taken clone.
func (s *State) Restore(from *State) {
	s.CurrentNodeID = from.CurrentNodeID
	s.Context = from.Context
	s.AwaitingInput = from.AwaitingInput
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return v
	}
}
