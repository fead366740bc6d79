package workflow

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type fakeLLM struct {
	classifyFunc func(ctx context.Context, prompt string, vars map[string]any) (string, error)
	respondFunc  func(ctx context.Context, prompt string, vars map[string]any) (string, error)
}

func (f *fakeLLM) Classify(ctx context.Context, prompt string, vars map[string]any) (string, error) {
	if f.classifyFunc == nil {
		return "", errors.New("classify not configured")
	}
	return f.classifyFunc(ctx, prompt, vars)
}

func (f *fakeLLM) Respond(ctx context.Context, prompt string, vars map[string]any) (string, error) {
	if f.respondFunc == nil {
		return "", errors.New("respond not configured")
	}
	return f.respondFunc(ctx, prompt, vars)
}

type fakeActions struct {
	executeFunc func(ctx context.Context, name string, params map[string]string, convContext map[string]any) (any, error)
}

func (f *fakeActions) Execute(ctx context.Context, name string, params map[string]string, convContext map[string]any) (any, error) {
	return f.executeFunc(ctx, name, params, convContext)
}

func mustGraph(t *testing.T, def string) *Graph {
	t.Helper()
	g, err := ParseDefinition([]byte(def))
	if err != nil {
		t.Fatalf("ParseDefinition: %v", err)
	}
	return g
}

const triageDef = `{
	"nodes": [
		{"id": "start", "type": "START"},
		{"id": "ask", "type": "MESSAGE", "content": "Qual procedimento você procura?", "awaits_input": true},
		{"id": "triage", "type": "CONDITION", "expression": "input"},
		{"id": "acup", "type": "MESSAGE", "content": "Acupuntura: sessões de 50 minutos."},
		{"id": "fisio", "type": "MESSAGE", "content": "Fisioterapia e RPG com avaliação inicial."},
		{"id": "other", "type": "MESSAGE", "content": "Vou te passar para a recepção."}
	],
	"edges": [
		{"id": "e1", "source": "start", "target": "ask", "port": "main"},
		{"id": "e2", "source": "ask", "target": "triage", "port": "main"},
		{"id": "e3", "source": "triage", "target": "acup", "port": "acupuntura", "condition": "acupuntura"},
		{"id": "e4", "source": "triage", "target": "fisio", "port": "fisio", "condition": "rpg|fisioterapia"},
		{"id": "e5", "source": "triage", "target": "other", "port": "default"}
	]
}`

func TestAdvanceHaltsAtAwaitingNode(t *testing.T) {
	g := mustGraph(t, triageDef)
	e := NewEngine(nil, nil, 0)
	state := NewState(g.StartID())

	outputs, err := e.Advance(context.Background(), g, state, "oi")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Text != "Qual procedimento você procura?" {
		t.Fatalf("unexpected outputs: %+v", outputs)
	}
	if state.CurrentNodeID != "ask" || !state.AwaitingInput {
		t.Fatalf("expected cursor parked at ask awaiting input, got %q awaiting=%v", state.CurrentNodeID, state.AwaitingInput)
	}
}

func TestAdvanceConditionRouting(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantNode string
		wantText string
	}{
		{"exact token", "acupuntura", "acup", "Acupuntura: sessões de 50 minutos."},
		{"accented containment", "Quero agendar Acupuntúra, pode ser?", "acup", "Acupuntura: sessões de 50 minutos."},
		{"second token of pipe list", "tenho indicação de fisioterapia", "fisio", "Fisioterapia e RPG com avaliação inicial."},
		{"default fallback", "quanto custa botox?", "other", "Vou te passar para a recepção."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := mustGraph(t, triageDef)
			e := NewEngine(nil, nil, 0)
			state := NewState(g.StartID())
			if _, err := e.Advance(context.Background(), g, state, ""); err != nil {
				t.Fatalf("first turn: %v", err)
			}

			outputs, err := e.Advance(context.Background(), g, state, tt.input)
			if err != nil {
				t.Fatalf("second turn: %v", err)
			}
			if state.CurrentNodeID != tt.wantNode {
				t.Fatalf("cursor = %q, want %q", state.CurrentNodeID, tt.wantNode)
			}
			if len(outputs) != 1 || outputs[0].Text != tt.wantText {
				t.Fatalf("outputs = %+v, want %q", outputs, tt.wantText)
			}
			// terminal branch nodes park until the next message
			if !state.AwaitingInput {
				t.Fatal("terminal node should leave the conversation awaiting input")
			}
		})
	}
}

func TestAdvanceEmptyInputWhileAwaiting(t *testing.T) {
	g := mustGraph(t, triageDef)
	e := NewEngine(nil, nil, 0)
	state := NewState(g.StartID())
	if _, err := e.Advance(context.Background(), g, state, ""); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	before := state.Clone()
	outputs, err := e.Advance(context.Background(), g, state, "   ")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if outputs != nil {
		t.Fatalf("expected no outputs, got %+v", outputs)
	}
	if !reflect.DeepEqual(state.Context, before.Context) || state.CurrentNodeID != before.CurrentNodeID {
		t.Fatal("state changed on an empty message")
	}
}

func TestAdvanceNoMatchingEdge(t *testing.T) {
	// same graph without the default edge
	def := `{
		"nodes": [
			{"id": "start", "type": "START"},
			{"id": "ask", "type": "MESSAGE", "content": "Qual procedimento?", "awaits_input": true},
			{"id": "triage", "type": "CONDITION", "expression": "input"},
			{"id": "acup", "type": "MESSAGE", "content": "Acupuntura."}
		],
		"edges": [
			{"id": "e1", "source": "start", "target": "ask", "port": "main"},
			{"id": "e2", "source": "ask", "target": "triage", "port": "main"},
			{"id": "e3", "source": "triage", "target": "acup", "port": "acupuntura", "condition": "acupuntura"}
		]
	}`
	g := mustGraph(t, def)
	e := NewEngine(nil, nil, 0)
	state := NewState(g.StartID())
	if _, err := e.Advance(context.Background(), g, state, ""); err != nil {
		t.Fatalf("first turn: %v", err)
	}

	_, err := e.Advance(context.Background(), g, state, "quero outra coisa")
	if !errors.Is(err, ErrNoMatchingEdge) {
		t.Fatalf("err = %v, want ErrNoMatchingEdge", err)
	}
}

func TestAdvanceLoopGuardRestoresState(t *testing.T) {
	def := `{
		"nodes": [
			{"id": "start", "type": "START"},
			{"id": "m1", "type": "MESSAGE", "content": "oi"},
			{"id": "c1", "type": "CONDITION", "expression": "context.flag"}
		],
		"edges": [
			{"id": "e1", "source": "start", "target": "m1", "port": "main"},
			{"id": "e2", "source": "m1", "target": "c1", "port": "main"},
			{"id": "e3", "source": "c1", "target": "m1", "port": "loop", "condition": "loop"}
		]
	}`
	g := mustGraph(t, def)
	e := NewEngine(nil, nil, 7)
	state := NewState(g.StartID())
	state.Context["flag"] = "loop"
	before := state.Clone()

	_, err := e.Advance(context.Background(), g, state, "oi")
	if !errors.Is(err, ErrWorkflowLoop) {
		t.Fatalf("err = %v, want ErrWorkflowLoop", err)
	}
	if state.CurrentNodeID != before.CurrentNodeID || state.AwaitingInput != before.AwaitingInput {
		t.Fatalf("cursor not restored: %q awaiting=%v", state.CurrentNodeID, state.AwaitingInput)
	}
	if !reflect.DeepEqual(state.Context, before.Context) {
		t.Fatalf("context not restored: %+v", state.Context)
	}
}

func TestAdvanceActionFailureKeepsCursor(t *testing.T) {
	def := `{
		"nodes": [
			{"id": "start", "type": "START"},
			{"id": "quote", "type": "ACTION", "action": "price_quote", "output_key": "quote"},
			{"id": "done", "type": "MESSAGE", "content": "Valor: {{quote}}"}
		],
		"edges": [
			{"id": "e1", "source": "start", "target": "quote", "port": "main"},
			{"id": "e2", "source": "quote", "target": "done", "port": "main"}
		]
	}`
	g := mustGraph(t, def)

	boom := errors.New("price backend down")
	actions := &fakeActions{executeFunc: func(ctx context.Context, name string, params map[string]string, convContext map[string]any) (any, error) {
		return nil, boom
	}}
	e := NewEngine(nil, actions, 0)
	state := NewState(g.StartID())

	_, err := e.Advance(context.Background(), g, state, "")
	var nodeErr *NodeExecutionError
	if !errors.As(err, &nodeErr) {
		t.Fatalf("err = %v, want *NodeExecutionError", err)
	}
	if nodeErr.NodeID != "quote" || !errors.Is(err, boom) {
		t.Fatalf("unexpected node error: %+v", nodeErr)
	}
	if state.CurrentNodeID != "quote" {
		t.Fatalf("cursor moved past the failing node: %q", state.CurrentNodeID)
	}

	// the node retries once the backend recovers
	actions.executeFunc = func(ctx context.Context, name string, params map[string]string, convContext map[string]any) (any, error) {
		return "R$ 150,00", nil
	}
	outputs, err := e.Advance(context.Background(), g, state, "")
	if err != nil {
		t.Fatalf("retry turn: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Text != "Valor: R$ 150,00" {
		t.Fatalf("outputs = %+v", outputs)
	}
}

func TestAdvanceClassifyRunsOnResume(t *testing.T) {
	def := `{
		"nodes": [
			{"id": "start", "type": "START"},
			{"id": "ai", "type": "AI_RESPONSE", "mode": "classify", "content": "Classifique: {{input}}", "output_key": "intent", "awaits_input": true},
			{"id": "sched", "type": "MESSAGE", "content": "Vamos agendar."},
			{"id": "talk", "type": "MESSAGE", "content": "Como posso ajudar?"}
		],
		"edges": [
			{"id": "e1", "source": "start", "target": "ai", "port": "main"},
			{"id": "e2", "source": "ai", "target": "sched", "port": "agendar", "condition": "agendar"},
			{"id": "e3", "source": "ai", "target": "talk", "port": "default"}
		]
	}`
	g := mustGraph(t, def)

	var prompts []string
	llm := &fakeLLM{classifyFunc: func(ctx context.Context, prompt string, vars map[string]any) (string, error) {
		prompts = append(prompts, prompt)
		if len(prompts) == 1 {
			return "conversa", nil
		}
		return " Agendar ", nil
	}}
	e := NewEngine(llm, nil, 0)
	state := NewState(g.StartID())

	// visit: classify runs, then the node awaits the patient's answer
	if _, err := e.Advance(context.Background(), g, state, "oi"); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if state.CurrentNodeID != "ai" || !state.AwaitingInput {
		t.Fatalf("expected ai node awaiting, got %q awaiting=%v", state.CurrentNodeID, state.AwaitingInput)
	}

	// resume: classify runs again on the fresh text and routes
	outputs, err := e.Advance(context.Background(), g, state, "quero marcar consulta")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if state.CurrentNodeID != "sched" {
		t.Fatalf("cursor = %q, want sched", state.CurrentNodeID)
	}
	if len(outputs) != 1 || outputs[0].Text != "Vamos agendar." {
		t.Fatalf("outputs = %+v", outputs)
	}
	if got := state.Context["intent"]; got != "agendar" {
		t.Fatalf("intent token stored as %v", got)
	}
	if prompts[1] != "Classifique: quero marcar consulta" {
		t.Fatalf("resume prompt = %q", prompts[1])
	}
}

func TestAdvanceRespondMode(t *testing.T) {
	def := `{
		"nodes": [
			{"id": "start", "type": "START"},
			{"id": "ai", "type": "AI_RESPONSE", "mode": "respond", "content": "Responda ao paciente", "awaits_input": true}
		],
		"edges": [
			{"id": "e1", "source": "start", "target": "ai", "port": "main"}
		]
	}`
	g := mustGraph(t, def)
	llm := &fakeLLM{respondFunc: func(ctx context.Context, prompt string, vars map[string]any) (string, error) {
		return "Claro! Nossa unidade fica na Av. Djalma Batista.", nil
	}}
	e := NewEngine(llm, nil, 0)
	state := NewState(g.StartID())

	outputs, err := e.Advance(context.Background(), g, state, "onde fica a clínica?")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(outputs) != 1 || outputs[0].Text != "Claro! Nossa unidade fica na Av. Djalma Batista." {
		t.Fatalf("outputs = %+v", outputs)
	}
	if !state.AwaitingInput {
		t.Fatal("respond node with awaits_input should halt the turn")
	}
}

func TestAdvanceRecoversFromMissingCursor(t *testing.T) {
	g := mustGraph(t, triageDef)
	e := NewEngine(nil, nil, 0)
	state := NewState("deleted-node")
	state.AwaitingInput = true

	outputs, err := e.Advance(context.Background(), g, state, "oi")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if state.CurrentNodeID != "ask" {
		t.Fatalf("expected recovery to walk from START to ask, cursor = %q", state.CurrentNodeID)
	}
	if len(outputs) != 1 {
		t.Fatalf("outputs = %+v", outputs)
	}
}

func TestParseDefinitionRejectsBadGraphs(t *testing.T) {
	tests := []struct {
		name string
		def  string
	}{
		{"unknown kind", `{"nodes":[{"id":"a","type":"TELEPORT"}],"edges":[]}`},
		{"no start", `{"nodes":[{"id":"a","type":"MESSAGE"}],"edges":[]}`},
		{"two starts", `{"nodes":[{"id":"a","type":"START"},{"id":"b","type":"START"}],"edges":[]}`},
		{"duplicate id", `{"nodes":[{"id":"a","type":"START"},{"id":"a","type":"MESSAGE"}],"edges":[]}`},
		{"dangling edge target", `{"nodes":[{"id":"a","type":"START"}],"edges":[{"id":"e","source":"a","target":"ghost","port":"main"}]}`},
		{"not json", `{"nodes": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseDefinition([]byte(tt.def)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
