package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/kalebecaldas/zorahapp/config"
	"github.com/kalebecaldas/zorahapp/internal/channel"
	"github.com/kalebecaldas/zorahapp/internal/eventbus"
	"github.com/kalebecaldas/zorahapp/internal/intent"
	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/pkg/cache"
	"github.com/kalebecaldas/zorahapp/internal/repository"
	"github.com/kalebecaldas/zorahapp/internal/workflow"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) SendText(to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *recordingSender) SendTemplate(to, templateName string, params []string) error { return nil }

func (s *recordingSender) SendInteractive(to, body string, options []string) error { return nil }

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type stubLLM struct {
	classifyFunc func(ctx context.Context, prompt string, vars map[string]any) (string, error)
	respondFunc  func(ctx context.Context, prompt string, vars map[string]any) (string, error)
}

func (s *stubLLM) Classify(ctx context.Context, prompt string, vars map[string]any) (string, error) {
	if s.classifyFunc == nil {
		return "", errors.New("classify not configured")
	}
	return s.classifyFunc(ctx, prompt, vars)
}

func (s *stubLLM) Respond(ctx context.Context, prompt string, vars map[string]any) (string, error) {
	if s.respondFunc == nil {
		return "", errors.New("respond not configured")
	}
	return s.respondFunc(ctx, prompt, vars)
}

type testEnv struct {
	svc    *ConversationService
	db     *gorm.DB
	sender *recordingSender
	convs  repository.ConversationRepository
	states repository.ConversationStateRepository
	msgs   repository.MessageRepository
}

const greetingDef = `{
	"nodes": [
		{"id": "start", "type": "START"},
		{"id": "hi", "type": "MESSAGE", "content": "Olá! Como posso ajudar?", "awaits_input": true},
		{"id": "triage", "type": "CONDITION", "expression": "input"},
		{"id": "yes", "type": "MESSAGE", "content": "Perfeito, vamos lá."}
	],
	"edges": [
		{"id": "e1", "source": "start", "target": "hi", "port": "main"},
		{"id": "e2", "source": "hi", "target": "triage", "port": "main"},
		{"id": "e3", "source": "triage", "target": "yes", "port": "sim", "condition": "sim"}
	]
}`

func setupConversationService(t *testing.T, llm *stubLLM) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Clinic{}, &model.Insurance{}, &model.Procedure{}, &model.ProcedurePrice{},
		&model.Patient{}, &model.Conversation{}, &model.ConversationState{},
		&model.Message{}, &model.Workflow{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{}
	cfg.Bot.MaxHopsPerTurn = 50
	cfg.Bot.FallbackMessage = "Desculpe, tive um problema aqui. Pode tentar de novo?"
	cfg.Bot.WaitMessage = "Só um momento."
	cfg.Bot.MinConfidence = 0.6
	cfg.Bot.RateLimitCalls = 10
	cfg.Bot.RateLimitWindow = time.Minute

	workflowRepo := repository.NewWorkflowRepository(db)
	if err := workflowRepo.Create(&model.Workflow{
		Name: "recepção", Kind: "general", IsActive: true, Definition: greetingDef,
	}); err != nil {
		t.Fatalf("seed workflow: %v", err)
	}

	convRepo := repository.NewConversationRepository(db)
	stateRepo := repository.NewConversationStateRepository(db)
	msgRepo := repository.NewMessageRepository(db)

	workflows := NewWorkflowService(workflowRepo, stateRepo, cache.New(time.Minute))
	engine := workflow.NewEngine(llm, nil, cfg.Bot.MaxHopsPerTurn)
	router := intent.NewRouter(
		intent.NewMatcher(), intent.NewAnalyzer(),
		intent.NewRateLimiter(cfg.Bot.RateLimitCalls, cfg.Bot.RateLimitWindow),
		llm, cfg.Bot.MinConfidence, cfg.Bot.WaitMessage,
	)

	sender := &recordingSender{}
	svc := NewConversationService(
		cfg, convRepo, stateRepo, msgRepo, repository.NewPatientRepository(db),
		workflows, engine, router,
		map[string]channel.Sender{channel.WhatsApp: sender},
		eventbus.NewBus(),
	)
	return &testEnv{svc: svc, db: db, sender: sender, convs: convRepo, states: stateRepo, msgs: msgRepo}
}

func inbound(text string) channel.InboundMessage {
	return channel.InboundMessage{
		Channel:   channel.WhatsApp,
		Phone:     "5592999990000",
		Text:      text,
		MessageID: "wamid-" + text,
	}
}

func TestHandleInboundCreatesPatientAndRunsWorkflow(t *testing.T) {
	env := setupConversationService(t, &stubLLM{})

	if err := env.svc.HandleInbound(context.Background(), inbound("oi")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}

	sent := env.sender.texts()
	if len(sent) != 1 || sent[0] != "Olá! Como posso ajudar?" {
		t.Fatalf("sent = %v", sent)
	}

	conv, err := env.convs.FindOpen("5592999990000", channel.WhatsApp)
	if err != nil {
		t.Fatalf("FindOpen: %v", err)
	}
	if conv.Status != model.ConversationStatusBot {
		t.Fatalf("status = %q", conv.Status)
	}

	st, err := env.states.Get(conv.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.CurrentNodeID != "hi" || !st.AwaitingInput {
		t.Fatalf("state = %+v", st)
	}

	msgs, err := env.msgs.GetByConversation(conv.ID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected inbound + outbound messages, got %d", len(msgs))
	}
}

func TestHandleInboundReusesOpenConversation(t *testing.T) {
	env := setupConversationService(t, &stubLLM{})

	if err := env.svc.HandleInbound(context.Background(), inbound("oi")); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if err := env.svc.HandleInbound(context.Background(), inbound("sim")); err != nil {
		t.Fatalf("second message: %v", err)
	}

	convs, err := env.convs.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected one conversation, got %d", len(convs))
	}

	sent := env.sender.texts()
	if len(sent) != 2 || sent[1] != "Perfeito, vamos lá." {
		t.Fatalf("sent = %v", sent)
	}
}

func TestHandleInboundUnmatchedGoesThroughRouter(t *testing.T) {
	// the condition node has no default edge, so an off-script answer
	// falls to the router, which transfers on the atendente keyword
	env := setupConversationService(t, &stubLLM{})

	if err := env.svc.HandleInbound(context.Background(), inbound("oi")); err != nil {
		t.Fatalf("first message: %v", err)
	}
	if err := env.svc.HandleInbound(context.Background(), inbound("quero falar com um atendente")); err != nil {
		t.Fatalf("second message: %v", err)
	}

	conv, err := env.convs.FindOpen("5592999990000", channel.WhatsApp)
	if err != nil {
		t.Fatalf("FindOpen: %v", err)
	}
	if conv.Status != model.ConversationStatusHumanQueue {
		t.Fatalf("status = %q, want human_queue", conv.Status)
	}
	if conv.Queue != intent.QueueSupport {
		t.Fatalf("queue = %q", conv.Queue)
	}
}

func TestHandleInboundBotSilentWhileHuman(t *testing.T) {
	env := setupConversationService(t, &stubLLM{})

	if err := env.svc.HandleInbound(context.Background(), inbound("oi")); err != nil {
		t.Fatalf("first message: %v", err)
	}
	conv, err := env.convs.FindOpen("5592999990000", channel.WhatsApp)
	if err != nil {
		t.Fatalf("FindOpen: %v", err)
	}
	if err := env.svc.Assign(conv.ID, "joana"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	before := len(env.sender.texts())
	if err := env.svc.HandleInbound(context.Background(), inbound("sim")); err != nil {
		t.Fatalf("message while human: %v", err)
	}
	if got := len(env.sender.texts()); got != before {
		t.Fatalf("bot replied while a human owns the conversation (%d -> %d)", before, got)
	}

	// the patient message is still logged for the agent to read
	msgs, err := env.msgs.GetByConversation(conv.ID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.Direction != model.MessageDirectionIn || last.Content != "sim" {
		t.Fatalf("last message = %+v", last)
	}
}

func TestCloseResetsWorkflowState(t *testing.T) {
	env := setupConversationService(t, &stubLLM{})

	if err := env.svc.HandleInbound(context.Background(), inbound("oi")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	conv, err := env.convs.FindOpen("5592999990000", channel.WhatsApp)
	if err != nil {
		t.Fatalf("FindOpen: %v", err)
	}

	if err := env.svc.Close(context.Background(), conv.ID); err != nil {
		t.Fatalf("Close: %v", err)
	}

	closed, err := env.svc.Get(conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if closed.Status != model.ConversationStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("conversation not closed: %+v", closed)
	}

	st, err := env.states.Get(conv.ID)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.CurrentNodeID != "" || st.AwaitingInput {
		t.Fatalf("state not reset: %+v", st)
	}

	// the next message opens a fresh conversation from START
	if err := env.svc.HandleInbound(context.Background(), inbound("oi de novo")); err != nil {
		t.Fatalf("message after close: %v", err)
	}
	convs, err := env.convs.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("expected a second conversation, got %d", len(convs))
	}
}

func TestAgentReply(t *testing.T) {
	env := setupConversationService(t, &stubLLM{})

	if err := env.svc.HandleInbound(context.Background(), inbound("oi")); err != nil {
		t.Fatalf("HandleInbound: %v", err)
	}
	conv, err := env.convs.FindOpen("5592999990000", channel.WhatsApp)
	if err != nil {
		t.Fatalf("FindOpen: %v", err)
	}
	if err := env.svc.Assign(conv.ID, "joana"); err != nil {
		t.Fatalf("Assign: %v", err)
	}

	if err := env.svc.AgentReply(context.Background(), conv.ID, "joana", "Oi, aqui é a Joana da recepção."); err != nil {
		t.Fatalf("AgentReply: %v", err)
	}

	sent := env.sender.texts()
	if sent[len(sent)-1] != "Oi, aqui é a Joana da recepção." {
		t.Fatalf("sent = %v", sent)
	}

	msgs, err := env.msgs.GetByConversation(conv.ID, 0)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	last := msgs[len(msgs)-1]
	if last.Role != "agent" || last.Direction != model.MessageDirectionOut {
		t.Fatalf("agent message not logged: %+v", last)
	}
}
