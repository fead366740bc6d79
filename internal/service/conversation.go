package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/config"
	"github.com/kalebecaldas/zorahapp/internal/channel"
	"github.com/kalebecaldas/zorahapp/internal/eventbus"
	"github.com/kalebecaldas/zorahapp/internal/intent"
	"github.com/kalebecaldas/zorahapp/internal/model"
	"github.com/kalebecaldas/zorahapp/internal/repository"
	"github.com/kalebecaldas/zorahapp/internal/workflow"
)

// ConversationService processes inbound messages end to end: patient
// and conversation resolution, message logging, the router/interpreter
// turn, outbound delivery and event publication.
//
// Known gap, kept on purpose: there is no per-conversation lock, so a
// duplicate webhook delivery processed concurrently can race on the
// same conversation's state.
type ConversationService struct {
	cfg           *config.Config
	conversations repository.ConversationRepository
	states        repository.ConversationStateRepository
	messages      repository.MessageRepository
	patients      repository.PatientRepository
	workflows     *WorkflowService
	engine        *workflow.Engine
	router        *intent.Router
	senders       map[string]channel.Sender
	bus           *eventbus.Bus
}

func NewConversationService(
	cfg *config.Config,
	conversations repository.ConversationRepository,
	states repository.ConversationStateRepository,
	messages repository.MessageRepository,
	patients repository.PatientRepository,
	workflows *WorkflowService,
	engine *workflow.Engine,
	router *intent.Router,
	senders map[string]channel.Sender,
	bus *eventbus.Bus,
) *ConversationService {
	return &ConversationService{
		cfg:           cfg,
		conversations: conversations,
		states:        states,
		messages:      messages,
		patients:      patients,
		workflows:     workflows,
		engine:        engine,
		router:        router,
		senders:       senders,
		bus:           bus,
	}
}

// HandleInbound runs one full turn for a normalized inbound message.
func (s *ConversationService) HandleInbound(ctx context.Context, in channel.InboundMessage) error {
	patient, err := s.findOrCreatePatient(in.Phone)
	if err != nil {
		return fmt.Errorf("failed to resolve patient: %w", err)
	}

	conv, err := s.findOrCreateConversation(patient, in.Channel)
	if err != nil {
		return fmt.Errorf("failed to resolve conversation: %w", err)
	}

	if err := s.messages.Create(&model.Message{
		ConversationID: conv.ID,
		ExternalID:     in.MessageID,
		Direction:      model.MessageDirectionIn,
		Channel:        in.Channel,
		Role:           "user",
		Type:           messageType(in),
		Content:        in.Text,
		MediaURL:       in.MediaURL,
	}); err != nil {
		klog.Errorf("failed to log inbound message: %v", err)
	}
	s.publish(ctx, eventbus.Event{
		Type:           eventbus.EventMessageReceived,
		ConversationID: conv.ID,
		Channel:        in.Channel,
		Text:           in.Text,
	})

	// a human owns the conversation: the bot stays silent
	if conv.Status == model.ConversationStatusHuman || conv.Status == model.ConversationStatusHumanQueue {
		klog.V(6).Infof("conversation %d is with a human (%s), bot skipping", conv.ID, conv.Status)
		return nil
	}

	return s.runTurn(ctx, conv, patient, in)
}

func (s *ConversationService) runTurn(ctx context.Context, conv *model.Conversation, patient *model.Patient, in channel.InboundMessage) error {
	stateRec, err := s.states.Get(conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load conversation state: %w", err)
	}
	st, err := engineState(stateRec)
	if err != nil {
		klog.Warningf("conversation %d has corrupt context, resetting: %v", conv.ID, err)
		st = workflow.NewState("")
	}

	g, err := s.graphFor(conv)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// no workflow configured at all: the router is all we have
			decision := s.router.Route(ctx, intent.Message{ConversationID: conv.ID, Phone: patient.Phone, Text: in.Text})
			return s.applyDecision(ctx, conv, patient, stateRec, st, decision, nil)
		}
		return err
	}

	if st.CurrentNodeID == "" {
		st.CurrentNodeID = g.StartID()
	}

	outputs, err := s.engine.Advance(ctx, g, st, in.Text)
	switch {
	case err == nil:
		if err := s.saveState(ctx, conv, stateRec, st); err != nil {
			return err
		}
		s.deliver(ctx, conv, patient, outputs)
		return nil

	case errors.Is(err, workflow.ErrWorkflowLoop):
		// state was restored by the engine; tell the user something
		// went wrong and leave the cursor where it was
		klog.Errorf("conversation %d: %v", conv.ID, err)
		s.deliver(ctx, conv, patient, []workflow.Output{{Text: s.cfg.Bot.FallbackMessage}})
		return nil

	case errors.Is(err, workflow.ErrNoMatchingEdge):
		decision := s.router.Route(ctx, intent.Message{ConversationID: conv.ID, Phone: patient.Phone, Text: in.Text})
		return s.applyDecision(ctx, conv, patient, stateRec, st, decision, outputs)

	default:
		var nodeErr *workflow.NodeExecutionError
		if errors.As(err, &nodeErr) {
			// cursor unmoved; the node retries on the next message
			klog.Errorf("conversation %d: %v", conv.ID, nodeErr)
			if err := s.saveState(ctx, conv, stateRec, st); err != nil {
				return err
			}
			outputs = append(outputs, workflow.Output{Text: s.cfg.Bot.FallbackMessage})
			s.deliver(ctx, conv, patient, outputs)
			return nil
		}
		klog.Errorf("conversation %d: turn failed: %v", conv.ID, err)
		s.deliver(ctx, conv, patient, []workflow.Output{{Text: s.cfg.Bot.FallbackMessage}})
		return nil
	}
}

// applyDecision executes a router verdict. outputs are messages the
// interpreter produced before handing over; they are delivered first.
func (s *ConversationService) applyDecision(
	ctx context.Context,
	conv *model.Conversation,
	patient *model.Patient,
	stateRec *model.ConversationState,
	st *workflow.State,
	decision intent.Decision,
	outputs []workflow.Output,
) error {
	switch decision.Kind {
	case intent.ContinueWorkflow:
		if err := s.saveState(ctx, conv, stateRec, st); err != nil {
			return err
		}
		if len(outputs) == 0 {
			outputs = []workflow.Output{{Text: s.cfg.Bot.FallbackMessage}}
		}
		s.deliver(ctx, conv, patient, outputs)
		return nil

	case intent.AIConversation:
		// conversational detour: workflow position is untouched
		if err := s.saveState(ctx, conv, stateRec, st); err != nil {
			return err
		}
		outputs = append(outputs, workflow.Output{Text: decision.Reply})
		s.deliver(ctx, conv, patient, outputs)
		return nil

	case intent.TransferToHuman:
		if err := s.transfer(ctx, conv, decision.Queue, decision.Reason); err != nil {
			return err
		}
		outputs = append(outputs, workflow.Output{Text: "Certo! Vou te passar para a nossa equipe, só um instante. 💙"})
		s.deliver(ctx, conv, patient, outputs)
		return nil

	case intent.StartWorkflow:
		wf, g, err := s.workflows.FindByKind(decision.WorkflowKind)
		if err != nil {
			klog.Warningf("no %q workflow to start for conversation %d: %v", decision.WorkflowKind, conv.ID, err)
			outputs = append(outputs, workflow.Output{Text: s.cfg.Bot.FallbackMessage})
			s.deliver(ctx, conv, patient, outputs)
			return nil
		}

		conv.WorkflowID = &wf.ID
		if err := s.conversations.Save(conv); err != nil {
			return err
		}

		fresh := workflow.NewState(g.StartID())
		for k, v := range decision.SeedContext {
			fresh.Context[k] = v
		}
		opening, err := s.engine.Advance(ctx, g, fresh, "")
		if err != nil {
			klog.Errorf("conversation %d: failed to open %q workflow: %v", conv.ID, decision.WorkflowKind, err)
			outputs = append(outputs, workflow.Output{Text: s.cfg.Bot.FallbackMessage})
			s.deliver(ctx, conv, patient, outputs)
			return nil
		}
		if err := s.saveState(ctx, conv, stateRec, fresh); err != nil {
			return err
		}
		s.deliver(ctx, conv, patient, append(outputs, opening...))
		return nil

	default:
		return fmt.Errorf("unknown router decision %q", decision.Kind)
	}
}

// deliver sends outputs through the conversation's channel adapter,
// logging each as an outbound bot message. Send failures are logged
// and do not abort the turn.
func (s *ConversationService) deliver(ctx context.Context, conv *model.Conversation, patient *model.Patient, outputs []workflow.Output) {
	if len(outputs) == 0 {
		return
	}
	sender, ok := s.senders[conv.Channel]
	if !ok {
		klog.Errorf("no sender registered for channel %q", conv.Channel)
		return
	}
	for _, out := range outputs {
		if out.Text == "" {
			continue
		}
		if err := sender.SendText(patient.Phone, out.Text); err != nil {
			klog.Errorf("failed to send message on %s to %s: %v", conv.Channel, patient.Phone, err)
			continue
		}
		if err := s.messages.Create(&model.Message{
			ConversationID: conv.ID,
			ExternalID:     uuid.NewString(),
			Direction:      model.MessageDirectionOut,
			Channel:        conv.Channel,
			Role:           "bot",
			Type:           "text",
			Content:        out.Text,
		}); err != nil {
			klog.Errorf("failed to log outbound message: %v", err)
		}
		s.publish(ctx, eventbus.Event{
			Type:           eventbus.EventMessageSent,
			ConversationID: conv.ID,
			Channel:        conv.Channel,
			Text:           out.Text,
		})
	}
}

func (s *ConversationService) findOrCreatePatient(phone string) (*model.Patient, error) {
	patient, err := s.patients.GetByPhone(phone)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	patient = &model.Patient{Phone: phone}
	if err := s.patients.Create(patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *ConversationService) findOrCreateConversation(patient *model.Patient, ch string) (*model.Conversation, error) {
	conv, err := s.conversations.FindOpen(patient.Phone, ch)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	conv = &model.Conversation{
		ExternalID: uuid.NewString(),
		PatientID:  patient.ID,
		Channel:    ch,
		Status:     model.ConversationStatusBot,
	}
	if wf, _, err := s.workflows.ActiveGraph(); err == nil {
		conv.WorkflowID = &wf.ID
	}
	if err := s.conversations.Create(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) graphFor(conv *model.Conversation) (*workflow.Graph, error) {
	if conv.WorkflowID != nil {
		_, g, err := s.workflows.GraphByID(*conv.WorkflowID)
		return g, err
	}
	_, g, err := s.workflows.ActiveGraph()
	return g, err
}

func (s *ConversationService) saveState(ctx context.Context, conv *model.Conversation, rec *model.ConversationState, st *workflow.State) error {
	rec.CurrentNodeID = st.CurrentNodeID
	rec.AwaitingInput = st.AwaitingInput
	if err := rec.SetContextMap(st.Context); err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	if err := s.states.Save(rec); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	s.publish(ctx, eventbus.Event{
		Type:           eventbus.EventStateChanged,
		ConversationID: conv.ID,
		NodeID:         st.CurrentNodeID,
	})
	return nil
}

func (s *ConversationService) transfer(ctx context.Context, conv *model.Conversation, queue, reason string) error {
	conv.Status = model.ConversationStatusHumanQueue
	conv.Queue = queue
	if err := s.conversations.Save(conv); err != nil {
		return err
	}
	klog.V(6).Infof("conversation %d transferred to queue %q: %s", conv.ID, queue, reason)
	s.publish(ctx, eventbus.Event{
		Type:           eventbus.EventConversationTransferred,
		ConversationID: conv.ID,
		Queue:          queue,
		Reason:         reason,
	})
	return nil
}

// Transfer moves a conversation to a human queue (admin API).
func (s *ConversationService) Transfer(ctx context.Context, id uint, queue, reason string) error {
	conv, err := s.conversations.Get(id)
	if err != nil {
		return err
	}
	return s.transfer(ctx, conv, queue, reason)
}

// Assign hands a queued conversation to a named agent.
func (s *ConversationService) Assign(id uint, agent string) error {
	conv, err := s.conversations.Get(id)
	if err != nil {
		return err
	}
	conv.Status = model.ConversationStatusHuman
	conv.AssignedTo = agent
	return s.conversations.Save(conv)
}

// AgentReply sends a human agent's message through the conversation's
// channel and logs it.
func (s *ConversationService) AgentReply(ctx context.Context, id uint, agent, text string) error {
	conv, err := s.conversations.Get(id)
	if err != nil {
		return err
	}
	if conv.Patient == nil {
		return fmt.Errorf("conversation %d has no patient loaded", id)
	}
	sender, ok := s.senders[conv.Channel]
	if !ok {
		return fmt.Errorf("no sender registered for channel %q", conv.Channel)
	}
	if err := sender.SendText(conv.Patient.Phone, text); err != nil {
		return err
	}
	if err := s.messages.Create(&model.Message{
		ConversationID: conv.ID,
		ExternalID:     uuid.NewString(),
		Direction:      model.MessageDirectionOut,
		Channel:        conv.Channel,
		Role:           "agent",
		Type:           "text",
		Content:        text,
	}); err != nil {
		klog.Errorf("failed to log agent message: %v", err)
	}
	s.publish(ctx, eventbus.Event{
		Type:           eventbus.EventMessageSent,
		ConversationID: conv.ID,
		Channel:        conv.Channel,
		Text:           text,
	})
	return nil
}

// Close ends a conversation and clears its workflow state.
func (s *ConversationService) Close(ctx context.Context, id uint) error {
	conv, err := s.conversations.Get(id)
	if err != nil {
		return err
	}
	now := time.Now()
	conv.Status = model.ConversationStatusClosed
	conv.ClosedAt = &now
	if err := s.conversations.Save(conv); err != nil {
		return err
	}
	if err := s.states.Reset(conv.ID); err != nil {
		klog.Errorf("failed to reset state for conversation %d: %v", conv.ID, err)
	}
	s.publish(ctx, eventbus.Event{
		Type:           eventbus.EventStateChanged,
		ConversationID: conv.ID,
	})
	return nil
}

func (s *ConversationService) List(status string) ([]model.Conversation, error) {
	return s.conversations.List(status)
}

func (s *ConversationService) Get(id uint) (*model.Conversation, error) {
	return s.conversations.Get(id)
}

func (s *ConversationService) Messages(id uint, limit int) ([]model.Message, error) {
	return s.messages.GetByConversation(id, limit)
}

func (s *ConversationService) publish(ctx context.Context, event eventbus.Event) {
	if s.bus == nil {
		return
	}
	event.Timestamp = time.Now()
	if err := s.bus.Publish(ctx, event); err != nil {
		klog.V(6).Infof("event %s publish error: %v", event.Type, err)
	}
}

func engineState(rec *model.ConversationState) (*workflow.State, error) {
	ctxMap, err := rec.ContextMap()
	if err != nil {
		return nil, err
	}
	return &workflow.State{
		CurrentNodeID: rec.CurrentNodeID,
		Context:       ctxMap,
		AwaitingInput: rec.AwaitingInput,
	}, nil
}

func messageType(in channel.InboundMessage) string {
	if in.MediaType != "" {
		return in.MediaType
	}
	return "text"
}
