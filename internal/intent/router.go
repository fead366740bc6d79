// Package intent decides what to do with an inbound message the active
// workflow could not (or should not) handle: keep the graph going,
// answer conversationally, start a flow, or hand off to a human.
package intent

import (
	"context"

	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/internal/pkg/llm"
)

type DecisionKind string

const (
	ContinueWorkflow DecisionKind = "continue_workflow"
	AIConversation   DecisionKind = "ai_conversation"
	TransferToHuman  DecisionKind = "transfer_to_human"
	StartWorkflow    DecisionKind = "start_workflow"
)

// Decision is the router's verdict for one message. Fields beyond Kind
// are populated per kind: Reply for AIConversation, Queue/Reason for
// TransferToHuman, WorkflowKind/SeedContext for StartWorkflow.
type Decision struct {
	Kind         DecisionKind
	Reply        string
	Queue        string
	Reason       string
	WorkflowKind string
	SeedContext  map[string]any
}

// Message is the normalized inbound turn the router classifies.
type Message struct {
	ConversationID uint
	Phone          string
	Text           string
}

// Queues messages can be transferred to.
const (
	QueueReception = "recepcao"
	QueueSupport   = "atendimento"
)

// Router runs the decision pipeline: sentiment check, keyword matcher,
// then (rate limited) LLM classification. All collaborators are
// injected; the router keeps no global state.
type Router struct {
	matcher       *Matcher
	sentiment     *Analyzer
	limiter       *RateLimiter
	llm           llm.Client
	minConfidence float64
	waitMessage   string
}

func NewRouter(matcher *Matcher, sentiment *Analyzer, limiter *RateLimiter, client llm.Client, minConfidence float64, waitMessage string) *Router {
	return &Router{
		matcher:       matcher,
		sentiment:     sentiment,
		limiter:       limiter,
		llm:           client,
		minConfidence: minConfidence,
		waitMessage:   waitMessage,
	}
}

const classifyPrompt = `Classifique a intenção da mensagem do paciente em um destes tokens:
continuar (segue no fluxo atual), agendar (quer marcar consulta),
cadastro (quer se cadastrar), humano (precisa de atendente), conversa (pergunta avulsa).`

const conversationPrompt = `Você é o assistente virtual de uma clínica. Responda a pergunta do
paciente de forma curta e cordial, sem inventar preços nem horários, e
sugira voltar ao atendimento quando fizer sentido.`

// Route classifies one inbound message. It never returns an error to
// the caller for LLM failures; those degrade to ContinueWorkflow so
// the graph (and its own failure handling) stays in charge.
func (r *Router) Route(ctx context.Context, msg Message) Decision {
	// negative sentiment transfers regardless of matched intent
	if r.sentiment.IsNegative(msg.Text) {
		klog.V(6).Infof("router: negative sentiment for conversation %d", msg.ConversationID)
		return Decision{
			Kind:   TransferToHuman,
			Queue:  QueueSupport,
			Reason: "sentimento negativo detectado na mensagem",
		}
	}

	matched, confidence := r.matcher.Match(msg.Text)
	if matched != IntentNone && confidence >= r.minConfidence {
		return r.decisionFor(matched, msg)
	}

	// low confidence: escalate to the LLM, behind the per-user window
	if !r.limiter.Allow(msg.Phone) {
		klog.V(6).Infof("router: LLM rate limit hit for %s", msg.Phone)
		return Decision{Kind: AIConversation, Reply: r.waitMessage}
	}

	token, err := r.llm.Classify(ctx, classifyPrompt, map[string]any{"input": msg.Text})
	if err != nil {
		klog.Warningf("router: LLM classification failed: %v", err)
		return Decision{Kind: ContinueWorkflow}
	}

	switch token {
	case "continuar":
		return Decision{Kind: ContinueWorkflow}
	case "agendar":
		return r.decisionFor(IntentScheduling, msg)
	case "cadastro":
		return r.decisionFor(IntentRegistration, msg)
	case "humano":
		return Decision{
			Kind:   TransferToHuman,
			Queue:  QueueSupport,
			Reason: "classificação de baixa confiança encaminhada para atendente",
		}
	default:
		reply, err := r.llm.Respond(ctx, conversationPrompt, map[string]any{"input": msg.Text})
		if err != nil {
			klog.Warningf("router: LLM reply failed: %v", err)
			return Decision{Kind: ContinueWorkflow}
		}
		return Decision{Kind: AIConversation, Reply: reply}
	}
}

func (r *Router) decisionFor(matched Intent, msg Message) Decision {
	switch matched {
	case IntentLateness:
		return Decision{
			Kind:   TransferToHuman,
			Queue:  QueueReception,
			Reason: "paciente avisou atraso",
		}
	case IntentComplaint:
		return Decision{
			Kind:   TransferToHuman,
			Queue:  QueueSupport,
			Reason: "reclamação identificada",
		}
	case IntentHumanRequest:
		return Decision{
			Kind:   TransferToHuman,
			Queue:  QueueSupport,
			Reason: "paciente pediu atendimento humano",
		}
	case IntentScheduling:
		return Decision{
			Kind:         StartWorkflow,
			WorkflowKind: "scheduling",
			SeedContext:  map[string]any{"input": msg.Text},
		}
	case IntentRegistration:
		return Decision{
			Kind:         StartWorkflow,
			WorkflowKind: "registration",
			SeedContext:  map[string]any{"input": msg.Text},
		}
	default:
		return Decision{Kind: ContinueWorkflow}
	}
}
