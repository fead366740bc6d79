package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/internal/pricing"
	"github.com/kalebecaldas/zorahapp/internal/repository"
)

// Action names ACTION nodes can reference.
const (
	ActionListProcedures = "list_procedures"
	ActionPriceQuote     = "price_quote"
	ActionWebhook        = "webhook"
)

// ActionService implements workflow.ActionExecutor: the side-effecting
// lookups ACTION nodes run, with results written back into the
// conversation context by the engine.
type ActionService struct {
	insurances repository.InsuranceRepository
	procedures repository.ProcedureRepository
	resolver   *pricing.Resolver
	httpClient *http.Client
}

func NewActionService(
	insurances repository.InsuranceRepository,
	procedures repository.ProcedureRepository,
	resolver *pricing.Resolver,
) *ActionService {
	return &ActionService{
		insurances: insurances,
		procedures: procedures,
		resolver:   resolver,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *ActionService) Execute(ctx context.Context, name string, params map[string]string, convContext map[string]any) (any, error) {
	switch name {
	case ActionListProcedures:
		return s.listProcedures(params, convContext)
	case ActionPriceQuote:
		return s.priceQuote(params, convContext)
	case ActionWebhook:
		return s.callWebhook(ctx, params, convContext)
	default:
		return nil, fmt.Errorf("unknown action %q", name)
	}
}

// listProcedures returns a numbered list of procedures covered by the
// insurance named in the conversation context, ready for template
// interpolation.
func (s *ActionService) listProcedures(params map[string]string, convContext map[string]any) (any, error) {
	code := contextString(convContext, paramOr(params, "insurance_key", "insurance"))
	if code == "" {
		return nil, fmt.Errorf("no insurance selected")
	}

	ins, err := s.insurances.GetByCode(code)
	if err != nil {
		return nil, fmt.Errorf("insurance %q: %w", code, err)
	}

	procs, err := s.procedures.ListByInsurance(ins.ID)
	if err != nil {
		return nil, err
	}
	if len(procs) == 0 {
		procs, err = s.procedures.List()
		if err != nil {
			return nil, err
		}
	}

	var b strings.Builder
	for i, p := range procs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// priceQuote resolves the price for the procedure/insurance/clinic
// codes collected in the conversation context.
func (s *ActionService) priceQuote(params map[string]string, convContext map[string]any) (any, error) {
	procedure := contextString(convContext, paramOr(params, "procedure_key", "procedure"))
	insurance := contextString(convContext, paramOr(params, "insurance_key", "insurance"))
	clinic := contextString(convContext, paramOr(params, "clinic_key", "clinic"))

	if procedure == "" {
		return nil, fmt.Errorf("no procedure selected")
	}

	res, err := s.resolver.Resolve(procedure, insurance, clinic)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return "não encontrei esse procedimento na nossa tabela", nil
	}

	text := fmt.Sprintf("%s: R$ %.2f", res.ProcedureName, res.PatientPays)
	if res.PackageDescription != "" {
		text += " (" + res.PackageDescription + ")"
	}
	return text, nil
}

// callWebhook POSTs the conversation context to the URL in params,
// used for integrations like scheduling systems.
func (s *ActionService) callWebhook(ctx context.Context, params map[string]string, convContext map[string]any) (any, error) {
	url := params["url"]
	if url == "" {
		return nil, fmt.Errorf("webhook action has no url param")
	}

	data, err := json.Marshal(convContext)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	klog.V(6).Infof("webhook action posted to %s", url)
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		// empty or non-JSON bodies are fine
		return "ok", nil
	}
	return result, nil
}

func contextString(convContext map[string]any, key string) string {
	if v, ok := convContext[key]; ok {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func paramOr(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return fallback
}
