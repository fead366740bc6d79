// Package llm wraps the Eino OpenAI ChatModel behind the two narrow
// calls the bot needs: turn classification and free-text replies.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"k8s.io/klog/v2"

	"github.com/kalebecaldas/zorahapp/config"
)

// Client is what the workflow engine and intent router depend on.
type Client interface {
	// Classify returns a short lowercase token for the turn.
	Classify(ctx context.Context, prompt string, vars map[string]any) (string, error)
	// Respond returns conversational text for the user.
	Respond(ctx context.Context, prompt string, vars map[string]any) (string, error)
}

type einoClient struct {
	chatModel  model.BaseChatModel
	timeout    time.Duration
	maxRetries int
}

func NewClient(cfg *config.Config) (Client, error) {
	mc := &openai.ChatModelConfig{
		APIKey: cfg.LLM.APIKey,
		Model:  cfg.LLM.Model,
	}
	if cfg.LLM.APIURL != "" {
		mc.BaseURL = cfg.LLM.APIURL
	}
	if cfg.LLM.MaxTokens > 0 {
		maxTokens := cfg.LLM.MaxTokens
		mc.MaxTokens = &maxTokens
	}

	cm, err := openai.NewChatModel(context.Background(), mc)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &einoClient{
		chatModel:  cm,
		timeout:    cfg.LLM.Timeout,
		maxRetries: cfg.LLM.MaxRetries,
	}, nil
}

const classifySystemPrompt = "Você é o classificador de intenções do atendimento de uma clínica. " +
	"Responda com um único token em letras minúsculas, sem pontuação e sem explicações."

func (c *einoClient) Classify(ctx context.Context, prompt string, vars map[string]any) (string, error) {
	user := prompt
	if v := varsJSON(vars); v != "" {
		user += "\n\nContexto da conversa: " + v
	}
	out, err := c.generate(ctx, classifySystemPrompt, user)
	if err != nil {
		return "", err
	}
	return firstToken(out), nil
}

func (c *einoClient) Respond(ctx context.Context, prompt string, vars map[string]any) (string, error) {
	user := ""
	if v, ok := vars["input"]; ok {
		user = fmt.Sprint(v)
	}
	if j := varsJSON(vars); j != "" {
		user += "\n\n(Contexto: " + j + ")"
	}
	return c.generate(ctx, prompt, user)
}

// generate issues the chat call with the configured timeout and a
// bounded retry on transient failures.
func (c *einoClient) generate(ctx context.Context, system, user string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(user),
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			klog.Warningf("LLM call retry %d/%d after error: %v", attempt, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		out, err := c.chatModel.Generate(ctx, messages)
		if err == nil {
			return strings.TrimSpace(out.Content), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("LLM request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

// firstToken reduces a model reply to the single token the graph
// matches against ports: first word, lowercased, stripped of quotes
// and trailing punctuation.
func firstToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if fields := strings.Fields(s); len(fields) > 0 {
		s = fields[0]
	}
	return strings.Trim(s, "\"'`.,:;!?")
}

func varsJSON(vars map[string]any) string {
	if len(vars) == 0 {
		return ""
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return ""
	}
	return string(data)
}
