// Package planner wraps the language-generation step: one call in, either a
// free-text assistant reply or a structured tool-call proposal out.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	contractx "github.com/teerapap/storeflow/agent/contract"
)

// defaultMaxRePrompts bounds the recover-from-empty-output loop. The upstream
// behavior retried forever; a stuck model now fails the turn instead.
const defaultMaxRePrompts = 3

const rePromptInstruction = "Respond with a real output."

type invokeFunc func(ctx context.Context, in map[string]any) (*schema.Message, error)

type Planner struct {
	invoke       invokeFunc
	maxRePrompts int
}

func New(
	ctx context.Context,
	chatModel einomodel.ToolCallingChatModel,
	tools []*schema.ToolInfo,
) (*Planner, error) {
	runner, err := compilePlannerGraph(ctx, chatModel, SystemPrompt(), tools)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return &Planner{
		invoke: func(ctx context.Context, in map[string]any) (*schema.Message, error) {
			return runner.Invoke(ctx, in)
		},
		maxRePrompts: defaultMaxRePrompts,
	}, nil
}

// Plan invokes the model over the full history. Degenerate output (no tool
// calls and no text) is retried with a synthetic correction instruction; a
// valid response is normalized before it enters the conversation state.
func (p *Planner) Plan(ctx context.Context, req contractx.PlannerRequest) (*schema.Message, error) {
	if strings.TrimSpace(req.CustomerID) == "" {
		return nil, contractx.ErrMissingCustomer
	}

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	history := append([]*schema.Message(nil), req.History...)
	for attempt := 0; attempt <= p.maxRePrompts; attempt++ {
		out, err := p.invoke(ctx, map[string]any{
			"user_info": req.CustomerID,
			"time":      now.UTC().Format(time.RFC3339),
			"messages":  history,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: planner invoke: %v", contractx.ErrModelInvoke, err)
		}

		if isDegenerate(out) {
			history = append(history, schema.UserMessage(rePromptInstruction))
			continue
		}
		return normalize(out), nil
	}

	return nil, fmt.Errorf("%w: model produced no usable output after %d re-prompts",
		contractx.ErrModelInvoke, p.maxRePrompts)
}

func isDegenerate(msg *schema.Message) bool {
	if msg == nil {
		return true
	}
	return len(msg.ToolCalls) == 0 && strings.TrimSpace(msg.Content) == ""
}

// normalize forces the assistant role and synthesizes call ids a provider
// omitted, so tool results can always be joined back to their call.
func normalize(msg *schema.Message) *schema.Message {
	msg.Role = schema.Assistant
	for i := range msg.ToolCalls {
		if strings.TrimSpace(msg.ToolCalls[i].ID) == "" {
			msg.ToolCalls[i].ID = "call_" + uuid.NewString()
		}
	}
	return msg
}
