package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/teerapap/storeflow/agent/contract"
)

// TrustClass partitions the registry: unsupervised tools run automatically,
// supervised tools pause the thread for a human decision first.
type TrustClass string

const (
	TrustUnsupervised TrustClass = "unsupervised"
	TrustSupervised   TrustClass = "supervised"
)

// Invocation is what a handler receives: the authenticated customer and the
// decoded tool arguments.
type Invocation struct {
	CustomerID string
	Args       map[string]any
}

type Handler func(ctx context.Context, inv Invocation) (any, error)

// Tool is one closed-registry entry: LLM-facing schema, trust class, effect.
type Tool struct {
	Info    *schema.ToolInfo
	Trust   TrustClass
	Handler Handler
}

// Registry is the static name -> tool mapping. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) error {
	if t.Info == nil || strings.TrimSpace(t.Info.Name) == "" {
		return fmt.Errorf("%w: tool name is required", contractx.ErrValidation)
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: tool %s has no handler", contractx.ErrValidation, t.Info.Name)
	}
	switch t.Trust {
	case TrustUnsupervised, TrustSupervised:
	default:
		return fmt.Errorf("%w: tool %s has invalid trust class %q", contractx.ErrValidation, t.Info.Name, t.Trust)
	}
	if _, exists := r.tools[t.Info.Name]; exists {
		return fmt.Errorf("%w: tool %s registered twice", contractx.ErrValidation, t.Info.Name)
	}
	r.tools[t.Info.Name] = t
	return nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Infos returns the LLM-facing tool definitions in a stable order.
func (r *Registry) Infos() []*schema.ToolInfo {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]*schema.ToolInfo, 0, len(names))
	for _, name := range names {
		infos = append(infos, r.tools[name].Info)
	}
	return infos
}

type errorPayload struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	CustomerID string `json:"customer_id,omitempty"`
	Tool       string `json:"tool,omitempty"`
}

// Execute runs one tool call and always returns a tool-result message bound
// to the call id. Handler failures never escape: they are converted into an
// error payload the planner can read and recover from.
func (r *Registry) Execute(ctx context.Context, call schema.ToolCall, customerID string) *schema.Message {
	name := strings.TrimSpace(call.Function.Name)

	result := func() (any, error) {
		t, ok := r.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
		}

		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool %s: %w", name, err)
			}
		}

		return t.Handler(ctx, Invocation{CustomerID: customerID, Args: args})
	}

	out, err := result()
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Str("tool_call_id", call.ID).Msg("tool execution failed")
		return toolResultMessage(call.ID, errorPayload{
			Status:     "error",
			Message:    err.Error(),
			CustomerID: customerID,
			Tool:       name,
		})
	}

	log.Debug().Str("tool", name).Str("tool_call_id", call.ID).Msg("tool executed")
	return toolResultMessage(call.ID, out)
}

func toolResultMessage(callID string, payload any) *schema.Message {
	content, err := json.Marshal(payload)
	if err != nil {
		content = []byte(fmt.Sprintf(`{"status":"error","message":"encode tool result: %s"}`, err))
	}
	return &schema.Message{
		Role:       schema.Tool,
		Content:    string(content),
		ToolCallID: callID,
	}
}
