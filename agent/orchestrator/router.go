package orchestrator

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/teerapap/storeflow/agent/contract"
	toolx "github.com/teerapap/storeflow/agent/tool"
)

type routeTarget int

const (
	routeEnd routeTarget = iota
	routeUnsupervised
	routeSupervised
)

// route is a pure decision over the planner's latest output: end the turn,
// dispatch to the unsupervised executor, or pause for approval. An unknown
// tool name is a hard error, never a silent default to either executor.
func route(msg *schema.Message, registry *toolx.Registry) (routeTarget, *schema.ToolCall, error) {
	if msg == nil {
		return routeEnd, nil, fmt.Errorf("%w: planner returned nil message", contractx.ErrValidation)
	}
	if len(msg.ToolCalls) == 0 {
		return routeEnd, nil, nil
	}

	// Only the first proposed call is honored, even when the model suggests
	// several. Parallel fan-out would need a join step this machine does not
	// have.
	call := msg.ToolCalls[0]
	name := strings.TrimSpace(call.Function.Name)
	if name == "" {
		return routeEnd, nil, fmt.Errorf("%w: tool call %s has no name", contractx.ErrSchemaViolation, call.ID)
	}

	t, ok := registry.Lookup(name)
	if !ok {
		return routeEnd, nil, fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
	}

	if t.Trust == toolx.TrustSupervised {
		return routeSupervised, &call, nil
	}
	return routeUnsupervised, &call, nil
}
