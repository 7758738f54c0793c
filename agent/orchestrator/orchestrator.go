// Package orchestrator owns the conversation state machine: it routes each
// thread between the planner and the tool executors, pauses before any
// supervised tool, and checkpoints state after every transition so a paused
// thread resumes exactly where it stopped.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/teerapap/storeflow/agent/contract"
	statex "github.com/teerapap/storeflow/agent/state"
	toolx "github.com/teerapap/storeflow/agent/tool"
)

var (
	ErrInvalidThread  = statex.ErrInvalidThread
	ErrInvalidMessage = errors.New("message is empty")
	ErrStepBudget     = errors.New("turn exceeded its planner step budget")
)

// deniedResultFormat mirrors the wording the assistant was tuned against.
const deniedResultFormat = "API call denied by user. Reasoning: '%s'. Continue assisting."

// defaultMaxSteps caps planner dispatches within one turn so a tool loop
// cannot spin forever.
const defaultMaxSteps = 16

type Config struct {
	MaxStepsPerTurn int
}

type Orchestrator struct {
	store    statex.Store
	planner  contractx.Planner
	registry *toolx.Registry

	maxSteps int
	now      func() time.Time
}

func New(store statex.Store, planner contractx.Planner, registry *toolx.Registry, cfg Config) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if planner == nil {
		return nil, errors.New("planner is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}

	maxSteps := cfg.MaxStepsPerTurn
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	return &Orchestrator{
		store:    store,
		planner:  planner,
		registry: registry,
		maxSteps: maxSteps,
		now:      time.Now,
	}, nil
}

// SubmitUserMessage runs one turn: it appends the user message and advances
// the machine until the turn ends or pauses on a supervised tool. A thread
// with an outstanding approval rejects new input.
func (o *Orchestrator) SubmitUserMessage(ctx context.Context, threadID, customerID, text string) (contractx.TurnResult, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return contractx.TurnResult{}, ErrInvalidThread
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return contractx.TurnResult{}, ErrInvalidMessage
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return contractx.TurnResult{}, contractx.ErrMissingCustomer
	}

	conv, err := o.loadOrCreate(ctx, threadID, customerID)
	if err != nil {
		return contractx.TurnResult{}, err
	}
	if conv.IsPaused() {
		return contractx.TurnResult{}, fmt.Errorf("%w: thread=%s", contractx.ErrApprovalPending, threadID)
	}
	if conv.CustomerID != customerID {
		return contractx.TurnResult{}, fmt.Errorf("%w: thread %s belongs to another customer", contractx.ErrValidation, threadID)
	}

	conv.Append(schema.UserMessage(text))
	if err := o.checkpoint(ctx, conv); err != nil {
		return contractx.TurnResult{}, err
	}

	return o.run(ctx, conv)
}

// ResumeApproved continues a paused thread by executing the pending
// supervised tool verbatim.
func (o *Orchestrator) ResumeApproved(ctx context.Context, threadID string) (contractx.TurnResult, error) {
	conv, err := o.loadPaused(ctx, threadID)
	if err != nil {
		return contractx.TurnResult{}, err
	}

	call := conv.Pending.Call
	conv.Pending = nil

	log.Info().
		Str("thread_id", conv.ThreadID).
		Str("tool", call.Function.Name).
		Str("tool_call_id", call.ID).
		Msg("supervised tool approved")

	result := o.registry.Execute(ctx, call, conv.CustomerID)
	conv.Append(result)
	if err := o.checkpoint(ctx, conv); err != nil {
		return contractx.TurnResult{}, err
	}

	return o.run(ctx, conv)
}

// ResumeDenied continues a paused thread without executing the pending tool:
// a synthetic tool result carrying the stated reason is attached to the
// original call id so the planner can replan.
func (o *Orchestrator) ResumeDenied(ctx context.Context, threadID, reason string) (contractx.TurnResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return contractx.TurnResult{}, fmt.Errorf("%w: denial reason is required", contractx.ErrValidation)
	}

	conv, err := o.loadPaused(ctx, threadID)
	if err != nil {
		return contractx.TurnResult{}, err
	}

	call := conv.Pending.Call
	conv.Pending = nil

	log.Info().
		Str("thread_id", conv.ThreadID).
		Str("tool", call.Function.Name).
		Str("tool_call_id", call.ID).
		Msg("supervised tool denied")

	conv.Append(&schema.Message{
		Role:       schema.Tool,
		Content:    fmt.Sprintf(deniedResultFormat, reason),
		ToolCallID: call.ID,
	})
	if err := o.checkpoint(ctx, conv); err != nil {
		return contractx.TurnResult{}, err
	}

	return o.run(ctx, conv)
}

// run drives PLANNING until the turn reaches END or AWAIT_APPROVAL.
func (o *Orchestrator) run(ctx context.Context, conv *statex.Conversation) (contractx.TurnResult, error) {
	for step := 0; step < o.maxSteps; step++ {
		aiMsg, err := o.planner.Plan(ctx, contractx.PlannerRequest{
			CustomerID: conv.CustomerID,
			History:    conv.Messages,
			Now:        o.now(),
		})
		if err != nil {
			return contractx.TurnResult{}, err
		}

		target, call, err := route(aiMsg, o.registry)
		if err != nil {
			// Routing failures abort the turn before the malformed message is
			// persisted; the thread stays at its last checkpoint.
			return contractx.TurnResult{}, err
		}

		conv.Append(aiMsg)

		switch target {
		case routeEnd:
			if err := o.checkpoint(ctx, conv); err != nil {
				return contractx.TurnResult{}, err
			}
			return contractx.TurnResult{Reply: strings.TrimSpace(aiMsg.Content)}, nil

		case routeUnsupervised:
			result := o.registry.Execute(ctx, *call, conv.CustomerID)
			conv.Append(result)
			if err := o.checkpoint(ctx, conv); err != nil {
				return contractx.TurnResult{}, err
			}

		case routeSupervised:
			now := o.now().UTC()
			conv.Pending = &statex.PendingToolCall{Call: *call, RequestedAt: now}
			if err := o.checkpoint(ctx, conv); err != nil {
				return contractx.TurnResult{}, err
			}

			log.Info().
				Str("thread_id", conv.ThreadID).
				Str("tool", call.Function.Name).
				Str("tool_call_id", call.ID).
				Msg("paused for approval")

			return contractx.TurnResult{Pending: pendingDescriptor(conv.ThreadID, *call, now)}, nil
		}
	}

	return contractx.TurnResult{}, fmt.Errorf("%w: max=%d", ErrStepBudget, o.maxSteps)
}

func (o *Orchestrator) loadOrCreate(ctx context.Context, threadID, customerID string) (*statex.Conversation, error) {
	conv, err := o.store.Load(ctx, threadID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, statex.ErrStateNotFound) {
		return nil, err
	}
	return statex.NewConversation(threadID, customerID, o.now()), nil
}

func (o *Orchestrator) loadPaused(ctx context.Context, threadID string) (*statex.Conversation, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, ErrInvalidThread
	}

	conv, err := o.store.Load(ctx, threadID)
	if err != nil {
		if errors.Is(err, statex.ErrStateNotFound) {
			return nil, fmt.Errorf("%w: thread=%s", contractx.ErrNoPendingApproval, threadID)
		}
		return nil, err
	}
	if !conv.IsPaused() {
		return nil, fmt.Errorf("%w: thread=%s", contractx.ErrNoPendingApproval, threadID)
	}
	return conv, nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, conv *statex.Conversation) error {
	conv.Touch(o.now())
	if err := conv.Validate(); err != nil {
		return fmt.Errorf("conversation validation failed: %w", err)
	}
	return o.store.Save(ctx, conv)
}

func pendingDescriptor(threadID string, call schema.ToolCall, requestedAt time.Time) *contractx.PendingApproval {
	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		// Display-only decode; Execute re-parses on resume.
		_ = json.Unmarshal([]byte(raw), &args)
	}
	return &contractx.PendingApproval{
		ThreadID:    threadID,
		ToolCallID:  call.ID,
		Tool:        call.Function.Name,
		Args:        args,
		RequestedAt: requestedAt,
	}
}
