package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
)

var (
	ErrInvalidThread = errors.New("thread id is empty")
	ErrNilState      = errors.New("conversation state is nil")
	ErrHistoryTorn   = errors.New("conversation history is inconsistent")
)

// Conversation is the persisted source-of-truth for one chat thread. Messages
// are append-only; Pending is set only while the thread is paused before a
// supervised tool and cleared on resume.
type Conversation struct {
	ThreadID   string `json:"thread_id"`
	CustomerID string `json:"customer_id"`

	Messages []*schema.Message `json:"messages,omitempty"`
	Pending  *PendingToolCall  `json:"pending,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PendingToolCall snapshots the supervised call the thread is paused on.
type PendingToolCall struct {
	Call        schema.ToolCall `json:"call"`
	RequestedAt time.Time       `json:"requested_at"`
}

func NewConversation(threadID, customerID string, now time.Time) *Conversation {
	return &Conversation{
		ThreadID:   threadID,
		CustomerID: customerID,
		UpdatedAt:  now.UTC(),
	}
}

func (c *Conversation) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

func (c *Conversation) Append(msg *schema.Message) {
	if msg == nil {
		return
	}
	c.Messages = append(c.Messages, msg)
}

// Last returns the newest message, or nil for an empty thread.
func (c *Conversation) Last() *schema.Message {
	if c == nil || len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

func (c *Conversation) IsPaused() bool {
	return c != nil && c.Pending != nil
}

// Validate enforces the structural invariants a resumed thread relies on:
// a pending call must reference a call proposed by the newest assistant
// message, and a non-pending thread must not end on an unanswered tool call.
func (c *Conversation) Validate() error {
	if c == nil {
		return ErrNilState
	}
	if strings.TrimSpace(c.ThreadID) == "" {
		return ErrInvalidThread
	}

	last := c.Last()
	if c.Pending != nil {
		if last == nil || last.Role != schema.Assistant || len(last.ToolCalls) == 0 {
			return fmt.Errorf("%w: pending approval without a proposing assistant message", ErrHistoryTorn)
		}
		if last.ToolCalls[0].ID != c.Pending.Call.ID {
			return fmt.Errorf("%w: pending call id=%s does not match last proposal id=%s",
				ErrHistoryTorn, c.Pending.Call.ID, last.ToolCalls[0].ID)
		}
		return nil
	}

	for i, msg := range c.Messages {
		if msg == nil {
			return fmt.Errorf("%w: nil message at index %d", ErrHistoryTorn, i)
		}
		if msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
			continue
		}
		// Only the first proposed call is honored; it needs a result before
		// the planner may run again.
		if i == len(c.Messages)-1 {
			return fmt.Errorf("%w: tool call %s has no result", ErrHistoryTorn, msg.ToolCalls[0].ID)
		}
		next := c.Messages[i+1]
		if next == nil || next.Role != schema.Tool || next.ToolCallID != msg.ToolCalls[0].ID {
			return fmt.Errorf("%w: tool call %s is not followed by its result", ErrHistoryTorn, msg.ToolCalls[0].ID)
		}
	}
	return nil
}
