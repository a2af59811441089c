// Package response defines the typed response envelopes streamed to
// clients and the buffering layer that turns high-frequency stream
// events into stable conversation items.
package response

import (
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// EventType is the closed set of response event kinds.
// Routing decisions key off the kind, never off content.
type EventType string

const (
	// EventMessageChunk is a fragment of streamed agent prose.
	EventMessageChunk EventType = "message_chunk"
	// EventReasoning is a fragment of streamed agent reasoning.
	EventReasoning EventType = "reasoning"
	// EventToolCallStarted reports a tool invocation beginning.
	EventToolCallStarted EventType = "tool_call_started"
	// EventToolCallCompleted reports a tool invocation finishing.
	EventToolCallCompleted EventType = "tool_call_completed"
	// EventComponentGenerator carries a structured UI component payload.
	EventComponentGenerator EventType = "component_generator"
	// EventNotifyMessage is an out-of-band notification to the user.
	EventNotifyMessage EventType = "notify_message"
	// EventTaskStarted reports that a remote agent accepted a task.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted reports local task completion.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed reports local task failure.
	EventTaskFailed EventType = "task_failed"
	// EventThreadStarted marks the beginning of a handoff thread.
	EventThreadStarted EventType = "thread_started"
	// EventPlanRequireUserInput asks the user a clarification question.
	EventPlanRequireUserInput EventType = "plan_require_user_input"
	// EventPlanFailed reports that planning could not produce a plan.
	EventPlanFailed EventType = "plan_failed"
	// EventDone marks the end of a fully processed user turn.
	EventDone EventType = "done"
)

// Buffered returns true for kinds that accumulate into a paragraph
// under one stable item id before persistence.
func (e EventType) Buffered() bool {
	switch e {
	case EventMessageChunk, EventReasoning:
		return true
	default:
		return false
	}
}

// Immediate returns true for kinds that write through to persistence
// and act as a paragraph boundary for buffered kinds in the same
// task context.
func (e EventType) Immediate() bool {
	switch e {
	case EventToolCallCompleted, EventComponentGenerator, EventNotifyMessage,
		EventPlanRequireUserInput, EventThreadStarted:
		return true
	default:
		return false
	}
}

// Response is one typed envelope streamed to clients.
type Response struct {
	// Event is the kind of this response.
	Event EventType `json:"event"`
	// ConversationID is the conversation the response belongs to.
	ConversationID string `json:"conversation_id"`
	// ThreadID correlates the response to a handoff chain.
	ThreadID string `json:"thread_id,omitempty"`
	// TaskID correlates the response to a task, if any.
	TaskID string `json:"task_id,omitempty"`
	// ItemID is the stable persistence identity, stamped by the buffer.
	ItemID string `json:"item_id,omitempty"`
	// Role identifies the author of the content.
	Role models.Role `json:"role"`
	// Content is the textual payload.
	Content string `json:"content,omitempty"`
	// ComponentType classifies component payloads ("unknown" if absent).
	ComponentType string `json:"component_type,omitempty"`
	// ToolCallID identifies the tool invocation for tool-call events.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName names the tool for tool-call events.
	ToolName string `json:"tool_name,omitempty"`
	// ToolResult carries the tool output for tool-call-completed events.
	ToolResult string `json:"tool_result,omitempty"`
	// Metadata carries kind-specific annotations (e.g. a task title).
	Metadata map[string]string `json:"metadata,omitempty"`
	// CreatedAt is when the response was constructed.
	CreatedAt time.Time `json:"created_at"`
}
