// Package remote implements the client side of the remote agent
// protocol: typed stream events, a websocket transport, and a
// connection pool keyed by agent name.
package remote

import (
	"context"
	"strings"
)

// TaskState is the remote task lifecycle state reported by an agent.
type TaskState string

const (
	// TaskStateSubmitted means the agent accepted the work.
	TaskStateSubmitted TaskState = "submitted"
	// TaskStateWorking means the agent is producing output.
	TaskStateWorking TaskState = "working"
	// TaskStateCompleted means the remote task finished successfully.
	TaskStateCompleted TaskState = "completed"
	// TaskStateFailed means the remote task failed.
	TaskStateFailed TaskState = "failed"
)

// Metadata keys carried on status updates.
const (
	// MetaResponseEvent classifies a working-state update.
	MetaResponseEvent = "response_event"
	// MetaToolCallID identifies a tool invocation.
	MetaToolCallID = "tool_call_id"
	// MetaToolName names the invoked tool.
	MetaToolName = "tool_name"
	// MetaToolResult carries the tool output.
	MetaToolResult = "tool_result"
	// MetaComponentType classifies a component-generator payload.
	MetaComponentType = "component_type"
)

// Response-event tags recognized on working-state updates.
const (
	ResponseEventToolCallStarted    = "tool_call_started"
	ResponseEventToolCallCompleted  = "tool_call_completed"
	ResponseEventReasoningStarted   = "reasoning_started"
	ResponseEventReasoning          = "reasoning_in_progress"
	ResponseEventReasoningCompleted = "reasoning_completed"
	ResponseEventComponentGenerator = "component_generator"
	ResponseEventMessage            = "message"
)

// MessagePart is one text fragment of a composite message body.
type MessagePart struct {
	// Text is the fragment content.
	Text string `json:"text"`
}

// Message is a possibly composite message body.
type Message struct {
	// Parts lists the fragments in order.
	Parts []MessagePart `json:"parts"`
}

// Text concatenates all text parts of the message.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range m.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// TaskHandle identifies a remote task and its current state.
type TaskHandle struct {
	// ID is the remote task id assigned by the agent.
	ID string `json:"id"`
	// State is the remote lifecycle state.
	State TaskState `json:"state"`
}

// StatusUpdate is the primary content channel of the protocol.
type StatusUpdate struct {
	// State is the remote lifecycle state at this update.
	State TaskState `json:"state"`
	// Message is the optional composite body.
	Message *Message `json:"message,omitempty"`
	// Metadata carries the response-event tag and tool/component fields.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ResponseEvent returns the response-event tag, or "" if absent.
func (s *StatusUpdate) ResponseEvent() string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata[MetaResponseEvent]
}

// Meta returns the metadata value for key, or "" if absent.
func (s *StatusUpdate) Meta(key string) string {
	if s == nil || s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}

// ArtifactUpdate is unused for content in this protocol version.
// Receivers log and skip it.
type ArtifactUpdate struct {
	// Name labels the artifact.
	Name string `json:"name"`
	// Parts lists the artifact fragments.
	Parts []MessagePart `json:"parts"`
}

// StreamPair is one item of a remote response stream: a task handle
// plus at most one of a status update or an artifact update. The first
// pair of a stream may carry a submitted handle and no event.
type StreamPair struct {
	// Handle identifies the remote task.
	Handle TaskHandle `json:"handle"`
	// Status is set for status-update events.
	Status *StatusUpdate `json:"status,omitempty"`
	// Artifact is set for artifact-update events.
	Artifact *ArtifactUpdate `json:"artifact,omitempty"`
}

// Client sends queries to one remote agent and streams back events.
type Client interface {
	// SendMessage submits a query and returns the event stream.
	// The returned channel is closed when the remote stream ends or
	// the context is cancelled.
	SendMessage(ctx context.Context, query, conversationID string, metadata map[string]string) (<-chan StreamPair, error)
	// Close releases the client's resources.
	Close() error
}
