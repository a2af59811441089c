package response

import (
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// Factory constructs response envelopes carrying a fixed
// conversation/thread identity so call sites only supply the payload.
type Factory struct {
	conversationID string
	threadID       string
	clock          func() time.Time
}

// NewFactory creates a Factory bound to a conversation and thread.
func NewFactory(conversationID, threadID string) *Factory {
	return &Factory{
		conversationID: conversationID,
		threadID:       threadID,
		clock:          time.Now,
	}
}

// WithConversation returns a copy of the factory bound to a different
// conversation. Used for sub-agent handoffs, which keep the thread id
// but write into their own conversation.
func (f *Factory) WithConversation(conversationID string) *Factory {
	return &Factory{conversationID: conversationID, threadID: f.threadID, clock: f.clock}
}

// ConversationID returns the conversation the factory is bound to.
func (f *Factory) ConversationID() string { return f.conversationID }

// ThreadID returns the thread the factory is bound to.
func (f *Factory) ThreadID() string { return f.threadID }

func (f *Factory) base(event EventType, taskID string, role models.Role) Response {
	return Response{
		Event:          event,
		ConversationID: f.conversationID,
		ThreadID:       f.threadID,
		TaskID:         taskID,
		Role:           role,
		CreatedAt:      f.clock(),
	}
}

// MessageChunk constructs a buffered agent prose fragment.
func (f *Factory) MessageChunk(taskID, text string) Response {
	r := f.base(EventMessageChunk, taskID, models.RoleAgent)
	r.Content = text
	return r
}

// Reasoning constructs a buffered agent reasoning fragment.
func (f *Factory) Reasoning(taskID, text string) Response {
	r := f.base(EventReasoning, taskID, models.RoleAgent)
	r.Content = text
	return r
}

// ToolCallStarted constructs a tool-call-started response.
func (f *Factory) ToolCallStarted(taskID, callID, name string) Response {
	r := f.base(EventToolCallStarted, taskID, models.RoleAgent)
	r.ToolCallID = callID
	r.ToolName = name
	return r
}

// ToolCallCompleted constructs a tool-call-completed response.
func (f *Factory) ToolCallCompleted(taskID, callID, name, result string) Response {
	r := f.base(EventToolCallCompleted, taskID, models.RoleAgent)
	r.ToolCallID = callID
	r.ToolName = name
	r.ToolResult = result
	return r
}

// Component constructs a structured component response.
// componentType defaults to "unknown" when empty.
func (f *Factory) Component(taskID, content, componentType string, metadata map[string]string) Response {
	if componentType == "" {
		componentType = "unknown"
	}
	r := f.base(EventComponentGenerator, taskID, models.RoleAgent)
	r.Content = content
	r.ComponentType = componentType
	r.Metadata = metadata
	return r
}

// Notify constructs an out-of-band notification response.
func (f *Factory) Notify(taskID, text string) Response {
	r := f.base(EventNotifyMessage, taskID, models.RoleSystem)
	r.Content = text
	return r
}

// TaskStarted reports that the remote agent accepted the task.
func (f *Factory) TaskStarted(task *models.Task) Response {
	r := f.base(EventTaskStarted, task.ID, models.RoleSystem)
	r.Metadata = map[string]string{"title": task.Title, "agent_name": task.AgentName}
	return r
}

// TaskCompleted reports local task completion.
func (f *Factory) TaskCompleted(task *models.Task) Response {
	r := f.base(EventTaskCompleted, task.ID, models.RoleSystem)
	r.Metadata = map[string]string{"title": task.Title}
	return r
}

// TaskFailed reports local task failure with the given reason.
func (f *Factory) TaskFailed(task *models.Task, reason string) Response {
	r := f.base(EventTaskFailed, task.ID, models.RoleSystem)
	r.Content = reason
	r.Metadata = map[string]string{"title": task.Title}
	return r
}

// ThreadStarted marks the beginning of a handoff thread in the
// factory's conversation.
func (f *Factory) ThreadStarted() Response {
	return f.base(EventThreadStarted, "", models.RoleSystem)
}

// PlanRequireUserInput asks the user the given clarification question.
func (f *Factory) PlanRequireUserInput(prompt string) Response {
	r := f.base(EventPlanRequireUserInput, "", models.RoleSystem)
	r.Content = prompt
	return r
}

// PlanFailed reports that planning did not produce a plan.
func (f *Factory) PlanFailed(message string) Response {
	r := f.base(EventPlanFailed, "", models.RoleSystem)
	r.Content = message
	return r
}

// Done marks the end of a fully processed user turn.
func (f *Factory) Done() Response {
	return f.base(EventDone, "", models.RoleSystem)
}
