package models

import "time"

// UserInput is one user turn handed to the planner.
type UserInput struct {
	// Query is the user's free-text request, forwarded verbatim to agents.
	Query string `json:"query"`
	// ConversationID is the conversation the turn belongs to.
	ConversationID string `json:"conversation_id"`
	// UserID is the author of the turn.
	UserID string `json:"user_id"`
	// AgentName is set when the user explicitly addressed one agent.
	// When empty the planner selects an agent itself.
	AgentName string `json:"agent_name,omitempty"`
}

// ExecutionPlan is the output of planning for one user turn.
//
// Exactly one of Tasks or GuidanceMessage is meaningful per planning
// round: Tasks is empty whenever GuidanceMessage is set.
type ExecutionPlan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"plan_id"`
	// ConversationID is the conversation the plan was created for.
	ConversationID string `json:"conversation_id"`
	// UserID is the owner of the plan.
	UserID string `json:"user_id"`
	// OrigQuery is the user's original query text.
	OrigQuery string `json:"orig_query"`
	// Tasks is the ordered list of tasks to execute.
	Tasks []*Task `json:"tasks,omitempty"`
	// GuidanceMessage is set instead of tasks when the planner needs
	// clarification or declines the request.
	GuidanceMessage string `json:"guidance_message,omitempty"`
	// CreatedAt is when the plan was produced.
	CreatedAt time.Time `json:"created_at"`
}

// HasGuidance returns true when the plan carries a guidance message
// instead of runnable tasks.
func (p *ExecutionPlan) HasGuidance() bool {
	return p.GuidanceMessage != ""
}
