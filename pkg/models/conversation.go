package models

import "time"

// ConversationStatus represents the lifecycle state of a conversation.
type ConversationStatus string

const (
	// ConversationActive indicates the conversation accepts new turns.
	ConversationActive ConversationStatus = "active"
	// ConversationInactive indicates the conversation is closed.
	ConversationInactive ConversationStatus = "inactive"
	// ConversationRequireUserInput indicates planning is blocked on the user.
	ConversationRequireUserInput ConversationStatus = "require_user_input"
)

// Role identifies the author of a conversation item.
type Role string

const (
	// RoleUser marks items written by the user.
	RoleUser Role = "user"
	// RoleAgent marks items written by an agent.
	RoleAgent Role = "agent"
	// RoleSystem marks lifecycle markers written by the platform.
	RoleSystem Role = "system"
)

// Conversation holds persistent metadata for one conversation.
type Conversation struct {
	// ID is the unique identifier for this conversation.
	ID string `json:"conversation_id"`
	// UserID is the owner of the conversation.
	UserID string `json:"user_id"`
	// Title is a short human-readable label.
	Title string `json:"title,omitempty"`
	// AgentName is the agent the conversation is bound to, if any.
	AgentName string `json:"agent_name,omitempty"`
	// Status is the current lifecycle state.
	Status ConversationStatus `json:"status"`
	// CreatedAt is when the conversation was created.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the conversation was last touched.
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationItem is one ordered entry in a conversation.
//
// ItemID is stable across streamed updates to the same logical paragraph
// or component, so the persistence layer upserts by ItemID and a frontend
// can replace-in-place instead of appending.
type ConversationItem struct {
	// ItemID is the upsert key for this item.
	ItemID string `json:"item_id"`
	// Event is the response event kind the item was produced from.
	Event string `json:"event"`
	// ConversationID is the conversation the item belongs to.
	ConversationID string `json:"conversation_id"`
	// ThreadID correlates the item to a handoff chain, if any.
	ThreadID string `json:"thread_id,omitempty"`
	// TaskID correlates the item to a task, if any.
	TaskID string `json:"task_id,omitempty"`
	// Role identifies the author.
	Role Role `json:"role"`
	// Payload is the serialized item content.
	Payload string `json:"payload"`
	// CreatedAt is when the item was first written.
	CreatedAt time.Time `json:"created_at"`
}
