// Package service provides thin persistence-backed services over the
// state store: conversation metadata and items, and task records.
package service

import (
	"fmt"
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/state"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// ConversationService manages conversation metadata and ordered items.
type ConversationService struct {
	db    *state.DB
	clock func() time.Time
}

// NewConversationService creates a service over the given store.
func NewConversationService(db *state.DB) *ConversationService {
	return &ConversationService{db: db, clock: time.Now}
}

// EnsureConversation returns the conversation with the given id,
// creating it for the user if it does not exist yet. Sub-agent
// handoffs rely on this to open their nested conversations.
func (s *ConversationService) EnsureConversation(userID, conversationID, agentName string) (*models.Conversation, error) {
	existing, err := s.db.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock()
	c := &models.Conversation{
		ID:        conversationID,
		UserID:    userID,
		AgentName: agentName,
		Status:    models.ConversationActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.CreateConversation(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the conversation with the given id, or nil.
func (s *ConversationService) Get(conversationID string) (*models.Conversation, error) {
	return s.db.GetConversation(conversationID)
}

// List returns the user's conversations, newest first.
func (s *ConversationService) List(userID string, limit int) ([]models.Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.db.ListConversations(userID, limit)
}

// Activate marks the conversation as accepting new turns.
func (s *ConversationService) Activate(conversationID string) error {
	return s.setStatus(conversationID, models.ConversationActive)
}

// Deactivate closes the conversation.
func (s *ConversationService) Deactivate(conversationID string) error {
	return s.setStatus(conversationID, models.ConversationInactive)
}

// RequireUserInput marks the conversation as blocked on the user.
func (s *ConversationService) RequireUserInput(conversationID string) error {
	return s.setStatus(conversationID, models.ConversationRequireUserInput)
}

func (s *ConversationService) setStatus(conversationID string, status models.ConversationStatus) error {
	return s.db.UpdateConversationStatus(conversationID, status, s.clock().UTC().Format(time.RFC3339Nano))
}

// SetTitle updates the conversation's label.
func (s *ConversationService) SetTitle(conversationID, title string) error {
	return s.db.UpdateConversationTitle(conversationID, title)
}

// Delete removes the conversation, its items, and cancels its tasks so
// any in-flight scheduled runs observe the terminal state.
func (s *ConversationService) Delete(conversationID string, tasks *TaskService) error {
	if tasks != nil {
		if err := tasks.CancelByConversation(conversationID); err != nil {
			return fmt.Errorf("cancel conversation tasks: %w", err)
		}
	}
	return s.db.DeleteConversation(conversationID)
}

// UpsertItem persists one conversation item, replacing any existing
// item with the same id.
func (s *ConversationService) UpsertItem(item models.ConversationItem) error {
	return s.db.UpsertItem(item)
}

// Items returns the conversation's items in creation order.
func (s *ConversationService) Items(conversationID string) ([]models.ConversationItem, error) {
	return s.db.ListItems(conversationID)
}

// RecentHistory returns up to n of the newest items, oldest first.
// The planner reads this to detect schedule confirmations.
func (s *ConversationService) RecentHistory(conversationID string, n int) ([]models.ConversationItem, error) {
	items, err := s.db.ListItems(conversationID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(items) > n {
		items = items[len(items)-n:]
	}
	return items, nil
}
