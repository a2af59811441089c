package state

import (
	"database/sql"
	"fmt"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// CreateConversation inserts a new conversation.
func (db *DB) CreateConversation(c *models.Conversation) error {
	_, err := db.Exec(`
		INSERT INTO conversations (id, user_id, title, agent_name, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.UserID, c.Title, c.AgentName, string(c.Status), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// GetConversation retrieves a conversation by id, or nil if absent.
func (db *DB) GetConversation(id string) (*models.Conversation, error) {
	row := db.QueryRow(`
		SELECT id, user_id, title, agent_name, status, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id)

	var c models.Conversation
	var title, agentName sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.UserID, &title, &agentName, &c.Status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	if title.Valid {
		c.Title = title.String
	}
	if agentName.Valid {
		c.AgentName = agentName.String
	}
	c.CreatedAt, _ = parseTime(createdAt)
	c.UpdatedAt, _ = parseTime(updatedAt)
	return &c, nil
}

// UpdateConversationStatus sets the status and touches updated_at.
func (db *DB) UpdateConversationStatus(id string, status models.ConversationStatus, updatedAt string) error {
	_, err := db.Exec(`
		UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), updatedAt, id)
	if err != nil {
		return fmt.Errorf("update conversation status: %w", err)
	}
	return nil
}

// UpdateConversationTitle sets the title.
func (db *DB) UpdateConversationTitle(id, title string) error {
	_, err := db.Exec("UPDATE conversations SET title = ? WHERE id = ?", title, id)
	if err != nil {
		return fmt.Errorf("update conversation title: %w", err)
	}
	return nil
}

// DeleteConversation removes a conversation and its items.
func (db *DB) DeleteConversation(id string) error {
	if _, err := db.Exec("DELETE FROM conversation_items WHERE conversation_id = ?", id); err != nil {
		return fmt.Errorf("delete conversation items: %w", err)
	}
	if _, err := db.Exec("DELETE FROM conversations WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// ListConversations lists conversations for a user, newest first.
func (db *DB) ListConversations(userID string, limit int) ([]models.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, user_id, title, agent_name, status, created_at, updated_at
		FROM conversations WHERE user_id = ? ORDER BY updated_at DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var title, agentName sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.UserID, &title, &agentName, &c.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if title.Valid {
			c.Title = title.String
		}
		if agentName.Valid {
			c.AgentName = agentName.String
		}
		c.CreatedAt, _ = parseTime(createdAt)
		c.UpdatedAt, _ = parseTime(updatedAt)
		conversations = append(conversations, c)
	}
	return conversations, nil
}

// UpsertItem writes a conversation item, overwriting any existing row
// with the same item id. Buffered paragraphs re-save under one id as
// they grow, so this must replace, never duplicate.
func (db *DB) UpsertItem(item models.ConversationItem) error {
	_, err := db.Exec(`
		INSERT INTO conversation_items (item_id, event, conversation_id, thread_id, task_id, role, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET payload = excluded.payload, event = excluded.event
	`, item.ItemID, item.Event, item.ConversationID, item.ThreadID, item.TaskID, string(item.Role), item.Payload, formatTime(item.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert item: %w", err)
	}
	return nil
}

// ListItems returns a conversation's items in creation order.
func (db *DB) ListItems(conversationID string) ([]models.ConversationItem, error) {
	rows, err := db.Query(`
		SELECT item_id, event, conversation_id, thread_id, task_id, role, payload, created_at
		FROM conversation_items WHERE conversation_id = ? ORDER BY created_at, item_id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []models.ConversationItem
	for rows.Next() {
		var item models.ConversationItem
		var threadID, taskID, payload sql.NullString
		var createdAt string
		if err := rows.Scan(&item.ItemID, &item.Event, &item.ConversationID, &threadID, &taskID, &item.Role, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if threadID.Valid {
			item.ThreadID = threadID.String
		}
		if taskID.Valid {
			item.TaskID = taskID.String
		}
		if payload.Valid {
			item.Payload = payload.String
		}
		item.CreatedAt, _ = parseTime(createdAt)
		items = append(items, item)
	}
	return items, nil
}
