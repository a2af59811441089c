package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

const taskColumns = `id, conversation_id, thread_id, user_id, agent_name, title, query,
	status, pattern, schedule_config, remote_task_ids, error_message, handoff,
	created_at, started_at, completed_at`

// CreateTask inserts a new task.
func (db *DB) CreateTask(t *models.Task) error {
	schedule, remoteIDs, err := encodeTaskJSON(t)
	if err != nil {
		return err
	}

	var startedAt, completedAt *string
	if t.StartedAt != nil {
		s := formatTime(*t.StartedAt)
		startedAt = &s
	}
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		completedAt = &s
	}

	_, err = db.Exec(`
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.ConversationID, t.ThreadID, t.UserID, t.AgentName, t.Title, t.Query,
		string(t.Status), string(t.Pattern), schedule, remoteIDs, t.ErrorMessage,
		boolToInt(t.HandoffFromSuperAgent), formatTime(t.CreatedAt), startedAt, completedAt)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by id, or nil if absent.
func (db *DB) GetTask(id string) (*models.Task, error) {
	row := db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTask writes the task's mutable fields.
func (db *DB) UpdateTask(t *models.Task) error {
	schedule, remoteIDs, err := encodeTaskJSON(t)
	if err != nil {
		return err
	}

	var startedAt, completedAt *string
	if t.StartedAt != nil {
		s := formatTime(*t.StartedAt)
		startedAt = &s
	}
	if t.CompletedAt != nil {
		s := formatTime(*t.CompletedAt)
		completedAt = &s
	}

	_, err = db.Exec(`
		UPDATE tasks SET status = ?, schedule_config = ?, remote_task_ids = ?,
			error_message = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`, string(t.Status), schedule, remoteIDs, t.ErrorMessage, startedAt, completedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return nil
}

// ListTasksByConversation returns a conversation's tasks in creation order.
func (db *DB) ListTasksByConversation(conversationID string) ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+` FROM tasks WHERE conversation_id = ? ORDER BY created_at
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by conversation: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// ListActiveRecurringTasks returns recurring tasks that have not
// reached a terminal state.
func (db *DB) ListActiveRecurringTasks() ([]*models.Task, error) {
	rows, err := db.Query(`
		SELECT ` + taskColumns + ` FROM tasks
		WHERE pattern = 'recurring' AND status NOT IN ('completed', 'failed', 'cancelled')
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list active recurring tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func scanTask(scan func(dest ...any) error) (*models.Task, error) {
	var t models.Task
	var threadID, title, schedule, remoteIDs, errorMessage sql.NullString
	var startedAt, completedAt sql.NullString
	var handoff int
	var createdAt string

	err := scan(&t.ID, &t.ConversationID, &threadID, &t.UserID, &t.AgentName, &title, &t.Query,
		&t.Status, &t.Pattern, &schedule, &remoteIDs, &errorMessage, &handoff,
		&createdAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	if threadID.Valid {
		t.ThreadID = threadID.String
	}
	if title.Valid {
		t.Title = title.String
	}
	if schedule.Valid && schedule.String != "" {
		var cfg models.ScheduleConfig
		if err := json.Unmarshal([]byte(schedule.String), &cfg); err == nil {
			t.Schedule = &cfg
		}
	}
	if remoteIDs.Valid && remoteIDs.String != "" {
		json.Unmarshal([]byte(remoteIDs.String), &t.RemoteTaskIDs)
	}
	if errorMessage.Valid {
		t.ErrorMessage = errorMessage.String
	}
	t.HandoffFromSuperAgent = handoff != 0
	t.CreatedAt, _ = parseTime(createdAt)
	t.StartedAt = parseNullableTime(startedAt)
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}

func encodeTaskJSON(t *models.Task) (schedule, remoteIDs string, err error) {
	if t.Schedule != nil {
		b, err := json.Marshal(t.Schedule)
		if err != nil {
			return "", "", fmt.Errorf("marshal schedule: %w", err)
		}
		schedule = string(b)
	}
	if len(t.RemoteTaskIDs) > 0 {
		b, err := json.Marshal(t.RemoteTaskIDs)
		if err != nil {
			return "", "", fmt.Errorf("marshal remote task ids: %w", err)
		}
		remoteIDs = string(b)
	}
	return schedule, remoteIDs, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
