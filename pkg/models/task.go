// Package models defines the shared domain types for the platform.
package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the task is being worked on.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusWaitingInput indicates the task is blocked on user input.
	TaskStatusWaitingInput TaskStatus = "waiting_input"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task failed.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusCancelled indicates the task was cancelled.
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusWaitingInput,
		TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
// Terminal states are permanent: a finished task cannot transition again.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPattern describes how often a task runs.
type TaskPattern string

const (
	// TaskPatternOnce runs the task a single time.
	TaskPatternOnce TaskPattern = "once"
	// TaskPatternRecurring re-runs the task on a schedule.
	TaskPatternRecurring TaskPattern = "recurring"
)

// ScheduleConfig describes when a recurring task re-executes.
// Exactly one of IntervalMinutes or DailyTime is set, never both.
type ScheduleConfig struct {
	// IntervalMinutes re-runs the task every N minutes.
	IntervalMinutes int `json:"interval_minutes,omitempty"`
	// DailyTime re-runs the task at a wall-clock time ("15:04", 24h).
	DailyTime string `json:"daily_time,omitempty"`
}

// Task represents a unit of work assigned to one agent.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"task_id"`
	// ConversationID is the conversation this task belongs to.
	ConversationID string `json:"conversation_id"`
	// ThreadID correlates a multi-task handoff chain within one user turn.
	ThreadID string `json:"thread_id"`
	// UserID is the owner of the task.
	UserID string `json:"user_id"`
	// AgentName is the agent this task is assigned to.
	AgentName string `json:"agent_name"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Query is the text sent to the agent.
	Query string `json:"query"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Pattern is once or recurring.
	Pattern TaskPattern `json:"pattern"`
	// Schedule holds the re-execution schedule for recurring tasks.
	Schedule *ScheduleConfig `json:"schedule_config,omitempty"`
	// RemoteTaskIDs lists remote submissions in order of occurrence.
	RemoteTaskIDs []string `json:"remote_task_ids,omitempty"`
	// ErrorMessage contains the failure reason if the task failed.
	ErrorMessage string `json:"error_message,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when execution began, if it has.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the task reached a terminal state, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// HandoffFromSuperAgent is true when this task represents delegation
	// to an auto-selected sub-agent, which opens a nested conversation.
	HandoffFromSuperAgent bool `json:"handoff_from_super_agent,omitempty"`
}

// IsFinished returns true once the task has reached a terminal state.
// Scheduled-run sleep loops poll this as their cancellation signal.
func (t *Task) IsFinished() bool {
	return t.Status.Terminal()
}

// IsRecurring returns true if the task re-executes on a schedule.
func (t *Task) IsRecurring() bool {
	return t.Pattern == TaskPatternRecurring && t.Schedule != nil
}

// Start transitions the task to running.
// Returns false without mutating if the task is already finished.
func (t *Task) Start(now time.Time) bool {
	if t.IsFinished() {
		return false
	}
	t.Status = TaskStatusRunning
	if t.StartedAt == nil {
		started := now
		t.StartedAt = &started
	}
	return true
}

// Complete transitions the task to completed.
// Returns false without mutating if the task is already finished.
func (t *Task) Complete(now time.Time) bool {
	if t.IsFinished() {
		return false
	}
	t.Status = TaskStatusCompleted
	done := now
	t.CompletedAt = &done
	return true
}

// Fail transitions the task to failed with the given reason.
// Returns false without mutating if the task is already finished.
func (t *Task) Fail(reason string, now time.Time) bool {
	if t.IsFinished() {
		return false
	}
	t.Status = TaskStatusFailed
	t.ErrorMessage = reason
	done := now
	t.CompletedAt = &done
	return true
}

// Cancel transitions the task to cancelled.
// Returns false without mutating if the task is already finished.
func (t *Task) Cancel(now time.Time) bool {
	if t.IsFinished() {
		return false
	}
	t.Status = TaskStatusCancelled
	done := now
	t.CompletedAt = &done
	return true
}

// RecordRemoteTask appends a remote task id to the submission history.
func (t *Task) RecordRemoteTask(remoteID string) {
	t.RemoteTaskIDs = append(t.RemoteTaskIDs, remoteID)
}
