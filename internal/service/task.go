package service

import (
	"fmt"
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/state"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// TaskService manages task records and their lifecycle transitions.
// Lifecycle methods return false when the task is already in a
// terminal state, in which case nothing is persisted.
type TaskService struct {
	db    *state.DB
	clock func() time.Time
}

// NewTaskService creates a service over the given store.
func NewTaskService(db *state.DB) *TaskService {
	return &TaskService{db: db, clock: time.Now}
}

// Create persists a new task. A zero status defaults to pending.
func (s *TaskService) Create(t *models.Task) error {
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.clock()
	}
	return s.db.CreateTask(t)
}

// Get returns the task with the given id, or nil.
func (s *TaskService) Get(id string) (*models.Task, error) {
	return s.db.GetTask(id)
}

// Update writes the task's current mutable fields.
func (s *TaskService) Update(t *models.Task) error {
	return s.db.UpdateTask(t)
}

// Start moves the task to running and persists it.
func (s *TaskService) Start(t *models.Task) (bool, error) {
	if !t.Start(s.clock()) {
		return false, nil
	}
	if err := s.db.UpdateTask(t); err != nil {
		return false, fmt.Errorf("persist task start: %w", err)
	}
	return true, nil
}

// Complete moves the task to completed and persists it.
func (s *TaskService) Complete(t *models.Task) (bool, error) {
	if !t.Complete(s.clock()) {
		return false, nil
	}
	if err := s.db.UpdateTask(t); err != nil {
		return false, fmt.Errorf("persist task completion: %w", err)
	}
	return true, nil
}

// Fail moves the task to failed with the given reason and persists it.
func (s *TaskService) Fail(t *models.Task, reason string) (bool, error) {
	if !t.Fail(reason, s.clock()) {
		return false, nil
	}
	if err := s.db.UpdateTask(t); err != nil {
		return false, fmt.Errorf("persist task failure: %w", err)
	}
	return true, nil
}

// Cancel moves the task to cancelled and persists it.
func (s *TaskService) Cancel(t *models.Task) (bool, error) {
	if !t.Cancel(s.clock()) {
		return false, nil
	}
	if err := s.db.UpdateTask(t); err != nil {
		return false, fmt.Errorf("persist task cancellation: %w", err)
	}
	return true, nil
}

// CancelByID cancels the task with the given id if it exists and is
// not already finished.
func (s *TaskService) CancelByID(id string) (bool, error) {
	t, err := s.db.GetTask(id)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	return s.Cancel(t)
}

// CancelByConversation cancels every unfinished task in a conversation.
func (s *TaskService) CancelByConversation(conversationID string) error {
	tasks, err := s.db.ListTasksByConversation(conversationID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if _, err := s.Cancel(t); err != nil {
			return err
		}
	}
	return nil
}

// IsFinished reports whether the stored task has reached a terminal
// state. Scheduled-run sleep loops poll this so that cancellations
// issued elsewhere take effect between runs. Unknown tasks count as
// finished.
func (s *TaskService) IsFinished(id string) bool {
	t, err := s.db.GetTask(id)
	if err != nil || t == nil {
		return true
	}
	return t.IsFinished()
}

// ListByConversation returns a conversation's tasks in creation order.
func (s *TaskService) ListByConversation(conversationID string) ([]*models.Task, error) {
	return s.db.ListTasksByConversation(conversationID)
}

// ActiveRecurring returns recurring tasks that are still live, for
// rescheduling after a restart.
func (s *TaskService) ActiveRecurring() ([]*models.Task, error) {
	return s.db.ListActiveRecurringTasks()
}
