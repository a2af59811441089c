package service

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/state"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

func newServices(t *testing.T) (*ConversationService, *TaskService) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return NewConversationService(db), NewTaskService(db)
}

func seedTask(t *testing.T, tasks *TaskService, id, conversationID string) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:             id,
		ConversationID: conversationID,
		UserID:         "user-1",
		AgentName:      "valuation_agent",
		Query:          "q",
	}
	require.NoError(t, tasks.Create(task))
	return task
}

func TestEnsureConversationIsIdempotent(t *testing.T) {
	conversations, _ := newServices(t)

	first, err := conversations.EnsureConversation("user-1", "conv-1", "valuation_agent")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationActive, first.Status)

	second, err := conversations.EnsureConversation("user-1", "conv-1", "other_agent")
	require.NoError(t, err)
	assert.Equal(t, "valuation_agent", second.AgentName,
		"an existing conversation is returned untouched")
}

func TestCreateDefaultsStatusAndTimestamp(t *testing.T) {
	_, tasks := newServices(t)

	task := seedTask(t, tasks, "task-1", "conv-1")
	assert.Equal(t, models.TaskStatusPending, task.Status)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestTerminalTransitionsAreNoOps(t *testing.T) {
	_, tasks := newServices(t)
	task := seedTask(t, tasks, "task-1", "conv-1")

	ok, err := tasks.Fail(task, "boom")
	require.NoError(t, err)
	require.True(t, ok)

	// A finished task cannot move again, in memory or in the store.
	ok, err = tasks.Complete(task)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = tasks.Start(task)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = tasks.Cancel(task)
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := tasks.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.ErrorMessage)
}

func TestCancelByConversationSparesFinishedTasks(t *testing.T) {
	_, tasks := newServices(t)

	running := seedTask(t, tasks, "task-run", "conv-1")
	_, err := tasks.Start(running)
	require.NoError(t, err)

	done := seedTask(t, tasks, "task-done", "conv-1")
	_, err = tasks.Complete(done)
	require.NoError(t, err)

	seedTask(t, tasks, "task-other", "conv-2")

	require.NoError(t, tasks.CancelByConversation("conv-1"))

	stored, err := tasks.Get("task-run")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, stored.Status)

	stored, err = tasks.Get("task-done")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status,
		"completed stays completed")

	stored, err = tasks.Get("task-other")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, stored.Status,
		"other conversations are untouched")
}

func TestIsFinishedTreatsUnknownAsFinished(t *testing.T) {
	_, tasks := newServices(t)

	assert.True(t, tasks.IsFinished("never-created"))

	task := seedTask(t, tasks, "task-1", "conv-1")
	assert.False(t, tasks.IsFinished("task-1"))

	_, err := tasks.Cancel(task)
	require.NoError(t, err)
	assert.True(t, tasks.IsFinished("task-1"))
}

func TestDeleteConversationCancelsItsTasks(t *testing.T) {
	conversations, tasks := newServices(t)

	_, err := conversations.EnsureConversation("user-1", "conv-1", "")
	require.NoError(t, err)
	task := seedTask(t, tasks, "task-1", "conv-1")
	_, err = tasks.Start(task)
	require.NoError(t, err)

	require.NoError(t, conversations.Delete("conv-1", tasks))

	got, err := conversations.Get("conv-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := tasks.Get("task-1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCancelled, stored.Status,
		"deletion stops in-flight work")
}

func TestRecentHistoryReturnsTailOldestFirst(t *testing.T) {
	conversations, _ := newServices(t)
	base := time.Now()

	for i, payload := range []string{"one", "two", "three", "four"} {
		require.NoError(t, conversations.UpsertItem(models.ConversationItem{
			ItemID:         payload,
			Event:          "message_chunk",
			ConversationID: "conv-1",
			Role:           models.RoleUser,
			Payload:        payload,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	history, err := conversations.RecentHistory("conv-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "three", history[0].Payload)
	assert.Equal(t, "four", history[1].Payload)
}

func TestConversationStatusTransitions(t *testing.T) {
	conversations, _ := newServices(t)
	_, err := conversations.EnsureConversation("user-1", "conv-1", "")
	require.NoError(t, err)

	require.NoError(t, conversations.RequireUserInput("conv-1"))
	got, err := conversations.Get("conv-1")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationRequireUserInput, got.Status)

	require.NoError(t, conversations.Activate("conv-1"))
	got, err = conversations.Get("conv-1")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationActive, got.Status)
}
