package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/remote"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/service"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/state"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// fakeClient replays a scripted stream per call.
type fakeClient struct {
	script func(call int) []remote.StreamPair
	calls  atomic.Int32
}

func (c *fakeClient) SendMessage(ctx context.Context, query, conversationID string, metadata map[string]string) (<-chan remote.StreamPair, error) {
	call := int(c.calls.Add(1))
	ch := make(chan remote.StreamPair, 32)
	go func() {
		defer close(ch)
		for _, pair := range c.script(call) {
			select {
			case ch <- pair:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *fakeClient) Close() error { return nil }

func submittedPair(remoteID string) remote.StreamPair {
	return remote.StreamPair{Handle: remote.TaskHandle{ID: remoteID, State: remote.TaskStateSubmitted}}
}

func messagePair(remoteID, text string) remote.StreamPair {
	return remote.StreamPair{
		Handle: remote.TaskHandle{ID: remoteID, State: remote.TaskStateWorking},
		Status: &remote.StatusUpdate{
			State:    remote.TaskStateWorking,
			Message:  &remote.Message{Parts: []remote.MessagePart{{Text: text}}},
			Metadata: map[string]string{remote.MetaResponseEvent: remote.ResponseEventMessage},
		},
	}
}

func completedPair(remoteID string) remote.StreamPair {
	return remote.StreamPair{
		Handle: remote.TaskHandle{ID: remoteID, State: remote.TaskStateCompleted},
		Status: &remote.StatusUpdate{State: remote.TaskStateCompleted},
	}
}

func failedPair(remoteID, reason string) remote.StreamPair {
	return remote.StreamPair{
		Handle: remote.TaskHandle{ID: remoteID, State: remote.TaskStateFailed},
		Status: &remote.StatusUpdate{
			State:   remote.TaskStateFailed,
			Message: &remote.Message{Parts: []remote.MessagePart{{Text: reason}}},
		},
	}
}

type execFixture struct {
	tasks         *service.TaskService
	conversations *service.ConversationService
	connections   *remote.Connections
	emitter       *response.Emitter
	exec          *TaskExecutor
}

func newExecFixture(t *testing.T) *execFixture {
	t.Helper()

	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	conversations := service.NewConversationService(db)
	tasks := service.NewTaskService(db)
	connections := remote.NewConnections(func(agentName string) (remote.Client, error) {
		return nil, fmt.Errorf("no client registered for %s", agentName)
	})
	emitter := response.NewEmitter(conversations, 256)

	return &execFixture{
		tasks:         tasks,
		conversations: conversations,
		connections:   connections,
		emitter:       emitter,
		exec: New(tasks, conversations, connections, emitter,
			WithPollInterval(5*time.Millisecond)),
	}
}

func newPlanTask(agent, title string) *models.Task {
	return &models.Task{
		ID:             "task-" + title,
		ConversationID: "conv-1",
		ThreadID:       "thread-1",
		UserID:         "user-1",
		AgentName:      agent,
		Title:          title,
		Query:          "analyze AAPL",
		Status:         models.TaskStatusPending,
		Pattern:        models.TaskPatternOnce,
		CreatedAt:      time.Now(),
	}
}

func newPlan(tasks ...*models.Task) *models.ExecutionPlan {
	return &models.ExecutionPlan{
		ID:             "plan-1",
		ConversationID: "conv-1",
		UserID:         "user-1",
		OrigQuery:      "analyze AAPL",
		Tasks:          tasks,
		CreatedAt:      time.Now(),
	}
}

func collect(t *testing.T, ch <-chan response.Response) []response.Response {
	t.Helper()
	var got []response.Response
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return got
			}
			got = append(got, r)
		case <-timeout:
			t.Fatal("stream did not close in time")
		}
	}
}

func eventsOf(responses []response.Response) []response.EventType {
	events := make([]response.EventType, len(responses))
	for i, r := range responses {
		events[i] = r.Event
	}
	return events
}

func TestGuidancePlanEmitsOneMessageAndRunsNothing(t *testing.T) {
	fx := newExecFixture(t)

	plan := newPlan()
	plan.GuidanceMessage = "Should I monitor AAPL every hour?"

	got := collect(t, fx.exec.ExecutePlan(context.Background(), plan, "thread-1", nil))

	require.Len(t, got, 1)
	assert.Equal(t, response.EventMessageChunk, got[0].Event)
	assert.Equal(t, plan.GuidanceMessage, got[0].Content)
}

func TestNonScheduledChunksAreRelayedIndividually(t *testing.T) {
	fx := newExecFixture(t)
	fx.connections.Register("valuation_agent", &fakeClient{script: func(int) []remote.StreamPair {
		return []remote.StreamPair{
			submittedPair("remote-1"),
			messagePair("remote-1", "foo"),
			messagePair("remote-1", "bar"),
			messagePair("remote-1", "baz"),
			completedPair("remote-1"),
		}
	}})

	task := newPlanTask("valuation_agent", "a")
	got := collect(t, fx.exec.ExecutePlan(context.Background(), newPlan(task), "thread-1", nil))

	assert.Equal(t, []response.EventType{
		response.EventTaskStarted,
		response.EventMessageChunk,
		response.EventMessageChunk,
		response.EventMessageChunk,
		response.EventTaskCompleted,
	}, eventsOf(got))

	// All three chunks belong to one growing paragraph.
	assert.Equal(t, got[1].ItemID, got[2].ItemID)
	assert.Equal(t, got[2].ItemID, got[3].ItemID)

	stored, err := fx.tasks.Get(task.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.TaskStatusCompleted, stored.Status)
	assert.Equal(t, []string{"remote-1"}, stored.RemoteTaskIDs)

	// The finished paragraph is persisted with the full text.
	items, err := fx.conversations.Items("conv-1")
	require.NoError(t, err)
	var paragraph string
	for _, item := range items {
		if item.ItemID == got[1].ItemID {
			paragraph = item.Payload
		}
	}
	assert.Equal(t, "foobarbaz", paragraph)
}

func TestFailingTaskDoesNotAbortSiblings(t *testing.T) {
	fx := newExecFixture(t)
	fx.connections.Register("risk_agent", &fakeClient{script: func(int) []remote.StreamPair {
		return []remote.StreamPair{
			submittedPair("remote-a"),
			failedPair("remote-a", "upstream data outage"),
		}
	}})
	fx.connections.Register("valuation_agent", &fakeClient{script: func(int) []remote.StreamPair {
		return []remote.StreamPair{
			submittedPair("remote-b"),
			messagePair("remote-b", "all good"),
			completedPair("remote-b"),
		}
	}})

	taskA := newPlanTask("risk_agent", "a")
	taskB := newPlanTask("valuation_agent", "b")
	got := collect(t, fx.exec.ExecutePlan(context.Background(), newPlan(taskA, taskB), "thread-1", nil))

	assert.Equal(t, []response.EventType{
		response.EventTaskStarted,
		response.EventTaskFailed,
		response.EventTaskStarted,
		response.EventMessageChunk,
		response.EventTaskCompleted,
	}, eventsOf(got))

	storedA, err := fx.tasks.Get(taskA.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, storedA.Status)
	assert.Equal(t, "upstream data outage", storedA.ErrorMessage)
	assert.Equal(t, got[1].Content, storedA.ErrorMessage,
		"failure response and task record carry the same reason")

	storedB, err := fx.tasks.Get(taskB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusCompleted, storedB.Status)
}

func TestConnectionFailureFailsOnlyThatTask(t *testing.T) {
	fx := newExecFixture(t)

	task := newPlanTask("unregistered_agent", "a")
	got := collect(t, fx.exec.ExecutePlan(context.Background(), newPlan(task), "thread-1", nil))

	require.Len(t, got, 1)
	assert.Equal(t, response.EventTaskFailed, got[0].Event)

	stored, err := fx.tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, stored.Status)
}

func TestHandoffOpensSubConversationWithPairedCards(t *testing.T) {
	fx := newExecFixture(t)
	fx.connections.Register("filings_agent", &fakeClient{script: func(int) []remote.StreamPair {
		return []remote.StreamPair{
			submittedPair("remote-1"),
			messagePair("remote-1", "10-K summary"),
			completedPair("remote-1"),
		}
	}})

	task := newPlanTask("filings_agent", "a")
	task.HandoffFromSuperAgent = true
	got := collect(t, fx.exec.ExecutePlan(context.Background(), newPlan(task), "thread-1", nil))

	events := eventsOf(got)
	require.Equal(t, []response.EventType{
		response.EventComponentGenerator,
		response.EventThreadStarted,
		response.EventTaskStarted,
		response.EventMessageChunk,
		response.EventTaskCompleted,
		response.EventComponentGenerator,
	}, events)

	start, end := got[0], got[len(got)-1]
	assert.Equal(t, "subagent_conversation", start.ComponentType)
	assert.Equal(t, start.ItemID, end.ItemID,
		"the end card upserts over the start card")
	assert.Contains(t, start.Content, `"state":"start"`)
	assert.Contains(t, end.Content, `"state":"end"`)

	subConvID := start.Metadata["sub_conversation_id"]
	require.NotEmpty(t, subConvID)
	assert.NotEqual(t, "conv-1", subConvID)
	assert.Equal(t, "conv-1", start.ConversationID, "cards belong to the parent conversation")
	assert.Equal(t, subConvID, got[1].ConversationID, "thread start is scoped to the sub-conversation")
	assert.Equal(t, "thread-1", got[1].ThreadID, "the parent thread id is preserved")

	sub, err := fx.conversations.Get(subConvID)
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, "filings_agent", sub.AgentName)

	stored, err := fx.tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, subConvID, stored.ConversationID,
		"the task runs inside the sub-conversation")
}

func TestScheduledTaskDetachesAndCollapsesRunOutput(t *testing.T) {
	fx := newExecFixture(t)
	fx.connections.Register("signals_agent", &fakeClient{script: func(int) []remote.StreamPair {
		return []remote.StreamPair{
			submittedPair("remote-1"),
			messagePair("remote-1", "foo"),
			messagePair("remote-1", "bar"),
			messagePair("remote-1", "baz"),
			completedPair("remote-1"),
		}
	}})

	task := newPlanTask("signals_agent", "a")
	task.Pattern = models.TaskPatternRecurring
	task.Schedule = &models.ScheduleConfig{IntervalMinutes: 60}

	got := collect(t, fx.exec.ExecutePlan(context.Background(), newPlan(task), "thread-1", nil))

	// The planning round ends with the controller card and a done
	// event; the actual run happens asynchronously afterward.
	require.Equal(t, []response.EventType{
		response.EventComponentGenerator,
		response.EventDone,
	}, eventsOf(got))
	assert.Equal(t, "schedule_controller", got[0].ComponentType)

	var result response.Response
	timeout := time.After(5 * time.Second)
	for result.ComponentType != "scheduled_task_result" {
		select {
		case r := <-fx.emitter.Events():
			result = r
		case <-timeout:
			t.Fatal("scheduled run result never arrived on the broadcast")
		}
	}
	assert.Contains(t, result.Content, "foobarbaz",
		"the run's chunks collapse into one result component")

	// Cancelling the task stops the loop within a poll interval.
	_, err := fx.tasks.CancelByID(task.ID)
	require.NoError(t, err)
}
