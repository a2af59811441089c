package executor

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

func accumulatorFixtures() (*ScheduledResultAccumulator, *response.Factory) {
	f := response.NewFactory("conv-1", "thread-1")
	task := &models.Task{
		ID:       "task-1",
		Title:    "Hourly AAPL check",
		Pattern:  models.TaskPatternRecurring,
		Schedule: &models.ScheduleConfig{IntervalMinutes: 60},
	}
	return NewScheduledResultAccumulator(f, task), f
}

func finalizedResult(t *testing.T, r response.Response) string {
	t.Helper()
	var payload scheduledRunResult
	require.NoError(t, json.Unmarshal([]byte(r.Content), &payload))
	return payload.Result
}

func TestAccumulatorCollapsesChunksIntoOneComponent(t *testing.T) {
	acc, f := accumulatorFixtures()

	for _, text := range []string{"foo", "bar", "baz"} {
		_, pass := acc.Filter(f.MessageChunk("task-1", text))
		assert.False(t, pass, "message chunks are swallowed during a scheduled run")
	}

	final := acc.Finalize()
	assert.Equal(t, response.EventComponentGenerator, final.Event)
	assert.Equal(t, "scheduled_task_result", final.ComponentType)
	assert.Equal(t, "Hourly AAPL check", final.Metadata["title"])
	assert.Equal(t, "foobarbaz", finalizedResult(t, final))
}

func TestAccumulatorDropsReasoningAndToolCalls(t *testing.T) {
	acc, f := accumulatorFixtures()

	_, pass := acc.Filter(f.Reasoning("task-1", "thinking"))
	assert.False(t, pass)
	_, pass = acc.Filter(f.ToolCallStarted("task-1", "call-1", "fetch"))
	assert.False(t, pass)
	_, pass = acc.Filter(f.ToolCallCompleted("task-1", "call-1", "fetch", "ok"))
	assert.False(t, pass)

	assert.Equal(t, emptyRunResult, finalizedResult(t, acc.Finalize()),
		"reasoning and tool output must not leak into the result")
}

func TestAccumulatorPassesOtherKindsThrough(t *testing.T) {
	acc, f := accumulatorFixtures()
	task := &models.Task{ID: "task-1", Title: "Hourly AAPL check"}

	_, pass := acc.Filter(f.TaskStarted(task))
	assert.True(t, pass)
	_, pass = acc.Filter(f.Component("task-1", "card", "price_chart", nil))
	assert.True(t, pass)
	_, pass = acc.Filter(f.Notify("task-1", "note"))
	assert.True(t, pass)
}

func TestAccumulatorEmptyRunPlaceholder(t *testing.T) {
	acc, _ := accumulatorFixtures()
	assert.Equal(t, "Task completed without output.", finalizedResult(t, acc.Finalize()))
}
