package executor

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// emptyRunResult is reported when a scheduled run produced no text.
const emptyRunResult = "Task completed without output."

// ScheduledResultAccumulator collapses one scheduled run's streamed
// output into a single result component. A recurring task producing a
// new chat message every run would flood the conversation; each run
// collapses to one summary card instead.
//
// Only created for tasks with a schedule. While active it swallows
// message, reasoning, and tool-call responses (message text is
// concatenated in arrival order, reasoning and tool-call content is
// dropped) and passes every other kind through unchanged.
type ScheduledResultAccumulator struct {
	factory *response.Factory
	task    *models.Task
	text    strings.Builder
	clock   func() time.Time
}

// NewScheduledResultAccumulator creates an accumulator for one run of
// the given scheduled task.
func NewScheduledResultAccumulator(factory *response.Factory, task *models.Task) *ScheduledResultAccumulator {
	return &ScheduledResultAccumulator{
		factory: factory,
		task:    task,
		clock:   time.Now,
	}
}

// Filter intercepts one response. The second return value reports
// whether the response should still be emitted.
func (a *ScheduledResultAccumulator) Filter(r response.Response) (response.Response, bool) {
	switch r.Event {
	case response.EventMessageChunk:
		a.text.WriteString(r.Content)
		return r, false
	case response.EventReasoning, response.EventToolCallStarted, response.EventToolCallCompleted:
		return r, false
	default:
		return r, true
	}
}

// scheduledRunResult is the payload of the consolidated component.
type scheduledRunResult struct {
	Result     string `json:"result"`
	CreateTime string `json:"create_time"`
}

// Finalize produces the consolidated result component for this run.
func (a *ScheduledResultAccumulator) Finalize() response.Response {
	result := a.text.String()
	if result == "" {
		result = emptyRunResult
	}

	payload, _ := json.Marshal(scheduledRunResult{
		Result:     result,
		CreateTime: a.clock().UTC().Format(time.RFC3339),
	})

	return a.factory.Component(a.task.ID, string(payload), "scheduled_task_result",
		map[string]string{"title": a.task.Title})
}
