// Package executor drives execution plans to completion: it streams
// remote agent events through the response router and buffer, handles
// sub-agent handoffs, and re-runs scheduled tasks.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/remote"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/service"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// TaskExecutor executes plans against remote agents.
type TaskExecutor struct {
	tasks         *service.TaskService
	conversations *service.ConversationService
	connections   *remote.Connections
	emitter       *response.Emitter

	language     string
	timezone     string
	pollInterval time.Duration

	newID func() string
	clock func() time.Time
}

// Option configures a TaskExecutor.
type Option func(*TaskExecutor)

// WithLocale sets the ambient language and timezone attached to every
// remote invocation.
func WithLocale(language, timezone string) Option {
	return func(e *TaskExecutor) {
		e.language = language
		e.timezone = timezone
	}
}

// WithPollInterval sets the cancellation poll interval for scheduled
// sleeps. Tests use short intervals.
func WithPollInterval(d time.Duration) Option {
	return func(e *TaskExecutor) {
		e.pollInterval = d
	}
}

// New creates a TaskExecutor.
func New(tasks *service.TaskService, conversations *service.ConversationService,
	connections *remote.Connections, emitter *response.Emitter, opts ...Option) *TaskExecutor {

	e := &TaskExecutor{
		tasks:         tasks,
		conversations: conversations,
		connections:   connections,
		emitter:       emitter,
		language:      "en-US",
		timezone:      "UTC",
		pollInterval:  defaultPollInterval,
		newID:         uuid.NewString,
		clock:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecutePlan executes the plan and returns the stream of emitted
// responses for this planning round. The channel closes when the round
// is fully processed; scheduled re-executions continue asynchronously
// afterward and reach clients through the emitter's broadcast only.
func (e *TaskExecutor) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan, threadID string, metadata map[string]string) <-chan response.Response {
	out := make(chan response.Response, 64)

	go func() {
		defer close(out)

		factory := response.NewFactory(plan.ConversationID, threadID)
		relay := func(r response.Response) {
			emitted := e.emitter.Emit(r)
			select {
			case out <- emitted:
			case <-ctx.Done():
			}
		}

		if plan.HasGuidance() {
			relay(factory.MessageChunk("", plan.GuidanceMessage))
			e.emitter.FlushTaskResponse(plan.ConversationID, threadID, "")
			return
		}

		// Tasks run strictly sequentially. One task failing does not
		// abort the remaining tasks.
		for _, task := range plan.Tasks {
			e.runPlanTask(ctx, factory, task, metadata, relay)
		}
	}()

	return out
}

func (e *TaskExecutor) runPlanTask(ctx context.Context, parent *response.Factory, task *models.Task, metadata map[string]string, relay func(response.Response)) {
	factory := parent

	if task.HandoffFromSuperAgent {
		subID := e.newID()
		if _, err := e.conversations.EnsureConversation(task.UserID, subID, task.AgentName); err != nil {
			reason := fmt.Sprintf("open sub-agent conversation: %v", err)
			e.tasks.Fail(task, reason)
			relay(parent.TaskFailed(task, reason))
			return
		}
		task.ConversationID = subID

		// The start and end cards share one item id so the end state
		// upserts over the start card instead of adding a second one.
		cardID := e.newID()
		start := parent.Component(task.ID, subagentCardPayload(task, subID, "start"),
			"subagent_conversation", map[string]string{"sub_conversation_id": subID, "agent_name": task.AgentName})
		start.ItemID = cardID
		relay(start)

		defer func() {
			end := parent.Component(task.ID, subagentCardPayload(task, subID, "end"),
				"subagent_conversation", map[string]string{"sub_conversation_id": subID, "agent_name": task.AgentName})
			end.ItemID = cardID
			relay(end)
		}()

		factory = parent.WithConversation(subID)
		relay(factory.ThreadStarted())
	}

	if err := e.tasks.Create(task); err != nil {
		log.Printf("[executor] persist task %s failed: %v", task.ID, err)
	}

	if err := e.executeTask(ctx, factory, task, metadata, relay); err != nil {
		reason := err.Error()
		e.tasks.Fail(task, reason)
		relay(factory.TaskFailed(task, reason))
	}
}

// executeTask runs one task's state machine. Scheduled tasks emit
// their controller card and a done event, then detach: the recurring
// work must not block the initial response stream.
func (e *TaskExecutor) executeTask(ctx context.Context, factory *response.Factory, task *models.Task, metadata map[string]string, relay func(response.Response)) error {
	defer e.emitter.FlushTaskResponse(factory.ConversationID(), factory.ThreadID(), task.ID)

	if _, err := e.tasks.Start(task); err != nil {
		return err
	}

	if task.IsRecurring() {
		relay(e.scheduleControllerCard(factory, task))
		relay(factory.Done())
		go e.runScheduledLoop(factory, task, metadata)
		return nil
	}

	if err := e.runSingle(ctx, factory, task, metadata, nil, relay); err != nil {
		return err
	}

	if ok, err := e.tasks.Complete(task); err != nil {
		return err
	} else if ok {
		relay(factory.TaskCompleted(task))
	}
	return nil
}

// runScheduledLoop re-executes a recurring task until it is cancelled
// or fails. It runs detached from the planning round, so responses go
// through the emitter broadcast only.
func (e *TaskExecutor) runScheduledLoop(factory *response.Factory, task *models.Task, metadata map[string]string) {
	ctx := context.Background()
	emit := func(r response.Response) { e.emitter.Emit(r) }
	flush := func() {
		e.emitter.FlushTaskResponse(factory.ConversationID(), factory.ThreadID(), task.ID)
	}

	for {
		if task.IsFinished() || e.tasks.IsFinished(task.ID) {
			return
		}

		acc := NewScheduledResultAccumulator(factory, task)
		if err := e.runSingle(ctx, factory, task, metadata, acc, emit); err != nil {
			reason := err.Error()
			if ok, _ := e.tasks.Fail(task, reason); ok {
				emit(factory.TaskFailed(task, reason))
			}
			flush()
			return
		}
		flush()

		if task.IsFinished() {
			return
		}

		delay, err := NextRunDelay(task.Schedule, e.clock())
		if err != nil {
			reason := err.Error()
			if ok, _ := e.tasks.Fail(task, reason); ok {
				emit(factory.TaskFailed(task, reason))
			}
			return
		}

		if !sleepUntilNextRun(ctx, delay, e.pollInterval, func() bool {
			return task.IsFinished() || e.tasks.IsFinished(task.ID)
		}) {
			return
		}
	}
}

// runSingle performs one remote invocation of the task and relays its
// stream. When acc is non-nil, routed responses pass through it before
// emission.
func (e *TaskExecutor) runSingle(ctx context.Context, factory *response.Factory, task *models.Task, metadata map[string]string, acc *ScheduledResultAccumulator, relay func(response.Response)) error {
	client, err := e.connections.GetClient(task.AgentName)
	if err != nil {
		return err
	}

	stream, err := client.SendMessage(ctx, task.Query, task.ConversationID, e.executionMetadata(task, metadata))
	if err != nil {
		return fmt.Errorf("send message to %s: %w", task.AgentName, err)
	}

	emit := func(r response.Response) {
		if acc != nil {
			if _, pass := acc.Filter(r); !pass {
				return
			}
		}
		relay(r)
	}

	for pair := range stream {
		if pair.Status == nil && pair.Artifact == nil {
			if pair.Handle.State == remote.TaskStateSubmitted {
				task.RecordRemoteTask(pair.Handle.ID)
				if err := e.tasks.Update(task); err != nil {
					log.Printf("[executor] record remote task id for %s failed: %v", task.ID, err)
				}
				emit(factory.TaskStarted(task))
			}
			continue
		}

		if pair.Artifact != nil {
			// Artifacts are not a content channel in this protocol
			// version. Log and skip.
			log.Printf("[executor] ignoring artifact update %q for task %s", pair.Artifact.Name, task.ID)
			continue
		}

		result := HandleStatusUpdate(factory, task, *pair.Status)
		for _, effect := range result.SideEffects {
			if effect.Kind == SideEffectFailTask {
				e.tasks.Fail(task, effect.Reason)
			}
		}
		for _, r := range result.Responses {
			emit(r)
		}
		if result.Done {
			break
		}
	}

	if acc != nil {
		relay(acc.Finalize())
	}
	return nil
}

// executionMetadata merges caller metadata with the ambient context.
// Rebuilt on every invocation: a recurring task may run hours apart
// under a different ambient locale.
func (e *TaskExecutor) executionMetadata(task *models.Task, base map[string]string) map[string]string {
	meta := make(map[string]string, len(base)+4)
	for k, v := range base {
		meta[k] = v
	}
	meta["user_id"] = task.UserID
	meta["task_id"] = task.ID
	meta["language"] = e.language
	meta["timezone"] = e.timezone
	return meta
}

// scheduleControllerCard builds the persistent recurring-task card
// shown while a schedule is active.
func (e *TaskExecutor) scheduleControllerCard(factory *response.Factory, task *models.Task) response.Response {
	payload, _ := json.Marshal(map[string]any{
		"task_id":         task.ID,
		"title":           task.Title,
		"schedule_config": task.Schedule,
		"status":          "active",
		"create_time":     e.clock().UTC().Format(time.RFC3339),
	})
	return factory.Component(task.ID, string(payload), "schedule_controller",
		map[string]string{"title": task.Title})
}

func subagentCardPayload(task *models.Task, subConversationID, state string) string {
	payload, _ := json.Marshal(map[string]string{
		"state":               state,
		"agent_name":          task.AgentName,
		"sub_conversation_id": subConversationID,
		"title":               task.Title,
	})
	return string(payload)
}
