package executor

import (
	"github.com/zhangtao0212/my-valuecell-sub001/internal/remote"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// SideEffectKind classifies an action the caller must apply.
type SideEffectKind string

// SideEffectFailTask instructs the caller to fail the task with the
// carried reason.
const SideEffectFailTask SideEffectKind = "fail_task"

// SideEffect is one action produced by routing. The router never
// applies effects itself.
type SideEffect struct {
	// Kind selects the action.
	Kind SideEffectKind
	// Reason carries the failure reason for fail-task effects.
	Reason string
}

// RouteResult is the outcome of classifying one status update.
type RouteResult struct {
	// Responses are the zero or more responses to emit, in order.
	Responses []response.Response
	// Done reports that the remote run has ended.
	Done bool
	// SideEffects are actions the caller must apply immediately.
	SideEffects []SideEffect
}

// HandleStatusUpdate classifies one remote status update into responses
// and side effects. It is stateless: the same update always routes the
// same way.
//
// Submitted updates are handled upstream and completed updates carry no
// content; both route to nothing. Working-state heartbeats without a
// recognized response-event tag are silently absorbed.
func HandleStatusUpdate(factory *response.Factory, task *models.Task, update remote.StatusUpdate) RouteResult {
	switch update.State {
	case remote.TaskStateSubmitted, remote.TaskStateCompleted:
		return RouteResult{}

	case remote.TaskStateFailed:
		reason := update.Message.Text()
		if reason == "" {
			reason = "remote task failed"
		}
		return RouteResult{
			Responses:   []response.Response{factory.TaskFailed(task, reason)},
			Done:        true,
			SideEffects: []SideEffect{{Kind: SideEffectFailTask, Reason: reason}},
		}

	case remote.TaskStateWorking:
		return routeWorking(factory, task, update)

	default:
		return RouteResult{}
	}
}

func routeWorking(factory *response.Factory, task *models.Task, update remote.StatusUpdate) RouteResult {
	switch update.ResponseEvent() {
	case remote.ResponseEventToolCallStarted:
		return RouteResult{Responses: []response.Response{
			factory.ToolCallStarted(task.ID, update.Meta(remote.MetaToolCallID), update.Meta(remote.MetaToolName)),
		}}

	case remote.ResponseEventToolCallCompleted:
		return RouteResult{Responses: []response.Response{
			factory.ToolCallCompleted(task.ID,
				update.Meta(remote.MetaToolCallID),
				update.Meta(remote.MetaToolName),
				update.Meta(remote.MetaToolResult)),
		}}

	case remote.ResponseEventReasoningStarted, remote.ResponseEventReasoning, remote.ResponseEventReasoningCompleted:
		return RouteResult{Responses: []response.Response{
			factory.Reasoning(task.ID, update.Message.Text()),
		}}

	case remote.ResponseEventComponentGenerator:
		return RouteResult{Responses: []response.Response{
			factory.Component(task.ID, update.Message.Text(), update.Meta(remote.MetaComponentType), nil),
		}}

	case remote.ResponseEventMessage:
		return RouteResult{Responses: []response.Response{
			factory.MessageChunk(task.ID, update.Message.Text()),
		}}

	default:
		return RouteResult{}
	}
}
