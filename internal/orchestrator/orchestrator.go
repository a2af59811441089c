// Package orchestrator ties planning and execution together per
// conversation: it owns the planning contexts, the clarification
// pause/resume flow, and expiry of abandoned planning sessions.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/executor"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/planner"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/service"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// pendingPollInterval is how often continuePlanning re-checks for a
// pending clarification while waiting for the planning future.
const pendingPollInterval = 100 * time.Millisecond

// Orchestrator is the per-conversation state machine over planning
// and execution.
type Orchestrator struct {
	planner       *planner.Planner
	plans         *planner.PlanService
	executor      *executor.TaskExecutor
	conversations *service.ConversationService
	emitter       *response.Emitter

	mu       sync.Mutex
	contexts map[string]*ExecutionContext

	contextTimeout time.Duration
	newID          func() string
	clock          func() time.Time

	onPlanCreated     func()
	onContextsExpired func(n int)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithContextTimeout overrides the planning context expiry threshold.
func WithContextTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.contextTimeout = d }
}

// WithObservers registers callbacks for successful planning rounds and
// expiry-sweep evictions. Used to feed metrics.
func WithObservers(planCreated func(), contextsExpired func(n int)) Option {
	return func(o *Orchestrator) {
		o.onPlanCreated = planCreated
		o.onContextsExpired = contextsExpired
	}
}

// New creates an Orchestrator.
func New(p *planner.Planner, plans *planner.PlanService, exec *executor.TaskExecutor,
	conversations *service.ConversationService, emitter *response.Emitter, opts ...Option) *Orchestrator {

	o := &Orchestrator{
		planner:        p,
		plans:          plans,
		executor:       exec,
		conversations:  conversations,
		emitter:        emitter,
		contexts:       make(map[string]*ExecutionContext),
		contextTimeout: DefaultContextTimeout,
		newID:          uuid.NewString,
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessMessage handles one user turn. When the conversation is
// blocked on a clarification question, the turn is treated as the
// answer and planning resumes; otherwise a new planning round starts.
// The returned stream carries every response of the turn and closes
// when the turn is fully processed or paused on the user.
func (o *Orchestrator) ProcessMessage(ctx context.Context, input models.UserInput, metadata map[string]string) (<-chan response.Response, error) {
	if input.ConversationID == "" || input.UserID == "" {
		return nil, fmt.Errorf("conversation_id and user_id are required")
	}

	if _, err := o.conversations.EnsureConversation(input.UserID, input.ConversationID, input.AgentName); err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	o.saveUserTurn(input)

	if ec := o.getContext(input.ConversationID); ec != nil && o.plans.HasPendingRequest(input.ConversationID) {
		return o.resumeWithAnswer(ctx, ec, input.UserID, input.Query)
	}

	threadID := o.newID()
	pctx, cancel := context.WithCancel(context.Background())
	ec := &ExecutionContext{
		Stage:          StagePlanning,
		ConversationID: input.ConversationID,
		ThreadID:       threadID,
		UserID:         input.UserID,
		CreatedAt:      o.clock(),
		Metadata:       metadata,
		Input:          input,
		cancel:         cancel,
		result:         make(chan planOutcome, 1),
	}
	o.putContext(ec)
	debugLog("planning started for conversation %s (thread %s, user %s)",
		input.ConversationID, threadID, input.UserID)

	go func() {
		plan, err := o.planner.CreatePlan(pctx, input, threadID)
		ec.result <- planOutcome{plan: plan, err: err}
	}()

	out := make(chan response.Response, 64)
	go o.continuePlanning(ctx, ec, out)
	return out, nil
}

// ResumeConversation delivers the user's clarification answer and
// continues the paused planning round.
func (o *Orchestrator) ResumeConversation(ctx context.Context, conversationID, userID, answer string) (<-chan response.Response, error) {
	ec := o.getContext(conversationID)
	if ec == nil {
		return nil, fmt.Errorf("no planning in progress for conversation %s", conversationID)
	}
	return o.resumeWithAnswer(ctx, ec, userID, answer)
}

func (o *Orchestrator) resumeWithAnswer(ctx context.Context, ec *ExecutionContext, userID, answer string) (<-chan response.Response, error) {
	out := make(chan response.Response, 64)

	if err := ec.validate(userID, o.clock(), o.contextTimeout); err != nil {
		go func() {
			defer close(out)
			o.failContext(ec, err, out)
		}()
		return out, nil
	}

	if err := o.plans.ProvideUserResponse(ec.ConversationID, answer); err != nil {
		close(out)
		return nil, err
	}
	if err := o.conversations.Activate(ec.ConversationID); err != nil {
		log.Printf("[orchestrator] reactivate conversation %s: %v", ec.ConversationID, err)
	}
	debugLog("planning resumed for conversation %s with user answer", ec.ConversationID)

	go o.continuePlanning(ctx, ec, out)
	return out, nil
}

// continuePlanning waits for the planning future, pausing the turn when
// a clarification request appears. The final relayed event for a normal
// completion is a done event.
func (o *Orchestrator) continuePlanning(ctx context.Context, ec *ExecutionContext, out chan response.Response) {
	defer close(out)

	factory := response.NewFactory(ec.ConversationID, ec.ThreadID)
	relay := func(r response.Response) {
		select {
		case out <- r:
		case <-ctx.Done():
		}
	}

	for {
		// A newer turn may have superseded this round. Its successor owns
		// the conversation's bookkeeping now; exit without touching it.
		if o.getContext(ec.ConversationID) != ec {
			debugLog("planning round superseded for conversation %s", ec.ConversationID)
			return
		}

		if err := ec.validate(ec.UserID, o.clock(), o.contextTimeout); err != nil {
			o.failContext(ec, err, out)
			return
		}

		select {
		case outcome := <-ec.result:
			if !o.removeContextIf(ec) {
				debugLog("planning round superseded for conversation %s", ec.ConversationID)
				return
			}

			if outcome.err != nil {
				o.plans.ClearPendingRequest(ec.ConversationID)
				if err := o.conversations.Activate(ec.ConversationID); err != nil {
					log.Printf("[orchestrator] reactivate conversation %s: %v", ec.ConversationID, err)
				}
				relay(o.emitter.Emit(factory.PlanFailed(outcome.err.Error())))
				return
			}

			if o.onPlanCreated != nil {
				o.onPlanCreated()
			}
			for r := range o.executor.ExecutePlan(ctx, outcome.plan, ec.ThreadID, ec.Metadata) {
				relay(r)
			}
			relay(o.emitter.Emit(factory.Done()))
			return

		case <-time.After(pendingPollInterval):
			if o.plans.HasPendingRequest(ec.ConversationID) {
				prompt := o.plans.RequestPrompt(ec.ConversationID)
				if err := o.conversations.RequireUserInput(ec.ConversationID); err != nil {
					log.Printf("[orchestrator] mark conversation %s requires input: %v", ec.ConversationID, err)
				}
				// Planning stays in flight, blocked on the user. The
				// context stays alive for the resume.
				debugLog("planning paused for conversation %s: %q", ec.ConversationID, prompt)
				relay(o.emitter.Emit(factory.PlanRequireUserInput(prompt)))
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// failContext tears down an invalid planning context: the future is
// cancelled, pending requests cleared, the conversation reactivated,
// and a plan-failed event emitted. Recoverable by a new user turn.
func (o *Orchestrator) failContext(ec *ExecutionContext, cause error, out chan response.Response) {
	debugLog("planning context failed for conversation %s: %v", ec.ConversationID, cause)
	if ec.cancel != nil {
		ec.cancel()
	}
	if !o.removeContextIf(ec) {
		// Superseded; the successor round owns the conversation's
		// pending request and status now.
		return
	}
	o.plans.ClearPendingRequest(ec.ConversationID)
	if err := o.conversations.Activate(ec.ConversationID); err != nil {
		log.Printf("[orchestrator] reactivate conversation %s: %v", ec.ConversationID, err)
	}

	factory := response.NewFactory(ec.ConversationID, ec.ThreadID)
	r := o.emitter.Emit(factory.PlanFailed(cause.Error()))
	if out != nil {
		out <- r
	}
}

// CleanupExpiredContexts cancels planning contexts older than maxAge
// and returns how many were evicted. Bounds the lifetime of abandoned
// planning sessions.
func (o *Orchestrator) CleanupExpiredContexts(maxAge time.Duration) int {
	now := o.clock()

	o.mu.Lock()
	var expired []*ExecutionContext
	for id, ec := range o.contexts {
		if ec.Age(now) > maxAge {
			expired = append(expired, ec)
			delete(o.contexts, id)
		}
	}
	o.mu.Unlock()

	for _, ec := range expired {
		if ec.cancel != nil {
			ec.cancel()
		}
		o.plans.ClearPendingRequest(ec.ConversationID)
		if err := o.conversations.Activate(ec.ConversationID); err != nil {
			log.Printf("[orchestrator] reactivate conversation %s: %v", ec.ConversationID, err)
		}
		log.Printf("[orchestrator] evicted expired planning context for conversation %s (age %s)",
			ec.ConversationID, ec.Age(now).Round(time.Second))
	}
	if o.onContextsExpired != nil && len(expired) > 0 {
		o.onContextsExpired(len(expired))
	}
	return len(expired)
}

// StartCleanupLoop sweeps expired contexts on the given interval until
// the context ends.
func (o *Orchestrator) StartCleanupLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.CleanupExpiredContexts(o.contextTimeout)
			}
		}
	}()
}

// HasPlanningContext reports whether a planning round is in flight for
// the conversation.
func (o *Orchestrator) HasPlanningContext(conversationID string) bool {
	return o.getContext(conversationID) != nil
}

func (o *Orchestrator) saveUserTurn(input models.UserInput) {
	item := models.ConversationItem{
		ItemID:         o.newID(),
		Event:          string(response.EventMessageChunk),
		ConversationID: input.ConversationID,
		Role:           models.RoleUser,
		Payload:        input.Query,
		CreatedAt:      o.clock(),
	}
	if err := o.conversations.UpsertItem(item); err != nil {
		log.Printf("[orchestrator] persist user turn failed: %v", err)
	}
}

func (o *Orchestrator) getContext(conversationID string) *ExecutionContext {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.contexts[conversationID]
}

// putContext installs the context, cancelling any previous one for the
// same conversation. At most one live planning context per conversation.
func (o *Orchestrator) putContext(ec *ExecutionContext) {
	o.mu.Lock()
	prev := o.contexts[ec.ConversationID]
	o.contexts[ec.ConversationID] = ec
	o.mu.Unlock()

	if prev != nil && prev.cancel != nil {
		prev.cancel()
		o.plans.ClearPendingRequest(prev.ConversationID)
	}
}

// removeContextIf deletes the context only while it is still the
// installed one for its conversation. A superseded round must never
// evict its successor's context.
func (o *Orchestrator) removeContextIf(ec *ExecutionContext) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.contexts[ec.ConversationID] != ec {
		return false
	}
	delete(o.contexts, ec.ConversationID)
	return true
}
