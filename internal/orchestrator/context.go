package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// StagePlanning is the only explicitly modeled context stage.
const StagePlanning = "planning"

// DefaultContextTimeout bounds how long a planning context may live
// before the cleanup sweep cancels it.
const DefaultContextTimeout = 10 * time.Minute

// planOutcome carries the result of an asynchronous planning round.
type planOutcome struct {
	plan *models.ExecutionPlan
	err  error
}

// ExecutionContext tracks one in-flight asynchronous planning
// operation for a conversation. At most one live context exists per
// conversation at a time.
type ExecutionContext struct {
	// Stage is the lifecycle stage, currently always planning.
	Stage string
	// ConversationID is the owning conversation.
	ConversationID string
	// ThreadID is the thread assigned to this user turn.
	ThreadID string
	// UserID is the user who initiated planning.
	UserID string
	// CreatedAt is when planning started.
	CreatedAt time.Time
	// Metadata is the caller-supplied execution metadata for the turn.
	Metadata map[string]string
	// Input is the original user turn being planned.
	Input models.UserInput

	cancel context.CancelFunc
	result chan planOutcome
}

// Age returns how long the context has existed.
func (c *ExecutionContext) Age(now time.Time) time.Duration {
	return now.Sub(c.CreatedAt)
}

// validate checks that the context may serve the given user now.
// A mismatched user id prevents cross-user interference on a shared
// conversation id.
func (c *ExecutionContext) validate(userID string, now time.Time, timeout time.Duration) error {
	if c == nil {
		return fmt.Errorf("no planning context")
	}
	if c.Stage == "" {
		return fmt.Errorf("planning context has no stage")
	}
	if c.UserID != userID {
		return fmt.Errorf("planning context belongs to another user")
	}
	if c.Age(now) > timeout {
		return fmt.Errorf("planning context expired after %s", timeout)
	}
	return nil
}
