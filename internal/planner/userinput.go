package planner

import (
	"context"
	"fmt"
	"sync"
)

// UserInputRequest is a one-shot handshake for a clarification
// question: the planner blocks on WaitForResponse until another
// goroutine calls ProvideResponse with the user's answer.
type UserInputRequest struct {
	// Prompt is the question shown to the user.
	Prompt string

	respCh chan string
	once   sync.Once
}

// NewUserInputRequest creates a pending request for the given prompt.
func NewUserInputRequest(prompt string) *UserInputRequest {
	return &UserInputRequest{
		Prompt: prompt,
		respCh: make(chan string, 1),
	}
}

// WaitForResponse blocks until an answer arrives or the context ends.
func (r *UserInputRequest) WaitForResponse(ctx context.Context) (string, error) {
	select {
	case answer := <-r.respCh:
		return answer, nil
	case <-ctx.Done():
		return "", fmt.Errorf("waiting for user input: %w", ctx.Err())
	}
}

// ProvideResponse delivers the user's answer. Only the first call has
// any effect.
func (r *UserInputRequest) ProvideResponse(value string) {
	r.once.Do(func() {
		r.respCh <- value
	})
}
