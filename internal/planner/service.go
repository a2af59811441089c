package planner

import (
	"fmt"
	"sync"
)

// PlanService tracks pending clarification requests per conversation.
// At most one request is pending per conversation at a time.
type PlanService struct {
	mu      sync.Mutex
	pending map[string]*UserInputRequest
}

// NewPlanService creates an empty service.
func NewPlanService() *PlanService {
	return &PlanService{pending: make(map[string]*UserInputRequest)}
}

// RegisterUserInput records a pending clarification request for the
// conversation, replacing any previous one.
func (s *PlanService) RegisterUserInput(conversationID string, req *UserInputRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[conversationID] = req
}

// HasPendingRequest reports whether the conversation is blocked on a
// clarification answer.
func (s *PlanService) HasPendingRequest(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[conversationID]
	return ok
}

// RequestPrompt returns the pending question for the conversation, or
// the empty string if none is pending.
func (s *PlanService) RequestPrompt(conversationID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.pending[conversationID]; ok {
		return req.Prompt
	}
	return ""
}

// ProvideUserResponse delivers the user's answer to the pending
// request and clears it.
func (s *PlanService) ProvideUserResponse(conversationID, value string) error {
	s.mu.Lock()
	req, ok := s.pending[conversationID]
	if ok {
		delete(s.pending, conversationID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending request for conversation %s", conversationID)
	}
	req.ProvideResponse(value)
	return nil
}

// ClearPendingRequest drops any pending request for the conversation
// without answering it. Used when a planning context is cancelled.
func (s *PlanService) ClearPendingRequest(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, conversationID)
}
