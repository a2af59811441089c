// Package planner converts user turns into execution plans via an
// LLM planning loop with a human-in-the-loop clarification handshake.
package planner

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/agents"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/api"
	"github.com/zhangtao0212/my-valuecell-sub001/internal/service"
	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// historyDepth is how many recent conversation items feed the planning
// prompt. Enough to span a schedule confirmation exchange.
const historyDepth = 20

// Model produces plan documents from planning requests.
type Model interface {
	GeneratePlan(ctx context.Context, req api.PlanRequest) (string, error)
}

// Planner builds execution plans for user turns.
type Planner struct {
	model         Model
	registry      *agents.Registry
	plans         *PlanService
	conversations *service.ConversationService
	newID         func() string
	clock         func() time.Time
}

// New creates a planner.
func New(model Model, registry *agents.Registry, plans *PlanService, conversations *service.ConversationService) *Planner {
	return &Planner{
		model:         model,
		registry:      registry,
		plans:         plans,
		conversations: conversations,
		newID:         uuid.NewString,
		clock:         time.Now,
	}
}

// CreatePlan runs one planning round for the user turn. When the model
// asks a clarification question, the round blocks until the answer is
// provided through the plan service or the context ends.
//
// Schema violations return a *SchemaError, never a defaulted plan.
func (p *Planner) CreatePlan(ctx context.Context, input models.UserInput, threadID string) (*models.ExecutionPlan, error) {
	history, err := p.conversations.RecentHistory(input.ConversationID, historyDepth)
	if err != nil {
		log.Printf("[planner] history unavailable for %s: %v", input.ConversationID, err)
	}

	ask := func(ctx context.Context, prompt string) (string, error) {
		req := NewUserInputRequest(prompt)
		p.plans.RegisterUserInput(input.ConversationID, req)

		answer, err := req.WaitForResponse(ctx)
		if err != nil {
			p.plans.ClearPendingRequest(input.ConversationID)
			return "", err
		}
		return answer, nil
	}

	raw, err := p.model.GeneratePlan(ctx, api.PlanRequest{
		System:       systemPrompt,
		Prompt:       buildPrompt(input, history),
		AgentCatalog: p.registry.Describe(),
		Ask:          ask,
	})
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	doc, err := parsePlanDocument(raw)
	if err != nil {
		return nil, err
	}

	plan := &models.ExecutionPlan{
		ID:             p.newID(),
		ConversationID: input.ConversationID,
		UserID:         input.UserID,
		OrigQuery:      input.Query,
		CreatedAt:      p.clock(),
	}

	if !doc.Adequate || len(doc.Tasks) == 0 {
		plan.GuidanceMessage = doc.GuidanceMessage
		return plan, nil
	}

	handoff := input.AgentName == ""
	for _, spec := range doc.Tasks {
		if !p.registry.Has(spec.AgentName) {
			return nil, &SchemaError{Reason: fmt.Sprintf("unknown agent %q", spec.AgentName), Raw: raw}
		}

		pattern := models.TaskPattern(spec.Pattern)
		if pattern == "" {
			pattern = models.TaskPatternOnce
		}

		query := spec.Query
		if len(doc.Tasks) == 1 && pattern == models.TaskPatternOnce {
			// Single plain task: the user's query travels verbatim.
			query = input.Query
		}

		plan.Tasks = append(plan.Tasks, &models.Task{
			ID:                    p.newID(),
			ConversationID:        input.ConversationID,
			ThreadID:              threadID,
			UserID:                input.UserID,
			AgentName:             spec.AgentName,
			Title:                 spec.Title,
			Query:                 query,
			Status:                models.TaskStatusPending,
			Pattern:               pattern,
			Schedule:              spec.Schedule,
			CreatedAt:             p.clock(),
			HandoffFromSuperAgent: handoff,
		})
	}

	return plan, nil
}
