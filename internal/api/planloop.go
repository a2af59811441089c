package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// maxPlanIterations bounds the planning tool loop. Planning rarely
// needs more than one list_agents call and one clarification round.
const maxPlanIterations = 8

// PlanRequest carries everything one planning round needs.
type PlanRequest struct {
	// System is the planning system prompt.
	System string
	// Prompt is the user-turn prompt, including conversation context.
	Prompt string
	// AgentCatalog is returned verbatim when the model calls list_agents.
	AgentCatalog string
	// Ask relays a clarification question to the user and blocks until
	// an answer arrives. Nil disables the request_user_input tool.
	Ask func(ctx context.Context, prompt string) (string, error)
}

// GeneratePlan runs the planning tool loop and returns the model's
// final text, which callers parse as a plan document.
func (c *Client) GeneratePlan(ctx context.Context, req PlanRequest) (string, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}

	tools := planningTools(req.Ask != nil)

	for i := 0; i < maxPlanIterations; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		resp, err := c.sdk().Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: 4096,
			System: []anthropic.TextBlockParam{
				{Text: req.System},
			},
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("planning API call: %w", err)
		}

		c.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))

			case anthropic.ToolUseBlock:
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))

				result, isErr := c.executePlanningTool(ctx, req, variant.Name, variant.Input)
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, result, isErr))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn {
			var finalText string
			for _, block := range resp.Content {
				if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
					finalText += variant.Text
				}
			}
			return finalText, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	return "", fmt.Errorf("planning exceeded %d iterations", maxPlanIterations)
}

func (c *Client) executePlanningTool(ctx context.Context, req PlanRequest, name string, input json.RawMessage) (string, bool) {
	switch name {
	case "list_agents":
		if req.AgentCatalog == "" {
			return "no agents available", false
		}
		return req.AgentCatalog, false

	case "request_user_input":
		if req.Ask == nil {
			return "user input is not available in this context", true
		}
		var args struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal(input, &args); err != nil || args.Prompt == "" {
			return "request_user_input requires a prompt", true
		}
		answer, err := req.Ask(ctx, args.Prompt)
		if err != nil {
			return fmt.Sprintf("user input unavailable: %v", err), true
		}
		return answer, false

	default:
		return fmt.Sprintf("unknown tool: %s", name), true
	}
}

// planningTools returns the tool schemas for planning calls.
func planningTools(withUserInput bool) []anthropic.ToolUnionParam {
	tools := []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        "list_agents",
				Description: anthropic.String("List the available analyst agents with their capabilities."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{},
				},
			},
		},
	}

	if withUserInput {
		tools = append(tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        "request_user_input",
				Description: anthropic.String("Ask the user a clarification question and wait for their answer. Use only when the request cannot be planned without it."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"prompt": map[string]interface{}{
							"type":        "string",
							"description": "The question to show the user",
						},
					},
					Required: []string{"prompt"},
				},
			},
		})
	}

	return tools
}
