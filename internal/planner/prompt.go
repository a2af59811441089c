package planner

import (
	"fmt"
	"strings"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// systemPrompt is the planning contract given to the model. It
// enforces the pass-through policy and the schedule confirmation
// protocol, and pins the output schema.
const systemPrompt = `You are the execution planner of a financial analysis platform.
You convert one user request into an execution plan for remote analyst agents.

Rules:
1. Do NOT rewrite, optimize, or split the user's query. Forward it verbatim
   inside a single task unless the request is recurring/scheduled or needs
   clarification first.
2. If the request implies recurring monitoring (e.g. "every hour", "each
   morning", "keep watching"), do NOT create a task yet. Return adequate=false
   with a guidance_message asking the user to confirm the schedule.
3. Only after the conversation history shows the user explicitly confirmed a
   schedule, emit one recurring task. Strip the time and notification phrasing
   from the query text and move the schedule into schedule_config, setting
   exactly one of interval_minutes or daily_time (24h "HH:MM"), never both.
   The task query must come from the original request, never from the
   confirmation message itself.
4. Use the list_agents tool to see available agents before choosing one.
5. If the request is ambiguous and cannot be planned, either ask via the
   request_user_input tool or return adequate=false with a guidance_message.

Respond with ONLY a JSON object:
{"tasks": [{"agent_name": "...", "title": "...", "query": "...",
"pattern": "once"|"recurring", "schedule_config": {"interval_minutes": N} or
{"daily_time": "HH:MM"}}], "adequate": true|false, "reason": "...",
"guidance_message": "..."}

guidance_message is set only when adequate is false or tasks is empty.`

// buildPrompt assembles the user-turn prompt with conversation history
// so schedule confirmations can be detected.
func buildPrompt(input models.UserInput, history []models.ConversationItem) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Conversation history (oldest first):\n")
		for _, item := range history {
			payload := item.Payload
			if len(payload) > 500 {
				payload = payload[:500] + "..."
			}
			fmt.Fprintf(&b, "[%s] %s\n", item.Role, payload)
		}
		b.WriteString("\n")
	}

	if input.AgentName != "" {
		fmt.Fprintf(&b, "The user explicitly addressed agent %q. Assign the task to it.\n\n", input.AgentName)
	}

	fmt.Fprintf(&b, "User request: %s", input.Query)
	return b.String()
}
