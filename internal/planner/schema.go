package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zhangtao0212/my-valuecell-sub001/pkg/models"
)

// SchemaError reports model output that does not satisfy the plan
// document contract. It is never silently defaulted; callers surface
// it as a plan failure.
type SchemaError struct {
	// Reason describes which rule the document violated.
	Reason string
	// Raw is the model output that failed validation.
	Raw string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("plan schema violation: %s", e.Reason)
}

// planDocument is the strict output schema required from the model.
type planDocument struct {
	Tasks           []taskSpec `json:"tasks"`
	Adequate        bool       `json:"adequate"`
	Reason          string     `json:"reason"`
	GuidanceMessage string     `json:"guidance_message,omitempty"`
}

// taskSpec is one planned task as emitted by the model.
type taskSpec struct {
	AgentName string                 `json:"agent_name"`
	Title     string                 `json:"title"`
	Query     string                 `json:"query"`
	Pattern   string                 `json:"pattern,omitempty"`
	Schedule  *models.ScheduleConfig `json:"schedule_config,omitempty"`
}

// parsePlanDocument extracts and validates the JSON plan document from
// raw model output. Models sometimes wrap JSON in code fences or prose,
// so parsing takes the outermost braces.
func parsePlanDocument(raw string) (*planDocument, error) {
	jsonText := extractJSON(raw)
	if jsonText == "" {
		return nil, &SchemaError{Reason: "no JSON object found in output", Raw: raw}
	}

	var doc planDocument
	if err := json.Unmarshal([]byte(jsonText), &doc); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}

	if err := validatePlanDocument(&doc); err != nil {
		return nil, &SchemaError{Reason: err.Error(), Raw: raw}
	}
	return &doc, nil
}

func validatePlanDocument(doc *planDocument) error {
	if !doc.Adequate || len(doc.Tasks) == 0 {
		if doc.GuidanceMessage == "" {
			return fmt.Errorf("inadequate plan without guidance_message")
		}
		return nil
	}

	if doc.GuidanceMessage != "" {
		return fmt.Errorf("both tasks and guidance_message are set")
	}

	for i, t := range doc.Tasks {
		if t.AgentName == "" {
			return fmt.Errorf("task %d: missing agent_name", i)
		}
		if t.Query == "" {
			return fmt.Errorf("task %d: missing query", i)
		}
		switch t.Pattern {
		case "", string(models.TaskPatternOnce):
			if t.Schedule != nil {
				return fmt.Errorf("task %d: schedule_config on a non-recurring task", i)
			}
		case string(models.TaskPatternRecurring):
			if t.Schedule == nil {
				return fmt.Errorf("task %d: recurring task without schedule_config", i)
			}
			if err := validateSchedule(t.Schedule); err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
		default:
			return fmt.Errorf("task %d: unknown pattern %q", i, t.Pattern)
		}
	}
	return nil
}

// validateSchedule enforces exactly one of interval or daily time.
func validateSchedule(s *models.ScheduleConfig) error {
	hasInterval := s.IntervalMinutes > 0
	hasDaily := s.DailyTime != ""

	if hasInterval == hasDaily {
		return fmt.Errorf("schedule_config requires exactly one of interval_minutes or daily_time")
	}
	if s.IntervalMinutes < 0 {
		return fmt.Errorf("interval_minutes must be positive")
	}
	if hasDaily {
		parts := strings.SplitN(s.DailyTime, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("daily_time must be HH:MM, got %q", s.DailyTime)
		}
	}
	return nil
}

// extractJSON returns the outermost JSON object within s.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
