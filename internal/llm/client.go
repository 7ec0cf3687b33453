// Package llm defines the language-model collaborator interface. The
// turn engine consumes it as a black box returning an assistant message
// plus an optional structured payload; provider errors are caught at
// loop boundaries and converted into degraded results, never propagated.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Task names the kind of generation a loop is asking for.
type Task string

const (
	TaskGatherInfo     Task = "gather_info"
	TaskResearch       Task = "research_activities"
	TaskReviewFeedback Task = "review_feedback"
	TaskMealPlanning   Task = "meal_planning"
)

// Message is one transcript line passed as model context.
type Message struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

// Request is the input to a Generate call.
type Request struct {
	Task       Task      `json:"task"`
	System     string    `json:"system,omitempty"`
	Prompt     string    `json:"prompt"`
	Transcript []Message `json:"transcript,omitempty"`
}

// Reply is what the model returned: user-facing text plus an optional
// task-specific structured payload.
type Reply struct {
	Message string          `json:"message"`
	Fields  json.RawMessage `json:"fields,omitempty"`
}

// DecodeFields unmarshals the structured payload into target.
func (r *Reply) DecodeFields(target any) error {
	if len(r.Fields) == 0 {
		return fmt.Errorf("reply for task has no structured fields")
	}
	return json.Unmarshal(r.Fields, target)
}

// Client is implemented by every language-model provider.
type Client interface {
	// Generate produces a reply for the request. Implementations apply
	// their own call timeout.
	Generate(ctx context.Context, req Request) (*Reply, error)

	// Name returns the provider name.
	Name() string
}

// ProviderError reports a provider-level failure.
type ProviderError struct {
	Provider string
	Message  string
	Code     int
}

func (e *ProviderError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
