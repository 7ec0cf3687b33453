package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/roamline/roamline/internal/logging"
)

const defaultCallTimeout = 45 * time.Second

// OpenAIClient implements Client on the OpenAI chat completions API.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
	log     *logging.Logger
}

// NewOpenAIClient creates a client for the given model. A zero timeout
// uses the default.
func NewOpenAIClient(apiKey, model string, timeout time.Duration, log *logging.Logger) *OpenAIClient {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &OpenAIClient{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		timeout: timeout,
		log:     log.Sub("llm.openai"),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// Generate runs one chat completion. The system prompt asks the model
// for a JSON envelope {message, fields}; replies that are not valid
// JSON are treated as plain text with no structured payload.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Transcript)+2)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for _, m := range req.Transcript {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		case "user":
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil {
		return nil, &ProviderError{Provider: "openai", Message: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: "openai", Message: "empty completion"}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.log.Debug().
		Str("task", string(req.Task)).
		Str("model", c.model).
		Dur("duration", time.Since(start)).
		Msg("completion received")

	return parseEnvelope(content), nil
}

// parseEnvelope extracts the {message, fields} envelope from model
// output, tolerating a fenced code block around the JSON.
func parseEnvelope(content string) *Reply {
	raw := content
	if after, ok := strings.CutPrefix(raw, "```json"); ok {
		raw = after
	} else if after, ok := strings.CutPrefix(raw, "```"); ok {
		raw = after
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	raw = strings.TrimSpace(raw)

	var envelope struct {
		Message string          `json:"message"`
		Fields  json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err == nil && envelope.Message != "" {
		return &Reply{Message: envelope.Message, Fields: envelope.Fields}
	}
	return &Reply{Message: content}
}
