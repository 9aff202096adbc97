package completion

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crosssell/pkg/anthropic"
)

// DefaultAnthropicModel is the Claude model used when none is configured.
const DefaultAnthropicModel = "claude-haiku-4-5-20251001"

// DefaultAnthropicMaxTokens caps the length of each Claude answer.
const DefaultAnthropicMaxTokens = 2048

// Anthropic completes prompts with the Claude messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic wraps an Anthropic client.
func NewAnthropic(client anthropic.Client, model string, maxTokens int64) *Anthropic {
	if model == "" {
		model = DefaultAnthropicModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	return &Anthropic{client: client, model: model, maxTokens: maxTokens}
}

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	temp := req.Temperature
	msg, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		System:      req.System,
		Messages:    []anthropic.Message{{Role: "user", Content: req.User}},
		Temperature: &temp,
	})
	if err != nil {
		status := 0
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			status = apiErr.StatusCode
		}
		return nil, withStatus(eris.Wrap(err, "completion: anthropic"), status)
	}
	return &Response{
		Text:         msg.Text(),
		Provider:     "anthropic",
		Model:        msg.Model,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}
