// Package ai talks to the generation API: a bounded call wrapper, the
// draft generation orchestrator and the structured-response parser.
package ai

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// chatCompleter is the slice of the OpenAI client the wrapper needs;
// tests substitute a fake transport.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Completion is the result of one bounded generation call.
type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// Client invokes the generation API with a hard deadline that fires even
// if the underlying transport call never returns.
type Client struct {
	api       chatCompleter
	model     string
	maxTokens int
	timeout   time.Duration
}

// NewClient creates a bounded client over the OpenAI API.
func NewClient(apiKey, model string, maxTokens int, timeout time.Duration) *Client {
	return &Client{
		api:       openai.NewClient(apiKey),
		model:     model,
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

func newClientWith(api chatCompleter, model string, maxTokens int, timeout time.Duration) *Client {
	return &Client{api: api, model: model, maxTokens: maxTokens, timeout: timeout}
}

type callResult struct {
	resp openai.ChatCompletionResponse
	err  error
}

// Complete races the transport call against an independent timer. HTTP
// library timeouts are unreliable under adverse network conditions, so
// the timer always wins after c.timeout elapses; the losing call is
// abandoned, not cancelled, and its late result is discarded.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	// Buffered so the abandoned goroutine can always deliver and exit.
	resultCh := make(chan callResult, 1)
	go func() {
		resp, err := c.api.CreateChatCompletion(context.WithoutCancel(ctx), req)
		resultCh <- callResult{resp: resp, err: err}
	}()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return nil, classifyError(res.err)
		}
		if len(res.resp.Choices) == 0 {
			return nil, &CallError{Retryable: true, Err: errNoChoices}
		}
		choice := res.resp.Choices[0]
		return &Completion{
			Content:          choice.Message.Content,
			PromptTokens:     res.resp.Usage.PromptTokens,
			CompletionTokens: res.resp.Usage.CompletionTokens,
			FinishReason:     string(choice.FinishReason),
		}, nil
	case <-timer.C:
		return nil, &CallError{Retryable: true, Err: ErrTimeout}
	case <-ctx.Done():
		return nil, &CallError{Retryable: false, Err: ctx.Err()}
	}
}
