package ai

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	resp openai.ChatCompletionResponse
	err  error
	// block makes the call hang until the channel closes.
	block chan struct{}
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if f.block != nil {
		<-f.block
	}
	return f.resp, f.err
}

func okResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}, FinishReason: openai.FinishReasonStop},
		},
		Usage: openai.Usage{PromptTokens: 120, CompletionTokens: 80},
	}
}

func TestCompleteReturnsContentAndUsage(t *testing.T) {
	c := newClientWith(&fakeCompleter{resp: okResponse("hello")}, "gpt-4o-mini", 2048, time.Second)

	got, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)

	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, 120, got.PromptTokens)
	assert.Equal(t, 80, got.CompletionTokens)
	assert.Equal(t, "stop", got.FinishReason)
}

func TestCompleteTimesOutEvenIfTransportHangs(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	c := newClientWith(&fakeCompleter{block: block}, "gpt-4o-mini", 2048, 20*time.Millisecond)

	start := time.Now()
	_, err := c.Complete(context.Background(), "sys", "user")
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.True(t, IsRetryable(err))
	assert.Less(t, elapsed, time.Second, "deadline must fire independently of the transport")
}

func TestCompleteEmptyChoicesIsRetryable(t *testing.T) {
	c := newClientWith(&fakeCompleter{resp: openai.ChatCompletionResponse{}}, "gpt-4o-mini", 2048, time.Second)

	_, err := c.Complete(context.Background(), "sys", "user")

	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestCompleteCancelledContextIsNotRetryable(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	c := newClientWith(&fakeCompleter{block: block}, "gpt-4o-mini", 2048, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Complete(ctx, "sys", "user")

	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestClassifyErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"unknown", errors.New("connection reset by peer"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyError(tc.err)
			assert.Equal(t, tc.retryable, got.Retryable)
		})
	}
}
