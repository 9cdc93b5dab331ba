package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an in-memory LLMClient for tests. It stands in for a
// translation provider: set ResponseJSON to script a structured
// translation result, or ShouldFail to exercise fallback through the
// provider chain.
type MockClient struct {
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // fail once more than this many requests have been made, 0 means never
	ResponseText string
	ResponseJSON json.RawMessage

	RPM        int
	Retries    int
	RetryDelay time.Duration

	requestCount atomic.Int64
}

func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      10 * time.Millisecond,
		ResponseText: "mock translation",
		RPM:          60,
		Retries:      3,
		RetryDelay:   time.Second,
	}
}

func (c *MockClient) Name() string { return MockClientName }

func (c *MockClient) RequestsPerMinute() int { return c.RPM }

func (c *MockClient) MaxRetries() int { return c.Retries }

func (c *MockClient) RetryDelayBase() time.Duration { return c.RetryDelay }

// Chat returns the scripted response after the configured latency,
// honoring ctx cancellation the way a real provider would.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	fail := func(errType, msg string) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = errType
		result.ErrorMessage = msg
		result.TotalTime = time.Since(start)
		return result, fmt.Errorf("%s", msg)
	}

	if c.ShouldFail {
		return fail("mock_failure", "mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return fail("mock_failure", fmt.Sprintf("mock client failed after %d requests", c.FailAfter))
	}

	select {
	case <-time.After(c.Latency):
	case <-ctx.Done():
		result.Success = false
		result.ErrorType = "context_cancelled"
		result.ErrorMessage = ctx.Err().Error()
		result.TotalTime = time.Since(start)
		return result, ctx.Err()
	}

	result.Success = true
	result.Content = c.ResponseText
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime

	// Token counts follow the usual ~4 chars per token estimate so cost
	// accounting paths see plausible numbers.
	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(c.ResponseText) / 4

	result.PromptTokens = promptTokens
	result.CompletionTokens = completionTokens
	result.TotalTokens = promptTokens + completionTokens
	result.CostUSD = 0.001

	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		result.ParsedJSON = c.ResponseJSON
		result.Content = string(c.ResponseJSON)
	}

	return result, nil
}

// RequestCount reports how many Chat calls the mock has served.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Reset clears the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
}

var _ LLMClient = (*MockClient)(nil)
