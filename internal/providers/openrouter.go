package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const (
	OpenRouterName    = "openrouter"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
	Timeout      time.Duration
	// Rate limiting
	RPM        int           // Requests per minute (default: 150)
	MaxRetries int           // Max retry attempts (default: 3)
	RetryDelay time.Duration // Base delay between retries (default: 1s)
}

// OpenRouterClient implements LLMClient against the OpenRouter chat
// completions API.
type OpenRouterClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	client       *http.Client
	rpm          int
	maxRetries   int
	retryDelay   time.Duration
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenRouterBaseURL
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic/claude-3.5-sonnet"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 150
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	return &OpenRouterClient{
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		client:       &http.Client{Timeout: cfg.Timeout},
		rpm:          cfg.RPM,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
	}
}

// Name returns the client identifier.
func (c *OpenRouterClient) Name() string {
	return OpenRouterName
}

// RequestsPerMinute returns the configured rate limit.
func (c *OpenRouterClient) RequestsPerMinute() int {
	return c.rpm
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenRouterClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay between retries.
func (c *OpenRouterClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// Chat sends a chat completion request. When a ResponseFormat is set the
// returned content is parsed and validated against the schema, with a
// bounded repair loop that feeds validation failures back to the model.
func (c *OpenRouterClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenRouterName,
	}

	messages := make([]openRouterMessage, 0, len(req.Messages)+2)
	for _, m := range req.Messages {
		messages = append(messages, openRouterMessage{Role: m.Role, Content: m.Content})
	}

	wireFormat, err := adaptedResponseFormat(model, req.ResponseFormat)
	if err != nil {
		return c.fail(result, start, "schema_error", err)
	}
	// Models without native structured output get the schema as prompt
	// instruction; the local validation below enforces it either way.
	if req.ResponseFormat != nil && wireFormat == nil && len(messages) > 0 {
		messages = append(messages, openRouterMessage{
			Role:    "user",
			Content: structuredPromptInstruction(req.ResponseFormat.JSONSchema),
		})
	}

	for round := 0; ; round++ {
		result.Attempts = round + 1

		orReq := openRouterRequest{
			Model:          model,
			Messages:       messages,
			Temperature:    req.Temperature,
			MaxTokens:      req.MaxTokens,
			ResponseFormat: wireFormat,
		}

		orResp, err := c.doRequest(ctx, "/chat/completions", orReq, result)
		if err != nil {
			return c.fail(result, start, "http_error", err)
		}
		if len(orResp.Choices) == 0 {
			return c.fail(result, start, "empty_response", fmt.Errorf("no choices in response"))
		}

		content := orResp.Choices[0].Message.Content
		result.Content = content
		result.ModelUsed = orResp.Model
		result.PromptTokens += orResp.Usage.PromptTokens
		result.CompletionTokens += orResp.Usage.CompletionTokens
		result.TotalTokens += orResp.Usage.TotalTokens
		result.CostUSD += orResp.Usage.Cost

		if req.ResponseFormat == nil {
			break
		}

		parsed, perr := parseStructuredJSON(content)
		if perr == nil {
			perr = validateStructuredJSON(req.ResponseFormat.JSONSchema, parsed)
		}
		if perr == nil {
			result.ParsedJSON = parsed
			break
		}
		if round >= maxStructuredRepairAttempts {
			return c.fail(result, start, "invalid_structured_output", perr)
		}

		messages = append(messages,
			openRouterMessage{Role: "assistant", Content: content},
			openRouterMessage{Role: "user", Content: structuredRepairPrompt(req.ResponseFormat.JSONSchema, content, perr)},
		)
	}

	result.Success = true
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime
	return result, nil
}

func (c *OpenRouterClient) fail(result *ChatResult, start time.Time, errType string, err error) (*ChatResult, error) {
	result.Success = false
	result.ErrorType = errType
	result.ErrorMessage = err.Error()
	result.TotalTime = time.Since(start)
	return result, err
}

// doRequest posts to OpenRouter with retry on transient failures. A 429
// Retry-After is surfaced on the result so callers can drain their
// limiter.
func (c *OpenRouterClient) doRequest(ctx context.Context, path string, body openRouterRequest, result *ChatResult) (*openRouterResponse, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("HTTP-Referer", "https://github.com/foliolabs/folio")
		req.Header.Set("X-Title", "Folio")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.backoff(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			c.backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				result.RetryAfter = ra
			}
		}
		if c.shouldRetry(resp.StatusCode) {
			lastErr = fmt.Errorf("openrouter error (status %d): %s", resp.StatusCode, string(respBody))
			c.backoff(ctx, attempt)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("openrouter error (status %d): %s", resp.StatusCode, string(respBody))
		}

		var orResp openRouterResponse
		if err := json.Unmarshal(respBody, &orResp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response: %w", err)
		}
		return &orResp, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// shouldRetry returns true for status codes worth another attempt.
func (c *OpenRouterClient) shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// backoff sleeps with exponential backoff and jitter, respecting context
// cancellation.
func (c *OpenRouterClient) backoff(ctx context.Context, attempt int) {
	delay := c.retryDelay * time.Duration(1<<attempt)
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	// Jitter: -20% to +30%.
	jitter := time.Duration(float64(delay) * (0.8 + 0.5*float64(time.Now().UnixNano()%1000)/1000))

	select {
	case <-ctx.Done():
	case <-time.After(jitter):
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// OpenRouter API types

type openRouterRequest struct {
	Model          string                    `json:"model"`
	Messages       []openRouterMessage       `json:"messages"`
	Temperature    float64                   `json:"temperature,omitempty"`
	MaxTokens      int                       `json:"max_tokens,omitempty"`
	ResponseFormat *openRouterResponseFormat `json:"response_format,omitempty"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponseFormat struct {
	Type       string          `json:"type"`
	JSONSchema json.RawMessage `json:"json_schema,omitempty"`
}

type openRouterResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		TotalTokens      int     `json:"total_tokens"`
		Cost             float64 `json:"cost"`
	} `json:"usage"`
}

// Verify interface
var _ LLMClient = (*OpenRouterClient)(nil)
