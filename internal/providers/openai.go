package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	RPM          int
	MaxRetries   int
	RetryDelay   time.Duration
	BaseURL      string       // Optional (tests)
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK. The SDK
// handles transport retries; structured output goes through the prompt
// plus local validation, the same path OpenRouter uses for models without
// native schema support.
type OpenAIClient struct {
	apiKey       string
	defaultModel string
	rpm          int
	maxRetries   int
	retryDelay   time.Duration
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		apiKey:       cfg.APIKey,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RequestsPerMinute returns the configured rate limit.
func (c *OpenAIClient) RequestsPerMinute() int {
	return c.rpm
}

// MaxRetries returns the maximum retry attempts.
func (c *OpenAIClient) MaxRetries() int {
	return c.maxRetries
}

// RetryDelayBase returns the base delay between retries.
func (c *OpenAIClient) RetryDelayBase() time.Duration {
	return c.retryDelay
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
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
		Provider:  OpenAIName,
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+2)
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(m.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	if req.ResponseFormat != nil {
		messages = append(messages, openai.UserMessage(structuredPromptInstruction(req.ResponseFormat.JSONSchema)))
	}

	for round := 0; ; round++ {
		result.Attempts = round + 1

		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(model),
			Messages: messages,
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(req.Temperature)
		}
		if req.MaxTokens > 0 {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}

		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return c.fail(result, start, "http_error", fmt.Errorf("openai chat failed: %w", err))
		}
		if len(resp.Choices) == 0 {
			return c.fail(result, start, "empty_response", fmt.Errorf("no choices in response"))
		}

		content := resp.Choices[0].Message.Content
		result.Content = content
		result.ModelUsed = resp.Model
		result.PromptTokens += int(resp.Usage.PromptTokens)
		result.CompletionTokens += int(resp.Usage.CompletionTokens)
		result.TotalTokens += int(resp.Usage.TotalTokens)

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
			openai.AssistantMessage(content),
			openai.UserMessage(structuredRepairPrompt(req.ResponseFormat.JSONSchema, content, perr)),
		)
	}

	result.Success = true
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime
	return result, nil
}

func (c *OpenAIClient) fail(result *ChatResult, start time.Time, errType string, err error) (*ChatResult, error) {
	result.Success = false
	result.ErrorType = errType
	result.ErrorMessage = err.Error()
	result.TotalTime = time.Since(start)
	return result, err
}

// Verify interface
var _ LLMClient = (*OpenAIClient)(nil)
