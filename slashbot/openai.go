package slashbot

import (
	"context"
	"errors"
	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

const (
	aiNotConfiguredMessage = "AI API key not configured. Please set AI_API_KEY in your environment variables."
	aiInvalidKeyMessage    = "Invalid AI API key. Please check your AI_API_KEY in environment variables."
	aiNetworkErrorMessage  = "Network error: Unable to connect to AI service. Please try again later."
	aiRateLimitMessage     = "Rate limit exceeded. Please wait a moment before trying again."
	aiGenericErrorMessage  = "Sorry, I couldn't process your request right now. Please try again later."
)

// OpenAI sends questions to an OpenAI-compatible chat completion API
// (Groq, by default). Failures are never returned to callers, they're
// converted to a user-facing message instead.
type OpenAI struct {
	client OpenAIClient
	config *AIConfig
	logger *slog.Logger
}

// OpenAIClient is the subset of the go-openai client used by the bot
type OpenAIClient interface {
	// CreateChatCompletion sends a chat completion request
	CreateChatCompletion(
		ctx context.Context,
		request openai.ChatCompletionRequest,
	) (response openai.ChatCompletionResponse, err error)
}

func newOpenAI(config *AIConfig, httpClient *http.Client) *OpenAI {
	o := &OpenAI{
		config: config,
		logger: newComponentLogger("openai", config.LogLevel),
	}

	clientCfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	o.client = openai.NewClientWithConfig(clientCfg)

	return o
}

// Configured returns true if an API key is set. The placeholder written
// to generated env files doesn't count.
func (o *OpenAI) Configured() bool {
	return o.config.APIKey != "" && o.config.APIKey != aiAPIKeyPlaceholder
}

// Ask sends the question as a single-turn chat completion, and returns
// the model's reply. On failure, a message describing the failure is
// returned instead. No request is made if an API key isn't configured.
func (o *OpenAI) Ask(ctx context.Context, question string) string {
	if !o.Configured() {
		return aiNotConfiguredMessage
	}

	logger, ok := ContextLogger(ctx)
	if !ok || logger == nil {
		logger = o.logger
	}

	if o.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RequestTimeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model:       o.config.Model,
		MaxTokens:   o.config.MaxTokens,
		Temperature: o.config.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: o.config.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: question,
			},
		},
	}

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		logger.ErrorContext(
			ctx,
			"error creating chat completion",
			tint.Err(err),
			"model", req.Model,
			"duration", elapsed,
		)
		return aiErrorMessage(err)
	}

	if len(resp.Choices) == 0 {
		logger.ErrorContext(ctx, "chat completion returned no choices", "id", resp.ID)
		return aiGenericErrorMessage
	}

	logger.InfoContext(
		ctx,
		"created chat completion",
		"id", resp.ID,
		"model", resp.Model,
		"duration", elapsed,
		slog.Group(
			"usage",
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"total_tokens", resp.Usage.TotalTokens,
		),
	)
	return resp.Choices[0].Message.Content
}

// aiErrorMessage maps a completion error to the message shown to users.
// Auth failures take precedence over network failures, which take
// precedence over rate limiting.
func aiErrorMessage(err error) string {
	status := httpStatusCode(err)
	switch {
	case status == http.StatusUnauthorized:
		return aiInvalidKeyMessage
	case isNetworkError(err):
		return aiNetworkErrorMessage
	case status == http.StatusTooManyRequests:
		return aiRateLimitMessage
	default:
		return aiGenericErrorMessage
	}
}

// httpStatusCode returns the HTTP status code carried by a go-openai
// error, or 0 if there isn't one
func httpStatusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// isNetworkError returns true if the host couldn't be resolved, or the
// connection was refused
func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
