package slashbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"
)

// mockOpenAIClient is a testify mock implementing OpenAIClient
type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) CreateChatCompletion(
	ctx context.Context,
	request openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func chatCompletionResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		ID:    "chatcmpl-test",
		Model: DefaultAIModel,
		Choices: []openai.ChatCompletionChoice{
			{
				Index: 0,
				Message: openai.ChatCompletionMessage{
					Role:    openai.ChatMessageRoleAssistant,
					Content: content,
				},
				FinishReason: openai.FinishReasonStop,
			},
		},
	}
}

// stubTransport is an http.RoundTripper which records requests, and
// responds using the given function
type stubTransport struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	respond  func(r *http.Request) (*http.Response, error)
}

func (s *stubTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		_ = r.Body.Close()
	}
	s.mu.Lock()
	s.requests = append(s.requests, r)
	s.bodies = append(s.bodies, body)
	s.mu.Unlock()
	return s.respond(r)
}

func (s *stubTransport) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func jsonResponse(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func newTestOpenAI(
	t testing.TB,
	apiKey string,
	respond func(r *http.Request) (*http.Response, error),
) (*OpenAI, *stubTransport) {
	t.Helper()
	cfg := DefaultTestConfig(t).AI
	cfg.APIKey = apiKey
	transport := &stubTransport{respond: respond}
	return newOpenAI(cfg, &http.Client{Transport: transport}), transport
}

func TestOpenAI_Ask_NotConfigured(t *testing.T) {
	t.Parallel()
	o, transport := newTestOpenAI(
		t, "", func(r *http.Request) (*http.Response, error) {
			return jsonResponse(r, http.StatusOK, `{}`), nil
		},
	)
	assert.False(t, o.Configured())
	assert.Equal(t, aiNotConfiguredMessage, o.Ask(context.Background(), ""))
	assert.Equal(t, aiNotConfiguredMessage, o.Ask(context.Background(), "hello?"))
	assert.Equal(t, 0, transport.calls())
}

func TestOpenAI_Ask_PlaceholderKey(t *testing.T) {
	t.Parallel()
	o, transport := newTestOpenAI(
		t, aiAPIKeyPlaceholder, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(r, http.StatusOK, `{}`), nil
		},
	)
	assert.False(t, o.Configured())
	assert.Equal(t, aiNotConfiguredMessage, o.Ask(context.Background(), "hello?"))
	assert.Equal(t, 0, transport.calls())
}

func TestOpenAI_Ask_Success(t *testing.T) {
	t.Parallel()
	o, transport := newTestOpenAI(
		t, testAIAPIKey, func(r *http.Request) (*http.Response, error) {
			return jsonResponse(
				r,
				http.StatusOK,
				`{
					"id": "chatcmpl-1",
					"object": "chat.completion",
					"model": "llama3-8b-8192",
					"choices": [
						{
							"index": 0,
							"message": {"role": "assistant", "content": "Hello there"},
							"finish_reason": "stop"
						}
					],
					"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
				}`,
			), nil
		},
	)

	assert.Equal(t, "Hello there", o.Ask(context.Background(), "hi"))
	require.Equal(t, 1, transport.calls())

	req := transport.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "api.groq.com", req.URL.Host)
	assert.Equal(t, "/openai/v1/chat/completions", req.URL.Path)
	assert.Equal(t, "Bearer "+testAIAPIKey, req.Header.Get("Authorization"))

	var sent openai.ChatCompletionRequest
	require.NoError(t, json.Unmarshal(transport.bodies[0], &sent))
	assert.Equal(t, DefaultAIModel, sent.Model)
	assert.Equal(t, DefaultAIMaxTokens, sent.MaxTokens)
	assert.InDelta(t, DefaultAITemperature, sent.Temperature, 0.0001)
	require.Len(t, sent.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, sent.Messages[0].Role)
	assert.Equal(t, DefaultAISystemPrompt, sent.Messages[0].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, sent.Messages[1].Role)
	assert.Equal(t, "hi", sent.Messages[1].Content)
}

func TestOpenAI_Ask_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		respond  func(r *http.Request) (*http.Response, error)
		expected string
	}{
		{
			name: "unauthorized",
			respond: func(r *http.Request) (*http.Response, error) {
				return jsonResponse(
					r,
					http.StatusUnauthorized,
					`{"error": {"message": "Invalid API Key", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
				), nil
			},
			expected: aiInvalidKeyMessage,
		},
		{
			name: "rate limited",
			respond: func(r *http.Request) (*http.Response, error) {
				return jsonResponse(
					r,
					http.StatusTooManyRequests,
					`{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`,
				), nil
			},
			expected: aiRateLimitMessage,
		},
		{
			name: "rate limited without error body",
			respond: func(r *http.Request) (*http.Response, error) {
				return jsonResponse(r, http.StatusTooManyRequests, `{}`), nil
			},
			expected: aiRateLimitMessage,
		},
		{
			name: "dns failure",
			respond: func(r *http.Request) (*http.Response, error) {
				return nil, &net.DNSError{
					Err:        "no such host",
					Name:       r.URL.Host,
					IsNotFound: true,
				}
			},
			expected: aiNetworkErrorMessage,
		},
		{
			name: "connection refused",
			respond: func(*http.Request) (*http.Response, error) {
				return nil, &net.OpError{
					Op:  "dial",
					Net: "tcp",
					Err: os.NewSyscallError("connect", syscall.ECONNREFUSED),
				}
			},
			expected: aiNetworkErrorMessage,
		},
		{
			name: "server error",
			respond: func(r *http.Request) (*http.Response, error) {
				return jsonResponse(
					r,
					http.StatusInternalServerError,
					`{"error": {"message": "internal error", "type": "server_error"}}`,
				), nil
			},
			expected: aiGenericErrorMessage,
		},
		{
			name: "no choices",
			respond: func(r *http.Request) (*http.Response, error) {
				return jsonResponse(r, http.StatusOK, `{"id": "chatcmpl-2", "choices": []}`), nil
			},
			expected: aiGenericErrorMessage,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()
				o, transport := newTestOpenAI(t, testAIAPIKey, tc.respond)
				assert.Equal(t, tc.expected, o.Ask(context.Background(), "hello?"))
				assert.Equal(t, 1, transport.calls(), "expected exactly one request, no retries")
			},
		)
	}
}

func TestOpenAI_Ask_Timeout(t *testing.T) {
	t.Parallel()
	o, transport := newTestOpenAI(
		t, testAIAPIKey, func(r *http.Request) (*http.Response, error) {
			<-r.Context().Done()
			return nil, r.Context().Err()
		},
	)
	o.config.RequestTimeout = 50 * time.Millisecond

	start := time.Now()
	assert.Equal(t, aiGenericErrorMessage, o.Ask(context.Background(), "slow?"))
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Equal(t, 1, transport.calls())
}

func TestAIErrorMessage(t *testing.T) {
	t.Parallel()
	dnsErr := &net.DNSError{Err: "no such host", Name: "api.groq.com", IsNotFound: true}

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "api error 401",
			err:      &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "nope"},
			expected: aiInvalidKeyMessage,
		},
		{
			name:     "request error 401",
			err:      &openai.RequestError{HTTPStatusCode: http.StatusUnauthorized, Err: errors.New("x")},
			expected: aiInvalidKeyMessage,
		},
		{
			name:     "api error 429",
			err:      fmt.Errorf("wrapped: %w", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}),
			expected: aiRateLimitMessage,
		},
		{
			name:     "dns",
			err:      fmt.Errorf("wrapped: %w", dnsErr),
			expected: aiNetworkErrorMessage,
		},
		{
			name:     "refused",
			err:      syscall.ECONNREFUSED,
			expected: aiNetworkErrorMessage,
		},
		{
			name:     "unauthorized takes precedence over network",
			err:      errors.Join(dnsErr, &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}),
			expected: aiInvalidKeyMessage,
		},
		{
			name:     "network takes precedence over rate limit",
			err:      errors.Join(dnsErr, &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}),
			expected: aiNetworkErrorMessage,
		},
		{
			name:     "other",
			err:      errors.New("something else"),
			expected: aiGenericErrorMessage,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(
			tc.name, func(t *testing.T) {
				t.Parallel()
				assert.Equal(t, tc.expected, aiErrorMessage(tc.err))
			},
		)
	}
}

func TestOpenAI_Ask_MockClient(t *testing.T) {
	t.Parallel()
	o, _ := newTestOpenAI(
		t, testAIAPIKey, func(*http.Request) (*http.Response, error) {
			return nil, errors.New("unexpected request")
		},
	)
	client := &mockOpenAIClient{}
	client.On(
		"CreateChatCompletion",
		mock.Anything,
		mock.MatchedBy(
			func(req openai.ChatCompletionRequest) bool {
				return len(req.Messages) == 2 && req.Messages[1].Content == "what is go?"
			},
		),
	).Return(chatCompletionResponse("a programming language"), nil).Once()
	o.client = client

	assert.Equal(t, "a programming language", o.Ask(context.Background(), "what is go?"))
	client.AssertExpectations(t)
}
