package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":                        ErrorQuota,
		"status 429: rate limit exceeded":           ErrorRate,
		"openai generate: rate_limit_exceeded":      ErrorRate,
		"this model's maximum context length is 8k": ErrorContext,
		"prompt is too long":                        ErrorContext,
		"request timeout":                           ErrorTransient,
		"groq generate: status 503: overloaded":     ErrorTransient,
		"groq generate: status 401: bad key":        ErrorPermanent,
		"openai generate: bad request":              ErrorPermanent,
	}
	for msg, want := range cases {
		require.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
	require.Equal(t, ErrorTransient, ClassifyError(errors.New("anthropic generate request failed: context deadline exceeded")))
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestClassifyErrorPrefersTypes(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorType
	}{
		{fmt.Errorf("openai generate: %w", &StatusError{StatusCode: 500, Body: "internal"}), ErrorTransient},
		{fmt.Errorf("openai generate: %w", &StatusError{StatusCode: 401, Body: "rate of bad keys"}), ErrorPermanent},
		{fmt.Errorf("groq generate: %w", &StatusError{StatusCode: 429, Body: "slow down"}), ErrorRate},
		{fmt.Errorf("openai generate: %w", &StatusError{StatusCode: 429, Body: `{"code":"insufficient_quota"}`}), ErrorQuota},
		{fmt.Errorf("openai generate: %w", &StatusError{StatusCode: 400, Body: "context_length_exceeded"}), ErrorContext},
		{fmt.Errorf("openai generate: %w", &StatusError{StatusCode: 400, Body: "invalid model"}), ErrorPermanent},
		{context.DeadlineExceeded, ErrorTransient},
		{fmt.Errorf("anthropic generate request failed: %w", context.DeadlineExceeded), ErrorTransient},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyError(tc.err), tc.err.Error())
	}
}

func TestClassifyErrorFromAdapters(t *testing.T) {
	status := http.StatusInternalServerError
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"upstream"}`))
	}))
	defer srv.Close()

	openai := NewOpenAIProvider("", WithBaseURL(srv.URL), WithAPIKey("sk-test"))
	_, _, err := openai.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Equal(t, ErrorTransient, ClassifyError(err))

	status = http.StatusUnauthorized
	groq := NewGroqProvider("", WithBaseURL(srv.URL), WithAPIKey("gk"))
	_, _, err = groq.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Equal(t, ErrorPermanent, ClassifyError(err))

	status = http.StatusTooManyRequests
	anthropic := NewAnthropicProvider("", WithBaseURL(srv.URL), WithAPIKey("ak"))
	_, _, err = anthropic.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	require.Equal(t, ErrorRate, ClassifyError(err))
}
