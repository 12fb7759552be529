package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zeek-gateway/internal/models"
	"zeek-gateway/internal/upstream"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	httpClient := &http.Client{}
	gock.InterceptClient(httpClient)
	t.Cleanup(gock.Off)

	return NewRegistry(upstream.NewClientWithHTTP(httpClient))
}

func TestResolvePrefixMatching(t *testing.T) {
	registry := newTestRegistry(t)

	cases := map[string]string{
		"openai":        "openai",
		"openai-gpt4":   "openai",
		"openrouter":    "openrouter",
		"anthropic":     "anthropic",
		"google":        "googleai",
		"googleai":      "googleai",
		"ollama":        "ollama",
		"ollama-llama2": "ollama",
		"mistral":       "mistral",
		"groq":          "groq",
		"cohere":        "cohere",
		"azure":         "azure",
		"azure_openai":  "azure",
	}

	for input, want := range cases {
		adapter, ok := registry.Resolve(input)
		require.True(t, ok, "provider %q should resolve", input)
		assert.Equal(t, want, adapter.Name, "provider %q", input)
	}

	_, ok := registry.Resolve("meta-llama")
	assert.False(t, ok)
}

func TestDispatchValidatesInput(t *testing.T) {
	registry := newTestRegistry(t)

	var apiErr *models.APIError

	_, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "openai", Model: "gpt-4", Prompt: "  ",
	})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad_request", apiErr.Code)

	_, err = registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "does-not-exist", Model: "m", Prompt: "hi",
	})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unsupported_provider", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestDispatchRequiresCredentialsBeforeAnyCall(t *testing.T) {
	registry := newTestRegistry(t)

	// No mocks are registered: any network attempt would surface as an
	// unmatched-request transport error instead of a bad_request.
	var apiErr *models.APIError
	_, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "openai", Model: "gpt-4", Prompt: "hi",
	})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad_request", apiErr.Code)
	assert.False(t, gock.HasUnmatchedRequest())

	_, err = registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "ollama", Model: "llama2", Prompt: "hi",
	})
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Ollama base is required", apiErr.Message)
	assert.False(t, gock.HasUnmatchedRequest())
}

func TestDispatchAnthropicExtractsText(t *testing.T) {
	registry := newTestRegistry(t)

	gock.New("https://api.anthropic.com").
		Post("/v1/messages").
		MatchHeader("x-api-key", "k").
		MatchHeader("anthropic-version", "2023-06-01").
		JSON(map[string]any{
			"model":      "claude-3",
			"max_tokens": 1024,
			"messages":   []map[string]any{{"role": "user", "content": "hi"}},
		}).
		Reply(http.StatusOK).
		JSON(map[string]any{"content": []map[string]any{{"text": "hello"}}})

	result, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "anthropic", Model: "claude-3", Prompt: "hi", APIKey: "k",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, "hello", result.Envelope.Output)
	assert.JSONEq(t, `{"content":[{"text":"hello"}]}`, string(result.Envelope.Raw.(json.RawMessage)))
	assert.False(t, gock.HasUnmatchedRequest())
}

func TestDispatchExtractionFailureIsNotAnError(t *testing.T) {
	registry := newTestRegistry(t)

	gock.New("https://api.anthropic.com").
		Post("/v1/messages").
		Reply(http.StatusOK).
		JSON(map[string]any{"unexpected": "shape"})

	result, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "anthropic", Model: "claude-3", Prompt: "hi", APIKey: "k",
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.Status)
	assert.Nil(t, result.Envelope.Output)
	assert.JSONEq(t, `{"unexpected":"shape"}`, string(result.Envelope.Raw.(json.RawMessage)))
}

func TestDispatchMirrorsVendorErrorStatus(t *testing.T) {
	registry := newTestRegistry(t)

	gock.New("https://api.openai.com").
		Post("/v1/chat/completions").
		Reply(http.StatusUnauthorized).
		JSON(map[string]any{"error": map[string]any{"message": "bad key"}})

	result, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "openai", Model: "gpt-4", Prompt: "hi", APIKey: "wrong",
	})
	require.NoError(t, err, "vendor error statuses pass through, they are not transport failures")

	assert.Equal(t, http.StatusUnauthorized, result.Status)
	assert.Nil(t, result.Envelope.Output)
}

func TestDispatchTransportFailure(t *testing.T) {
	registry := newTestRegistry(t)

	gock.New("https://api.anthropic.com").
		Post("/v1/messages").
		ReplyError(errors.New("connection refused"))

	_, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "anthropic", Model: "claude-3", Prompt: "hi", APIKey: "k",
	})
	require.Error(t, err)

	var apiErr *models.APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures are plain errors until the route names them")
	assert.Contains(t, err.Error(), "anthropic")
}

func TestDispatchWrapsNonJSONBodies(t *testing.T) {
	registry := newTestRegistry(t)

	gock.New("https://api.mistral.ai").
		Post("/v1/chat/completions").
		Reply(http.StatusOK).
		BodyString("plain text")

	result, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "mistral", Model: "mistral-large", Prompt: "hi", APIKey: "k",
	})
	require.NoError(t, err)

	assert.False(t, result.JSON)
	assert.Nil(t, result.Envelope.Output)
	assert.JSONEq(t, `{"raw":"plain text"}`, string(result.Envelope.Raw.(json.RawMessage)))
}

func TestOllamaExtractFallsBackToPayload(t *testing.T) {
	registry := newTestRegistry(t)

	gock.New("http://127.0.0.1:11434").
		Post("/api/generate").
		Reply(http.StatusOK).
		JSON(map[string]any{"response": "hey", "done": true})

	result, err := registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "ollama", Model: "llama2", Prompt: "hi", Base: "http://127.0.0.1:11434/",
	})
	require.NoError(t, err)
	assert.Equal(t, "hey", result.Envelope.Output)

	gock.New("http://127.0.0.1:11434").
		Post("/api/generate").
		Reply(http.StatusOK).
		JSON(map[string]any{"done": true})

	result, err = registry.Dispatch(context.Background(), models.ChatRequest{
		Provider: "ollama", Model: "llama2", Prompt: "hi", Base: "http://127.0.0.1:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"done": true}, result.Envelope.Output)
}

func TestGoogleAIGenerateURLStripsModelsPrefix(t *testing.T) {
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent?key=k",
		GoogleAIGenerateURL("models/gemini-pro", "k"))
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent?key=k",
		GoogleAIGenerateURL("gemini-pro", "k"))
}
