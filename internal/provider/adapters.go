package provider

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"zeek-gateway/internal/models"
)

const anthropicAPIVersion = "2023-06-01"

// Vendor endpoints. The local runner's URL comes from the request instead.
const (
	googleAIEndpoint   = "https://generativelanguage.googleapis.com/v1beta"
	openRouterEndpoint = "https://openrouter.ai/api/v1"
	openAIEndpoint     = "https://api.openai.com/v1"
	anthropicEndpoint  = "https://api.anthropic.com/v1"
	mistralEndpoint    = "https://api.mistral.ai/v1"
	groqEndpoint       = "https://api.groq.com/openai/v1"
	cohereEndpoint     = "https://api.cohere.ai/v2"
)

// adapterCatalog returns every adapter in match priority order. The order
// mirrors the dispatch precedence the gateway has always used; first match
// wins.
func adapterCatalog() []Adapter {
	return []Adapter{
		ollamaAdapter(),
		googleAIAdapter(),
		openAICompatible("openrouter", "openrouter", "OpenRouter", openRouterEndpoint),
		openAICompatible("openai", "openai", "OpenAI", openAIEndpoint),
		anthropicAdapter(),
		openAICompatible("mistral", "mistral", "Mistral", mistralEndpoint),
		openAICompatible("groq", "groq", "Groq", groqEndpoint),
		cohereAdapter(),
		azureAdapter(),
	}
}

// userMessagePayload wraps the canonical prompt as a single user-role
// message, the only conversation shape the dispatch layer supports.
func userMessagePayload(model, prompt string) map[string]any {
	return map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
}

// extractPath resolves a fixed extraction path, returning the value found
// there or nil when the payload does not match the expected shape.
func extractPath(path string) func(data gjson.Result) any {
	return func(data gjson.Result) any {
		if v := data.Get(path); v.Exists() {
			return v.Value()
		}
		return nil
	}
}

func requireAPIKey(display string) func(req models.ChatRequest) error {
	return func(req models.ChatRequest) error {
		if req.APIKey == "" {
			return models.BadRequest(fmt.Sprintf("%s apiKey is required", display))
		}
		return nil
	}
}

func bearerHeaders(apiKey string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + apiKey}
}

// openAICompatible covers every vendor speaking the OpenAI chat-completions
// wire format with bearer auth.
func openAICompatible(name, prefix, display, endpoint string) Adapter {
	return Adapter{
		Name:    name,
		Prefix:  prefix,
		Require: requireAPIKey(display),
		Build: func(req models.ChatRequest) call {
			return call{
				URL:     endpoint + "/chat/completions",
				Headers: bearerHeaders(req.APIKey),
				Payload: userMessagePayload(req.Model, req.Prompt),
			}
		},
		Extract: extractPath("choices.0.message.content"),
	}
}

func ollamaAdapter() Adapter {
	return Adapter{
		Name:   "ollama",
		Prefix: "ollama",
		Require: func(req models.ChatRequest) error {
			if req.Base == "" {
				return models.BadRequest("Ollama base is required")
			}
			return nil
		},
		Build: func(req models.ChatRequest) call {
			return call{
				URL:     req.Base + "/api/generate",
				Payload: OllamaGeneratePayload(req.Model, req.Prompt),
			}
		},
		// The runner answers {"response": "..."}; when that field is absent
		// the whole payload stands in as the output.
		Extract: func(data gjson.Result) any {
			if v := data.Get("response"); v.Exists() && v.String() != "" {
				return v.Value()
			}
			return data.Value()
		},
	}
}

func googleAIAdapter() Adapter {
	return Adapter{
		Name:    "googleai",
		Prefix:  "google",
		Require: requireAPIKey("Google AI"),
		Build: func(req models.ChatRequest) call {
			return call{
				URL:     GoogleAIGenerateURL(req.Model, req.APIKey),
				Payload: GoogleAIGeneratePayload(req.Prompt),
			}
		},
		Extract: extractPath("candidates.0.content.parts.0.text"),
	}
}

func anthropicAdapter() Adapter {
	return Adapter{
		Name:    "anthropic",
		Prefix:  "anthropic",
		Require: requireAPIKey("Anthropic"),
		Build: func(req models.ChatRequest) call {
			payload := userMessagePayload(req.Model, req.Prompt)
			payload["max_tokens"] = 1024
			return call{
				URL: anthropicEndpoint + "/messages",
				Headers: map[string]string{
					"x-api-key":         req.APIKey,
					"anthropic-version": anthropicAPIVersion,
				},
				Payload: payload,
			}
		},
		Extract: extractPath("content.0.text"),
	}
}

func cohereAdapter() Adapter {
	return Adapter{
		Name:    "cohere",
		Prefix:  "cohere",
		Require: requireAPIKey("Cohere"),
		Build: func(req models.ChatRequest) call {
			return call{
				URL:     cohereEndpoint + "/chat",
				Headers: bearerHeaders(req.APIKey),
				Payload: userMessagePayload(req.Model, req.Prompt),
			}
		},
		Extract: func(data gjson.Result) any {
			if v := data.Get("text"); v.Exists() {
				return v.Value()
			}
			if v := data.Get("output"); v.Exists() {
				return v.Value()
			}
			return nil
		},
	}
}

func azureAdapter() Adapter {
	return Adapter{
		Name:   "azure",
		Prefix: "azure",
		Require: func(req models.ChatRequest) error {
			cred := ResolveAzureCredential(req)
			if cred.Endpoint == "" || cred.APIKey == "" || cred.Deployment == "" {
				return models.BadRequest("Azure endpoint, apiKey and deployment are required")
			}
			return nil
		},
		Build: func(req models.ChatRequest) call {
			cred := ResolveAzureCredential(req)
			return call{
				URL: fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
					strings.TrimRight(cred.Endpoint, "/"), cred.Deployment, cred.APIVersion),
				Headers: map[string]string{"api-key": cred.APIKey},
				Payload: map[string]any{
					"messages": []map[string]any{
						{"role": "user", "content": req.Prompt},
					},
				},
			}
		},
		Extract: extractPath("choices.0.message.content"),
	}
}

// OllamaGeneratePayload is the non-streaming generate body for the local
// runner, shared with the per-provider and lightweight-model routes.
func OllamaGeneratePayload(model, prompt string) map[string]any {
	return map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}
}

// GoogleAIGenerateURL builds the generateContent URL, tolerating model IDs
// carrying the vendor's "models/" prefix.
func GoogleAIGenerateURL(model, apiKey string) string {
	model = strings.TrimPrefix(model, "models/")
	return fmt.Sprintf("%s/models/%s:generateContent?key=%s", googleAIEndpoint, model, apiKey)
}

// GoogleAIGeneratePayload wraps a flat prompt in the contents/parts shape.
func GoogleAIGeneratePayload(prompt string) map[string]any {
	return map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
	}
}
