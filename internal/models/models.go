package models

import "encoding/json"

// ChatRequest is the canonical shape accepted by the unified dispatch layer.
type ChatRequest struct {
	Provider string           `json:"provider"`
	Model    string           `json:"model"`
	Prompt   string           `json:"prompt"`
	APIKey   string           `json:"apiKey"`
	Base     string           `json:"base"`
	Azure    *AzureCredential `json:"azure"`
}

// AzureCredential is the nested credential block for Azure OpenAI. Any
// field may be empty; resolution falls back to top-level request fields.
type AzureCredential struct {
	Endpoint   string `json:"endpoint"`
	APIKey     string `json:"apiKey"`
	Deployment string `json:"deployment"`
	APIVersion string `json:"apiVersion"`
}

// ChatEnvelope is the normalized response returned by generation routes.
// Output is best-effort: null means the upstream call succeeded but its
// payload did not match the adapter's extraction path. Raw carries the
// verbatim upstream payload, either parsed JSON or a {"raw": text} wrapper
// for non-JSON bodies.
type ChatEnvelope struct {
	Output any `json:"output"`
	Raw    any `json:"raw"`
}

// ModelsEnvelope is the normalized response for model-listing routes.
type ModelsEnvelope struct {
	Models []string `json:"models"`
	Raw    any      `json:"raw"`
}

// RawBody wraps an opaque non-JSON upstream body.
type RawBody struct {
	Raw string `json:"raw"`
}

// SearchItem is one normalized web search result.
type SearchItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchEnvelope is the normalized search tool response.
type SearchEnvelope struct {
	Items []SearchItem `json:"items"`
}

// WeatherEnvelope is the normalized weather tool response.
type WeatherEnvelope struct {
	Message string          `json:"message"`
	Place   string          `json:"place"`
	Current json.RawMessage `json:"current"`
}
