package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"zeek-gateway/internal/models"
	"zeek-gateway/internal/provider"
)

// Per-route upstream timeout budgets.
const (
	generateTimeout      = 60 * time.Second
	miniTimeout          = 15 * time.Second
	modelListTimeout     = 20 * time.Second
	ollamaVersionTimeout = 5 * time.Second
	ollamaTagsTimeout    = 8 * time.Second
)

// upstreamFailure translates a transport-level dispatch error into the 502
// taxonomy entry for the named upstream, letting typed errors pass through.
func upstreamFailure(name string, err error) error {
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return models.UpstreamError(name, err)
}

func (s *Server) handleChat(c echo.Context) error {
	var req models.ChatRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	result, err := s.registry.Dispatch(c.Request().Context(), req)
	if err != nil {
		return upstreamFailure("chat", err)
	}

	return c.JSON(result.Status, result.Envelope)
}

// generateRequest is the request body shared by the per-provider generate
// routes that pre-date the unified /api/chat endpoint.
type generateRequest struct {
	APIKey string `json:"apiKey"`
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Base   string `json:"base"`
}

func (s *Server) handleGoogleAIGenerate(c echo.Context) error {
	var req generateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	apiKey := strings.TrimSpace(req.APIKey)
	model := strings.TrimSpace(req.Model)
	prompt := strings.TrimSpace(req.Prompt)
	if apiKey == "" || model == "" || prompt == "" {
		return models.BadRequest("apiKey, model, and prompt are required")
	}

	result, err := s.registry.Invoke(c.Request().Context(), "googleai", models.ChatRequest{
		APIKey: apiKey,
		Model:  model,
		Prompt: prompt,
	})
	if err != nil {
		return upstreamFailure("googleai", err)
	}

	return respondGenerate(c, result)
}

func (s *Server) handleOpenRouterGenerate(c echo.Context) error {
	var req generateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	apiKey := strings.TrimSpace(req.APIKey)
	model := strings.TrimSpace(req.Model)
	prompt := strings.TrimSpace(req.Prompt)
	if apiKey == "" || model == "" || prompt == "" {
		return models.BadRequest("apiKey, model, and prompt are required")
	}

	result, err := s.registry.Invoke(c.Request().Context(), "openrouter", models.ChatRequest{
		APIKey: apiKey,
		Model:  model,
		Prompt: prompt,
	})
	if err != nil {
		return upstreamFailure("openrouter", err)
	}

	return respondGenerate(c, result)
}

// respondGenerate keeps the per-provider contract: JSON upstreams get the
// output/raw envelope, non-JSON upstreams a bare {"raw": text}.
func respondGenerate(c echo.Context, result *provider.Result) error {
	if !result.JSON {
		return c.JSON(result.Status, models.RawBody{Raw: string(result.Body)})
	}
	return c.JSON(result.Status, result.Envelope)
}

func (s *Server) handleGoogleAIModels(c echo.Context) error {
	apiKey := c.QueryParam("apiKey")

	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models?key=%s", apiKey)
	resp, err := s.client.Get(c.Request().Context(), modelListTimeout, url, nil, nil)
	if err != nil {
		return models.UpstreamError("googleai", err)
	}
	if !resp.IsJSON() {
		return c.JSON(resp.Status, models.RawBody{Raw: resp.Text()})
	}

	names := lo.FilterMap(gjson.GetBytes(resp.Body, "models").Array(), func(m gjson.Result, _ int) (string, bool) {
		name := m.Get("name").String()
		return name, name != ""
	})

	return c.JSON(resp.Status, models.ModelsEnvelope{Models: names, Raw: json.RawMessage(resp.Body)})
}

func (s *Server) handleOpenRouterModels(c echo.Context) error {
	apiKey := c.QueryParam("apiKey")

	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Accept":        "application/json",
	}
	resp, err := s.client.Get(c.Request().Context(), modelListTimeout, "https://openrouter.ai/api/v1/models", nil, headers)
	if err != nil {
		return models.UpstreamError("openrouter", err)
	}
	if !resp.IsJSON() {
		return c.JSON(resp.Status, models.RawBody{Raw: resp.Text()})
	}

	names := lo.FilterMap(gjson.GetBytes(resp.Body, "data").Array(), func(m gjson.Result, _ int) (string, bool) {
		id := m.Get("id").String()
		return id, id != ""
	})

	return c.JSON(resp.Status, models.ModelsEnvelope{Models: names, Raw: json.RawMessage(resp.Body)})
}

func (s *Server) handleOllamaGenerate(c echo.Context) error {
	var req generateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	base := strings.TrimRight(strings.TrimSpace(req.Base), "/")
	if base == "" || req.Model == "" || req.Prompt == "" {
		return models.BadRequest("base, model, and prompt are required")
	}

	resp, err := s.client.PostJSON(c.Request().Context(), generateTimeout, base+"/api/generate",
		provider.OllamaGeneratePayload(req.Model, req.Prompt), nil)
	if err != nil {
		return models.UpstreamError("ollama", err)
	}

	return respondUpstream(c, resp)
}

func (s *Server) handleOllamaVersion(c echo.Context) error {
	return s.proxyOllama(c, "/api/version", ollamaVersionTimeout)
}

func (s *Server) handleOllamaTags(c echo.Context) error {
	return s.proxyOllama(c, "/api/tags", ollamaTagsTimeout)
}

// proxyOllama forwards a metadata read to the runner named in the base
// query parameter, sidestepping browser CORS against the local runner.
func (s *Server) proxyOllama(c echo.Context, path string, timeout time.Duration) error {
	base := strings.TrimRight(strings.TrimSpace(c.QueryParam("base")), "/")
	if base == "" {
		return models.BadRequest("base is required")
	}

	resp, err := s.client.Get(c.Request().Context(), timeout, base+path, nil, nil)
	if err != nil {
		return models.UpstreamError("ollama", err)
	}

	return respondUpstream(c, resp)
}

type miniGenerateRequest struct {
	Prompt      string   `json:"prompt"`
	System      string   `json:"system"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
}

// handleMiniGenerate serves the lightweight local-model endpoint backed by
// the configured runner and model.
func (s *Server) handleMiniGenerate(c echo.Context) error {
	var req miniGenerateRequest
	if err := decodeRequestBody(c, &req); err != nil {
		return err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return models.BadRequest("prompt is required")
	}

	// The runner's generate API takes a flat prompt, so the system prompt
	// is prepended rather than sent as a role.
	composed := prompt
	if system := strings.TrimSpace(req.System); system != "" {
		composed = fmt.Sprintf("SYSTEM:\n%s\n\n%s", system, prompt)
	}

	payload := provider.OllamaGeneratePayload(s.cfg.Ollama.MiniModel, composed)
	if req.Temperature != nil {
		payload["temperature"] = *req.Temperature
	}
	if req.MaxTokens != nil {
		payload["num_predict"] = *req.MaxTokens
	}

	resp, err := s.client.PostJSON(c.Request().Context(), miniTimeout, s.cfg.Ollama.Base+"/api/generate", payload, nil)
	if err != nil {
		return models.UpstreamError("mini", err)
	}
	if resp.Status != http.StatusOK {
		return &models.APIError{
			Status:  resp.Status,
			Code:    "ollama_error",
			Message: "Ollama error",
			Extra:   map[string]any{"raw": resp.Text()},
		}
	}

	var text any
	if resp.IsJSON() {
		if v := gjson.GetBytes(resp.Body, "response"); v.Exists() {
			text = v.Value()
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": map[string]any{"text": text},
		"meta": map[string]any{"model": s.cfg.Ollama.MiniModel},
	})
}
