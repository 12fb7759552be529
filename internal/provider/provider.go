package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"zeek-gateway/internal/models"
	"zeek-gateway/internal/upstream"
)

// dispatchTimeout bounds every generation call.
const dispatchTimeout = 60 * time.Second

// call describes one adapter-built upstream HTTP request.
type call struct {
	URL     string
	Headers map[string]string
	Payload any
}

// Adapter binds one upstream vendor's wire protocol: its match prefix,
// required credentials, request shape, and response extraction path.
type Adapter struct {
	Name    string
	Prefix  string
	Require func(req models.ChatRequest) error
	Build   func(req models.ChatRequest) call
	Extract func(data gjson.Result) any
}

// Result is the outcome of a successful (transport-level) dispatch. Status
// mirrors the upstream response verbatim.
type Result struct {
	Status   int
	JSON     bool
	Body     []byte
	Envelope models.ChatEnvelope
}

// Registry holds the adapter set in fixed priority order. First prefix
// match wins, so the order must be preserved if prefix-colliding adapters
// are ever added.
type Registry struct {
	client   *upstream.Client
	adapters []Adapter
}

// NewRegistry constructs the registry with the full adapter catalog.
func NewRegistry(client *upstream.Client) *Registry {
	return &Registry{
		client:   client,
		adapters: adapterCatalog(),
	}
}

// Resolve finds the adapter whose prefix matches the given provider name.
// Matching is case-insensitive on an already-normalized name.
func (r *Registry) Resolve(provider string) (Adapter, bool) {
	for _, adapter := range r.adapters {
		if strings.HasPrefix(provider, adapter.Prefix) {
			return adapter, true
		}
	}
	return Adapter{}, false
}

// Normalize trims and canonicalizes a canonical chat request in place.
func Normalize(req *models.ChatRequest) {
	req.Provider = strings.ToLower(strings.TrimSpace(req.Provider))
	req.Model = strings.TrimSpace(req.Model)
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.APIKey = strings.TrimSpace(req.APIKey)
	req.Base = strings.TrimRight(strings.TrimSpace(req.Base), "/")
}

// Dispatch validates the canonical request, resolves its adapter, performs
// exactly one upstream call, and normalizes the response. Transport-level
// failures come back as an error naming the adapter; extraction failures do
// not (output is simply null).
func (r *Registry) Dispatch(ctx context.Context, req models.ChatRequest) (*Result, error) {
	Normalize(&req)

	if req.Provider == "" || req.Model == "" || req.Prompt == "" {
		return nil, models.BadRequest("provider, model, and prompt are required")
	}

	adapter, ok := r.Resolve(req.Provider)
	if !ok {
		return nil, models.UnsupportedProvider(req.Provider)
	}

	if err := adapter.Require(req); err != nil {
		return nil, err
	}

	return r.invoke(ctx, adapter, req)
}

// Invoke executes a named adapter directly, bypassing prefix resolution and
// credential checks. Per-provider routes validate their own inputs first.
func (r *Registry) Invoke(ctx context.Context, name string, req models.ChatRequest) (*Result, error) {
	for _, adapter := range r.adapters {
		if adapter.Name == name {
			return r.invoke(ctx, adapter, req)
		}
	}
	return nil, models.UnsupportedProvider(name)
}

func (r *Registry) invoke(ctx context.Context, adapter Adapter, req models.ChatRequest) (*Result, error) {
	upCall := adapter.Build(req)

	resp, err := r.client.PostJSON(ctx, dispatchTimeout, upCall.URL, upCall.Payload, upCall.Headers)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", adapter.Name, err)
	}

	return normalize(adapter, resp), nil
}

// normalize folds a transport-level success into the envelope contract:
// JSON bodies are carried verbatim, non-JSON bodies are wrapped as
// {"raw": text}, and the adapter's extraction path is applied best-effort.
func normalize(adapter Adapter, resp *upstream.Response) *Result {
	rawJSON := resp.Body
	isJSON := resp.IsJSON()
	if !isJSON {
		rawJSON, _ = json.Marshal(models.RawBody{Raw: resp.Text()})
	}

	data := gjson.ParseBytes(rawJSON)
	output := adapter.Extract(data)

	return &Result{
		Status: resp.Status,
		JSON:   isJSON,
		Body:   resp.Body,
		Envelope: models.ChatEnvelope{
			Output: output,
			Raw:    json.RawMessage(rawJSON),
		},
	}
}
