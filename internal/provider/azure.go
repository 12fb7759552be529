package provider

import "zeek-gateway/internal/models"

const defaultAzureAPIVersion = "2025-03-01-preview"

// AzureCredential is the fully resolved Azure OpenAI credential set.
type AzureCredential struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// ResolveAzureCredential flattens the request's Azure fields with documented
// precedence: the nested azure block wins when a field is set; apiKey falls
// back to the top-level apiKey, deployment to the top-level model, and
// apiVersion to the gateway default.
func ResolveAzureCredential(req models.ChatRequest) AzureCredential {
	var nested models.AzureCredential
	if req.Azure != nil {
		nested = *req.Azure
	}

	cred := AzureCredential{
		Endpoint:   nested.Endpoint,
		APIKey:     nested.APIKey,
		Deployment: nested.Deployment,
		APIVersion: nested.APIVersion,
	}

	if cred.APIKey == "" {
		cred.APIKey = req.APIKey
	}
	if cred.Deployment == "" {
		cred.Deployment = req.Model
	}
	if cred.APIVersion == "" {
		cred.APIVersion = defaultAzureAPIVersion
	}
	return cred
}
