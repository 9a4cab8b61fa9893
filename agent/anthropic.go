package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"auralytics/config"
)

// AnthropicProvider is the cross-provider fallback backend, speaking the
// Anthropic messages wire format directly over HTTP.
type AnthropicProvider struct {
	apiKey        string
	baseURL       string
	model         string
	fallbackModel string
	maxTokens     int
	client        *http.Client
	log           func(string)
}

// NewAnthropicProvider creates the raw HTTP client for the configured models.
func NewAnthropicProvider(pc config.ProviderConfig, logFunc func(string)) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:        pc.APIKey,
		baseURL:       pc.BaseURL,
		model:         pc.Model,
		fallbackModel: pc.FallbackModel,
		maxTokens:     4096,
		client:        &http.Client{},
		log:           logFunc,
	}
}

// Name identifies the provider in logs.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Generate calls the primary model, retrying once against the fallback model
// on any failure. Timeouts come from the caller's context.
func (p *AnthropicProvider) Generate(ctx context.Context, systemPrompt, userContent string) (string, error) {
	text, err := p.generateModel(ctx, p.model, systemPrompt, userContent)
	if err == nil && text != "" {
		return text, nil
	}

	if p.fallbackModel != "" {
		if p.log != nil {
			p.log(fmt.Sprintf("[GATEWAY] anthropic model %s failed (%v), retrying with %s", p.model, err, p.fallbackModel))
		}
		fbText, fbErr := p.generateModel(ctx, p.fallbackModel, systemPrompt, userContent)
		if fbErr == nil && fbText != "" {
			return fbText, nil
		}
	}

	if err == nil {
		err = fmt.Errorf("empty response from Anthropic")
	}
	return "", err
}

func (p *AnthropicProvider) generateModel(ctx context.Context, modelName, systemPrompt, userContent string) (string, error) {
	fullURL := "https://api.anthropic.com/v1/messages"
	if p.baseURL != "" {
		u, err := url.Parse(p.baseURL)
		if err != nil {
			return "", fmt.Errorf("invalid base URL: %v", err)
		}

		path := u.Path
		if path == "" || path == "/" || path == "/v1" || path == "/v1/" {
			if !strings.HasSuffix(path, "/") {
				path += "/"
			}
			if !strings.HasPrefix(strings.TrimPrefix(path, "/"), "v1") {
				path += "v1/"
			}
			path += "messages"
		}
		u.Path = path
		fullURL = u.String()
	}

	body := map[string]interface{}{
		"model":       modelName,
		"max_tokens":  p.maxTokens,
		"system":      systemPrompt,
		"temperature": gatewayTemperature,
		"top_p":       gatewayTopP,
		"messages": []map[string]string{
			{"role": "user", "content": userContent},
		},
	}

	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", fullURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		if resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("API error (404): Not Found. Please check your Base URL and path (e.g., /v1/messages). Full URL used: %s", fullURL)
		}
		return "", fmt.Errorf("Anthropic API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Content) > 0 {
		return result.Content[0].Text, nil
	}

	return "", fmt.Errorf("no response from Anthropic")
}
