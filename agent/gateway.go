package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"auralytics/config"
)

// Sampling parameters are fixed across every call: answers must be as
// deterministic as the backends allow, with no per-call tuning.
const (
	gatewayTemperature float32 = 0.1
	gatewayTopP        float32 = 0.9
)

// Provider is one language-model backend. Implementations retry once against
// a smaller model of the same provider before returning an error.
type Provider interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// Gateway normalizes one or more providers behind a single text-or-nothing
// contract. It never returns an error to its caller: any network failure,
// timeout or bad status from every provider surfaces as "".
type Gateway struct {
	providers []Provider
	timeout   time.Duration
	maxChars  int
	log       func(string)
}

// NewGateway builds the provider chain from config: OpenAI first, Anthropic
// as the cross-provider fallback. Providers with no API key are skipped.
func NewGateway(cfg config.Config, logFunc func(string)) (*Gateway, error) {
	var providers []Provider

	if cfg.OpenAI.APIKey != "" || cfg.OpenAI.BaseURL != "" {
		p, err := NewOpenAIProvider(context.Background(), cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI provider: %v", err)
		}
		providers = append(providers, p)
	}
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.Anthropic, logFunc))
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	timeoutSec := cfg.GatewayTimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = config.DefaultGatewayTimeoutSec
	}
	maxChars := cfg.MaxResponseChars
	if maxChars <= 0 {
		maxChars = config.DefaultMaxResponseChars
	}

	return &Gateway{
		providers: providers,
		timeout:   time.Duration(timeoutSec) * time.Second,
		maxChars:  maxChars,
		log:       logFunc,
	}, nil
}

// NewGatewayWithProviders wires an explicit provider chain; used by tests and
// by callers that already hold provider clients.
func NewGatewayWithProviders(providers []Provider, timeout time.Duration, maxChars int, logFunc func(string)) *Gateway {
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultGatewayTimeoutSec) * time.Second
	}
	if maxChars <= 0 {
		maxChars = config.DefaultMaxResponseChars
	}
	return &Gateway{providers: providers, timeout: timeout, maxChars: maxChars, log: logFunc}
}

func (g *Gateway) logf(format string, args ...interface{}) {
	if g.log != nil {
		g.log(fmt.Sprintf(format, args...))
	}
}

// Generate tries each provider in order and returns the first non-empty
// response, capped at maxChars. Returns "" when every provider fails.
func (g *Gateway) Generate(ctx context.Context, systemPrompt, userContent string) string {
	for _, p := range g.providers {
		if text := g.generateWith(ctx, p, systemPrompt, userContent); text != "" {
			return text
		}
	}
	g.logf("[GATEWAY] all providers failed, returning empty response")
	return ""
}

// generateWith runs a single provider under the gateway timeout, swallowing
// its error. The forcer uses this to walk the chain itself when it needs to
// re-parse each provider's output separately.
func (g *Gateway) generateWith(ctx context.Context, p Provider, systemPrompt, userContent string) string {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := p.Generate(callCtx, systemPrompt, userContent)
	if err != nil {
		g.logf("[GATEWAY] provider %s failed: %v", p.Name(), err)
		return ""
	}
	if len(text) > g.maxChars {
		g.logf("[GATEWAY] provider %s response truncated from %d to %d chars", p.Name(), len(text), g.maxChars)
		text = text[:g.maxChars]
	}
	return text
}

// OpenAIProvider is the primary backend, built on the eino OpenAI chat model.
// It holds a primary and an optional smaller fallback model.
type OpenAIProvider struct {
	primary  model.BaseChatModel
	fallback model.BaseChatModel
}

// NewOpenAIProvider creates the chat model clients for the configured models.
func NewOpenAIProvider(ctx context.Context, pc config.ProviderConfig) (*OpenAIProvider, error) {
	temp := gatewayTemperature
	topP := gatewayTopP

	primary, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       pc.Model,
		Temperature: &temp,
		TopP:        &topP,
	})
	if err != nil {
		return nil, err
	}

	p := &OpenAIProvider{primary: primary}

	if pc.FallbackModel != "" {
		fb, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      pc.APIKey,
			BaseURL:     pc.BaseURL,
			Model:       pc.FallbackModel,
			Temperature: &temp,
			TopP:        &topP,
		})
		if err != nil {
			return nil, err
		}
		p.fallback = fb
	}

	return p, nil
}

// Name identifies the provider in logs.
func (p *OpenAIProvider) Name() string { return "openai" }

// Generate calls the primary model, retrying once against the fallback model
// on any failure.
func (p *OpenAIProvider) Generate(ctx context.Context, systemPrompt, userContent string) (string, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: systemPrompt},
		{Role: schema.User, Content: userContent},
	}

	resp, err := p.primary.Generate(ctx, messages)
	if err == nil && resp != nil && resp.Content != "" {
		return resp.Content, nil
	}

	if p.fallback != nil {
		fbResp, fbErr := p.fallback.Generate(ctx, messages)
		if fbErr == nil && fbResp != nil && fbResp.Content != "" {
			return fbResp.Content, nil
		}
	}

	if err == nil {
		err = fmt.Errorf("empty response from model")
	}
	return "", err
}
