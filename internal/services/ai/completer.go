package ai

import (
	"context"

	"go.uber.org/zap"
)

// CompletionRequest is a single prompt sent to a completion provider
type CompletionRequest struct {
	// Operation names the call site for logs (classify_input, split_task, ...)
	Operation string
	System    string
	Prompt    string
	// Temperature is left to the model default when nil
	Temperature *float64
	// JSONMode asks the provider for a JSON object response when supported
	JSONMode bool
}

// Completer turns a prompt into free text. Output is untrusted and must be parsed defensively.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to the Completer interface
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

// Complete calls f
func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// Temperature returns a pointer for CompletionRequest.Temperature
func Temperature(v float64) *float64 {
	return &v
}

// ProviderConfig carries the settings used to build a provider
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	JSONMode  bool
	DebugMode bool
}

// ProviderFactory creates a completer for the given configuration
type ProviderFactory func(cfg ProviderConfig, logger *zap.Logger) (Completer, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// NewDefaultRegistry returns a registry with the OpenAI-compatible providers registered
func NewDefaultRegistry() *ProviderRegistry {
	r := NewProviderRegistry()
	r.Register("openai", openAICompatibleFactory(DefaultOpenAIBaseURL, DefaultOpenAIModel))
	r.Register("siliconflow", openAICompatibleFactory(DefaultSiliconFlowBaseURL, DefaultSiliconFlowModel))
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, cfg ProviderConfig, logger *zap.Logger) (Completer, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(cfg, logger)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}

func openAICompatibleFactory(defaultBaseURL, defaultModel string) ProviderFactory {
	return func(cfg ProviderConfig, logger *zap.Logger) (Completer, error) {
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultBaseURL
		}
		if cfg.Model == "" {
			cfg.Model = defaultModel
		}
		return NewOpenAIProvider(cfg, logger), nil
	}
}
