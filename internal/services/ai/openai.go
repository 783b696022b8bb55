package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

// Provider defaults
const (
	DefaultOpenAIModel        = "gpt-4o-mini"
	DefaultOpenAIBaseURL      = "https://api.openai.com/v1"
	DefaultSiliconFlowModel   = "deepseek-ai/DeepSeek-V3.1"
	DefaultSiliconFlowBaseURL = "https://api.siliconflow.cn/v1"

	// DefaultTimeout bounds one completion round trip
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrMissingAPIKey is returned when a provider is built without credentials
	ErrMissingAPIKey = errors.New("AI API key is required")
	// ErrNoChoices is returned when a completion carries no choices
	ErrNoChoices = errors.New("no choices in response")
)

// OpenAIProvider implements Completer against any OpenAI-compatible chat
// completions API. The SDK does not retry: throttled calls surface as *APIError
// and the synthesizer and worker decide when to try again.
type OpenAIProvider struct {
	client   openai.Client
	model    string
	jsonMode bool
	logger   *zap.Logger
	debug    bool
}

// NewOpenAIProvider builds a provider from cfg. Empty BaseURL and Model fall back
// to the OpenAI defaults. Traffic is logged only when cfg.DebugMode is set.
func NewOpenAIProvider(cfg ProviderConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAIProvider{
		client: openai.NewClient(
			option.WithAPIKey(cfg.APIKey),
			option.WithBaseURL(cfg.BaseURL),
			option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
			option.WithMaxRetries(0),
		),
		model:    cfg.Model,
		jsonMode: cfg.JSONMode,
		logger:   logger,
		debug:    cfg.DebugMode,
	}
}

// Model returns the configured model name
func (p *OpenAIProvider) Model() string {
	return p.model
}

func (p *OpenAIProvider) buildParams(req CompletionRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: messages,
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	// Some compatible endpoints reject response_format; JSONMode=false skips it
	if req.JSONMode && p.jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// Complete sends req and returns the first choice's content. Throttling errors
// are returned as *APIError wrapped with the operation name.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := p.buildParams(req)
	operation := req.Operation
	if operation == "" {
		operation = "complete prompt"
	}
	call := []zap.Field{
		zap.String("operation", operation),
		zap.String("model", p.model),
		zap.String("session_id", ExtractSessionID(ctx)),
		zap.String("request_id", ExtractRequestID(ctx)),
	}

	p.trace("llm_api_request", call,
		zap.Int("prompt_length", len(req.Prompt)),
		zap.Int("message_count", len(params.Messages)),
		zap.String("prompt_preview", SanitizePrompt(req.Prompt, true)))

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := zap.Int64("latency_ms", time.Since(start).Milliseconds())
	if err != nil {
		p.trace("llm_api_error", call, latency, zap.Error(err))
		if apiErr := ExtractAPIError(err); apiErr != nil {
			err = apiErr
		}
		return "", fmt.Errorf("failed to %s: %w", operation, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("failed to %s: %w", operation, ErrNoChoices)
	}

	content := resp.Choices[0].Message.Content
	p.trace("llm_api_response", call, latency,
		zap.Int("response_length", len(content)),
		zap.String("response_preview", SanitizeResponse(content, true)))
	return content, nil
}

// trace writes a debug entry when debug mode is on
func (p *OpenAIProvider) trace(msg string, call []zap.Field, extra ...zap.Field) {
	if !p.debug {
		return
	}
	p.logger.Debug(msg, append(append([]zap.Field{}, call...), extra...)...)
}
