package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultBaseURL      = "https://api.groq.com/openai/v1/"
	DefaultModel        = "llama-3.1-8b-instant"
	DefaultSystemPrompt = "You are a helpful AI assistant. Keep responses concise and to the point."
	DefaultTemperature  = 0.5
	DefaultMaxTokens    = 150

	// NoResponseText é devolvido quando o provedor responde sem conteúdo.
	NoResponseText = "No response from AI."
)

// Completer é o cliente do LLM: uma mensagem entra, um texto sai.
type Completer interface {
	Complete(ctx context.Context, message string) (string, error)
}

// CompleterFunc adapta uma função comum para Completer.
type CompleterFunc func(ctx context.Context, message string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, message string) (string, error) {
	return f(ctx, message)
}

// EchoCompleter devolve a própria mensagem; útil em dev local sem chave de API.
type EchoCompleter struct{}

func (EchoCompleter) Complete(_ context.Context, message string) (string, error) {
	return "echo: " + message, nil
}

// OpenAICompleter fala com qualquer endpoint compatível com a API de chat
// completions da OpenAI (Groq por padrão).
type OpenAICompleter struct {
	client       openai.Client
	baseURL      string
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int64
	httpClient   *http.Client
}

type OpenAIOption func(*OpenAICompleter)

func WithBaseURL(u string) OpenAIOption {
	return func(c *OpenAICompleter) {
		if u = strings.TrimSpace(u); u != "" {
			c.baseURL = u
		}
	}
}

func WithModel(model string) OpenAIOption {
	return func(c *OpenAICompleter) {
		if model != "" {
			c.model = model
		}
	}
}

func WithSystemPrompt(prompt string) OpenAIOption {
	return func(c *OpenAICompleter) {
		if prompt != "" {
			c.systemPrompt = prompt
		}
	}
}

func WithTemperature(t float64) OpenAIOption {
	return func(c *OpenAICompleter) { c.temperature = t }
}

func WithMaxTokens(n int64) OpenAIOption {
	return func(c *OpenAICompleter) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

func WithHTTPClient(hc *http.Client) OpenAIOption {
	return func(c *OpenAICompleter) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewOpenAICompleter cria o cliente. Retries automáticos ficam desligados:
// quem reenvia é o cliente (UI).
func NewOpenAICompleter(apiKey string, opts ...OpenAIOption) (*OpenAICompleter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrEmptyAPIKey
	}

	c := &OpenAICompleter{
		baseURL:      DefaultBaseURL,
		model:        DefaultModel,
		systemPrompt: DefaultSystemPrompt,
		temperature:  DefaultTemperature,
		maxTokens:    DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithMaxRetries(0),
	}
	if c.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(c.httpClient))
	}
	c.client = openai.NewClient(reqOpts...)

	return c, nil
}

func (c *OpenAICompleter) Model() string { return c.model }

// Complete envia [system, user] e devolve o conteúdo da primeira escolha.
// Qualquer falha volta embrulhada em ErrProviderFailure.
func (c *OpenAICompleter) Complete(ctx context.Context, message string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemPrompt),
			openai.UserMessage(message),
		},
		Temperature:         openai.Float(c.temperature),
		MaxCompletionTokens: openai.Int(c.maxTokens),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: LLM API call failed with status %d: %s",
				ErrProviderFailure, apiErr.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return NoResponseText, nil
	}
	return resp.Choices[0].Message.Content, nil
}
