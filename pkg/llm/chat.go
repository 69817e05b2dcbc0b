package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/xhad/subsearch/internal/logging"
	"github.com/xhad/subsearch/internal/models"
	"github.com/xhad/subsearch/internal/types"
)

var (
	ErrEmptyResponse = errors.New("empty response from model")
	ErrUnavailable   = errors.New("chat model temporarily unavailable")
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	BaseURL        string // Ollama server URL
	APIKey         string // Gemini
	// MaxHistoryTurns bounds how many earlier turns are replayed.
	MaxHistoryTurns   int
	RequestsPerSecond float64
	BreakerTimeout    time.Duration
}

// ChatEngine answers movie questions from retrieved matches.
type ChatEngine struct {
	config  ChatConfig
	gen     types.Generator
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func applyChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return config, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = DefaultSystemTemplate
	}
	if config.MaxHistoryTurns == 0 {
		config.MaxHistoryTurns = 10
	}
	if config.BreakerTimeout <= 0 {
		config.BreakerTimeout = 60 * time.Second
	}
	return config, nil
}

// NewWithConfig creates a ChatEngine for the configured provider.
func NewWithConfig(ctx context.Context, config ChatConfig) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	var gen types.Generator
	switch config.Provider {
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "mistral"
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434"
		}
		gen, err = NewOllamaGenerator(config)
	case ProviderGemini:
		if config.Model == "" {
			config.Model = "gemini-1.5-pro"
		}
		gen, err = NewGeminiGenerator(ctx, config)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownProvider, config.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewChatEngine(gen, config)
}

// NewChatEngine wraps an existing generator with the breaker and limiter.
func NewChatEngine(gen types.Generator, config ChatConfig) (*ChatEngine, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	ce := &ChatEngine{config: config, gen: gen}
	ce.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chat-" + config.Provider,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	if config.RequestsPerSecond > 0 {
		ce.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return ce, nil
}

// Generate sends messages through the limiter and circuit breaker.
func (ce *ChatEngine) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	if ce.limiter != nil {
		if err := ce.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	result, err := ce.breaker.Execute(func() (interface{}, error) {
		return ce.gen.Generate(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.FromContext(ctx).Warn("chat circuit open", zap.String("provider", ce.config.Provider))
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", fmt.Errorf("chat error: %w", err)
	}
	return result.(string), nil
}

// Chat answers query given the retrieved matches and earlier turns.
func (ce *ChatEngine) Chat(ctx context.Context, query string, matches []models.MovieMatch, history []models.ChatTurn) (string, error) {
	if len(history) > ce.config.MaxHistoryTurns && ce.config.MaxHistoryTurns > 0 {
		history = history[len(history)-ce.config.MaxHistoryTurns:]
	}
	system := BuildSystemPrompt(ce.config.SystemTemplate, query, matches)
	return ce.Generate(ctx, BuildMessages(system, history, query))
}

func (ce *ChatEngine) State() string { return ce.breaker.State().String() }

// DefaultSystemTemplate takes the user query, the movie list and the instruction.
const DefaultSystemTemplate = `You are an AI-powered movie search assistant.

User Query: %s

Relevant Movies Retrieved:
%s

%s`

const (
	noMoviesLine     = "No relevant movies found."
	groundedInstruct = "Respond only based on the retrieved movies and their relevance scores. Do not make assumptions or suggest movies outside the list."
	noMoviesInstruct = "Inform the user that no relevant movies were retrieved."
	relevanceLineFmt = "- %s (Relevance Score: %.2f)"
)

// BuildSystemPrompt lists the matches whose score lies in [0, 1].
func BuildSystemPrompt(template, query string, matches []models.MovieMatch) string {
	var lines []string
	for _, m := range matches {
		if m.Score < 0 || m.Score > 1 {
			continue
		}
		lines = append(lines, fmt.Sprintf(relevanceLineFmt, m.Label, m.Score))
	}

	list, instruct := noMoviesLine, noMoviesInstruct
	if len(lines) > 0 {
		list, instruct = strings.Join(lines, "\n"), groundedInstruct
	}
	return fmt.Sprintf(template, query, list, instruct)
}

// BuildMessages orders the system prompt, earlier turns and the new query.
func BuildMessages(system string, history []models.ChatTurn, query string) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, 2+2*len(history))
	messages = append(messages, models.ChatMessage{Role: models.RoleSystem, Content: system})
	for _, turn := range history {
		messages = append(messages,
			models.ChatMessage{Role: models.RoleUser, Content: turn.Query},
			models.ChatMessage{Role: models.RoleAssistant, Content: turn.Response},
		)
	}
	return append(messages, models.ChatMessage{Role: models.RoleUser, Content: query})
}

// OllamaGenerator generates replies with a local ollama model.
type OllamaGenerator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

func NewOllamaGenerator(config ChatConfig) (*OllamaGenerator, error) {
	llm, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	return &OllamaGenerator{llm: llm, temperature: config.Temperature, maxTokens: config.MaxTokens}, nil
}

func (g *OllamaGenerator) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case models.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case models.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	resp, err := g.llm.GenerateContent(ctx, content,
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens))
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// GeminiGenerator generates replies with the hosted Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiGenerator(ctx context.Context, config ChatConfig) (*GeminiGenerator, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini: %w", err)
	}
	return &GeminiGenerator{client: client, model: config.Model, temperature: float32(config.Temperature)}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, messages []models.ChatMessage) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	var contents []*genai.Content
	for _, m := range messages {
		part := &genai.Part{Text: m.Content}
		switch m.Role {
		case models.RoleSystem:
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{part}}
		case models.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{part}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
