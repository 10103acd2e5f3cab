package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
)

const defaultRequestTimeout = 5 * time.Minute

type Config struct {
	Provider  ModelType
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client talks to one provider. SDK clients are built lazily on first use
// so a missing key surfaces when a session opens, not at startup.
type Client struct {
	Provider   ModelType
	BaseURL    string
	APIKey     string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client

	mu           sync.Mutex
	anthropicSDK anthropic.Client
	openaiSDK    openai.Client
}

func NewClient(cfg Config) *Client {
	provider := cfg.Provider
	if provider == "" {
		provider = ModelTypeAnthropics
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = provider.DefaultModel()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		Provider:   provider,
		BaseURL:    strings.TrimSpace(cfg.BaseURL),
		APIKey:     strings.TrimSpace(cfg.APIKey),
		Model:      model,
		MaxTokens:  cfg.MaxTokens,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Ready reports whether the client can issue requests.
func (c *Client) Ready() error {
	if c == nil {
		return errors.New("nil client")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		switch c.Provider {
		case ModelTypeOpenAI:
			return errors.New("api key is required (set OPENAI_API_KEY or api_key in config)")
		default:
			return errors.New("api key is required (set ANTHROPIC_API_KEY or api_key in config)")
		}
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model is required")
	}
	return nil
}

// Stream sends req and reports text through onDelta as it arrives. The
// returned response holds the complete assistant message, including any
// tool calls.
func (c *Client) Stream(ctx context.Context, req ChatRequest, onDelta DeltaFunc) (*ChatResponse, error) {
	if err := c.Ready(); err != nil {
		return nil, err
	}
	if onDelta == nil {
		onDelta = func(string) {}
	}
	switch c.Provider {
	case ModelTypeOpenAI:
		resp, err := c.chatOpenAI(ctx, req)
		if err != nil {
			return nil, err
		}
		if text := resp.Choices[0].Message.Content; text != "" {
			onDelta(text)
		}
		return resp, nil
	default:
		return c.streamAnthropic(ctx, req, onDelta)
	}
}

func (c *Client) resolveModel(req ChatRequest) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = strings.TrimSpace(c.Model)
	}
	if model == "" {
		return "", errors.New("model is required")
	}
	return model, nil
}

func (c *Client) resolveMaxTokens(req ChatRequest, fallback int) int {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 && c.MaxTokens > 0 {
		maxTokens = c.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = fallback
	}
	return maxTokens
}
