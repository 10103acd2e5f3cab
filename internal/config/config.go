// Package config loads overkill.yaml, the optional .env file and
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"overkill/internal/llm"
	"overkill/internal/mcpclient"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "overkill.yaml"

const (
	UIAuto  = "auto"
	UITUI   = "tui"
	UIPlain = "plain"
)

type Config struct {
	Provider       string  `yaml:"provider"`
	Model          string  `yaml:"model"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float32 `yaml:"temperature"`
	MaxToolRounds  int     `yaml:"max_tool_rounds"`
	RequestTimeout string  `yaml:"request_timeout"`

	UI            string `yaml:"ui"`
	LogFile       string `yaml:"log_file"`
	ShutdownGrace string `yaml:"shutdown_grace"`

	Demo       DemoConfig               `yaml:"demo"`
	MCPServers []mcpclient.ServerConfig `yaml:"mcp_servers"`
}

// DemoConfig drives scripted input for --demo runs.
type DemoConfig struct {
	Delay     string   `yaml:"delay"`
	Responses []string `yaml:"responses"`
}

func DefaultConfig() Config {
	return Config{
		Provider:       string(llm.ModelTypeAnthropics),
		MaxTokens:      8192,
		MaxToolRounds:  24,
		RequestTimeout: "5m",
		UI:             UIAuto,
		LogFile:        "overkill.log",
		ShutdownGrace:  "3s",
		Demo:           DemoConfig{Delay: "1s"},
	}
}

// Load reads path, falling back to defaults when the file does not exist
// and required is false. Variables from .env are loaded first and never
// replace ones already set in the environment.
func Load(path string, required bool) (Config, error) {
	_ = godotenv.Load()

	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) {
	get := func(key string) string {
		v, ok := lookup(key)
		if !ok {
			return ""
		}
		return strings.TrimSpace(v)
	}
	if v := get("OVERKILL_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := get("OVERKILL_MODEL"); v != "" {
		c.Model = v
	}
	prefix := "ANTHROPIC"
	if provider, err := llm.ParseModelType(c.Provider); err == nil && provider == llm.ModelTypeOpenAI {
		prefix = "OPENAI"
	}
	if v := get(prefix + "_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := get(prefix + "_BASE_URL"); v != "" {
		c.BaseURL = v
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if strings.TrimSpace(c.Provider) == "" {
		c.Provider = def.Provider
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = def.MaxToolRounds
	}
	if strings.TrimSpace(c.RequestTimeout) == "" {
		c.RequestTimeout = def.RequestTimeout
	}
	if strings.TrimSpace(c.UI) == "" {
		c.UI = def.UI
	}
	if strings.TrimSpace(c.ShutdownGrace) == "" {
		c.ShutdownGrace = def.ShutdownGrace
	}
	if strings.TrimSpace(c.Demo.Delay) == "" {
		c.Demo.Delay = def.Demo.Delay
	}
}

func (c *Config) normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Model = strings.TrimSpace(c.Model)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.UI = strings.ToLower(strings.TrimSpace(c.UI))
	c.LogFile = strings.TrimSpace(c.LogFile)
	responses := c.Demo.Responses[:0]
	for _, r := range c.Demo.Responses {
		if r = strings.TrimSpace(r); r != "" {
			responses = append(responses, r)
		}
	}
	c.Demo.Responses = responses
	for i := range c.MCPServers {
		c.MCPServers[i].Name = strings.TrimSpace(c.MCPServers[i].Name)
	}
}

func (c *Config) validate() error {
	if _, err := llm.ParseModelType(c.Provider); err != nil {
		return err
	}
	switch c.UI {
	case UIAuto, UITUI, UIPlain:
	default:
		return fmt.Errorf("ui must be one of %s, %s, %s; got %q", UIAuto, UITUI, UIPlain, c.UI)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2; got %v", c.Temperature)
	}
	for key, value := range map[string]string{
		"request_timeout": c.RequestTimeout,
		"shutdown_grace":  c.ShutdownGrace,
		"demo.delay":      c.Demo.Delay,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	seen := make(map[string]bool, len(c.MCPServers))
	for i, srv := range c.MCPServers {
		if srv.Name == "" {
			return fmt.Errorf("mcp_servers[%d]: name is required", i)
		}
		if seen[srv.Name] {
			return fmt.Errorf("mcp_servers[%d]: duplicate name %q", i, srv.Name)
		}
		seen[srv.Name] = true
	}
	return nil
}

func (c Config) ProviderType() llm.ModelType {
	t, _ := llm.ParseModelType(c.Provider)
	return t
}

func (c Config) LLM() llm.Config {
	return llm.Config{
		Provider:  c.ProviderType(),
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Timeout:   mustDuration(c.RequestTimeout),
	}
}

func (c Config) ShutdownGraceDuration() time.Duration {
	return mustDuration(c.ShutdownGrace)
}

func (c Config) DemoDelay() time.Duration {
	return mustDuration(c.Demo.Delay)
}

func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", raw)
	}
	return d, nil
}

// mustDuration is for values validate has already accepted.
func mustDuration(raw string) time.Duration {
	d, _ := parseDuration(raw)
	return d
}
