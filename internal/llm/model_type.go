package llm

import (
	"fmt"
	"strings"
)

type ModelType string

const (
	ModelTypeOpenAI      ModelType = "openai"
	ModelTypeAnthropics  ModelType = "anthropic"
	modelTypeAnthropicV1 ModelType = "anthropics"
)

// ParseModelType accepts the provider names used in config files.
// Empty selects Anthropic.
func ParseModelType(raw string) (ModelType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "", string(ModelTypeAnthropics), string(modelTypeAnthropicV1), "claude":
		return ModelTypeAnthropics, nil
	case string(ModelTypeOpenAI):
		return ModelTypeOpenAI, nil
	default:
		return "", fmt.Errorf("unsupported provider %q (supported: %q, %q)", raw, ModelTypeAnthropics, ModelTypeOpenAI)
	}
}

// DefaultModel is used when no model is configured for the provider.
func (t ModelType) DefaultModel() string {
	switch t {
	case ModelTypeOpenAI:
		return "gpt-4o-mini"
	default:
		return "claude-sonnet-4-5"
	}
}
