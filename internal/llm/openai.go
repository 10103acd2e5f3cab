package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	openaioption "github.com/openai/openai-go/v3/option"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

func (c *Client) ensureOpenAISDK() error {
	if c == nil {
		return errors.New("nil client")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.openaiSDK.Options) > 0 {
		return nil
	}
	apiKey := strings.TrimSpace(c.APIKey)
	if apiKey == "" {
		return errors.New("api key is required")
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithBaseURL(resolvedOpenAIBaseURL(c.BaseURL)),
	}
	if c.HTTPClient != nil {
		opts = append(opts, openaioption.WithHTTPClient(c.HTTPClient))
	}
	c.openaiSDK = openai.NewClient(opts...)
	return nil
}

func resolvedOpenAIBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return defaultOpenAIBaseURL + "/"
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

func (c *Client) chatOpenAI(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := c.ensureOpenAISDK(); err != nil {
		return nil, err
	}
	model, err := c.resolveModel(req)
	if err != nil {
		return nil, err
	}
	messages, err := toOpenAIMessages(req.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if maxTokens := c.resolveMaxTokens(req, 0); maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(maxTokens))
	}
	if req.Temperature != 0 {
		params.Temperature = openai.Float(float64(req.Temperature))
	}
	if len(req.Tools) > 0 {
		tools, err := toOpenAITools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	resp, err := c.openaiSDK.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in response")
	}
	choice := resp.Choices[0]
	msg := Message{Role: "assistant", Content: choice.Message.Content}
	for _, call := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:   call.ID,
			Type: "function",
			Function: ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: sanitizeToolCallArguments(call.Function.Arguments),
			},
		})
	}
	return &ChatResponse{
		ID:      resp.ID,
		Created: resp.Created,
		Model:   resp.Model,
		Choices: []Choice{{
			Index:        0,
			Message:      msg,
			FinishReason: string(choice.FinishReason),
		}},
		Usage: Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func toOpenAIMessages(msgs []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		role := strings.TrimSpace(strings.ToLower(m.Role))
		switch role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "user":
			out = append(out, openai.UserMessage(m.Content))
		case "tool":
			if strings.TrimSpace(m.ToolCallID) == "" {
				return nil, errors.New("tool message missing tool_call_id")
			}
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case "assistant":
			param := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				param.Content.OfString = openai.String(m.Content)
			}
			for _, call := range m.ToolCalls {
				param.ToolCalls = append(param.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Function.Name,
							Arguments: sanitizeToolCallArguments(call.Function.Arguments),
						},
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &param})
		default:
			if role == "" {
				return nil, errors.New("message role is required")
			}
			return nil, fmt.Errorf("unsupported message role: %q", m.Role)
		}
	}
	return out, nil
}

func toOpenAITools(tools []ToolDefinition) ([]openai.ChatCompletionToolUnionParam, error) {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		typ := strings.TrimSpace(strings.ToLower(t.Type))
		if typ != "" && typ != "function" {
			return nil, fmt.Errorf("unsupported tool type: %q", t.Type)
		}
		schema, err := toJSONSchemaMap(t.Function.Parameters)
		if err != nil {
			return nil, err
		}
		def := openai.FunctionDefinitionParam{
			Name:       t.Function.Name,
			Parameters: openai.FunctionParameters(schema),
		}
		if desc := strings.TrimSpace(t.Function.Description); desc != "" {
			def.Description = openai.String(desc)
		}
		out = append(out, openai.ChatCompletionFunctionTool(def))
	}
	return out, nil
}

// sanitizeToolCallArguments guarantees a JSON object. Malformed or
// non-object arguments are wrapped under "__raw" so the tool reports a
// readable error instead of the provider rejecting the next request.
func sanitizeToolCallArguments(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "{}"
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return trimmed
	}
	wrapped, err := json.Marshal(map[string]string{"__raw": trimmed})
	if err != nil {
		return "{}"
	}
	return string(wrapped)
}
