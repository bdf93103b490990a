package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// openaiClassifier classifies through an OpenAI-compatible chat API
// (Groq, Cerebras) with tool choice "required".
type openaiClassifier struct {
	client     openai.Client
	model      string
	tools      []openai.ChatCompletionToolUnionParam
	systemInst string
	provider   Provider
}

func newOpenAIClient(provider Provider, apiKey, baseURL string) (openai.Client, error) {
	if baseURL == "" {
		var ok bool
		if baseURL, ok = ProviderEndpoint[provider]; !ok {
			return openai.Client{}, fmt.Errorf("unsupported OpenAI-compatible provider: %s", provider)
		}
	}
	return openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0), // the chain owns retries
	), nil
}

// newOpenAIClassifier returns nil when apiKey is empty. baseURL overrides the
// provider endpoint.
func newOpenAIClassifier(provider Provider, apiKey, model, baseURL string) (*openaiClassifier, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // provider disabled without a key
	}
	if model == "" {
		switch provider {
		case ProviderGroq:
			model = DefaultGroqModels[0]
		case ProviderCerebras:
			model = DefaultCerebrasModels[0]
		default:
			return nil, fmt.Errorf("no default model for provider: %s", provider)
		}
	}

	client, err := newOpenAIClient(provider, apiKey, baseURL)
	if err != nil {
		return nil, err
	}

	return &openaiClassifier{
		client:     client,
		model:      model,
		tools:      buildOpenAITools(),
		systemInst: ClassifierSystemPrompt,
		provider:   provider,
	}, nil
}

// buildOpenAITools converts the Gemini declarations to OpenAI tool params.
// JSON Schema types are lowercase ("string", not "STRING").
func buildOpenAITools() []openai.ChatCompletionToolUnionParam {
	decls := BuildIntentFunctions()
	tools := make([]openai.ChatCompletionToolUnionParam, 0, len(decls))

	for _, fd := range decls {
		properties := make(map[string]any, len(fd.Parameters.Properties))
		for name, schema := range fd.Parameters.Properties {
			properties[name] = map[string]string{
				"type":        strings.ToLower(string(schema.Type)),
				"description": schema.Description,
			}
		}

		tools = append(tools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        fd.Name,
			Description: openai.String(fd.Description),
			Parameters: openai.FunctionParameters{
				"type":       "object",
				"properties": properties,
				"required":   fd.Parameters.Required,
			},
		}))
	}
	return tools
}

func (c *openaiClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	if c == nil {
		return nil, errors.New("openai classifier is nil")
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(c.systemInst),
			openai.UserMessage(text),
		},
		Tools: c.tools,
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(string(openai.ChatCompletionToolChoiceOptionAutoRequired)),
		},
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(256),
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	duration := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "Classifier API call failed",
			"provider", c.provider,
			"model", c.model,
			"input_length", len(text),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, wrapOpenAIError(err, c.provider)
	}

	res, err := c.parseResponse(text, resp)
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "Classification completed",
		"provider", c.provider,
		"model", c.model,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", duration.Milliseconds(),
		"intent", res.Top().Name)
	return res, nil
}

func (c *openaiClassifier) parseResponse(text string, resp *openai.ChatCompletion) (*Result, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("empty response from model")
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return nil, errors.New("no tool call in response (expected with required mode)")
	}

	tc := msg.ToolCalls[0]
	if tc.Type != "function" {
		return nil, fmt.Errorf("unexpected tool type: %s", tc.Type)
	}

	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("failed to parse function arguments: %w", err)
		}
	}

	res, err := resultFromCall(text, tc.Function.Name, args)
	if err != nil {
		return nil, err
	}
	res.Provider = c.provider
	res.Model = c.model
	return res, nil
}

func (c *openaiClassifier) IsEnabled() bool {
	return c != nil
}

func (c *openaiClassifier) Provider() Provider {
	if c == nil {
		return ""
	}
	return c.provider
}

func (c *openaiClassifier) Close() error {
	return nil
}

// openaiCorrector fixes spelling through an OpenAI-compatible chat API.
type openaiCorrector struct {
	client   openai.Client
	model    string
	provider Provider
}

func newOpenAICorrector(provider Provider, apiKey, model, baseURL string) (*openaiCorrector, error) {
	if model == "" {
		switch provider {
		case ProviderGroq:
			model = DefaultGroqModels[len(DefaultGroqModels)-1]
		case ProviderCerebras:
			model = DefaultCerebrasModels[len(DefaultCerebrasModels)-1]
		default:
			return nil, fmt.Errorf("no default model for provider: %s", provider)
		}
	}
	client, err := newOpenAIClient(provider, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	return &openaiCorrector{client: client, model: model, provider: provider}, nil
}

func (c *openaiCorrector) Correct(ctx context.Context, text string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(CorrectorSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(512),
	})
	if err != nil {
		return "", wrapOpenAIError(err, c.provider)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("empty correction")
	}
	return out, nil
}

func (c *openaiCorrector) Provider() Provider {
	return c.provider
}

func wrapOpenAIError(err error, provider Provider) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return WrapError(fmt.Errorf("chat completion failed: %w", err), provider, apiErr.StatusCode)
	}
	return fmt.Errorf("chat completion failed: %w", err)
}
