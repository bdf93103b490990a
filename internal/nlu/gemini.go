package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// geminiClassifier classifies with Gemini function calling.
type geminiClassifier struct {
	client     *genai.Client
	model      string
	tools      []*genai.Tool
	systemInst string
}

func newGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// newGeminiClassifier returns nil when apiKey is empty.
func newGeminiClassifier(ctx context.Context, apiKey, model string) (*geminiClassifier, error) {
	if apiKey == "" {
		return nil, nil //nolint:nilnil // provider disabled without a key
	}
	if model == "" {
		model = DefaultGeminiModels[0]
	}

	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	return &geminiClassifier{
		client:     client,
		model:      model,
		tools:      []*genai.Tool{{FunctionDeclarations: BuildIntentFunctions()}},
		systemInst: ClassifierSystemPrompt,
	}, nil
}

// Classify forces a function call (mode ANY) and maps it to a Result.
func (c *geminiClassifier) Classify(ctx context.Context, text string) (*Result, error) {
	if c == nil {
		return nil, errors.New("gemini classifier is nil")
	}

	config := &genai.GenerateContentConfig{
		Tools:             c.tools,
		SystemInstruction: genai.NewContentFromText(c.systemInst, genai.RoleUser),
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode: genai.FunctionCallingConfigModeAny,
			},
		},
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: 256,
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(text), config)
	duration := time.Since(start)
	if err != nil {
		slog.WarnContext(ctx, "Classifier API call failed",
			"provider", ProviderGemini,
			"model", c.model,
			"input_length", len(text),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, wrapGeminiError(err)
	}

	res, err := c.parseResponse(text, resp)
	if err != nil {
		return nil, err
	}

	if resp.UsageMetadata != nil {
		slog.DebugContext(ctx, "Classification completed",
			"provider", ProviderGemini,
			"model", c.model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount,
			"duration_ms", duration.Milliseconds(),
			"intent", res.Top().Name)
	}
	return res, nil
}

func (c *geminiClassifier) parseResponse(text string, resp *genai.GenerateContentResponse) (*Result, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, errors.New("empty response from model")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, errors.New("no content in response")
	}

	for _, part := range candidate.Content.Parts {
		if part.FunctionCall == nil {
			continue
		}
		res, err := resultFromCall(text, part.FunctionCall.Name, part.FunctionCall.Args)
		if err != nil {
			return nil, err
		}
		res.Provider = ProviderGemini
		res.Model = c.model
		return res, nil
	}

	return nil, errors.New("no function call in response (expected with ANY mode)")
}

func (c *geminiClassifier) IsEnabled() bool {
	return c != nil && c.client != nil
}

func (c *geminiClassifier) Provider() Provider {
	return ProviderGemini
}

// Close is a no-op; genai.Client holds no closable resources.
func (c *geminiClassifier) Close() error {
	return nil
}

// geminiCorrector fixes spelling with a plain Gemini completion.
type geminiCorrector struct {
	client *genai.Client
	model  string
}

func newGeminiCorrector(ctx context.Context, apiKey, model string) (*geminiCorrector, error) {
	if model == "" {
		model = DefaultGeminiModels[len(DefaultGeminiModels)-1]
	}
	client, err := newGeminiClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	return &geminiCorrector{client: client, model: model}, nil
}

func (c *geminiCorrector) Correct(ctx context.Context, text string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(CorrectorSystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		MaxOutputTokens:   512,
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(text), config)
	if err != nil {
		return "", wrapGeminiError(err)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("empty correction")
	}
	return out, nil
}

func (c *geminiCorrector) Provider() Provider {
	return ProviderGemini
}

// wrapGeminiError attaches the HTTP status of a genai.APIError.
func wrapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return WrapError(fmt.Errorf("generate content failed: %w", err), ProviderGemini, apiErr.Code)
	}
	return fmt.Errorf("generate content failed: %w", err)
}
