package completion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini is a Service backed by the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature *float32
	logger      logrus.FieldLogger
}

// GeminiOptions configures NewGemini.
type GeminiOptions struct {
	APIKey string
	Model  string

	// Temperature is passed through when non-nil.
	Temperature *float32

	Logger logrus.FieldLogger
}

// NewGemini creates a Gemini client. The API key is required.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required (set GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Gemini{
		client:      client,
		model:       model,
		temperature: opts.Temperature,
		logger:      logger.WithFields(logrus.Fields{"component": "completion", "backend": "gemini", "model": model}),
	}, nil
}

// Complete sends the role prompt as system instruction and the history plus
// task as a single user turn.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: UserContent(req)}}},
	}

	config := &genai.GenerateContentConfig{}
	if req.RolePrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.RolePrompt}}}
	}
	if g.temperature != nil {
		t := *g.temperature
		config.Temperature = &t
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}

	if result.UsageMetadata != nil {
		g.logger.WithFields(logrus.Fields{
			"role":          req.Role,
			"input_tokens":  result.UsageMetadata.PromptTokenCount,
			"output_tokens": result.UsageMetadata.CandidatesTokenCount,
		}).Debug("Completion received")
	}

	return result.Text(), nil
}
