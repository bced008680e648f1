package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/mesh-intelligence/intake/pkg/types"
)

// Completer turns a system and user prompt into generated text.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// GeminiCompleter calls the Gemini API. Each call is a single request
// with no retry.
type GeminiCompleter struct {
	client *genai.Client
	model  string
}

// NewGeminiCompleter creates a client for model authenticated by apiKey.
func NewGeminiCompleter(ctx context.Context, apiKey, model string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if model == "" {
		model = types.DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return &GeminiCompleter{client: client, model: model}, nil
}

// Complete sends one generate request. API failures are returned as
// *types.CompletionError.
func (g *GeminiCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", completionError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// completionError maps a GenAI API error to a CompletionError. Other
// errors, such as context cancellation, pass through.
func completionError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &types.CompletionError{Status: apiErr.Code, Body: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &types.CompletionError{Status: apiErrPtr.Code, Body: apiErrPtr.Message}
	}
	return fmt.Errorf("generate content: %w", err)
}
