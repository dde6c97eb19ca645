package prompt

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const continuationInstruction = "You continue text-to-image prompts. Reply with the continuation only: " +
	"comma separated subject details, art styles, artists and rendering keywords. No explanations."

// GeminiModel continues prompts with a Gemini model
type GeminiModel struct {
	client *genai.Client
	model  string
}

func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for prompt generation")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

func (m *GeminiModel) Complete(ctx context.Context, prompt string, opts CompletionOptions) ([]string, error) {
	result, err := m.client.Models.GenerateContent(
		ctx,
		m.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(continuationInstruction, genai.RoleUser),
			Seed:              genai.Ptr(opts.Seed),
			MaxOutputTokens:   opts.MaxTokens,
			CandidateCount:    opts.Candidates,
		},
	)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		out = append(out, joinContinuation(prompt, sb.String()))
	}
	return out, nil
}

// joinContinuation prefixes the prompt unless the model already echoed it
func joinContinuation(prompt, continuation string) string {
	continuation = strings.TrimSpace(continuation)
	if strings.HasPrefix(continuation, prompt) {
		return continuation
	}
	return prompt + " " + continuation
}
