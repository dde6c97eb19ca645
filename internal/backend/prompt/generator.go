package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

// CompletionOptions tune a single model call
type CompletionOptions struct {
	Seed       int32
	MaxTokens  int32
	Candidates int32
}

// TextModel continues a prompt. Returned candidates include the prompt itself as prefix.
type TextModel interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) ([]string, error)
}

// Generator expands short visitor prompts into richer image-generation prompts
type Generator struct {
	model TextModel
	rand  *rand.Rand
}

func NewGenerator(model TextModel) *Generator {
	return &Generator{
		model: model,
		rand:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Generate returns cleaned suggestions for text. An empty string means the model produced
// nothing usable; this is not an error.
func (g *Generator) Generate(ctx context.Context, text string) (string, error) {
	opts := CompletionOptions{
		Seed:       int32(100 + g.rand.IntN(1000000-100+1)),
		MaxTokens:  int32(60 + g.rand.IntN(31)),
		Candidates: 1,
	}

	candidates, err := g.model.Complete(ctx, text, opts)
	if err != nil {
		return "", fmt.Errorf("prompt completion failed: %w", err)
	}

	completion := Clean(text, candidates)
	slog.Info("prompt generated",
		"input", text,
		"completion", completion,
		"seed", opts.Seed,
		"max_tokens", opts.MaxTokens)
	return completion, nil
}
