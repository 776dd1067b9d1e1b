package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"moorelink-bot/internal/models"
)

// ErrNotConfigured is returned when no API key is present.
var ErrNotConfigured = errors.New("ai analyzer not configured")

const systemPrompt = "You are a sharp, insightful Nigerian social media analyst with deep knowledge of trends on X, Instagram, and Facebook. " +
	"Your responses must be concise (max 6-8 sentences), direct, and engaging. " +
	"Mix standard English with natural Nigerian Pidgin where it adds flavor and relatability, never forced. " +
	"Focus on key insights: sentiment, intent, potential impact, and hidden nuances. " +
	"Be honest, witty when fitting, and always provide value that makes the reader think deeper about the post."

// modelCandidates are tried in order; a decommissioned or missing model
// falls through to the next.
var modelCandidates = []string{
	"llama-3.3-70b-versatile",
	"llama-3.1-8b-instant",
	"openai/gpt-oss-120b",
}

// Analyzer runs post analysis through a Groq-hosted model behind the
// OpenAI-compatible API.
type Analyzer struct {
	client *openai.Client
	log    *slog.Logger
}

// New builds an Analyzer; a nil analyzer is returned when apiKey is empty
// and every call on it yields ErrNotConfigured.
func New(apiKey, baseURL string, log *slog.Logger) *Analyzer {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Analyzer{client: openai.NewClientWithConfig(cfg), log: log}
}

// Result carries the analysis text and which model produced it.
type Result struct {
	Model string
	Text  string
}

// AnalyzePosts summarizes a delivered batch.
func (a *Analyzer) AnalyzePosts(ctx context.Context, platform, account string, posts []models.Post) (Result, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze these recent posts from %s account %q:\n\n", platform, account)
	for i, p := range posts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, p.URL)
		if p.Caption != "" {
			fmt.Fprintf(&sb, "   %s\n", truncate(p.Caption, 500))
		}
	}
	return a.Complete(ctx, sb.String())
}

// FollowUp answers a question about an earlier analysis, with the prior
// exchange supplied as context.
func (a *Analyzer) FollowUp(ctx context.Context, priorContext, question string) (Result, error) {
	if a == nil {
		return Result{}, ErrNotConfigured
	}
	return a.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleAssistant, Content: priorContext},
		{Role: openai.ChatMessageRoleUser, Content: question},
	})
}

// Complete runs one prompt through the model candidate list.
func (a *Analyzer) Complete(ctx context.Context, prompt string) (Result, error) {
	if a == nil {
		return Result{}, ErrNotConfigured
	}
	return a.complete(ctx, []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	})
}

func (a *Analyzer) complete(ctx context.Context, messages []openai.ChatCompletionMessage) (Result, error) {
	var lastErr error
	for _, model := range modelCandidates {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: 0.7,
			MaxTokens:   700,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			lastErr = err
			a.log.Warn("ai model failed", "model", model, "error", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("model %s returned no choices", model)
			continue
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			lastErr = fmt.Errorf("model %s returned empty content", model)
			continue
		}
		return Result{Model: model, Text: text}, nil
	}
	return Result{}, fmt.Errorf("all models failed: %w", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
