package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"rent-reconciliation-backend/internal/infrastructure/config"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// generateAttempts bounds the retries on a failing API call; attempt n
// waits n times retryBackoff before the next try.
const (
	generateAttempts = 3
	retryBackoff     = 600 * time.Millisecond
)

// contentGenerator is the slice of the genai client the generator
// needs. Tests substitute a stub for it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator writes run summaries with the Gemini API.
type GeminiGenerator struct {
	models  contentGenerator
	model   string
	backoff time.Duration
	logger  *slog.Logger
}

// NewGeminiGenerator creates a generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &GeminiGenerator{
		models:  client.Models,
		model:   model,
		backoff: retryBackoff,
		logger:  logger,
	}, nil
}

// Generate asks the model for a short summary of the run. Failing API
// calls are retried with a growing backoff before giving up.
func (g *GeminiGenerator) Generate(ctx context.Context, facts Facts) (string, error) {
	prompt, err := buildPrompt(facts)
	if err != nil {
		return "", fmt.Errorf("Generate: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}

	var resp *genai.GenerateContentResponse
	for attempt := 1; ; attempt++ {
		resp, err = g.models.GenerateContent(ctx, g.model, contents, nil)
		if err == nil {
			break
		}
		if attempt == generateAttempts {
			return "", fmt.Errorf("Generate: generate content: %w", err)
		}
		if g.logger != nil {
			g.logger.Warn("summary generation failed, retrying",
				"attempt", attempt, "error", err)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt) * g.backoff):
		}
	}

	text := cleanModelText(resp.Text())
	if text == "" {
		return "", fmt.Errorf("Generate: empty response from model")
	}

	if g.logger != nil {
		g.logger.Debug("generated run summary", "model", g.model, "chars", len(text))
	}
	return text, nil
}

// buildPrompt turns the facts into instructions plus a compact JSON
// block. Nothing outside the facts reaches the model.
func buildPrompt(facts Facts) (string, error) {
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return "", fmt.Errorf("marshal facts: %w", err)
	}

	prompt := "You are writing a summary for a residential landlord after a monthly rent reconciliation run.\n\n" +
		"Task:\n" +
		"- Summarize the run results below in 3 to 5 plain sentences.\n" +
		"- Mention the match rate, the net variance, and the items that need follow-up.\n" +
		"- Use the exact amounts from the data. Do not invent numbers.\n" +
		"- Return plain text only. No Markdown, no code fences, no bullet points.\n\n" +
		"Run results:\n" + string(factsJSON) + "\n"

	return prompt, nil
}

// cleanModelText strips the code fences models sometimes wrap a
// response in despite instructions.
func cleanModelText(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return strings.Trim(s, "`")
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
	}

	return strings.TrimSpace(s)
}
