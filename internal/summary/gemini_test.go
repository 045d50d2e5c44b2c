package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"rent-reconciliation-backend/internal/infrastructure/config"
)

type stubModels struct {
	lastModel    string
	lastContents []*genai.Content
	resp         *genai.GenerateContentResponse
	err          error
	failuresLeft int
	calls        int
}

func (s *stubModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	s.calls++
	s.lastModel = model
	s.lastContents = contents
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return nil, errors.New("transient API error")
	}
	return s.resp, s.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}},
		},
	}
}

func TestGeminiGenerator_Generate(t *testing.T) {
	stub := &stubModels{resp: textResponse("Two of three payments matched; one invoice is unpaid.")}
	gen := &GeminiGenerator{models: stub, model: "gemini-2.0-flash"}

	facts := FactsFromReport("run-42", summaryFixture(t))
	text, err := gen.Generate(context.Background(), facts)
	require.NoError(t, err)
	assert.Equal(t, "Two of three payments matched; one invoice is unpaid.", text)

	assert.Equal(t, "gemini-2.0-flash", stub.lastModel)
	require.Len(t, stub.lastContents, 1)
	require.Len(t, stub.lastContents[0].Parts, 1)

	prompt := stub.lastContents[0].Parts[0].Text
	assert.Contains(t, prompt, `"run_id":"run-42"`)
	assert.Contains(t, prompt, `"total_variance":"-901"`)
	assert.Contains(t, prompt, "Nomvula Khumalo")
	assert.Contains(t, prompt, "UNRECOGNIZED_PAYMENT")
	// Clean PAID records stay out of the exceptions block.
	assert.NotContains(t, prompt, "John Mthembu")
}

func TestGeminiGenerator_StripsCodeFences(t *testing.T) {
	stub := &stubModels{resp: textResponse("```\nThe run went fine.\n```")}
	gen := &GeminiGenerator{models: stub, model: DefaultModel}

	text, err := gen.Generate(context.Background(), FactsFromReport("run-1", summaryFixture(t)))
	require.NoError(t, err)
	assert.Equal(t, "The run went fine.", text)
}

func TestGeminiGenerator_EmptyResponse(t *testing.T) {
	stub := &stubModels{resp: textResponse("")}
	gen := &GeminiGenerator{models: stub, model: DefaultModel}

	_, err := gen.Generate(context.Background(), FactsFromReport("run-1", summaryFixture(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGeminiGenerator_RetriesTransientFailures(t *testing.T) {
	stub := &stubModels{
		failuresLeft: 2,
		resp:         textResponse("All rents received."),
	}
	gen := &GeminiGenerator{models: stub, model: DefaultModel}

	text, err := gen.Generate(context.Background(), FactsFromReport("run-1", summaryFixture(t)))
	require.NoError(t, err)
	assert.Equal(t, "All rents received.", text)
	assert.Equal(t, 3, stub.calls)
}

func TestGeminiGenerator_APIError(t *testing.T) {
	stub := &stubModels{err: errors.New("quota exceeded")}
	gen := &GeminiGenerator{models: stub, model: DefaultModel}

	_, err := gen.Generate(context.Background(), FactsFromReport("run-1", summaryFixture(t)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate content")
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, generateAttempts, stub.calls, "the error should only surface after the last attempt")
}

func TestCleanModelText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "All rents received.", "All rents received."},
		{"fenced", "```\nAll rents received.\n```", "All rents received."},
		{"fenced with language", "```text\nAll rents received.\n```", "All rents received."},
		{"surrounding whitespace", "  All rents received. \n", "All rents received."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanModelText(tt.in))
		})
	}
}

func TestNewGenerator_FallsBackWithoutKey(t *testing.T) {
	gen, err := NewGenerator(context.Background(), config.GeminiConfig{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &TextGenerator{}, gen)
}
