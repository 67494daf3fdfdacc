package llm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(reason genai.FinishReason, parts ...genai.Part) *genai.Candidate {
	return &genai.Candidate{FinishReason: reason, Content: &genai.Content{Parts: parts}}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		candidate(genai.FinishReasonStop, genai.Text(`{"email":`), genai.Text(` ["#e"]}`)),
	}}
	text, err := responseText(resp)
	require.NoError(t, err)
	assert.Equal(t, `{"email": ["#e"]}`, text)
}

func TestResponseText_Failures(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want error
	}{
		{name: "nil", resp: nil, want: ErrEmptyResponse},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: ErrEmptyResponse},
		{
			name: "prompt blocked",
			resp: &genai.GenerateContentResponse{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}},
			want: ErrBlocked,
		},
		{
			name: "safety stop",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{candidate(genai.FinishReasonSafety, genai.Text("{}"))}},
			want: ErrBlocked,
		},
		{
			name: "blank text",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{candidate(genai.FinishReasonStop, genai.Text("  "))}},
			want: ErrEmptyResponse,
		},
		{
			name: "nil content",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonStop}}},
			want: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := responseText(tt.resp)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
