package prompts_test

import (
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/prompts"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    prompts.Response
		wantErr bool
	}{
		{
			name: "plain json",
			raw:  `{"response": "I was in the pantry.", "truthLikelihood": 0.2, "reputationImpact": -1, "leads": []}`,
			want: prompts.Response{Text: "I was in the pantry.", TruthLikelihood: 0.2, ReputationImpact: -1, Leads: nil},
		},
		{
			name: "code fence and chatter",
			raw: "Sure! Here you go:\n```json\n" +
				`{"response": "The key? On my chain, sir.", "truthLikelihood": 0.9, "reputationImpact": 2,` +
				` "leads": [{"text": "Reed keeps the spare key", "confidence": 0.8}]}` + "\n```",
			want: prompts.Response{
				Text:             "The key? On my chain, sir.",
				TruthLikelihood:  0.9,
				ReputationImpact: 2,
				Leads:            []game.NewLead{{Text: "Reed keeps the spare key", Confidence: 0.8}},
			},
		},
		{
			name: "scores are clamped",
			raw:  `{"response": "How dare you!", "truthLikelihood": 1.7, "reputationImpact": -12.4, "leads": [{"text": "x", "confidence": -2}]}`,
			want: prompts.Response{
				Text:             "How dare you!",
				TruthLikelihood:  1,
				ReputationImpact: -5,
				Leads:            []game.NewLead{{Text: "x", Confidence: 0}},
			},
		},
		{
			name: "markup is stripped",
			raw:  `{"response": "<p>I <b>never</b> touched   the *port*.</p>", "truthLikelihood": 0.1, "reputationImpact": 2.6, "leads": [{"text": "  ", "confidence": 1}]}`,
			want: prompts.Response{Text: "I never touched the port.", TruthLikelihood: 0.1, ReputationImpact: 3, Leads: nil},
		},
		{
			name: "less-than sign is text",
			raw:  `{"response": "Back in <3 hours, I swear.", "truthLikelihood": 0.4, "reputationImpact": 0, "leads": [{"text": "Reed left at <11 o'clock", "confidence": 0.5}]}`,
			want: prompts.Response{
				Text:             "Back in <3 hours, I swear.",
				TruthLikelihood:  0.4,
				ReputationImpact: 0,
				Leads:            []game.NewLead{{Text: "Reed left at <11 o'clock", Confidence: 0.5}},
			},
		},
		{name: "no json", raw: "I refuse to answer.", wantErr: true},
		{name: "broken json", raw: `{"response": "unterminated}`, wantErr: true},
		{name: "empty response", raw: `{"response": "", "truthLikelihood": 0.5}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prompts.ParseResponse(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, prompts.ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestFallbackResponse(t *testing.T) {
	require.Equal(t, "I... I'd rather not say anything right now.", prompts.FallbackResponse.Text)
	require.InDelta(t, 0.5, prompts.FallbackResponse.TruthLikelihood, 0.0001)
	require.Zero(t, prompts.FallbackResponse.ReputationImpact)
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "I was in the pantry.", want: "I was in the pantry."},
		{name: "empty", in: "", want: ""},
		{name: "heart", in: "back in <3 hours", want: "back in <3 hours"},
		{name: "comparisons", in: "x < y and y<z", want: "x < y and y<z"},
		{name: "tags", in: "<b>bold</b> claim", want: "bold claim"},
		{name: "tags around a heart", in: "<!-- aside -->Hello <3 <i>there</i>", want: "Hello <3 there"},
		{name: "markdown", in: "I **swear** it was `him`", want: "I swear it was him"},
		{name: "entities", in: "Tom &amp; Jerry", want: "Tom & Jerry"},
		{name: "whitespace", in: "a <em>very</em>\n\n  long night", want: "a very long night"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prompts.StripMarkup(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}
