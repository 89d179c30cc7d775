package prompts

import (
	"encoding/json"
	"github.com/PuerkitoBio/goquery"
	"github.com/myrjola/sleuth/internal/errors"
	"github.com/myrjola/sleuth/internal/game"
	"github.com/myrjola/sleuth/internal/models"
	"log/slog"
	"math"
	"regexp"
	"strings"
)

var ErrMalformedResponse = errors.NewSentinel("malformed model response")

// FallbackResponse is what a character says when the model cannot be reached.
var FallbackResponse = Response{ //nolint:gochecknoglobals // constant value
	Text:             "I... I'd rather not say anything right now.",
	TruthLikelihood:  0.5, //nolint:mnd // undecided
	ReputationImpact: 0,
	Leads:            nil,
}

// Response is a parsed character reply.
type Response struct {
	Text             string
	TruthLikelihood  float64
	ReputationImpact int
	Leads            []game.NewLead
}

type rawResponse struct {
	Response         string  `json:"response"`
	TruthLikelihood  float64 `json:"truthLikelihood"`
	ReputationImpact float64 `json:"reputationImpact"`
	Leads            []struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	} `json:"leads"`
}

// ParseResponse extracts the character reply from model output. Scores are clamped into their ranges and the
// spoken text is stripped of markup.
func ParseResponse(raw string) (Response, error) {
	object, err := ExtractJSON(raw)
	if err != nil {
		return Response{}, err
	}
	var r rawResponse
	if err = json.Unmarshal([]byte(object), &r); err != nil {
		return Response{}, errors.Wrap(errors.Join(ErrMalformedResponse, err), "unmarshal response")
	}

	text, err := StripMarkup(r.Response)
	if err != nil {
		return Response{}, err
	}
	if text == "" {
		return Response{}, errors.Wrap(ErrMalformedResponse, "empty response text")
	}

	impact := int(math.Round(r.ReputationImpact))
	resp := Response{
		Text:             text,
		TruthLikelihood:  clamp(r.TruthLikelihood, 0, 1),
		ReputationImpact: min(max(impact, models.ReputationImpactMin), models.ReputationImpactMax),
		Leads:            nil,
	}
	for _, lead := range r.Leads {
		leadText, err := StripMarkup(lead.Text)
		if err != nil {
			return Response{}, err
		}
		if leadText == "" {
			continue
		}
		resp.Leads = append(resp.Leads, game.NewLead{Text: leadText, Confidence: clamp(lead.Confidence, 0, 1)})
	}
	return resp, nil
}

// ExtractJSON returns the outermost JSON object in model output, ignoring code fences and chatter around it.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return "", errors.Wrap(ErrMalformedResponse, "no JSON object", slog.Int("length", len(raw)))
	}
	return s[start : end+1], nil
}

var markdownReplacer = strings.NewReplacer("**", "", "__", "", "*", "", "`", "") //nolint:gochecknoglobals // constant

// markupPattern matches what is parsed as HTML. Any other '<' is plain text.
var markupPattern = regexp.MustCompile(`(?s)</?[A-Za-z][^<>]*>|<!--.*?-->`) //nolint:gochecknoglobals // constant

// StripMarkup removes HTML tags and markdown emphasis and collapses whitespace. A '<' that does not open a tag, as in
// "back in <3 hours", is kept.
func StripMarkup(s string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(escapeStrayBrackets(s)))
	if err != nil {
		return "", errors.Wrap(err, "parse html")
	}
	text := markdownReplacer.Replace(doc.Text())
	return strings.Join(strings.Fields(text), " "), nil
}

// escapeStrayBrackets escapes every '<' outside markupPattern matches so the HTML parser keeps it as text.
func escapeStrayBrackets(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	var b strings.Builder
	last := 0
	for _, m := range markupPattern.FindAllStringIndex(s, -1) {
		b.WriteString(strings.ReplaceAll(s[last:m[0]], "<", "&lt;"))
		b.WriteString(s[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(strings.ReplaceAll(s[last:], "<", "&lt;"))
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return min(max(v, lo), hi)
}
