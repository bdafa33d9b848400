// Package llamaguard adapts LlamaGuard-family models to the classifier
// capability. The model answers with "safe" or "unsafe" followed by an
// S1-S14 hazard code.
package llamaguard

import (
	"context"
	"regexp"
	"strings"

	"github.com/crimson-sun/warden/internal/classifier"
	"github.com/crimson-sun/warden/internal/classifier/ollama"
	"github.com/crimson-sun/warden/internal/model"
)

// Kind is the registry key for this adapter.
const Kind = "llama_guard"

const defaultModel = "llama-guard3"

// Parse confidence by how cleanly the reply matched the expected grammar.
const (
	exactConfidence = 0.95
	looseConfidence = 0.6
)

func init() {
	classifier.Register(Kind, New)
}

// Guard classifies text by asking a LlamaGuard model.
type Guard struct {
	name   string
	model  string
	client *ollama.Client
}

// New builds a Guard from settings.
func New(s classifier.Settings) (classifier.Classifier, error) {
	name := s.Name
	if name == "" {
		name = Kind
	}
	mdl := s.Model
	if mdl == "" {
		mdl = defaultModel
	}
	return &Guard{name: name, model: mdl, client: ollama.New(s.Endpoint)}, nil
}

func (g *Guard) Name() string { return g.name }

// Classify sends the text as a single user turn and parses the verdict.
func (g *Guard) Classify(ctx context.Context, text string) (classifier.Verdict, error) {
	reply, err := g.client.Chat(ctx, g.model, []ollama.Message{{Role: "user", Content: text}})
	if err != nil {
		return classifier.Verdict{}, classifier.WrapError(g.name, err)
	}
	if strings.TrimSpace(reply) == "" {
		return classifier.Verdict{}, &model.ClassifierError{Classifier: g.name, Kind: model.ErrInvalidResponse}
	}

	raw, conf := parse(reply)
	return classifier.Verdict{
		RawCategory: raw,
		Confidence:  conf,
		Rationale:   rationale(raw),
	}, nil
}

var sCode = regexp.MustCompile(`(?i)\bS(\d{1,2})\b`)

// parse extracts the raw category from a LlamaGuard reply.
// Expected: "safe", or "unsafe" on one line and an S-code on the next.
func parse(reply string) (string, float64) {
	lower := strings.ToLower(strings.TrimSpace(reply))

	if lower == "safe" {
		return "safe", exactConfidence
	}
	if strings.HasPrefix(lower, "unsafe") {
		if m := sCode.FindString(reply); m != "" {
			return strings.ToUpper(m), exactConfidence
		}
		return "unsafe", looseConfidence
	}
	// Unexpected wording; the normalizer's unknown bucket takes it.
	return "unknown", looseConfidence
}

func rationale(raw string) string {
	switch raw {
	case "safe":
		return "model reports content is safe"
	case "unsafe", "unknown":
		return "model flagged content without a hazard code"
	default:
		return "model flagged hazard code " + raw
	}
}
