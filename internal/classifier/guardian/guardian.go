// Package guardian adapts binary safe/unsafe guardian models to the
// classifier capability. The model answers "Yes" (unsafe) or "No" (safe).
package guardian

import (
	"context"
	"strings"

	"github.com/crimson-sun/warden/internal/classifier"
	"github.com/crimson-sun/warden/internal/classifier/ollama"
	"github.com/crimson-sun/warden/internal/model"
)

// Kind is the registry key for this adapter.
const Kind = "guardian"

const defaultModel = "granite3-guardian:8b"

const (
	exactConfidence = 0.9
	looseConfidence = 0.55
)

func init() {
	classifier.Register(Kind, New)
}

// Guard classifies text by asking a guardian model for a yes/no verdict.
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

func (g *Guard) Classify(ctx context.Context, text string) (classifier.Verdict, error) {
	reply, err := g.client.Chat(ctx, g.model, []ollama.Message{{Role: "user", Content: text}})
	if err != nil {
		return classifier.Verdict{}, classifier.WrapError(g.name, err)
	}
	if strings.TrimSpace(reply) == "" {
		return classifier.Verdict{}, &model.ClassifierError{Classifier: g.name, Kind: model.ErrInvalidResponse}
	}

	raw, conf := parse(reply)
	r := "model reports content is safe"
	if raw != "safe" {
		r = "model flagged content as unsafe"
	}
	return classifier.Verdict{RawCategory: raw, Confidence: conf, Rationale: r}, nil
}

// parse reads a yes/no reply. "Yes" means the guardian found a violation.
func parse(reply string) (string, float64) {
	lower := strings.ToLower(strings.TrimSpace(reply))

	switch lower {
	case "no":
		return "safe", exactConfidence
	case "yes":
		return "unsafe", exactConfidence
	}
	// Wordier replies: look for the verdict inside the text.
	switch {
	case strings.Contains(lower, "unsafe"), strings.Contains(lower, "yes"):
		return "unsafe", looseConfidence
	case strings.Contains(lower, "safe"), strings.Contains(lower, "no"):
		return "safe", looseConfidence
	}
	return "unknown", looseConfidence
}
