// Package resolver reduces normalized, severity-ranked signals into one
// final category, confidence bucket, and consensus flag. Resolution is a
// pure function: identical inputs always produce identical outcomes, and
// no state survives between calls.
package resolver

import (
	"github.com/crimson-sun/warden/internal/engine/taxonomy"
	"github.com/crimson-sun/warden/internal/model"
)

// Strategy selects how disagreeing signals reduce to one category.
type Strategy string

const (
	HighestSeverity Strategy = "highest_severity"
	Consensus       Strategy = "consensus"
	FirstMatch      Strategy = "first_match"
)

// ParseStrategy validates a strategy name from configuration.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case HighestSeverity, Consensus, FirstMatch:
		return Strategy(s), nil
	case "":
		return HighestSeverity, nil
	default:
		return "", &model.ConfigurationError{Field: "resolution.strategy", Reason: "unknown strategy: " + s}
	}
}

// Thresholds bucket the blended confidence score. Scores >= High map to
// the high bucket, >= Medium to medium, anything below to low.
type Thresholds struct {
	High   float64
	Medium float64
}

// DefaultThresholds are used when configuration provides none.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.75, Medium: 0.4}
}

// Signal is one normalized contribution: the pre-screen or one classifier.
type Signal struct {
	Source     string
	Category   string
	Severity   int
	Confidence float64
}

// Outcome is the resolved verdict over all signals.
type Outcome struct {
	Category    string
	Severity    int
	Confidence  model.ConfidenceLevel
	Consensus   bool
	Method      string   // resolution method actually applied
	Conflicting []string // categories that lost, in signal order
	Agreement   float64  // fraction of signals voting for the winner
}

// Resolver applies one strategy with fixed thresholds over a taxonomy.
type Resolver struct {
	tax        *taxonomy.Taxonomy
	strategy   Strategy
	thresholds Thresholds
}

// New creates a Resolver.
func New(tax *taxonomy.Taxonomy, strategy Strategy, thresholds Thresholds) *Resolver {
	return &Resolver{tax: tax, strategy: strategy, thresholds: thresholds}
}

// Resolve reduces the signals to a single outcome. With no signals at all
// it resolves to the unknown-unsafe bucket: absence of evidence is not
// evidence of safety.
func (r *Resolver) Resolve(signals []Signal) Outcome {
	if len(signals) == 0 {
		unknown := r.tax.Unknown()
		return Outcome{
			Category:   unknown,
			Severity:   r.tax.Severity(unknown),
			Confidence: model.ConfidenceLow,
			Method:     "no_signals",
		}
	}

	// Unanimity first: every strategy reports consensus when all agree.
	if cat, ok := unanimous(signals); ok {
		out := Outcome{
			Category:  cat,
			Severity:  r.tax.Severity(cat),
			Consensus: true,
			Method:    "consensus",
			Agreement: 1,
		}
		out.Confidence = r.bucket(out.Agreement * maxConfidence(signals, cat))
		return out
	}

	var out Outcome
	switch r.strategy {
	case Consensus:
		out = r.byConsensus(signals)
	case FirstMatch:
		out = r.byFirstMatch(signals)
	default:
		out = r.byHighestSeverity(signals)
	}
	out.Confidence = r.bucket(out.Agreement * maxConfidence(signals, out.Category))
	return out
}

// byHighestSeverity picks the maximum-severity category; when several
// categories share the maximum, the first in signal order wins.
func (r *Resolver) byHighestSeverity(signals []Signal) Outcome {
	winner := signals[0]
	for _, s := range signals[1:] {
		if s.Severity > winner.Severity {
			winner = s
		}
	}
	return Outcome{
		Category:    winner.Category,
		Severity:    winner.Severity,
		Method:      string(HighestSeverity),
		Conflicting: losers(signals, winner.Category),
		Agreement:   agreement(signals, winner.Category),
	}
}

// byConsensus picks the category with the most votes. Ties on votes break
// by highest severity among the tied categories; without a strict
// plurality the resolver falls back to highest severity.
func (r *Resolver) byConsensus(signals []Signal) Outcome {
	votes := map[string]int{}
	var order []string // first-occurrence order keeps counting deterministic
	for _, s := range signals {
		if votes[s.Category] == 0 {
			order = append(order, s.Category)
		}
		votes[s.Category]++
	}

	maxVotes := 0
	for _, cat := range order {
		if votes[cat] > maxVotes {
			maxVotes = votes[cat]
		}
	}
	var tied []string
	for _, cat := range order {
		if votes[cat] == maxVotes {
			tied = append(tied, cat)
		}
	}

	best := tied[0]
	if len(tied) > 1 {
		// Vote tie: highest severity among the tied categories wins. When
		// even severity ties, there is no usable plurality at all.
		ambiguous := false
		for _, cat := range tied[1:] {
			switch {
			case r.tax.Severity(cat) > r.tax.Severity(best):
				best = cat
				ambiguous = false
			case r.tax.Severity(cat) == r.tax.Severity(best):
				ambiguous = true
			}
		}
		if ambiguous {
			return r.byHighestSeverity(signals)
		}
	}
	return Outcome{
		Category:    best,
		Severity:    r.tax.Severity(best),
		Method:      string(Consensus),
		Conflicting: losers(signals, best),
		Agreement:   agreement(signals, best),
	}
}

// byFirstMatch picks the first non-safe signal in configured order.
func (r *Resolver) byFirstMatch(signals []Signal) Outcome {
	for _, s := range signals {
		if s.Severity > 0 {
			return Outcome{
				Category:    s.Category,
				Severity:    s.Severity,
				Method:      string(FirstMatch),
				Conflicting: losers(signals, s.Category),
				Agreement:   agreement(signals, s.Category),
			}
		}
	}
	first := signals[0]
	return Outcome{
		Category:  first.Category,
		Severity:  first.Severity,
		Method:    string(FirstMatch),
		Agreement: 1,
	}
}

func (r *Resolver) bucket(score float64) model.ConfidenceLevel {
	switch {
	case score >= r.thresholds.High:
		return model.ConfidenceHigh
	case score >= r.thresholds.Medium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

func unanimous(signals []Signal) (string, bool) {
	cat := signals[0].Category
	for _, s := range signals[1:] {
		if s.Category != cat {
			return "", false
		}
	}
	return cat, true
}

func agreement(signals []Signal, category string) float64 {
	n := 0
	for _, s := range signals {
		if s.Category == category {
			n++
		}
	}
	return float64(n) / float64(len(signals))
}

// maxConfidence returns the strongest individual confidence among signals
// voting for the winning category.
func maxConfidence(signals []Signal, category string) float64 {
	best := 0.0
	for _, s := range signals {
		if s.Category == category && s.Confidence > best {
			best = s.Confidence
		}
	}
	return best
}

func losers(signals []Signal, winner string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range signals {
		if s.Category != winner && !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	return out
}
