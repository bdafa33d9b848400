package resolver

import (
	"reflect"
	"testing"

	"github.com/crimson-sun/warden/internal/engine/taxonomy"
	"github.com/crimson-sun/warden/internal/model"
)

func testResolver(t *testing.T, strategy Strategy) *Resolver {
	t.Helper()
	tax, err := taxonomy.New(taxonomy.DefaultCategories(), taxonomy.UnknownUnsafe)
	if err != nil {
		t.Fatal(err)
	}
	return New(tax, strategy, DefaultThresholds())
}

func sig(source, cat string, sev int, conf float64) Signal {
	return Signal{Source: source, Category: cat, Severity: sev, Confidence: conf}
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []string{"highest_severity", "consensus", "first_match", ""} {
		if _, err := ParseStrategy(s); err != nil {
			t.Errorf("ParseStrategy(%q) error: %v", s, err)
		}
	}
	if _, err := ParseStrategy("majority_rules"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestAllAgreeSafe(t *testing.T) {
	r := testResolver(t, HighestSeverity)

	out := r.Resolve([]Signal{
		sig("fast_screen", "safe", 0, 1.0),
		sig("c1", "safe", 0, 0.95),
		sig("c2", "safe", 0, 0.9),
	})
	if out.Category != "safe" || out.Severity != 0 {
		t.Fatalf("out = %+v, want safe", out)
	}
	if !out.Consensus {
		t.Error("Consensus = false, want true for unanimous signals")
	}
	if out.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %v, want high", out.Confidence)
	}
}

func TestHighestSeverityWinsOnDisagreement(t *testing.T) {
	r := testResolver(t, HighestSeverity)

	out := r.Resolve([]Signal{
		sig("c1", "harmful_prompt", 2, 0.9),
		sig("c2", "safe", 0, 0.9),
	})
	if out.Category != "harmful_prompt" || out.Severity != 2 {
		t.Fatalf("out = %+v, want harmful_prompt sev 2", out)
	}
	if out.Consensus {
		t.Error("Consensus = true for disagreeing signals")
	}
	if !reflect.DeepEqual(out.Conflicting, []string{"safe"}) {
		t.Errorf("Conflicting = %v", out.Conflicting)
	}
}

func TestSeverityIsMaxOfContributions(t *testing.T) {
	r := testResolver(t, HighestSeverity)

	tests := []struct {
		signals []Signal
		wantSev int
	}{
		{[]Signal{sig("a", "safe", 0, 1), sig("b", "unknown_unsafe", 1, 0.5)}, 1},
		{[]Signal{sig("a", "jailbreak", 3, 0.8), sig("b", "harmful_prompt", 2, 0.9)}, 3},
		{[]Signal{sig("a", "prompt_injection", 2, 0.8), sig("b", "safe", 0, 0.9), sig("c", "unknown_unsafe", 1, 0.2)}, 2},
	}
	for _, tt := range tests {
		out := r.Resolve(tt.signals)
		if out.Severity != tt.wantSev {
			t.Errorf("Resolve(%v).Severity = %d, want %d", tt.signals, out.Severity, tt.wantSev)
		}
		max := 0
		for _, s := range tt.signals {
			if s.Severity > max {
				max = s.Severity
			}
		}
		if out.Severity != max {
			t.Errorf("severity %d != max contributing severity %d", out.Severity, max)
		}
	}
}

func TestConsensusMajority(t *testing.T) {
	r := testResolver(t, Consensus)

	// Three classifiers: safe, harmful_prompt, harmful_prompt.
	out := r.Resolve([]Signal{
		sig("c1", "safe", 0, 0.9),
		sig("c2", "harmful_prompt", 2, 0.8),
		sig("c3", "harmful_prompt", 2, 0.85),
	})
	if out.Category != "harmful_prompt" {
		t.Fatalf("Category = %q, want harmful_prompt", out.Category)
	}
	if out.Consensus {
		t.Error("Consensus = true, want false")
	}
	if out.Method != string(Consensus) {
		t.Errorf("Method = %q", out.Method)
	}
}

func TestConsensusVoteTieBreaksBySeverity(t *testing.T) {
	r := testResolver(t, Consensus)

	out := r.Resolve([]Signal{
		sig("c1", "safe", 0, 0.9),
		sig("c2", "jailbreak", 3, 0.8),
	})
	if out.Category != "jailbreak" {
		t.Fatalf("Category = %q, want jailbreak (severity tie-break)", out.Category)
	}
}

func TestConsensusNoPluralityFallsBack(t *testing.T) {
	r := testResolver(t, Consensus)

	// harmful_prompt and prompt_injection tie on votes and severity.
	out := r.Resolve([]Signal{
		sig("c1", "harmful_prompt", 2, 0.9),
		sig("c2", "prompt_injection", 2, 0.9),
	})
	if out.Method != string(HighestSeverity) {
		t.Errorf("Method = %q, want highest_severity fallback", out.Method)
	}
	if out.Category != "harmful_prompt" {
		t.Errorf("Category = %q, want first max-severity signal", out.Category)
	}
}

func TestFirstMatch(t *testing.T) {
	r := testResolver(t, FirstMatch)

	out := r.Resolve([]Signal{
		sig("c1", "safe", 0, 0.9),
		sig("c2", "unknown_unsafe", 1, 0.5),
		sig("c3", "jailbreak", 3, 0.9),
	})
	if out.Category != "unknown_unsafe" {
		t.Fatalf("Category = %q, want first non-safe signal", out.Category)
	}

	out = r.Resolve([]Signal{sig("c1", "safe", 0, 0.9), sig("c2", "safe", 0, 0.8)})
	if out.Category != "safe" {
		t.Errorf("Category = %q, want safe when nothing matched", out.Category)
	}
}

func TestResolveIsPure(t *testing.T) {
	r := testResolver(t, Consensus)
	signals := []Signal{
		sig("fast_screen", "safe", 0, 1.0),
		sig("c1", "jailbreak", 3, 0.7),
		sig("c2", "harmful_prompt", 2, 0.6),
		sig("c3", "jailbreak", 3, 0.9),
	}

	first := r.Resolve(signals)
	for i := 0; i < 50; i++ {
		if got := r.Resolve(signals); !reflect.DeepEqual(got, first) {
			t.Fatalf("Resolve is not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestNoSignalsResolvesUnsafe(t *testing.T) {
	r := testResolver(t, HighestSeverity)

	out := r.Resolve(nil)
	if out.Category != "unknown_unsafe" || out.Severity == 0 {
		t.Fatalf("out = %+v, want unknown_unsafe", out)
	}
}

func TestConfidenceBuckets(t *testing.T) {
	tax, err := taxonomy.New(taxonomy.DefaultCategories(), taxonomy.UnknownUnsafe)
	if err != nil {
		t.Fatal(err)
	}
	r := New(tax, HighestSeverity, Thresholds{High: 0.8, Medium: 0.5})

	// Unanimous, strong: 1.0 agreement x 0.9 confidence = 0.9 -> high.
	out := r.Resolve([]Signal{sig("a", "safe", 0, 0.9), sig("b", "safe", 0, 0.9)})
	if out.Confidence != model.ConfidenceHigh {
		t.Errorf("Confidence = %v, want high", out.Confidence)
	}

	// Split 1/2 with strong winner: 0.5 x 0.9 = 0.45 -> low under these thresholds.
	out = r.Resolve([]Signal{sig("a", "jailbreak", 3, 0.9), sig("b", "safe", 0, 0.9)})
	if out.Confidence != model.ConfidenceLow {
		t.Errorf("Confidence = %v, want low", out.Confidence)
	}

	// Same split under looser thresholds lands in medium.
	loose := New(tax, HighestSeverity, Thresholds{High: 0.8, Medium: 0.3})
	out = loose.Resolve([]Signal{sig("a", "jailbreak", 3, 0.9), sig("b", "safe", 0, 0.9)})
	if out.Confidence != model.ConfidenceMedium {
		t.Errorf("Confidence = %v, want medium", out.Confidence)
	}
}
