package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/warden/internal/classifier"
	"github.com/crimson-sun/warden/internal/config"
	"github.com/crimson-sun/warden/internal/model"
)

// fakeClassifier is scripted through Settings.Extra: "raw" (category to
// return), "delay_ms", and "fail" (timeout | unavailable).
type fakeClassifier struct {
	name     string
	raw      string
	delay    time.Duration
	failKind string
}

var (
	callsMu sync.Mutex
	calls   = map[string]int{}
)

func callCount(name string) int {
	callsMu.Lock()
	defer callsMu.Unlock()
	return calls[name]
}

func resetCalls() {
	callsMu.Lock()
	defer callsMu.Unlock()
	calls = map[string]int{}
}

func init() {
	classifier.Register("fake", func(s classifier.Settings) (classifier.Classifier, error) {
		f := &fakeClassifier{name: s.Name, raw: s.Extra["raw"], failKind: s.Extra["fail"]}
		if d := s.Extra["delay_ms"]; d != "" {
			ms, _ := strconv.Atoi(d)
			f.delay = time.Duration(ms) * time.Millisecond
		}
		return f, nil
	})
}

func (f *fakeClassifier) Name() string { return f.name }

func (f *fakeClassifier) Classify(ctx context.Context, text string) (classifier.Verdict, error) {
	callsMu.Lock()
	calls[f.name]++
	callsMu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return classifier.Verdict{}, classifier.WrapError(f.name, ctx.Err())
		}
	}
	switch f.failKind {
	case "timeout":
		return classifier.Verdict{}, &model.ClassifierError{Classifier: f.name, Kind: model.ErrTimeout}
	case "unavailable":
		return classifier.Verdict{}, &model.ClassifierError{Classifier: f.name, Kind: model.ErrUnavailable}
	}
	return classifier.Verdict{RawCategory: f.raw, Confidence: 0.9, Rationale: "scripted"}, nil
}

var fakeMapping = map[string]string{
	"safe":    "safe",
	"harmful": "harmful_prompt",
	"inject":  "prompt_injection",
	"jail":    "jailbreak",
}

func fake(name, raw string, timeout time.Duration, extra map[string]string) config.ClassifierConfig {
	e := map[string]string{"raw": raw}
	for k, v := range extra {
		e[k] = v
	}
	return config.ClassifierConfig{
		Kind:      "fake",
		Name:      name,
		Enabled:   true,
		TimeoutMS: int(timeout / time.Millisecond),
		Mapping:   fakeMapping,
		Extra:     e,
	}
}

// testConfig returns a config with the screen disabled and the given
// classifiers; tests opt into the screen explicitly.
func testConfig(classifiers ...config.ClassifierConfig) config.Config {
	cfg := config.Default()
	cfg.Screen.Enabled = false
	cfg.Classifiers = classifiers
	return cfg
}

func withScreen(t *testing.T, cfg config.Config, keywords ...string) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocklist.json")
	data := `{"keywords": [`
	for i, kw := range keywords {
		if i > 0 {
			data += ","
		}
		data += strconv.Quote(kw)
	}
	data += `]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.Screen.Enabled = true
	cfg.Screen.BlocklistFile = path
	return cfg
}

func newEngine(t *testing.T, cfg config.Config) *Engine {
	t.Helper()
	resetCalls()
	eng, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return eng
}

func check(t *testing.T, eng *Engine, text string) model.Decision {
	t.Helper()
	d, err := eng.Check(context.Background(), model.CheckRequest{ID: "req-1", Text: text})
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	return d
}

func TestEmptyInputRejected(t *testing.T) {
	eng := newEngine(t, testConfig(fake("c1", "safe", time.Second, nil)))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := eng.Check(context.Background(), model.CheckRequest{Text: text})
		var verr *model.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Check(%q) error = %v, want ValidationError", text, err)
		}
	}
}

// Scenario A: both classifiers safe, screen not matched.
func TestAllSafeConsensus(t *testing.T) {
	cfg := testConfig(
		fake("c1", "safe", time.Second, nil),
		fake("c2", "safe", time.Second, nil),
	)
	cfg = withScreen(t, cfg, "zzz_never_matches")
	eng := newEngine(t, cfg)

	d := check(t, eng, "what is the capital of France?")
	if !d.IsSafe || d.Category != "safe" || !d.Consensus {
		t.Fatalf("decision = %+v, want safe consensus", d)
	}
	if d.Severity != 0 {
		t.Errorf("Severity = %d, want 0", d.Severity)
	}
	if len(d.Sources) != 3 { // screen + 2 classifiers
		t.Errorf("Sources = %d rows, want 3", len(d.Sources))
	}
}

// Scenario B: one harmful, one safe, highest_severity strategy.
func TestHighestSeverityDisagreement(t *testing.T) {
	eng := newEngine(t, testConfig(
		fake("c1", "harmful", time.Second, nil),
		fake("c2", "safe", time.Second, nil),
	))

	d := check(t, eng, "some borderline text")
	if d.IsSafe || d.Category != "harmful_prompt" {
		t.Fatalf("decision = %+v, want harmful_prompt block", d)
	}
	if d.Consensus {
		t.Error("Consensus = true for disagreeing classifiers")
	}
	if d.Severity != 2 {
		t.Errorf("Severity = %d, want 2", d.Severity)
	}
}

// Scenario C: one classifier times out, the other is safe; the fallback
// substitutes for the failed call and wins on severity.
func TestTimeoutFallbackSubstituted(t *testing.T) {
	eng := newEngine(t, testConfig(
		fake("c1", "safe", 30*time.Millisecond, map[string]string{"delay_ms": "500"}),
		fake("c2", "safe", time.Second, nil),
	))

	d := check(t, eng, "anything")
	if d.IsSafe || d.Category != "unknown_unsafe" {
		t.Fatalf("decision = %+v, want unknown_unsafe", d)
	}
	var fallbackRow *model.SourceVerdict
	for i := range d.Sources {
		if d.Sources[i].Source == "c1" {
			fallbackRow = &d.Sources[i]
		}
	}
	if fallbackRow == nil || !fallbackRow.Fallback || fallbackRow.Status != model.StatusTimeout {
		t.Errorf("c1 row = %+v, want timeout fallback", fallbackRow)
	}
}

// Scenario D: consensus strategy, votes safe / harmful / harmful.
func TestConsensusStrategy(t *testing.T) {
	cfg := testConfig(
		fake("c1", "safe", time.Second, nil),
		fake("c2", "harmful", time.Second, nil),
		fake("c3", "harmful", time.Second, nil),
	)
	cfg.Resolution.Strategy = "consensus"
	eng := newEngine(t, cfg)

	d := check(t, eng, "text")
	if d.Category != "harmful_prompt" {
		t.Fatalf("Category = %q, want harmful_prompt", d.Category)
	}
	if d.Consensus {
		t.Error("Consensus = true, want false")
	}
}

func TestShortCircuitSkipsClassifiers(t *testing.T) {
	cfg := testConfig(fake("c1", "safe", time.Second, nil))
	cfg = withScreen(t, cfg, "forbidden")
	cfg.Screen.ShortCircuit = true
	eng := newEngine(t, cfg)

	d := check(t, eng, "this contains a forbidden word")
	if !d.ShortCircuited {
		t.Fatal("expected short-circuited decision")
	}
	if d.IsSafe || d.Category != "harmful_prompt" {
		t.Errorf("decision = %+v, want screen category block", d)
	}
	if n := callCount("c1"); n != 0 {
		t.Errorf("classifier invoked %d times despite short-circuit", n)
	}
}

func TestScreenMatchWithoutShortCircuit(t *testing.T) {
	cfg := testConfig(fake("c1", "safe", time.Second, nil))
	cfg = withScreen(t, cfg, "forbidden")
	cfg.Screen.ShortCircuit = false
	eng := newEngine(t, cfg)

	d := check(t, eng, "a forbidden word again")
	if d.ShortCircuited {
		t.Fatal("short-circuited despite short_circuit=false")
	}
	if n := callCount("c1"); n != 1 {
		t.Errorf("classifier calls = %d, want 1", n)
	}
	// Screen's vote still wins on severity over the safe classifier.
	if d.IsSafe || d.Category != "harmful_prompt" {
		t.Errorf("decision = %+v", d)
	}
}

func TestFailClosedAllClassifiersDown(t *testing.T) {
	eng := newEngine(t, testConfig(
		fake("c1", "safe", time.Second, map[string]string{"fail": "unavailable"}),
		fake("c2", "safe", time.Second, map[string]string{"fail": "timeout"}),
	))

	d := check(t, eng, "text")
	if d.IsSafe {
		t.Fatal("is_safe = true when every classifier failed")
	}
	if d.Category != "unknown_unsafe" {
		t.Errorf("Category = %q, want fail-safe bucket", d.Category)
	}
}

// A fallback pointed at a safe category is an explicit opt-out of
// fail-closed behavior: the engine must build, and a failed classifier
// then contributes a safe vote.
func TestSafeFallbackOptOut(t *testing.T) {
	cfg := testConfig(
		fake("c1", "safe", time.Second, nil),
		fake("c2", "safe", time.Second, map[string]string{"fail": "unavailable"}),
	)
	cfg.Fallback.Category = "safe"
	eng := newEngine(t, cfg)

	d := check(t, eng, "text")
	if !d.IsSafe || d.Category != "safe" {
		t.Fatalf("decision = %+v, want safe with opted-out fallback", d)
	}
	for _, s := range d.Sources {
		if s.Source != "c2" {
			continue
		}
		if !s.Fallback || s.Category != "safe" || s.Status != model.StatusError {
			t.Errorf("c2 row = %+v, want safe fallback substitution", s)
		}
	}
}

// Opting the fallback into "safe" must not drag unmapped raw labels with
// it; those still resolve to an unsafe bucket.
func TestSafeFallbackKeepsUnmappedUnsafe(t *testing.T) {
	cfg := testConfig(fake("c1", "something_new", time.Second, nil))
	cfg.Fallback.Category = "safe"
	eng := newEngine(t, cfg)

	d := check(t, eng, "text")
	if d.IsSafe || d.Category != "unknown_unsafe" {
		t.Fatalf("decision = %+v, want unknown_unsafe for unmapped label", d)
	}
}

// A classifier entry without timeout_ms still runs under a deadline.
func TestOmittedTimeoutGetsDefaultBudget(t *testing.T) {
	eng := newEngine(t, testConfig(fake("c1", "safe", 0, nil)))

	if got := eng.MaxTimeout(); got != config.DefaultTimeout {
		t.Errorf("MaxTimeout() = %v, want %v", got, config.DefaultTimeout)
	}
}

func TestNoSignalsFailSafe(t *testing.T) {
	eng := newEngine(t, testConfig()) // screen disabled, zero classifiers

	d := check(t, eng, "text")
	if d.IsSafe || d.Category != "unknown_unsafe" {
		t.Fatalf("decision = %+v, want fail-safe", d)
	}
	if d.Method != "fail_safe" {
		t.Errorf("Method = %q", d.Method)
	}
}

func TestLatencyBoundedBySlowestTimeout(t *testing.T) {
	// Three classifiers that would each take 400ms, budgeted at 60ms.
	// Total time must track one budget, not the 1.2s sum.
	slow := map[string]string{"delay_ms": "400"}
	eng := newEngine(t, testConfig(
		fake("c1", "safe", 60*time.Millisecond, slow),
		fake("c2", "safe", 60*time.Millisecond, slow),
		fake("c3", "safe", 60*time.Millisecond, slow),
	))

	start := time.Now()
	d := check(t, eng, "text")
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Check took %v, want bounded by max timeout plus overhead", elapsed)
	}
	if d.IsSafe {
		t.Error("all-timeout request resolved safe")
	}
}

func TestDecisionIsDeterministic(t *testing.T) {
	eng := newEngine(t, testConfig(
		fake("c1", "jail", time.Second, nil),
		fake("c2", "harmful", time.Second, nil),
	))

	first := check(t, eng, "text")
	for i := 0; i < 10; i++ {
		d := check(t, eng, "text")
		if d.Category != first.Category || d.IsSafe != first.IsSafe ||
			d.Confidence != first.Confidence || d.Consensus != first.Consensus {
			t.Fatalf("decision drifted: %+v vs %+v", d, first)
		}
	}
}

func TestReloadSwapsStrategy(t *testing.T) {
	cfg := testConfig(
		fake("c1", "safe", time.Second, nil),
		fake("c2", "jail", time.Second, nil),
	)
	eng := newEngine(t, cfg)

	d := check(t, eng, "text")
	if d.Method != "highest_severity" {
		t.Fatalf("Method = %q before reload", d.Method)
	}

	cfg.Resolution.Strategy = "first_match"
	if err := eng.Reload(cfg); err != nil {
		t.Fatalf("Reload() error: %v", err)
	}
	d = check(t, eng, "text")
	if d.Method != "first_match" {
		t.Errorf("Method = %q after reload, want first_match", d.Method)
	}
}

func TestReloadRejectsBadConfigKeepsOld(t *testing.T) {
	cfg := testConfig(fake("c1", "jail", time.Second, nil))
	eng := newEngine(t, cfg)

	bad := cfg
	bad.Resolution.Strategy = "coin_flip"
	if err := eng.Reload(bad); err == nil {
		t.Fatal("Reload() accepted an unknown strategy")
	}

	// Old pipeline still serves.
	d := check(t, eng, "text")
	if d.Category != "jailbreak" {
		t.Errorf("Category = %q after failed reload", d.Category)
	}
}

func TestBuildConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown strategy", func(c *config.Config) { c.Resolution.Strategy = "nope" }},
		{"unknown classifier kind", func(c *config.Config) {
			c.Classifiers = []config.ClassifierConfig{{Kind: "missing_kind", Enabled: true, Mapping: fakeMapping}}
		}},
		{"undefined fallback", func(c *config.Config) { c.Fallback.Category = "ghost" }},
		{"undefined screen category", func(c *config.Config) {
			c.Screen.Enabled = true
			c.Screen.Category = "ghost"
		}},
		{"mapping to undefined category", func(c *config.Config) {
			c.Classifiers = []config.ClassifierConfig{{Kind: "fake", Enabled: true, Mapping: map[string]string{"x": "ghost"}}}
		}},
		{"no mapping and no default", func(c *config.Config) {
			c.Classifiers = []config.ClassifierConfig{{Kind: "fake", Enabled: true}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("New() accepted invalid configuration")
			}
		})
	}
}
