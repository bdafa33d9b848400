// Package engine orchestrates one content-safety decision: validate,
// pre-screen, optionally short-circuit, dispatch classifiers, resolve
// disagreement, respond. Every request produces exactly one decision, even
// when every classifier fails — degradation ends at the configured
// fail-safe category, never at an implicit "safe".
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/warden/internal/classifier"
	"github.com/crimson-sun/warden/internal/config"
	"github.com/crimson-sun/warden/internal/engine/dispatch"
	"github.com/crimson-sun/warden/internal/engine/resolver"
	"github.com/crimson-sun/warden/internal/engine/screen"
	"github.com/crimson-sun/warden/internal/engine/taxonomy"
	"github.com/crimson-sun/warden/internal/model"
)

// ScreenSource is the per-source breakdown identifier of the pre-screen.
const ScreenSource = "fast_screen"

// pipeline is one immutable, fully wired configuration. Reloads build a
// new pipeline and swap the pointer; in-flight requests keep the snapshot
// they started with.
type pipeline struct {
	screenEnabled  bool
	shortCircuit   bool
	screenCategory string
	safeCategory   string
	fallback       string
	tax            *taxonomy.Taxonomy
	entries        []dispatch.Entry
	pool           *dispatch.Pool
	resolver       *resolver.Resolver
	maxTimeout     time.Duration
}

// Engine is the decision engine. Safe for concurrent use; one engine
// serves many requests, each with its own dispatch episode.
type Engine struct {
	screen  *screen.Screen
	current atomic.Pointer[pipeline]
}

// New builds an Engine from configuration. All configuration errors
// surface here, never mid-request.
func New(cfg config.Config) (*Engine, error) {
	scr, err := buildScreen(cfg.Screen)
	if err != nil {
		return nil, err
	}
	p, err := build(cfg)
	if err != nil {
		return nil, err
	}
	e := &Engine{screen: scr}
	e.current.Store(p)
	return e, nil
}

// Reload builds a pipeline from the new configuration and swaps it in
// atomically. On any error the previous configuration stays active.
func (e *Engine) Reload(cfg config.Config) error {
	p, err := build(cfg)
	if err != nil {
		return err
	}
	if cfg.Screen.BlocklistFile != "" {
		bl, err := screen.LoadFile(cfg.Screen.BlocklistFile)
		if err != nil {
			return err
		}
		if err := e.screen.Update(bl); err != nil {
			return err
		}
	}
	e.current.Store(p)
	slog.Info("configuration reloaded",
		"classifiers", len(p.entries),
		"screen_enabled", p.screenEnabled,
		"short_circuit", p.shortCircuit)
	return nil
}

// Check runs the full decision pipeline for one request.
func (e *Engine) Check(ctx context.Context, req model.CheckRequest) (model.Decision, error) {
	p := e.current.Load()
	start := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return model.Decision{}, &model.ValidationError{Reason: "text must not be empty"}
	}

	d := model.Decision{RequestID: req.ID}
	var signals []resolver.Signal

	if p.screenEnabled {
		sr := e.screen.Check(req.Text)
		d.Timings.Screen = sr.Elapsed
		d.Sources = append(d.Sources, screenVerdict(p, sr))

		if sr.Matched && p.shortCircuit {
			// Confirmed-unsafe by pattern: never pay for classification.
			d.ShortCircuited = true
			d.Category = p.screenCategory
			d.Severity = p.tax.Severity(p.screenCategory)
			d.IsSafe = d.Severity == 0
			d.Confidence = model.ConfidenceHigh
			d.Consensus = true
			d.Method = "short_circuit"
			d.Reason = fmt.Sprintf("pattern pre-screen matched (%s)", strings.Join(sr.Matches, ", "))
			d.Timings.Total = time.Since(start)
			logDecision(req, d)
			return d, nil
		}

		signals = append(signals, screenSignal(p, sr))
	}

	if len(p.entries) > 0 {
		dispatchStart := time.Now()
		results := p.pool.Dispatch(ctx, p.entries, req.Text)
		d.Timings.Dispatch = time.Since(dispatchStart)
		for _, r := range results {
			d.Sources = append(d.Sources, model.SourceVerdict{
				Source:      r.Classifier,
				RawCategory: r.RawCategory,
				Category:    r.Category,
				Severity:    r.Severity,
				Confidence:  r.Confidence,
				Rationale:   r.Rationale,
				Status:      r.Status,
				Fallback:    r.Fallback,
				Elapsed:     r.Elapsed,
			})
			signals = append(signals, resolver.Signal{
				Source:     r.Classifier,
				Category:   r.Category,
				Severity:   r.Severity,
				Confidence: r.Confidence,
			})
		}
	}

	resolveStart := time.Now()
	if len(signals) == 0 {
		// Neither screen nor classifiers contributed: fail-safe.
		d.Category = p.fallback
		d.Severity = p.tax.Severity(p.fallback)
		d.IsSafe = d.Severity == 0
		d.Confidence = model.ConfidenceLow
		d.Method = "fail_safe"
		d.Reason = "no classification signal available; fail-safe category applied"
	} else {
		out := p.resolver.Resolve(signals)
		d.Category = out.Category
		d.Severity = out.Severity
		d.IsSafe = out.Severity == 0
		d.Confidence = out.Confidence
		d.Consensus = out.Consensus
		d.Method = out.Method
		d.Reason = reason(p.tax, out)
	}
	d.Timings.Resolve = time.Since(resolveStart)
	d.Timings.Total = time.Since(start)

	logDecision(req, d)
	return d, nil
}

// Blocklist returns the active pre-screen blocklist.
func (e *Engine) Blocklist() screen.Blocklist {
	return e.screen.Blocklist()
}

// UpdateBlocklist swaps the pre-screen blocklist atomically.
func (e *Engine) UpdateBlocklist(bl screen.Blocklist) error {
	return e.screen.Update(bl)
}

// ClassifierCount reports how many classifiers the active pipeline runs.
func (e *Engine) ClassifierCount() int {
	return len(e.current.Load().entries)
}

// ScreenEnabled reports whether the active pipeline runs the pre-screen.
func (e *Engine) ScreenEnabled() bool {
	return e.current.Load().screenEnabled
}

// MaxTimeout is the largest per-classifier budget in the active pipeline,
// which bounds worst-case dispatch latency.
func (e *Engine) MaxTimeout() time.Duration {
	return e.current.Load().maxTimeout
}

func buildScreen(sc config.ScreenConfig) (*screen.Screen, error) {
	bl := screen.Default()
	if sc.BlocklistFile != "" {
		loaded, err := screen.LoadFile(sc.BlocklistFile)
		if err != nil {
			return nil, err
		}
		bl = loaded
	}
	return screen.New(bl)
}

// build compiles plain configuration into an immutable pipeline,
// instantiating classifiers through the static registry.
func build(cfg config.Config) (*pipeline, error) {
	cats := make(map[string]taxonomy.Category, len(cfg.Categories))
	for key, c := range cfg.Categories {
		cats[key] = taxonomy.Category{Code: c.Code, Description: c.Description, Severity: c.Severity}
	}
	unknown := unknownBucket(cfg)
	if unknown == "" {
		return nil, &model.ConfigurationError{Field: "categories", Reason: "no unsafe category defined for unmapped labels"}
	}
	tax, err := taxonomy.New(cats, unknown)
	if err != nil {
		return nil, err
	}

	safeCategory := ""
	for _, key := range tax.Keys() {
		if tax.Severity(key) == 0 {
			safeCategory = key
			break
		}
	}
	if safeCategory == "" {
		return nil, &model.ConfigurationError{Field: "categories", Reason: "no severity-0 category defined"}
	}

	if cfg.Screen.Enabled {
		if _, ok := tax.Lookup(cfg.Screen.Category); !ok {
			return nil, &model.ConfigurationError{Field: "screen.category", Reason: "category " + cfg.Screen.Category + " not defined"}
		}
	}

	strategy, err := resolver.ParseStrategy(cfg.Resolution.Strategy)
	if err != nil {
		return nil, err
	}
	thresholds := resolver.DefaultThresholds()
	if cfg.Resolution.ConfidenceHigh > 0 {
		thresholds.High = cfg.Resolution.ConfidenceHigh
	}
	if cfg.Resolution.ConfidenceMedium > 0 {
		thresholds.Medium = cfg.Resolution.ConfidenceMedium
	}

	pool, err := dispatch.New(tax, cfg.Fallback.Category)
	if err != nil {
		return nil, err
	}

	var entries []dispatch.Entry
	var maxTimeout time.Duration
	for _, cc := range cfg.Classifiers {
		if !cc.Enabled {
			continue
		}
		mapping := cc.Mapping
		if mapping == nil {
			mapping = taxonomy.DefaultMapping(cc.Kind)
		}
		if mapping == nil {
			return nil, &model.ConfigurationError{Field: "classifiers." + cc.Kind, Reason: "no category mapping configured and no built-in default"}
		}
		norm, err := taxonomy.NewNormalizer(tax, mapping)
		if err != nil {
			return nil, err
		}
		name := cc.Name
		if name == "" {
			name = cc.Kind
		}
		cls, err := classifier.New(cc.Kind, classifier.Settings{
			Name:     name,
			Model:    cc.Model,
			Endpoint: cc.Endpoint,
			Extra:    cc.Extra,
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, dispatch.Entry{Classifier: cls, Timeout: cc.Timeout(), Normalizer: norm})
		if cc.Timeout() > maxTimeout {
			maxTimeout = cc.Timeout()
		}
	}

	return &pipeline{
		screenEnabled:  cfg.Screen.Enabled,
		shortCircuit:   cfg.Screen.ShortCircuit,
		screenCategory: cfg.Screen.Category,
		safeCategory:   safeCategory,
		fallback:       cfg.Fallback.Category,
		tax:            tax,
		entries:        entries,
		pool:           pool,
		resolver:       resolver.New(tax, strategy, thresholds),
		maxTimeout:     maxTimeout,
	}, nil
}

// unknownBucket selects the taxonomy bucket for unmapped raw labels.
// The failure fallback doubles as that bucket when it is unsafe; a
// deployment that opts its fallback into a safe category still needs an
// unsafe bucket for unmapped labels, so the lowest-severity unsafe
// category takes over (ties break by name for determinism).
func unknownBucket(cfg config.Config) string {
	if c, ok := cfg.Categories[cfg.Fallback.Category]; ok && c.Severity > 0 {
		return cfg.Fallback.Category
	}
	best := ""
	for key, c := range cfg.Categories {
		if c.Severity <= 0 {
			continue
		}
		if best == "" || c.Severity < cfg.Categories[best].Severity ||
			(c.Severity == cfg.Categories[best].Severity && key < best) {
			best = key
		}
	}
	return best
}

// screenVerdict builds the breakdown row for the pre-screen.
func screenVerdict(p *pipeline, sr model.ScreenResult) model.SourceVerdict {
	v := model.SourceVerdict{
		Source:     ScreenSource,
		Category:   p.safeCategory,
		Confidence: 1,
		Status:     model.StatusCompleted,
		Elapsed:    sr.Elapsed,
	}
	if sr.Matched {
		v.Category = p.screenCategory
		v.Severity = p.tax.Severity(p.screenCategory)
		v.Rationale = "matched: " + strings.Join(sr.Matches, ", ")
	}
	return v
}

// screenSignal is the pre-screen's vote: its mapped category on a match,
// the safe category otherwise.
func screenSignal(p *pipeline, sr model.ScreenResult) resolver.Signal {
	if sr.Matched {
		return resolver.Signal{
			Source:     ScreenSource,
			Category:   p.screenCategory,
			Severity:   p.tax.Severity(p.screenCategory),
			Confidence: 1,
		}
	}
	return resolver.Signal{Source: ScreenSource, Category: p.safeCategory, Severity: 0, Confidence: 1}
}

// reason renders the human-readable explanation for a resolved outcome.
func reason(tax *taxonomy.Taxonomy, out resolver.Outcome) string {
	desc := tax.Describe(out.Category)
	if out.Severity == 0 {
		return "all checks passed"
	}
	switch {
	case out.Consensus:
		return "all signals agree: " + desc
	case out.Method == string(resolver.Consensus):
		return "majority of signals: " + desc
	case out.Method == string(resolver.FirstMatch):
		return "first unsafe signal: " + desc
	case out.Method == "no_signals":
		return "no usable signal; " + desc
	case len(out.Conflicting) > 0:
		return "conflicting signals; highest severity selected: " + desc
	default:
		return desc
	}
}

func logDecision(req model.CheckRequest, d model.Decision) {
	slog.Debug("decision",
		"request_id", req.ID,
		"is_safe", d.IsSafe,
		"category", d.Category,
		"confidence", string(d.Confidence),
		"consensus", d.Consensus,
		"short_circuited", d.ShortCircuited,
		"total", d.Timings.Total)
}
