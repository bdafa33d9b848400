package warden

import (
	"time"

	"github.com/crimson-sun/warden/internal/config"
)

// ClassifierSpec describes one classifier instance for WithClassifiers.
type ClassifierSpec struct {
	Kind     string            // registry key, e.g. "llama_guard"
	Name     string            // reporting id, defaults to Kind
	Model    string            // model identifier passed to the adapter
	Endpoint string            // empty: adapter default
	Timeout  time.Duration     // per-call budget, 0: 25s
	Mapping  map[string]string // nil: built-in mapping for Kind
	Extra    map[string]string
}

type options struct {
	cfg      config.Config
	keywords []string
	patterns []string
	blSet    bool
}

// Option configures a Warden instance.
type Option func(*options)

// WithStrategy selects the conflict resolution strategy:
// "highest_severity" (default), "consensus", or "first_match".
func WithStrategy(s string) Option {
	return func(o *options) { o.cfg.Resolution.Strategy = s }
}

// WithFallbackCategory sets the category substituted for failed classifier
// calls and used when no signal is available. Default: "unknown_unsafe".
func WithFallbackCategory(c string) Option {
	return func(o *options) { o.cfg.Fallback.Category = c }
}

// WithShortCircuit controls whether a pre-screen match ends the decision
// immediately without invoking classifiers. Default: true.
func WithShortCircuit(enabled bool) Option {
	return func(o *options) { o.cfg.Screen.ShortCircuit = enabled }
}

// WithoutScreen disables the pattern pre-screen entirely.
func WithoutScreen() Option {
	return func(o *options) { o.cfg.Screen.Enabled = false }
}

// WithBlocklist replaces the built-in pre-screen vocabulary.
func WithBlocklist(keywords, patterns []string) Option {
	return func(o *options) {
		o.keywords = keywords
		o.patterns = patterns
		o.blSet = true
	}
}

// WithBlocklistFile loads the pre-screen vocabulary from a JSON file.
func WithBlocklistFile(path string) Option {
	return func(o *options) { o.cfg.Screen.BlocklistFile = path }
}

// WithClassifiers replaces the default classifier set (LlamaGuard and
// Guardian over a local model runtime).
func WithClassifiers(specs ...ClassifierSpec) Option {
	return func(o *options) {
		o.cfg.Classifiers = o.cfg.Classifiers[:0]
		for _, spec := range specs {
			timeout := spec.Timeout
			if timeout <= 0 {
				timeout = config.DefaultTimeout
			}
			o.cfg.Classifiers = append(o.cfg.Classifiers, config.ClassifierConfig{
				Kind:      spec.Kind,
				Name:      spec.Name,
				Enabled:   true,
				Model:     spec.Model,
				Endpoint:  spec.Endpoint,
				TimeoutMS: int(timeout / time.Millisecond),
				Mapping:   spec.Mapping,
				Extra:     spec.Extra,
			})
		}
	}
}

// WithConfidenceThresholds sets the boundaries of the high/medium/low
// confidence buckets. Defaults: 0.75 and 0.4.
func WithConfidenceThresholds(high, medium float64) Option {
	return func(o *options) {
		o.cfg.Resolution.ConfidenceHigh = high
		o.cfg.Resolution.ConfidenceMedium = medium
	}
}

// WithEndpoint points every classifier without an explicit endpoint at
// the given model runtime URL.
func WithEndpoint(url string) Option {
	return func(o *options) {
		for i := range o.cfg.Classifiers {
			if o.cfg.Classifiers[i].Endpoint == "" {
				o.cfg.Classifiers[i].Endpoint = url
			}
		}
	}
}

func defaultOptions() options {
	return options{cfg: config.Default()}
}
