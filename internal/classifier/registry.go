package classifier

import (
	"sort"

	"github.com/crimson-sun/warden/internal/model"
)

// Settings carries per-classifier configuration into a factory.
type Settings struct {
	Name     string // stable reporting identifier
	Model    string // backing model name
	Endpoint string // base URL of the model service
	Extra    map[string]string
}

// Factory builds a Classifier instance from settings. Factories run at
// configuration load, never per request.
type Factory func(Settings) (Classifier, error)

var registry = map[string]Factory{}

// Register adds a factory under the given kind. Implementations call this
// from init(); kinds are resolved when a configuration is loaded.
func Register(kind string, f Factory) {
	registry[kind] = f
}

// New instantiates a classifier of the given kind.
func New(kind string, s Settings) (Classifier, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, &model.ConfigurationError{Field: "classifiers", Reason: "unknown classifier kind: " + kind}
	}
	return f(s)
}

// Kinds returns the registered classifier kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
