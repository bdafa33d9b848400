package taxonomy

import (
	"sort"
	"strings"

	"github.com/crimson-sun/warden/internal/model"
)

// Category describes one unified category.
type Category struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Severity    int    `json:"severity"`
}

// Taxonomy is the severity-ranked unified category set every raw classifier
// label normalizes into. Immutable once built; configuration reloads build
// a fresh Taxonomy rather than mutating this one.
type Taxonomy struct {
	categories map[string]Category
	unknown    string
}

// New builds a Taxonomy from a category map and the key of the
// unknown-unsafe bucket that unmapped labels resolve to.
func New(categories map[string]Category, unknown string) (*Taxonomy, error) {
	if len(categories) == 0 {
		return nil, &model.ConfigurationError{Field: "categories", Reason: "no categories defined"}
	}
	for key, cat := range categories {
		if cat.Severity < 0 {
			return nil, &model.ConfigurationError{Field: "categories." + key, Reason: "severity must be >= 0"}
		}
	}
	bucket, ok := categories[unknown]
	if !ok {
		return nil, &model.ConfigurationError{Field: "unknown_category", Reason: "category " + unknown + " not defined"}
	}
	if bucket.Severity == 0 {
		return nil, &model.ConfigurationError{Field: "unknown_category", Reason: "unknown bucket must not be a safe category"}
	}
	cp := make(map[string]Category, len(categories))
	for k, v := range categories {
		cp[k] = v
	}
	return &Taxonomy{categories: cp, unknown: unknown}, nil
}

// Lookup returns the category for a unified key.
func (t *Taxonomy) Lookup(key string) (Category, bool) {
	cat, ok := t.categories[key]
	return cat, ok
}

// Severity returns the severity of a unified key. Unknown keys report the
// unknown bucket's severity, never zero.
func (t *Taxonomy) Severity(key string) int {
	if cat, ok := t.categories[key]; ok {
		return cat.Severity
	}
	return t.categories[t.unknown].Severity
}

// Describe returns the human-readable description for a unified key.
func (t *Taxonomy) Describe(key string) string {
	if cat, ok := t.categories[key]; ok {
		return cat.Description
	}
	return t.categories[t.unknown].Description
}

// Unknown returns the key of the unknown-unsafe bucket.
func (t *Taxonomy) Unknown() string { return t.unknown }

// Keys returns all category keys ordered by ascending severity, then name.
func (t *Taxonomy) Keys() []string {
	keys := make([]string, 0, len(t.categories))
	for k := range t.categories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		si, sj := t.categories[keys[i]].Severity, t.categories[keys[j]].Severity
		if si != sj {
			return si < sj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Normalizer translates one classifier's raw label vocabulary into the
// unified taxonomy. The mapping is total: any raw label it has never seen
// resolves to the unknown-unsafe bucket, never to a safe category.
type Normalizer struct {
	tax     *Taxonomy
	mapping map[string]string
}

// NewNormalizer validates that every mapping target exists in the taxonomy.
func NewNormalizer(tax *Taxonomy, mapping map[string]string) (*Normalizer, error) {
	m := make(map[string]string, len(mapping))
	for raw, unified := range mapping {
		if _, ok := tax.Lookup(unified); !ok {
			return nil, &model.ConfigurationError{
				Field:  "mapping." + raw,
				Reason: "maps to undefined category " + unified,
			}
		}
		m[normalizeLabel(raw)] = unified
	}
	return &Normalizer{tax: tax, mapping: m}, nil
}

// Normalize maps a raw label to a unified key. The second return reports
// whether the label was explicitly mapped.
func (n *Normalizer) Normalize(raw string) (string, bool) {
	if unified, ok := n.mapping[normalizeLabel(raw)]; ok {
		return unified, true
	}
	return n.tax.Unknown(), false
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
