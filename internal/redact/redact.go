// Package redact masks personally identifiable information in text before
// it leaves the process, e.g. into audit records. Matching is rule-ordered:
// more specific patterns run first so a card number is never half-eaten by
// the phone rule.
package redact

import (
	"regexp"
	"strings"
)

// rule pairs a pattern with the categorized placeholder it substitutes.
type rule struct {
	category string
	re       *regexp.Regexp
	// validate, when set, must approve a match before it is masked.
	validate func(string) bool
}

// Masker replaces PII spans with **category** placeholders.
type Masker struct {
	rules []rule
}

// New returns a Masker with the built-in rule set: credit cards
// (Luhn-validated), social security numbers, phone numbers, email
// addresses, and IPv4 addresses.
func New() *Masker {
	return &Masker{rules: []rule{
		{
			category: "credit_card",
			re:       regexp.MustCompile(`\b\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}\b|\b\d{13,19}\b`),
			validate: luhnValid,
		},
		{
			category: "ssn",
			re:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		},
		{
			category: "phone",
			re:       regexp.MustCompile(`(\+1[-.\s]?|\b1[-.\s]|\b)\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
		},
		{
			category: "email",
			re:       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		},
		{
			category: "ip",
			re:       regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
		},
	}}
}

// Mask returns text with every detected PII span replaced by its
// categorized placeholder. Text without PII is returned unchanged.
func (m *Masker) Mask(text string) string {
	if text == "" {
		return text
	}
	out := text
	for _, r := range m.rules {
		out = r.re.ReplaceAllStringFunc(out, func(match string) string {
			if r.validate != nil && !r.validate(match) {
				return match
			}
			return "**" + r.category + "**"
		})
	}
	return out
}

// Categories reports which PII categories occur in text, in rule order.
func (m *Masker) Categories(text string) []string {
	var found []string
	for _, r := range m.rules {
		for _, match := range r.re.FindAllString(text, -1) {
			if r.validate != nil && !r.validate(match) {
				continue
			}
			found = append(found, r.category)
			break
		}
	}
	return found
}

// luhnValid reports whether the digits of s form a valid Luhn checksum.
// Filters out arbitrary long numbers that merely look like card numbers.
func luhnValid(s string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
