package screen

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/crimson-sun/warden/internal/model"
)

// Blocklist holds the keyword and regex vocabulary of the pre-screen.
type Blocklist struct {
	Keywords []string `json:"keywords"`
	Patterns []string `json:"regex_patterns"`
}

// compiled is an immutable, ready-to-match snapshot of a Blocklist.
type compiled struct {
	raw      Blocklist
	keywords []string
	patterns []*regexp.Regexp
}

// Screen is the cheap pattern pre-check in front of classifier dispatch.
// The active blocklist is swapped atomically, so concurrent checks always
// see a complete vocabulary.
type Screen struct {
	current atomic.Pointer[compiled]
}

// New compiles a blocklist into a ready Screen.
func New(bl Blocklist) (*Screen, error) {
	c, err := compile(bl)
	if err != nil {
		return nil, err
	}
	s := &Screen{}
	s.current.Store(c)
	return s, nil
}

// Update swaps in a new blocklist. The old one stays active if any pattern
// fails to compile.
func (s *Screen) Update(bl Blocklist) error {
	c, err := compile(bl)
	if err != nil {
		return err
	}
	s.current.Store(c)
	return nil
}

// Blocklist returns the currently active blocklist.
func (s *Screen) Blocklist() Blocklist {
	return s.current.Load().raw
}

// Check matches text against the active blocklist. Keywords match on
// NFKC-folded, lowercased text; regex patterns run on the original text.
func (s *Screen) Check(text string) model.ScreenResult {
	start := time.Now()
	c := s.current.Load()

	var matches []string
	folded := Fold(text)
	for _, kw := range c.keywords {
		if strings.Contains(folded, kw) {
			matches = append(matches, "keyword:"+kw)
		}
	}
	for i, re := range c.patterns {
		if re.MatchString(text) {
			matches = append(matches, "pattern:"+c.raw.Patterns[i])
		}
	}

	return model.ScreenResult{
		Matched: len(matches) > 0,
		Matches: matches,
		Elapsed: time.Since(start),
	}
}

// Fold normalizes text for keyword matching: NFKC then lowercase, so
// full-width and compatibility forms cannot slip past ASCII keywords.
func Fold(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

func compile(bl Blocklist) (*compiled, error) {
	c := &compiled{raw: bl}
	for _, kw := range bl.Keywords {
		c.keywords = append(c.keywords, Fold(kw))
	}
	for _, p := range bl.Patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("screen: pattern %q: %w", p, err)
		}
		c.patterns = append(c.patterns, re)
	}
	return c, nil
}

// LoadFile reads a blocklist from a JSON file.
func LoadFile(path string) (Blocklist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blocklist{}, fmt.Errorf("screen: %w", err)
	}
	var bl Blocklist
	if err := json.Unmarshal(data, &bl); err != nil {
		return Blocklist{}, fmt.Errorf("screen: parse %s: %w", path, err)
	}
	return bl, nil
}

// Default returns the built-in blocklist used when no file is configured.
func Default() Blocklist {
	return Blocklist{
		Keywords: []string{
			"hack",
			"exploit",
			"bypass security",
			"illegal",
			"steal password",
			"malware",
			"phishing",
			"ransomware",
			"keylogger",
		},
		Patterns: []string{
			`(\b|_)password(\b|_)`,
			`(\b|_)ssh[_-]key(\b|_)`,
			// Major card network PANs.
			`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|3(?:0[0-5]|[68][0-9])[0-9]{11}|6(?:011|5[0-9]{2})[0-9]{12}|(?:2131|1800|35\d{3})\d{11})\b`,
		},
	}
}
