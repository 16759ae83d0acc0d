package validators

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dusk-indust/verity/internal/verify"
)

// PatternRule is one weighted entry in the pattern validator's library.
// A rule matches through its regular expression, its keyword set, or both;
// the stronger signal wins.
type PatternRule struct {
	// Name identifies the rule in results and reasoning.
	Name string `yaml:"name"`
	// Expr is a regular expression matched against the claim. Optional.
	Expr string `yaml:"expr,omitempty"`
	// Keywords is a fuzzy bag of words: the rule's score is the fraction
	// of them present in the claim. Multi-word entries are flattened into
	// individual tokens. Optional.
	Keywords []string `yaml:"keywords,omitempty"`
	// Weight scales the rule's contribution. At or below zero counts
	// as 1.
	Weight float64 `yaml:"weight,omitempty"`
	// Enabled rules participate in matching.
	Enabled bool `yaml:"enabled"`
}

// PatternConfig tunes the validator. The zero value gives the built-in
// rule library, the default threshold, and the default scan cap.
type PatternConfig struct {
	// Rules replaces the built-in library when non-nil.
	Rules []PatternRule
	// Threshold is the accumulated weighted strength at which the claim
	// is called contradicted. At or below zero means the default of 0.75.
	Threshold float64
	// MaxScanBytes overrides the input cap. Zero means the default.
	MaxScanBytes int
}

// keywordFloor is the minimum fraction of a rule's keywords that must be
// present before the rule contributes at all; scattered single-word hits
// stay silent.
const keywordFloor = 0.5

// defaultThreshold is the strength at which matches flip the verdict.
const defaultThreshold = 0.75

// PatternValidator matches a claim against a weighted library of known
// misinformation and fallacy patterns. Accumulated match strength at or
// above the threshold yields a contradicted verdict; anything weaker is
// reported as neutral uncertainty.
type PatternValidator struct {
	rules     []compiledRule
	threshold float64
	maxScan   int
}

type compiledRule struct {
	name     string
	re       *regexp.Regexp
	keywords []string
	weight   float64
}

var _ verify.Adapter = (*PatternValidator)(nil)

// NewPatternValidator compiles cfg's rules. An unparseable expression is
// an ErrInvalidConfiguration.
func NewPatternValidator(cfg PatternConfig) (*PatternValidator, error) {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		cr := compiledRule{name: rule.Name, weight: rule.Weight}
		if cr.weight <= 0 {
			cr.weight = 1
		}
		if rule.Expr != "" {
			re, err := regexp.Compile(rule.Expr)
			if err != nil {
				return nil, fmt.Errorf("%w: pattern rule %q: %v", verify.ErrInvalidConfiguration, rule.Name, err)
			}
			cr.re = re
		}
		for _, kw := range rule.Keywords {
			for _, tok := range tokenRe.FindAllString(strings.ToLower(kw), -1) {
				cr.keywords = append(cr.keywords, tok)
			}
		}
		if cr.re == nil && len(cr.keywords) == 0 {
			return nil, fmt.Errorf("%w: pattern rule %q has neither expr nor keywords", verify.ErrInvalidConfiguration, rule.Name)
		}
		compiled = append(compiled, cr)
	}

	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	maxScan := cfg.MaxScanBytes
	if maxScan <= 0 {
		maxScan = defaultMaxScanBytes
	}
	return &PatternValidator{rules: compiled, threshold: threshold, maxScan: maxScan}, nil
}

// Name implements verify.Adapter.
func (p *PatternValidator) Name() string { return "pattern" }

// Description implements verify.Adapter.
func (p *PatternValidator) Description() string {
	return "matches claims against a weighted library of known misinformation and fallacy patterns"
}

// Available implements verify.Adapter.
func (p *PatternValidator) Available(context.Context) bool { return true }

// Verify implements verify.Adapter.
func (p *PatternValidator) Verify(_ context.Context, claim string, _ map[string]any) (*verify.Result, error) {
	now := time.Now()
	text := strings.TrimSpace(claim)
	if text == "" {
		return &verify.Result{
			SourceID:   p.Name(),
			Verdict:    verify.VerdictUncertain,
			Confidence: 0,
			Reasoning:  "empty claim",
			Timestamp:  now,
		}, nil
	}
	if len(text) > p.maxScan {
		text = text[:p.maxScan]
	}

	tokens := make(map[string]bool)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		tokens[tok] = true
	}

	var strength float64
	var matched []string
	for _, rule := range p.rules {
		score := rule.score(text, tokens)
		if score <= 0 {
			continue
		}
		strength += rule.weight * score
		matched = append(matched, rule.name)
	}

	if strength >= p.threshold {
		confidence := 0.55 + 0.3*strength
		if confidence > 0.95 {
			confidence = 0.95
		}
		return &verify.Result{
			SourceID:   p.Name(),
			Verdict:    verify.VerdictContradicted,
			Confidence: confidence,
			Reasoning: fmt.Sprintf("matched known misinformation patterns: %s (strength %.2f)",
				strings.Join(matched, ", "), strength),
			Details:   map[string]any{"patterns": matched, "strength": strength},
			Timestamp: now,
		}, nil
	}

	reasoning := "no known misinformation or fallacy patterns matched"
	var details map[string]any
	if len(matched) > 0 {
		reasoning = fmt.Sprintf("weak pattern signals below threshold: %s (strength %.2f)",
			strings.Join(matched, ", "), strength)
		details = map[string]any{"patterns": matched, "strength": strength}
	}
	return &verify.Result{
		SourceID:   p.Name(),
		Verdict:    verify.VerdictUncertain,
		Confidence: 0.5,
		Reasoning:  reasoning,
		Details:    details,
		Timestamp:  now,
	}, nil
}

// score rates how strongly the rule matches: 1 for a regex hit, otherwise
// the present fraction of its keywords, provided at least keywordFloor of
// them appear.
func (r compiledRule) score(text string, tokens map[string]bool) float64 {
	if r.re != nil && r.re.MatchString(text) {
		return 1
	}
	if len(r.keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range r.keywords {
		if tokens[kw] {
			hits++
		}
	}
	fraction := float64(hits) / float64(len(r.keywords))
	if fraction < keywordFloor {
		return 0
	}
	return fraction
}

// DefaultRules is the built-in misinformation and fallacy library. Callers
// can pass their own set through PatternConfig.
func DefaultRules() []PatternRule {
	return []PatternRule{
		{
			Name:    "flat-earth",
			Expr:    `(?i)\bearth\s+is\s+flat\b`,
			Weight:  1,
			Enabled: true,
		},
		{
			Name:    "vaccines-autism",
			Expr:    `(?i)\bvaccines?\s+cause[sd]?\s+autism\b`,
			Weight:  1,
			Enabled: true,
		},
		{
			Name:    "5g-covid",
			Expr:    `(?i)\b5g\b.{0,80}\b(?:covid|coronavirus)\b|\b(?:covid|coronavirus)\b.{0,80}\b5g\b`,
			Weight:  1,
			Enabled: true,
		},
		{
			Name:     "moon-landing-hoax",
			Expr:     `(?i)\bmoon\s+landings?\b.{0,40}\b(?:faked?|hoax|staged)\b`,
			Keywords: []string{"moon", "landing", "hoax"},
			Weight:   1,
			Enabled:  true,
		},
		{
			Name:     "miracle-cure",
			Keywords: []string{"miracle", "cure", "doctors", "hate"},
			Weight:   0.8,
			Enabled:  true,
		},
		{
			Name:    "appeal-to-certainty",
			Expr:    `(?i)\b(?:everyone\s+knows|nobody\s+can\s+deny|undeniable\s+fact)\b`,
			Weight:  0.5,
			Enabled: true,
		},
	}
}
