// Package validators holds the built-in verification adapters that ship
// with the engine. Both are stateless, perform no network or disk I/O, and
// bound their own work so a huge claim cannot stall a dispatch slot.
package validators

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dusk-indust/verity/internal/verify"
)

// clauseSplitRe separates a claim into clauses at punctuation and common
// conjunctions so each assertion can be parsed on its own.
var clauseSplitRe = regexp.MustCompile(`(?i)[,;.!?]+|\b(?:but|and|yet|however|whereas|while|although|though)\b`)

// assertionRe matches copula assertions: "<subject> is [not] <predicate>".
// The subject may be empty when a clause continues the previous one
// ("the earth is flat and is not flat").
var assertionRe = regexp.MustCompile(`(?i)^\s*(.*?)\s*\b(is|are|was|were)\b\s+((?:not|never)\s+)?(.+?)\s*$`)

// articleRe strips leading articles and demonstratives from a phrase.
var articleRe = regexp.MustCompile(`(?i)^(?:the|a|an|this|that|these|those|my|our|its)\s+`)

// intensifierRe strips leading intensifiers so "very hot" and "hot" compare
// equal.
var intensifierRe = regexp.MustCompile(`(?i)^(?:very|really|quite|extremely|totally|completely|absolutely|simply)\s+`)

// tokenRe extracts lowercase word tokens for the whole-claim antonym scan.
var tokenRe = regexp.MustCompile(`[a-z0-9']+`)

// defaultAntonyms is the built-in library of opposing predicate pairs.
// Each pair is registered in both directions at construction.
var defaultAntonyms = [][2]string{
	{"hot", "cold"},
	{"true", "false"},
	{"alive", "dead"},
	{"open", "closed"},
	{"full", "empty"},
	{"always", "never"},
	{"possible", "impossible"},
	{"safe", "dangerous"},
	{"legal", "illegal"},
	{"wet", "dry"},
	{"rising", "falling"},
	{"increasing", "decreasing"},
	{"flat", "round"},
	{"finite", "infinite"},
	{"up", "down"},
}

// defaultMaxScanBytes caps how much of a claim the validators read. The
// budget keeps runtime flat no matter what callers submit.
const defaultMaxScanBytes = 8 << 10

// ContradictionConfig tunes the detector. The zero value gives the
// built-in antonym library and the default scan cap.
type ContradictionConfig struct {
	// AntonymPairs extends the built-in library.
	AntonymPairs [][2]string
	// MaxScanBytes overrides the input cap. Zero means the default.
	MaxScanBytes int
}

// Contradiction detects internal contradictions within a single claim:
// the same subject asserted with opposite polarity, or asserted with two
// predicates from the antonym library. It never returns an error; absence
// of a contradiction is reported as a low-confidence uncertain, since not
// finding a conflict is not evidence the claim is true.
type Contradiction struct {
	antonyms map[string]string
	maxScan  int
}

var _ verify.Adapter = (*Contradiction)(nil)

// NewContradiction builds a detector from cfg.
func NewContradiction(cfg ContradictionConfig) *Contradiction {
	antonyms := make(map[string]string, 2*(len(defaultAntonyms)+len(cfg.AntonymPairs)))
	for _, pair := range defaultAntonyms {
		antonyms[pair[0]] = pair[1]
		antonyms[pair[1]] = pair[0]
	}
	for _, pair := range cfg.AntonymPairs {
		a := strings.ToLower(strings.TrimSpace(pair[0]))
		b := strings.ToLower(strings.TrimSpace(pair[1]))
		if a == "" || b == "" {
			continue
		}
		antonyms[a] = b
		antonyms[b] = a
	}
	maxScan := cfg.MaxScanBytes
	if maxScan <= 0 {
		maxScan = defaultMaxScanBytes
	}
	return &Contradiction{antonyms: antonyms, maxScan: maxScan}
}

// Name implements verify.Adapter.
func (c *Contradiction) Name() string { return "contradiction" }

// Description implements verify.Adapter.
func (c *Contradiction) Description() string {
	return "detects opposite-polarity and antonym assertions within a claim"
}

// Available implements verify.Adapter. The detector has no dependencies,
// so it is always available.
func (c *Contradiction) Available(context.Context) bool { return true }

// Verify implements verify.Adapter.
func (c *Contradiction) Verify(_ context.Context, claim string, _ map[string]any) (*verify.Result, error) {
	now := time.Now()
	text := strings.TrimSpace(claim)
	if text == "" {
		return &verify.Result{
			SourceID:   c.Name(),
			Verdict:    verify.VerdictUncertain,
			Confidence: 0,
			Reasoning:  "empty claim",
			Timestamp:  now,
		}, nil
	}
	if len(text) > c.maxScan {
		text = text[:c.maxScan]
	}

	assertions := parseAssertions(text)

	// Same subject and predicate asserted with both polarities.
	if a, ok := findPolarityConflict(assertions); ok {
		return &verify.Result{
			SourceID:   c.Name(),
			Verdict:    verify.VerdictContradicted,
			Confidence: 0.9,
			Reasoning: fmt.Sprintf("claim asserts both %q and its negation about %q",
				a.predicate, a.subject),
			Details:   map[string]any{"subject": a.subject, "predicate": a.predicate},
			Timestamp: now,
		}, nil
	}

	// Same subject positively asserted with two opposing predicates.
	if a, other, ok := c.findAntonymConflict(assertions); ok {
		return &verify.Result{
			SourceID:   c.Name(),
			Verdict:    verify.VerdictContradicted,
			Confidence: 0.85,
			Reasoning: fmt.Sprintf("claim asserts both %q and %q about %q",
				a.predicate, other, a.subject),
			Details:   map[string]any{"subject": a.subject, "pair": a.predicate + "/" + other},
			Timestamp: now,
		}, nil
	}

	// Both halves of an antonym pair appear without binding to one
	// subject: a partial signal only.
	if a, b, ok := c.findAntonymMention(text); ok {
		return &verify.Result{
			SourceID:   c.Name(),
			Verdict:    verify.VerdictUncertain,
			Confidence: 0.55,
			Reasoning:  fmt.Sprintf("claim mentions opposing terms %q and %q without a clear shared subject", a, b),
			Details:    map[string]any{"pair": a + "/" + b},
			Timestamp:  now,
		}, nil
	}

	return &verify.Result{
		SourceID:   c.Name(),
		Verdict:    verify.VerdictUncertain,
		Confidence: 0.2,
		Reasoning:  "no contradiction patterns found",
		Timestamp:  now,
	}, nil
}

// assertion is one parsed copula statement.
type assertion struct {
	subject   string
	predicate string
	positive  bool
}

// parseAssertions splits the text into clauses and parses each copula
// assertion. A clause without its own subject inherits the previous one.
func parseAssertions(text string) []assertion {
	var out []assertion
	lastSubject := ""
	for _, clause := range clauseSplitRe.Split(text, -1) {
		m := assertionRe.FindStringSubmatch(clause)
		if m == nil {
			continue
		}
		subject := normalizePhrase(m[1])
		if subject == "" {
			subject = lastSubject
		}
		if subject == "" {
			continue
		}
		lastSubject = subject

		predicate := normalizePhrase(m[4])
		if predicate == "" {
			continue
		}
		out = append(out, assertion{
			subject:   subject,
			predicate: predicate,
			positive:  strings.TrimSpace(m[3]) == "",
		})
	}
	return out
}

// normalizePhrase lowercases a phrase and strips articles, intensifiers,
// and surrounding noise so equivalent mentions compare equal.
func normalizePhrase(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for {
		trimmed := articleRe.ReplaceAllString(s, "")
		trimmed = intensifierRe.ReplaceAllString(trimmed, "")
		if trimmed == s {
			break
		}
		s = trimmed
	}
	return strings.Join(strings.Fields(s), " ")
}

// findPolarityConflict reports a subject+predicate asserted both
// positively and negatively.
func findPolarityConflict(assertions []assertion) (assertion, bool) {
	type polarity struct{ pos, neg bool }
	seen := make(map[string]*polarity, len(assertions))
	for _, a := range assertions {
		key := a.subject + "\x00" + a.predicate
		p := seen[key]
		if p == nil {
			p = &polarity{}
			seen[key] = p
		}
		if a.positive {
			p.pos = true
		} else {
			p.neg = true
		}
		if p.pos && p.neg {
			return a, true
		}
	}
	return assertion{}, false
}

// findAntonymConflict reports a subject positively bound to two opposing
// predicates. Only the head word of each predicate is looked up, so
// "boiling hot" still pairs with "cold".
func (c *Contradiction) findAntonymConflict(assertions []assertion) (assertion, string, bool) {
	bySubject := make(map[string]map[string]assertion)
	for _, a := range assertions {
		if !a.positive {
			continue
		}
		head := headWord(a.predicate)
		if head == "" {
			continue
		}
		preds := bySubject[a.subject]
		if preds == nil {
			preds = make(map[string]assertion)
			bySubject[a.subject] = preds
		}
		preds[head] = a

		if other, ok := c.antonyms[head]; ok {
			if prior, ok := preds[other]; ok {
				return prior, head, true
			}
		}
	}
	return assertion{}, "", false
}

// findAntonymMention scans the whole claim for both halves of any antonym
// pair.
func (c *Contradiction) findAntonymMention(text string) (string, string, bool) {
	tokens := make(map[string]bool)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		tokens[tok] = true
	}
	for tok := range tokens {
		if other, ok := c.antonyms[tok]; ok && tokens[other] {
			// Deterministic pair ordering for the reasoning text.
			if tok < other {
				return tok, other, true
			}
			return other, tok, true
		}
	}
	return "", "", false
}

// headWord returns the first token of a normalized phrase.
func headWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
