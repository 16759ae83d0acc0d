// Package aggregate combines per-source verification results into a single
// verdict and confidence under a configurable strategy. Everything here is
// pure: no I/O, no shared state, and deterministic output for a given
// input set regardless of the order results arrived in.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/verity/internal/verify"
)

// Strategy selects how per-source results combine into one verdict.
type Strategy string

const (
	// StrategyWeightedAverage blends confidences by normalized adapter
	// weight and picks the verdict with the largest confidence-weighted
	// vote total.
	StrategyWeightedAverage Strategy = "weighted-average"
	// StrategyMajorityVote picks the most frequent verdict; confidence is
	// the fraction of sources that voted for it.
	StrategyMajorityVote Strategy = "majority-vote"
	// StrategyPessimistic adopts the lowest-confidence result wholesale.
	StrategyPessimistic Strategy = "pessimistic"
	// StrategyOptimistic adopts the highest-confidence result wholesale.
	StrategyOptimistic Strategy = "optimistic"
)

// DefaultStrategy is used when a caller or config expresses no preference.
const DefaultStrategy = StrategyWeightedAverage

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyWeightedAverage, StrategyMajorityVote, StrategyPessimistic, StrategyOptimistic:
		return true
	}
	return false
}

// Parse maps a config or CLI string to a Strategy. The empty string means
// DefaultStrategy; anything unrecognized is an ErrInvalidConfiguration.
func Parse(s string) (Strategy, error) {
	v := Strategy(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return DefaultStrategy, nil
	}
	if !v.Valid() {
		return "", fmt.Errorf("%w: unknown aggregation strategy %q", verify.ErrInvalidConfiguration, s)
	}
	return v, nil
}

// Input carries everything Combine needs. Results are expected to be
// sanitized (verdicts valid, confidences in [0, 1]); Weights is keyed by
// SourceID and missing or non-positive entries count as weight 1.
type Input struct {
	Claim       string
	Strategy    Strategy
	Results     []verify.Result
	Weights     map[string]float64
	Unavailable []string
}

// Combine aggregates the settled results into one verdict. Ties at every
// decision point resolve through the canonical result order — confidence
// descending, then SourceID ascending — so the outcome is deterministic
// even when sources disagree at identical confidence. An empty result set
// degrades to uncertain at confidence 0; it is never an error.
func Combine(in Input) *verify.Aggregated {
	strategy := in.Strategy
	if !strategy.Valid() {
		strategy = DefaultStrategy
	}

	results := make([]verify.Result, len(in.Results))
	copy(results, in.Results)
	sortCanonical(results)

	unavailable := append([]string(nil), in.Unavailable...)
	sort.Strings(unavailable)

	agg := &verify.Aggregated{
		Claim:       in.Claim,
		Strategy:    string(strategy),
		Sources:     results,
		Partial:     len(unavailable) > 0,
		Unavailable: unavailable,
	}

	if len(results) == 0 {
		agg.Overall = verify.VerdictUncertain
		agg.Confidence = 0
		agg.CombinedReasoning = emptyReasoning(unavailable)
		return agg
	}

	switch strategy {
	case StrategyMajorityVote:
		agg.Overall, agg.Confidence = majorityVote(results)
	case StrategyPessimistic:
		agg.Overall, agg.Confidence = extremum(results, false)
	case StrategyOptimistic:
		agg.Overall, agg.Confidence = extremum(results, true)
	default:
		agg.Overall, agg.Confidence = weightedAverage(results, in.Weights)
	}
	agg.CombinedReasoning = reasoning(results, unavailable, agg.Overall, strategy, agg.Confidence)
	return agg
}

// sortCanonical orders results confidence-descending with SourceID
// ascending as the tie break. Every strategy and the reasoning text rely
// on this order.
func sortCanonical(rs []verify.Result) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Confidence != rs[j].Confidence {
			return rs[i].Confidence > rs[j].Confidence
		}
		return rs[i].SourceID < rs[j].SourceID
	})
}

// verdictOrder fixes the iteration order over vote maps so float ties
// cannot flip the winner between runs.
var verdictOrder = []verify.Verdict{
	verify.VerdictVerified,
	verify.VerdictContradicted,
	verify.VerdictUncertain,
}

const voteEpsilon = 1e-9

// weightedAverage normalizes the weights of the contributing sources to
// sum to 1, blends confidences, and picks the verdict with the largest
// confidence-weighted vote total.
func weightedAverage(sorted []verify.Result, weights map[string]float64) (verify.Verdict, float64) {
	var total float64
	for _, r := range sorted {
		total += weightOf(weights, r.SourceID)
	}

	votes := make(map[verify.Verdict]float64, 3)
	var confidence float64
	for _, r := range sorted {
		w := weightOf(weights, r.SourceID) / total
		confidence += r.Confidence * w
		votes[r.Verdict] += r.Confidence * w
	}

	var best float64
	for _, v := range verdictOrder {
		if votes[v] > best {
			best = votes[v]
		}
	}
	// Vote ties resolve through the canonical order: the first result
	// whose verdict carries a leading vote total decides.
	for _, r := range sorted {
		if votes[r.Verdict] >= best-voteEpsilon {
			return r.Verdict, confidence
		}
	}
	return sorted[0].Verdict, confidence
}

// weightOf treats missing or non-positive weights as an equal share of 1.
func weightOf(weights map[string]float64, sourceID string) float64 {
	if w, ok := weights[sourceID]; ok && w > 0 {
		return w
	}
	return 1
}

// majorityVote picks the most frequent verdict; its confidence is the
// agreeing fraction of all sources. Count ties resolve through the
// canonical order: the first result whose verdict holds a leading count
// decides, even when the single most confident result voted for a verdict
// that is not among the leaders.
func majorityVote(sorted []verify.Result) (verify.Verdict, float64) {
	counts := make(map[verify.Verdict]int, 3)
	for _, r := range sorted {
		counts[r.Verdict]++
	}

	best := 0
	for _, v := range verdictOrder {
		if counts[v] > best {
			best = counts[v]
		}
	}
	for _, r := range sorted {
		if counts[r.Verdict] == best {
			return r.Verdict, float64(best) / float64(len(sorted))
		}
	}
	return sorted[0].Verdict, float64(counts[sorted[0].Verdict]) / float64(len(sorted))
}

// extremum adopts the single highest- or lowest-confidence result. When
// several results share the extreme confidence, the one earliest in
// canonical order supplies the verdict.
func extremum(sorted []verify.Result, max bool) (verify.Verdict, float64) {
	if max {
		return sorted[0].Verdict, sorted[0].Confidence
	}
	min := sorted[len(sorted)-1].Confidence
	for _, r := range sorted {
		if r.Confidence == min {
			return r.Verdict, min
		}
	}
	return sorted[len(sorted)-1].Verdict, min
}

// reasoning renders the combined explanation from the canonical order:
// the agreement summary first, one clause per source, then the
// unavailable list.
func reasoning(sorted []verify.Result, unavailable []string, overall verify.Verdict, strategy Strategy, confidence float64) string {
	agree := 0
	for _, r := range sorted {
		if r.Verdict == overall {
			agree++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d sources support %s (%s confidence %.2f).", agree, len(sorted), overall, strategy, confidence)
	for _, r := range sorted {
		fmt.Fprintf(&b, " %s reported %s at %.2f", r.SourceID, r.Verdict, r.Confidence)
		if r.Reasoning != "" {
			fmt.Fprintf(&b, ": %s", clip(r.Reasoning, 160))
		}
		b.WriteString(".")
	}
	if len(unavailable) > 0 {
		fmt.Fprintf(&b, " Unavailable: %s.", strings.Join(unavailable, ", "))
	}
	return b.String()
}

func emptyReasoning(unavailable []string) string {
	if len(unavailable) == 0 {
		return "no sources responded"
	}
	return "no sources responded; unavailable: " + strings.Join(unavailable, ", ")
}

// clip bounds a source's reasoning contribution so one chatty adapter
// cannot balloon the combined text.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
