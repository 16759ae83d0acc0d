package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/verity/internal/verify"
)

func res(id string, v verify.Verdict, confidence float64) verify.Result {
	return verify.Result{SourceID: id, Verdict: v, Confidence: confidence}
}

func TestCombine_WeightedAverage_EqualWeights(t *testing.T) {
	// Two sources at equal weight: 0.9 and 0.8 must land on 0.85 exactly.
	out := Combine(Input{
		Claim:    "Water boils at 100°C at sea level",
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("wiki-check", verify.VerdictVerified, 0.9),
			res("db-check", verify.VerdictVerified, 0.8),
		},
		Weights: map[string]float64{"wiki-check": 0.5, "db-check": 0.5},
	})

	assert.Equal(t, verify.VerdictVerified, out.Overall)
	assert.InDelta(t, 0.85, out.Confidence, 1e-9)
	assert.False(t, out.Partial)
	assert.Empty(t, out.Unavailable)
}

func TestCombine_WeightedAverage_UnequalWeights(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("heavy", verify.VerdictVerified, 0.9),
			res("light", verify.VerdictVerified, 0.8),
		},
		Weights: map[string]float64{"heavy": 3, "light": 1},
	})

	// 0.9*(3/4) + 0.8*(1/4)
	assert.InDelta(t, 0.875, out.Confidence, 1e-9)
}

func TestCombine_WeightedAverage_NormalizesOverContributorsOnly(t *testing.T) {
	// A huge weight configured for a source that produced nothing must not
	// dilute the contributors.
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("a", verify.VerdictVerified, 0.6),
			res("b", verify.VerdictVerified, 0.6),
		},
		Weights:     map[string]float64{"a": 1, "b": 1, "silent": 50},
		Unavailable: []string{"silent"},
	})

	assert.InDelta(t, 0.6, out.Confidence, 1e-9)
	assert.True(t, out.Partial)
}

func TestCombine_WeightedAverage_IdenticalConfidencesYieldThatConfidence(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("a", verify.VerdictVerified, 0.7),
			res("b", verify.VerdictUncertain, 0.7),
			res("c", verify.VerdictVerified, 0.7),
		},
	})

	assert.InEpsilon(t, 0.7, out.Confidence, 1e-12)
}

func TestCombine_WeightedAverage_VerdictByVoteTotalsNotHeadcount(t *testing.T) {
	// One confident verified source outvotes two timid contradicted ones:
	// votes are confidence-weighted, not counted.
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("bold", verify.VerdictVerified, 0.9),
			res("meek-1", verify.VerdictContradicted, 0.2),
			res("meek-2", verify.VerdictContradicted, 0.3),
		},
	})

	assert.Equal(t, verify.VerdictVerified, out.Overall)
	assert.InDelta(t, (0.9+0.2+0.3)/3, out.Confidence, 1e-9)
}

func TestCombine_WeightedAverage_MissingWeightCountsAsOne(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("configured", verify.VerdictVerified, 1.0),
			res("unconfigured", verify.VerdictVerified, 0.5),
		},
		Weights: map[string]float64{"configured": 1},
	})

	assert.InDelta(t, 0.75, out.Confidence, 1e-9)
}

func TestCombine_MajorityVote_MostFrequentVerdictWins(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyMajorityVote,
		Results: []verify.Result{
			res("a", verify.VerdictVerified, 0.6),
			res("b", verify.VerdictVerified, 0.5),
			res("c", verify.VerdictContradicted, 0.99),
		},
	})

	assert.Equal(t, verify.VerdictVerified, out.Overall)
	assert.InDelta(t, 2.0/3.0, out.Confidence, 1e-9)
}

func TestCombine_MajorityVote_TieBrokenByHighestConfidence(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyMajorityVote,
		Results: []verify.Result{
			res("a", verify.VerdictVerified, 0.7),
			res("b", verify.VerdictContradicted, 0.9),
		},
	})

	assert.Equal(t, verify.VerdictContradicted, out.Overall)
	assert.InDelta(t, 0.5, out.Confidence, 1e-9)
}

func TestCombine_MajorityVote_EqualConfidenceTieBrokenBySourceID(t *testing.T) {
	// Both verdicts hold one vote at identical confidence. The canonical
	// order (confidence desc, then SourceID asc) decides: "alpha" sorts
	// before "beta", so its verdict wins.
	in := Input{
		Strategy: StrategyMajorityVote,
		Results: []verify.Result{
			res("beta", verify.VerdictContradicted, 0.9),
			res("alpha", verify.VerdictVerified, 0.9),
		},
	}

	out := Combine(in)
	assert.Equal(t, verify.VerdictVerified, out.Overall)
	assert.InDelta(t, 0.5, out.Confidence, 1e-9)

	// Input order must not matter.
	in.Results[0], in.Results[1] = in.Results[1], in.Results[0]
	again := Combine(in)
	assert.Equal(t, out.Overall, again.Overall)
	assert.Equal(t, out.CombinedReasoning, again.CombinedReasoning)
}

func TestCombine_MajorityVote_CountTieWithOutvotedTopResult(t *testing.T) {
	// Verified and contradicted tie at two votes each while the single
	// most confident source voted uncertain. The uncertain result cannot
	// win with one vote; among the tied leaders, the first in canonical
	// order — contradicted at 0.8 — decides.
	out := Combine(Input{
		Strategy: StrategyMajorityVote,
		Results: []verify.Result{
			res("lonely", verify.VerdictUncertain, 0.9),
			res("c-strong", verify.VerdictContradicted, 0.8),
			res("v-strong", verify.VerdictVerified, 0.7),
			res("c-weak", verify.VerdictContradicted, 0.6),
			res("v-weak", verify.VerdictVerified, 0.5),
		},
	})

	assert.Equal(t, verify.VerdictContradicted, out.Overall)
	assert.InDelta(t, 2.0/5.0, out.Confidence, 1e-9)
}

func TestCombine_WeightedAverage_VoteTieWithOutvotedTopResult(t *testing.T) {
	// The lightly weighted uncertain source holds the highest single
	// confidence but the smallest vote total, while verified and
	// contradicted tie exactly. Among the tied leaders the first in
	// canonical order — "c-one" at 0.8, which sorts before "v-one" at
	// the same confidence — decides.
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("lonely", verify.VerdictUncertain, 0.9),
			res("c-one", verify.VerdictContradicted, 0.8),
			res("v-one", verify.VerdictVerified, 0.8),
		},
		Weights: map[string]float64{"lonely": 0.2, "c-one": 1, "v-one": 1},
	})

	assert.Equal(t, verify.VerdictContradicted, out.Overall)
	assert.InDelta(t, (0.2*0.9+0.8+0.8)/2.2, out.Confidence, 1e-9)
}

func TestCombine_Pessimistic_AdoptsMinimum(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyPessimistic,
		Results: []verify.Result{
			res("sure", verify.VerdictVerified, 0.9),
			res("unsure", verify.VerdictUncertain, 0.2),
		},
	})

	assert.Equal(t, verify.VerdictUncertain, out.Overall)
	assert.InDelta(t, 0.2, out.Confidence, 1e-9)
}

func TestCombine_Pessimistic_MinimumTieBrokenBySourceID(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyPessimistic,
		Results: []verify.Result{
			res("zeta", verify.VerdictVerified, 0.3),
			res("alpha", verify.VerdictContradicted, 0.3),
		},
	})

	assert.Equal(t, verify.VerdictContradicted, out.Overall, "alpha sorts first among the minima")
}

func TestCombine_Optimistic_AdoptsMaximum(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyOptimistic,
		Results: []verify.Result{
			res("sure", verify.VerdictVerified, 0.95),
			res("unsure", verify.VerdictUncertain, 0.4),
		},
	})

	assert.Equal(t, verify.VerdictVerified, out.Overall)
	assert.InDelta(t, 0.95, out.Confidence, 1e-9)
}

func TestCombine_EmptyResults_DegradesToUncertain(t *testing.T) {
	out := Combine(Input{Claim: "anything", Strategy: StrategyWeightedAverage})

	assert.Equal(t, verify.VerdictUncertain, out.Overall)
	assert.Zero(t, out.Confidence)
	assert.Equal(t, "no sources responded", out.CombinedReasoning)
	assert.False(t, out.Partial)
}

func TestCombine_EmptyResultsWithUnavailable_ListsThem(t *testing.T) {
	out := Combine(Input{
		Strategy:    StrategyWeightedAverage,
		Unavailable: []string{"zeta", "alpha"},
	})

	assert.Equal(t, verify.VerdictUncertain, out.Overall)
	assert.True(t, out.Partial)
	assert.Equal(t, []string{"alpha", "zeta"}, out.Unavailable, "unavailable list is sorted")
	assert.Contains(t, out.CombinedReasoning, "alpha, zeta")
}

func TestCombine_SourcesSortedCanonically(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			res("mid", verify.VerdictVerified, 0.5),
			res("top", verify.VerdictVerified, 0.9),
			res("b-equal", verify.VerdictVerified, 0.5),
			res("a-equal", verify.VerdictVerified, 0.5),
		},
	})

	require.Len(t, out.Sources, 4)
	assert.Equal(t, "top", out.Sources[0].SourceID)
	assert.Equal(t, "a-equal", out.Sources[1].SourceID)
	assert.Equal(t, "b-equal", out.Sources[2].SourceID)
	assert.Equal(t, "mid", out.Sources[3].SourceID)
}

func TestCombine_DoesNotMutateInput(t *testing.T) {
	results := []verify.Result{
		res("low", verify.VerdictVerified, 0.1),
		res("high", verify.VerdictVerified, 0.9),
	}

	_ = Combine(Input{Strategy: StrategyWeightedAverage, Results: results})

	assert.Equal(t, "low", results[0].SourceID, "caller's slice keeps its order")
}

func TestCombine_ReasoningCitesAgreementAndSources(t *testing.T) {
	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			{SourceID: "wiki", Verdict: verify.VerdictVerified, Confidence: 0.9, Reasoning: "matches article"},
			{SourceID: "db", Verdict: verify.VerdictUncertain, Confidence: 0.4},
		},
		Unavailable: []string{"llm"},
	})

	assert.Contains(t, out.CombinedReasoning, "1 of 2 sources support verified")
	assert.Contains(t, out.CombinedReasoning, "wiki reported verified at 0.90: matches article")
	assert.Contains(t, out.CombinedReasoning, "db reported uncertain at 0.40")
	assert.Contains(t, out.CombinedReasoning, "Unavailable: llm.")
}

func TestCombine_ClipsRunawaySourceReasoning(t *testing.T) {
	long := make([]rune, 2000)
	for i := range long {
		long[i] = 'x'
	}

	out := Combine(Input{
		Strategy: StrategyWeightedAverage,
		Results: []verify.Result{
			{SourceID: "chatty", Verdict: verify.VerdictVerified, Confidence: 0.9, Reasoning: string(long)},
		},
	})

	assert.Less(t, len(out.CombinedReasoning), 400)
	assert.Contains(t, out.CombinedReasoning, "...")
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", DefaultStrategy, false},
		{"weighted-average", StrategyWeightedAverage, false},
		{"MAJORITY-VOTE", StrategyMajorityVote, false},
		{"  pessimistic  ", StrategyPessimistic, false},
		{"optimistic", StrategyOptimistic, false},
		{"quorum", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, verify.ErrInvalidConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombine_UnknownStrategyFallsBackToDefault(t *testing.T) {
	out := Combine(Input{
		Strategy: Strategy("quorum"),
		Results:  []verify.Result{res("a", verify.VerdictVerified, 0.8)},
	})

	assert.Equal(t, string(DefaultStrategy), out.Strategy)
	assert.Equal(t, verify.VerdictVerified, out.Overall)
}
