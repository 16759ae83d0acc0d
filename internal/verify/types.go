// Package verify defines the core domain types shared by every part of the
// verification engine: the verdict vocabulary, per-source results, the
// aggregated outcome, and the adapter contract.
package verify

import (
	"math"
	"time"
)

// --- Enums ---

// Verdict classifies the outcome of verifying a claim.
type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictContradicted Verdict = "contradicted"
	VerdictUncertain    Verdict = "uncertain"
)

// Valid reports whether v is one of the recognized verdicts.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictVerified, VerdictContradicted, VerdictUncertain:
		return true
	}
	return false
}

// --- Core Types ---

// Result is a single source's judgment on a claim.
type Result struct {
	SourceID   string         `json:"sourceId"`
	Verdict    Verdict        `json:"verdict"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Sanitize returns a copy of r safe to aggregate: confidence clamped to
// [0, 1] (NaN treated as 0), unrecognized verdicts replaced by
// VerdictUncertain, and empty SourceID / zero Timestamp filled from the
// given fallbacks. Adapters are not trusted to stay in range.
func (r Result) Sanitize(sourceID string, now time.Time) Result {
	if r.SourceID == "" {
		r.SourceID = sourceID
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	if !r.Verdict.Valid() {
		r.Verdict = VerdictUncertain
	}
	switch {
	case math.IsNaN(r.Confidence), r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	return r
}

// Aggregated is the combined judgment assembled from every source that
// contributed to a verification request.
type Aggregated struct {
	RequestID         string        `json:"requestId"`
	Claim             string        `json:"claim"`
	Overall           Verdict       `json:"overall"`
	Confidence        float64       `json:"confidence"`
	Sources           []Result      `json:"sources,omitempty"`
	CombinedReasoning string        `json:"combinedReasoning,omitempty"`
	Strategy          string        `json:"strategy,omitempty"`
	ProcessingTime    time.Duration `json:"processingTime"`
	Partial           bool          `json:"partial"`
	Unavailable       []string      `json:"unavailable,omitempty"`
	FromCache         bool          `json:"fromCache"`
}

// Clone returns a deep copy: the Sources slice, each result's Details
// map, and the Unavailable slice are all fresh, so mutating the copy can
// never corrupt a stored or shared original.
func (a *Aggregated) Clone() *Aggregated {
	cp := *a
	if a.Sources != nil {
		cp.Sources = make([]Result, len(a.Sources))
		copy(cp.Sources, a.Sources)
		for i, r := range cp.Sources {
			if r.Details == nil {
				continue
			}
			details := make(map[string]any, len(r.Details))
			for k, v := range r.Details {
				details[k] = v
			}
			cp.Sources[i].Details = details
		}
	}
	cp.Unavailable = append([]string(nil), a.Unavailable...)
	return &cp
}

// AsCacheHit returns a deep copy flagged as served from cache. The stored
// entry stays untouched no matter what the caller does with the copy.
func (a *Aggregated) AsCacheHit() *Aggregated {
	cp := a.Clone()
	cp.FromCache = true
	return cp
}
