// Package clip computes clip boundary plans for splitting a video into
// fixed-length segments. Planning is pure arithmetic over a source duration;
// materializing the resulting specs into media files is the extract package's
// job.
package clip

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidInput is returned for non-positive or non-finite planner inputs.
// It is never retried.
var ErrInvalidInput = errors.New("invalid clip input")

// OriginalIndex is the sentinel Spec index meaning "the original, unsplit
// video" when the caller asks to retain it alongside the segments.
const OriginalIndex = -1

// remainderEpsilon swallows float noise in the trailing remainder so a
// duration that is an exact multiple of the clip length never produces a
// sliver clip.
const remainderEpsilon = 1e-9

// Policy selects how a trailing segment shorter than the requested clip
// length is handled.
type Policy string

const (
	// PolicyTruncate drops the remainder; coverage ends at the last full clip.
	PolicyTruncate Policy = "truncate"
	// PolicyOverlapPrevious emits one extra full-length clip ending at the
	// video's end, overlapping the tail of the previous clip.
	PolicyOverlapPrevious Policy = "overlap_previous"
	// PolicyKeepShort emits the remainder as a final short clip.
	PolicyKeepShort Policy = "keep_short"
)

// Valid reports whether p is one of the known trailing policies.
func (p Policy) Valid() bool {
	switch p {
	case PolicyTruncate, PolicyOverlapPrevious, PolicyKeepShort:
		return true
	default:
		return false
	}
}

// ParsePolicy maps a user-supplied policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown trailing policy %q", ErrInvalidInput, s)
	}
	return p, nil
}

// Asset is a reference to a source video: an opaque byte source (file path
// or URL) and its duration in seconds. Immutable once handed to the planner.
type Asset struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"`
}

// Spec is one planned output segment. Times are in seconds from the start of
// the source. Index is the 0-based ordinal, or OriginalIndex for the unsplit
// source. SourceDuration carries the originating asset's duration for
// traceability. Specs are never mutated after planning.
type Spec struct {
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
	Index          int     `json:"index"`
	SourceDuration float64 `json:"source_duration"`
}

// Duration returns the planned segment length in seconds.
func (s Spec) Duration() float64 {
	return s.EndTime - s.StartTime
}

// IsOriginal reports whether the Spec stands for the unsplit source video.
func (s Spec) IsOriginal() bool {
	return s.Index == OriginalIndex
}

// Plan splits a video of the given duration into clips of clipLength seconds,
// contiguous from time zero, and resolves the trailing partial segment
// according to policy. When includeOriginal is set, one extra Spec with
// Index == OriginalIndex spanning the whole duration is appended regardless
// of policy.
//
// When clipLength exceeds duration no full clip fits: PolicyTruncate returns
// zero clips (plus the original if requested), while PolicyOverlapPrevious
// and PolicyKeepShort degrade to a single clip covering the whole duration.
// That case is not an error; only non-positive or non-finite inputs fail.
func Plan(duration, clipLength float64, policy Policy, includeOriginal bool) ([]Spec, error) {
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be a positive number of seconds, got %v", ErrInvalidInput, duration)
	}
	if math.IsNaN(clipLength) || math.IsInf(clipLength, 0) || clipLength <= 0 {
		return nil, fmt.Errorf("%w: clip length must be a positive number of seconds, got %v", ErrInvalidInput, clipLength)
	}
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: unknown trailing policy %q", ErrInvalidInput, string(policy))
	}

	n := int(math.Floor(duration / clipLength))
	r := duration - float64(n)*clipLength
	if r < remainderEpsilon {
		r = 0
	}

	specs := make([]Spec, 0, n+2)
	for i := 0; i < n; i++ {
		specs = append(specs, Spec{
			StartTime:      float64(i) * clipLength,
			EndTime:        float64(i+1) * clipLength,
			Index:          i,
			SourceDuration: duration,
		})
	}

	switch {
	case n == 0:
		// clipLength > duration. Truncation keeps nothing; the other
		// policies collapse to a single clip over the whole source.
		if policy != PolicyTruncate {
			specs = append(specs, Spec{
				StartTime:      0,
				EndTime:        duration,
				Index:          0,
				SourceDuration: duration,
			})
		}
	case r > 0:
		switch policy {
		case PolicyTruncate:
			// Tail dropped; coverage ends at n*clipLength.
		case PolicyOverlapPrevious:
			specs = append(specs, Spec{
				StartTime:      duration - clipLength,
				EndTime:        duration,
				Index:          n,
				SourceDuration: duration,
			})
		case PolicyKeepShort:
			specs = append(specs, Spec{
				StartTime:      float64(n) * clipLength,
				EndTime:        duration,
				Index:          n,
				SourceDuration: duration,
			})
		}
	}

	if includeOriginal {
		specs = append(specs, Spec{
			StartTime:      0,
			EndTime:        duration,
			Index:          OriginalIndex,
			SourceDuration: duration,
		})
	}

	return specs, nil
}

// PlanAsset is Plan applied to an Asset's recorded duration.
func PlanAsset(a Asset, clipLength float64, policy Policy, includeOriginal bool) ([]Spec, error) {
	return Plan(a.Duration, clipLength, policy, includeOriginal)
}
