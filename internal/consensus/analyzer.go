// Package consensus classifies how far a set of model answers for one image
// agree with each other.
package consensus

import (
	"strings"
	"unicode/utf8"
)

// Status classifies one answer's agreement with the other answers for the
// same image.
type Status string

const (
	// StatusConsensus means the answer agrees with every successful answer.
	StatusConsensus Status = "consensus"
	// StatusPartial means the answer agrees with some but not all.
	StatusPartial Status = "partial"
	// StatusDifferent means the answer agrees with no other successful answer.
	StatusDifferent Status = "different"
	// StatusError means the model call itself failed; the answer is never
	// compared for similarity.
	StatusError Status = "error"
)

// Answer is the result of one model evaluating one image.
type Answer struct {
	Model        string `json:"model"`
	Text         string `json:"text,omitempty"`
	OK           bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`

	// Status and Matches are assigned by Analyze only.
	Status  Status `json:"status,omitempty"`
	Matches int    `json:"match_count,omitempty"`

	// Unresolved marks an answer recovered through the whole-response
	// demultiplexing fallback: the text may belong to a different image.
	Unresolved bool `json:"unresolved,omitempty"`
}

const (
	// shortAnswerMax is the length at or below which answers are treated as
	// categorical (single letters, short numbers) and must match exactly.
	shortAnswerMax = 5

	// overlapThreshold is the word-overlap ratio two longer answers must
	// exceed to count as equivalent.
	overlapThreshold = 0.8
)

// Analyze assigns Status and Matches to every answer.
//
// Failed answers are tagged StatusError and excluded from comparison. When no
// answer succeeded, every entry comes back StatusError. Otherwise each
// successful answer's match count is the number of successful answers (itself
// included) judged equivalent to it.
//
// Output order contract: successful answers first, failed answers appended
// after, each group in input-relative order. Callers key off Model, not
// position. Analyze is a pure function of the (Text, OK) pairs; re-running it
// on its own output yields identical results.
func Analyze(answers []Answer) []Answer {
	ok := make([]Answer, 0, len(answers))
	failed := make([]Answer, 0)
	for _, a := range answers {
		if a.OK {
			ok = append(ok, a)
		} else {
			a.Status = StatusError
			a.Matches = 0
			failed = append(failed, a)
		}
	}

	if len(ok) == 0 {
		return failed
	}

	norm := make([]string, len(ok))
	for i, a := range ok {
		norm[i] = normalize(a.Text)
	}

	out := make([]Answer, 0, len(answers))
	for i := range ok {
		matches := 0
		for j := range ok {
			if equivalent(norm[i], norm[j]) {
				matches++
			}
		}

		a := ok[i]
		a.Matches = matches
		switch {
		case matches == len(ok):
			a.Status = StatusConsensus
		case matches > 1:
			a.Status = StatusPartial
		default:
			a.Status = StatusDifferent
		}
		out = append(out, a)
	}

	return append(out, failed...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// equivalent compares two normalized answers. Short answers (both at most
// shortAnswerMax characters) must match exactly; anything longer is compared
// by word overlap. A mixed pair (one short, one long) falls into the overlap
// regime.
func equivalent(a, b string) bool {
	if a == b {
		return true
	}
	if utf8.RuneCountInString(a) <= shortAnswerMax && utf8.RuneCountInString(b) <= shortAnswerMax {
		return false
	}
	return overlap(a, b) > overlapThreshold
}

// overlap is the ratio of distinct shared words to the larger answer's word
// count. Counting is set-based: a word repeated in either answer contributes
// to the numerator once.
func overlap(a, b string) float64 {
	aw := strings.Fields(a)
	bw := strings.Fields(b)
	if len(aw) == 0 || len(bw) == 0 {
		return 0
	}

	inA := make(map[string]bool, len(aw))
	for _, w := range aw {
		inA[w] = true
	}

	shared := 0
	counted := make(map[string]bool)
	for _, w := range bw {
		if inA[w] && !counted[w] {
			shared++
			counted[w] = true
		}
	}

	denom := len(aw)
	if len(bw) > denom {
		denom = len(bw)
	}
	return float64(shared) / float64(denom)
}
