// Package simhash fingerprints question observations so the walker can tell
// whether the page moved on between iterations.
package simhash

import (
	"hash/fnv"
	"math/bits"
	"strings"

	"github.com/use-agent/quizwalker/models"
)

// Fingerprint computes a 64-bit SimHash over the lowercased word tokens of
// text. Empty or whitespace-only input yields 0.
func Fingerprint(text string) uint64 {
	return fromTokens(strings.Fields(strings.ToLower(text)))
}

// Observation fingerprints a question together with its option labels.
// Options are prefixed so that a label equal to a question word does not
// cancel out positionally identical pages.
func Observation(obs models.QuestionObservation) uint64 {
	tokens := strings.Fields(strings.ToLower(obs.Text))
	for _, opt := range obs.Options {
		for _, w := range strings.Fields(strings.ToLower(opt)) {
			tokens = append(tokens, "opt:"+w)
		}
	}
	return fromTokens(tokens)
}

func fromTokens(tokens []string) uint64 {
	if len(tokens) == 0 {
		return 0
	}

	var weights [64]int
	h := fnv.New64a()
	for _, tok := range tokens {
		h.Reset()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := range weights {
			if sum&(1<<uint(i)) != 0 {
				weights[i]++
			} else {
				weights[i]--
			}
		}
	}

	var fp uint64
	for i, w := range weights {
		if w > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
