// Package confidence implements C7: combining model confidence, retrieved
// evidence, matched rules, and historical calibration into one final
// confidence score, and deriving a warning level and routing decision
// from it.
package confidence

import (
	"math"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
)

// ChunkSimilarity is the weighted mean of the retrieved evidence's
// similarity scores, weighted exp(2*score) so the most relevant chunks
// dominate the average. An empty evidence list scores 0.
func ChunkSimilarity(evidence []domain.ClassificationEvidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	values := make([]float64, len(evidence))
	weights := make([]float64, len(evidence))
	for i, e := range evidence {
		values[i] = e.SimilarityScore
		weights[i] = math.Exp(2 * e.SimilarityScore)
	}
	return sharedmath.Clamp01(sharedmath.WeightedMean(values, weights))
}

// RuleOverrideScore reflects how strongly the matched rules (if any)
// support this classification. No rules is a neutral 0.5; otherwise it
// blends priority and specificity of the rules that matched.
func RuleOverrideScore(matchedRules []*domain.Rule) float64 {
	if len(matchedRules) == 0 {
		return 0.5
	}

	var prioritySum float64
	var conditionSum float64
	for _, r := range matchedRules {
		prioritySum += float64(r.Priority)
		conditionSum += float64(len(r.Conditions))
	}
	n := float64(len(matchedRules))
	priorityNorm := sharedmath.Clamp01(prioritySum / (100.0 * n))
	specificityNorm := sharedmath.Clamp01((conditionSum / n) / 5.0)

	return sharedmath.Clamp01(0.5 + 0.5*(0.6*priorityNorm+0.4*specificityNorm))
}

// EvidenceQuality combines quantity, diversity, length, and consistency
// sub-factors of the retrieved evidence into one [0,1] score.
func EvidenceQuality(evidence []domain.ClassificationEvidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	quantity := quantityFactor(len(evidence))
	diversity := diversityFactor(evidence)
	length := lengthFactor(evidence)
	consistency := consistencyFactor(evidence)

	return sharedmath.Clamp01(0.3*quantity + 0.25*diversity + 0.25*length + 0.2*consistency)
}

// quantityFactor rewards 1-3 pieces of evidence linearly up to 1.0, holds
// flat through 5, then decays 0.1 per additional piece to a floor of 0.7 —
// too much evidence dilutes relevance rather than adding confidence.
func quantityFactor(n int) float64 {
	switch {
	case n <= 0:
		return 0
	case n <= 3:
		return float64(n) / 3.0
	case n <= 5:
		return 1.0
	default:
		extra := n - 5
		v := 1.0 - 0.1*float64(extra)
		if v < 0.7 {
			return 0.7
		}
		return v
	}
}

func diversityFactor(evidence []domain.ClassificationEvidence) float64 {
	docs := map[string]bool{}
	buckets := map[string]bool{}
	for _, e := range evidence {
		docs[e.DocumentID] = true
		buckets[e.BucketID] = true
	}
	n := float64(len(evidence))
	return sharedmath.Clamp01(float64(len(docs)+len(buckets)) / (n + 2))
}

// lengthFactor scores the average word count per chunk: short chunks carry
// less context (linear ramp below 10 words), chunks of typical length
// (10-200 words) score full marks, and very long chunks decay toward a
// floor of 0.5 — a single oversized chunk shouldn't dominate the signal.
func lengthFactor(evidence []domain.ClassificationEvidence) float64 {
	var totalWords float64
	for _, e := range evidence {
		totalWords += float64(len(splitWords(e.ChunkText)))
	}
	avg := totalWords / float64(len(evidence))

	switch {
	case avg < 10:
		return sharedmath.Clamp01(avg / 10.0)
	case avg <= 200:
		return 1.0
	default:
		decay := 1.0 - (avg-200)/400.0
		if decay < 0.5 {
			return 0.5
		}
		return decay
	}
}

func consistencyFactor(evidence []domain.ClassificationEvidence) float64 {
	scores := make([]float64, len(evidence))
	for i, e := range evidence {
		scores[i] = e.SimilarityScore
	}
	stddev := sharedmath.StandardDeviation(scores)
	v := 1 - 2*stddev
	if v < 0 {
		return 0
	}
	return v
}

func splitWords(text string) []string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = nil
		}
	}
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			flush()
			continue
		}
		current = append(current, r)
	}
	flush()
	return words
}
