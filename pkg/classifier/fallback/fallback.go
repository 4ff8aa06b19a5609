// Package fallback implements the keyword/pattern classifier C5 degrades to
// when the LLM provider is exhausted or its breaker is open: a closed,
// deterministic scoring table over severity-indicative terms and phrases,
// using dlclark/regexp2 for the handful of patterns plain substring
// matching can't express (word-boundary phrases).
package fallback

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// maxConfidence is the cap the spec places on fallback confidence: the
// keyword classifier is never allowed to look as sure as the LLM.
const maxConfidence = 0.8

// noMatchConfidence is returned, with a LOW label, when nothing in the
// weighted table matches.
const noMatchConfidence = 0.3

type weightedTerm struct {
	weight  float64
	pattern *regexp2.Regexp
	literal string
}

// Classifier scores document text against a fixed table of severity
// indicators. It has no external dependencies and no I/O, making it safe
// to call from any goroutine at any time — exactly the stateless
// emergency path the orchestrator needs when the network is unavailable.
type Classifier struct {
	terms map[domain.Severity][]weightedTerm
}

// New builds the default weighted term table.
func New() *Classifier {
	return &Classifier{terms: defaultTerms()}
}

func compile(pattern string) *regexp2.Regexp {
	re := regexp2.MustCompile(pattern, regexp2.IgnoreCase)
	return re
}

func defaultTerms() map[domain.Severity][]weightedTerm {
	return map[domain.Severity][]weightedTerm{
		domain.SeverityCritical: {
			{weight: 3.0, literal: "class action"},
			{weight: 3.0, literal: "punitive damages"},
			{weight: 2.5, literal: "criminal"},
			{weight: 2.5, literal: "injunction"},
			{weight: 2.0, pattern: compile(`\bimmediate(ly)?\s+terminat`)},
			{weight: 2.0, literal: "fraud"},
			{weight: 1.5, literal: "breach of fiduciary"},
		},
		domain.SeverityHigh: {
			{weight: 2.0, literal: "breach of contract"},
			{weight: 1.5, literal: "material breach"},
			{weight: 1.5, literal: "indemnification"},
			{weight: 1.5, pattern: compile(`\blawsuit\b`)},
			{weight: 1.0, literal: "liability"},
			{weight: 1.0, literal: "non-compliance"},
		},
		domain.SeverityMedium: {
			{weight: 1.5, literal: "dispute"},
			{weight: 1.0, literal: "late payment"},
			{weight: 1.0, literal: "notice of default"},
			{weight: 1.0, literal: "amendment"},
		},
		domain.SeverityLow: {
			{weight: 1.0, literal: "routine"},
			{weight: 1.0, literal: "informational"},
			{weight: 0.5, literal: "renewal"},
			{weight: 0.5, literal: "acknowledgment"},
		},
	}
}

// Classify scores text against the weighted term table and returns the
// highest-scoring severity, a confidence derived from its score (capped at
// maxConfidence), and a rationale prefixed "FALLBACK: " per §4.5 so
// downstream consumers can always tell a fallback result from a model one.
func (c *Classifier) Classify(text string) (domain.Severity, float64, string) {
	lower := strings.ToLower(text)

	scores := map[domain.Severity]float64{}
	matched := map[domain.Severity][]string{}

	for severity, terms := range c.terms {
		var total float64
		var hits []string
		for _, t := range terms {
			if t.hits(lower) {
				total += t.weight
				hits = append(hits, t.describe())
			}
		}
		scores[severity] = total
		matched[severity] = hits
	}

	best := domain.SeverityLow
	bestScore := 0.0
	for _, severity := range []domain.Severity{domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow} {
		if scores[severity] > bestScore {
			best = severity
			bestScore = scores[severity]
		}
	}

	if bestScore == 0 {
		return domain.SeverityLow, noMatchConfidence, "FALLBACK: no severity-indicative terms matched; defaulting to LOW pending human review"
	}

	confidence := bestScore / (bestScore + 2.0)
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	rationale := fmt.Sprintf("FALLBACK: matched %d indicator(s) for %s (%s)", len(matched[best]), best, strings.Join(matched[best], ", "))
	return best, confidence, rationale
}

func (t weightedTerm) hits(lower string) bool {
	if t.pattern != nil {
		ok, err := t.pattern.MatchString(lower)
		return err == nil && ok
	}
	return strings.Contains(lower, t.literal)
}

func (t weightedTerm) describe() string {
	if t.pattern != nil {
		return t.pattern.String()
	}
	return t.literal
}
