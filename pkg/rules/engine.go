package rules

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	"github.com/jordigilh/legal-severity-classifier/pkg/shared/logging"
)

// Match is one rule whose conditions evaluated true against a document,
// together with the per-condition evidence collected while evaluating it.
type Match struct {
	Rule               *domain.Rule
	SatisfiedConditions []domain.Condition
}

// Outcome is the result of evaluating the active rule set against one
// document: the rules that matched, and — if any did — the single rule
// that won conflict resolution and the label it would apply.
type Outcome struct {
	Matches      []Match
	AppliedRule  *domain.Rule
	OverrideTo   domain.Severity
	HasOverride  bool
}

// Engine is C6: a pure function of (active rules, document) to Outcome,
// with no I/O and no clock reads — the determinism §8 requires of the
// rule engine as a law, not just a property.
type Engine struct {
	regex  *regexCache
	logger *logrus.Logger
}

// New builds a rule Engine.
func New(logger *logrus.Logger) *Engine {
	return &Engine{regex: newRegexCache(), logger: logger}
}

// Evaluate runs every active rule against doc in priority-then-id order,
// collects every match, and resolves conflicts among them: highest
// priority wins; among rules tied at that priority, the most restrictive
// severity_override applies; if more than one rule at that priority shares
// the winning severity, any one of them (the first in evaluation order)
// is treated as "the" applied rule for audit purposes, since they agree.
func (e *Engine) Evaluate(doc *domain.Document, activeRules []*domain.Rule) Outcome {
	sorted := make([]*domain.Rule, len(activeRules))
	copy(sorted, activeRules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].RuleID < sorted[j].RuleID
	})

	var matches []Match
	for _, r := range sorted {
		if !r.Active {
			continue
		}
		ok, satisfied := e.evaluateRule(doc, r)
		if ok {
			matches = append(matches, Match{Rule: r, SatisfiedConditions: satisfied})
		}
	}

	if len(matches) == 0 {
		return Outcome{}
	}

	topPriority := matches[0].Rule.Priority
	var atTop []Match
	for _, m := range matches {
		if m.Rule.Priority == topPriority {
			atTop = append(atTop, m)
		}
	}

	winner := atTop[0]
	for _, m := range atTop[1:] {
		if m.Rule.SeverityOverride.MoreRestrictive(winner.Rule.SeverityOverride) {
			winner = m
		}
	}

	return Outcome{Matches: matches, AppliedRule: winner.Rule, OverrideTo: winner.Rule.SeverityOverride, HasOverride: true}
}

// evaluateRule evaluates one rule's conditions under its AND/OR logic. A
// condition whose field resolution fails is logged and disabled for this
// rule (treated as non-matching) rather than aborting evaluation of the
// remaining rules.
func (e *Engine) evaluateRule(doc *domain.Document, r *domain.Rule) (bool, []domain.Condition) {
	var satisfied []domain.Condition
	anyTrue := false
	allTrue := true

	for _, c := range r.Conditions {
		ok, err := evalCondition(doc, c, e.regex)
		if err != nil {
			if e.logger != nil {
				e.logger.WithFields(logging.PipelineFields("rule_evaluate", r.RuleID).Error(err).ToLogrus()).Warn("rule condition disabled due to evaluation error")
			}
			ok = false
		}
		if ok {
			satisfied = append(satisfied, c)
			anyTrue = true
		} else {
			allTrue = false
		}
	}

	if r.ConditionLogic == domain.LogicOR {
		return anyTrue, satisfied
	}
	return allTrue, satisfied
}

// overrideRationaleSuffix is appended to the AI-generated rationale when a
// rule override is applied, per §4.6: the original rationale is preserved
// verbatim and this block is appended, never substituted.
const overrideRationaleSuffix = "Rule Overrides Applied: "

// ApplyOverride builds the final rationale and label for a result whose
// rule engine outcome carries an override: the original AI rationale is
// kept, with an appended block naming the rule(s) that matched at the
// winning priority.
func ApplyOverride(originalRationale string, outcome Outcome) (domain.Severity, string) {
	if !outcome.HasOverride {
		return "", originalRationale
	}

	names := make([]string, 0, len(outcome.Matches))
	for _, m := range outcome.Matches {
		if m.Rule.Priority == outcome.AppliedRule.Priority {
			names = append(names, m.Rule.Name)
		}
	}

	var b strings.Builder
	b.WriteString(originalRationale)
	b.WriteString("\n\n")
	b.WriteString(overrideRationaleSuffix)
	b.WriteString(strings.Join(names, ", "))
	return outcome.OverrideTo, b.String()
}
