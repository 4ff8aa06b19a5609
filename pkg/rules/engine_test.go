package rules

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

func mustRule(name string, conditions []domain.Condition, logic domain.ConditionLogic, override domain.Severity, priority int) *domain.Rule {
	r, err := domain.NewRule(name, conditions, logic, override, priority, "test")
	if err != nil {
		panic(err)
	}
	return r
}

var _ = Describe("Engine", func() {
	var (
		engine *Engine
		logger *logrus.Logger
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		engine = New(logger)
	})

	It("returns no override when no rule matches", func() {
		doc := testDoc("an ordinary routine notice")
		rule := mustRule("termination rule",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "terminate"}},
			domain.LogicAND, domain.SeverityCritical, 50)

		outcome := engine.Evaluate(doc, []*domain.Rule{rule})
		Expect(outcome.HasOverride).To(BeFalse())
		Expect(outcome.Matches).To(BeEmpty())
	})

	It("applies the single matching rule's override", func() {
		doc := testDoc("this notice constitutes immediate termination of the agreement")
		rule := mustRule("immediate termination rule",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "immediate termination"}},
			domain.LogicAND, domain.SeverityCritical, 90)

		outcome := engine.Evaluate(doc, []*domain.Rule{rule})
		Expect(outcome.HasOverride).To(BeTrue())
		Expect(outcome.OverrideTo).To(Equal(domain.SeverityCritical))
		Expect(outcome.AppliedRule.RuleID).To(Equal(rule.RuleID))
	})

	It("resolves a priority conflict by picking the highest-priority rule", func() {
		doc := testDoc("immediate termination and late payment")
		low := mustRule("low priority",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "late payment"}},
			domain.LogicAND, domain.SeverityMedium, 30)
		high := mustRule("high priority",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "immediate termination"}},
			domain.LogicAND, domain.SeverityCritical, 90)

		outcome := engine.Evaluate(doc, []*domain.Rule{low, high})
		Expect(outcome.AppliedRule.RuleID).To(Equal(high.RuleID))
		Expect(outcome.OverrideTo).To(Equal(domain.SeverityCritical))
	})

	It("breaks a same-priority tie toward the most restrictive severity", func() {
		doc := testDoc("immediate termination and late payment both present")
		a := mustRule("rule a",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "late payment"}},
			domain.LogicAND, domain.SeverityMedium, 50)
		b := mustRule("rule b",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "immediate termination"}},
			domain.LogicAND, domain.SeverityCritical, 50)

		outcome := engine.Evaluate(doc, []*domain.Rule{a, b})
		Expect(outcome.OverrideTo).To(Equal(domain.SeverityCritical))
	})

	It("honors OR logic across conditions", func() {
		doc := testDoc("this document mentions fraud only")
		rule := mustRule("fraud or injunction",
			[]domain.Condition{
				{Operator: domain.OpContains, Field: domain.FieldText, Value: "fraud"},
				{Operator: domain.OpContains, Field: domain.FieldText, Value: "injunction"},
			}, domain.LogicOR, domain.SeverityHigh, 60)

		outcome := engine.Evaluate(doc, []*domain.Rule{rule})
		Expect(outcome.HasOverride).To(BeTrue())
	})

	It("requires every condition under AND logic", func() {
		doc := testDoc("this document mentions fraud only")
		rule := mustRule("fraud and injunction",
			[]domain.Condition{
				{Operator: domain.OpContains, Field: domain.FieldText, Value: "fraud"},
				{Operator: domain.OpContains, Field: domain.FieldText, Value: "injunction"},
			}, domain.LogicAND, domain.SeverityHigh, 60)

		outcome := engine.Evaluate(doc, []*domain.Rule{rule})
		Expect(outcome.HasOverride).To(BeFalse())
	})
})

var _ = Describe("ApplyOverride", func() {
	It("preserves the original rationale and appends the override block", func() {
		doc := testDoc("immediate termination clause present")
		rule := mustRule("immediate termination rule",
			[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "immediate termination"}},
			domain.LogicAND, domain.SeverityCritical, 90)

		engine := New(nil)
		outcome := engine.Evaluate(doc, []*domain.Rule{rule})

		label, rationale := ApplyOverride("the model found this document to be HIGH severity", outcome)
		Expect(label).To(Equal(domain.SeverityCritical))
		Expect(rationale).To(ContainSubstring("the model found this document to be HIGH severity"))
		Expect(rationale).To(ContainSubstring("Rule Overrides Applied: "))
		Expect(strings.Index(rationale, "Rule Overrides Applied:")).To(BeNumerically(">", strings.Index(rationale, "HIGH severity")))
	})

	It("is a no-op when there is no override", func() {
		label, rationale := ApplyOverride("original", Outcome{})
		Expect(label).To(Equal(domain.Severity("")))
		Expect(rationale).To(Equal("original"))
	})
})
