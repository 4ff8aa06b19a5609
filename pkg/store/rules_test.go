package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

func mustRule() *domain.Rule {
	r, err := domain.NewRule(
		"class action keyword escalation",
		[]domain.Condition{{Operator: domain.OpContains, Field: domain.FieldText, Value: "class action"}},
		domain.LogicAND,
		domain.SeverityCritical,
		10,
		"reviewer-1",
	)
	Expect(err).NotTo(HaveOccurred())
	return r
}

var _ = Describe("RuleStore", func() {
	var (
		ctx context.Context
		rs  *RuleStore
		m   sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()
		var s *Store
		s, m = newMockStore()
		rs = NewRuleStore(s)
	})

	AfterEach(func() {
		Expect(m.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Put", func() {
		It("rejects a rule with an out-of-range priority", func() {
			r := mustRule()
			r.Priority = 999

			err := rs.Put(ctx, r)
			Expect(err).To(HaveOccurred())
			Expect(apperrors.IsType(err, apperrors.ErrorTypeInvalidInput)).To(BeTrue())
		})

		It("upserts a valid rule", func() {
			r := mustRule()
			m.ExpectExec("INSERT INTO rules").
				WithArgs(r.RuleID, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(rs.Put(ctx, r)).To(Succeed())
		})
	})

	Describe("Get", func() {
		It("decodes the stored rule", func() {
			r := mustRule()
			raw, _ := json.Marshal(r)
			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).AddRow(r.RuleID, raw, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM rules").
				WithArgs(r.RuleID).
				WillReturnRows(rows)

			got, err := rs.Get(ctx, r.RuleID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.RuleID).To(Equal(r.RuleID))
		})
	})

	Describe("Delete", func() {
		It("deletes a rule by id", func() {
			m.ExpectExec("DELETE FROM rules").
				WithArgs("r1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(rs.Delete(ctx, "r1")).To(Succeed())
		})
	})

	Describe("ListActive", func() {
		It("filters to rules with active == true", func() {
			active := mustRule()
			inactive := mustRule()
			inactive.Active = false
			rawActive, _ := json.Marshal(active)
			rawInactive, _ := json.Marshal(inactive)

			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).
				AddRow(active.RuleID, rawActive, time.Now()).
				AddRow(inactive.RuleID, rawInactive, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM rules ORDER BY updated_at DESC LIMIT").
				WillReturnRows(rows)

			rules, err := rs.ListActive(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rules).To(HaveLen(1))
			Expect(rules[0].RuleID).To(Equal(active.RuleID))
		})
	})

	Describe("PutVersion", func() {
		It("keys the snapshot by rule_id:version so repeated writes are idempotent", func() {
			r := mustRule()
			v := &domain.RuleVersion{RuleID: r.RuleID, Version: 1, Rule: *r, Author: "reviewer-1", Timestamp: time.Now()}

			m.ExpectExec("INSERT INTO rule_versions").
				WithArgs(r.RuleID+":1", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(rs.PutVersion(ctx, v)).To(Succeed())
		})
	})

	Describe("effectiveness counters", func() {
		It("returns a zero-valued report for a rule with no recorded applications", func() {
			m.ExpectQuery("SELECT id, value, updated_at FROM rules").
				WithArgs("eff:never-applied").
				WillReturnError(noRowsErr())

			e, err := rs.GetEffectiveness(ctx, "never-applied")
			Expect(err).NotTo(HaveOccurred())
			Expect(e.RuleID).To(Equal("never-applied"))
			Expect(e.TotalApplications).To(BeZero())
		})

		It("round-trips a stored effectiveness snapshot", func() {
			e := &domain.RuleEffectiveness{RuleID: "r1", TotalApplications: 4, SuccessfulOverrides: 3, MeanConfidenceDelta: 0.1, LastAppliedAt: time.Now()}
			raw, _ := json.Marshal(e)

			m.ExpectExec("INSERT INTO rules").
				WithArgs("eff:r1", sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			Expect(rs.PutEffectiveness(ctx, e)).To(Succeed())

			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).AddRow("eff:r1", raw, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM rules").
				WithArgs("eff:r1").
				WillReturnRows(rows)

			got, err := rs.GetEffectiveness(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.TotalApplications).To(Equal(int64(4)))
			Expect(got.SuccessfulOverrides).To(Equal(int64(3)))
		})
	})
})
