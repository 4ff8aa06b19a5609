package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

func mustClassificationResult() *domain.ClassificationResult {
	r, err := domain.NewClassificationResult("doc-1", domain.SeverityHigh, 0.82, "contains a liquidated damages clause", domain.RoutingAutoAccept, "claude-3")
	Expect(err).NotTo(HaveOccurred())
	return r
}

var _ = Describe("ClassificationStore", func() {
	var (
		ctx context.Context
		cs  *ClassificationStore
		m   sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()
		var s *Store
		s, m = newMockStore()
		cs = NewClassificationStore(s)
	})

	AfterEach(func() {
		Expect(m.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Put and Get", func() {
		It("round-trips a classification result", func() {
			r := mustClassificationResult()
			m.ExpectExec("INSERT INTO classifications").
				WithArgs(r.ClassificationID, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))
			Expect(cs.Put(ctx, r)).To(Succeed())

			raw, _ := json.Marshal(r)
			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).AddRow(r.ClassificationID, raw, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM classifications").
				WithArgs(r.ClassificationID).
				WillReturnRows(rows)

			got, err := cs.Get(ctx, r.ClassificationID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.DocumentID).To(Equal("doc-1"))
			Expect(got.Label).To(Equal(domain.SeverityHigh))
		})
	})

	Describe("ListForDocument", func() {
		It("returns only results for the requested document", func() {
			r1 := mustClassificationResult()
			r2, err := domain.NewClassificationResult("doc-2", domain.SeverityLow, 0.4, "routine procedural filing", domain.RoutingAutoAccept, "claude-3")
			Expect(err).NotTo(HaveOccurred())
			raw1, _ := json.Marshal(r1)
			raw2, _ := json.Marshal(r2)

			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).
				AddRow(r1.ClassificationID, raw1, time.Now()).
				AddRow(r2.ClassificationID, raw2, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM classifications ORDER BY updated_at DESC LIMIT").
				WillReturnRows(rows)

			got, err := cs.ListForDocument(ctx, "doc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ClassificationID).To(Equal(r1.ClassificationID))
		})
	})

	Describe("ListHumanReviewed", func() {
		It("filters to results flagged human_reviewed", func() {
			reviewed := mustClassificationResult()
			reviewed.HumanReviewed = true
			unreviewed := mustClassificationResult()
			rawReviewed, _ := json.Marshal(reviewed)
			rawUnreviewed, _ := json.Marshal(unreviewed)

			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).
				AddRow(reviewed.ClassificationID, rawReviewed, time.Now()).
				AddRow(unreviewed.ClassificationID, rawUnreviewed, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM classifications ORDER BY updated_at DESC LIMIT").
				WillReturnRows(rows)

			got, err := cs.ListHumanReviewed(ctx, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ClassificationID).To(Equal(reviewed.ClassificationID))
		})
	})
})
