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

func mustBucket() *domain.Bucket {
	b, err := domain.NewBucket("contract breaches", []string{"d1", "d2"}, [][]float64{{0.1, 0.2}, {0.3, 0.4}})
	Expect(err).NotTo(HaveOccurred())
	return b
}

var _ = Describe("BucketStore", func() {
	var (
		ctx context.Context
		bs  *BucketStore
		m   sqlmock.Sqlmock
	)

	BeforeEach(func() {
		ctx = context.Background()
		var s *Store
		s, m = newMockStore()
		bs = NewBucketStore(s)
	})

	AfterEach(func() {
		Expect(m.ExpectationsWereMet()).To(Succeed())
	})

	Describe("Put", func() {
		It("rejects a bucket whose document_ids length disagrees with document_count", func() {
			b := mustBucket()
			b.DocumentCount = 99

			err := bs.Put(ctx, b)
			Expect(err).To(HaveOccurred())
			Expect(apperrors.IsType(err, apperrors.ErrorTypeInvalidInput)).To(BeTrue())
		})

		It("upserts a valid bucket", func() {
			b := mustBucket()
			m.ExpectExec("INSERT INTO buckets").
				WithArgs(b.BucketID, sqlmock.AnyArg()).
				WillReturnResult(sqlmock.NewResult(1, 1))

			Expect(bs.Put(ctx, b)).To(Succeed())
		})
	})

	Describe("Get", func() {
		It("decodes the stored bucket", func() {
			b := mustBucket()
			raw, _ := json.Marshal(b)
			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).AddRow(b.BucketID, raw, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM buckets").
				WithArgs(b.BucketID).
				WillReturnRows(rows)

			got, err := bs.Get(ctx, b.BucketID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.BucketID).To(Equal(b.BucketID))
			Expect(got.DocumentCount).To(Equal(2))
		})

		It("propagates NotFound", func() {
			m.ExpectQuery("SELECT id, value, updated_at FROM buckets").
				WithArgs("missing").
				WillReturnError(noRowsErr())

			_, err := bs.Get(ctx, "missing")
			Expect(apperrors.IsType(err, apperrors.ErrorTypeNotFound)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("deletes a bucket by id", func() {
			m.ExpectExec("DELETE FROM buckets").
				WithArgs("b1").
				WillReturnResult(sqlmock.NewResult(0, 1))

			Expect(bs.Delete(ctx, "b1")).To(Succeed())
		})
	})

	Describe("ListAll", func() {
		It("returns every stored bucket decoded", func() {
			b1 := mustBucket()
			b2, err := domain.NewBucket("procedural defaults", []string{"d3"}, [][]float64{{0.5, 0.5}})
			Expect(err).NotTo(HaveOccurred())
			raw1, _ := json.Marshal(b1)
			raw2, _ := json.Marshal(b2)

			rows := sqlmock.NewRows([]string{"id", "value", "updated_at"}).
				AddRow(b1.BucketID, raw1, time.Now()).
				AddRow(b2.BucketID, raw2, time.Now())
			m.ExpectQuery("SELECT id, value, updated_at FROM buckets ORDER BY updated_at DESC LIMIT").
				WillReturnRows(rows)

			got, err := bs.ListAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(2))
		})
	})
})
