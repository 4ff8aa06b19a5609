package confidence

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

type fakeHistoricalStore struct {
	results []*domain.ClassificationResult
}

func (f *fakeHistoricalStore) ListHumanReviewed(_ context.Context, _ int) ([]*domain.ClassificationResult, error) {
	return f.results, nil
}

func reviewedResult(label domain.Severity, confidence float64, finalLabel domain.Severity, daysAgo int) *domain.ClassificationResult {
	final := finalLabel
	return &domain.ClassificationResult{
		Label: label, Confidence: confidence, FinalLabel: &final,
		CreatedAt: time.Now().UTC().AddDate(0, 0, -daysAgo),
	}
}

var _ = Describe("Calibrator", func() {
	It("returns the neutral factor 1.0 when fewer than 10 samples fall in the bin", func() {
		store := &fakeHistoricalStore{results: []*domain.ClassificationResult{
			reviewedResult(domain.SeverityHigh, 0.85, domain.SeverityHigh, 1),
		}}
		c := NewCalibrator(store, 30)
		factor, err := c.Factor(context.Background(), domain.SeverityHigh, 0.85)
		Expect(err).NotTo(HaveOccurred())
		Expect(factor).To(Equal(1.0))
	})

	It("gives a perfectly accurate confidence bin the top reachable factor of 0.9", func() {
		var results []*domain.ClassificationResult
		for i := 0; i < 20; i++ {
			results = append(results, reviewedResult(domain.SeverityHigh, 0.85, domain.SeverityHigh, 1))
		}
		store := &fakeHistoricalStore{results: results}
		c := NewCalibrator(store, 30)
		factor, err := c.Factor(context.Background(), domain.SeverityHigh, 0.85)
		Expect(err).NotTo(HaveOccurred())
		Expect(factor).To(BeNumerically("~", 0.9, 1e-9))
	})

	It("penalizes a confidence bin with a poor accuracy track record", func() {
		var results []*domain.ClassificationResult
		for i := 0; i < 20; i++ {
			results = append(results, reviewedResult(domain.SeverityHigh, 0.85, domain.SeverityLow, 1))
		}
		store := &fakeHistoricalStore{results: results}
		c := NewCalibrator(store, 30)
		factor, err := c.Factor(context.Background(), domain.SeverityHigh, 0.85)
		Expect(err).NotTo(HaveOccurred())
		Expect(factor).To(BeNumerically("<", 1.0))
	})

	It("ignores results outside the calibration window", func() {
		var results []*domain.ClassificationResult
		for i := 0; i < 20; i++ {
			results = append(results, reviewedResult(domain.SeverityHigh, 0.85, domain.SeverityHigh, 90))
		}
		store := &fakeHistoricalStore{results: results}
		c := NewCalibrator(store, 30)
		factor, err := c.Factor(context.Background(), domain.SeverityHigh, 0.85)
		Expect(err).NotTo(HaveOccurred())
		Expect(factor).To(Equal(1.0))
	})

	It("caches the snapshot so a second call within the TTL doesn't requery the store", func() {
		calls := 0
		store := &countingStore{fakeHistoricalStore: fakeHistoricalStore{}, calls: &calls}
		c := NewCalibrator(store, 30)
		_, _ = c.Factor(context.Background(), domain.SeverityHigh, 0.85)
		_, _ = c.Factor(context.Background(), domain.SeverityHigh, 0.85)
		Expect(calls).To(Equal(1))
	})
})

type countingStore struct {
	fakeHistoricalStore
	calls *int
}

func (c *countingStore) ListHumanReviewed(ctx context.Context, limit int) ([]*domain.ClassificationResult, error) {
	*c.calls++
	return c.fakeHistoricalStore.ListHumanReviewed(ctx, limit)
}
