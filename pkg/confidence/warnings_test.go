package confidence

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

func testThresholds() Thresholds {
	return Thresholds{Low: 0.3, Medium: 0.5, High: 0.7, Critical: 0.85}
}

var _ = Describe("EvaluateWarning", func() {
	It("returns nil when every factor is strong and confidence is high", func() {
		in := WarningInputs{
			Factors: domain.ConfidenceFactors{
				ModelConfidence: 0.95, ChunkSimilarity: 0.9, RuleOverrideScore: 0.9,
				EvidenceQuality: 0.9, HistoricalCalibration: 1.0,
			},
			Evidence:        []domain.ClassificationEvidence{{SimilarityScore: 0.9}, {SimilarityScore: 0.88}, {SimilarityScore: 0.91}},
			PredictedLabel:  domain.SeverityMedium,
			FinalConfidence: 0.9,
		}
		Expect(EvaluateWarning(in, testThresholds())).To(BeNil())
	})

	It("raises a medium warning with multiple reasons for a low-confidence single-chunk critical call", func() {
		in := WarningInputs{
			Factors: domain.ConfidenceFactors{
				ModelConfidence: 0.55, ChunkSimilarity: 0.4, RuleOverrideScore: 0.5,
				EvidenceQuality: 0.3, HistoricalCalibration: 1.0,
			},
			Evidence:        []domain.ClassificationEvidence{{SimilarityScore: 0.4}},
			PredictedLabel:  domain.SeverityCritical,
			FinalConfidence: 0.55,
		}
		w := EvaluateWarning(in, testThresholds())
		Expect(w).NotTo(BeNil())
		Expect(w.Level).To(Equal(domain.WarningMedium))
		Expect(w.Reasons).To(ContainElement(domain.ReasonLowModelConfidence))
		Expect(w.Reasons).To(ContainElement(domain.ReasonLowChunkSimilarity))
		Expect(w.Reasons).To(ContainElement(domain.ReasonInsufficientContext))
		Expect(w.Reasons).To(ContainElement(domain.ReasonExtremeSeverityPrediction))
	})
})

var _ = Describe("Route", func() {
	It("auto-accepts when there is no warning", func() {
		Expect(Route(nil)).To(Equal(domain.RoutingAutoAccept))
	})

	It("routes a critical warning to human triage", func() {
		Expect(Route(&domain.ConfidenceWarning{Level: domain.WarningCritical})).To(Equal(domain.RoutingHumanTriage))
	})

	It("routes a high warning to human review", func() {
		Expect(Route(&domain.ConfidenceWarning{Level: domain.WarningHigh})).To(Equal(domain.RoutingHumanReview))
	})

	It("routes a medium warning to human review only with the extreme-severity reason or 3+ reasons", func() {
		plain := &domain.ConfidenceWarning{Level: domain.WarningMedium, Reasons: []domain.WarningReason{domain.ReasonLowModelConfidence}}
		Expect(Route(plain)).To(Equal(domain.RoutingAutoAccept))

		extreme := &domain.ConfidenceWarning{Level: domain.WarningMedium, Reasons: []domain.WarningReason{domain.ReasonExtremeSeverityPrediction}}
		Expect(Route(extreme)).To(Equal(domain.RoutingHumanReview))

		many := &domain.ConfidenceWarning{Level: domain.WarningMedium, Reasons: []domain.WarningReason{
			domain.ReasonLowModelConfidence, domain.ReasonLowChunkSimilarity, domain.ReasonPoorEvidenceQuality,
		}}
		Expect(Route(many)).To(Equal(domain.RoutingHumanReview))
	})

	It("auto-accepts a low warning", func() {
		Expect(Route(&domain.ConfidenceWarning{Level: domain.WarningLow})).To(Equal(domain.RoutingAutoAccept))
	})
})
