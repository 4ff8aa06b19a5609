package confidence

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

var _ = Describe("Combine", func() {
	It("applies the default weights and the calibration multiplier", func() {
		score := Combine(0.9, 0.8, 0.7, 0.6, 1.0, nil, nil)
		Expect(score).To(BeNumerically(">", 0))
		Expect(score).To(BeNumerically("<=", 1))
	})

	It("renormalizes weights that do not sum to 1 and logs a warning", func() {
		logger := logrus.New()
		logger.SetLevel(logrus.FatalLevel)
		weights := map[string]float64{
			"model_confidence":       1.0,
			"chunk_similarity":       1.0,
			"rule_override_score":    0,
			"evidence_quality":       0,
			"historical_calibration": 0,
		}
		score := Combine(1.0, 1.0, 0, 0, 1.0, weights, logger)
		Expect(score).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("clamps the combination to [0,1]", func() {
		score := Combine(1.0, 1.0, 1.0, 1.0, 1.5, nil, nil)
		Expect(score).To(BeNumerically("<=", 1.0))
	})
})
