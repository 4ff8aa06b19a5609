package confidence

import (
	"github.com/sirupsen/logrus"

	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
)

// DefaultWeights are the five-factor combination weights §4.7 specifies,
// used whenever the operator hasn't overridden them in configuration.
var DefaultWeights = map[string]float64{
	"model_confidence":      0.40,
	"chunk_similarity":      0.25,
	"rule_override_score":   0.20,
	"evidence_quality":      0.10,
	"historical_calibration": 0.05,
}

// Combine blends the five confidence factors into one final score:
// clamp01((w_model*model + w_sim*sim + w_rules*rules + w_evq*evq +
// w_cal*cal) * cal), where cal (historical_calibration) both contributes
// its own weighted term and multiplies the whole sum — it is simultaneously
// one of the five inputs and the calibration correction applied to their
// combination. User-supplied weights not summing to 1 are renormalized and
// logged, never silently misapplied.
func Combine(model, chunkSim, ruleScore, evidenceQuality, calibration float64, weights map[string]float64, logger *logrus.Logger) float64 {
	w := normalizeWeights(weights, logger)

	weighted := w["model_confidence"]*model +
		w["chunk_similarity"]*chunkSim +
		w["rule_override_score"]*ruleScore +
		w["evidence_quality"]*evidenceQuality +
		w["historical_calibration"]*calibration

	return sharedmath.Clamp01(weighted * calibration)
}

func normalizeWeights(weights map[string]float64, logger *logrus.Logger) map[string]float64 {
	if len(weights) == 0 {
		return DefaultWeights
	}

	out := map[string]float64{}
	var sum float64
	for k, defaultV := range DefaultWeights {
		v := defaultV
		if override, ok := weights[k]; ok {
			v = override
		}
		out[k] = v
		sum += v
	}

	if sum <= 0 {
		return DefaultWeights
	}
	if sum < 0.999 || sum > 1.001 {
		if logger != nil {
			logger.WithField("weight_sum", sum).Warn("confidence weights did not sum to 1.0, renormalizing")
		}
		for k := range out {
			out[k] /= sum
		}
	}
	return out
}
