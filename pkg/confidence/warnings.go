package confidence

import (
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
)

// Thresholds are the final-confidence boundaries separating warning
// levels; lower confidence crosses more of them, escalating toward
// critical. Mirrors internal/config.ConfidenceConfig's four fields.
type Thresholds struct {
	Low      float64
	Medium   float64
	High     float64
	Critical float64
}

// WarningInputs is everything EvaluateWarning needs beyond the final score
// itself.
type WarningInputs struct {
	Factors         domain.ConfidenceFactors
	Evidence        []domain.ClassificationEvidence
	MatchedRules    []*domain.Rule
	PredictedLabel  domain.Severity
	FinalConfidence float64
}

// EvaluateWarning determines the warning level from the final confidence
// and independently accumulates every reason whose trigger condition
// holds — a result can carry several reasons even with only one warning
// level, since the level is driven by confidence alone while the reasons
// explain why.
func EvaluateWarning(in WarningInputs, t Thresholds) *domain.ConfidenceWarning {
	level := warningLevel(in.FinalConfidence, t)

	w := &domain.ConfidenceWarning{Level: level}
	for _, reason := range triggeredReasons(in) {
		w.AddReason(reason)
	}

	if level == domain.WarningNone && len(w.Reasons) == 0 {
		return nil
	}
	return w
}

func warningLevel(confidence float64, t Thresholds) domain.WarningLevel {
	switch {
	case confidence < t.Low:
		return domain.WarningCritical
	case confidence < t.Medium:
		return domain.WarningHigh
	case confidence < t.High:
		return domain.WarningMedium
	case confidence < t.Critical:
		return domain.WarningLow
	default:
		return domain.WarningNone
	}
}

func triggeredReasons(in WarningInputs) []domain.WarningReason {
	var reasons []domain.WarningReason
	f := in.Factors

	if f.ModelConfidence < 0.6 {
		reasons = append(reasons, domain.ReasonLowModelConfidence)
	}
	if f.ChunkSimilarity < 0.5 {
		reasons = append(reasons, domain.ReasonLowChunkSimilarity)
	}
	if f.EvidenceQuality < 0.4 {
		reasons = append(reasons, domain.ReasonPoorEvidenceQuality)
	}
	if f.RuleOverrideScore < 0.6 {
		if len(in.MatchedRules) == 0 {
			reasons = append(reasons, domain.ReasonNoRuleSupport)
		} else {
			reasons = append(reasons, domain.ReasonConflictingRules)
		}
	}
	if f.HistoricalCalibration < 0.8 {
		reasons = append(reasons, domain.ReasonHistoricalInaccuracy)
	}
	if (in.PredictedLabel == domain.SeverityCritical || in.PredictedLabel == domain.SeverityLow) && f.ModelConfidence < 0.8 {
		reasons = append(reasons, domain.ReasonExtremeSeverityPrediction)
	}
	if len(in.Evidence) < 2 {
		reasons = append(reasons, domain.ReasonInsufficientContext)
	}
	if f.ModelConfidence < 0.2 || f.ModelConfidence > 0.98 {
		reasons = append(reasons, domain.ReasonModelUncertainty)
	}
	if inconsistentEvidence(in.Evidence) {
		reasons = append(reasons, domain.ReasonInconsistentEvidence)
	}

	return reasons
}

func inconsistentEvidence(evidence []domain.ClassificationEvidence) bool {
	if len(evidence) < 2 {
		return false
	}
	scores := make([]float64, len(evidence))
	for i, e := range evidence {
		scores[i] = e.SimilarityScore
	}
	return sharedmath.Span(scores) > 0.4
}

// Route derives the routing decision from a warning per §4.7: no warning
// auto-accepts; critical and high always escalate; medium escalates only
// when it carries the extreme-severity reason or at least three reasons;
// everything else auto-accepts as a draft.
func Route(w *domain.ConfidenceWarning) domain.RoutingDecision {
	if w == nil || w.Level == domain.WarningNone {
		return domain.RoutingAutoAccept
	}
	switch w.Level {
	case domain.WarningCritical:
		return domain.RoutingHumanTriage
	case domain.WarningHigh:
		return domain.RoutingHumanReview
	case domain.WarningMedium:
		if w.HasReason(domain.ReasonExtremeSeverityPrediction) || len(w.Reasons) >= 3 {
			return domain.RoutingHumanReview
		}
		return domain.RoutingAutoAccept
	default:
		return domain.RoutingAutoAccept
	}
}
