package rules

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// EffectivenessStore is the subset of pkg/store.RuleStore the effectiveness
// tracker needs: load-modify-store on the per-rule running aggregate.
type EffectivenessStore interface {
	GetEffectiveness(ctx context.Context, ruleID string) (*domain.RuleEffectiveness, error)
	PutEffectiveness(ctx context.Context, e *domain.RuleEffectiveness) error
}

// RecordApplication updates ruleID's running effectiveness counters after
// one application: total_applications increments, successful_overrides is
// left to the caller's judgment of whether the override held up, and
// mean_confidence_delta is updated as an exact running mean via
// shopspring/decimal so repeated float accumulation across thousands of
// applications never drifts.
func RecordApplication(ctx context.Context, store EffectivenessStore, ruleID string, confidenceDelta float64, successfulOverride bool) error {
	current, err := store.GetEffectiveness(ctx, ruleID)
	if err != nil {
		return err
	}

	n := decimal.NewFromInt(current.TotalApplications)
	mean := decimal.NewFromFloat(current.MeanConfidenceDelta)
	delta := decimal.NewFromFloat(confidenceDelta)

	newN := n.Add(decimal.NewFromInt(1))
	newMean := mean.Mul(n).Add(delta).Div(newN)

	current.TotalApplications++
	if successfulOverride {
		current.SuccessfulOverrides++
	}
	meanFloat, _ := newMean.Float64()
	current.MeanConfidenceDelta = meanFloat
	current.LastAppliedAt = time.Now().UTC()

	current.RuleID = ruleID
	return store.PutEffectiveness(ctx, current)
}

// EffectivenessReport is the read-only view of a rule's accumulated
// counters: how often it has fired, how often the override it applied
// held up, the mean confidence swing it produced, and when it last fired.
type EffectivenessReport struct {
	RuleID              string    `json:"rule_id"`
	TotalApplications   int64     `json:"total_applications"`
	SuccessfulOverrides int64     `json:"successful_overrides"`
	OverrideRate        float64   `json:"override_rate"`
	MeanConfidenceDelta float64   `json:"mean_confidence_delta"`
	LastAppliedAt       time.Time `json:"last_applied_at"`
}

// Effectiveness loads ruleID's running aggregate and renders it as a report.
// A rule with no recorded applications yet still returns a zero-valued
// report rather than an error, matching GetEffectiveness's own miss
// behavior.
func Effectiveness(ctx context.Context, store EffectivenessStore, ruleID string) (EffectivenessReport, error) {
	current, err := store.GetEffectiveness(ctx, ruleID)
	if err != nil {
		return EffectivenessReport{}, err
	}
	return EffectivenessReport{
		RuleID:              ruleID,
		TotalApplications:   current.TotalApplications,
		SuccessfulOverrides: current.SuccessfulOverrides,
		OverrideRate:        current.OverrideRate(),
		MeanConfidenceDelta: current.MeanConfidenceDelta,
		LastAppliedAt:       current.LastAppliedAt,
	}, nil
}
