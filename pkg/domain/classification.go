package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
)

// ClassificationResult is the final, persisted outcome of one pipeline run.
type ClassificationResult struct {
	ClassificationID string `json:"classification_id"`
	DocumentID string `json:"document_id"`
	Label Severity `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale string `json:"rationale"`
	Evidence []ClassificationEvidence `json:"evidence"`
	PrimaryBucketID string `json:"bucket_id,omitempty"`
	AppliedRuleIDs []string `json:"rule_overrides,omitempty"`
	RoutingDecision RoutingDecision `json:"routing_decision"`
	ModelVersion string `json:"model_version"`
	CreatedAt time.Time `json:"created_at"`
	HumanReviewed bool `json:"human_reviewed"`
	HumanReviewerID string `json:"human_reviewer_id,omitempty"`
	FinalLabel *Severity `json:"final_label,omitempty"`
	ConfidenceWarning *ConfidenceWarning `json:"confidence_warning,omitempty"`
}

// NewClassificationResult builds a result with a generated id and the
// current timestamp; callers fill in the decision fields.
func NewClassificationResult(documentID string, label Severity, confidence float64, rationale string, routing RoutingDecision, modelVersion string) (*ClassificationResult, error) {
	if !label.Valid() {
		return nil, apperrors.NewInvalidInputError("label must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	if confidence < 0 || confidence > 1 {
		return nil, apperrors.NewInvalidInputError("confidence must be in [0,1]")
	}
	if rationale == "" {
		return nil, apperrors.NewInvalidInputError("rationale cannot be empty")
	}
	return &ClassificationResult{
		ClassificationID: uuid.NewString(),
		DocumentID:       documentID,
		Label:            label,
		Confidence:       confidence,
		Rationale:        rationale,
		RoutingDecision:  routing,
		ModelVersion:     modelVersion,
		CreatedAt:        time.Now().UTC(),
	}, nil
}

// EffectiveLabel returns FinalLabel when human review overrode the
// automated Label, otherwise Label itself.
func (r *ClassificationResult) EffectiveLabel() Severity {
	if r.FinalLabel != nil {
		return *r.FinalLabel
	}
	return r.Label
}

// ReprocessDiff describes how a reprocess run changed a stored result.
type ReprocessDiff struct {
	ClassificationID string `json:"classification_id"`
	OldLabel Severity `json:"old_label"`
	NewLabel Severity `json:"new_label"`
	OldConfidence float64 `json:"old_confidence"`
	NewConfidence float64 `json:"new_confidence"`
	ConfidenceDelta float64 `json:"confidence_delta"`
	LabelChanged bool `json:"label_changed"`
}
