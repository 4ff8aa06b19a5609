package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/audit"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// reprocessMinAge is how long a classification must stand before a
// non-forced reprocess request is allowed to rerun it — reprocessing on
// every request would make "reprocess" indistinguishable from "classify
// again immediately," defeating its point as a rules/bucket-drift check.
const reprocessMinAge = time.Hour

// Reprocess reruns the classification pipeline against the document
// backing an existing result, when enough time has passed since it was
// produced (or unconditionally, when force is true) — used after a rule
// bundle or bucket set changes to see whether prior classifications would
// come out differently today. It returns the existing result unchanged,
// with a nil diff, when the reprocess is skipped.
func (o *Orchestrator) Reprocess(ctx context.Context, classificationID string, force bool) (*domain.ClassificationResult, *domain.ReprocessDiff, error) {
	if o.deps.Results == nil {
		return nil, nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "reprocessing requires a configured result store")
	}
	existing, err := o.deps.Results.Get(ctx, classificationID)
	if err != nil {
		return nil, nil, err
	}
	if !force && time.Since(existing.CreatedAt) < reprocessMinAge {
		return existing, nil, nil
	}
	if o.deps.Documents == nil {
		return nil, nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "reprocessing requires a configured document store")
	}

	sessionID := uuid.NewString()
	rec := audit.NewRecorder(o.deps.Audit, sessionID)
	if err := rec.ReprocessingStarted(ctx, existing.DocumentID, classificationID); err != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(err).Warn("failed to record reprocessing_started")
	}

	doc, err := o.deps.Documents.Get(ctx, existing.DocumentID)
	if err != nil {
		return nil, nil, err
	}

	updated, err := o.Classify(ctx, doc)
	if err != nil {
		return nil, nil, err
	}

	diff := &domain.ReprocessDiff{
		ClassificationID: classificationID,
		OldLabel:         existing.Label,
		NewLabel:         updated.Label,
		OldConfidence:    existing.Confidence,
		NewConfidence:    updated.Confidence,
		ConfidenceDelta:  updated.Confidence - existing.Confidence,
		LabelChanged:     existing.Label != updated.Label,
	}
	if err := rec.ReprocessingCompleted(ctx, *diff); err != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(err).Warn("failed to record reprocessing_completed")
	}

	return updated, diff, nil
}
