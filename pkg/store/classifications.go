package store

import (
	"context"
	"encoding/json"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// ClassificationStore persists ClassificationResults (C8's final output)
// and supports the reprocess read/rewrite cycle.
type ClassificationStore struct {
	store *Store
}

func NewClassificationStore(s *Store) *ClassificationStore {
	return &ClassificationStore{store: s}
}

func (cs *ClassificationStore) Put(ctx context.Context, r *domain.ClassificationResult) error {
	return cs.store.put(ctx, CollectionClassifications, r.ClassificationID, r)
}

func (cs *ClassificationStore) Get(ctx context.Context, id string) (*domain.ClassificationResult, error) {
	raw, err := cs.store.get(ctx, CollectionClassifications, id)
	if err != nil {
		return nil, err
	}
	var r domain.ClassificationResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored classification")
	}
	return &r, nil
}

// ListForDocument returns every classification recorded against documentID,
// most recent first — used by reprocessing to locate the prior result.
func (cs *ClassificationStore) ListForDocument(ctx context.Context, documentID string) ([]*domain.ClassificationResult, error) {
	rows, err := cs.store.list(ctx, CollectionClassifications, []Filter{{Field: "document_id", Value: documentID}}, 1000, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ClassificationResult, 0, len(rows))
	for _, raw := range rows {
		var r domain.ClassificationResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored classification")
		}
		out = append(out, &r)
	}
	return out, nil
}

// ListHumanReviewed returns human-reviewed classifications, for C7's
// historical calibration window.
func (cs *ClassificationStore) ListHumanReviewed(ctx context.Context, limit int) ([]*domain.ClassificationResult, error) {
	rows, err := cs.store.list(ctx, CollectionClassifications, []Filter{{Field: "human_reviewed", Value: "true"}}, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ClassificationResult, 0, len(rows))
	for _, raw := range rows {
		var r domain.ClassificationResult
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored classification")
		}
		out = append(out, &r)
	}
	return out, nil
}
