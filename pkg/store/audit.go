package store

import (
	"context"
	"encoding/json"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// AuditStore appends AuditEvents to the audit_logs collection. Events are
// never updated after write.
type AuditStore struct {
	store *Store
}

func NewAuditStore(s *Store) *AuditStore {
	return &AuditStore{store: s}
}

func (as *AuditStore) Append(ctx context.Context, e *domain.AuditEvent) error {
	return as.store.insertOnly(ctx, CollectionAuditLogs, e.ID, e)
}

// ListBySession returns every event recorded under sessionID, ordered by
// the store's own most-recently-written-first order (callers sort by
// EmissionSeq/Timestamp for a causal view).
func (as *AuditStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]*domain.AuditEvent, error) {
	rows, err := as.store.list(ctx, CollectionAuditLogs, []Filter{{Field: "session_id", Value: sessionID}}, limit, 0)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuditEvent, 0, len(rows))
	for _, raw := range rows {
		var e domain.AuditEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored audit event")
		}
		out = append(out, &e)
	}
	return out, nil
}
