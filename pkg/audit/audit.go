// Package audit implements the typed side of the audit trail: C8's
// orchestrator calls a Recorder method per event kind instead of hand
// building domain.AuditEvent values, and the Recorder guarantees
// monotonic EmissionSeq ordering within one session — §5's "audit events
// are monotonically ordered within a session, tie-broken by emission
// sequence" guarantee lives here, not in the orchestrator.
package audit

import (
	"context"
	"sync/atomic"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// Appender is the subset of pkg/store.AuditStore the Recorder needs.
type Appender interface {
	Append(ctx context.Context, e *domain.AuditEvent) error
}

// Recorder assigns a monotonically increasing EmissionSeq to every event
// emitted under one sessionID and appends it to the store. One Recorder is
// scoped to one classification session; the counter is never shared
// across sessions, matching §5's "no global ordering across
// classifications" rule.
type Recorder struct {
	store     Appender
	sessionID string
	seq       int64
}

// NewRecorder builds a Recorder for one classification session.
func NewRecorder(store Appender, sessionID string) *Recorder {
	return &Recorder{store: store, sessionID: sessionID}
}

func (r *Recorder) nextSeq() int64 {
	return atomic.AddInt64(&r.seq, 1)
}

func (r *Recorder) emit(ctx context.Context, e domain.AuditEvent) error {
	e.EmissionSeq = r.nextSeq()
	return r.store.Append(ctx, &e)
}

// ClassificationStarted records classification_started.
func (r *Recorder) ClassificationStarted(ctx context.Context, documentID string) error {
	e := domain.NewAuditEvent(domain.EventClassificationStarted, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	return r.emit(ctx, e)
}

// EvidenceCollected records evidence_collected with the retrieved evidence
// count attached as a detail.
func (r *Recorder) EvidenceCollected(ctx context.Context, documentID string, evidenceCount int) error {
	e := domain.NewAuditEvent(domain.EventEvidenceCollected, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	e.Details = map[string]interface{}{"evidence_count": evidenceCount}
	return r.emit(ctx, e)
}

// ContextRetrieved records context_retrieved with the primary bucket id.
func (r *Recorder) ContextRetrieved(ctx context.Context, documentID, primaryBucketID string) error {
	e := domain.NewAuditEvent(domain.EventContextRetrieved, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	e.BucketID = primaryBucketID
	return r.emit(ctx, e)
}

// RuleApplied records one rule matching (whether or not it won conflict
// resolution).
func (r *Recorder) RuleApplied(ctx context.Context, documentID, ruleID string) error {
	e := domain.NewAuditEvent(domain.EventRuleApplied, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	e.RuleID = ruleID
	return r.emit(ctx, e)
}

// RuleOverride records the single rule that won conflict resolution and
// changed the final label.
func (r *Recorder) RuleOverride(ctx context.Context, documentID, ruleID string, from, to domain.Severity) error {
	e := domain.NewAuditEvent(domain.EventRuleOverride, domain.AuditWarning, r.sessionID)
	e.DocumentID = documentID
	e.RuleID = ruleID
	e.Details = map[string]interface{}{"from": from, "to": to}
	return r.emit(ctx, e)
}

// ConfidenceWarning records a raised confidence warning.
func (r *Recorder) ConfidenceWarning(ctx context.Context, documentID string, w *domain.ConfidenceWarning) error {
	sev := domain.AuditWarning
	if w.Level == domain.WarningCritical {
		sev = domain.AuditCritical
	}
	e := domain.NewAuditEvent(domain.EventConfidenceWarning, sev, r.sessionID)
	e.DocumentID = documentID
	e.Details = map[string]interface{}{"level": w.Level, "reasons": w.Reasons}
	return r.emit(ctx, e)
}

// ClassificationCompleted records classification_completed with the full
// decision trail.
func (r *Recorder) ClassificationCompleted(ctx context.Context, documentID string, trail domain.DecisionTrail) error {
	e := domain.NewAuditEvent(domain.EventClassificationCompleted, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	e.ClassificationID = trail.FinalDecision.ClassificationID
	e.DecisionTrail = &trail
	e.Performance = &domain.AuditPerformance{DurationMS: trail.ProcessingTimeMS}
	return r.emit(ctx, e)
}

// ClassificationFailed records classification_failed with the triggering error.
func (r *Recorder) ClassificationFailed(ctx context.Context, documentID string, cause error) error {
	e := domain.NewAuditEvent(domain.EventClassificationFailed, domain.AuditError, r.sessionID)
	e.DocumentID = documentID
	e.Error = &domain.AuditErrorRecord{Type: "classification_failed", Message: cause.Error()}
	return r.emit(ctx, e)
}

// ResultStored records result_stored, separately from classification_completed
// since persistence can fail independently of classification succeeding.
func (r *Recorder) ResultStored(ctx context.Context, documentID, classificationID string) error {
	e := domain.NewAuditEvent(domain.EventResultStored, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	e.ClassificationID = classificationID
	return r.emit(ctx, e)
}

// ReprocessingStarted records reprocessing_started.
func (r *Recorder) ReprocessingStarted(ctx context.Context, documentID, classificationID string) error {
	e := domain.NewAuditEvent(domain.EventReprocessingStarted, domain.AuditInfo, r.sessionID)
	e.DocumentID = documentID
	e.ClassificationID = classificationID
	return r.emit(ctx, e)
}

// ReprocessingCompleted records reprocessing_completed with the old/new
// label and confidence delta.
func (r *Recorder) ReprocessingCompleted(ctx context.Context, diff domain.ReprocessDiff) error {
	e := domain.NewAuditEvent(domain.EventReprocessingCompleted, domain.AuditInfo, r.sessionID)
	e.ClassificationID = diff.ClassificationID
	e.Details = map[string]interface{}{
		"old_label": diff.OldLabel, "new_label": diff.NewLabel,
		"old_confidence": diff.OldConfidence, "new_confidence": diff.NewConfidence,
		"confidence_delta": diff.ConfidenceDelta, "label_changed": diff.LabelChanged,
	}
	return r.emit(ctx, e)
}

// SystemError records an out-of-band failure not tied to one classification
// (e.g. a batch-level or bucket-recompute failure).
func (r *Recorder) SystemError(ctx context.Context, errType, message string) error {
	e := domain.NewAuditEvent(domain.EventSystemError, domain.AuditError, r.sessionID)
	e.Error = &domain.AuditErrorRecord{Type: errType, Message: message}
	return r.emit(ctx, e)
}
