package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventKind is the closed enumeration of audit-trail event types.
type AuditEventKind string

const (
	EventClassificationStarted AuditEventKind = "classification_started"
	EventContextRetrieved AuditEventKind = "context_retrieved"
	EventEvidenceCollected AuditEventKind = "evidence_collected"
	EventRuleApplied AuditEventKind = "rule_applied"
	EventRuleOverride AuditEventKind = "rule_override"
	EventConfidenceWarning AuditEventKind = "confidence_warning"
	EventClassificationCompleted AuditEventKind = "classification_completed"
	EventClassificationFailed AuditEventKind = "classification_failed"
	EventResultStored AuditEventKind = "result_stored"
	EventReprocessingStarted AuditEventKind = "reprocessing_started"
	EventReprocessingCompleted AuditEventKind = "reprocessing_completed"
	EventBucketCreated AuditEventKind = "bucket_created"
	EventBucketUpdated AuditEventKind = "bucket_updated"
	EventRuleCreated AuditEventKind = "rule_created"
	EventRuleUpdated AuditEventKind = "rule_updated"
	EventRuleDeleted AuditEventKind = "rule_deleted"
	EventSystemError AuditEventKind = "system_error"
)

// AuditSeverity grades an AuditEvent independently of the document
// severity tiers.
type AuditSeverity string

const (
	AuditInfo AuditSeverity = "info"
	AuditWarning AuditSeverity = "warning"
	AuditError AuditSeverity = "error"
	AuditCritical AuditSeverity = "critical"
)

// AuditErrorRecord carries structured failure detail for error/critical events.
type AuditErrorRecord struct {
	Type string `json:"type"`
	Message string `json:"message"`
	Context string `json:"context,omitempty"`
}

// AuditPerformance captures per-operation timing attached to select events.
type AuditPerformance struct {
	DurationMS int64 `json:"duration_ms"`
}

// AuditEvent is one append-only entry in the classification pipeline's
// audit trail. Never updated after write.
type AuditEvent struct {
	ID string `json:"id"`
	Kind AuditEventKind `json:"kind"`
	Severity AuditSeverity `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string `json:"session_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	ClassificationID string `json:"classification_id,omitempty"`
	BucketID string `json:"bucket_id,omitempty"`
	RuleID string `json:"rule_id,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	DecisionTrail *DecisionTrail `json:"decision_trail,omitempty"`
	Error *AuditErrorRecord `json:"error,omitempty"`
	Performance *AuditPerformance `json:"performance,omitempty"`
	// emissionSeq breaks ties between events sharing a timestamp within one
	// session, preserving a deterministic causal order.
	EmissionSeq int64 `json:"emission_seq"`
}

// NewAuditEvent builds an event with a generated id and current timestamp.
func NewAuditEvent(kind AuditEventKind, severity AuditSeverity, sessionID string) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}
}

// DecisionTrail is the structured record attached to a classification_completed
// event: input summary, selected buckets, per-bucket evidence, LLM response,
// factor breakdown, final decision, and processing time.
type DecisionTrail struct {
	InputSummary string `json:"input_summary"`
	SelectedBucketIDs []string `json:"selected_bucket_ids"`
	BucketEvidence map[string][]ClassificationEvidence `json:"bucket_evidence,omitempty"`
	LLMResponse LLMResponseSummary `json:"llm_response"`
	Factors ConfidenceFactors `json:"factors"`
	FinalDecision ClassificationResult `json:"final_decision"`
	ProcessingTimeMS int64 `json:"processing_time_ms"`
}

// LLMResponseSummary records the raw classifier output before rule/confidence
// post-processing, for the decision trail.
type LLMResponseSummary struct {
	Label Severity `json:"label"`
	Confidence float64 `json:"confidence"`
	Rationale string `json:"rationale"`
	Fallback bool `json:"fallback"`
}
