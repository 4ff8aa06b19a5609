package domain

// Severity is the four-tier classification label.
type Severity string

const (
	SeverityLow Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow: 0,
	SeverityMedium: 1,
	SeverityHigh: 2,
	SeverityCritical: 3,
}

// Valid reports whether s is one of the four closed severity values.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MoreRestrictive reports whether s outranks other (CRITICAL is the most
// restrictive, LOW the least). Invalid severities rank below all valid ones.
func (s Severity) MoreRestrictive(other Severity) bool {
	rs, ok := severityRank[s]
	if !ok {
		rs = -1
	}
	ro, ok := severityRank[other]
	if !ok {
		ro = -1
	}
	return rs > ro
}

// MostRestrictive returns whichever of a, b ranks higher.
func MostRestrictive(a, b Severity) Severity {
	if a.MoreRestrictive(b) {
		return a
	}
	return b
}

// DocumentRole distinguishes corpus reference material from documents
// actively being classified.
type DocumentRole string

const (
	RoleReference DocumentRole = "reference"
	RoleClassification DocumentRole = "classification"
)

// RoutingDecision is the pipeline's disposition of a classification result.
type RoutingDecision string

const (
	RoutingAutoAccept RoutingDecision = "auto_accept"
	RoutingHumanReview RoutingDecision = "human_review"
	RoutingHumanTriage RoutingDecision = "human_triage"
)

// WarningLevel grades how far a confidence-warning pushes a result toward
// mandatory human review.
type WarningLevel string

const (
	WarningNone WarningLevel = ""
	WarningLow WarningLevel = "low"
	WarningMedium WarningLevel = "medium"
	WarningHigh WarningLevel = "high"
	WarningCritical WarningLevel = "critical"
)

// WarningReason is one of the closed set of triggers accumulated by the
// confidence calculator.
type WarningReason string

const (
	ReasonLowModelConfidence WarningReason = "LOW_MODEL_CONFIDENCE"
	ReasonLowChunkSimilarity WarningReason = "LOW_CHUNK_SIMILARITY"
	ReasonPoorEvidenceQuality WarningReason = "POOR_EVIDENCE_QUALITY"
	ReasonNoRuleSupport WarningReason = "NO_RULE_SUPPORT"
	ReasonConflictingRules WarningReason = "CONFLICTING_RULES"
	ReasonHistoricalInaccuracy WarningReason = "HISTORICAL_INACCURACY"
	ReasonExtremeSeverityPrediction WarningReason = "EXTREME_SEVERITY_PREDICTION"
	ReasonInsufficientContext WarningReason = "INSUFFICIENT_CONTEXT"
	ReasonModelUncertainty WarningReason = "MODEL_UNCERTAINTY"
	ReasonInconsistentEvidence WarningReason = "INCONSISTENT_EVIDENCE"
)
