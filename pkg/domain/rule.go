package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
)

// ConditionOperator is the closed set of field-comparison operators a rule
// condition supports.
type ConditionOperator string

const (
	OpContains    ConditionOperator = "contains"
	OpRegexMatch  ConditionOperator = "regex_match"
	OpWordCountGT ConditionOperator = "word_count_gt"
	OpWordCountLT ConditionOperator = "word_count_lt"
)

// ConditionLogic is the top-level combinator joining a rule's conditions.
type ConditionLogic string

const (
	LogicAND ConditionLogic = "AND"
	LogicOR  ConditionLogic = "OR"
)

// ConditionField is the closed set of document fields a condition may target.
type ConditionField string

const (
	FieldText             ConditionField = "text"
	FieldMetadataFilename ConditionField = "metadata.filename"
	FieldMetadataTags     ConditionField = "metadata.tags"
	FieldDocumentType     ConditionField = "document_type"
)

var validFields = map[ConditionField]bool{
	FieldText: true, FieldMetadataFilename: true, FieldMetadataTags: true, FieldDocumentType: true,
}

// Condition is one clause of a Rule. Value may be a string, number, or
// bool depending on Operator.
type Condition struct {
	Operator      ConditionOperator `json:"operator"`
	Field         ConditionField    `json:"field"`
	Value         interface{}       `json:"value"`
	CaseSensitive bool              `json:"case_sensitive"`
}

// Validate checks that the field is recognized and the value shape matches
// the operator (word-count operators require a non-negative integer).
func (c Condition) Validate() error {
	if !validFields[c.Field] {
		return apperrors.NewInvalidInputError("unknown condition field").WithDetailsf("field=%s", c.Field)
	}
	switch c.Operator {
	case OpWordCountGT, OpWordCountLT:
		n, ok := asNonNegativeInt(c.Value)
		if !ok || n < 0 {
			return apperrors.NewInvalidInputError("word-count comparand must be a non-negative integer")
		}
	case OpContains, OpRegexMatch:
		if _, ok := c.Value.(string); !ok {
			return apperrors.NewInvalidInputError("contains/regex_match comparand must be a string")
		}
	default:
		return apperrors.NewInvalidInputError("unknown condition operator").WithDetailsf("operator=%s", c.Operator)
	}
	return nil
}

func asNonNegativeInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == float64(int(n))
	default:
		return 0, false
	}
}

// Rule is a deterministic classification-override rule.
type Rule struct {
	RuleID           string      `json:"rule_id"`
	Name             string      `json:"name"`
	Description      string      `json:"description,omitempty"`
	Conditions       []Condition `json:"conditions"`
	ConditionLogic   ConditionLogic `json:"condition_logic"`
	SeverityOverride Severity    `json:"severity_override"`
	Priority         int         `json:"priority"`
	Active           bool        `json:"active"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	CreatedBy        string      `json:"created_by,omitempty"`
}

// NewRule constructs a rule with a generated id and validated shape.
func NewRule(name string, conditions []Condition, logic ConditionLogic, override Severity, priority int, createdBy string) (*Rule, error) {
	now := time.Now().UTC()
	r := &Rule{
		RuleID:           uuid.NewString(),
		Name:             name,
		Conditions:       conditions,
		ConditionLogic:   logic,
		SeverityOverride: override,
		Priority:         priority,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
		CreatedBy:        createdBy,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate enforces the rule invariants: priority in [1,100], at least one
// condition, AND/OR logic, each condition individually valid.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return apperrors.NewInvalidInputError("rule name cannot be empty")
	}
	if len(r.Conditions) == 0 {
		return apperrors.NewInvalidInputError("rule must have at least one condition")
	}
	if r.ConditionLogic != LogicAND && r.ConditionLogic != LogicOR {
		return apperrors.NewInvalidInputError("condition_logic must be AND or OR")
	}
	if r.Priority < 1 || r.Priority > 100 {
		return apperrors.NewInvalidInputError("priority must be between 1 and 100")
	}
	if !r.SeverityOverride.Valid() {
		return apperrors.NewInvalidInputError("severity_override must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	for i, c := range r.Conditions {
		if err := c.Validate(); err != nil {
			return apperrors.Wrapf(err, apperrors.ErrorTypeInvalidInput, "condition %d invalid", i)
		}
	}
	return nil
}

// RuleVersion is an immutable, append-only snapshot of a Rule.
type RuleVersion struct {
	RuleID     string    `json:"rule_id"`
	Version    int       `json:"version"`
	Rule       Rule      `json:"rule"`
	Author     string    `json:"author,omitempty"`
	ChangeNote string    `json:"change_description,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RuleEffectiveness is the per-rule running aggregate tracked by the rule
// engine and surfaced via the effectiveness-report read path.
type RuleEffectiveness struct {
	RuleID              string    `json:"rule_id"`
	TotalApplications   int64     `json:"total_applications"`
	SuccessfulOverrides int64     `json:"successful_overrides"`
	MeanConfidenceDelta float64   `json:"mean_confidence_delta"`
	LastAppliedAt       time.Time `json:"last_applied_at"`
}

// OverrideRate returns SuccessfulOverrides/TotalApplications, or 0 when no
// applications have been recorded yet.
func (e RuleEffectiveness) OverrideRate() float64 {
	if e.TotalApplications == 0 {
		return 0
	}
	return float64(e.SuccessfulOverrides) / float64(e.TotalApplications)
}
