package store

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// RuleStore persists rules, their append-only version history, and
// per-rule effectiveness counters.
type RuleStore struct {
	store *Store
}

func NewRuleStore(s *Store) *RuleStore {
	return &RuleStore{store: s}
}

func (rs *RuleStore) Put(ctx context.Context, r *domain.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	return rs.store.put(ctx, CollectionRules, r.RuleID, r)
}

func (rs *RuleStore) Get(ctx context.Context, id string) (*domain.Rule, error) {
	raw, err := rs.store.get(ctx, CollectionRules, id)
	if err != nil {
		return nil, err
	}
	var r domain.Rule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored rule")
	}
	return &r, nil
}

func (rs *RuleStore) Delete(ctx context.Context, id string) error {
	return rs.store.delete(ctx, CollectionRules, id)
}

// ListActive returns every rule with active == true, for the engine's
// per-evaluation rule set.
func (rs *RuleStore) ListActive(ctx context.Context) ([]*domain.Rule, error) {
	rows, err := rs.store.list(ctx, CollectionRules, []Filter{{Field: "active", Value: "true"}}, 100000, 0)
	if err != nil {
		return nil, err
	}
	rules := make([]*domain.Rule, 0, len(rows))
	for _, raw := range rows {
		var r domain.Rule
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored rule")
		}
		rules = append(rules, &r)
	}
	return rules, nil
}

// PutVersion appends an immutable version snapshot, keyed by rule_id+version
// so repeated writes of the same version are idempotent.
func (rs *RuleStore) PutVersion(ctx context.Context, v *domain.RuleVersion) error {
	id := fmt.Sprintf("%s:%d", v.RuleID, v.Version)
	return rs.store.put(ctx, CollectionRuleVersions, id, v)
}

// effectivenessID namespaces a rule's effectiveness counters within the
// rules collection so persisting them needs no new table (the collection
// set is closed).
func effectivenessID(ruleID string) string {
	return "eff:" + ruleID
}

// PutEffectiveness upserts a rule's running effectiveness counters.
func (rs *RuleStore) PutEffectiveness(ctx context.Context, e *domain.RuleEffectiveness) error {
	return rs.store.put(ctx, CollectionRules, effectivenessID(e.RuleID), e)
}

// GetEffectiveness loads a rule's running effectiveness counters, or a
// zero-value report if none have been recorded yet.
func (rs *RuleStore) GetEffectiveness(ctx context.Context, ruleID string) (*domain.RuleEffectiveness, error) {
	raw, err := rs.store.get(ctx, CollectionRules, effectivenessID(ruleID))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return &domain.RuleEffectiveness{RuleID: ruleID}, nil
		}
		return nil, err
	}
	var e domain.RuleEffectiveness
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored rule effectiveness")
	}
	return &e, nil
}
