package orchestrator

import (
	"context"
	"sync"

	"github.com/jordigilh/legal-severity-classifier/pkg/classifier"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	"github.com/jordigilh/legal-severity-classifier/pkg/embedding"
	"github.com/jordigilh/legal-severity-classifier/pkg/rules"
)

type fakeEmbedder struct {
	vec []float64
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string, _ embedding.TaskHint) ([]float64, error) {
	return f.vec, f.err
}

type fakeBucketLoader struct {
	buckets []*domain.Bucket
	err     error
}

func (f *fakeBucketLoader) ListAll(_ context.Context) ([]*domain.Bucket, error) {
	return f.buckets, f.err
}

type fakeContextBuilder struct {
	block domain.ContextBlock
	err   error
}

func (f *fakeContextBuilder) BuildContext(_ context.Context, _ []float64, _ []*domain.Bucket) (domain.ContextBlock, error) {
	return f.block, f.err
}

type fakeClassifier struct {
	result classifier.Result
}

func (f *fakeClassifier) Classify(_ context.Context, _ classifier.Request, _ string) classifier.Result {
	return f.result
}

type fakeRuleProvider struct {
	active []*domain.Rule
	err    error
}

func (f *fakeRuleProvider) ListActive(_ context.Context) ([]*domain.Rule, error) {
	return f.active, f.err
}

type fakeRuleEvaluator struct {
	outcome rules.Outcome
}

func (f *fakeRuleEvaluator) Evaluate(_ *domain.Document, _ []*domain.Rule) rules.Outcome {
	return f.outcome
}

type fakeCalibrator struct {
	factor float64
	err    error
}

func (f *fakeCalibrator) Factor(_ context.Context, _ domain.Severity, _ float64) (float64, error) {
	return f.factor, f.err
}

type fakeResultStore struct {
	mu      sync.Mutex
	byID    map[string]*domain.ClassificationResult
	putErr  error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{byID: map[string]*domain.ClassificationResult{}}
}

func (f *fakeResultStore) Put(_ context.Context, r *domain.ClassificationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	cp := *r
	f.byID[r.ClassificationID] = &cp
	return nil
}

func (f *fakeResultStore) Get(_ context.Context, id string) (*domain.ClassificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return nil, context.Canceled
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResultStore) ListForDocument(_ context.Context, documentID string) ([]*domain.ClassificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.ClassificationResult
	for _, r := range f.byID {
		if r.DocumentID == documentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeDocumentLoader struct {
	byID map[string]*domain.Document
	err  error
}

func (f *fakeDocumentLoader) Get(_ context.Context, id string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.byID[id]
	if !ok {
		return nil, context.Canceled
	}
	return d, nil
}

type fakeAuditAppender struct {
	mu     sync.Mutex
	events []*domain.AuditEvent
}

func (f *fakeAuditAppender) Append(_ context.Context, e *domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAuditAppender) kinds() []domain.AuditEventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.AuditEventKind, len(f.events))
	for i, e := range f.events {
		out[i] = e.Kind
	}
	return out
}

type fakeEffectivenessStore struct {
	mu      sync.Mutex
	records map[string]*domain.RuleEffectiveness
}

func newFakeEffectivenessStore() *fakeEffectivenessStore {
	return &fakeEffectivenessStore{records: map[string]*domain.RuleEffectiveness{}}
}

func (f *fakeEffectivenessStore) GetEffectiveness(_ context.Context, ruleID string) (*domain.RuleEffectiveness, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[ruleID]; ok {
		cp := *r
		return &cp, nil
	}
	return &domain.RuleEffectiveness{RuleID: ruleID}, nil
}

func (f *fakeEffectivenessStore) PutEffectiveness(_ context.Context, e *domain.RuleEffectiveness) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.records[e.RuleID] = &cp
	return nil
}

func testDoc(id string) *domain.Document {
	return &domain.Document{
		ID:       id,
		Text:     "This agreement may be terminated for material breach.",
		Embedding: []float64{0.1, 0.2, 0.3},
		Metadata: domain.DocumentMetadata{Filename: id + ".txt"},
	}
}
