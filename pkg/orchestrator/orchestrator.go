// Package orchestrator implements C8: driving one document through
// embedding, context retrieval, LLM classification, rule overrides, and
// confidence scoring in sequence, persisting the result, and emitting the
// full audit trail the pipeline's decision is built from.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/audit"
	"github.com/jordigilh/legal-severity-classifier/pkg/classifier"
	"github.com/jordigilh/legal-severity-classifier/pkg/confidence"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	"github.com/jordigilh/legal-severity-classifier/pkg/embedding"
	"github.com/jordigilh/legal-severity-classifier/pkg/retrieval"
	"github.com/jordigilh/legal-severity-classifier/pkg/rules"
	"github.com/jordigilh/legal-severity-classifier/pkg/shared/logging"
)

// Embedder is the subset of the embedding client (C1) the orchestrator
// consumes directly, for documents that arrive without a precomputed
// embedding.
type Embedder interface {
	Embed(ctx context.Context, text string, hint embedding.TaskHint) ([]float64, error)
}

// BucketLoader is the subset of the bucket store the orchestrator needs:
// the current bucket set to retrieve context against.
type BucketLoader interface {
	ListAll(ctx context.Context) ([]*domain.Bucket, error)
}

// ContextBuilder is the subset of the context retriever (C4) the
// orchestrator consumes.
type ContextBuilder interface {
	BuildContext(ctx context.Context, queryVec []float64, bucketList []*domain.Bucket) (domain.ContextBlock, error)
}

// Classifier is the subset of the LLM classifier (C5) the orchestrator
// consumes.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request, renderedContext string) classifier.Result
}

// RuleProvider is the subset of the rule store the orchestrator needs.
type RuleProvider interface {
	ListActive(ctx context.Context) ([]*domain.Rule, error)
}

// RuleEvaluator is the subset of the rule engine (C6) the orchestrator
// consumes.
type RuleEvaluator interface {
	Evaluate(doc *domain.Document, activeRules []*domain.Rule) rules.Outcome
}

// Calibrator is the subset of the confidence calculator's historical
// calibration (C7) the orchestrator consumes.
type Calibrator interface {
	Factor(ctx context.Context, predictedLabel domain.Severity, myConfidence float64) (float64, error)
}

// ResultStore is the subset of the classification store the orchestrator
// persists results to.
type ResultStore interface {
	Put(ctx context.Context, r *domain.ClassificationResult) error
	Get(ctx context.Context, id string) (*domain.ClassificationResult, error)
	ListForDocument(ctx context.Context, documentID string) ([]*domain.ClassificationResult, error)
}

// DocumentLoader is the subset of the document store the orchestrator
// needs, used during reprocessing to reload the source document.
type DocumentLoader interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
}

// AuditAppender is the append-only sink the orchestrator's per-session
// audit.Recorder writes through.
type AuditAppender interface {
	Append(ctx context.Context, e *domain.AuditEvent) error
}

// Deps bundles every collaborator the orchestrator drives. Fields left nil
// degrade gracefully: a bucket/reference-store read failure proceeds with
// empty context; the rule engine and calibrator are optional enrichments,
// not hard dependencies.
type Deps struct {
	Embedder       Embedder
	Buckets        BucketLoader
	ContextBuilder ContextBuilder
	Classifier     Classifier
	RuleProvider   RuleProvider
	RuleEngine     RuleEvaluator
	Effectiveness  rules.EffectivenessStore
	Calibrator     Calibrator
	Results        ResultStore
	Documents      DocumentLoader
	Audit          AuditAppender
	Metrics        *Metrics
	Escalator      *Escalator
	ConfidenceCfg  config.ConfidenceConfig
	ModelVersion   string
	Logger         *logrus.Logger
}

// Orchestrator is C8.
type Orchestrator struct {
	deps Deps
}

// New builds an Orchestrator over deps.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) thresholds() confidence.Thresholds {
	return confidence.Thresholds{
		Low: o.deps.ConfidenceCfg.LowThreshold, Medium: o.deps.ConfidenceCfg.MediumThreshold,
		High: o.deps.ConfidenceCfg.HighThreshold, Critical: o.deps.ConfidenceCfg.CriticalThreshold,
	}
}

// Classify drives doc through the full classification pipeline — context
// retrieval, LLM classification, rule overrides, confidence scoring — and
// returns the persisted result, possibly a fallback one with a warning.
// It returns an error instead when ctx is cancelled or its deadline is
// exceeded before the pipeline starts, when the document's embedding
// cannot be obtained, or when the assembled result fails validation.
func (o *Orchestrator) Classify(ctx context.Context, doc *domain.Document) (*domain.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	rec := audit.NewRecorder(o.deps.Audit, sessionID)
	started := time.Now()

	if err := rec.ClassificationStarted(ctx, doc.ID); err != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(err).Warn("failed to record classification_started")
	}

	result, trail, err := o.runPipeline(ctx, doc, rec, sessionID)
	if err != nil {
		if recErr := rec.ClassificationFailed(ctx, doc.ID, err); recErr != nil && o.deps.Logger != nil {
			o.deps.Logger.WithError(recErr).Warn("failed to record classification_failed")
		}
		if o.deps.Metrics != nil {
			o.deps.Metrics.ObserveFailure()
		}
		return nil, err
	}

	trail.ProcessingTimeMS = time.Since(started).Milliseconds()
	trail.FinalDecision = *result

	if o.deps.Results != nil {
		if err := o.deps.Results.Put(ctx, result); err != nil {
			if o.deps.Logger != nil {
				o.deps.Logger.WithFields(logging.PipelineFields("persist_result", sessionID).Error(err).ToLogrus()).Error("failed to persist classification result")
			}
		} else if recErr := rec.ResultStored(ctx, doc.ID, result.ClassificationID); recErr != nil && o.deps.Logger != nil {
			o.deps.Logger.WithError(recErr).Warn("failed to record result_stored")
		}
	}

	if err := rec.ClassificationCompleted(ctx, doc.ID, trail); err != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(err).Warn("failed to record classification_completed")
	}
	if o.deps.Metrics != nil {
		o.deps.Metrics.ObserveDuration(time.Since(started), string(result.RoutingDecision))
	}
	o.deps.Escalator.EscalateIfNeeded(result)

	return result, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, doc *domain.Document, rec *audit.Recorder, sessionID string) (*domain.ClassificationResult, domain.DecisionTrail, error) {
	trail := domain.DecisionTrail{InputSummary: summarize(doc)}

	queryVec, err := o.resolveEmbedding(ctx, doc)
	if err != nil {
		return nil, trail, err
	}

	contextBlock := o.retrieveContext(ctx, doc, rec, queryVec, &trail, sessionID)

	classifyResult := o.deps.Classifier.Classify(ctx, classifier.Request{
		DocumentID: doc.ID, Text: doc.Text, Metadata: doc.Metadata, Context: contextBlock,
	}, retrieval.RenderForPrompt(contextBlock, nil, 0))

	trail.LLMResponse = domain.LLMResponseSummary{
		Label: classifyResult.Label, Confidence: classifyResult.Confidence,
		Rationale: classifyResult.Rationale, Fallback: classifyResult.Fallback,
	}

	evidence := buildEvidence(contextBlock)
	trail.BucketEvidence = map[string][]domain.ClassificationEvidence{}
	for _, e := range evidence {
		trail.BucketEvidence[e.BucketID] = append(trail.BucketEvidence[e.BucketID], e)
	}

	finalLabel := classifyResult.Label
	rationale := classifyResult.Rationale
	var appliedRuleIDs []string
	var matchedRules []*domain.Rule

	outcome, err := o.evaluateRules(ctx, doc)
	if err != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(err).Warn("rule evaluation failed, proceeding without rule overrides")
	}
	if outcome.HasOverride {
		overriddenLabel, overriddenRationale := rules.ApplyOverride(rationale, outcome)
		finalLabel = overriddenLabel
		rationale = overriddenRationale
		appliedRuleIDs = []string{outcome.AppliedRule.RuleID}
		if recErr := rec.RuleOverride(ctx, doc.ID, outcome.AppliedRule.RuleID, classifyResult.Label, finalLabel); recErr != nil && o.deps.Logger != nil {
			o.deps.Logger.WithError(recErr).Warn("failed to record rule_override")
		}
	}
	for _, m := range outcome.Matches {
		matchedRules = append(matchedRules, m.Rule)
		if recErr := rec.RuleApplied(ctx, doc.ID, m.Rule.RuleID); recErr != nil && o.deps.Logger != nil {
			o.deps.Logger.WithError(recErr).Warn("failed to record rule_applied")
		}
	}

	factors := o.computeFactors(ctx, evidence, matchedRules, finalLabel, classifyResult.Confidence)
	trail.Factors = factors

	finalConfidence := confidence.Combine(
		factors.ModelConfidence, factors.ChunkSimilarity, factors.RuleOverrideScore,
		factors.EvidenceQuality, factors.HistoricalCalibration,
		o.deps.ConfidenceCfg.Weights, o.deps.Logger,
	)

	if outcome.HasOverride && o.deps.Effectiveness != nil {
		confidenceDelta := finalConfidence - classifyResult.Confidence
		successful := finalLabel != classifyResult.Label && confidenceDelta >= 0
		if err := rules.RecordApplication(ctx, o.deps.Effectiveness, outcome.AppliedRule.RuleID, confidenceDelta, successful); err != nil && o.deps.Logger != nil {
			o.deps.Logger.WithError(err).Warn("failed to record rule effectiveness")
		}
	}

	warning := confidence.EvaluateWarning(confidence.WarningInputs{
		Factors: factors, Evidence: evidence, MatchedRules: matchedRules,
		PredictedLabel: finalLabel, FinalConfidence: finalConfidence,
	}, o.thresholds())
	if warning != nil {
		if recErr := rec.ConfidenceWarning(ctx, doc.ID, warning); recErr != nil && o.deps.Logger != nil {
			o.deps.Logger.WithError(recErr).Warn("failed to record confidence_warning")
		}
	}
	routing := confidence.Route(warning)

	result, err := domain.NewClassificationResult(doc.ID, finalLabel, finalConfidence, rationale, routing, o.deps.ModelVersion)
	if err != nil {
		return nil, trail, err
	}
	result.Evidence = evidence
	result.PrimaryBucketID = contextBlock.PrimaryBucketID
	result.AppliedRuleIDs = appliedRuleIDs
	result.ConfidenceWarning = warning

	return result, trail, nil
}

func (o *Orchestrator) resolveEmbedding(ctx context.Context, doc *domain.Document) ([]float64, error) {
	if len(doc.Embedding) > 0 {
		return doc.Embedding, nil
	}
	if o.deps.Embedder == nil {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "document has no embedding and no embedder is configured")
	}
	return o.deps.Embedder.Embed(ctx, doc.Text, embedding.TaskQuery)
}

// retrieveContext loads the current bucket set and builds the context
// block. A bucket/reference-store read failure degrades to an empty
// context rather than failing the classification.
func (o *Orchestrator) retrieveContext(ctx context.Context, doc *domain.Document, rec *audit.Recorder, queryVec []float64, trail *domain.DecisionTrail, sessionID string) domain.ContextBlock {
	if o.deps.Buckets == nil || o.deps.ContextBuilder == nil {
		return domain.EmptyContextBlock()
	}

	bucketList, err := o.deps.Buckets.ListAll(ctx)
	if err != nil {
		if o.deps.Logger != nil {
			o.deps.Logger.WithFields(logging.PipelineFields("load_buckets", sessionID).Error(err).ToLogrus()).Warn("failed to load buckets, proceeding with empty context")
		}
		return domain.EmptyContextBlock()
	}

	block, err := o.deps.ContextBuilder.BuildContext(ctx, queryVec, bucketList)
	if err != nil {
		if o.deps.Logger != nil {
			o.deps.Logger.WithFields(logging.PipelineFields("build_context", sessionID).Error(err).ToLogrus()).Warn("failed to build context block, proceeding with empty context")
		}
		return domain.EmptyContextBlock()
	}

	trail.SelectedBucketIDs = make([]string, 0, len(block.SelectedBuckets))
	for _, b := range block.SelectedBuckets {
		trail.SelectedBucketIDs = append(trail.SelectedBucketIDs, b.BucketID)
	}
	if recErr := rec.EvidenceCollected(ctx, doc.ID, len(block.Chunks)); recErr != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(recErr).Warn("failed to record evidence_collected")
	}
	if recErr := rec.ContextRetrieved(ctx, doc.ID, block.PrimaryBucketID); recErr != nil && o.deps.Logger != nil {
		o.deps.Logger.WithError(recErr).Warn("failed to record context_retrieved")
	}
	return block
}

func (o *Orchestrator) evaluateRules(ctx context.Context, doc *domain.Document) (rules.Outcome, error) {
	if o.deps.RuleProvider == nil || o.deps.RuleEngine == nil {
		return rules.Outcome{}, nil
	}
	active, err := o.deps.RuleProvider.ListActive(ctx)
	if err != nil {
		return rules.Outcome{}, err
	}
	return o.deps.RuleEngine.Evaluate(doc, active), nil
}

func (o *Orchestrator) computeFactors(ctx context.Context, evidence []domain.ClassificationEvidence, matchedRules []*domain.Rule, label domain.Severity, modelConfidence float64) domain.ConfidenceFactors {
	factors := domain.ConfidenceFactors{
		ModelConfidence:       modelConfidence,
		ChunkSimilarity:       confidence.ChunkSimilarity(evidence),
		RuleOverrideScore:     confidence.RuleOverrideScore(matchedRules),
		EvidenceQuality:       confidence.EvidenceQuality(evidence),
		HistoricalCalibration: 1.0,
	}
	if o.deps.Calibrator != nil {
		if cal, err := o.deps.Calibrator.Factor(ctx, label, modelConfidence); err == nil {
			factors.HistoricalCalibration = cal
		} else if o.deps.Logger != nil {
			o.deps.Logger.WithError(err).Warn("historical calibration lookup failed, using neutral factor")
		}
	}
	return factors
}

func buildEvidence(block domain.ContextBlock) []domain.ClassificationEvidence {
	evidence := make([]domain.ClassificationEvidence, 0, len(block.Chunks))
	for _, c := range block.Chunks {
		evidence = append(evidence, domain.ClassificationEvidence{
			DocumentID: c.SourceDocumentID, ChunkText: c.Text, SimilarityScore: c.Score, BucketID: c.BucketID,
		})
	}
	return evidence
}

func summarize(doc *domain.Document) string {
	text := doc.Text
	const maxLen = 200
	if len(text) > maxLen {
		text = text[:maxLen] + "…"
	}
	return fmt.Sprintf("document %s (%s): %s", doc.ID, doc.Metadata.Filename, text)
}
