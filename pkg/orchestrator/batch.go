package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// batchDispatchDelay staggers the start of successive batch classifications
// so a large batch doesn't burst every document's LLM call in the same
// instant — the classifier's own retry/breaker settings assume some spacing
// between calls, not a thundering herd.
const batchDispatchDelay = 100 * time.Millisecond

// defaultBatchConcurrency bounds how many documents are classified at once
// within one batch, independent of how many documents the batch contains.
const defaultBatchConcurrency = 4

// BatchItem is one document's outcome within a batch run. Err is non-nil
// only for failures Classify itself couldn't degrade to a fallback result
// for (a cancelled context); ordinary per-document failures are folded into
// Result as a human_triage fallback classification instead, so a batch run
// never aborts partway through over one bad document.
type BatchItem struct {
	DocumentID string
	Result     *domain.ClassificationResult
	Err        error
}

// BatchOptions tunes one ClassifyBatch call.
type BatchOptions struct {
	// Concurrency caps how many documents classify simultaneously. Zero
	// uses defaultBatchConcurrency.
	Concurrency int
}

// ClassifyBatch runs Classify over every doc in docs. Each Classify call
// loads the bucket set itself, so the bucket list is read once per
// document and is not shared across the batch. Concurrency is bounded by opts.Concurrency; one document's
// failure produces a fallback result routed to human_triage and does not
// stop the rest of the batch from completing. Results are returned in the
// same order as docs.
func (o *Orchestrator) ClassifyBatch(ctx context.Context, docs []*domain.Document, opts BatchOptions) ([]BatchItem, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	items := make([]BatchItem, len(docs))
	var dispatchMu sync.Mutex
	var lastDispatch time.Time

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, doc := range docs {
		i, doc := i, doc
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				items[i] = BatchItem{DocumentID: doc.ID, Err: err}
				return err
			}

			dispatchMu.Lock()
			if wait := batchDispatchDelay - time.Since(lastDispatch); wait > 0 {
				dispatchMu.Unlock()
				select {
				case <-time.After(wait):
				case <-gCtx.Done():
					items[i] = BatchItem{DocumentID: doc.ID, Err: gCtx.Err()}
					return gCtx.Err()
				}
				dispatchMu.Lock()
			}
			lastDispatch = time.Now()
			dispatchMu.Unlock()

			result, err := o.Classify(gCtx, doc)
			if err != nil {
				result = fallbackBatchResult(doc, err)
			}
			items[i] = BatchItem{DocumentID: doc.ID, Result: result}
			return nil
		})
	}

	if err := g.Wait(); err != nil && gCtx.Err() != nil {
		return items, gCtx.Err()
	}
	return items, nil
}

// fallbackBatchResult builds the degraded result one batch item gets when
// its own classification pipeline errors out — routed straight to
// human_triage rather than silently dropping the document from the batch.
func fallbackBatchResult(doc *domain.Document, cause error) *domain.ClassificationResult {
	result, err := domain.NewClassificationResult(
		doc.ID, domain.SeverityMedium, 0,
		"batch classification failed: "+cause.Error(),
		domain.RoutingHumanTriage, "",
	)
	if err != nil {
		// NewClassificationResult only rejects malformed inputs, none of
		// which apply to this fixed, always-valid call.
		panic(err)
	}
	return result
}
