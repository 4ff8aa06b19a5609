package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	"github.com/jordigilh/legal-severity-classifier/pkg/embedding"
	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
	"github.com/jordigilh/legal-severity-classifier/pkg/shared/logging"
)

// BucketSelector is the subset of the bucket engine (C3) the retriever
// consumes: ranking buckets against a query vector.
type BucketSelector interface {
	SelectRelevant(queryVec []float64, bucketList []*domain.Bucket, topK int, minSim float64) ([]domain.BucketSelection, error)
}

// Embedder is the subset of the embedding client (C1) the retriever
// consumes: embedding a chunk of text under the query task hint.
type Embedder interface {
	Embed(ctx context.Context, text string, hint embedding.TaskHint) ([]float64, error)
}

// DocumentLoader is the subset of the reference store (C2) the retriever
// consumes: bulk document lookup by id.
type DocumentLoader interface {
	GetMany(ctx context.Context, ids []string) ([]*domain.Document, error)
}

// Retriever is C4.
type Retriever struct {
	selector BucketSelector
	embedder Embedder
	docs     DocumentLoader
	cfg      config.RetrievalConfig
	logger   *logrus.Logger
}

// New builds a Retriever over the bucket engine, embedding client, and
// document store it needs to assemble a ContextBlock.
func New(selector BucketSelector, embedder Embedder, docs DocumentLoader, cfg config.RetrievalConfig, logger *logrus.Logger) *Retriever {
	return &Retriever{selector: selector, embedder: embedder, docs: docs, cfg: cfg, logger: logger}
}

// scoredChunk is an intermediate ranking record before the per-bucket
// budget cut and the final global merge.
type scoredChunk struct {
	chunk domain.ContextChunk
	score float64
}

// BuildContext selects the top-k relevant buckets for queryVec, chunks and
// scores their member documents against it, and assembles the resulting
// ContextBlock. An empty selection (no bucket clears min_bucket_similarity)
// returns the well-defined empty sentinel block, never an error.
func (r *Retriever) BuildContext(ctx context.Context, queryVec []float64, bucketList []*domain.Bucket) (domain.ContextBlock, error) {
	selections, err := r.selector.SelectRelevant(queryVec, bucketList, r.cfg.TopKBuckets, r.cfg.MinBucketSimilarity)
	if err != nil {
		return domain.ContextBlock{}, err
	}
	if len(selections) == 0 {
		return domain.EmptyContextBlock(), nil
	}

	budget := r.cfg.MaxContextChunks / len(selections)
	if budget < 1 {
		budget = 1
	}

	var all []scoredChunk
	summaries := make([]domain.BucketSummary, 0, len(selections))
	for _, sel := range selections {
		summaries = append(summaries, domain.BucketSummary{
			BucketID:   sel.Bucket.BucketID,
			BucketName: sel.Bucket.BucketName,
			Similarity: sel.Similarity,
		})

		bucketChunks := r.scoreBucket(ctx, queryVec, sel.Bucket)
		sort.SliceStable(bucketChunks, func(i, j int) bool { return bucketChunks[i].score > bucketChunks[j].score })
		if len(bucketChunks) > budget {
			bucketChunks = bucketChunks[:budget]
		}
		all = append(all, bucketChunks...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if len(all) > r.cfg.MaxContextChunks {
		all = all[:r.cfg.MaxContextChunks]
	}

	chunks := make([]domain.ContextChunk, len(all))
	var total float64
	for i, sc := range all {
		chunks[i] = sc.chunk
		total += sc.score
	}

	primary := selections[0].Bucket
	return domain.ContextBlock{
		PrimaryBucketID:      primary.BucketID,
		PrimaryBucketName:    primary.BucketName,
		SelectedBuckets:      summaries,
		Chunks:               chunks,
		TotalSimilarityScore: total,
	}, nil
}

// scoreBucket loads bucket's member documents, chunks each, and scores
// every chunk against queryVec. A chunk whose embedding cannot be obtained
// is skipped rather than aborting the whole retrieval — a
// stale/unreachable embedding provider should narrow context, not fail
// the pipeline (the orchestrator already tolerates INSUFFICIENT_CONTEXT).
func (r *Retriever) scoreBucket(ctx context.Context, queryVec []float64, bucket *domain.Bucket) []scoredChunk {
	docs, err := r.docs.GetMany(ctx, bucket.DocumentIDs)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logging.PipelineFields("retrieve_bucket_documents", "").ToLogrus()).WithError(err).Warn("failed to load bucket member documents")
		}
		return nil
	}

	var out []scoredChunk
	for _, doc := range docs {
		for _, text := range ChunkText(doc.Text, r.cfg.ChunkSize, r.cfg.ChunkOverlap) {
			vec := r.chunkEmbedding(ctx, doc, text)
			if vec == nil {
				continue
			}
			var severity domain.Severity
			if doc.SeverityLabel != nil {
				severity = *doc.SeverityLabel
			}
			out = append(out, scoredChunk{
				chunk: domain.ContextChunk{
					SourceDocumentID: doc.ID,
					SourceFilename:   doc.Metadata.Filename,
					SourceSeverity:   severity,
					BucketID:         bucket.BucketID,
					Text:             text,
					Score:            sharedmath.ClampedCosineSimilarity(queryVec, vec),
				},
				score: sharedmath.ClampedCosineSimilarity(queryVec, vec),
			})
		}
	}
	return out
}

// chunkEmbedding reuses the document's own embedding when the chunk is the
// whole document verbatim (the common case for short reference documents,
// which chunk to exactly one piece), otherwise embeds the chunk text
// directly under the query task hint.
func (r *Retriever) chunkEmbedding(ctx context.Context, doc *domain.Document, chunk string) []float64 {
	if len(doc.Embedding) > 0 && strings.TrimSpace(doc.Text) == chunk {
		return doc.Embedding
	}
	vec, err := r.embedder.Embed(ctx, chunk, embedding.TaskQuery)
	if err != nil {
		if r.logger != nil {
			r.logger.WithFields(logging.AIFields("embed_chunk", "").ToLogrus()).WithError(err).Warn("failed to embed context chunk")
		}
		return nil
	}
	return vec
}
