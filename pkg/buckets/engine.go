package buckets

import (
	"sort"
	"time"

	"github.com/jordigilh/legal-severity-classifier/internal/config"
	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
)

// Engine is C3: it takes no I/O dependency and mutates nothing handed to
// it — callers (the orchestrator, or an admin job) own persistence. This
// mirrors the rule engine's purity requirement and keeps recompute
// reproducible given the same documents and config.
type Engine struct {
	cfg config.ClusteringConfig
}

// New builds a bucket engine from the deployment's clustering configuration.
func New(cfg config.ClusteringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// BuildFrom clusters documents into semantic buckets, auto-selecting K per
// §4.3. Fewer than MinK documents yields a single bucket covering all of
// them. Clusters that end up empty after assignment are dropped; their
// would-be members are omitted from every bucket (orphans for admin to
// resolve via Validate).
func (e *Engine) BuildFrom(documents []*domain.Document) ([]*domain.Bucket, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	vectors := make([][]float64, len(documents))
	for i, d := range documents {
		vectors[i] = sharedmath.L2Normalize(d.Embedding)
	}

	if len(documents) < e.cfg.MinK {
		return e.singleBucket(documents)
	}

	candidates := chooseK(vectors, e.cfg)
	if len(candidates) == 0 {
		return e.singleBucket(documents)
	}
	k := reconcileK(candidates)

	var chosen kmeansRun
	for _, c := range candidates {
		if c.k == k {
			chosen = c.run
			break
		}
	}

	groups := make(map[int][]int, k)
	for i, cluster := range chosen.assignments {
		groups[cluster] = append(groups[cluster], i)
	}

	buckets := make([]*domain.Bucket, 0, k)
	for cluster := 0; cluster < k; cluster++ {
		members := groups[cluster]
		if len(members) == 0 {
			continue
		}
		memberIDs := make([]string, len(members))
		memberVecs := make([][]float64, len(members))
		for i, idx := range members {
			memberIDs[i] = documents[idx].ID
			memberVecs[i] = documents[idx].Embedding
		}
		b, err := domain.NewBucket(bucketName(cluster), memberIDs, memberVecs)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func (e *Engine) singleBucket(documents []*domain.Document) ([]*domain.Bucket, error) {
	ids := make([]string, len(documents))
	vecs := make([][]float64, len(documents))
	for i, d := range documents {
		ids[i] = d.ID
		vecs[i] = d.Embedding
	}
	b, err := domain.NewBucket(bucketName(0), ids, vecs)
	if err != nil {
		return nil, err
	}
	return []*domain.Bucket{b}, nil
}

func bucketName(ordinal int) string {
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	if ordinal < len(names) {
		return "bucket-" + names[ordinal]
	}
	return "bucket-" + string(rune('a'+ordinal%26)) + itoa(ordinal)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// SelectRelevant ranks buckets by cosine similarity of queryVec to their
// centroid, keeping the topK above minSim. A bucket with an undefined
// centroid (zero members) is skipped. Returns an empty slice, never an
// error, when no bucket clears the threshold.
func (e *Engine) SelectRelevant(queryVec []float64, bucketList []*domain.Bucket, topK int, minSim float64) ([]domain.BucketSelection, error) {
	if len(queryVec) == 0 {
		return nil, apperrors.NewInvalidInputError("query vector cannot be empty")
	}

	selections := make([]domain.BucketSelection, 0, len(bucketList))
	for _, b := range bucketList {
		if b.Empty() || len(b.CentroidEmbedding) == 0 {
			continue
		}
		sim := sharedmath.ClampedCosineSimilarity(queryVec, b.CentroidEmbedding)
		if sim < minSim {
			continue
		}
		selections = append(selections, domain.BucketSelection{Bucket: b, Similarity: sim})
	}

	sort.SliceStable(selections, func(i, j int) bool {
		return selections[i].Similarity > selections[j].Similarity
	})
	if topK > 0 && len(selections) > topK {
		selections = selections[:topK]
	}
	return selections, nil
}

// Merge combines b1 and b2 into one bucket, admin rebalancing's coarse
// path: the new centroid is the document-count-weighted average of the
// two source centroids, flagged stale so a subsequent recompute (driven
// from the real member embeddings, which Merge does not have) replaces it
// with the exact mean.
func (e *Engine) Merge(b1, b2 *domain.Bucket) (*domain.Bucket, error) {
	if b1 == nil || b2 == nil {
		return nil, apperrors.NewInvalidInputError("merge requires two non-nil buckets")
	}
	ids := append(append([]string(nil), b1.DocumentIDs...), b2.DocumentIDs...)
	merged := &domain.Bucket{
		BucketID:      newMergedID(b1, b2),
		BucketName:    b1.BucketName + "+" + b2.BucketName,
		DocumentIDs:   ids,
		DocumentCount: len(ids),
		Stale:         true,
	}
	merged.CentroidEmbedding = weightedCentroid(b1, b2)
	merged.CreatedAt = earlier(b1.CreatedAt, b2.CreatedAt)
	merged.UpdatedAt = laterOf(b1.UpdatedAt, b2.UpdatedAt)
	return merged, nil
}

func weightedCentroid(b1, b2 *domain.Bucket) []float64 {
	if len(b1.CentroidEmbedding) == 0 {
		return b2.CentroidEmbedding
	}
	if len(b2.CentroidEmbedding) == 0 {
		return b1.CentroidEmbedding
	}
	n1, n2 := float64(b1.DocumentCount), float64(b2.DocumentCount)
	total := n1 + n2
	if total == 0 {
		return b1.CentroidEmbedding
	}
	dim := len(b1.CentroidEmbedding)
	out := make([]float64, dim)
	for i := 0; i < dim && i < len(b2.CentroidEmbedding); i++ {
		out[i] = (b1.CentroidEmbedding[i]*n1 + b2.CentroidEmbedding[i]*n2) / total
	}
	return sharedmath.L2Normalize(out)
}

func newMergedID(b1, b2 *domain.Bucket) string {
	return b1.BucketID + "_" + b2.BucketID
}

// Split re-clusters b's members into n sub-buckets via a fresh K-means
// pass on their embeddings, looked up from memberEmbeddings (keyed by
// document id — the engine holds no store reference of its own).
func (e *Engine) Split(b *domain.Bucket, n int, memberEmbeddings map[string][]float64) ([]*domain.Bucket, error) {
	if n < 2 {
		return nil, apperrors.NewInvalidInputError("split requires n >= 2")
	}
	if len(b.DocumentIDs) < n {
		return nil, apperrors.NewInvalidInputError("bucket has fewer members than the requested split count")
	}

	docs := make([]*domain.Document, 0, len(b.DocumentIDs))
	for _, id := range b.DocumentIDs {
		vec, ok := memberEmbeddings[id]
		if !ok {
			return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "missing embedding for bucket member").WithDetails(id)
		}
		docs = append(docs, &domain.Document{ID: id, Embedding: vec})
	}

	cfg := e.cfg
	cfg.MinK = n
	cfg.MaxK = n
	vectors := make([][]float64, len(docs))
	for i, d := range docs {
		vectors[i] = sharedmath.L2Normalize(d.Embedding)
	}
	run := runKMeans(vectors, n, cfg)

	groups := make(map[int][]int, n)
	for i, cluster := range run.assignments {
		groups[cluster] = append(groups[cluster], i)
	}

	out := make([]*domain.Bucket, 0, n)
	for cluster := 0; cluster < n; cluster++ {
		members := groups[cluster]
		if len(members) == 0 {
			continue
		}
		ids := make([]string, len(members))
		vecs := make([][]float64, len(members))
		for i, idx := range members {
			ids[i] = docs[idx].ID
			vecs[i] = docs[idx].Embedding
		}
		nb, err := domain.NewBucket(b.BucketName+"-split-"+itoa(cluster), ids, vecs)
		if err != nil {
			return nil, err
		}
		out = append(out, nb)
	}
	return out, nil
}

// Validate cross-checks the bucket set against the reference documents
// actually present in the store: ids buckets reference but that don't
// resolve, reference documents in no bucket, count/length mismatches,
// empty buckets, and ids appearing in more than one bucket.
func (e *Engine) Validate(bucketList []*domain.Bucket, documents []*domain.Document) domain.ValidationReport {
	docIndex := make(map[string]bool, len(documents))
	for _, d := range documents {
		docIndex[d.ID] = false // false = not yet claimed by a bucket
	}

	var report domain.ValidationReport
	seen := make(map[string]int)

	for _, b := range bucketList {
		if len(b.DocumentIDs) != b.DocumentCount {
			report.CountMismatches = append(report.CountMismatches, b.BucketID)
		}
		if b.Empty() {
			report.EmptyBuckets = append(report.EmptyBuckets, b.BucketID)
		}
		for _, id := range b.DocumentIDs {
			seen[id]++
			if _, ok := docIndex[id]; !ok {
				report.MissingDocumentIDs = append(report.MissingDocumentIDs, id)
				continue
			}
			docIndex[id] = true
		}
	}

	for id, claimed := range docIndex {
		if !claimed {
			report.OrphanDocumentIDs = append(report.OrphanDocumentIDs, id)
		}
	}
	for id, count := range seen {
		if count > 1 {
			report.DuplicateMembers = append(report.DuplicateMembers, id)
		}
	}

	sort.Strings(report.MissingDocumentIDs)
	sort.Strings(report.OrphanDocumentIDs)
	sort.Strings(report.CountMismatches)
	sort.Strings(report.EmptyBuckets)
	sort.Strings(report.DuplicateMembers)
	return report
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
