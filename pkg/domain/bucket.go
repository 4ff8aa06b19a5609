package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	sharedmath "github.com/jordigilh/legal-severity-classifier/pkg/shared/math"
)

// Bucket is a semantic cluster of reference documents. Invariant:
// len(DocumentIDs) == DocumentCount, and CentroidEmbedding is the
// L2-normalized mean of member embeddings as of the last recompute.
type Bucket struct {
	BucketID          string    `json:"bucket_id"`
	BucketName        string    `json:"bucket_name"`
	CentroidEmbedding []float64 `json:"centroid_embedding"`
	DocumentIDs       []string  `json:"document_ids"`
	DocumentCount     int       `json:"document_count"`
	Description       string    `json:"description,omitempty"`
	Stale             bool      `json:"stale"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewBucket constructs a bucket from its member document ids and embeddings,
// computing the L2-normalized centroid.
func NewBucket(name string, memberIDs []string, memberEmbeddings [][]float64) (*Bucket, error) {
	if len(memberIDs) != len(memberEmbeddings) {
		return nil, apperrors.NewInvalidInputError("member id count must equal embedding count")
	}
	now := time.Now().UTC()
	b := &Bucket{
		BucketID:      uuid.NewString(),
		BucketName:    name,
		DocumentIDs:   append([]string(nil), memberIDs...),
		DocumentCount: len(memberIDs),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Recompute(memberEmbeddings)
	return b, nil
}

// Recompute replaces the centroid with the L2-normalized mean of the given
// member embeddings and clears the stale flag.
func (b *Bucket) Recompute(memberEmbeddings [][]float64) {
	if len(memberEmbeddings) == 0 {
		b.CentroidEmbedding = nil
		b.Stale = false
		b.UpdatedAt = time.Now().UTC()
		return
	}
	dim := len(memberEmbeddings[0])
	mean := make([]float64, dim)
	for _, e := range memberEmbeddings {
		for i := 0; i < dim && i < len(e); i++ {
			mean[i] += e[i]
		}
	}
	n := float64(len(memberEmbeddings))
	for i := range mean {
		mean[i] /= n
	}
	b.CentroidEmbedding = sharedmath.L2Normalize(mean)
	b.Stale = false
	b.UpdatedAt = time.Now().UTC()
}

// AddMember appends a document id to the bucket and marks the centroid
// stale; a background recompute (not this call) restores it.
func (b *Bucket) AddMember(documentID string) {
	b.DocumentIDs = append(b.DocumentIDs, documentID)
	b.DocumentCount = len(b.DocumentIDs)
	b.Stale = true
	b.UpdatedAt = time.Now().UTC()
}

// Empty reports whether the bucket has no members; its centroid is undefined.
func (b *Bucket) Empty() bool {
	return b.DocumentCount == 0
}

// Validate checks the document-count/id-list length invariant.
func (b *Bucket) Validate() error {
	if len(b.DocumentIDs) != b.DocumentCount {
		return apperrors.NewInvalidInputError("document_count must equal len(document_ids)").
			WithDetailsf("bucket=%s count=%d len=%d", b.BucketID, b.DocumentCount, len(b.DocumentIDs))
	}
	return nil
}

// BucketSelection pairs a bucket with its similarity score for a given query,
// as returned by the bucket engine's select_relevant operation.
type BucketSelection struct {
	Bucket     *Bucket
	Similarity float64
}

// ValidationReport is the bucket engine's cross-check output: missing ids
// referenced by buckets, orphan references, mismatches, empty buckets, and
// duplicate membership.
type ValidationReport struct {
	MissingDocumentIDs []string
	OrphanDocumentIDs  []string
	CountMismatches    []string
	EmptyBuckets       []string
	DuplicateMembers   []string
}

// Clean reports whether the validation found no problems.
func (r ValidationReport) Clean() bool {
	return len(r.MissingDocumentIDs) == 0 && len(r.OrphanDocumentIDs) == 0 &&
		len(r.CountMismatches) == 0 && len(r.EmptyBuckets) == 0 && len(r.DuplicateMembers) == 0
}
