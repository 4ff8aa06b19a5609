package store

import (
	"context"
	"encoding/json"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// BucketStore persists the bucket set C3 maintains.
type BucketStore struct {
	store *Store
}

func NewBucketStore(s *Store) *BucketStore {
	return &BucketStore{store: s}
}

func (bs *BucketStore) Put(ctx context.Context, b *domain.Bucket) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return bs.store.put(ctx, CollectionBuckets, b.BucketID, b)
}

func (bs *BucketStore) Get(ctx context.Context, id string) (*domain.Bucket, error) {
	raw, err := bs.store.get(ctx, CollectionBuckets, id)
	if err != nil {
		return nil, err
	}
	return decodeBucket(raw)
}

func (bs *BucketStore) Delete(ctx context.Context, id string) error {
	return bs.store.delete(ctx, CollectionBuckets, id)
}

// ListAll returns every bucket currently stored, for a full rebuild or
// validation pass.
func (bs *BucketStore) ListAll(ctx context.Context) ([]*domain.Bucket, error) {
	rows, err := bs.store.list(ctx, CollectionBuckets, nil, 100000, 0)
	if err != nil {
		return nil, err
	}
	buckets := make([]*domain.Bucket, 0, len(rows))
	for _, raw := range rows {
		b, err := decodeBucket(raw)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func decodeBucket(raw []byte) (*domain.Bucket, error) {
	var b domain.Bucket
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored bucket")
	}
	return &b, nil
}
