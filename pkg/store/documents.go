package store

import (
	"context"
	"encoding/json"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// DocumentFilter narrows ListReferences (label, tags, limit, offset).
type DocumentFilter struct {
	Label *domain.Severity
	Tag string
	Limit int
	Offset int
}

// DocumentStore is the concrete document contract: Put/Get/GetMany/ListReferences/FindByHash.
type DocumentStore struct {
	store *Store
}

// NewDocumentStore builds a DocumentStore over an open Store.
func NewDocumentStore(s *Store) *DocumentStore {
	return &DocumentStore{store: s}
}

// Put inserts document, rejecting with Duplicate if another document
// already shares its content hash (enforced by a unique index on
// documents.value->>'content_hash', checked in the same statement as the
// insert).
func (ds *DocumentStore) Put(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	return ds.store.insertOnly(ctx, CollectionDocuments, doc.ID, doc)
}

// Get loads one document by id.
func (ds *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	raw, err := ds.store.get(ctx, CollectionDocuments, id)
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

// GetMany loads the documents present for ids, silently omitting any
// missing id.
func (ds *DocumentStore) GetMany(ctx context.Context, ids []string) ([]*domain.Document, error) {
	rows, err := ds.store.getMany(ctx, CollectionDocuments, ids)
	if err != nil {
		return nil, err
	}
	docs := make([]*domain.Document, 0, len(rows))
	for _, id := range ids {
		raw, ok := rows[id]
		if !ok {
			continue
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ListReferences returns reference documents matching filter, paged.
func (ds *DocumentStore) ListReferences(ctx context.Context, filter DocumentFilter) ([]*domain.Document, error) {
	filters := []Filter{{Field: "document_type", Value: string(domain.RoleReference)}}
	if filter.Label != nil {
		filters = append(filters, Filter{Field: "severity_label", Value: string(*filter.Label)})
	}
	if filter.Tag != "" {
		filters = append(filters, Filter{Field: "tags", Value: filter.Tag})
	}

	rows, err := ds.store.list(ctx, CollectionDocuments, filters, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	docs := make([]*domain.Document, 0, len(rows))
	for _, raw := range rows {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// FindByHash returns the document with the given content hash, for dedup
// checks ahead of a Put.
func (ds *DocumentStore) FindByHash(ctx context.Context, hash string) (*domain.Document, bool, error) {
	raw, ok, err := ds.store.findByField(ctx, CollectionDocuments, "content_hash", hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	doc, err := decodeDocument(raw)
	return doc, true, err
}

func decodeDocument(raw []byte) (*domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to decode stored document")
	}
	return &doc, nil
}
