package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
)

// DocumentMetadata carries the provenance of an uploaded document.
type DocumentMetadata struct {
	Filename    string    `json:"filename"`
	UploadDate  time.Time `json:"upload_date"`
	FileSize    int64     `json:"file_size,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	UploaderID  string    `json:"uploader_id,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Document is a reference or classification document. Reference documents
// carry a SeverityLabel; classification documents never do.
type Document struct {
	ID            string           `json:"id"`
	Text          string           `json:"text"`
	ContentHash   string           `json:"content_hash"`
	Embedding     []float64        `json:"embedding"`
	Metadata      DocumentMetadata `json:"metadata"`
	DocumentType  DocumentRole     `json:"document_type"`
	SeverityLabel *Severity        `json:"severity_label,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// NewReferenceDocument builds a corpus reference document with a required
// severity label and a content hash computed from normalized text.
func NewReferenceDocument(text string, embedding []float64, metadata DocumentMetadata, label Severity) (*Document, error) {
	d, err := newDocument(text, embedding, metadata, RoleReference)
	if err != nil {
		return nil, err
	}
	if !label.Valid() {
		return nil, apperrors.NewInvalidInputError("severity label must be one of LOW, MEDIUM, HIGH, CRITICAL")
	}
	d.SeverityLabel = &label
	return d, nil
}

// NewClassificationDocument builds a document awaiting classification;
// it must not carry a severity label.
func NewClassificationDocument(text string, embedding []float64, metadata DocumentMetadata) (*Document, error) {
	return newDocument(text, embedding, metadata, RoleClassification)
}

func newDocument(text string, embedding []float64, metadata DocumentMetadata, role DocumentRole) (*Document, error) {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil, apperrors.NewInvalidInputError("document text cannot be empty")
	}
	if len(embedding) == 0 {
		return nil, apperrors.NewInvalidInputError("embedding vector cannot be empty")
	}
	hash := ContentHash(normalized)
	metadata.ContentHash = hash
	return &Document{
		ID:           uuid.NewString(),
		Text:         normalized,
		ContentHash:  hash,
		Embedding:    embedding,
		Metadata:     metadata,
		DocumentType: role,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// ContentHash returns the SHA-256 hash of normalized text, used for
// reference-store dedup.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// Validate checks the reference<->label / classification<->no-label
// invariant and that embedding values lie in [-1,1].
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return apperrors.NewInvalidInputError("document text cannot be empty")
	}
	if d.DocumentType == RoleReference && d.SeverityLabel == nil {
		return apperrors.NewInvalidInputError("reference documents must have a severity label")
	}
	if d.DocumentType == RoleClassification && d.SeverityLabel != nil {
		return apperrors.NewInvalidInputError("classification documents must not have a severity label")
	}
	for i, v := range d.Embedding {
		if v < -1.0 || v > 1.0 {
			return apperrors.NewInvalidInputError("embedding value out of range [-1,1]").WithDetailsf("index %d = %f", i, v)
		}
	}
	return nil
}
