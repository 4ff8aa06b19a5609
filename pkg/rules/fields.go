// Package rules implements C6: evaluating the active rule set against a
// document, resolving conflicts among the rules that match, and applying
// the single rule that wins as a severity override. Field resolution is
// expressed as gojq queries behind a closed whitelist so the evaluator
// never runs an arbitrary, caller-supplied query against a document.
package rules

import (
	"strings"

	"github.com/itchyny/gojq"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// fieldQueries maps each whitelisted ConditionField to the gojq program
// that extracts it from a document's generic JSON representation.
var fieldQueries = map[domain.ConditionField]string{
	domain.FieldText:             ".text",
	domain.FieldMetadataFilename: ".metadata.filename",
	domain.FieldMetadataTags:     ".metadata.tags",
	domain.FieldDocumentType:     ".document_type",
}

var compiledQueries = compileFieldQueries()

func compileFieldQueries() map[domain.ConditionField]*gojq.Query {
	out := make(map[domain.ConditionField]*gojq.Query, len(fieldQueries))
	for field, program := range fieldQueries {
		q, err := gojq.Parse(program)
		if err != nil {
			panic("rules: invalid built-in field query for " + string(field) + ": " + err.Error())
		}
		out[field] = q
	}
	return out
}

// documentAsMap renders the subset of a document's fields the whitelist can
// reach into a generic JSON-ish value gojq can query.
func documentAsMap(doc *domain.Document) map[string]interface{} {
	tags := make([]interface{}, len(doc.Metadata.Tags))
	for i, t := range doc.Metadata.Tags {
		tags[i] = t
	}
	return map[string]interface{}{
		"text":          doc.Text,
		"document_type": string(doc.DocumentType),
		"metadata": map[string]interface{}{
			"filename": doc.Metadata.Filename,
			"tags":     tags,
		},
	}
}

// resolveField evaluates field against doc and returns its value. An
// unknown field is a non-fatal false per §4.6 — the caller maps a resolve
// failure to a non-matching condition, never an error that kills the
// whole evaluation.
func resolveField(doc *domain.Document, field domain.ConditionField) (interface{}, error) {
	q, ok := compiledQueries[field]
	if !ok {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "unknown condition field: "+string(field))
	}

	iter := q.Run(documentAsMap(doc))
	v, ok := iter.Next()
	if !ok {
		return nil, nil
	}
	if err, ok := v.(error); ok {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "gojq field query failed")
	}
	return v, nil
}

// fieldAsString renders a resolved field value as the string the
// contains/regex_match operators compare against. Tags resolve to their
// comma-joined string per §4.6.
func fieldAsString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), true
	case nil:
		return "", false
	default:
		return "", false
	}
}
