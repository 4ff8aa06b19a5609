package classifier

import (
	"fmt"
	"strings"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// severityEnumeration is the first prompt section: the closed set of
// labels the model must choose from, most restrictive first.
const severityEnumeration = `You are classifying a legal document into exactly one severity class:
- CRITICAL: immediate, irreversible, or high-magnitude legal exposure
- HIGH: significant legal exposure requiring prompt attention
- MEDIUM: moderate legal exposure, routine handling appropriate
- LOW: minimal legal exposure, informational

Respond with a single JSON object and nothing else, shaped exactly as:
{"label": "<CRITICAL|HIGH|MEDIUM|LOW>", "confidence": <0.0-1.0>, "rationale": "<one paragraph>"}`

// Request is the material the classifier needs to build one prompt.
type Request struct {
	DocumentID string
	Text       string
	Metadata   domain.DocumentMetadata
	Context    domain.ContextBlock
}

// BuildPrompt assembles the four-section prompt §4.5 specifies: severity
// enumeration, document metadata, document text, and rendered context.
func BuildPrompt(req Request, renderedContext string) string {
	var b strings.Builder
	b.WriteString(severityEnumeration)
	b.WriteString("\n\n## Document metadata\n")
	fmt.Fprintf(&b, "filename: %s\n", req.Metadata.Filename)
	if len(req.Metadata.Tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(req.Metadata.Tags, ", "))
	}
	b.WriteString("\n## Document text\n")
	b.WriteString(req.Text)
	b.WriteString("\n\n## Reference context\n")
	b.WriteString(renderedContext)
	return b.String()
}
