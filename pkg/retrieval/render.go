package retrieval

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
)

// maxRenderedChunkChars is the LLM-facing truncation length for one
// chunk's rendered content.
const maxRenderedChunkChars = 300

const truncationMarker = " …[truncated]"

// severityRenderOrder is the LLM-facing group order: most restrictive first.
var severityRenderOrder = []domain.Severity{
	domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow,
}

// TokenBudget wraps a tiktoken encoder so the rendered context can be
// trimmed to an absolute token ceiling in addition to the chunk-count
// budget §4.4 already applies — a handful of very long chunks can still
// blow the model's context window even under max_context_chunks.
type TokenBudget struct {
	encoder *tiktoken.Tiktoken
}

// NewTokenBudget resolves a tiktoken encoding for model, falling back to
// cl100k_base for models tiktoken doesn't recognize (local/self-hosted
// LLMs report a model id tiktoken has never heard of).
func NewTokenBudget(model string) (*TokenBudget, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TokenBudget{encoder: enc}, nil
}

// Count returns the token count of text under this budget's encoding.
func (b *TokenBudget) Count(text string) int {
	return len(b.encoder.Encode(text, nil, nil))
}

// RenderForPrompt renders block for the LLM-facing section of the prompt:
// chunks grouped by source severity (CRITICAL→HIGH→MEDIUM→LOW), each
// truncated to maxRenderedChunkChars with an explicit marker, additionally
// capped so the rendered block never exceeds maxTokens (budget may be nil
// to skip the token-level cap and rely on max_context_chunks alone).
func RenderForPrompt(block domain.ContextBlock, budget *TokenBudget, maxTokens int) string {
	if block.Empty() {
		return "No relevant context was found in the reference corpus."
	}

	grouped := make(map[domain.Severity][]domain.ContextChunk)
	for _, c := range block.Chunks {
		grouped[c.SourceSeverity] = append(grouped[c.SourceSeverity], c)
	}
	for _, chunks := range grouped {
		sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	}

	var b strings.Builder
	var tokensUsed int
	for _, severity := range severityRenderOrder {
		chunks := grouped[severity]
		if len(chunks) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s severity examples\n", severity)
		for _, c := range chunks {
			line := renderChunkLine(c)
			if budget != nil && maxTokens > 0 {
				n := budget.Count(line)
				if tokensUsed+n > maxTokens {
					continue
				}
				tokensUsed += n
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func renderChunkLine(c domain.ContextChunk) string {
	text := c.Text
	if runes := []rune(text); len(runes) > maxRenderedChunkChars {
		text = string(runes[:maxRenderedChunkChars]) + truncationMarker
	}
	return fmt.Sprintf("- [%s, score=%.2f] %s", c.SourceFilename, c.Score, text)
}
