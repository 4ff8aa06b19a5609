package embedding

import (
	"context"
	"os"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	sharederrors "github.com/jordigilh/legal-severity-classifier/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/legal-severity-classifier/pkg/shared/http"
)

// GeminiProvider embeds content via Google's Generative AI embedding models.
// TaskHint maps to genai's task-type field so document and query text are
// embedded asymmetrically, as the retrieval-tuned models expect.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider builds a client from the GEMINI_API_KEY environment
// variable, following the same bare-API-key auth every other Gemini caller
// in this stack uses.
func NewGeminiProvider(ctx context.Context) (*GeminiProvider, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		HTTPClient: sharedhttp.NewClient(sharedhttp.DefaultClientConfig()),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to create gemini client")
	}
	return &GeminiProvider{client: client}, nil
}

func taskType(hint TaskHint) string {
	if hint == TaskQuery {
		return "RETRIEVAL_QUERY"
	}
	return "RETRIEVAL_DOCUMENT"
}

// EmbedContent implements Provider.
func (p *GeminiProvider) EmbedContent(ctx context.Context, modelID, content string, hint TaskHint) ([]float64, error) {
	contents := []*genai.Content{genai.NewContentFromText(content, genai.RoleUser)}
	tt := taskType(hint)

	result, err := p.client.Models.EmbedContent(ctx, modelID, contents, &genai.EmbedContentConfig{
		TaskType: tt,
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError("gemini_embed_content", sharederrors.FailedToWithDetails("embed_content", "gemini", modelID, err))
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeParseError, "gemini embed response contained no vector")
	}

	values := result.Embeddings[0].Values
	vec := make([]float64, len(values))
	for i, v := range values {
		vec[i] = float64(v)
	}
	return vec, nil
}
