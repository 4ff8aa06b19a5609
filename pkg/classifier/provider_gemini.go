package classifier

import (
	"context"
	"os"
	"time"

	"google.golang.org/genai"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	sharederrors "github.com/jordigilh/legal-severity-classifier/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/legal-severity-classifier/pkg/shared/http"
)

// GeminiProvider generates classification completions via Google's
// Generative AI chat models.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider builds a client from the GEMINI_API_KEY environment
// variable, the same way the embedding package's Gemini provider does.
func NewGeminiProvider(ctx context.Context) (*GeminiProvider, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		HTTPClient: sharedhttp.NewClient(sharedhttp.LLMClientConfig(90 * time.Second)),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to create gemini client")
	}
	return &GeminiProvider{client: client}, nil
}

// GenerateContent implements Provider.
func (p *GeminiProvider) GenerateContent(ctx context.Context, modelID, prompt string, temperature float32, maxOutputTokens int) (string, error) {
	temp := temperature
	maxTokens := int32(maxOutputTokens)
	result, err := p.client.Models.GenerateContent(ctx, modelID,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:     &temp,
			MaxOutputTokens: maxTokens,
		},
	)
	if err != nil {
		return "", apperrors.NewUpstreamError("gemini_generate_content", sharederrors.FailedToWithDetails("generate_content", "gemini", modelID, err))
	}
	text := result.Text()
	if text == "" {
		return "", apperrors.New(apperrors.ErrorTypeParseError, "gemini response contained no text")
	}
	return text, nil
}
