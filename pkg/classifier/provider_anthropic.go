package classifier

import (
	"context"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	sharederrors "github.com/jordigilh/legal-severity-classifier/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/legal-severity-classifier/pkg/shared/http"
)

// AnthropicProvider generates classification completions via the Claude
// Messages API.
type AnthropicProvider struct {
	client anthropic.Client
}

// NewAnthropicProvider builds a client from the ANTHROPIC_API_KEY
// environment variable.
func NewAnthropicProvider() (*AnthropicProvider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, apperrors.New(apperrors.ErrorTypeInvalidInput, "ANTHROPIC_API_KEY is not set")
	}
	httpClient := sharedhttp.NewClient(sharedhttp.LLMClientConfig(90 * time.Second))
	return &AnthropicProvider{client: anthropic.NewClient(option.WithAPIKey(apiKey), option.WithHTTPClient(httpClient))}, nil
}

// GenerateContent implements Provider.
func (p *AnthropicProvider) GenerateContent(ctx context.Context, modelID, prompt string, temperature float32, maxOutputTokens int) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(modelID),
		MaxTokens:   int64(maxOutputTokens),
		Temperature: param.NewOpt(float64(temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", apperrors.NewUpstreamError("anthropic_messages_new", sharederrors.FailedToWithDetails("messages.new", "anthropic", modelID, err))
	}
	if len(msg.Content) == 0 {
		return "", apperrors.New(apperrors.ErrorTypeParseError, "anthropic response contained no content blocks")
	}
	return msg.Content[0].Text, nil
}
