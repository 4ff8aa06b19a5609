package classifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sirupsen/logrus"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	sharederrors "github.com/jordigilh/legal-severity-classifier/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/legal-severity-classifier/pkg/shared/http"
)

// BedrockProvider generates classification completions via Anthropic
// Claude models hosted on Amazon Bedrock's InvokeModel API.
type BedrockProvider struct {
	client *bedrockruntime.Client
	logger *logrus.Logger
}

// NewBedrockProvider loads the default AWS credential chain, the same way
// the embedding package's Bedrock provider does.
func NewBedrockProvider(ctx context.Context, region string, logger *logrus.Logger) (*BedrockProvider, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	opts = append(opts, config.WithHTTPClient(sharedhttp.NewClient(sharedhttp.LLMClientConfig(90*time.Second))))
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to load AWS config")
	}
	return &BedrockProvider{client: bedrockruntime.NewFromConfig(awsCfg), logger: logger}, nil
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockInvokeRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float32          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
}

type bedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type bedrockInvokeResponse struct {
	Content []bedrockContentBlock `json:"content"`
}

// GenerateContent implements Provider.
func (p *BedrockProvider) GenerateContent(ctx context.Context, modelID, prompt string, temperature float32, maxOutputTokens int) (string, error) {
	body, err := json.Marshal(bedrockInvokeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxOutputTokens,
		Temperature:      temperature,
		Messages:         []bedrockMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal bedrock invoke request")
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", apperrors.NewUpstreamError("bedrock_invoke_model", sharederrors.FailedToWithDetails("invoke_model", "bedrock", modelID, err))
	}

	var resp bedrockInvokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrorTypeParseError, "failed to parse bedrock invoke response")
	}
	if len(resp.Content) == 0 {
		return "", apperrors.New(apperrors.ErrorTypeParseError, "bedrock response contained no content blocks")
	}
	return resp.Content[0].Text, nil
}
