package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/sirupsen/logrus"

	apperrors "github.com/jordigilh/legal-severity-classifier/internal/errors"
	sharederrors "github.com/jordigilh/legal-severity-classifier/pkg/shared/errors"
	sharedhttp "github.com/jordigilh/legal-severity-classifier/pkg/shared/http"
)

// BedrockProvider embeds content via Amazon Bedrock's Titan/Cohere embedding
// models through the InvokeModel API.
type BedrockProvider struct {
	client *bedrockruntime.Client
	logger *logrus.Logger
}

// NewBedrockProvider loads the default AWS credential chain and region
// resolution (env, shared config, IMDS) the way every other Bedrock caller
// in this stack does.
func NewBedrockProvider(ctx context.Context, region string, logger *logrus.Logger) (*BedrockProvider, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	opts = append(opts, config.WithHTTPClient(sharedhttp.NewClient(sharedhttp.DefaultClientConfig())))
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to load AWS config")
	}
	return &BedrockProvider{
		client: bedrockruntime.NewFromConfig(awsCfg),
		logger: logger,
	}, nil
}

type titanEmbedRequest struct {
	InputText string `json:"inputText"`
}

type titanEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
	InputTextTokenCount int `json:"inputTextTokenCount"`
}

type cohereEmbedRequest struct {
	Texts []string `json:"texts"`
	InputType string `json:"input_type"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// EmbedContent implements Provider. Titan models take one text per call and
// ignore TaskHint; Cohere models take an input_type distinguishing document
// from query embeddings, so the model id selects the request shape.
func (p *BedrockProvider) EmbedContent(ctx context.Context, modelID, content string, hint TaskHint) ([]float64, error) {
	var body []byte
	var err error
	isCohere := len(modelID) >= 6 && modelID[:6] == "cohere"

	if isCohere {
		inputType := "search_document"
		if hint == TaskQuery {
			inputType = "search_query"
		}
		body, err = json.Marshal(cohereEmbedRequest{Texts: []string{content}, InputType: inputType})
	} else {
		body, err = json.Marshal(titanEmbedRequest{InputText: content})
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to marshal bedrock embed request")
	}

	out, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept: aws.String("application/json"),
		Body: body,
	})
	if err != nil {
		return nil, apperrors.NewUpstreamError("bedrock_invoke_model", sharederrors.FailedToWithDetails("invoke_model", "bedrock", modelID, err))
	}

	if isCohere {
		var resp cohereEmbedResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypeParseError, "failed to parse cohere embed response")
		}
		if len(resp.Embeddings) == 0 {
			return nil, apperrors.New(apperrors.ErrorTypeParseError, "cohere embed response contained no vectors")
		}
		return resp.Embeddings[0], nil
	}

	var resp titanEmbedResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeParseError, "failed to parse titan embed response")
	}
	if len(resp.Embedding) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeParseError, fmt.Sprintf("titan embed response for model %s contained no vector", modelID))
	}
	return resp.Embedding, nil
}
