package orchestrator

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"github.com/jordigilh/legal-severity-classifier/pkg/domain"
	sharedhttp "github.com/jordigilh/legal-severity-classifier/pkg/shared/http"
)

// Escalator posts a human-facing notification when a classification lands
// in human_triage — the routing decision given to results with a
// critical-level confidence warning and to batch documents whose
// classification failed. It is independent of the audit trail: the audit event is
// the durable record, this is the paging channel.
type Escalator struct {
	webhookURL string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewEscalator builds an Escalator that posts to a Slack incoming webhook
// over a short-timeout client tuned for notification delivery. A
// zero-value webhookURL disables posting; EscalateIfNeeded becomes a
// no-op, so wiring an Escalator is always safe even where no webhook is
// configured.
func NewEscalator(webhookURL string, logger *logrus.Logger) *Escalator {
	return &Escalator{
		webhookURL: webhookURL,
		httpClient: sharedhttp.NewClient(sharedhttp.SlackClientConfig()),
		logger:     logger,
	}
}

// EscalateIfNeeded posts to Slack when result was routed to human_triage.
// A post failure is logged, never returned — a notification outage must
// not fail the classification it is reporting on.
func (e *Escalator) EscalateIfNeeded(result *domain.ClassificationResult) {
	if e == nil || e.webhookURL == "" || result.RoutingDecision != domain.RoutingHumanTriage {
		return
	}

	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf(
			":rotating_light: Document %s requires triage — predicted %s at %.0f%% confidence.\n%s",
			result.DocumentID, result.Label, result.Confidence*100, escalationReason(result),
		),
	}
	client := e.httpClient
	if client == nil {
		client = sharedhttp.NewClient(sharedhttp.SlackClientConfig())
	}
	if err := slack.PostWebhookCustomHTTPContext(context.Background(), e.webhookURL, client, msg); err != nil && e.logger != nil {
		e.logger.WithError(err).Warn("failed to post triage escalation to slack")
	}
}

func escalationReason(result *domain.ClassificationResult) string {
	if result.ConfidenceWarning == nil {
		return result.Rationale
	}
	return fmt.Sprintf("Warning level: %s, reasons: %v", result.ConfidenceWarning.Level, result.ConfidenceWarning.Reasons)
}
