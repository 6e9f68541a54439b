package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"meterbackend/core"
	"meterbackend/models"
	"meterbackend/utils"
)

const sendTimeout = 10 * time.Second

// EmailMessage is a fully rendered email ready to hand to a sender
type EmailMessage struct {
	Recipient string `json:"recipient"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	BodyText  string `json:"body_text"`
	BodyHTML  string `json:"body_html"`
}

// EmailSender hands a rendered message to the delivery provider. An error
// means the message was not accepted; delivery after acceptance is the
// provider's problem.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// WebhookEmailSender posts messages as JSON to an email-provider webhook
type WebhookEmailSender struct {
	webhookURL string
	httpClient *http.Client
}

func NewWebhookEmailSender(webhookURL string) *WebhookEmailSender {
	return &WebhookEmailSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

func (s *WebhookEmailSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	if s.webhookURL == "" {
		return fmt.Errorf("email webhook URL is not configured")
	}

	payloadBytes, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email webhook responded with status %d", resp.StatusCode)
	}

	return nil
}

// BudgetNotifier renders budget alerts into emails and sends them. It is
// the only implementation of the notification boundary; the budget engine
// never sees email details.
type BudgetNotifier struct {
	sender           EmailSender
	fromAddress      string
	defaultRecipient string
}

func NewBudgetNotifier(sender EmailSender, fromAddress, defaultRecipient string) *BudgetNotifier {
	utils.AssertInvariant(sender != nil, "email sender must not be nil")
	return &BudgetNotifier{
		sender:           sender,
		fromAddress:      fromAddress,
		defaultRecipient: defaultRecipient,
	}
}

func (n *BudgetNotifier) SendBudgetAlert(ctx context.Context, alert models.BudgetAlert) error {
	recipient := alert.Recipient
	if recipient == "" {
		recipient = n.defaultRecipient
	}
	if recipient == "" {
		return core.NewValidationError("recipient", "no alert email configured for project and no default recipient set")
	}

	msg := EmailMessage{
		Recipient: recipient,
		From:      n.fromAddress,
		Subject:   renderSubject(alert),
		BodyText:  renderBodyText(alert),
		BodyHTML:  renderBodyHTML(alert),
	}

	if err := n.sender.SendEmail(ctx, msg); err != nil {
		return fmt.Errorf("failed to send budget alert email: %w", err)
	}

	log.Printf("📬 Budget alert email sent to %s for project %s", recipient, alert.ProjectID)
	return nil
}

func renderSubject(alert models.BudgetAlert) string {
	return fmt.Sprintf("Budget alert: %s has used %s%% of its $%s budget",
		alert.ProjectName, alert.PercentUsed.StringFixed(1), alert.ThresholdUSD.String())
}

func renderBodyText(alert models.BudgetAlert) string {
	return fmt.Sprintf(
		"Project %s (%s) has used $%s of its $%s budget (%s%%).\n\n"+
			"No further alerts will be sent for this project for 24 hours.\n",
		alert.ProjectName, alert.ProjectID,
		alert.CurrentCostUSD.StringFixed(2), alert.ThresholdUSD.String(),
		alert.PercentUsed.StringFixed(1))
}

func renderBodyHTML(alert models.BudgetAlert) string {
	return fmt.Sprintf(
		"<p>Project <b>%s</b> (<code>%s</code>) has used <b>$%s</b> of its $%s budget (%s%%).</p>"+
			"<p>No further alerts will be sent for this project for 24 hours.</p>",
		alert.ProjectName, alert.ProjectID,
		alert.CurrentCostUSD.StringFixed(2), alert.ThresholdUSD.String(),
		alert.PercentUsed.StringFixed(1))
}
