package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
)

// Notifier posts run outcomes to a Slack incoming webhook. A Notifier
// with no webhook URL is valid and does nothing.
type Notifier struct {
	webhookURL string
	client     *retryablehttp.Client
	logger     *slog.Logger
}

// NewNotifier creates a Slack notifier. Pass an empty webhookURL to
// disable notifications.
func NewNotifier(webhookURL string, logger *slog.Logger) *Notifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil

	return &Notifier{
		webhookURL: webhookURL,
		client:     client,
		logger:     logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

type slackMessage struct {
	Text string `json:"text"`
}

// NotifyRunComplete posts a short summary of a finished run.
func (n *Notifier) NotifyRunComplete(ctx context.Context, runID string, rep *report.Report) error {
	if !n.Enabled() {
		return nil
	}
	return n.post(ctx, runMessage(runID, rep))
}

// NotifyRunFailed posts a failure notice for a run that could not
// produce a report.
func (n *Notifier) NotifyRunFailed(ctx context.Context, runID, reason string) error {
	if !n.Enabled() {
		return nil
	}
	text := fmt.Sprintf(":x: Rent reconciliation run %s failed: %s", runID, reason)
	return n.post(ctx, text)
}

func (n *Notifier) post(ctx context.Context, text string) error {
	body, err := json.Marshal(slackMessage{Text: text})
	if err != nil {
		return fmt.Errorf("NotifySlack: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("NotifySlack: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("NotifySlack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("NotifySlack: webhook returned %s", resp.Status)
	}

	if n.logger != nil {
		n.logger.Debug("posted slack notification", "status", resp.StatusCode)
	}
	return nil
}

// runMessage renders the report into a one-paragraph Slack message.
func runMessage(runID string, rep *report.Report) string {
	var b strings.Builder

	emoji := ":white_check_mark:"
	if rep.Counts[rules.UnrecognizedPayment.String()] > 0 || rep.Counts[rules.Unpaid.String()] > 0 {
		emoji = ":warning:"
	}

	fmt.Fprintf(&b, "%s Rent reconciliation run %s complete: %d/%d payments matched (%.1f%%).",
		emoji, runID, rep.MatchedTransactions, rep.TotalTransactions, rep.MatchRate*100)
	fmt.Fprintf(&b, " Due %s, received %s, variance %s.",
		rep.Totals.Due.String(), rep.Totals.Received.String(), rep.Totals.Variance.String())

	var notes []string
	if c := rep.Counts[rules.Unpaid.String()]; c > 0 {
		notes = append(notes, fmt.Sprintf("%d unpaid", c))
	}
	if c := rep.Counts[rules.Partial.String()]; c > 0 {
		notes = append(notes, fmt.Sprintf("%d partial", c))
	}
	if c := rep.Counts[rules.Overpaid.String()]; c > 0 {
		notes = append(notes, fmt.Sprintf("%d overpaid", c))
	}
	if c := rep.Counts[rules.UnrecognizedPayment.String()]; c > 0 {
		notes = append(notes, fmt.Sprintf("%d unrecognized", c))
	}
	if c := flaggedCount(rep); c > 0 {
		notes = append(notes, fmt.Sprintf("%d flagged for review", c))
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, " Follow-up: %s.", strings.Join(notes, ", "))
	}

	return b.String()
}

func flaggedCount(rep *report.Report) int {
	count := 0
	for _, rec := range rep.Records {
		if len(rec.Flags) > 0 {
			count++
		}
	}
	return count
}
