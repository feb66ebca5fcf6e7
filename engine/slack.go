package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/inkhaven-social/warden/util"
)

// SlackNotifier posts engine actions to a Slack-compatible incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Client:     util.RobustHTTPClient(),
	}
}

var _ Notifier = (*SlackNotifier)(nil)

func (n *SlackNotifier) SendReport(ctx context.Context, report Report) error {
	msg := "⚠️ Warden Auto-Report ⚠️\n"
	msg += fmt.Sprintf("`%s` by `%s`\n", report.Subject, report.AuthorID)
	msg += fmt.Sprintf("Report `%s` (%s): %s\n", report.Reason, report.Priority, report.Comment)
	return n.SendText(ctx, msg)
}

type slackWebhookBody struct {
	Text string `json:"text"`
}

// SendText posts a plain message to the webhook. Slack acknowledges a
// delivered message with a literal "ok" body.
func (n *SlackNotifier) SendText(ctx context.Context, msg string) error {
	body, err := json.Marshal(slackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")

	client := n.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	buf.ReadFrom(resp.Body)
	if resp.StatusCode != 200 || buf.String() != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d", resp.StatusCode)
	}
	return nil
}
