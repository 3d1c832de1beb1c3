package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

type SlackNotifier struct {
	WebhookURL string
	httpClient *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
}

func (s *SlackNotifier) Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error {
	body := notification.Body
	if body == "" {
		rendered, err := renderTemplate("slack", template.Text, notification.Data)
		if err != nil {
			return err
		}
		body = rendered
	}
	if body == "" {
		return fmt.Errorf("slack notification requires 'Body' or a text template")
	}

	payload, err := json.Marshal(map[string]string{"text": body})
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Post(s.WebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("Failed to post Slack message", "noticeType", noticeType, "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Slack message sent", "noticeType", noticeType)
	return nil
}
