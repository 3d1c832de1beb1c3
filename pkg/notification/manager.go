package notification

import (
	"fmt"
	"log/slog"
)

// NotificationManager manages notifiers and notice templates.
type NotificationManager struct {
	notifiers      map[NotificationSystem]Notifier
	noticeRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

// NewNotificationManager creates and returns a new NotificationManager.
func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers:      make(map[NotificationSystem]Notifier),
		noticeRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.notifiers[system] = notifier
}

// RegisterNotification adds a notice template to the registry for one system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" && template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid input: template cannot be empty")
	}

	if _, exists := nm.noticeRegistry[noticeType]; !exists {
		nm.noticeRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.noticeRegistry[noticeType][system] = template
	return nil
}

// Send delivers a notice through every system that has a template registered
// for it. Delivery failures on one system do not stop the others; the first
// error is returned after all systems were attempted.
func (nm *NotificationManager) Send(noticeType NoticeType, notification NotificationData) error {
	systemTemplates, exists := nm.noticeRegistry[noticeType]
	if !exists {
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}

	var firstErr error
	sent := 0
	for system, template := range systemTemplates {
		notifier, exists := nm.notifiers[system]
		if !exists {
			slog.Debug("No notifier registered for system, skipping", "system", system, "noticeType", noticeType)
			continue
		}

		if err := notifier.Send(noticeType, notification, template); err != nil {
			slog.Error("Failed to send notification", "system", system, "noticeType", noticeType, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sent++
	}

	if firstErr != nil {
		return firstErr
	}
	if sent == 0 {
		return fmt.Errorf("no notifier registered for notice type: %s", noticeType)
	}
	return nil
}
