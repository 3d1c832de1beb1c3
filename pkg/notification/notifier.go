package notification

// NotificationSystem represents a delivery channel (e.g., email, Slack).
type NotificationSystem string

// NoticeType identifies a kind of notice (e.g., "device_request_created").
type NoticeType string

const (
	EmailSystem NotificationSystem = "email"
	SlackSystem NotificationSystem = "slack"

	// Notices sent by the device gate
	DeviceRequestCreatedNotice NoticeType = "device_request_created"
	DeviceApprovedNotice       NoticeType = "device_approved"
	DeviceBlockedNotice        NoticeType = "device_blocked"
	RegistrationTokenNotice    NoticeType = "registration_token"
)

// NoticeTemplate holds the content templates for a notice on one system.
// Text and Html are Go text/html templates executed with NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

type NotificationData struct {
	To      string            // Recipient identifier (e.g., email address, Slack channel)
	Subject string            // Optional: overrides the template subject when set
	Body    string            // The content or message to send, for systems without templates
	Data    map[string]string // Template data (e.g., device name, approval link)
}

type Notifier interface {
	Send(noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
