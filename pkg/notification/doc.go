// Package notification delivers notices over pluggable channels.
//
// A NotificationManager holds one Notifier per system (email, Slack) and a
// registry of templates per notice type. Services call Send with a notice
// type and data; the manager fans the notice out to every system that has a
// template registered for it.
//
//	nm := notification.NewNotificationManager()
//	emailNotifier, _ := notification.NewEmailNotifier(smtpConfig)
//	nm.RegisterNotifier(notification.EmailSystem, emailNotifier)
//	nm.RegisterNotification(notification.DeviceApprovedNotice, notification.EmailSystem,
//		notification.NoticeTemplate{
//			Subject: "Device approved",
//			Html:    "<p>Your device {{.DeviceName}} was approved.</p>",
//		})
//
//	nm.Send(notification.DeviceApprovedNotice, notification.NotificationData{
//		To:   "user@example.com",
//		Data: map[string]string{"DeviceName": "Alice's Laptop"},
//	})
package notification
