// Package approval provides per-user device approval requests for device-gate.
//
// A user signing in from an unapproved device files a DeviceRequest for
// (device_id, user_id, domain). An admin approves or blocks it; approval
// also records the device in an approval cache keyed by (device_id, domain),
// so once any user's request for a device is approved the device passes for
// everyone on that domain.
//
// # Overview
//
// The approval package provides:
//   - Access requests with a 48 hour expiry window
//   - A status-check protocol for polling clients
//   - Admin approve/block decisions with notification hooks
//   - An approved-device cache with listing and revocation
//   - Sweeping of overdue pending requests into the expired state
//
// # Basic Usage
//
//	import "github.com/tendant/device-gate/pkg/approval"
//
//	repo := approval.NewPostgresApprovalRepository(pool)
//	service := approval.NewApprovalService(
//		repo,
//		approval.WithNotificationManager(nm),
//		approval.WithAdminEmail("admin@example.com"),
//	)
//
//	// Device asks for access
//	result, err := service.RequestAccess(ctx, approval.RequestAccessParams{
//		DeviceID: "device-123",
//		UserID:   "alice@example.com",
//		Domain:   "example.com",
//	})
//
//	// Device polls for the outcome
//	result, err = service.CheckStatus(ctx, "device-123", "example.com")
//
//	// Admin decides
//	req, err := service.Approve(ctx, requestID)
//
// # Related Packages
//
//   - pkg/registration - Token-based device registration
//   - pkg/logingate - Login endpoint gated on device approval
package approval
