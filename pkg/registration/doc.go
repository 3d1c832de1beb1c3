// Package registration provides device registration tokens for device-gate.
//
// A device that wants to be trusted first registers itself and receives a
// short-lived, one-shot token. An out-of-band channel (admin console, MDM
// push, support call) delivers the token back to the device, which then
// verifies it to become approved.
//
// # Overview
//
// The registration package provides:
//   - Device registration with token issuance (REG-XXXXXXXX)
//   - One-shot token verification with a 30 minute expiry window
//   - Re-registration that resets the token and registration state
//   - Admin listing and manual approve/block of registrations
//   - Sweeping of expired, unused tokens into the blocked state
//
// # Basic Usage
//
//	import "github.com/tendant/device-gate/pkg/registration"
//
//	// Create service
//	repo := registration.NewPostgresRegistrationRepository(pool)
//	service := registration.NewRegistrationService(repo)
//
//	// Register a device and hand the token out of band
//	reg, err := service.Register(ctx, registration.RegisterDeviceParams{
//		TenantID:   "acme",
//		DeviceID:   "device-123",
//		DeviceName: "Alice's Laptop",
//		Platform:   "macOS",
//	})
//	// reg.RegistrationToken is "REG-" + 8 characters
//
//	// Later, the device presents the token
//	reg, err = service.Verify(ctx, "device-123", token)
//	// reg.Status is now approved, token cannot be used again
//
// # Related Packages
//
//   - pkg/approval - Per-user device approval requests
//   - pkg/logingate - Login endpoint gated on device approval
package registration
