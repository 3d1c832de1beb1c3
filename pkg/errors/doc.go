// Package errors provides structured error handling for device-gate.
//
// Every error carries a stable ErrorCode so that API handlers can map
// failures to HTTP status codes without string matching, and callers can
// branch on the code with IsCode:
//
//	reg, err := service.Verify(ctx, deviceID, token)
//	if errors.IsCode(err, errors.ErrCodeTokenExpired) {
//		// prompt the user to re-register
//	}
//
// Errors wrap their cause, so errors.Is / errors.As keep working through
// the chain. Storage-layer failures are wrapped with ErrCodeStorage and
// are never retried inside the core; retries belong to the caller.
package errors
