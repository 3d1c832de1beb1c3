// Package logingate gates application logins on device approval.
//
// Credentials are checked first against an IdentityVerifier. Valid
// credentials from an approved device complete the login; from an
// unapproved device they file an approval request and report
// waiting_approval, and from a blocked device they report blocked without
// resetting the request.
package logingate
