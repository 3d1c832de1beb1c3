package logingate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tendant/device-gate/pkg/approval"
	"github.com/tendant/device-gate/pkg/errors"
	"github.com/tendant/device-gate/pkg/tokengenerator"
)

// Identity is an authenticated user as reported by the identity backend
type Identity struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
}

// IdentityVerifier checks credentials against an identity backend.
// Implementations return an error for unknown users or wrong passwords.
type IdentityVerifier interface {
	Verify(ctx context.Context, email, password string) (Identity, error)
}

// AccessTokenExpiry is the lifetime of tokens minted on approved logins
const AccessTokenExpiry = 24 * time.Hour

// LoginGateService authenticates credentials and then gates the login on
// device approval. Valid credentials from an unapproved device do not log
// in; they file an approval request and wait.
type LoginGateService struct {
	verifier        IdentityVerifier
	approvalService *approval.ApprovalService
	tokenGenerator  tokengenerator.TokenGenerator
}

// Option configures a LoginGateService
type Option func(*LoginGateService)

// WithTokenGenerator enables minting an access token on approved logins
func WithTokenGenerator(tg tokengenerator.TokenGenerator) Option {
	return func(s *LoginGateService) {
		s.tokenGenerator = tg
	}
}

// NewLoginGateService creates a new login gate service
func NewLoginGateService(verifier IdentityVerifier, approvalService *approval.ApprovalService, opts ...Option) *LoginGateService {
	s := &LoginGateService{
		verifier:        verifier,
		approvalService: approvalService,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoginParams carries the fields a device submits when signing in
type LoginParams struct {
	Email      string
	Password   string
	DeviceID   string
	Domain     string
	DeviceName string
	Platform   string
	IPAddress  string
}

func (p LoginParams) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"email", p.Email},
		{"password", p.Password},
		{"device_id", p.DeviceID},
		{"domain", p.Domain},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return errors.MissingRequired(f.name)
		}
	}
	return nil
}

const (
	// LoginApproved means the credentials were valid and the device passed
	LoginApproved = "approved"
	// LoginWaitingApproval means the credentials were valid but the device
	// has not been approved; an approval request is on file
	LoginWaitingApproval = "waiting_approval"
	// LoginBlocked means the credentials were valid but the device request
	// was blocked by an admin
	LoginBlocked = "blocked"
)

// LoginResult is the outcome of a gated login
type LoginResult struct {
	Status       string                `json:"status"`
	Identity     Identity              `json:"identity,omitempty"`
	DeviceStatus approval.StatusResult `json:"device_status"`
	AccessToken  string                `json:"access_token,omitempty"`
	TokenExpiry  time.Time             `json:"token_expiry,omitempty"`
}

// Login authenticates the credentials, then consults the device approval
// state. An approved device logs in and, when a token generator is
// configured, receives an access token. An unapproved device has a request
// filed (or its existing one left standing) and waits. A blocked device
// stays blocked; logging in again does not reset the request.
func (s *LoginGateService) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	if err := params.validate(); err != nil {
		return LoginResult{}, err
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))

	identity, err := s.verifier.Verify(ctx, email, params.Password)
	if err != nil {
		slog.Info("Login credentials rejected", "email", email)
		return LoginResult{}, errors.New(errors.ErrCodeUnauthorized, "invalid email or password")
	}

	deviceStatus, err := s.approvalService.CheckStatus(ctx, params.DeviceID, params.Domain)
	if err != nil {
		return LoginResult{}, err
	}

	switch deviceStatus.Status {
	case approval.RequestApproved:
		result := LoginResult{
			Status:       LoginApproved,
			Identity:     identity,
			DeviceStatus: deviceStatus,
		}
		if s.tokenGenerator != nil {
			token, expiry, err := s.tokenGenerator.GenerateToken(identity.UserID, AccessTokenExpiry, nil, map[string]interface{}{
				"email":     identity.Email,
				"device_id": params.DeviceID,
				"domain":    strings.ToLower(params.Domain),
			})
			if err != nil {
				slog.Error("Failed to generate access token", "userID", identity.UserID, "error", err)
				return LoginResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate access token")
			}
			result.AccessToken = token
			result.TokenExpiry = expiry
		}
		slog.Info("Login approved", "userID", identity.UserID, "deviceID", params.DeviceID, "domain", params.Domain)
		return result, nil

	case approval.RequestBlocked:
		slog.Info("Login from blocked device", "userID", identity.UserID, "deviceID", params.DeviceID)
		return LoginResult{
			Status:       LoginBlocked,
			DeviceStatus: deviceStatus,
		}, nil

	default:
		// Pending, expired, or no request yet: (re)file the request and wait
		requested, err := s.approvalService.RequestAccess(ctx, approval.RequestAccessParams{
			DeviceID:   params.DeviceID,
			UserID:     identity.UserID,
			Name:       identity.Name,
			Email:      identity.Email,
			Domain:     params.Domain,
			DeviceName: params.DeviceName,
			Platform:   params.Platform,
			IPAddress:  params.IPAddress,
		})
		if err != nil {
			return LoginResult{}, err
		}
		slog.Info("Login waiting for device approval", "userID", identity.UserID, "deviceID", params.DeviceID)
		return LoginResult{
			Status:       LoginWaitingApproval,
			DeviceStatus: requested,
		}, nil
	}
}
