package api

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/device-gate/pkg/errors"
	"github.com/tendant/device-gate/pkg/logingate"
)

// LoginHandler handles HTTP requests for the gated login
type LoginHandler struct {
	loginGateService *logingate.LoginGateService
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(loginGateService *logingate.LoginGateService) *LoginHandler {
	return &LoginHandler{
		loginGateService: loginGateService,
	}
}

// LoginRequest represents the request body for a gated login
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	DeviceID   string `json:"device_id"`
	Domain     string `json:"domain"`
	DeviceName string `json:"device_name,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// LoginResponse represents the response body for a gated login
type LoginResponse struct {
	Status       string              `json:"status"`
	Message      string              `json:"message"`
	Identity     *logingate.Identity `json:"identity,omitempty"`
	DeviceStatus string              `json:"device_status"`
	ExpiresAt    string              `json:"expires_at,omitempty"`
	AccessToken  string              `json:"access_token,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Login handles a gated login attempt
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.loginGateService.Login(r.Context(), logingate.LoginParams{
		Email:      req.Email,
		Password:   req.Password,
		DeviceID:   req.DeviceID,
		Domain:     req.Domain,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
		IPAddress:  r.RemoteAddr,
	})
	if err != nil {
		var gateErr *errors.Error
		if stderrors.As(err, &gateErr) {
			renderErrorResponse(w, r, gateErr.HTTPStatusCode(), gateErr.Message, "")
			return
		}
		slog.Error("Failed to process login", "error", err)
		renderErrorResponse(w, r, http.StatusInternalServerError, "Failed to process login", err.Error())
		return
	}

	response := LoginResponse{
		Status:       result.Status,
		DeviceStatus: string(result.DeviceStatus.Status),
		AccessToken:  result.AccessToken,
	}
	if !result.DeviceStatus.ExpiresAt.IsZero() {
		response.ExpiresAt = result.DeviceStatus.ExpiresAt.Format(http.TimeFormat)
	}

	switch result.Status {
	case logingate.LoginApproved:
		response.Message = "Login successful"
		response.Identity = &result.Identity
	case logingate.LoginBlocked:
		response.Message = "Device is blocked for this domain"
	default:
		response.Message = "Device approval pending"
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// Handler returns a http.Handler for the login API
func Handler(h *LoginHandler) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.Login)

	return r
}

// renderErrorResponse renders an error response with the given status code and message
func renderErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message, errorDetail string) {
	response := ErrorResponse{
		Status:  "error",
		Message: message,
	}

	if errorDetail != "" {
		response.Error = errorDetail
	}

	render.Status(r, statusCode)
	render.JSON(w, r, response)
}
