package api

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/device-gate/pkg/errors"
	"github.com/tendant/device-gate/pkg/registration"
)

// RegistrationHandler handles HTTP requests for device registration
type RegistrationHandler struct {
	registrationService *registration.RegistrationService
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(registrationService *registration.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{
		registrationService: registrationService,
	}
}

// RegisterDeviceRequest represents the request body for registering a device
type RegisterDeviceRequest struct {
	TenantID   string `json:"tenant_id"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Platform   string `json:"platform"`
	OSVersion  string `json:"os_version,omitempty"`
}

// RegisterDeviceResponse represents the response body for registering a device
type RegisterDeviceResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	RegistrationToken string `json:"registration_token"`
	TokenExpiry       string `json:"token_expiry"`
}

// VerifyTokenRequest represents the request body for verifying a registration token
type VerifyTokenRequest struct {
	DeviceID          string `json:"device_id"`
	RegistrationToken string `json:"registration_token"`
}

// VerifyTokenResponse represents the response body for verifying a registration token
type VerifyTokenResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	DeviceName string `json:"device_name"`
	TenantID   string `json:"tenant_id"`
}

// ListRegistrationsResponse represents the response body for the admin listing
type ListRegistrationsResponse struct {
	Status  string                            `json:"status"`
	Message string                            `json:"message"`
	Devices []registration.DeviceRegistration `json:"devices"`
}

// UpdateStatusRequest represents the request body for a manual status change
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// RegisterDevice handles registering a device and issuing a token
func (h *RegistrationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	reg, err := h.registrationService.Register(r.Context(), registration.RegisterDeviceParams{
		TenantID:   req.TenantID,
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
		OSVersion:  req.OSVersion,
		IPAddress:  r.RemoteAddr,
	})
	if err != nil {
		slog.Error("Failed to register device", "error", err)
		renderServiceError(w, r, err, "Failed to register device")
		return
	}

	response := RegisterDeviceResponse{
		Status:            "success",
		Message:           "Device registered successfully",
		RegistrationToken: reg.RegistrationToken,
		TokenExpiry:       reg.TokenExpiry.Format(http.TimeFormat),
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// VerifyToken handles one-shot verification of a registration token
func (h *RegistrationHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req VerifyTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if req.DeviceID == "" || req.RegistrationToken == "" {
		renderErrorResponse(w, r, http.StatusBadRequest, "Missing required field", "device_id and registration_token are required")
		return
	}

	reg, err := h.registrationService.Verify(r.Context(), req.DeviceID, req.RegistrationToken)
	if err != nil {
		slog.Error("Failed to verify registration token", "error", err, "deviceID", req.DeviceID)
		renderServiceError(w, r, err, "Failed to verify registration token")
		return
	}

	response := VerifyTokenResponse{
		Status:     "success",
		Message:    "Device verified successfully",
		DeviceName: reg.DeviceName,
		TenantID:   reg.TenantID,
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// ListRegistrations handles the admin listing of registrations
func (h *RegistrationHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	status := registration.Status(r.URL.Query().Get("status"))

	regs, err := h.registrationService.ListRegistrations(r.Context(), tenantID, status)
	if err != nil {
		slog.Error("Failed to list device registrations", "error", err)
		renderServiceError(w, r, err, "Failed to list device registrations")
		return
	}

	response := ListRegistrationsResponse{
		Status:  "success",
		Message: "Device registrations retrieved successfully",
		Devices: regs,
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// UpdateStatus handles a manual admin status change on a registration
func (h *RegistrationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Failed to parse registration ID", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid registration ID", err.Error())
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if err := h.registrationService.UpdateStatus(r.Context(), id, registration.Status(req.Status)); err != nil {
		slog.Error("Failed to update registration status", "error", err, "id", id)
		renderServiceError(w, r, err, "Failed to update registration status")
		return
	}

	response := SuccessResponse{
		Status:  "success",
		Message: "Registration status updated successfully",
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// Handler returns a http.Handler for the registration API
func Handler(h *RegistrationHandler) http.Handler {
	r := chi.NewRouter()

	r.Post("/register", h.RegisterDevice)
	r.Post("/verify", h.VerifyToken)

	return r
}

// AdminHandler returns a http.Handler for the admin registration API
func AdminHandler(h *RegistrationHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListRegistrations)
	r.Put("/{id}/status", h.UpdateStatus)

	return r
}

// renderServiceError maps a service error to an HTTP response
func renderServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var gateErr *errors.Error
	if stderrors.As(err, &gateErr) {
		renderErrorResponse(w, r, gateErr.HTTPStatusCode(), gateErr.Message, "")
		return
	}
	renderErrorResponse(w, r, http.StatusInternalServerError, fallback, err.Error())
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
