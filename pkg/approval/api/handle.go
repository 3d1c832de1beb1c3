package api

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/device-gate/pkg/approval"
	"github.com/tendant/device-gate/pkg/errors"
)

// ApprovalHandler handles HTTP requests for device approval
type ApprovalHandler struct {
	approvalService *approval.ApprovalService
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(approvalService *approval.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{
		approvalService: approvalService,
	}
}

// RequestAccessRequest represents the request body for filing an approval request
type RequestAccessRequest struct {
	DeviceID   string `json:"device_id"`
	UserID     string `json:"user_id"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Domain     string `json:"domain"`
	DeviceName string `json:"device_name,omitempty"`
	Platform   string `json:"platform,omitempty"`
}

// StatusResponse represents the response body carrying a device status
type StatusResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// CheckStatusRequest represents the request body for a status check
type CheckStatusRequest struct {
	DeviceID string `json:"device_id"`
	Domain   string `json:"domain"`
}

// ListRequestsResponse represents the response body for the admin request listing
type ListRequestsResponse struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message"`
	Requests []approval.DeviceRequest `json:"requests"`
}

// DecisionResponse represents the response body for approve/block decisions
type DecisionResponse struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message"`
	Request approval.DeviceRequest `json:"request"`
}

// ListApprovedDevicesResponse represents the response body for the approved device listing
type ListApprovedDevicesResponse struct {
	Status  string                    `json:"status"`
	Message string                    `json:"message"`
	Devices []approval.ApprovedDevice `json:"devices"`
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

func statusResponse(result approval.StatusResult, message string) StatusResponse {
	resp := StatusResponse{
		Status:  string(result.Status),
		Message: message,
	}
	if !result.ExpiresAt.IsZero() {
		resp.ExpiresAt = result.ExpiresAt.Format(http.TimeFormat)
	}
	return resp
}

// RequestAccess handles a device filing an approval request
func (h *ApprovalHandler) RequestAccess(w http.ResponseWriter, r *http.Request) {
	var req RequestAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.approvalService.RequestAccess(r.Context(), approval.RequestAccessParams{
		DeviceID:   req.DeviceID,
		UserID:     req.UserID,
		Name:       req.Name,
		Email:      req.Email,
		Domain:     req.Domain,
		DeviceName: req.DeviceName,
		Platform:   req.Platform,
		IPAddress:  r.RemoteAddr,
	})
	if err != nil {
		slog.Error("Failed to file device request", "error", err)
		renderServiceError(w, r, err, "Failed to file device request")
		return
	}

	message := "Device approval requested"
	if result.Status == approval.RequestApproved {
		message = "Device is already approved"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, statusResponse(result, message))
}

// CheckStatus handles a device polling for its approval outcome
func (h *ApprovalHandler) CheckStatus(w http.ResponseWriter, r *http.Request) {
	var req CheckStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	result, err := h.approvalService.CheckStatus(r.Context(), req.DeviceID, req.Domain)
	if err != nil {
		slog.Error("Failed to check device status", "error", err, "deviceID", req.DeviceID)
		renderServiceError(w, r, err, "Failed to check device status")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, statusResponse(result, "Device status retrieved"))
}

// ListRequests handles the admin listing of device requests
func (h *ApprovalHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	status := approval.RequestStatus(r.URL.Query().Get("status"))

	reqs, err := h.approvalService.ListRequests(r.Context(), domain, status)
	if err != nil {
		slog.Error("Failed to list device requests", "error", err)
		renderServiceError(w, r, err, "Failed to list device requests")
		return
	}

	response := ListRequestsResponse{
		Status:   "success",
		Message:  "Device requests retrieved successfully",
		Requests: reqs,
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// Approve handles an admin approving a device request
func (h *ApprovalHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, approval.RequestApproved)
}

// Block handles an admin blocking a device request
func (h *ApprovalHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, approval.RequestBlocked)
}

func (h *ApprovalHandler) decide(w http.ResponseWriter, r *http.Request, status approval.RequestStatus) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		slog.Error("Failed to parse request ID", "error", err)
		renderErrorResponse(w, r, http.StatusBadRequest, "Invalid request ID", err.Error())
		return
	}

	var req approval.DeviceRequest
	if status == approval.RequestApproved {
		req, err = h.approvalService.Approve(r.Context(), id)
	} else {
		req, err = h.approvalService.Block(r.Context(), id)
	}
	if err != nil {
		slog.Error("Failed to decide device request", "error", err, "id", id, "status", status)
		renderServiceError(w, r, err, "Failed to decide device request")
		return
	}

	response := DecisionResponse{
		Status:  "success",
		Message: "Device request " + string(status),
		Request: req,
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// ListApprovedDevices handles the admin listing of the approval cache
func (h *ApprovalHandler) ListApprovedDevices(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")

	devices, err := h.approvalService.ListApprovedDevices(r.Context(), domain)
	if err != nil {
		slog.Error("Failed to list approved devices", "error", err)
		renderServiceError(w, r, err, "Failed to list approved devices")
		return
	}

	response := ListApprovedDevicesResponse{
		Status:  "success",
		Message: "Approved devices retrieved successfully",
		Devices: devices,
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// RevokeDevice handles an admin removing a device from the approval cache
func (h *ApprovalHandler) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "device_id")
	domain := r.URL.Query().Get("domain")

	if err := h.approvalService.RevokeDevice(r.Context(), deviceID, domain); err != nil {
		slog.Error("Failed to revoke approved device", "error", err, "deviceID", deviceID)
		renderServiceError(w, r, err, "Failed to revoke approved device")
		return
	}

	response := SuccessResponse{
		Status:  "success",
		Message: "Approved device revoked successfully",
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// Handler returns a http.Handler for the device-facing approval API
func Handler(h *ApprovalHandler) http.Handler {
	r := chi.NewRouter()

	r.Post("/request", h.RequestAccess)
	r.Post("/check_status", h.CheckStatus)

	return r
}

// AdminHandler returns a http.Handler for the admin approval API
func AdminHandler(h *ApprovalHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/requests", h.ListRequests)
	r.Post("/requests/{id}/approve", h.Approve)
	r.Post("/requests/{id}/block", h.Block)
	r.Get("/approved_devices", h.ListApprovedDevices)
	r.Delete("/approved_devices/{device_id}", h.RevokeDevice)

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
