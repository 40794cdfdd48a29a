package http

import (
	"net/http"

	"github.com/keygate/license-service/internal/application"
)

type licenseBindingRequest struct {
	LicenseKey  string `json:"license_key"`
	Fingerprint string `json:"fingerprint"`
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req application.ActivateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.SourceIP == "" {
		req.SourceIP = readIP(r)
	}

	res, err := h.service.Activate(r.Context(), req)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "activate_license", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	var req licenseBindingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	if err := h.service.Deactivate(r.Context(), req.LicenseKey, req.Fingerprint); err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "deactivate_license", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "Deactivated")
}

// validate reports the license verdict as a payload, not an HTTP error.
// An invalid license is a successful validation with valid=false.
func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req licenseBindingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.Validate(r.Context(), req.LicenseKey, req.Fingerprint)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "validate_license", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req licenseBindingRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.Heartbeat(r.Context(), req.LicenseKey, req.Fingerprint)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "heartbeat", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
