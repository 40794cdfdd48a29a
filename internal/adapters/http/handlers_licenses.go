package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/application"
)

func (h *Handler) issueLicense(w http.ResponseWriter, r *http.Request) {
	var req application.IssueLicenseRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.IssueLicense(r.Context(), req)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "issue_license", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) getLicense(w http.ResponseWriter, r *http.Request) {
	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid license_id")
		return
	}

	res, err := h.service.GetLicense(r.Context(), licenseID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) listLicenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := application.ListLicensesQuery{
		UserID:     q.Get("user_id"),
		Status:     q.Get("status"),
		OrderBy:    q.Get("order_by"),
		Descending: q.Get("order") != "asc",
		Page:       parseIntDefault(q.Get("page"), 1),
		PerPage:    parseIntDefault(q.Get("per_page"), 20),
	}

	items, err := h.service.ListLicenses(r.Context(), query)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"licenses": items})
}

func (h *Handler) listExpiringLicenses(w http.ResponseWriter, r *http.Request) {
	window := parseDurationDefault(r.URL.Query().Get("window"), 720*time.Hour)

	items, err := h.service.ListExpiringLicenses(r.Context(), window)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"licenses": items})
}

func (h *Handler) revokeLicense(w http.ResponseWriter, r *http.Request) {
	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid license_id")
		return
	}

	res, err := h.service.RevokeLicense(r.Context(), licenseID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "revoke_license", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) listActivations(w http.ResponseWriter, r *http.Request) {
	licenseID, err := uuid.Parse(chi.URLParam(r, "license_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid license_id")
		return
	}

	items, err := h.service.GetActivations(r.Context(), licenseID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"activations": items})
}
