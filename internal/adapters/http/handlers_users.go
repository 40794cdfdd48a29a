package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/keygate/license-service/internal/application"
)

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req application.CreateUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	res, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "create_user", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}

	res, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) verifyUser(w http.ResponseWriter, r *http.Request) {
	h.transitionUser(w, r, h.service.VerifyUser)
}

func (h *Handler) activateUser(w http.ResponseWriter, r *http.Request) {
	h.transitionUser(w, r, h.service.ActivateUser)
}

func (h *Handler) blockUser(w http.ResponseWriter, r *http.Request) {
	h.transitionUser(w, r, h.service.BlockUser)
}

func (h *Handler) unblockUser(w http.ResponseWriter, r *http.Request) {
	h.transitionUser(w, r, h.service.UnblockUser)
}

func (h *Handler) transitionUser(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, userID uuid.UUID) (application.UserView, error),
) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}

	res, err := transition(r.Context(), userID)
	if err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "transition_user", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid user_id")
		return
	}

	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		status, code, msg := mapDomainError(err)
		logHTTPOperationError(r.Context(), "delete_user", status, code, msg, err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted")
}
