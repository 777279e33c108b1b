package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kringle/internal/service"
)

type AssignmentHandler struct {
	svc    *service.AssignmentService
	logger *slog.Logger
}

func NewAssignmentHandler(svc *service.AssignmentService, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, logger: logger}
}

func (h *AssignmentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	views, err := h.svc.Generate(r.Context(), groupID, callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, views)
}

func (h *AssignmentHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req service.ManualAssignmentInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	view, err := h.svc.CreateManual(r.Context(), groupID, callerID(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	views, err := h.svc.List(r.Context(), groupID, callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	assignmentID, err := pathID(r, "assignmentID")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.Delete(r.Context(), groupID, callerID(r), assignmentID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
