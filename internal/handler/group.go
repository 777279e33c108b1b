package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/kringle/internal/model"
	"github.com/dukerupert/kringle/internal/service"
)

type GroupHandler struct {
	svc    *service.GroupService
	logger *slog.Logger
}

func NewGroupHandler(svc *service.GroupService, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{svc: svc, logger: logger}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateGroupInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	g, err := h.svc.Create(r.Context(), callerID(r), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.List(r.Context(), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	detail, err := h.svc.Get(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.Join(r.Context(), r.PathValue("code"), callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *GroupHandler) SetAssignmentMode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req struct {
		AssignmentMode model.AssignmentMode `json:"assignment_mode"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	g, err := h.svc.SetAssignmentMode(r.Context(), id, callerID(r), req.AssignmentMode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) RegenerateInviteCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	g, err := h.svc.RegenerateInviteCode(r.Context(), id, callerID(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req service.SendInviteInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.SendInvite(r.Context(), id, callerID(r), req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
