package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/registry"
)

// MeetingHandler handles the REST snapshot API. It serves synchronous
// reads and page-level create/join/leave; the live protocol runs over
// the websocket hub.
type MeetingHandler struct {
	reg registry.Registry
}

// NewMeetingHandler creates a meeting handler backed by the registry.
func NewMeetingHandler(reg registry.Registry) *MeetingHandler {
	return &MeetingHandler{reg: reg}
}

type createMeetingRequest struct {
	HostID   string `json:"hostId"`
	HostName string `json:"hostName"`
	Title    string `json:"title,omitempty"`
	Password string `json:"password,omitempty"`
}

type joinMeetingRequest struct {
	Participant models.Participant `json:"participant"`
	Password    string             `json:"password,omitempty"`
}

type leaveMeetingRequest struct {
	ParticipantID string `json:"participantId"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// ServeHTTP routes by method and path.
//
// Path formats:
//
//	/meetings
//	/meetings/{id}
//	/meetings/{id}/join
//	/meetings/{id}/leave
//	/meetings/{id}/participants
//	/meetings/{id}/participants/{pid}
func (h *MeetingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	var meetingID, sub, participantID string
	if len(parts) >= 2 {
		meetingID = parts[1]
	}
	if len(parts) >= 3 {
		sub = parts[2]
	}
	if len(parts) >= 4 {
		participantID = parts[3]
	}

	switch {
	case r.Method == http.MethodPost && meetingID == "":
		h.createMeeting(w, r)
	case r.Method == http.MethodGet && meetingID != "" && sub == "":
		h.getMeeting(w, r, meetingID)
	case r.Method == http.MethodPost && sub == "join":
		h.joinMeeting(w, r, meetingID)
	case r.Method == http.MethodPost && sub == "leave":
		h.leaveMeeting(w, r, meetingID)
	case r.Method == http.MethodGet && sub == "participants" && participantID == "":
		h.listParticipants(w, r, meetingID)
	case r.Method == http.MethodPatch && sub == "participants" && participantID != "":
		h.updateParticipant(w, r, meetingID, participantID)
	default:
		http.NotFound(w, r)
	}
}

func (h *MeetingHandler) createMeeting(w http.ResponseWriter, r *http.Request) {
	var req createMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	meeting, err := h.reg.CreateMeeting(r.Context(), req.HostID, req.HostName, req.Title, req.Password)
	if err != nil {
		slog.Error("create meeting failed", "error", err)
		http.Error(w, "Error creating meeting", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(meeting)
}

func (h *MeetingHandler) getMeeting(w http.ResponseWriter, r *http.Request, meetingID string) {
	meeting, err := h.reg.GetMeeting(r.Context(), meetingID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			http.Error(w, "Meeting not found", http.StatusNotFound)
			return
		}
		slog.Error("get meeting failed", "meeting", meetingID, "error", err)
		http.Error(w, "Error retrieving meeting", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(meeting)
}

// joinMeeting adds a participant over REST. The first join attempt to
// an unknown id creates the meeting with an empty roster.
func (h *MeetingHandler) joinMeeting(w http.ResponseWriter, r *http.Request, meetingID string) {
	var req joinMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	meeting, err := h.reg.EnsureMeeting(r.Context(), meetingID)
	if err != nil {
		slog.Error("ensure meeting failed", "meeting", meetingID, "error", err)
		http.Error(w, "Error joining meeting", http.StatusInternalServerError)
		return
	}

	if meeting.Password != "" && req.Password != meeting.Password {
		http.Error(w, "Wrong meeting password", http.StatusForbidden)
		return
	}

	if _, err := h.reg.AddParticipant(r.Context(), meetingID, req.Participant); err != nil {
		slog.Error("add participant failed", "meeting", meetingID, "error", err)
		http.Error(w, "Error joining meeting", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(successResponse{Success: true})
}

func (h *MeetingHandler) leaveMeeting(w http.ResponseWriter, r *http.Request, meetingID string) {
	var req leaveMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Leaving is idempotent; absent participants are a no-op.
	if _, err := h.reg.RemoveParticipant(r.Context(), meetingID, req.ParticipantID); err != nil {
		slog.Error("remove participant failed", "meeting", meetingID, "error", err)
		http.Error(w, "Error leaving meeting", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(successResponse{Success: true})
}

func (h *MeetingHandler) listParticipants(w http.ResponseWriter, r *http.Request, meetingID string) {
	participants, err := h.reg.ListParticipants(r.Context(), meetingID)
	if err != nil {
		slog.Error("list participants failed", "meeting", meetingID, "error", err)
		http.Error(w, "Error retrieving participants", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(participants)
}

func (h *MeetingHandler) updateParticipant(w http.ResponseWriter, r *http.Request, meetingID, participantID string) {
	var updates models.ParticipantUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Updates to absent participants are absorbed, mirroring the
	// signaling path.
	if _, err := h.reg.UpdateParticipant(r.Context(), meetingID, participantID, updates); err != nil && !errors.Is(err, registry.ErrNotFound) {
		slog.Error("update participant failed", "meeting", meetingID, "error", err)
		http.Error(w, "Error updating participant", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(successResponse{Success: true})
}
