// Package memory provides the in-memory registry implementation.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/registry"
)

// room bundles everything owned by one meeting.
type room struct {
	meeting      models.Meeting
	participants []models.Participant
	chat         []models.ChatMessage

	// lastActive is bumped on every mutation and is what the reaper
	// inspects when deciding whether an empty meeting has gone stale.
	lastActive time.Time
}

// Registry implements registry.Registry with process-local state.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	// ttl is how long an empty meeting may stay inactive before the
	// reaper removes it. Zero disables reaping.
	ttl time.Duration

	now func() time.Time
}

// NewRegistry creates an empty in-memory registry. ttl of zero means
// meetings are kept for the lifetime of the process.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		ttl:   ttl,
		now:   time.Now,
	}
}

// StartReaper runs a background loop that periodically removes
// meetings with an empty roster that have been inactive longer than
// the configured TTL. It returns immediately; the loop stops when ctx
// is cancelled.
func (r *Registry) StartReaper(ctx context.Context, every time.Duration) {
	if r.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for _, id := range r.ReapInactive(r.now()) {
					slog.Info("reaped inactive meeting", "meeting", id)
				}
			}
		}
	}()
}

// ReapInactive removes every meeting whose roster is empty and whose
// last activity is older than the TTL, returning the removed ids.
func (r *Registry) ReapInactive(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []string
	threshold := now.Add(-r.ttl)
	for id, rm := range r.rooms {
		if len(rm.participants) == 0 && rm.lastActive.Before(threshold) {
			delete(r.rooms, id)
			reaped = append(reaped, id)
		}
	}
	return reaped
}

// CreateMeeting allocates a fresh meeting id and stores the meeting.
func (r *Registry) CreateMeeting(ctx context.Context, hostID, hostName, title, password string) (*models.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := registry.GenerateMeetingID(func(id string) bool {
		_, taken := r.rooms[id]
		return taken
	})
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = fmt.Sprintf("%s's Meeting", hostName)
	}
	m := models.Meeting{
		ID:        id,
		Title:     title,
		HostID:    hostID,
		HostName:  hostName,
		IsActive:  true,
		CreatedAt: r.now(),
		Password:  password,
	}
	r.rooms[id] = &room{meeting: m, lastActive: r.now()}

	out := m
	return &out, nil
}

// EnsureMeeting returns the meeting, creating an empty one on first
// reference to an unknown id.
func (r *Registry) EnsureMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		rm = &room{
			meeting: models.Meeting{
				ID:        id,
				IsActive:  true,
				CreatedAt: r.now(),
			},
			lastActive: r.now(),
		}
		r.rooms[id] = rm
	}
	out := rm.meeting
	return &out, nil
}

// GetMeeting returns the meeting or registry.ErrNotFound.
func (r *Registry) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[id]
	if !ok {
		return nil, registry.ErrNotFound
	}
	out := rm.meeting
	return &out, nil
}

// ListMeetings returns all current meetings.
func (r *Registry) ListMeetings(ctx context.Context) ([]*models.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meetings := make([]*models.Meeting, 0, len(r.rooms))
	for _, rm := range r.rooms {
		m := rm.meeting
		meetings = append(meetings, &m)
	}
	return meetings, nil
}

// DeleteMeeting removes the meeting and everything it owns.
func (r *Registry) DeleteMeeting(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return registry.ErrNotFound
	}
	delete(r.rooms, id)
	return nil
}

// AddParticipant appends p to the roster unless the id is already
// present. First insertion wins.
func (r *Registry) AddParticipant(ctx context.Context, meetingID string, p models.Participant) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return false, registry.ErrNotFound
	}
	rm.lastActive = r.now()
	for i := range rm.participants {
		if rm.participants[i].ID == p.ID {
			return false, nil
		}
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = r.now()
	}
	rm.participants = append(rm.participants, p)
	return true, nil
}

// RemoveParticipant removes by id; absent ids are a no-op.
func (r *Registry) RemoveParticipant(ctx context.Context, meetingID, participantID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return false, nil
	}
	rm.lastActive = r.now()
	for i := range rm.participants {
		if rm.participants[i].ID == participantID {
			rm.participants = append(rm.participants[:i], rm.participants[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

// RemoveParticipantByConn removes the participant bound to connID.
func (r *Registry) RemoveParticipantByConn(ctx context.Context, meetingID, connID string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return "", false, nil
	}
	rm.lastActive = r.now()
	for i := range rm.participants {
		if rm.participants[i].ConnID == connID {
			id := rm.participants[i].ID
			rm.participants = append(rm.participants[:i], rm.participants[i+1:]...)
			return id, true, nil
		}
	}
	return "", false, nil
}

// UpdateParticipant merges u into the matching entry and returns the
// merged participant.
func (r *Registry) UpdateParticipant(ctx context.Context, meetingID, participantID string, u models.ParticipantUpdate) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return nil, registry.ErrNotFound
	}
	rm.lastActive = r.now()
	for i := range rm.participants {
		if rm.participants[i].ID == participantID {
			u.Apply(&rm.participants[i])
			out := rm.participants[i]
			return &out, nil
		}
	}
	return nil, registry.ErrNotFound
}

// ListParticipants returns the roster in join order.
func (r *Registry) ListParticipants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return []models.Participant{}, nil
	}
	out := make([]models.Participant, len(rm.participants))
	copy(out, rm.participants)
	return out, nil
}

// AppendChatMessage appends to the meeting's chat history.
func (r *Registry) AppendChatMessage(ctx context.Context, meetingID string, msg models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return registry.ErrNotFound
	}
	rm.lastActive = r.now()
	rm.chat = append(rm.chat, msg)
	return nil
}

// ListChatMessages returns the chat history in send order.
func (r *Registry) ListChatMessages(ctx context.Context, meetingID string) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[meetingID]
	if !ok {
		return []models.ChatMessage{}, nil
	}
	out := make([]models.ChatMessage, len(rm.chat))
	copy(out, rm.chat)
	return out, nil
}
