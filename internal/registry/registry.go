// Package registry defines the storage interface for meetings,
// participants and chat history.
package registry

import (
	"context"
	"errors"

	"github.com/meetmesh/meetmesh/internal/models"
)

// Common errors shared by all registry implementations.
var (
	// ErrNotFound is returned when a requested meeting or participant
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrWrongPassword is returned when a join request carries a
	// password that does not match the meeting's.
	ErrWrongPassword = errors.New("wrong meeting password")

	// ErrIDSpaceExhausted is returned when meeting id allocation ran
	// out of retries without finding an unused id.
	ErrIDSpaceExhausted = errors.New("meeting id space exhausted")
)

// Registry stores meetings, their rosters and their chat history.
//
// The session coordinator is the only writer during normal operation;
// implementations still guard their state so REST snapshot reads can
// run concurrently with the coordinator loop.
type Registry interface {
	// CreateMeeting allocates a fresh 9-digit meeting id and stores a
	// new meeting. Title defaults to "<hostName>'s Meeting" when empty.
	CreateMeeting(ctx context.Context, hostID, hostName, title, password string) (*models.Meeting, error)

	// EnsureMeeting returns the meeting with the given id, creating an
	// empty one if it does not exist yet. The first join attempt to an
	// unknown id creates the meeting.
	EnsureMeeting(ctx context.Context, id string) (*models.Meeting, error)

	// GetMeeting returns the meeting or ErrNotFound.
	GetMeeting(ctx context.Context, id string) (*models.Meeting, error)

	// ListMeetings returns all current meetings.
	ListMeetings(ctx context.Context) ([]*models.Meeting, error)

	// DeleteMeeting removes a meeting and its roster and chat history.
	DeleteMeeting(ctx context.Context, id string) error

	// AddParticipant adds p to the meeting's roster unless a
	// participant with the same id is already present. The first
	// insertion wins; later calls are ignored. Reports whether the
	// participant was newly added.
	AddParticipant(ctx context.Context, meetingID string, p models.Participant) (bool, error)

	// RemoveParticipant removes the participant by id. Removing an
	// absent participant is a no-op. Reports whether an entry was
	// actually removed.
	RemoveParticipant(ctx context.Context, meetingID, participantID string) (bool, error)

	// RemoveParticipantByConn removes the participant bound to the
	// given signaling connection id, if any, and returns the removed
	// entry's participant id.
	RemoveParticipantByConn(ctx context.Context, meetingID, connID string) (string, bool, error)

	// UpdateParticipant shallow-merges the update into the matching
	// entry and returns the merged participant. Updating an absent
	// participant returns ErrNotFound.
	UpdateParticipant(ctx context.Context, meetingID, participantID string, u models.ParticipantUpdate) (*models.Participant, error)

	// ListParticipants returns the roster in join order.
	ListParticipants(ctx context.Context, meetingID string) ([]models.Participant, error)

	// AppendChatMessage appends msg to the meeting's chat history.
	AppendChatMessage(ctx context.Context, meetingID string, msg models.ChatMessage) error

	// ListChatMessages returns the chat history in send order.
	ListChatMessages(ctx context.Context, meetingID string) ([]models.ChatMessage, error)
}
