package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/meetmesh/meetmesh/internal/models"
)

// API is a thin client for the coordinator's REST snapshot surface.
type API struct {
	baseURL string
	http    *http.Client
}

// NewAPI creates a REST client for the given base URL.
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createMeetingRequest struct {
	HostID   string `json:"hostId"`
	HostName string `json:"hostName"`
	Title    string `json:"title,omitempty"`
	Password string `json:"password,omitempty"`
}

// CreateMeeting registers a new meeting and returns it with its
// allocated id.
func (a *API) CreateMeeting(ctx context.Context, hostID, hostName, title, password string) (*models.Meeting, error) {
	body := createMeetingRequest{
		HostID:   hostID,
		HostName: hostName,
		Title:    title,
		Password: password,
	}

	var meeting models.Meeting
	if err := a.post(ctx, "/meetings", body, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// GetMeeting fetches one meeting by id.
func (a *API) GetMeeting(ctx context.Context, meetingID string) (*models.Meeting, error) {
	var meeting models.Meeting
	if err := a.get(ctx, "/meetings/"+meetingID, &meeting); err != nil {
		return nil, err
	}
	return &meeting, nil
}

// ListParticipants fetches the current roster of a meeting.
func (a *API) ListParticipants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	var participants []models.Participant
	if err := a.get(ctx, "/meetings/"+meetingID+"/participants", &participants); err != nil {
		return nil, err
	}
	return participants, nil
}

func (a *API) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	return a.do(req, out)
}

func (a *API) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, out)
}

func (a *API) do(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("not found")
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
