// Package redis provides a Redis-backed registry implementation.
//
// Meetings survive signaling-server restarts only as far as the
// configured TTL allows; the coordinator itself stays single-instance.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/registry"
)

// Registry implements registry.Registry on top of a Redis client. The
// meeting and its roster are stored as JSON values, chat history as a
// list, all under prefixed keys carrying the configured TTL.
type Registry struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRegistry connects to Redis and verifies the connection.
func NewRegistry(cfg config.RedisConfig) (*Registry, error) {
	var client *redis.Client

	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("parse redis uri: %w", err)
		}
		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Registry{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.MeetingTTL,
	}, nil
}

// Close closes the underlying Redis connection.
func (r *Registry) Close() error {
	return r.client.Close()
}

func (r *Registry) meetingKey(id string) string {
	return fmt.Sprintf("%smeetings:%s", r.keyPrefix, id)
}

func (r *Registry) rosterKey(id string) string {
	return fmt.Sprintf("%smeetings:%s:roster", r.keyPrefix, id)
}

func (r *Registry) chatKey(id string) string {
	return fmt.Sprintf("%smeetings:%s:chat", r.keyPrefix, id)
}

func (r *Registry) saveMeeting(ctx context.Context, m *models.Meeting) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal meeting: %w", err)
	}
	if err := r.client.Set(ctx, r.meetingKey(m.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save meeting: %w", err)
	}
	return nil
}

func (r *Registry) loadMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	data, err := r.client.Get(ctx, r.meetingKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("get meeting: %w", err)
	}
	var m models.Meeting
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal meeting: %w", err)
	}
	return &m, nil
}

// storedParticipant keeps the connection binding, which the public
// model deliberately hides from JSON.
type storedParticipant struct {
	models.Participant
	ConnID string `json:"connId,omitempty"`
}

func (r *Registry) loadRoster(ctx context.Context, id string) ([]storedParticipant, error) {
	data, err := r.client.Get(ctx, r.rosterKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get roster: %w", err)
	}
	var roster []storedParticipant
	if err := json.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("unmarshal roster: %w", err)
	}
	return roster, nil
}

func (r *Registry) saveRoster(ctx context.Context, id string, roster []storedParticipant) error {
	data, err := json.Marshal(roster)
	if err != nil {
		return fmt.Errorf("marshal roster: %w", err)
	}
	if err := r.client.Set(ctx, r.rosterKey(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	return nil
}

// CreateMeeting allocates a fresh meeting id and stores the meeting.
func (r *Registry) CreateMeeting(ctx context.Context, hostID, hostName, title, password string) (*models.Meeting, error) {
	id, err := registry.GenerateMeetingID(func(id string) bool {
		n, err := r.client.Exists(ctx, r.meetingKey(id)).Result()
		return err == nil && n > 0
	})
	if err != nil {
		return nil, err
	}

	if title == "" {
		title = fmt.Sprintf("%s's Meeting", hostName)
	}
	m := &models.Meeting{
		ID:        id,
		Title:     title,
		HostID:    hostID,
		HostName:  hostName,
		IsActive:  true,
		CreatedAt: time.Now(),
		Password:  password,
	}
	if err := r.saveMeeting(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// EnsureMeeting returns the meeting, creating an empty one on first
// reference to an unknown id.
func (r *Registry) EnsureMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	m, err := r.loadMeeting(ctx, id)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}
	m = &models.Meeting{ID: id, IsActive: true, CreatedAt: time.Now()}
	if err := r.saveMeeting(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetMeeting returns the meeting or registry.ErrNotFound.
func (r *Registry) GetMeeting(ctx context.Context, id string) (*models.Meeting, error) {
	return r.loadMeeting(ctx, id)
}

// ListMeetings scans all meeting keys.
func (r *Registry) ListMeetings(ctx context.Context) ([]*models.Meeting, error) {
	pattern := fmt.Sprintf("%smeetings:*", r.keyPrefix)
	var meetings []*models.Meeting

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":roster") || strings.HasSuffix(key, ":chat") {
			continue
		}
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var m models.Meeting
		if err := json.Unmarshal(data, &m); err != nil {
			continue
		}
		meetings = append(meetings, &m)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan meetings: %w", err)
	}
	return meetings, nil
}

// DeleteMeeting removes the meeting and everything it owns.
func (r *Registry) DeleteMeeting(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.meetingKey(id), r.rosterKey(id), r.chatKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if n == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// AddParticipant appends to the roster unless the id is present.
func (r *Registry) AddParticipant(ctx context.Context, meetingID string, p models.Participant) (bool, error) {
	if _, err := r.loadMeeting(ctx, meetingID); err != nil {
		return false, err
	}
	roster, err := r.loadRoster(ctx, meetingID)
	if err != nil {
		return false, err
	}
	for i := range roster {
		if roster[i].Participant.ID == p.ID {
			return false, nil
		}
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now()
	}
	sp := storedParticipant{Participant: p, ConnID: p.ConnID}
	if err := r.saveRoster(ctx, meetingID, append(roster, sp)); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveParticipant removes by id; absent ids are a no-op.
func (r *Registry) RemoveParticipant(ctx context.Context, meetingID, participantID string) (bool, error) {
	roster, err := r.loadRoster(ctx, meetingID)
	if err != nil {
		return false, err
	}
	for i := range roster {
		if roster[i].Participant.ID == participantID {
			roster = append(roster[:i], roster[i+1:]...)
			return true, r.saveRoster(ctx, meetingID, roster)
		}
	}
	return false, nil
}

// RemoveParticipantByConn removes the participant bound to connID.
func (r *Registry) RemoveParticipantByConn(ctx context.Context, meetingID, connID string) (string, bool, error) {
	roster, err := r.loadRoster(ctx, meetingID)
	if err != nil {
		return "", false, err
	}
	for i := range roster {
		if roster[i].ConnID == connID {
			id := roster[i].Participant.ID
			roster = append(roster[:i], roster[i+1:]...)
			return id, true, r.saveRoster(ctx, meetingID, roster)
		}
	}
	return "", false, nil
}

// UpdateParticipant merges the update and returns the merged entry.
func (r *Registry) UpdateParticipant(ctx context.Context, meetingID, participantID string, u models.ParticipantUpdate) (*models.Participant, error) {
	roster, err := r.loadRoster(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	for i := range roster {
		if roster[i].Participant.ID == participantID {
			u.Apply(&roster[i].Participant)
			if err := r.saveRoster(ctx, meetingID, roster); err != nil {
				return nil, err
			}
			out := roster[i].Participant
			out.ConnID = roster[i].ConnID
			return &out, nil
		}
	}
	return nil, registry.ErrNotFound
}

// ListParticipants returns the roster in join order.
func (r *Registry) ListParticipants(ctx context.Context, meetingID string) ([]models.Participant, error) {
	roster, err := r.loadRoster(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Participant, 0, len(roster))
	for i := range roster {
		p := roster[i].Participant
		p.ConnID = roster[i].ConnID
		out = append(out, p)
	}
	return out, nil
}

// AppendChatMessage pushes onto the meeting's chat list.
func (r *Registry) AppendChatMessage(ctx context.Context, meetingID string, msg models.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}
	key := r.chatKey(meetingID)
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	if r.ttl > 0 {
		r.client.Expire(ctx, key, r.ttl)
	}
	return nil
}

// ListChatMessages returns the chat history in send order.
func (r *Registry) ListChatMessages(ctx context.Context, meetingID string) ([]models.ChatMessage, error) {
	raw, err := r.client.LRange(ctx, r.chatKey(meetingID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}
