package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetmesh/meetmesh/internal/config"
	"github.com/meetmesh/meetmesh/internal/models"
	"github.com/meetmesh/meetmesh/internal/registry"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	mr := miniredis.RunT(t)
	hostPort := strings.SplitN(mr.Addr(), ":", 2)

	r, err := NewRegistry(config.RedisConfig{
		Host:       hostPort[0],
		Port:       hostPort[1],
		KeyPrefix:  "meetmesh:",
		MeetingTTL: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRedisMeetingLifecycle(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	m, err := r.CreateMeeting(ctx, "host-1", "Alice", "", "s3cret")
	require.NoError(t, err)
	assert.True(t, registry.ValidMeetingID(m.ID))
	assert.Equal(t, "Alice's Meeting", m.Title)

	got, err := r.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, "s3cret", got.Password)

	require.NoError(t, r.DeleteMeeting(ctx, m.ID))
	_, err = r.GetMeeting(ctx, m.ID)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, r.DeleteMeeting(ctx, m.ID), registry.ErrNotFound)
}

func TestRedisEnsureMeeting(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	m, err := r.EnsureMeeting(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", m.ID)
	assert.True(t, m.IsActive)

	again, err := r.EnsureMeeting(ctx, "123456789")
	require.NoError(t, err)
	assert.Equal(t, m.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestRedisRoster(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.EnsureMeeting(ctx, "123456789")
	require.NoError(t, err)

	added, err := r.AddParticipant(ctx, "123456789", models.Participant{ID: "p1", Name: "Alice", ConnID: "conn-a"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.AddParticipant(ctx, "123456789", models.Participant{ID: "p1", Name: "Imposter"})
	require.NoError(t, err)
	assert.False(t, added, "first insertion wins")

	added, err = r.AddParticipant(ctx, "123456789", models.Participant{ID: "p2", Name: "Bob", ConnID: "conn-b"})
	require.NoError(t, err)
	assert.True(t, added)

	roster, err := r.ListParticipants(ctx, "123456789")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, "Alice", roster[0].Name)
	assert.Equal(t, "conn-a", roster[0].ConnID, "connection binding survives the round trip")

	id, removed, err := r.RemoveParticipantByConn(ctx, "123456789", "conn-b")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, "p2", id)

	removed, err = r.RemoveParticipant(ctx, "123456789", "p1")
	require.NoError(t, err)
	assert.True(t, removed)

	roster, err = r.ListParticipants(ctx, "123456789")
	require.NoError(t, err)
	assert.Empty(t, roster)
}

func TestRedisUpdateParticipant(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.EnsureMeeting(ctx, "123456789")
	require.NoError(t, err)
	_, err = r.AddParticipant(ctx, "123456789", models.Participant{ID: "p1", Name: "Alice", IsAudioOn: true})
	require.NoError(t, err)

	off := false
	merged, err := r.UpdateParticipant(ctx, "123456789", "p1", models.ParticipantUpdate{IsAudioOn: &off})
	require.NoError(t, err)
	assert.False(t, merged.IsAudioOn)
	assert.Equal(t, "Alice", merged.Name)

	_, err = r.UpdateParticipant(ctx, "123456789", "ghost", models.ParticipantUpdate{IsAudioOn: &off})
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestRedisChatHistory(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.EnsureMeeting(ctx, "123456789")
	require.NoError(t, err)

	for _, text := range []string{"first", "second"} {
		require.NoError(t, r.AppendChatMessage(ctx, "123456789", models.ChatMessage{ID: text, Text: text}))
	}

	history, err := r.ListChatMessages(ctx, "123456789")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Text)
	assert.Equal(t, "second", history[1].Text)
}

func TestRedisListMeetingsSkipsOwnedKeys(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	m, err := r.CreateMeeting(ctx, "host-1", "Alice", "", "")
	require.NoError(t, err)
	_, err = r.AddParticipant(ctx, m.ID, models.Participant{ID: "p1"})
	require.NoError(t, err)
	require.NoError(t, r.AppendChatMessage(ctx, m.ID, models.ChatMessage{ID: "c1", Text: "hi"}))

	meetings, err := r.ListMeetings(ctx)
	require.NoError(t, err)
	require.Len(t, meetings, 1, "roster and chat keys must not show up as meetings")
	assert.Equal(t, m.ID, meetings[0].ID)
}
