package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultServer, cfg.Server)
	assert.Equal(t, "wss://"+DefaultServer+"/ws", cfg.WebSocketURL)
	assert.Equal(t, "https://"+DefaultServer, cfg.APIBaseURL)
	assert.Equal(t, []string{DefaultSTUN}, cfg.GetSTUNServers())
	assert.Nil(t, cfg.GetTURNServers())
}

func TestLoadFlagBeatsEnv(t *testing.T) {
	t.Setenv("MEETMESH_SERVER", "env.example.com:9000")

	cfg, err := Load(Options{Server: "flag.example.com:8000"})
	require.NoError(t, err)
	assert.Equal(t, "flag.example.com:8000", cfg.Server)
}

func TestLoadEnvBeatsDefault(t *testing.T) {
	t.Setenv("MEETMESH_SERVER", "env.example.com:9000")
	t.Setenv("STUN_SERVER", "stun:custom:3478")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "env.example.com:9000", cfg.Server)
	assert.Equal(t, []string{"stun:custom:3478"}, cfg.GetSTUNServers())
}

func TestLoadInsecureSchemes(t *testing.T) {
	cfg, err := Load(Options{Server: "localhost:8080", Insecure: true})
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:8080/ws", cfg.WebSocketURL)
	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
}

func TestTURNConfiguration(t *testing.T) {
	cfg, err := Load(Options{
		TURNServer: "turn:relay.example.com",
		TURNUser:   "user",
		TURNPass:   "pass",
	})
	require.NoError(t, err)

	servers := cfg.GetTURNServers()
	require.Len(t, servers, 2)
	assert.Contains(t, servers[0], "transport=udp")
	assert.Contains(t, servers[1], "transport=tcp")

	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "user", user)
	assert.Equal(t, "pass", pass)
}

func TestGetServerConfig(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("MEETING_TTL_HOURS", "2")
	t.Setenv("MEETING_REAP_INTERVAL", "5m")

	cfg := GetServerConfig()
	assert.Equal(t, "9999", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.MeetingTTL)
	assert.Equal(t, 5*time.Minute, cfg.ReapInterval)
}

func TestGetRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")

	cfg := GetRedisConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "redis.internal", cfg.Host)
	assert.Equal(t, "6380", cfg.Port)
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "meetmesh:", cfg.KeyPrefix)
}
