// Package config provides configuration for the server and the client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default client configuration values.
const (
	DefaultServer = "localhost:8080"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
)

// LoadDotEnv loads a .env file if one is present. Missing files are
// fine; real environments set variables directly.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ServerConfig holds signaling-server configuration.
type ServerConfig struct {
	Port string

	// MeetingTTL is how long an empty meeting may stay inactive
	// before the reaper removes it. Zero keeps meetings for the
	// process lifetime.
	MeetingTTL   time.Duration
	ReapInterval time.Duration
}

// RedisConfig holds the optional Redis registry configuration.
type RedisConfig struct {
	Enabled bool
	// URI is prioritized if provided, otherwise individual
	// connection parameters are used.
	URI       string
	Host      string
	Port      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	// MeetingTTL is the key TTL for meetings (0 means no expiration).
	MeetingTTL time.Duration
}

// GetServerConfig loads server configuration from the environment.
func GetServerConfig() ServerConfig {
	ttlHours, _ := strconv.Atoi(getEnv("MEETING_TTL_HOURS", "24"))
	return ServerConfig{
		Port:         getEnv("PORT", "8080"),
		MeetingTTL:   time.Duration(ttlHours) * time.Hour,
		ReapInterval: getEnvDuration("MEETING_REAP_INTERVAL", 10*time.Minute),
	}
}

// GetRedisConfig loads Redis configuration from the environment.
func GetRedisConfig() RedisConfig {
	ttlHours, _ := strconv.Atoi(getEnv("REDIS_MEETING_TTL_HOURS", "24"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return RedisConfig{
		Enabled:    getEnvBool("REDIS_ENABLED", false),
		URI:        getEnv("REDIS_URI", ""),
		Host:       getEnv("REDIS_HOST", "localhost"),
		Port:       getEnv("REDIS_PORT", "6379"),
		Username:   getEnv("REDIS_USERNAME", ""),
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         db,
		KeyPrefix:  getEnv("REDIS_KEY_PREFIX", "meetmesh:"),
		MeetingTTL: time.Duration(ttlHours) * time.Hour,
	}
}

// ClientConfig holds meeting-client configuration.
type ClientConfig struct {
	// Server is the signaling server host:port.
	Server string

	// WebSocketURL and APIBaseURL are constructed from Server.
	WebSocketURL string
	APIBaseURL   string

	// ICE servers for WebRTC.
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// Insecure switches to ws/http instead of wss/https, for local
	// development against a plain listener.
	Insecure bool
}

// Options carries CLI flag overrides for the client config.
type Options struct {
	Server     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Insecure   bool
}

// Load reads client configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*ClientConfig, error) {
	server := opts.Server
	if server == "" {
		server = os.Getenv("MEETMESH_SERVER")
	}
	if server == "" {
		server = DefaultServer
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}
	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}

	insecure := opts.Insecure || getEnvBool("MEETMESH_INSECURE", false)

	wsScheme, httpScheme := "wss", "https"
	if insecure {
		wsScheme, httpScheme = "ws", "http"
	}

	return &ClientConfig{
		Server:       server,
		WebSocketURL: fmt.Sprintf("%s://%s/ws", wsScheme, server),
		APIBaseURL:   fmt.Sprintf("%s://%s", httpScheme, server),
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		Insecure:     insecure,
	}, nil
}

// GetSTUNServers returns STUN server URLs.
func (c *ClientConfig) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured.
func (c *ClientConfig) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns the TURN username and password.
func (c *ClientConfig) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
