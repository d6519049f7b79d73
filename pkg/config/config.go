package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Room service connection.
	RoomURL       string
	RoomAPIKey    string
	RoomName      string
	AgentIdentity string

	// Google AI + Maps.
	GeminiAPIKey   string
	GoogleMapsKey  string
	CardModel      string
	ResponseModel  string
	EmbeddingModel string

	// Postgres (knowledge base + session persistence).
	DatabaseURL string

	// SMTP for calendar invites.
	SMTPHost       string
	SMTPPort       int
	SenderEmail    string
	SenderPassword string
	InviteTimezone string

	// Session behavior.
	KBFetchSize         int
	LocationTimeout     time.Duration
	ContactPreviewDelay time.Duration
	ContactSubmitDelay  time.Duration

	// Socket tuning.
	PingInterval  time.Duration
	WriteTimeout  time.Duration
	OutboundQueue int

	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		RoomURL:             envOr("VOX_ROOM_URL", ""),
		RoomAPIKey:          envOr("VOX_ROOM_API_KEY", ""),
		RoomName:            envOr("VOX_ROOM_NAME", ""),
		AgentIdentity:       envOr("VOX_AGENT_IDENTITY", "voxbridge-agent"),
		GeminiAPIKey:        envOr("GEMINI_API_KEY", ""),
		GoogleMapsKey:       envOr("GOOGLE_MAPS_API_KEY", ""),
		CardModel:           envOr("VOX_CARD_MODEL", "gemini-2.0-flash"),
		ResponseModel:       envOr("VOX_RESPONSE_MODEL", "gemini-2.0-flash"),
		EmbeddingModel:      envOr("VOX_EMBEDDING_MODEL", "gemini-embedding-001"),
		DatabaseURL:         envOr("DATABASE_URL", ""),
		SMTPHost:            envOr("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:            envIntOr("SMTP_PORT", 587),
		SenderEmail:         envOr("SENDER_EMAIL", ""),
		SenderPassword:      envOr("SENDER_PASSWORD", ""),
		InviteTimezone:      envOr("VOX_INVITE_TIMEZONE", "Asia/Kolkata"),
		KBFetchSize:         envIntOr("VOX_KB_FETCH_SIZE", 10),
		LocationTimeout:     envDurationOr("VOX_LOCATION_TIMEOUT", 15*time.Second),
		ContactPreviewDelay: envDurationOr("VOX_CONTACT_PREVIEW_DELAY", 2*time.Second),
		ContactSubmitDelay:  envDurationOr("VOX_CONTACT_SUBMIT_DELAY", 500*time.Millisecond),
		PingInterval:        envDurationOr("VOX_WS_PING_INTERVAL", 20*time.Second),
		WriteTimeout:        envDurationOr("VOX_WS_WRITE_TIMEOUT", 5*time.Second),
		OutboundQueue:       envIntOr("VOX_WS_OUTBOUND_QUEUE", 64),
		ShutdownGracePeriod: envDurationOr("VOX_SHUTDOWN_GRACE_PERIOD", 15*time.Second),
	}

	if strings.TrimSpace(cfg.RoomURL) == "" {
		return Config{}, fmt.Errorf("VOX_ROOM_URL must be set")
	}
	if strings.TrimSpace(cfg.RoomName) == "" {
		return Config{}, fmt.Errorf("VOX_ROOM_NAME must be set")
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.SMTPPort <= 0 {
		return Config{}, fmt.Errorf("SMTP_PORT must be > 0")
	}
	if cfg.KBFetchSize <= 0 {
		return Config{}, fmt.Errorf("VOX_KB_FETCH_SIZE must be > 0")
	}
	if cfg.LocationTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_LOCATION_TIMEOUT must be > 0")
	}
	if cfg.ContactPreviewDelay < 0 {
		return Config{}, fmt.Errorf("VOX_CONTACT_PREVIEW_DELAY must be >= 0")
	}
	if cfg.ContactSubmitDelay < 0 {
		return Config{}, fmt.Errorf("VOX_CONTACT_SUBMIT_DELAY must be >= 0")
	}
	if cfg.PingInterval <= 0 {
		return Config{}, fmt.Errorf("VOX_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WriteTimeout <= 0 {
		return Config{}, fmt.Errorf("VOX_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.OutboundQueue <= 0 {
		return Config{}, fmt.Errorf("VOX_WS_OUTBOUND_QUEUE must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("VOX_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if _, err := time.LoadLocation(cfg.InviteTimezone); err != nil {
		return Config{}, fmt.Errorf("VOX_INVITE_TIMEZONE is not a valid IANA timezone: %w", err)
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
