package profile

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the gateway.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the server
	Addr string
	// Port is the binding port for the server
	Port int
	// Version is the current version of the server
	Version string
	// LogLevel is the minimum slog level (debug, info, warn, error)
	LogLevel string

	// Producer selects the reply producer: "scripted" or "openai".
	Producer string
	// OpenAIAPIKey authenticates the OpenAI producer.
	OpenAIAPIKey string // CHATGATE_OPENAI_API_KEY
	// OpenAIBaseURL overrides the OpenAI-compatible endpoint.
	OpenAIBaseURL string // CHATGATE_OPENAI_BASE_URL
	// OpenAIModel is the chat model name.
	OpenAIModel string // CHATGATE_OPENAI_MODEL

	// MaxHistory caps retained messages per conversation.
	MaxHistory int // CHATGATE_MAX_HISTORY
	// MaxConversations caps live conversations.
	MaxConversations int // CHATGATE_MAX_CONVERSATIONS
	// MaxSessions caps concurrently streaming sessions.
	MaxSessions int // CHATGATE_MAX_SESSIONS
	// ResponseDelay is the pacing delay between reply chunks.
	ResponseDelay time.Duration // CHATGATE_RESPONSE_DELAY
	// SessionTimeout aborts sessions stuck on the producer; zero disables it.
	SessionTimeout time.Duration // CHATGATE_SESSION_TIMEOUT
	// IdleTTL is the conversation inactivity window before eviction.
	IdleTTL time.Duration // CHATGATE_IDLE_TTL
	// EvictionInterval is the cadence of the idle-eviction job.
	EvictionInterval time.Duration // CHATGATE_EVICTION_INTERVAL
	// RateLimitRPS is the per-client request rate; zero disables limiting.
	RateLimitRPS float64 // CHATGATE_RATE_LIMIT_RPS
	// RateLimitBurst is the per-client burst size.
	RateLimitBurst int // CHATGATE_RATE_LIMIT_BURST
}

// Default returns a profile with every knob at its default.
func Default() *Profile {
	return &Profile{
		Mode:             "dev",
		Addr:             "",
		Port:             8000,
		LogLevel:         "info",
		Producer:         "scripted",
		OpenAIBaseURL:    "https://api.openai.com/v1",
		OpenAIModel:      "gpt-4o-mini",
		MaxHistory:       10,
		MaxConversations: 10000,
		MaxSessions:      1000,
		ResponseDelay:    500 * time.Millisecond,
		SessionTimeout:   30 * time.Second,
		IdleTTL:          24 * time.Hour,
		EvictionInterval: 10 * time.Minute,
		RateLimitRPS:     10,
		RateLimitBurst:   20,
	}
}

// IsDev reports whether the gateway runs in development mode.
func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv overrides profile fields from CHATGATE_* environment variables.
// Unset or malformed values leave the existing field untouched.
func (p *Profile) FromEnv() {
	getInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	getFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}
	getDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	p.Mode = getEnvOrDefault("CHATGATE_MODE", p.Mode)
	p.Addr = getEnvOrDefault("CHATGATE_ADDR", p.Addr)
	getInt("CHATGATE_PORT", &p.Port)
	p.LogLevel = getEnvOrDefault("CHATGATE_LOG_LEVEL", p.LogLevel)

	p.Producer = getEnvOrDefault("CHATGATE_PRODUCER", p.Producer)
	p.OpenAIAPIKey = getEnvOrDefault("CHATGATE_OPENAI_API_KEY", p.OpenAIAPIKey)
	p.OpenAIBaseURL = getEnvOrDefault("CHATGATE_OPENAI_BASE_URL", p.OpenAIBaseURL)
	p.OpenAIModel = getEnvOrDefault("CHATGATE_OPENAI_MODEL", p.OpenAIModel)

	getInt("CHATGATE_MAX_HISTORY", &p.MaxHistory)
	getInt("CHATGATE_MAX_CONVERSATIONS", &p.MaxConversations)
	getInt("CHATGATE_MAX_SESSIONS", &p.MaxSessions)
	getDuration("CHATGATE_RESPONSE_DELAY", &p.ResponseDelay)
	getDuration("CHATGATE_SESSION_TIMEOUT", &p.SessionTimeout)
	getDuration("CHATGATE_IDLE_TTL", &p.IdleTTL)
	getDuration("CHATGATE_EVICTION_INTERVAL", &p.EvictionInterval)
	getFloat("CHATGATE_RATE_LIMIT_RPS", &p.RateLimitRPS)
	getInt("CHATGATE_RATE_LIMIT_BURST", &p.RateLimitBurst)
}

// Validate normalizes and checks the profile.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Port <= 0 || p.Port > 65535 {
		return errors.Errorf("invalid port: %d", p.Port)
	}
	if p.Producer != "scripted" && p.Producer != "openai" {
		return errors.Errorf("unsupported producer: %s (valid: scripted, openai)", p.Producer)
	}
	if p.Producer == "openai" && p.OpenAIAPIKey == "" {
		return errors.New("openai producer requires CHATGATE_OPENAI_API_KEY")
	}
	if p.MaxHistory <= 0 {
		return errors.Errorf("max history must be positive: %d", p.MaxHistory)
	}
	if p.MaxConversations <= 0 {
		return errors.Errorf("max conversations must be positive: %d", p.MaxConversations)
	}
	if p.MaxSessions <= 0 {
		return errors.Errorf("max sessions must be positive: %d", p.MaxSessions)
	}
	if p.ResponseDelay < 0 {
		return errors.Errorf("response delay must not be negative: %s", p.ResponseDelay)
	}
	return nil
}
