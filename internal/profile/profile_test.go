package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())
	assert.True(t, p.IsDev())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CHATGATE_MODE", "prod")
	t.Setenv("CHATGATE_PORT", "9090")
	t.Setenv("CHATGATE_MAX_HISTORY", "25")
	t.Setenv("CHATGATE_RESPONSE_DELAY", "50ms")
	t.Setenv("CHATGATE_RATE_LIMIT_RPS", "2.5")
	t.Setenv("CHATGATE_PRODUCER", "openai")
	t.Setenv("CHATGATE_OPENAI_API_KEY", "sk-test")

	p := Default()
	p.FromEnv()

	assert.Equal(t, "prod", p.Mode)
	assert.False(t, p.IsDev())
	assert.Equal(t, 9090, p.Port)
	assert.Equal(t, 25, p.MaxHistory)
	assert.Equal(t, 50*time.Millisecond, p.ResponseDelay)
	assert.Equal(t, 2.5, p.RateLimitRPS)
	assert.Equal(t, "openai", p.Producer)
	require.NoError(t, p.Validate())
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("CHATGATE_PORT", "not-a-number")
	t.Setenv("CHATGATE_SESSION_TIMEOUT", "soon")

	p := Default()
	p.FromEnv()

	assert.Equal(t, 8000, p.Port)
	assert.Equal(t, 30*time.Second, p.SessionTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("UnknownModeFallsBackToDev", func(t *testing.T) {
		p := Default()
		p.Mode = "staging"
		require.NoError(t, p.Validate())
		assert.Equal(t, "dev", p.Mode)
	})

	t.Run("RejectsBadPort", func(t *testing.T) {
		p := Default()
		p.Port = 0
		assert.Error(t, p.Validate())

		p.Port = 70000
		assert.Error(t, p.Validate())
	})

	t.Run("RejectsUnknownProducer", func(t *testing.T) {
		p := Default()
		p.Producer = "markov"
		assert.Error(t, p.Validate())
	})

	t.Run("OpenAIRequiresAPIKey", func(t *testing.T) {
		p := Default()
		p.Producer = "openai"
		assert.Error(t, p.Validate())

		p.OpenAIAPIKey = "sk-test"
		assert.NoError(t, p.Validate())
	})

	t.Run("RejectsNonPositiveLimits", func(t *testing.T) {
		for _, mutate := range []func(*Profile){
			func(p *Profile) { p.MaxHistory = 0 },
			func(p *Profile) { p.MaxConversations = -1 },
			func(p *Profile) { p.MaxSessions = 0 },
			func(p *Profile) { p.ResponseDelay = -time.Second },
		} {
			p := Default()
			mutate(p)
			assert.Error(t, p.Validate())
		}
	})
}
