package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/chatgate/internal/profile"
	"github.com/hrygo/chatgate/internal/version"
	"github.com/hrygo/chatgate/server"
	"github.com/hrygo/chatgate/internal/observability"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chatgate",
		Short:   "Streaming chat gateway with SSE delivery",
		Version: version.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := loadProfile()
			if err := p.Validate(); err != nil {
				return err
			}
			p.Version = version.GetCurrentVersion(p.Mode)

			observability.Setup(p.Mode, p.LogLevel)

			srv, err := server.NewServer(p)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("starting chatgate", "version", p.Version)
			return srv.Start(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("mode", "dev", `mode of the server: "dev" or "prod"`)
	flags.String("addr", "", "binding address for the server")
	flags.Int("port", 8000, "binding port for the server")
	flags.String("log-level", "info", "minimum log level: debug, info, warn, error")
	flags.String("producer", "scripted", `reply producer: "scripted" or "openai"`)
	flags.Int("max-history", 10, "messages retained per conversation")
	flags.Int("max-conversations", 10000, "live conversation ceiling")
	flags.Int("max-sessions", 1000, "concurrent streaming session ceiling")
	flags.Duration("response-delay", 500*time.Millisecond, "pacing delay between reply chunks")
	flags.Duration("session-timeout", 30*time.Second, "overall session timeout, 0 disables")
	flags.Duration("idle-ttl", 24*time.Hour, "conversation inactivity window before eviction")
	flags.Duration("eviction-interval", 10*time.Minute, "cadence of the idle-eviction job")
	flags.Float64("rate-limit-rps", 10, "per-client requests per second, 0 disables")
	flags.Int("rate-limit-burst", 20, "per-client burst size")

	viper.SetEnvPrefix("chatgate")
	viper.AutomaticEnv()
	if err := viper.BindPFlags(flags); err != nil {
		panic(err)
	}

	return cmd
}

// loadProfile builds the profile from defaults, flags (via viper) and
// CHATGATE_* environment variables, in increasing precedence.
func loadProfile() *profile.Profile {
	p := profile.Default()
	p.Mode = viper.GetString("mode")
	p.Addr = viper.GetString("addr")
	p.Port = viper.GetInt("port")
	p.LogLevel = viper.GetString("log-level")
	p.Producer = viper.GetString("producer")
	p.MaxHistory = viper.GetInt("max-history")
	p.MaxConversations = viper.GetInt("max-conversations")
	p.MaxSessions = viper.GetInt("max-sessions")
	p.ResponseDelay = viper.GetDuration("response-delay")
	p.SessionTimeout = viper.GetDuration("session-timeout")
	p.IdleTTL = viper.GetDuration("idle-ttl")
	p.EvictionInterval = viper.GetDuration("eviction-interval")
	p.RateLimitRPS = viper.GetFloat64("rate-limit-rps")
	p.RateLimitBurst = viper.GetInt("rate-limit-burst")
	p.FromEnv()
	return p
}
