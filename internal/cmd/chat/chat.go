// Package chat parses chat command flags and composes transport entrypoints.
package chat

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/huddle/internal/platform/cmd"
	"github.com/louisbranch/huddle/internal/platform/config"
	platformgrpc "github.com/louisbranch/huddle/internal/platform/grpc"
	"github.com/louisbranch/huddle/internal/platform/timeouts"
	server "github.com/louisbranch/huddle/internal/services/chat/app"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr                string        `env:"HUDDLE_HTTP_ADDR"                  envDefault:":3003"`
	GRPCAddr                string        `env:"HUDDLE_GRPC_ADDR"`
	JWTSecret               string        `env:"HUDDLE_JWT_SECRET"`
	JWTTTL                  time.Duration `env:"HUDDLE_JWT_TTL"                    envDefault:"15m"`
	DBPath                  string        `env:"HUDDLE_DB_PATH"                    envDefault:"data/huddle.db"`
	RedisAddr               string        `env:"HUDDLE_REDIS_ADDR"`
	RevocationSweepInterval time.Duration `env:"HUDDLE_REVOCATION_SWEEP_INTERVAL"  envDefault:"60s"`
	RevocationMaxEntries    int           `env:"HUDDLE_REVOCATION_MAX_ENTRIES"     envDefault:"100000"`
	MaxConnections          int           `env:"HUDDLE_MAX_CONNECTIONS"            envDefault:"10000"`
	EnforceRoomMembership   bool          `env:"HUDDLE_ENFORCE_ROOM_MEMBERSHIP"    envDefault:"true"`
	BcryptCost              int           `env:"HUDDLE_BCRYPT_COST"                envDefault:"12"`
	// HealthCheck probes a running process instead of serving.
	HealthCheck bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "history sqlite database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "redis address for the shared revocation registry")
	fs.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "maximum live websocket connections")
	fs.BoolVar(&cfg.EnforceRoomMembership, "enforce-room-membership", cfg.EnforceRoomMembership, "require room membership to join")
	fs.BoolVar(&cfg.HealthCheck, "healthcheck", false, "check the gRPC health endpoint of a running server and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.HealthCheck {
		if err := config.RequireValue("HUDDLE_GRPC_ADDR", cfg.GRPCAddr); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err := config.RequireValue("HUDDLE_JWT_SECRET", cfg.JWTSecret); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:                cfg.HTTPAddr,
			GRPCAddr:                cfg.GRPCAddr,
			JWTSecret:               cfg.JWTSecret,
			JWTTTL:                  cfg.JWTTTL,
			DBPath:                  cfg.DBPath,
			RedisAddr:               cfg.RedisAddr,
			RevocationSweepInterval: cfg.RevocationSweepInterval,
			RevocationMaxEntries:    cfg.RevocationMaxEntries,
			MaxConnections:          cfg.MaxConnections,
			EnforceRoomMembership:   cfg.EnforceRoomMembership,
			BcryptCost:              cfg.BcryptCost,
		}); err != nil {
			return fmt.Errorf("serve chat: %w", err)
		}
		return nil
	})
}

// CheckHealth waits for the gRPC health endpoint at addr to report SERVING.
func CheckHealth(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("health address is required")
	}
	conn, err := gogrpc.NewClient(addr, gogrpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial health %s: %w", addr, err)
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithTimeout(ctx, timeouts.HealthWait)
	defer cancel()
	return platformgrpc.WaitForHealth(ctx, conn, "", log.Printf)
}
