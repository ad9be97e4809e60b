package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	platformgrpc "github.com/louisbranch/huddle/internal/platform/grpc"
	"github.com/louisbranch/huddle/internal/platform/timeouts"
	authapp "github.com/louisbranch/huddle/internal/services/auth/app"
	"github.com/louisbranch/huddle/internal/services/auth/bearer"
	"github.com/louisbranch/huddle/internal/services/auth/token"
	"github.com/louisbranch/huddle/internal/services/auth/user"
	"github.com/louisbranch/huddle/internal/services/chat/revocation"
	"github.com/louisbranch/huddle/internal/services/chat/session"
	historyapp "github.com/louisbranch/huddle/internal/services/history/app"
	historysqlite "github.com/louisbranch/huddle/internal/services/history/storage/sqlite"
	"github.com/redis/go-redis/v9"
)

// Config defines the inputs for the chat process.
type Config struct {
	HTTPAddr string
	// GRPCAddr enables the gRPC health endpoint when set.
	GRPCAddr  string
	JWTSecret string
	JWTTTL    time.Duration
	DBPath    string
	// RedisAddr selects the shared revocation registry; empty keeps it in memory.
	RedisAddr               string
	RevocationSweepInterval time.Duration
	RevocationMaxEntries    int
	MaxConnections          int
	EnforceRoomMembership   bool
	BcryptCost              int
	ReadHeaderTimeout       time.Duration
	ShutdownTimeout         time.Duration
}

// Server hosts the chat HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	handler         *Handler
	health          *platformgrpc.HealthServer
	store           *historysqlite.Store
	redisClient     *redis.Client
	sweepStop       context.CancelFunc
	sweepDone       chan struct{}
}

// NewServer builds a configured chat server.
func NewServer(config Config) (*Server, error) {
	return NewServerWithContext(context.Background(), config)
}

// NewServerWithContext builds a configured chat server with an explicit context.
func NewServerWithContext(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.DBPath) == "" {
		return nil, errors.New("database path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	issuer, err := token.NewIssuer(token.Config{Secret: config.JWTSecret, TTL: config.JWTTTL})
	if err != nil {
		return nil, err
	}

	s := &Server{httpAddr: httpAddr, shutdownTimeout: config.ShutdownTimeout}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	registry, err := s.openRevocationRegistry(ctx, config)
	if err != nil {
		return nil, err
	}

	s.store, err = historysqlite.Open(ctx, config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	users, err := user.NewDirectory(user.Config{BcryptCost: config.BcryptCost})
	if err != nil {
		return nil, fmt.Errorf("build user directory: %w", err)
	}
	authenticator, err := bearer.New(issuer, registry)
	if err != nil {
		return nil, err
	}
	authRoutes, err := authapp.NewHandler(users, issuer, authenticator)
	if err != nil {
		return nil, err
	}
	historyRoutes, err := historyapp.NewHandler(historyapp.Config{
		Store:        s.store,
		Authenticate: authenticator.Authenticate,
	})
	if err != nil {
		return nil, err
	}

	handler, err := NewHandler(HandlerConfig{
		Authenticator:         authenticator,
		Sessions:              session.NewStore(config.MaxConnections),
		Rooms:                 s.store,
		EnforceRoomMembership: config.EnforceRoomMembership,
		Routes:                []RouteRegistrar{authRoutes, historyRoutes},
	})
	if err != nil {
		return nil, err
	}
	s.handler = handler
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           handler,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		s.health, err = platformgrpc.ListenHealth(grpcAddr)
		if err != nil {
			return nil, err
		}
	}

	ok = true
	return s, nil
}

func (s *Server) openRevocationRegistry(ctx context.Context, config Config) (revocation.Registry, error) {
	if redisAddr := strings.TrimSpace(config.RedisAddr); redisAddr != "" {
		s.redisClient = redis.NewClient(&redis.Options{Addr: redisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, timeouts.RedisOp)
		err := s.redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis %s: %w", redisAddr, err)
		}
		log.Printf("chat: revocation registry backend=redis addr=%q", redisAddr)
		return revocation.NewRedis(revocation.RedisConfig{Client: s.redisClient}), nil
	}

	memory := revocation.NewMemory(revocation.MemoryConfig{
		SweepInterval: config.RevocationSweepInterval,
		MaxEntries:    config.RevocationMaxEntries,
	})
	s.sweepStop, s.sweepDone = startRevocationSweeper(memory)
	log.Printf("chat: revocation registry backend=memory")
	return memory, nil
}

// startRevocationSweeper runs the registry's periodic purge until stopped.
func startRevocationSweeper(memory *revocation.Memory) (context.CancelFunc, chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		memory.Run(ctx)
	}()
	return cancel, done
}

// Run creates and serves a chat server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServerWithContext(ctx, config)
	if err != nil {
		return fmt.Errorf("init chat server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve chat: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("chat server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("chat server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()
	if s.health != nil {
		log.Printf("chat health listening on %s", s.health.Addr())
		go func() {
			if err := s.health.Serve(); err != nil {
				log.Printf("chat: health server stopped: %v", err)
			}
		}()
		s.health.SetServing(true)
	}

	select {
	case <-ctx.Done():
		s.health.SetServing(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if err := s.handler.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown websocket connections: %w", err)
		}
		return nil
	case err := <-serveErr:
		s.health.SetServing(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Stop()
	}
	if s.handler != nil {
		// Live websocket handlers still query the store.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		if err := s.handler.Shutdown(shutdownCtx); err != nil {
			log.Printf("close websocket connections: %v", err)
		}
		cancel()
	}
	if s.sweepStop != nil {
		s.sweepStop()
	}
	if s.sweepDone != nil {
		<-s.sweepDone
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Printf("close redis client: %v", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close history store: %v", err)
		}
	}
}
