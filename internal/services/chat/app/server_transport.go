package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/louisbranch/huddle/internal/platform/httpx"
	"github.com/louisbranch/huddle/internal/services/chat/fanout"
	"github.com/louisbranch/huddle/internal/services/chat/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"
)

const (
	maxFramePayloadBytes = 16 * 1024

	protocolHeader  = "X-Chat-Protocol"
	protocolVersion = "v1.0"
)

// RouteRegistrar mounts REST routes served next to the websocket endpoint.
type RouteRegistrar interface {
	RegisterRoutes(mux *http.ServeMux) error
}

// HandlerConfig wires the chat HTTP surface.
type HandlerConfig struct {
	Authenticator Authenticator
	Sessions      *session.Store
	// Rooms gates join_room when EnforceRoomMembership is set.
	Rooms                 RoomDirectory
	EnforceRoomMembership bool
	Routes                []RouteRegistrar
	Now                   func() time.Time
	// OutboundQueueSize bounds frames buffered per connection.
	OutboundQueueSize int
}

type handlerDeps struct {
	authenticator Authenticator
	sessions      *session.Store
	fanout        *fanout.Engine
	rooms         roomAuthorizer
	now           func() time.Time
	tracer        trace.Tracer
	queueSize     int
	conns         *connTracker
}

var errShuttingDown = errors.New("chat handler is shutting down")

// connTracker follows hijacked websocket connections, which
// http.Server.Shutdown does not wait for.
type connTracker struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closing bool
	wg      sync.WaitGroup
}

func newConnTracker() *connTracker {
	return &connTracker{conns: make(map[*websocket.Conn]struct{})}
}

func (t *connTracker) add(conn *websocket.Conn) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing {
		return errShuttingDown
	}
	t.conns[conn] = struct{}{}
	t.wg.Add(1)
	return nil
}

func (t *connTracker) done(conn *websocket.Conn) {
	t.mu.Lock()
	delete(t.conns, conn)
	t.mu.Unlock()
	t.wg.Done()
}

func (t *connTracker) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// shutdown refuses new connections, closes live ones, and waits for their
// handlers to return.
func (t *connTracker) shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closing = true
	live := make([]*websocket.Conn, 0, len(t.conns))
	for conn := range t.conns {
		live = append(live, conn)
	}
	t.mu.Unlock()
	for _, conn := range live {
		_ = conn.Close()
	}

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for websocket handlers: %w", ctx.Err())
	}
}

// Handler serves the chat HTTP surface and owns its live websocket
// connections.
type Handler struct {
	http.Handler
	conns *connTracker
}

// Shutdown closes every live websocket connection and waits for its handler
// to finish. New upgrades are refused afterwards. Safe to call repeatedly.
func (h *Handler) Shutdown(ctx context.Context) error {
	return h.conns.shutdown(ctx)
}

// NewHandler builds the chat routes: /ws, /health, /up, and every registrar's
// REST routes, wrapped with panic recovery and the protocol header.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewStore(session.DefaultMaxConnections)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	deps := &handlerDeps{
		authenticator: cfg.Authenticator,
		sessions:      cfg.Sessions,
		fanout:        fanout.New(cfg.Sessions),
		rooms:         roomAuthorizer{directory: cfg.Rooms, enforce: cfg.EnforceRoomMembership},
		now:           cfg.Now,
		tracer:        otel.Tracer("github.com/louisbranch/huddle/internal/services/chat/app"),
		queueSize:     cfg.OutboundQueueSize,
		conns:         newConnTracker(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":    "OK",
			"timestamp": deps.now().UTC().Format(timestampLayout),
		})
	})

	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		handleWSConn(conn, deps)
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	for _, registrar := range cfg.Routes {
		if registrar == nil {
			continue
		}
		if err := registrar.RegisterRoutes(mux); err != nil {
			return nil, err
		}
	}
	mux.Handle("/", httpx.NotFound())

	return &Handler{
		Handler: httpx.Chain(mux,
			httpx.RecoverPanic(),
			httpx.RequestID(),
			httpx.SetHeader(protocolHeader, protocolVersion),
		),
		conns: deps.conns,
	}, nil
}

func handleWSConn(conn *websocket.Conn, deps *handlerDeps) {
	defer func() {
		_ = conn.Close()
	}()
	if err := deps.conns.add(conn); err != nil {
		return
	}
	defer deps.conns.done(conn)
	conn.MaxPayloadBytes = maxFramePayloadBytes

	peer := newWSPeer(conn, deps.queueSize)
	go peer.run()
	defer peer.close()

	id, err := deps.sessions.Open(peer)
	if err != nil {
		if errors.Is(err, session.ErrCapacity) {
			log.Printf("chat: connection rejected at capacity remote=%q", remoteAddr(conn))
			sendFrame(peer, errorFrame{Type: frameError, Message: msgAtCapacity})
			return
		}
		log.Printf("chat: open session failed remote=%q err=%v", remoteAddr(conn), err)
		return
	}
	defer deps.sessions.Close(id)

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}
	state := &connState{id: id, peer: peer, deps: deps}

	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				state.reply(errorFrame{Type: frameError, Message: msgInvalidFormat})
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Printf("chat: websocket read ended conn=%d err=%v", id, err)
			}
			return
		}
		state.handle(ctx, raw)
	}
}
