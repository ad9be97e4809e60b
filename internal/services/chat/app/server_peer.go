package server

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/huddle/internal/services/chat/session"
	"golang.org/x/net/websocket"
)

const (
	outboundQueueSize = 64
	closeFlushTimeout = 5 * time.Second
)

var errOutboundQueueFull = errors.New("outbound queue full")

// wsPeer owns the write side of one connection. Frames are queued by Send
// and written in order by a single writer goroutine, so a slow client never
// blocks a fanout.
type wsPeer struct {
	conn  *websocket.Conn
	queue chan []byte
	done  chan struct{}

	mu          sync.Mutex
	closed      bool
	queueClosed bool

	writeFrame func(conn *websocket.Conn, payload []byte) error
}

func newWSPeer(conn *websocket.Conn, queueSize int) *wsPeer {
	if queueSize <= 0 {
		queueSize = outboundQueueSize
	}
	return &wsPeer{
		conn:       conn,
		queue:      make(chan []byte, queueSize),
		done:       make(chan struct{}),
		writeFrame: sendTextFrame,
	}
}

func sendTextFrame(conn *websocket.Conn, payload []byte) error {
	return websocket.Message.Send(conn, string(payload))
}

// Send enqueues payload without blocking. A closed peer reports
// session.ErrClosed.
func (p *wsPeer) Send(payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return session.ErrClosed
	}
	select {
	case p.queue <- payload:
		return nil
	default:
		return errOutboundQueueFull
	}
}

// run writes queued frames until the queue is closed. After a write error the
// remaining frames are discarded.
func (p *wsPeer) run() {
	defer close(p.done)
	var writeErr error
	for payload := range p.queue {
		if writeErr != nil {
			continue
		}
		if err := p.writeFrame(p.conn, payload); err != nil {
			writeErr = err
			log.Printf("chat: websocket write failed remote=%q err=%v", remoteAddr(p.conn), err)
			p.markClosed()
			if p.conn != nil {
				_ = p.conn.Close()
			}
		}
	}
}

func (p *wsPeer) markClosed() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// close stops accepting frames and waits for queued frames to be written.
func (p *wsPeer) close() {
	p.mu.Lock()
	p.closed = true
	if !p.queueClosed {
		p.queueClosed = true
		close(p.queue)
	}
	p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.SetWriteDeadline(time.Now().Add(closeFlushTimeout))
	}
	<-p.done
}

func remoteAddr(conn *websocket.Conn) string {
	if conn == nil || conn.Request() == nil {
		return "-"
	}
	return conn.Request().RemoteAddr
}
