package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures a websocket stream source.
type WSConfig struct {
	URL string
	// ReadLimit caps one message; default fits MaxWireRecords of 29
	// attributes.
	ReadLimit int64
	// HandshakeTimeout bounds each dial; default 5s.
	HandshakeTimeout time.Duration
}

type wsMsg struct {
	typ  int
	data []byte
	err  error
}

// wsConn is one dialed connection and its reader goroutine.
type wsConn struct {
	ws   *websocket.Conn
	msgs chan wsMsg
	// stop is closed by drop; exited is closed when the reader returns.
	stop   chan struct{}
	exited chan struct{}
}

// WSSource reads frames streamed over a websocket: binary messages in the
// wire format, text messages in the text frame format. A dropped connection
// is redialed with backoff by the producer loop.
type WSSource struct {
	*feed
	cfg    WSConfig
	dialer websocket.Dialer

	mu      sync.Mutex
	cur     *wsConn
	done    chan struct{}
	pending []*Frame
}

// NewWSSource creates a stream source; it dials lazily from Run.
func NewWSSource(name string, env Env, opts GateOptions, cfg WSConfig) *WSSource {
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = WireHeaderBytes + int64(MaxWireRecords)*4*(3+29)
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	s := &WSSource{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		done:   make(chan struct{}),
	}
	s.feed = newFeed(name, "ws", env, opts, s, "send <text>    send a text message upstream")
	return s
}

func (s *WSSource) dial(ctx context.Context) (*wsConn, error) {
	ws, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrSourceUnavailable, s.cfg.URL, err)
	}
	ws.SetReadLimit(s.cfg.ReadLimit)
	c := &wsConn{
		ws:     ws,
		msgs:   make(chan wsMsg, 8),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()

	go c.read()
	s.log.Info("connected", "url", s.cfg.URL)
	return c, nil
}

func (c *wsConn) read() {
	defer close(c.exited)
	defer close(c.msgs)
	for {
		typ, p, err := c.ws.ReadMessage()
		m := wsMsg{typ: typ, data: p, err: err}
		if err != nil {
			// Nobody may be listening after a drop.
			select {
			case c.msgs <- m:
			default:
			}
			return
		}
		select {
		case c.msgs <- m:
		case <-c.stop:
			return
		}
	}
}

// drop closes the current connection and releases its reader; the next poll
// redials. It returns the dropped connection, or nil.
func (s *WSSource) drop() *wsConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cur
	if c != nil {
		close(c.stop)
		c.ws.Close()
	}
	s.cur = nil
	return c
}

func (s *WSSource) current() *wsConn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *WSSource) next(ctx context.Context) (*Frame, error) {
	if len(s.pending) > 0 {
		f := s.pending[0]
		s.pending = s.pending[1:]
		return f, nil
	}
	c := s.current()
	if c == nil {
		var err error
		if c, err = s.dial(ctx); err != nil {
			return nil, err
		}
	}

	t := time.NewTimer(idlePoll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	case <-t.C:
		return nil, errIdle
	case m, ok := <-c.msgs:
		if !ok {
			s.drop()
			return nil, fmt.Errorf("%w: connection closed", ErrSourceUnavailable)
		}
		if m.err != nil {
			s.drop()
			if websocket.IsCloseError(m.err, websocket.CloseNormalClosure) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: read: %v", ErrSourceUnavailable, m.err)
		}
		if m.typ == websocket.TextMessage {
			return s.decodeText(m.data)
		}
		return DecodeWire(m.data)
	}
}

func (s *WSSource) decodeText(b []byte) (*Frame, error) {
	dec := NewTextDecoder(bytes.NewReader(b))
	dec.OnMalformed = s.report
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		s.pending = append(s.pending, f)
	}
	if len(s.pending) == 0 {
		return nil, fmt.Errorf("%w: text message without frames", ErrMalformedRecord)
	}
	f := s.pending[0]
	s.pending = s.pending[1:]
	return f, nil
}

func (s *WSSource) rewind() error {
	s.pending = nil
	s.drop()
	return nil
}

func (s *WSSource) custom(args []string) error {
	if len(args) < 2 || args[0] != "send" {
		return errUnknownCommand(args)
	}
	c := s.current()
	if c == nil {
		return fmt.Errorf("%w: not connected", ErrSourceUnavailable)
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(strings.Join(args[1:], " ")))
}

func (s *WSSource) close() error {
	close(s.done)
	if c := s.drop(); c != nil {
		<-c.exited
	}
	return nil
}
