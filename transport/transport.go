package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/icc/frame"
	"github.com/arloliu/icc/logger"
)

// ErrNotConnected is returned by SendMessage when no stream is open.
var ErrNotConnected = errors.New("transport: not connected")

// Callbacks are the upward hooks a Transport invokes. OnPayload fires once per successfully
// decoded frame, on the reader goroutine. OnAsyncError reports a human-readable framing or I/O
// failure description. OnAsyncDisconnect fires exactly once when the stream drops unexpectedly,
// never when Disconnect was called by the user (§4.B). It runs on the reader goroutine, or on
// the goroutine whose SendMessage call failed.
type Callbacks struct {
	OnPayload         func(payload []byte)
	OnAsyncError      func(description string)
	OnAsyncDisconnect func()
}

// Transport owns one TCP stream connection. It is safe for concurrent use: SendMessage is
// internally serialized, and the reader runs on its own goroutine.
type Transport struct {
	cfg *Config
	cb  Callbacks

	connMu sync.Mutex // serializes writes and guards conn; I4
	conn   net.Conn

	disconnectRequested atomic.Bool
	readerDone          chan struct{}
}

// New creates a Transport from cfg that reports upward through cb. SetCallbacks can replace cb
// later.
func New(cfg *Config, cb Callbacks) *Transport {
	return &Transport{cfg: cfg, cb: cb}
}

// SetCallbacks replaces the upward callbacks. Must not be called concurrently with Connect.
func (t *Transport) SetCallbacks(cb Callbacks) {
	t.cb = cb
}

// Connect opens a stream to the configured server address and starts the dedicated reader
// goroutine. It returns an error if the TCP dial fails.
func (t *Transport) Connect() error {
	t.disconnectRequested.Store(false)

	addr := net.JoinHostPort(
		fmt.Sprintf("%d.%d.%d.%d", t.cfg.serverIP[0], t.cfg.serverIP[1], t.cfg.serverIP[2], t.cfg.serverIP[3]),
		strconv.Itoa(t.cfg.port),
	)

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.cfg.logger.Warn("transport: dial failed", "addr", addr, "error", err)
		return err
	}

	t.connMu.Lock()
	t.conn = conn
	t.connMu.Unlock()

	t.readerDone = make(chan struct{})
	go t.readerLoop(conn, t.readerDone)

	return nil
}

// Disconnect closes the stream and waits for the reader to exit, up to 500 ms. It is the only
// path that suppresses the async-disconnect signal: a reader that sees the connection close
// because of this call does not report it upward.
func (t *Transport) Disconnect() {
	t.disconnectRequested.Store(true)

	t.connMu.Lock()
	conn := t.conn
	t.conn = nil
	t.connMu.Unlock()

	if conn == nil {
		return
	}

	_ = conn.Close()

	done := t.readerDone
	if done == nil {
		return
	}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.cfg.logger.Error("transport: reader did not exit within join timeout")
	}
}

// LocalAddress returns the local IPv4 address bound on the active connection. It returns the
// zero value if no connection is open or the local address is not IPv4.
func (t *Transport) LocalAddress() [4]byte {
	t.connMu.Lock()
	conn := t.conn
	t.connMu.Unlock()

	var out [4]byte
	if conn == nil {
		return out
	}
	tcpAddr, ok := conn.LocalAddr().(*net.TCPAddr)
	if !ok {
		return out
	}
	ip4 := tcpAddr.IP.To4()
	if ip4 == nil {
		return out
	}
	copy(out[:], ip4)
	return out
}

// SendMessage frames payload and writes it in one critical section, honoring I4 (no outbound
// message is ever interleaved with another). Any stream error shuts the connection down as an
// unexpected disconnect.
func (t *Transport) SendMessage(payload []byte) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return ErrNotConnected
	}

	if t.cfg.sendTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.cfg.sendTimeout)); err != nil {
			return err
		}
	}

	if err := frame.Encode(t.conn, payload); err != nil {
		t.reportAsyncError(fmt.Sprintf("send failed: %v", err))
		t.shutdownLocked()
		return err
	}

	t.logFrame("send", payload)

	return nil
}

// readerLoop repeatedly decodes frames from conn and invokes OnPayload. It terminates on the
// first framing or I/O failure, reporting an async error and, unless this is a user-requested
// disconnect, the async-disconnect signal.
func (t *Transport) readerLoop(conn net.Conn, done chan struct{}) {
	defer close(done)

	codec := frame.Codec{MaxFrame: t.cfg.maxFrame}

	for {
		if t.cfg.receiveTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(t.cfg.receiveTimeout)); err != nil {
				t.failReader(conn, fmt.Sprintf("set read deadline failed: %v", err))
				return
			}
		}

		payload, err := codec.Decode(conn)
		if err != nil {
			t.failReader(conn, describeFrameError(err))
			return
		}

		t.logFrame("recv", payload)

		if t.cb.OnPayload != nil {
			t.cb.OnPayload(payload)
		}
	}
}

// logFrame reports payload to the configured logger's raw-frame diagnostic hook, if it
// implements logger.FrameLogger, tagged by direction ("send" or "recv").
func (t *Transport) logFrame(tag string, payload []byte) {
	fl, ok := t.cfg.logger.(logger.FrameLogger)
	if !ok {
		return
	}
	fl.LogFrame(tag, payload, len(payload))
}

// failReader reports the given description and, unless Disconnect was already requested, signals
// an unexpected disconnect. It then ensures the connection is closed.
func (t *Transport) failReader(conn net.Conn, description string) {
	userRequested := t.disconnectRequested.Load()
	if !userRequested {
		t.reportAsyncError(description)
	}

	// If conn is no longer the active connection, a SendMessage failure already closed it and
	// signalled the disconnect; signalling again would report the same drop twice.
	t.connMu.Lock()
	owned := t.conn == conn
	if owned {
		t.conn = nil
	}
	t.connMu.Unlock()
	_ = conn.Close()

	if owned && !userRequested && t.cb.OnAsyncDisconnect != nil {
		t.cb.OnAsyncDisconnect()
	}
}

// shutdownLocked closes the connection from within a SendMessage failure. connMu is already
// held by the caller.
func (t *Transport) shutdownLocked() {
	if t.conn == nil {
		return
	}
	conn := t.conn
	t.conn = nil
	_ = conn.Close()

	if !t.disconnectRequested.Load() && t.cb.OnAsyncDisconnect != nil {
		t.cb.OnAsyncDisconnect()
	}
}

func (t *Transport) reportAsyncError(description string) {
	if t.cb.OnAsyncError != nil {
		t.cb.OnAsyncError(description)
	}
}

func describeFrameError(err error) string {
	switch {
	case errors.Is(err, frame.ErrBadSync):
		return "Bad SYNC"
	case errors.Is(err, frame.ErrBadLength):
		return "Bad Length"
	case errors.Is(err, frame.ErrBadEnd):
		return "Bad END"
	case errors.Is(err, frame.ErrShortRead):
		return "Short Read"
	default:
		return err.Error()
	}
}
