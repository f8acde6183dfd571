// Package icc implements the client side of a proprietary instrument-control protocol over TCP:
// frame envelopes, a login handshake that negotiates an access level, sequence-tracked GET/ACTN
// commands, and disconnect detection with an automatic reconnect ladder.
//
// The protocol layer is split the way the underlying transport library splits it: package frame
// owns the wire envelope, package wire owns message-type payload shapes, package transport owns
// one stream connection and its reader goroutine, package inflight owns sequence-number
// bookkeeping, and this package wires them together into the stateful engine described by the
// Connection Controller and Protocol Engine components.
package icc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/icc/asyncerr"
	"github.com/arloliu/icc/inflight"
	"github.com/arloliu/icc/internal/task"
	"github.com/arloliu/icc/metrics"
	"github.com/arloliu/icc/transport"
	"github.com/arloliu/icc/wire"
)

// Completion bundles the handlers and opaque user data associated with one outstanding
// GET/ACTN command, per §3/§9's "dynamic handler registration" note.
type Completion struct {
	// UserData is threaded back through every handler invocation unchanged.
	UserData any
	// OnAck is invoked once, on the reader goroutine, when the matching ACK arrives. May be nil.
	OnAck func(userData any, seq uint32)
	// OnNak is invoked once, on the reader goroutine, when the matching NAK arrives. May be nil.
	OnNak func(userData any, seq uint32, statusCode uint32)
	// OnResponse is invoked once, on the reader goroutine, when the matching RSP arrives. data
	// aliases the reader's buffer and must not be retained past the call. May be nil.
	OnResponse func(userData any, seq, subcommand, statusCode uint32, data []byte)
}

// Client is one connection to the instrument: login handshake, in-flight command tracking,
// status dispatch, and the reconnect ladder that follows an unexpected disconnect.
type Client struct {
	cfg *config

	transport *transport.Transport
	table     *inflight.Table
	asyncQ    *asyncerr.Queue
	statusReg *statusRegistry
	state     *stateManager
	events    *events
	metrics   *metrics.ConnectionMetrics
	taskMgr   *task.Manager

	grantedAccess atomic.Int32

	loginMu        sync.Mutex
	loginWait      chan wire.Accept
	loginTimerPool sync.Pool

	failureMu    sync.Mutex
	warningDelay time.Duration
	errorDelay   time.Duration

	// accessRequested is the access level of the most recent successful connect attempt; the
	// reconnect ladder replays it on every retry.
	accessRequested atomic.Int32
}

// New constructs a Client for serverAddress, an IPv4 literal, validated immediately per §6.
func New(serverAddress string, opts ...ClientOption) (*Client, error) {
	cfg, err := newConfig(serverAddress, opts...)
	if err != nil {
		return nil, err
	}

	c := &Client{
		cfg:          cfg,
		table:        inflight.New(),
		statusReg:    newStatusRegistry(),
		state:        newStateManager(cfg.logger),
		events:       newEvents(),
		metrics:      &metrics.ConnectionMetrics{},
		warningDelay: cfg.warningDelay,
		errorDelay:   cfg.errorDelay,
	}
	c.taskMgr = task.New(context.Background(), cfg.logger)
	c.asyncQ = asyncerr.New(c.asyncErrorGate)
	c.asyncQ.Subscribe(c.dispatchAsyncError)
	c.asyncQ.Start()

	transportCfg, err := transport.NewConfig(serverAddress,
		transport.WithPort(cfg.port),
		transport.WithSendTimeout(cfg.sendTimeout),
		transport.WithReceiveTimeout(cfg.receiveTimeout),
		transport.WithMaxFrame(cfg.maxFrame),
		transport.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, err
	}
	c.transport = transport.New(transportCfg, transport.Callbacks{
		OnPayload:         c.onPayload,
		OnAsyncError:      c.asyncQ.Enqueue,
		OnAsyncDisconnect: c.onAsyncDisconnect,
	})

	if cfg.metricsEnabled {
		metricOpts := []metrics.Option{
			metrics.WithNamespace(cfg.metricsNamespace),
			metrics.WithAsyncErrorQueue(c.asyncQ),
		}
		if cfg.metricsRegisterer != nil {
			metricOpts = append(metricOpts, metrics.WithRegisterer(cfg.metricsRegisterer))
		}
		if err := c.metrics.Register(metricOpts...); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// asyncErrorGate permits enqueuing only while Connected or WaitingForLogin, per §4.F.
func (c *Client) asyncErrorGate() bool {
	switch c.state.State() {
	case Connected, WaitingForLogin:
		return true
	default:
		return false
	}
}

func (c *Client) dispatchAsyncError(description string) {
	c.events.asyncError.Emit(description)
}

// IsConnected reports whether the client is currently in the Connected state.
func (c *Client) IsConnected() bool {
	return c.state.State() == Connected
}

// GrantedAccess returns the access level negotiated by the most recent successful login.
func (c *Client) GrantedAccess() wire.AccessLevel {
	return wire.AccessLevel(c.grantedAccess.Load())
}

// SetCommFailureTimeouts updates the reconnect ladder's warning/error thresholds. It accepts the
// change only if warningDelay > 0 and errorDelay > warningDelay, otherwise it is silently
// rejected and the prior values are kept (§4.E).
func (c *Client) SetCommFailureTimeouts(warningDelay, errorDelay time.Duration) bool {
	if !validCommFailureTimeouts(warningDelay, errorDelay) {
		return false
	}
	c.failureMu.Lock()
	c.warningDelay = warningDelay
	c.errorDelay = errorDelay
	c.failureMu.Unlock()
	return true
}

func (c *Client) commFailureTimeouts() (warningDelay, errorDelay time.Duration) {
	c.failureMu.Lock()
	defer c.failureMu.Unlock()
	return c.warningDelay, c.errorDelay
}

// Connect opens the connection and performs the login handshake for accessRequested. It is only
// legal from NotConnected (§4.E); calling it from any other state returns false immediately.
func (c *Client) Connect(ctx context.Context, accessRequested wire.AccessLevel) bool {
	if !c.state.TrySet(NotConnected, WaitingForLogin) {
		c.cfg.logger.Debug("connect rejected", "error", ErrAlreadyConnected, "state", c.state.State())
		return false
	}

	ok := c.connectLocked(ctx, accessRequested)
	if !ok {
		c.clearInflight()
		c.state.Set(NotConnected)
		return false
	}

	c.accessRequested.Store(int32(accessRequested)) //nolint:gosec
	c.state.Set(Connected)
	c.events.connect.Emit(struct{}{})
	return true
}

func (c *Client) connectLocked(ctx context.Context, accessRequested wire.AccessLevel) bool {
	if err := c.transport.Connect(); err != nil {
		c.cfg.logger.Warn("connect: dial failed", "error", err)
		return false
	}

	wait := c.beginLoginWait()
	defer c.endLoginWait()

	payload := wire.EncodeLogin(wire.LoginRequest{
		Access:      accessRequested,
		LocalAddr:   c.transport.LocalAddress(),
		Username:    c.cfg.effectiveUsername(),
		MachineName: c.cfg.effectiveMachineName(),
	})
	if err := c.transport.SendMessage(payload); err != nil {
		c.cfg.logger.Warn("connect: login send failed", "error", err)
		c.transport.Disconnect()
		return false
	}

	timer := c.getLoginTimer()
	defer c.putLoginTimer(timer)

	select {
	case accept := <-wait:
		c.grantedAccess.Store(int32(accept.GrantedAccess)) //nolint:gosec
		return true
	case <-timer.C:
		c.cfg.logger.Warn("connect: login timed out", "error", ErrLoginTimeout)
		c.transport.Disconnect()
		return false
	case <-ctx.Done():
		c.cfg.logger.Warn("connect: cancelled waiting for ACPT", "error", ctx.Err())
		c.transport.Disconnect()
		return false
	}
}

func (c *Client) beginLoginWait() chan wire.Accept {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()
	c.loginWait = make(chan wire.Accept, 1)
	return c.loginWait
}

func (c *Client) endLoginWait() {
	c.loginMu.Lock()
	c.loginWait = nil
	c.loginMu.Unlock()
}

// getLoginTimer and putLoginTimer pool the login-ACPT wait timer across repeated login
// attempts: a long-lived reconnect ladder calls connectLocked once per second, and each call
// would otherwise allocate and GC a fresh time.Timer purely to wait on loginTimeout. Every timer
// this pool hands out always runs for exactly loginTimeout, so, unlike a general-purpose timer
// pool, Reset never needs a variable duration argument.
func (c *Client) getLoginTimer() *time.Timer {
	if v := c.loginTimerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // safe: only *time.Timer is ever Put into loginTimerPool
		if t.Reset(loginTimeout) {
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(loginTimeout)
}

func (c *Client) putLoginTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	c.loginTimerPool.Put(t)
}

// handleAccept is invoked from dispatch.go's onPayload when an ACPT frame arrives.
func (c *Client) handleAccept(accept wire.Accept) {
	c.loginMu.Lock()
	wait := c.loginWait
	c.loginMu.Unlock()

	if wait == nil {
		return
	}
	select {
	case wait <- accept:
	default:
	}
}

// Disconnect tears the connection down if Connected; it is a no-op otherwise (§6/P6).
func (c *Client) Disconnect() {
	if !c.state.TrySet(Connected, DisconnectInProgress) {
		return
	}

	c.clearInflight()
	c.transport.Disconnect()
	c.taskMgr.Stop()
	c.taskMgr.Wait()

	c.state.Set(NotConnected)
	c.events.disconnect.Emit(struct{}{})
}

// clearInflight drops every in-flight entry and keeps the inflight-commands gauge consistent.
func (c *Client) clearInflight() {
	cleared := c.table.Clear()
	for range cleared {
		c.metrics.DecInflightCount()
	}
}

// SendGetCommand writes a GET frame for subcommand/data and registers completion against a fresh
// sequence number. It requires state = Connected; on failure it returns (false, 0) and nothing is
// written to the wire.
func (c *Client) SendGetCommand(subcommand uint32, data []byte, completion Completion) (bool, uint32) {
	return c.sendCommand(wire.TagGET, subcommand, data, completion, false)
}

// SendActionCommand behaves like SendGetCommand but additionally requires the granted access
// level to permit ACTN commands (P5); otherwise it returns (false, 0) without writing anything.
func (c *Client) SendActionCommand(subcommand uint32, data []byte, completion Completion) (bool, uint32) {
	return c.sendCommand(wire.TagACTN, subcommand, data, completion, true)
}

func (c *Client) sendCommand(tag wire.Tag, subcommand uint32, data []byte, completion Completion, requireAccess bool) (bool, uint32) {
	if c.state.State() != Connected {
		c.cfg.logger.Debug("command rejected", "error", ErrNotConnected, "tag", tag.String())
		return false, 0
	}
	if requireAccess && !c.GrantedAccess().CanAct() {
		c.cfg.logger.Debug("command rejected", "error", ErrAccessDenied, "tag", tag.String(), "access", c.GrantedAccess())
		return false, 0
	}

	seq := c.table.AllocateSequence()
	entry := &inflight.Entry{
		UserData:        completion.UserData,
		AckHandler:      completion.OnAck,
		NakHandler:      completion.OnNak,
		ResponseHandler: completion.OnResponse,
	}
	c.table.Add(seq, entry)
	c.metrics.IncInflightCount()

	var payload []byte
	if tag == wire.TagACTN {
		payload = wire.EncodeAction(seq, subcommand, data)
		c.metrics.IncActionSendCount()
	} else {
		payload = wire.EncodeGet(seq, subcommand, data)
		c.metrics.IncGetSendCount()
	}

	if err := c.transport.SendMessage(payload); err != nil {
		c.table.Delete(seq)
		c.metrics.DecInflightCount()
		return false, 0
	}

	return true, seq
}

// CancelCommand removes seq from the in-flight table without notifying anyone, per
// deleteCommandInProgress (§5/§6). A late ACK/NAK/RSP for that sequence afterward is reported as
// an unexpected-reply async error; this is an accepted race, not a bug.
func (c *Client) CancelCommand(seq uint32) {
	if _, ok := c.table.Delete(seq); ok {
		c.metrics.DecInflightCount()
	}
}

// RegisterStatusHandler registers handler for substatus. It returns false if one is already
// registered for that substatus (§6).
func (c *Client) RegisterStatusHandler(substatus uint32, handler StatusHandler) bool {
	ok := c.statusReg.Register(substatus, handler)
	if !ok {
		c.cfg.logger.Debug("status handler registration rejected", "error", ErrStatusHandlerRegistered, "substatus", substatus)
	}
	return ok
}

// RegisterUnhandledStatusHandler registers the singleton fallback invoked when no per-substatus
// handler matches. It returns false if one is already registered.
func (c *Client) RegisterUnhandledStatusHandler(handler StatusHandler) bool {
	return c.statusReg.RegisterUnhandled(handler)
}

// Close releases the client's background goroutines. It disconnects first if still connected.
// Safe to call more than once.
func (c *Client) Close() error {
	c.Disconnect()
	c.taskMgr.Stop()
	c.taskMgr.Wait()
	c.asyncQ.Stop()
	return nil
}

func describeProtocolFailure(description string) string {
	return fmt.Sprintf("Protocol Failure - %s", description)
}
