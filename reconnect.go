package icc

import (
	"context"
	"time"

	"github.com/arloliu/icc/wire"
)

// onAsyncDisconnect is wired as transport.Callbacks.OnAsyncDisconnect. It runs exactly once per
// unexpected drop (§4.B/§4.E), on the transport's reader goroutine or, when a write failed, on
// the goroutine that called SendMessage.
func (c *Client) onAsyncDisconnect() {
	c.clearInflight()

	if c.state.State() != Connected {
		c.cfg.logger.Info("async disconnect with no active session, not reconnecting")
		return
	}

	c.state.Set(NotConnected)
	c.events.disconnect.Emit(struct{}{})

	accessRequested := wire.AccessLevel(c.accessRequested.Load())
	if err := c.taskMgr.Start("reconnect-ladder", c.reconnectLadderStep(accessRequested)); err != nil {
		c.cfg.logger.Error("failed to start reconnect ladder", "error", err)
	}
}

// reconnectLadderStep returns a task.Func closure that drives one iteration of the reconnect
// ladder per §4.E: sleep the retry interval, attempt connect(accessRequested), and escalate
// warning/error notifications as elapsed time crosses the configured thresholds. The closure
// captures its own start time and warning-emitted latch across calls, since task.Manager invokes
// it repeatedly on the same goroutine until it returns false.
func (c *Client) reconnectLadderStep(accessRequested wire.AccessLevel) func() bool {
	start := time.Now()
	warningEmitted := false

	return func() bool {
		time.Sleep(reconnectInterval)

		c.metrics.IncReconnectCount()
		if c.Connect(context.Background(), accessRequested) {
			return false
		}

		elapsed := time.Since(start)
		warningDelay, errorDelay := c.commFailureTimeouts()

		if elapsed > errorDelay {
			c.events.disconnectError.Emit(struct{}{})
			return false
		}

		if !warningEmitted && elapsed > warningDelay {
			warningEmitted = true
			c.events.disconnectWarning.Emit(struct{}{})
		}

		return true
	}
}
