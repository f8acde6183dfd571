package icc

import (
	"fmt"

	"github.com/arloliu/icc/wire"
)

// onPayload is wired as transport.Callbacks.OnPayload: it runs on the transport's reader
// goroutine and is the sole entry point for every inbound frame (§4.D).
func (c *Client) onPayload(payload []byte) {
	tag, err := wire.DecodeTag(payload)
	if err != nil {
		c.asyncQ.Enqueue(describeProtocolFailure("Unknown MessageType"))
		return
	}

	switch tag {
	case wire.TagACPT:
		c.handleAcceptPayload(payload)
	case wire.TagACK:
		c.handleAckPayload(payload)
	case wire.TagNAK:
		c.handleNakPayload(payload)
	case wire.TagRSP:
		c.handleResponsePayload(payload)
	case wire.TagSTAT:
		c.handleStatusPayload(payload)
	default:
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure(fmt.Sprintf("Unknown MessageType %q", tag.String())))
	}
}

func (c *Client) handleAcceptPayload(payload []byte) {
	accept, err := wire.DecodeAccept(payload)
	if err != nil {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("malformed ACPT"))
		return
	}
	c.handleAccept(accept)
}

// handleAckPayload implements §4.D's ACK row and P3/I2: a missing sequence is "Unexpected ACK";
// a sequence whose latch is already set is a double ACK, which removes the entry; otherwise the
// latch is set and ackHandler fires, with the entry left pending for RSP.
func (c *Client) handleAckPayload(payload []byte) {
	ack, err := wire.DecodeAck(payload)
	if err != nil {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("malformed ACK"))
		return
	}
	c.metrics.IncAckRecvCount()

	entry, ok := c.table.Retrieve(ack.Sequence)
	if !ok {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("Unexpected ACK"))
		return
	}

	if entry.SetAck() {
		c.table.Delete(ack.Sequence)
		c.metrics.DecInflightCount()
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("Double ACK"))
		return
	}

	if entry.AckHandler != nil {
		entry.AckHandler(entry.UserData, ack.Sequence)
	}
}

// handleNakPayload implements §4.D's NAK row, I2, and P4: the entry is always removed; a missing
// sequence is "Unexpected NAK"; a latch already set means a NAK arrived after its ACK, which is
// reported as "ACK - NAK" and does not invoke nakHandler.
func (c *Client) handleNakPayload(payload []byte) {
	nak, err := wire.DecodeNak(payload)
	if err != nil {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("malformed NAK"))
		return
	}
	c.metrics.IncNakRecvCount()

	entry, ok := c.table.Delete(nak.Sequence)
	if !ok {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("Unexpected NAK"))
		return
	}
	c.metrics.DecInflightCount()

	if entry.AckReceived() {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("ACK - NAK"))
		return
	}

	if entry.NakHandler != nil {
		entry.NakHandler(entry.UserData, nak.Sequence, nak.StatusCode)
	}
}

// handleResponsePayload implements §4.D's RSP row and P3: the entry is always removed; a missing
// sequence is "Unexpected RSP"; a latch that was never set means RSP arrived without its ACK,
// reported as "Missing ACK" without invoking responseHandler.
func (c *Client) handleResponsePayload(payload []byte) {
	resp, err := wire.DecodeResponse(payload)
	if err != nil {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("malformed RSP"))
		return
	}
	c.metrics.IncResponseRecvCount()

	entry, ok := c.table.Delete(resp.Sequence)
	if !ok {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("Unexpected RSP"))
		return
	}
	c.metrics.DecInflightCount()

	if !entry.AckReceived() {
		c.metrics.IncProtocolErrorCount()
		c.asyncQ.Enqueue(describeProtocolFailure("Missing ACK"))
		return
	}

	if entry.ResponseHandler != nil {
		entry.ResponseHandler(entry.UserData, resp.Sequence, resp.Subcommand, resp.StatusCode, resp.Data)
	}
}

// handleStatusPayload implements §4.D's STAT row, I3, and P8: frames received before state
// Connected are discarded silently; otherwise the per-substatus handler is looked up, falling
// back to the unhandled handler, and invoked with the payload bytes after the substatus field.
func (c *Client) handleStatusPayload(payload []byte) {
	if c.state.State() != Connected {
		return
	}

	status, err := wire.DecodeStatus(payload)
	if err != nil {
		return
	}
	c.metrics.IncStatusRecvCount()

	handler, ok := c.statusReg.Lookup(status.Substatus)
	if !ok {
		return
	}
	handler(status.Substatus, status.Data)
}
