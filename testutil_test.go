package icc_test

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/icc/frame"
	"github.com/arloliu/icc/wire"
)

// fakeServer is a minimal stand-in for the instrument, speaking just enough of the wire protocol
// for the scenarios in §8: accept one connection, read/write frames, and optionally run the login
// handshake.
type fakeServer struct {
	t    *testing.T
	ln   net.Listener
	port int
	conn net.Conn
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return &fakeServer{t: t, ln: ln, port: ln.Addr().(*net.TCPAddr).Port}
}

// relisten closes the current listener, if any, and rebinds a new one on the same port, so a
// test can simulate the instrument coming back up after an outage.
func (s *fakeServer) relisten() {
	s.t.Helper()
	_ = s.ln.Close()

	var err error
	for i := 0; i < 50; i++ {
		s.ln, err = net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(s.port))
		if err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(s.t, err)
}

func (s *fakeServer) close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
	_ = s.ln.Close()
}

// accept blocks until a client dials in, then stores the server-side connection.
func (s *fakeServer) accept() {
	s.t.Helper()
	conn, err := s.ln.Accept()
	require.NoError(s.t, err)
	s.conn = conn
}

// acceptAndLogin accepts one connection, reads the LOGN frame, and replies ACPT with grantedAccess.
func (s *fakeServer) acceptAndLogin(grantedAccess wire.AccessLevel) wire.LoginRequest {
	s.t.Helper()
	s.accept()

	payload := s.readFrame()
	req, err := wire.DecodeLogin(payload)
	require.NoError(s.t, err)

	s.sendFrame(encodeAccept(grantedAccess))
	return req
}

func (s *fakeServer) readFrame() []byte {
	s.t.Helper()
	_ = s.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	payload, err := frame.Decode(s.conn)
	require.NoError(s.t, err)
	return payload
}

func (s *fakeServer) sendFrame(payload []byte) {
	s.t.Helper()
	require.NoError(s.t, frame.Encode(s.conn, payload))
}

func encodeAccept(access wire.AccessLevel) []byte {
	buf := make([]byte, 8)
	copy(buf[0:4], []byte(wire.TagACPT.String()))
	putLE(buf[4:8], uint32(access)) //nolint:gosec
	return buf
}

func encodeAck(seq uint32) []byte {
	buf := make([]byte, 8)
	copy(buf[0:4], []byte(wire.TagACK.String()))
	putLE(buf[4:8], seq)
	return buf
}

func encodeNak(seq, statusCode uint32) []byte {
	buf := make([]byte, 12)
	copy(buf[0:4], []byte(wire.TagNAK.String()))
	putLE(buf[4:8], seq)
	putLE(buf[8:12], statusCode)
	return buf
}

func encodeResponse(seq, subcommand, statusCode uint32, data []byte) []byte {
	buf := make([]byte, 16+len(data))
	copy(buf[0:4], []byte(wire.TagRSP.String()))
	putLE(buf[4:8], seq)
	putLE(buf[8:12], subcommand)
	putLE(buf[12:16], statusCode)
	copy(buf[16:], data)
	return buf
}

func encodeStatus(substatus uint32, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	copy(buf[0:4], []byte(wire.TagSTAT.String()))
	putLE(buf[4:8], substatus)
	copy(buf[8:], data)
	return buf
}

// decodeCommand parses a GET/ACTN payload's fixed fields for assertions.
func decodeCommand(t *testing.T, payload []byte) (seq, subcommand uint32, data []byte) {
	t.Helper()
	require.GreaterOrEqual(t, len(payload), 12)
	seq = getLE(payload[4:8])
	subcommand = getLE(payload[8:12])
	data = payload[12:]
	return
}

func getLE(src []byte) uint32 {
	return uint32(src[0]) | uint32(src[1])<<8 | uint32(src[2])<<16 | uint32(src[3])<<24
}

func putLE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}
