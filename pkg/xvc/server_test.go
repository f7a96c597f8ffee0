package xvc

import (
	"encoding/binary"
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
)

func newTestServer() *Server {
	sim := jtag.NewSimBitbang()
	sim.OnBit = jtag.IDCODEShiftHook(0x0362D093)
	adapter := jtag.NewNativeAdapter(jtag.NewChunkShifterFromBitbang(sim))
	return NewServer(adapter, log.New(io.Discard, "", 0))
}

// dial starts handleConn on one end of an in-memory pipe and returns the
// other end for the test to drive as a client.
func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go srv.handleConn(server)
	t.Cleanup(func() { client.Close() })
	return client
}

func doGetInfo(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("getinfo:")); err != nil {
		t.Fatalf("write getinfo: %v", err)
	}
	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read getinfo reply: %v", err)
	}
	return string(buf[:n])
}

// TestServerUnknownCommandContinues confirms the session survives an
// unrecognized command name and keeps answering subsequent commands, per
// spec: "An unknown command is logged; the connection is left in place."
func TestServerUnknownCommandContinues(t *testing.T) {
	conn := dial(t, newTestServer())

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write([]byte("bogus:")); err != nil {
		t.Fatalf("write bogus command: %v", err)
	}

	if got := doGetInfo(t, conn); got == "" {
		t.Fatalf("expected a getinfo reply after the unknown command, got empty")
	}
}

// TestServerOversizeShiftContinues confirms a shift: whose declared nbits
// exceeds MaxBits is rejected (logged) without killing the connection, and
// that the declared payload is drained so the stream resyncs at the next
// command boundary.
func TestServerOversizeShiftContinues(t *testing.T) {
	conn := dial(t, newTestServer())

	oversize := uint32(MaxBits + 8)
	nBytes := int((oversize + 7) / 8)

	var req []byte
	req = append(req, []byte("shift:")...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, oversize)
	req = append(req, lenBuf...)
	req = append(req, make([]byte, nBytes)...) // tms
	req = append(req, make([]byte, nBytes)...) // tdi

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write oversize shift: %v", err)
	}

	if got := doGetInfo(t, conn); got == "" {
		t.Fatalf("expected a getinfo reply after the oversize shift, got empty")
	}
}

// TestServerSettckEchoesPeriod confirms settck: replies with the requested
// period unchanged.
func TestServerSettckEchoesPeriod(t *testing.T) {
	conn := dial(t, newTestServer())

	var req []byte
	req = append(req, []byte("settck:")...)
	periodBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(periodBuf, 100)
	req = append(req, periodBuf...)

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write settck: %v", err)
	}

	resp := make([]byte, 4)
	if _, err := io.ReadFull(conn, resp); err != nil {
		t.Fatalf("read settck reply: %v", err)
	}
	if got := binary.LittleEndian.Uint32(resp); got != 100 {
		t.Errorf("settck reply = %d, want 100", got)
	}
}

// TestServerShiftRoundTrip drives a minimal valid shift: through the server
// and confirms it gets back the right number of response bytes.
func TestServerShiftRoundTrip(t *testing.T) {
	conn := dial(t, newTestServer())

	nbits := uint32(9) // spills into a second, partial byte
	nBytes := int((nbits + 7) / 8)

	var req []byte
	req = append(req, []byte("shift:")...)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, nbits)
	req = append(req, lenBuf...)
	req = append(req, []byte{0b0000_0001, 0}...) // tms: 9 bits, first bit 1
	req = append(req, make([]byte, nBytes)...)   // tdi: all zero

	conn.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write shift: %v", err)
	}

	resp := make([]byte, nBytes)
	if _, err := io.ReadFull(conn, resp); err != nil {
		t.Fatalf("read shift reply: %v", err)
	}
}
