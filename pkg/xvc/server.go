package xvc

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
)

// Server is the XVC TCP accept loop. It serializes all adapter access
// behind a mutex: only one connection drives the adapter at a time, and a
// second concurrent client blocks until the first disconnects, matching
// the single-client design of the underlying JTAGAdapter.
type Server struct {
	Adapter *jtag.NativeAdapter
	Logger  *log.Logger

	mu sync.Mutex
}

// NewServer wraps adapter in an XVC server. If logger is nil, log.Default
// is used.
func NewServer(adapter *jtag.NativeAdapter, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{Adapter: adapter, Logger: logger}
}

// Serve accepts connections on ln until it returns an error (including
// when ln is closed), handling each to completion before accepting the
// next.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("xvc: accept: %w", err)
		}
		s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		name, err := ReadCommandName(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.Logger.Printf("xvc: %s: read command: %v", conn.RemoteAddr(), err)
			}
			return
		}

		switch name {
		case "getinfo":
			if _, err := conn.Write(GetInfoResponse()); err != nil {
				s.Logger.Printf("xvc: %s: write getinfo reply: %v", conn.RemoteAddr(), err)
				return
			}

		case "settck":
			period, err := ReadSettck(conn)
			if err != nil {
				s.Logger.Printf("xvc: %s: %v", conn.RemoteAddr(), err)
				return
			}
			if _, err := conn.Write(EncodeSettckResponse(period)); err != nil {
				s.Logger.Printf("xvc: %s: write settck reply: %v", conn.RemoteAddr(), err)
				return
			}

		case "shift":
			if err := s.handleShift(conn); err != nil {
				s.Logger.Printf("xvc: %s: %v", conn.RemoteAddr(), err)
				if errors.Is(err, ErrShiftTooLarge) {
					continue
				}
				return
			}

		default:
			// Per protocol, an unrecognized command name is logged but does
			// not end the session — the client may just be speaking a
			// newer dialect we don't implement.
			s.Logger.Printf("xvc: %s: unknown command %q", conn.RemoteAddr(), name)
			continue
		}
	}
}

func (s *Server) handleShift(conn net.Conn) error {
	req, err := ReadShift(conn)
	if err != nil {
		return err
	}

	out := jtag.NewBits(req.NumBits)
	for _, st := range Reconstruct(req.TMS, req.TDI, s.Adapter.CurrentState()) {
		switch {
		case st.reset:
			if err := s.Adapter.Reset(); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		case st.states != nil:
			if _, err := s.Adapter.Do(jtag.GoViaStatesAction(st.states...)); err != nil {
				return fmt.Errorf("move: %w", err)
			}
		default:
			output, err := s.Adapter.Do(jtag.ShiftBitsAction(st.tdi, true, st.tmsExit))
			if err != nil {
				return fmt.Errorf("shift: %w", err)
			}
			for i := 0; i < output.CapturedBits.Len(); i++ {
				out.SetBit(st.outOffset+i, output.CapturedBits.Bit(i))
			}
		}
	}

	if _, err := conn.Write(EncodeShiftResponse(out)); err != nil {
		return fmt.Errorf("write shift reply: %w", err)
	}
	return nil
}
