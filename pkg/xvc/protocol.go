// Package xvc implements the Xilinx Virtual Cable wire protocol: a tiny
// line-oriented TCP command set (getinfo:/settck:/shift:) that lets tools
// such as Vivado Hardware Manager or OpenOCD drive a remote JTAG adapter as
// if it were directly attached.
package xvc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
	"github.com/jtagbridge/jtagbridge/pkg/tap"
)

// ErrShiftTooLarge is the sentinel ReadShift wraps its error with when a
// client's declared nbits exceeds MaxBits. It is not fatal to the
// connection: per spec, an oversize shift: is rejected but the session
// continues at the next command boundary, so ReadShift drains the declared
// payload off r itself before returning, leaving the stream positioned
// right after it.
var ErrShiftTooLarge = errors.New("xvc: shift: bit count exceeds MaxBits")

// MaxBits is the largest shift: vector this server accepts, advertised via
// getinfo:. 5120 bits is 640 bytes each of TMS and TDI; ReadShift has no
// fixed staging buffer and allocates ceil(nbits/8) bytes per vector for
// each request.
const MaxBits = 5120

// GetInfoResponse is the fixed reply to a getinfo: command.
func GetInfoResponse() []byte {
	return []byte(fmt.Sprintf("xvcServer_v1.0:%d\n", MaxBits))
}

// ReadCommandName reads up to and including the next ':' and returns the
// command name without it (e.g. "getinfo", "settck", "shift").
func ReadCommandName(r io.Reader) (string, error) {
	var name []byte
	buf := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		if buf[0] == ':' {
			return string(name), nil
		}
		name = append(name, buf[0])
		if len(name) > 16 {
			return "", fmt.Errorf("xvc: command name too long")
		}
	}
}

// ReadSettck reads a settck: body (a 4-byte little-endian period in
// nanoseconds) and returns it unchanged — the server doesn't control its
// own clock rate independently, so the reply to settck: always echoes the
// requested period back, signaling "request accepted as-is".
func ReadSettck(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("xvc: settck: %w", err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// EncodeSettckResponse renders the settck: reply.
func EncodeSettckResponse(periodNS uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], periodNS)
	return buf[:]
}

// ShiftRequest is a decoded shift: command body: numBits TMS/TDI pairs,
// each buffer packed LSB-first across ceil(numBits/8) bytes.
type ShiftRequest struct {
	NumBits int
	TMS     jtag.Bits
	TDI     jtag.Bits
}

// ReadShift reads a shift: body: a 4-byte little-endian bit count, followed
// by that many TMS bits then that many TDI bits, each packed into
// ceil(numBits/8) bytes.
func ReadShift(r io.Reader) (ShiftRequest, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return ShiftRequest{}, fmt.Errorf("xvc: shift: length: %w", err)
	}
	numBits := int(binary.LittleEndian.Uint32(lenBuf[:]))
	if numBits < 0 {
		return ShiftRequest{}, fmt.Errorf("xvc: shift: negative bit count %d", numBits)
	}
	nBytes := (numBits + 7) / 8
	if numBits > MaxBits {
		if _, err := io.CopyN(io.Discard, r, 2*int64(nBytes)); err != nil {
			return ShiftRequest{}, fmt.Errorf("xvc: shift: draining oversize payload: %w", err)
		}
		return ShiftRequest{}, fmt.Errorf("%w: got %d, max %d", ErrShiftTooLarge, numBits, MaxBits)
	}

	tmsBuf := make([]byte, nBytes)
	if _, err := io.ReadFull(r, tmsBuf); err != nil {
		return ShiftRequest{}, fmt.Errorf("xvc: shift: tms: %w", err)
	}
	tdiBuf := make([]byte, nBytes)
	if _, err := io.ReadFull(r, tdiBuf); err != nil {
		return ShiftRequest{}, fmt.Errorf("xvc: shift: tdi: %w", err)
	}

	return ShiftRequest{
		NumBits: numBits,
		TMS:     jtag.BitsFromBytes(tmsBuf, numBits),
		TDI:     jtag.BitsFromBytes(tdiBuf, numBits),
	}, nil
}

// EncodeShiftResponse packs tdo into the wire format a shift: reply uses:
// ceil(len/8) bytes, LSB-first, matching the request's own TMS/TDI framing.
func EncodeShiftResponse(tdo jtag.Bits) []byte {
	return tdo.Bytes()
}

// step is one unit of the reconstruction plan built by Reconstruct: either
// a pure TAP-state move (no data, no TDO) or a data shift with its result
// bits destined for a specific bit range of the overall response buffer.
type step struct {
	reset     bool
	states    []tap.State // non-nil for a move step
	tdi       jtag.Bits   // the shifted bits, for a shift step (neither reset nor states)
	tmsExit   bool
	outOffset int // bit offset into the full response buffer (shift steps only)
}

// Reconstruct performs the single-pass algorithm that turns a raw,
// bit-banged XVC trace into the minimal action sequence: runs of TMS bits
// outside a shift state become one GoViaStates hop per bit (replaying them
// via tap.PathTo reproduces every transition that changes state, including
// any repeated Capture/Update visits; a bit that leaves the TAP where it was,
// such as an idle cycle in Run-Test/Idle, Pause-DR/IR or Test-Logic-Reset,
// maps to an empty path and is not clocked again), five or more consecutive
// TMS=1 bits taken outside Shift-IR/Shift-DR collapse to a single
// ResetToTLR (a run that starts in a shift state first ends that shift with
// its exit bit), and runs of bits taken while in Shift-IR/Shift-DR become
// one ShiftBits per run with the response bits positionally recorded for
// the caller to place back into the output buffer.
func Reconstruct(tms, tdi jtag.Bits, start tap.State) []step {
	n := tms.Len()
	var steps []step
	state := start
	i := 0
	for i < n {
		if state.IsShiftState() {
			j := i
			for j < n && !tms.Bit(j) {
				j++
			}
			exit := j < n // the loop stopped because tms.Bit(j) is true
			end := j
			if exit {
				end = j + 1
			}
			chunk := tdi.Slice(i, end)
			steps = append(steps, step{tdi: chunk, tmsExit: exit, outOffset: i})
			for k := i; k < end; k++ {
				state = tap.NextState(state, tms.Bit(k))
			}
			i = end
			continue
		}

		if runLen := countOnes(tms, i); runLen >= 5 {
			steps = append(steps, step{reset: true})
			state = tap.StateTestLogicReset
			i += runLen
			continue
		}

		j := i
		var visited []tap.State
		for j < n && !state.IsShiftState() {
			if j > i && countOnes(tms, j) >= 5 {
				break
			}
			next := tap.NextState(state, tms.Bit(j))
			visited = append(visited, next)
			state = next
			j++
			if state.IsShiftState() {
				break
			}
		}
		steps = append(steps, step{states: visited})
		i = j
	}
	return steps
}

func countOnes(bits jtag.Bits, from int) int {
	n := 0
	for i := from; i < bits.Len() && bits.Bit(i); i++ {
		n++
	}
	return n
}
