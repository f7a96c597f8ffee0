package mpsse

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/d2xx"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
)

// toErr converts a d2xx.Err (a plain integer status code, not a Go error)
// into a wrapped error, the same translation periph's ftdi package does at
// every D2XX call site.
func toErr(op string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return fmt.Errorf("mpsse: %s: %w", op, errors.New(e.String()))
}

// bitModeMpsse switches an FT2232H/FT4232H/FT232H channel into MPSSE mode,
// per the D2XX SetBitMode contract.
const bitModeMpsse = 0x02

// Driver is a jtag.ChunkShifter backed by a real FTDI MPSSE channel opened
// through D2XX. It owns the device handle for its lifetime; callers get one
// from Open and must Close it when done.
type Driver struct {
	h       d2xx.Handle
	speedHz uint64
}

// Open opens the index'th D2XX device, switches it into MPSSE mode, and
// returns a ready-to-use Driver. index follows D2XX enumeration order, the
// same numbering used by d2xx.CreateDeviceInfoList.
func Open(index int) (*Driver, error) {
	h, e := d2xx.Open(index)
	if e != 0 {
		return nil, toErr(fmt.Sprintf("open device %d", index), e)
	}
	drv := &Driver{h: h}
	if err := drv.init(); err != nil {
		_ = h.Close()
		return nil, err
	}
	return drv, nil
}

func (d *Driver) init() error {
	// Clears stale buffered data, same rationale as periph's ftdi.handle.Init:
	// do it immediately after a reset, before anything else touches the USB
	// pipe.
	if e := d.h.SetUSBParameters(65536, 0); e != 0 {
		return toErr("SetUSBParameters", e)
	}
	if e := d.h.SetTimeouts(1000, 1000); e != 0 {
		return toErr("SetTimeouts", e)
	}
	if e := d.h.SetLatencyTimer(10); e != 0 {
		return toErr("SetLatencyTimer", e)
	}
	if e := d.h.SetBitMode(0, bitModeMpsse); e != 0 {
		return toErr("SetBitMode(MPSSE)", e)
	}
	if err := d.mpsseVerify(); err != nil {
		return err
	}
	return nil
}

// mpsseVerify exchanges a bogus command byte and checks the chip echoes
// back the documented "bad command" response (0xFA, <the bad byte>),
// confirming the channel actually entered MPSSE mode before any real JTAG
// traffic is sent.
func (d *Driver) mpsseVerify() error {
	const bogus = 0xAB
	if _, e := d.h.Write([]byte{bogus}); e != 0 {
		return toErr("verify write", e)
	}
	resp := make([]byte, 2)
	if _, e := d.h.Read(resp); e != 0 {
		return toErr("verify read", e)
	}
	if resp[0] != 0xFA || resp[1] != bogus {
		return fmt.Errorf("mpsse: channel did not enter MPSSE mode (got % X)", resp)
	}
	return nil
}

// Close releases the underlying D2XX handle.
func (d *Driver) Close() error {
	return toErr("close", d.h.Close())
}

// MPSSE clock-divisor command bytes: clock30MHz selects the undivided
// 30MHz reference, clockSetDivisor loads a 16-bit divisor, clock6MHz
// engages the /5 prescaler for rates the 30MHz reference can't reach
// without an out-of-range divisor.
const (
	cmdClock30MHz      byte = 0x8A
	cmdClock6MHz       byte = 0x8B
	cmdClockSetDivisor byte = 0x86
)

// SetClkSpeed implements jtag.ChunkShifter by deriving the MPSSE clock
// divisor closest to hz without exceeding it, same two-tier search as
// periph's MPSSEClock: try the 30MHz reference first, fall back to /5
// (6MHz) if the divisor would overflow 16 bits.
func (d *Driver) SetClkSpeed(hz uint64) (uint64, error) {
	if hz == 0 {
		return 0, fmt.Errorf("mpsse: SetClkSpeed: rate must be positive")
	}
	want := physic.Frequency(hz) * physic.Hertz
	sel := cmdClock30MHz
	base := 30 * physic.MegaHertz
	div := (base + want - 1) / want
	if div < 1 {
		div = 1
	}
	if div >= 65536 {
		sel = cmdClock6MHz
		base /= 5
		div = (base + want - 1) / want
		if div < 1 {
			div = 1
		}
		if div >= 65536 {
			return 0, fmt.Errorf("mpsse: SetClkSpeed: %dHz is below the supported floor", hz)
		}
	}
	cmd := []byte{sel, cmdClockSetDivisor, byte(div - 1), byte((div - 1) >> 8)}
	if err := d.writeOnly(cmd); err != nil {
		return 0, err
	}
	achieved := base / div
	d.speedHz = uint64(achieved / physic.Hertz)
	return d.speedHz, nil
}

// ShiftTMSChunk implements jtag.ChunkShifter: clocks tms out with TDI held
// low, discarding TDO.
func (d *Driver) ShiftTMSChunk(tms jtag.Bits) error {
	if tms.Len() == 0 {
		return nil
	}
	return d.writeOnly(EncodeTMSChunk(tms))
}

// ShiftTDIChunk implements jtag.ChunkShifter: clocks tdi out, TMS fixed at
// 0 except the final bit when tmsExit, discarding TDO.
//
// MPSSE's 0x19/0x1B opcodes don't carry a TMS line, so the final tmsExit
// bit (if any) is peeled off and sent as a one-bit 0x4B TMS frame with TDI
// held at that bit's value, after the bulk data frame.
func (d *Driver) ShiftTDIChunk(tdi jtag.Bits, tmsExit bool) error {
	n := tdi.Len()
	if n == 0 {
		return nil
	}
	if !tmsExit {
		return d.writeOnly(EncodeTDIChunk(tdi))
	}
	bulk := tdi.Slice(0, n-1)
	cmds := EncodeTDIChunk(bulk)
	cmds = append(cmds, tmsExitFrame(tdi.Bit(n-1))...)
	return d.writeOnly(cmds)
}

// ShiftTDITDOChunk is the capturing counterpart of ShiftTDIChunk.
func (d *Driver) ShiftTDITDOChunk(tdi jtag.Bits, tmsExit bool) (jtag.Bits, error) {
	n := tdi.Len()
	if n == 0 {
		return jtag.NewBits(0), nil
	}
	if !tmsExit {
		cmds := append(EncodeTDITDOChunk(tdi), SendImmediate()...)
		resp, err := d.writeRead(cmds, DataResponseBytes(n))
		if err != nil {
			return jtag.Bits{}, err
		}
		return DecodeTDOChunk(resp, n), nil
	}

	bulk := tdi.Slice(0, n-1)
	cmds := EncodeTDITDOChunk(bulk)
	cmds = append(cmds, tmsExitTDOFrame(tdi.Bit(n-1))...)
	cmds = append(cmds, SendImmediate()...)

	wantBulk := DataResponseBytes(bulk.Len())
	resp, err := d.writeRead(cmds, wantBulk+1)
	if err != nil {
		return jtag.Bits{}, err
	}
	bulkOut := DecodeTDOChunk(resp[:wantBulk], bulk.Len())
	lastBit := resp[wantBulk]&0x80 != 0 // TMS-TDO bit lands in the MSB of the response byte
	return bulkOut.Append(jtag.BitsFromBools([]bool{lastBit})), nil
}

// tmsExitFrame sends one TMS=1 cycle with TDI held at tdi for its duration,
// completing a data shift's final bit simultaneously with the state exit.
func tmsExitFrame(tdi bool) []byte {
	payload := byte(0x01) // one TMS bit, value 1
	if tdi {
		payload |= 0x80 // bit7 is the static TDI value for the whole frame
	}
	return []byte{cmdTMSOutBit, 0, payload}
}

// tmsExitTDOFrame is tmsExitFrame's capturing counterpart.
func tmsExitTDOFrame(tdi bool) []byte {
	payload := byte(0x01)
	if tdi {
		payload |= 0x80
	}
	return []byte{cmdTMSTDOBit, 0, payload}
}

func (d *Driver) writeOnly(cmds []byte) error {
	_, e := d.h.Write(cmds)
	return toErr("write", e)
}

func (d *Driver) writeRead(cmds []byte, wantBytes int) ([]byte, error) {
	if _, e := d.h.Write(cmds); e != 0 {
		return nil, toErr("write", e)
	}
	resp := make([]byte, wantBytes)
	if wantBytes == 0 {
		return resp, nil
	}
	n, e := d.h.Read(resp)
	if e != 0 {
		return nil, toErr("read", e)
	}
	if n != wantBytes {
		return nil, fmt.Errorf("mpsse: short read: got %d bytes, want %d", n, wantBytes)
	}
	return resp, nil
}
