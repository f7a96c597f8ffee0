package jtag

import "github.com/jtagbridge/jtagbridge/pkg/tap"

// SimCycle records one driven TCK cycle for test inspection: the TMS/TDI
// values presented and the TAP state they were presented from.
type SimCycle struct {
	TMS, TDI bool
	State    tap.State
}

// ShiftBitHook lets a test emulate a downstream device: given the state the
// cycle was driven from and the (tms, tdi) pair, it returns the TDO sample
// for that cycle. A nil hook always returns false.
type ShiftBitHook func(state tap.State, tms, tdi bool) (tdo bool)

// SimBitbang is an in-memory Bitbang implementation for unit tests. It
// tracks its own TAP state with a tap.StateMachine, so assertions can
// compare the exact TMS/TDI sequence an L3/L4 adapter drove against the
// ground truth, independent of any real hardware.
type SimBitbang struct {
	sm      *tap.StateMachine
	SpeedHz uint64
	OnBit   ShiftBitHook

	history []SimCycle
}

// NewSimBitbang returns a simulator starting in Test-Logic-Reset, matching
// the power-on state of real JTAG hardware.
func NewSimBitbang() *SimBitbang {
	return &SimBitbang{sm: tap.NewStateMachine()}
}

// ShiftOneBit implements Bitbang.
func (s *SimBitbang) ShiftOneBit(tms, tdi bool) (bool, error) {
	before := s.sm.State()
	s.history = append(s.history, SimCycle{TMS: tms, TDI: tdi, State: before})

	var tdo bool
	if s.OnBit != nil {
		tdo = s.OnBit(before, tms, tdi)
	}
	s.sm.Clock(tms)
	return tdo, nil
}

// SetClkSpeed implements Bitbang by recording and echoing back the
// requested rate unconditionally.
func (s *SimBitbang) SetClkSpeed(hz uint64) (uint64, error) {
	s.SpeedHz = hz
	return hz, nil
}

// State reports the simulator's ground-truth TAP state.
func (s *SimBitbang) State() tap.State { return s.sm.State() }

// History returns a copy of every cycle driven against the simulator so
// far, oldest first.
func (s *SimBitbang) History() []SimCycle {
	return append([]SimCycle(nil), s.history...)
}

// IDCODEShiftHook returns a ShiftBitHook that emulates a TAP whose data
// register is hardwired to raw whenever the TAP is in Capture-DR or
// Shift-DR: the register is (re)loaded with raw on every Capture-DR cycle
// and shifted one bit (LSB first, new bit from tdi entering the top) on
// every Shift-DR cycle. As the Bitbang contract requires, the returned TDO
// is the value presented at the end of the cycle: bit 0 of the register
// after a Capture-DR cycle or a Shift-DR cycle. Any other state echoes tdi
// back unchanged, which is adequate for instruction-register traffic in
// tests that don't care about IR content.
func IDCODEShiftHook(raw uint32) ShiftBitHook {
	reg := raw
	return func(state tap.State, tms, tdi bool) bool {
		switch state {
		case tap.StateCaptureDR:
			reg = raw
			return reg&1 != 0
		case tap.StateShiftDR:
			reg >>= 1
			if tdi {
				reg |= 1 << 31
			}
			return reg&1 != 0
		}
		return tdi
	}
}
