package jtag

import (
	"fmt"

	"github.com/jtagbridge/jtagbridge/pkg/idcode"
	"github.com/jtagbridge/jtagbridge/pkg/tap"
)

// idcodeDRLen is the width of the standard IEEE 1149.1 IDCODE data
// register: a fixed 32 bits, regardless of target.
const idcodeDRLen = 32

// NativeAdapter is the L4 capability: the full JTAGAdapter surface. It is
// generic over any ChunkShifter (L2), so a driver that implements only
// Bitbang (L1) gains the complete high-level API for free by wrapping it in
// NewChunkShifterFromBitbang first.
//
// NativeAdapter is not safe for concurrent use: the scheduling model is
// single-threaded and synchronous (spec §5), and an adapter instance is a
// non-shareable resource.
type NativeAdapter struct {
	l3 *stateTrackingAdapter

	queue []Action

	// currentIR tracks the last IR value shifted via SetIR, for the
	// memoization hook in spec §4.5/§9. irKnown is false when the value is
	// "unknown" (after ResetToTLR, a GoViaStates through TestLogicReset, or
	// any ShiftBits/ShiftIR that bypassed SetIR).
	currentIR Bits
	irKnown   bool
}

// NewNativeAdapter builds the full JTAGAdapter surface on top of cs.
func NewNativeAdapter(cs ChunkShifter) *NativeAdapter {
	return &NativeAdapter{l3: newStateTrackingAdapter(cs)}
}

// Queue enqueues action for later execution (buffered mode).
func (a *NativeAdapter) Queue(action Action) {
	a.queue = append(a.queue, action)
}

// Do enqueues action, flushes, and returns the output for that one action
// (blocking mode).
func (a *NativeAdapter) Do(action Action) (Output, error) {
	a.Queue(action)
	outs, err := a.Flush()
	if err != nil {
		return Output{}, err
	}
	return outs[len(outs)-1], nil
}

// Flush drains every queued action atomically with respect to the queue
// (the queue is emptied before execution begins) and executes them in
// order, returning one Output per drained action.
func (a *NativeAdapter) Flush() ([]Output, error) {
	drained := a.queue
	a.queue = nil
	return a.executeActions(drained)
}

// executeActions is the composite lowering described in spec §4.5: passes
// the L3 primitive subset straight through, and expands ShiftIR, ShiftDR,
// SetIR, ReadReg, WriteReg into primitives.
func (a *NativeAdapter) executeActions(actions []Action) ([]Output, error) {
	outs := make([]Output, 0, len(actions))
	for _, action := range actions {
		out, err := a.executeOne(action)
		if err != nil {
			// All actions enqueued before a failed flush are considered
			// executed up to the point of failure; partial completion is
			// possible and the caller must treat it as such (spec §7).
			return outs, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

func (a *NativeAdapter) executeOne(action Action) (Output, error) {
	switch action.Kind {
	case ActionDelayNS, ActionSetClkSpeed:
		return a.l3.executePrimitive(action)

	case ActionShiftBits:
		a.irKnown = false
		return a.l3.executePrimitive(action)

	case ActionResetToTLR:
		a.irKnown = false
		return a.l3.executePrimitive(action)

	case ActionGoViaStates:
		cur := a.l3.currentState()
		for _, s := range action.States {
			for _, tms := range tap.PathTo(cur, s) {
				cur = tap.NextState(cur, tms)
				if cur == tap.StateTestLogicReset {
					a.irKnown = false
				}
			}
		}
		return a.l3.executePrimitive(action)

	case ActionShiftIR:
		return a.lowerShiftIR(action, true)

	case ActionShiftDR:
		return a.lowerShiftDR(action)

	case ActionSetIR:
		return a.lowerSetIR(action.IR)

	case ActionReadReg:
		return a.lowerReadReg(action)

	case ActionWriteReg:
		return a.lowerWriteReg(action)

	default:
		panic(fmt.Sprintf("jtag: unrecognized action %s", action.Kind))
	}
}

// lowerShiftIR implements: GoViaStates([ShiftIR]); ShiftBits{ir, capture,
// tms_exit: true}; GoViaStates([pause ? PauseIR : RunTestIdle]). When
// invalidateIR is true (direct ShiftIR calls, as opposed to the SetIR path)
// the IR memoization cache is invalidated, since the shifted value was not
// routed through SetIR's bookkeeping.
func (a *NativeAdapter) lowerShiftIR(action Action, invalidateIR bool) (Output, error) {
	if invalidateIR {
		a.irKnown = false
	}
	if _, err := a.l3.executePrimitive(GoViaStatesAction(tap.StateShiftIR)); err != nil {
		return Output{}, err
	}
	out, err := a.l3.executePrimitive(ShiftBitsAction(action.TDI, action.Capture, true))
	if err != nil {
		return Output{}, err
	}
	exit := tap.StateRunTestIdle
	if action.Pause {
		exit = tap.StatePauseIR
	}
	if _, err := a.l3.executePrimitive(GoViaStatesAction(exit)); err != nil {
		return Output{}, err
	}
	return out, nil
}

// lowerShiftDR is the DR-register symmetric counterpart.
func (a *NativeAdapter) lowerShiftDR(action Action) (Output, error) {
	if _, err := a.l3.executePrimitive(GoViaStatesAction(tap.StateShiftDR)); err != nil {
		return Output{}, err
	}
	out, err := a.l3.executePrimitive(ShiftBitsAction(action.TDI, action.Capture, true))
	if err != nil {
		return Output{}, err
	}
	exit := tap.StateRunTestIdle
	if action.Pause {
		exit = tap.StatePauseDR
	}
	if _, err := a.l3.executePrimitive(GoViaStatesAction(exit)); err != nil {
		return Output{}, err
	}
	return out, nil
}

// lowerSetIR implements the IR memoization hook: if the current IR matches
// ir, nothing is emitted; otherwise ir is shifted out to Run-Test/Idle and
// the cache is updated.
func (a *NativeAdapter) lowerSetIR(ir Bits) (Output, error) {
	if a.irKnown && bitsEqual(a.currentIR, ir) {
		return NoData(), nil
	}
	if _, err := a.lowerShiftIR(Action{TDI: ir, Capture: false, Pause: false}, false); err != nil {
		return Output{}, err
	}
	a.currentIR = ir
	a.irKnown = true
	return NoData(), nil
}

// lowerReadReg implements: SetIR(ir); GoViaStates([ShiftDR]);
// ShiftBits{zeros(drlen), capture:true, tms_exit:true};
// GoViaStates([RunTestIdle]).
func (a *NativeAdapter) lowerReadReg(action Action) (Output, error) {
	if _, err := a.lowerSetIR(action.IR); err != nil {
		return Output{}, err
	}
	return a.lowerShiftDR(ShiftDRAction(Zeros(action.DRLen), true, false))
}

// lowerWriteReg implements: SetIR(ir); GoViaStates([ShiftDR]);
// ShiftBits{dr, capture:false, tms_exit:true}; GoViaStates([RunTestIdle]).
func (a *NativeAdapter) lowerWriteReg(action Action) (Output, error) {
	if _, err := a.lowerSetIR(action.IR); err != nil {
		return Output{}, err
	}
	if _, err := a.lowerShiftDR(ShiftDRAction(action.TDI, false, false)); err != nil {
		return Output{}, err
	}
	return NoData(), nil
}

func bitsEqual(a, b Bits) bool {
	if a.Len() != b.Len() {
		return false
	}
	ab, bb := a.Bytes(), b.Bytes()
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}

// Convenience entry points. All are pure sugar: each enqueues one action
// and, if it returns data, flushes (spec §4.5).

// GoRTI drives the TAP to Run-Test/Idle.
func (a *NativeAdapter) GoRTI() error {
	_, err := a.Do(GoViaStatesAction(tap.StateRunTestIdle))
	return err
}

// Reset issues 5 TMS=1 cycles, landing in Test-Logic-Reset.
func (a *NativeAdapter) Reset() error {
	_, err := a.Do(ResetToTLRAction())
	return err
}

// ShiftDRInOut shifts bits into the data register and returns what was
// captured, optionally leaving the TAP in Pause-DR instead of Run-Test/Idle.
func (a *NativeAdapter) ShiftDRInOut(bits Bits, pause bool) (Bits, error) {
	out, err := a.Do(ShiftDRAction(bits, true, pause))
	if err != nil {
		return Bits{}, err
	}
	return out.CapturedBits, nil
}

// ReadReg applies SetIR(ir) and captures drlen bits from the data register.
func (a *NativeAdapter) ReadReg(ir Bits, drlen int) (Bits, error) {
	out, err := a.Do(ReadRegAction(ir, drlen))
	if err != nil {
		return Bits{}, err
	}
	return out.CapturedBits, nil
}

// WriteReg applies SetIR(ir) and shifts dr into the data register.
func (a *NativeAdapter) WriteReg(ir, dr Bits) error {
	_, err := a.Do(WriteRegAction(ir, dr))
	return err
}

// CurrentState reports the TAP state the adapter believes it is in.
func (a *NativeAdapter) CurrentState() tap.State {
	return a.l3.currentState()
}

// ReadIDCODE resets the TAP and captures the 32-bit IDCODE register. Most
// IEEE 1149.1 TAPs load IDCODE into the instruction register by default on
// Test-Logic-Reset, so no SetIR is issued; a TAP without an IDCODE
// instruction selects BYPASS instead, whose capture has bit 0 clear, which
// HasIDCode reports as false.
func (a *NativeAdapter) ReadIDCODE() (idcode.IDCode, error) {
	if err := a.Reset(); err != nil {
		return idcode.IDCode{}, err
	}
	if err := a.GoRTI(); err != nil {
		return idcode.IDCode{}, err
	}
	bits, err := a.ShiftDRInOut(Zeros(idcodeDRLen), false)
	if err != nil {
		return idcode.IDCode{}, err
	}
	buf := bits.Bytes()
	raw := uint32(0)
	for i := 0; i < idcodeDRLen/8 && i < len(buf); i++ {
		raw |= uint32(buf[i]) << (8 * i)
	}
	return idcode.ParseIDCode(raw), nil
}
