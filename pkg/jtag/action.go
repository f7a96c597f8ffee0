package jtag

import "github.com/jtagbridge/jtagbridge/pkg/tap"

// ActionKind discriminates the variants of the Action intermediate
// representation described in the data model.
type ActionKind uint8

const (
	ActionDelayNS ActionKind = iota
	ActionSetClkSpeed
	ActionResetToTLR
	ActionGoViaStates
	ActionShiftBits
	ActionShiftIR
	ActionShiftDR
	ActionSetIR
	ActionReadReg
	ActionWriteReg
)

func (k ActionKind) String() string {
	switch k {
	case ActionDelayNS:
		return "DelayNS"
	case ActionSetClkSpeed:
		return "SetClkSpeed"
	case ActionResetToTLR:
		return "ResetToTLR"
	case ActionGoViaStates:
		return "GoViaStates"
	case ActionShiftBits:
		return "ShiftBits"
	case ActionShiftIR:
		return "ShiftIR"
	case ActionShiftDR:
		return "ShiftDR"
	case ActionSetIR:
		return "SetIR"
	case ActionReadReg:
		return "ReadReg"
	case ActionWriteReg:
		return "WriteReg"
	default:
		return "Action(?)"
	}
}

// Action is the tagged variant IR described in the spec's data model. Only
// the fields relevant to Kind are meaningful; callers build Actions through
// the constructor functions below rather than populating the struct by
// hand, to keep payload/kind pairings honest.
type Action struct {
	Kind ActionKind

	// DelayNS
	Nanoseconds uint64
	// SetClkSpeed
	Hz uint64
	// GoViaStates
	States []tap.State
	// ShiftBits / ShiftIR / ShiftDR / WriteReg
	TDI Bits
	// ShiftBits
	Capture  bool
	TMSExit  bool
	// ShiftIR / ShiftDR
	Pause bool
	// SetIR / ReadReg / WriteReg
	IR Bits
	// ReadReg
	DRLen int
}

// DelayNSAction requests a busy-wait/sleep for at least ns nanoseconds.
func DelayNSAction(ns uint64) Action { return Action{Kind: ActionDelayNS, Nanoseconds: ns} }

// SetClkSpeedAction requests a clock frequency in Hz.
func SetClkSpeedAction(hz uint64) Action { return Action{Kind: ActionSetClkSpeed, Hz: hz} }

// ResetToTLRAction issues 5 cycles of TMS=1, landing in Test-Logic-Reset
// from any state.
func ResetToTLRAction() Action { return Action{Kind: ActionResetToTLR} }

// GoViaStatesAction visits each state in states in order, routing via the
// shortest path from the previous one (or from the adapter's current
// tracked state, for the first element).
func GoViaStatesAction(states ...tap.State) Action {
	return Action{Kind: ActionGoViaStates, States: states}
}

// ShiftBitsAction shifts every bit of tdi on TDI. If tmsExit, the final bit
// carries TMS=1; otherwise TMS=0 throughout. If capture, TDO is returned.
func ShiftBitsAction(tdi Bits, capture, tmsExit bool) Action {
	return Action{Kind: ActionShiftBits, TDI: tdi, Capture: capture, TMSExit: tmsExit}
}

// ShiftIRAction moves to Shift-IR, shifts ir with exit, then goes to
// Pause-IR (if pause) or Run-Test/Idle.
func ShiftIRAction(ir Bits, capture, pause bool) Action {
	return Action{Kind: ActionShiftIR, TDI: ir, Capture: capture, Pause: pause}
}

// ShiftDRAction is the DR-register symmetric counterpart of ShiftIRAction.
func ShiftDRAction(dr Bits, capture, pause bool) Action {
	return Action{Kind: ActionShiftDR, TDI: dr, Capture: capture, Pause: pause}
}

// SetIRAction shifts ir into the instruction register only if it differs
// from the adapter's last known IR value (the memoization hook in §4.5);
// a minimal implementation may always shift.
func SetIRAction(ir Bits) Action { return Action{Kind: ActionSetIR, IR: ir} }

// ReadRegAction applies SetIR(ir), then shifts drlen zero bits into the data
// register, capturing and returning the result.
func ReadRegAction(ir Bits, drlen int) Action {
	return Action{Kind: ActionReadReg, IR: ir, DRLen: drlen}
}

// WriteRegAction applies SetIR(ir), then shifts dr into the data register
// without capturing.
func WriteRegAction(ir, dr Bits) Action { return Action{Kind: ActionWriteReg, IR: ir, TDI: dr} }

// OutputKind discriminates the variants of the Output tagged union.
type OutputKind uint8

const (
	OutputNoData OutputKind = iota
	OutputCapturedBits
	OutputActualDelay
	OutputActualClkSpeed
)

// Output is produced one-per-executed-Action, positionally aligned with the
// action list that produced it.
type Output struct {
	Kind         OutputKind
	CapturedBits Bits
	ActualDelay  uint64
	ActualClk    uint64
}

// NoData is the Output for actions with no return payload.
func NoData() Output { return Output{Kind: OutputNoData} }

// CapturedBitsOutput wraps a captured TDO stream.
func CapturedBitsOutput(bits Bits) Output { return Output{Kind: OutputCapturedBits, CapturedBits: bits} }

// ActualDelayOutput wraps the achieved delay from a DelayNS action.
func ActualDelayOutput(ns uint64) Output { return Output{Kind: OutputActualDelay, ActualDelay: ns} }

// ActualClkSpeedOutput wraps the achieved clock rate from a SetClkSpeed action.
func ActualClkSpeedOutput(hz uint64) Output {
	return Output{Kind: OutputActualClkSpeed, ActualClk: hz}
}
