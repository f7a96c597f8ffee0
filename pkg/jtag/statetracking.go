package jtag

import (
	"fmt"

	"github.com/jtagbridge/jtagbridge/pkg/tap"
)

// stateTrackingAdapter is the L3 capability: it accepts the primitive
// action subset {DelayNS, SetClkSpeed, ResetToTLR, GoViaStates, ShiftBits},
// tracks the current TAP state, and routes GoViaStates through
// tap.PathTo's shortest paths. Any other Action.Kind is a programming
// error, per the contract-violation taxonomy in spec §7.
type stateTrackingAdapter struct {
	cs    ChunkShifter
	state tap.State
}

// newStateTrackingAdapter wraps cs, initializing the tracked TAP state to
// Test-Logic-Reset per the data model's adapter-state lifetime rules.
func newStateTrackingAdapter(cs ChunkShifter) *stateTrackingAdapter {
	return &stateTrackingAdapter{cs: cs, state: tap.StateTestLogicReset}
}

// currentState reports the last known TAP state (invariant 1 of the data
// model).
func (a *stateTrackingAdapter) currentState() tap.State { return a.state }

// executePrimitive runs one L3-eligible action and returns its output.
func (a *stateTrackingAdapter) executePrimitive(action Action) (Output, error) {
	switch action.Kind {
	case ActionDelayNS, ActionSetClkSpeed:
		// L2/L1 own timing and clock rate; L3 just forwards and wraps.
		return a.forwardTiming(action)

	case ActionResetToTLR:
		reset := NewBits(5)
		for i := 0; i < 5; i++ {
			reset.SetBit(i, true)
		}
		if err := a.cs.ShiftTMSChunk(reset); err != nil {
			return Output{}, err
		}
		a.state = tap.StateTestLogicReset
		return NoData(), nil

	case ActionGoViaStates:
		if len(action.States) == 0 {
			return NoData(), nil
		}
		var path []bool
		cur := a.state
		for _, target := range action.States {
			path = append(path, tap.PathTo(cur, target)...)
			cur = target
		}
		if len(path) > 0 {
			if err := a.cs.ShiftTMSChunk(BitsFromBools(path)); err != nil {
				return Output{}, err
			}
		}
		a.state = cur
		return NoData(), nil

	case ActionShiftBits:
		if !a.state.IsShiftState() {
			panic(fmt.Sprintf("jtag: ShiftBits issued outside a Shift* state (current state %s)", a.state))
		}
		out, err := a.shiftBits(action)
		if err != nil {
			return Output{}, err
		}
		a.state = tap.NextState(a.state, action.TMSExit)
		return out, nil

	default:
		panic(fmt.Sprintf("jtag: %s is not a primitive action; L3 adapters only accept DelayNS, SetClkSpeed, ResetToTLR, GoViaStates, ShiftBits", action.Kind))
	}
}

func (a *stateTrackingAdapter) shiftBits(action Action) (Output, error) {
	if action.Capture {
		tdo, err := a.cs.ShiftTDITDOChunk(action.TDI, action.TMSExit)
		if err != nil {
			return Output{}, err
		}
		return CapturedBitsOutput(tdo), nil
	}
	if err := a.cs.ShiftTDIChunk(action.TDI, action.TMSExit); err != nil {
		return Output{}, err
	}
	return NoData(), nil
}

func (a *stateTrackingAdapter) forwardTiming(action Action) (Output, error) {
	switch action.Kind {
	case ActionDelayNS:
		actual, err := delayNS(action.Nanoseconds)
		if err != nil {
			return Output{}, err
		}
		return ActualDelayOutput(actual), nil
	case ActionSetClkSpeed:
		actual, err := a.cs.SetClkSpeed(action.Hz)
		if err != nil {
			return Output{}, err
		}
		return ActualClkSpeedOutput(actual), nil
	default:
		panic(fmt.Sprintf("jtag: forwardTiming called with non-timing action %s", action.Kind))
	}
}
