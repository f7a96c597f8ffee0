package tap_test

import (
	"testing"

	"github.com/jtagbridge/jtagbridge/pkg/jtag"
	"github.com/jtagbridge/jtagbridge/pkg/tap"
)

// TestStateMachineSequencesDriveSimBitbang confirms that a Sequence computed
// by the state machine, when replayed bit-by-bit against a simulated
// bitbang device, leaves that device in exactly the target state: the same
// property NativeAdapter.Do relies on when it lowers a GoViaStates action to
// tap.PathTo hops.
func TestStateMachineSequencesDriveSimBitbang(t *testing.T) {
	m := tap.NewStateMachine()
	m.Clock(false) // -> Run-Test/Idle

	seq, err := m.GoTo(tap.StateShiftIR)
	if err != nil {
		t.Fatalf("GoTo returned error: %v", err)
	}

	sim := jtag.NewSimBitbang()
	sim.ShiftOneBit(false, false) // -> Run-Test/Idle, the same start state as m
	for _, tms := range seq.TMS {
		if _, err := sim.ShiftOneBit(tms, false); err != nil {
			t.Fatalf("ShiftOneBit returned error: %v", err)
		}
	}

	if sim.State() != tap.StateShiftIR {
		t.Fatalf("sim landed in state %v, want ShiftIR", sim.State())
	}

	history := sim.History()[1:] // skip the cycle that moved sim to Run-Test/Idle
	if len(history) != len(seq.TMS) {
		t.Fatalf("history length = %d, want %d", len(history), len(seq.TMS))
	}
	for i, cycle := range history {
		if cycle.TMS != seq.TMS[i] {
			t.Fatalf("history[%d].TMS = %v, want %v", i, cycle.TMS, seq.TMS[i])
		}
	}
}

// TestPathToMatchesGoTo confirms tap.PathTo (used by NativeAdapter's
// GoViaStates lowering) agrees with the state machine's own
// GoTo for the same source/target pair.
func TestPathToMatchesGoTo(t *testing.T) {
	m := tap.NewStateMachine()
	m.Clock(false) // TestLogicReset -> RunTestIdle

	seq, err := m.GoTo(tap.StateShiftDR)
	if err != nil {
		t.Fatalf("GoTo returned error: %v", err)
	}

	path := tap.PathTo(tap.StateRunTestIdle, tap.StateShiftDR)
	if len(path) != len(seq.TMS) {
		t.Fatalf("PathTo length = %d, want %d", len(path), len(seq.TMS))
	}
	for i := range path {
		if path[i] != seq.TMS[i] {
			t.Fatalf("path[%d] = %v, want %v", i, path[i], seq.TMS[i])
		}
	}
}
