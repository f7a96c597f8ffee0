package jtag

// Bitbang is the L1 capability: shift one (TMS, TDI) pair per TCK cycle and
// return the TDO sampled at the end of that cycle. Drivers that can only
// bit-bang (one USB control transfer per clock) implement this and nothing
// else; the rest of the stack (L2-L4) is supplied generically on top.
type Bitbang interface {
	// ShiftOneBit drives one TCK cycle with the given TMS/TDI and returns the
	// TDO sample captured at the end of the cycle.
	ShiftOneBit(tms, tdi bool) (tdo bool, err error)

	// SetClkSpeed records a desired clock rate in Hz and returns the achieved
	// rate, which may be equal, lower, or (if unsupported) reported verbatim
	// without effect.
	SetClkSpeed(hz uint64) (actual uint64, err error)
}

// ChunkShifter is the L2 capability: shift a run of bits as one logical
// operation instead of one cycle at a time. MPSSE-class hardware implements
// this natively; bit-bang-only hardware gets it for free via
// NewChunkShifterFromBitbang.
type ChunkShifter interface {
	// ShiftTMSChunk clocks out each bit of tms with TDI held at a fixed value
	// (0). It does not capture TDO.
	ShiftTMSChunk(tms Bits) error

	// ShiftTDIChunk clocks out tdi with TMS=0, except the final bit, which
	// carries TMS=1 iff tmsExit. It does not capture TDO.
	ShiftTDIChunk(tdi Bits, tmsExit bool) error

	// ShiftTDITDOChunk is the same as ShiftTDIChunk but captures TDO for
	// every clock and returns a stream of the same length as tdi.
	ShiftTDITDOChunk(tdi Bits, tmsExit bool) (tdo Bits, err error)

	// SetClkSpeed is forwarded to the underlying transport.
	SetClkSpeed(hz uint64) (actual uint64, err error)
}

// JTAGAdapter is the full L4 surface: the contract applications program
// against. NativeAdapter is the generic implementation of this interface
// built on top of any StateTrackingAdapter (itself built on any
// ChunkShifter, itself built, if necessary, on any Bitbang). A driver never
// has to implement JTAGAdapter directly; it implements the lowest
// capability it's actually capable of and the library does the rest.
type JTAGAdapter interface {
	// Queue enqueues action for later execution without blocking on
	// hardware I/O (the "buffered" mode).
	Queue(action Action)

	// Do enqueues action, flushes immediately, and returns the output for
	// that one action (the "blocking" mode).
	Do(action Action) (Output, error)

	// Flush drains every queued action, executing them strictly in order,
	// and returns one Output per drained action, positionally aligned.
	Flush() ([]Output, error)
}
