package jtag

// chunkFromBitbang is the generic L2-over-L1 adapter: it turns a Bitbang
// driver into a ChunkShifter by clocking one bit at a time, reconciling the
// bit-bang "capture at end of cycle" timing model with the byte-oriented
// (MPSSE) "capture at start of cycle" model expected by L3 and above.
//
// The reconciliation (spec §4.3): prepend the stored lastTDO as the first
// captured bit, perform len(tdi) new shifts, record every TDO except the
// last into the capture, and stash the last-captured TDO back into
// lastTDO for the next call. The returned capture then represents the TDO
// visible before each of the clock edges just issued, matching MPSSE
// semantics exactly.
type chunkFromBitbang struct {
	bb      Bitbang
	lastTDO bool
}

// NewChunkShifterFromBitbang wraps any Bitbang driver to satisfy
// ChunkShifter. lastTDO starts false, matching an adapter that has never
// been clocked.
func NewChunkShifterFromBitbang(bb Bitbang) ChunkShifter {
	return &chunkFromBitbang{bb: bb}
}

func (c *chunkFromBitbang) SetClkSpeed(hz uint64) (uint64, error) {
	return c.bb.SetClkSpeed(hz)
}

func (c *chunkFromBitbang) ShiftTMSChunk(tms Bits) error {
	for i := 0; i < tms.Len(); i++ {
		tdo, err := c.bb.ShiftOneBit(tms.Bit(i), false)
		if err != nil {
			return err
		}
		c.lastTDO = tdo
	}
	return nil
}

func (c *chunkFromBitbang) ShiftTDIChunk(tdi Bits, tmsExit bool) error {
	n := tdi.Len()
	for i := 0; i < n; i++ {
		tms := tmsExit && i == n-1
		tdo, err := c.bb.ShiftOneBit(tms, tdi.Bit(i))
		if err != nil {
			return err
		}
		c.lastTDO = tdo
	}
	return nil
}

func (c *chunkFromBitbang) ShiftTDITDOChunk(tdi Bits, tmsExit bool) (Bits, error) {
	n := tdi.Len()
	if n == 0 {
		return NewBits(0), nil
	}
	captured := NewBits(n)
	captured.SetBit(0, c.lastTDO)

	for i := 0; i < n; i++ {
		tms := tmsExit && i == n-1
		tdo, err := c.bb.ShiftOneBit(tms, tdi.Bit(i))
		if err != nil {
			return Bits{}, err
		}
		if i < n-1 {
			captured.SetBit(i+1, tdo)
		} else {
			c.lastTDO = tdo
		}
	}
	return captured, nil
}
