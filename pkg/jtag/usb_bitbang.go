package jtag

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// Default VID:PID for the vendor bit-bang adapter this package talks to. The
// protocol is a minimal two-request vendor control interface, not any
// particular chip family, so these are placeholders a real board overrides.
const (
	USBVendorID  = 0xF055
	USBProductID = 0x0000
)

const (
	usbReqInit     = 1 // bRequestType 0x40 (host-to-device, vendor): adapter-initialize
	usbReqReadTDO  = 3 // bRequestType 0xC0 (device-to-host, vendor): shift one bit, read TDO
	usbCtrlTimeout = 2 * time.Second
)

// USBBitbangAdapter implements the Bitbang interface (L1) over a vendor USB
// control interface: one control transfer per TCK cycle, TMS/TDI encoded in
// wValue and TDO decoded from the single byte read back. It's the simplest
// possible hardware backend — one round trip per bit — and exists mainly for
// adapters too small or cheap to carry an MPSSE part; jtag.chunkFromBitbang
// wraps it to produce the ChunkShifter a NativeAdapter needs.
//
// Grounded on the teacher's USBTransport (pkg/jtag/cmsisdap_transport.go):
// same gousb.Context/Device lifecycle and SetAutoDetach handling, but this
// adapter drives vendor control transfers instead of CMSIS-DAP's bulk
// endpoints.
type USBBitbangAdapter struct {
	ctx *gousb.Context
	dev *gousb.Device

	speedHz uint64
}

// OpenUSBBitbang opens the first device matching vid:pid and sends the
// adapter-initialize control request.
func OpenUSBBitbang(vid, pid uint16) (*USBBitbangAdapter, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("jtag: usb bitbang: open: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("jtag: usb bitbang: device not found (VID:0x%04X PID:0x%04X)", vid, pid)
	}
	_ = dev.SetAutoDetach(true)

	a := &USBBitbangAdapter{ctx: ctx, dev: dev}
	if err := a.init(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return a, nil
}

func (a *USBBitbangAdapter) init() error {
	_, err := a.dev.Control(0x40, usbReqInit, 0, 0, nil)
	if err != nil {
		return fmt.Errorf("jtag: usb bitbang: init: %w", err)
	}
	return nil
}

// Close releases the USB device and context.
func (a *USBBitbangAdapter) Close() error {
	if a.dev != nil {
		a.dev.Close()
		a.dev = nil
	}
	if a.ctx != nil {
		a.ctx.Close()
		a.ctx = nil
	}
	return nil
}

// ShiftOneBit implements Bitbang: one control transfer drives TMS/TDI for a
// single TCK cycle and reads TDO back, sampled end-of-cycle per spec.
func (a *USBBitbangAdapter) ShiftOneBit(tms, tdi bool) (bool, error) {
	var wValue uint16
	if tms {
		wValue |= 1 << 1
	}
	if tdi {
		wValue |= 1 << 0
	}

	buf := make([]byte, 1)
	_, err := a.dev.Control(0xC0, usbReqReadTDO, wValue, 0, buf)
	if err != nil {
		return false, fmt.Errorf("jtag: usb bitbang: shift: %w", err)
	}
	return buf[0]&0x01 != 0, nil
}

// SetClkSpeed is a no-op for this adapter: the vendor device has no
// programmable clock, it runs one TCK cycle per control transfer at
// whatever rate the USB stack and device firmware allow. The requested rate
// is stored in speedHz and returned unchanged.
func (a *USBBitbangAdapter) SetClkSpeed(hz uint64) (uint64, error) {
	a.speedHz = hz
	return hz, nil
}
