// Package mpsse packs JTAG bit streams into FTDI MPSSE (Multi-Protocol
// Synchronous Serial Engine) command frames and unpacks the TDO bytes the
// chip returns for them.
//
// MPSSE basics:
// http://www.ftdichip.com/Support/Documents/AppNotes/AN_135_MPSSE_Basics.pdf
package mpsse

import "github.com/jtagbridge/jtagbridge/pkg/jtag"

// Command opcodes. TDI/TMS are clocked out on the falling edge and TDO is
// sampled on the rising edge, LSB first throughout — the usual pairing for
// boundary-scan use, matching the way most MPSSE-based JTAG probes drive
// the bus.
const (
	cmdTDIOutByte    byte = 0x19 // clock out whole bytes of TDI, no capture
	cmdTDIOutBit     byte = 0x1B // clock out 1-7 trailing bits of TDI, no capture
	cmdTDITDOOutByte byte = 0x39 // clock out whole bytes of TDI, capture TDO
	cmdTDITDOOutBit  byte = 0x3B // clock out 1-7 trailing bits of TDI, capture TDO
	cmdTMSOutBit     byte = 0x4B // clock out 1-7 bits of TMS, TDI held static
	cmdTMSTDOBit     byte = 0x6B // clock out 1-7 bits of TMS, capture TDO
	cmdSendImmediate byte = 0x87 // flush the chip's response buffer now
)

// maxTMSBitsPerCommand is the hardware limit: a TMS command frame carries
// at most 7 bits, since the TMS bits share the payload byte with the static
// TDI bit (bit 7) held across the whole run.
const maxTMSBitsPerCommand = 7

// EncodeTMSChunk packs tms (TDI held low throughout, no TDO capture) into
// one or more 0x4B command frames, each carrying at most 7 bits.
func EncodeTMSChunk(tms jtag.Bits) []byte {
	return encodeTMSFrames(tms, cmdTMSOutBit)
}

// EncodeTMSTDOChunk is the capturing counterpart of EncodeTMSChunk, using
// 0x6B frames. The number of response bytes to expect is
// TMSResponseBytes(tms.Len()).
func EncodeTMSTDOChunk(tms jtag.Bits) []byte {
	return encodeTMSFrames(tms, cmdTMSTDOBit)
}

func encodeTMSFrames(tms jtag.Bits, op byte) []byte {
	var out []byte
	n := tms.Len()
	for off := 0; off < n; off += maxTMSBitsPerCommand {
		count := n - off
		if count > maxTMSBitsPerCommand {
			count = maxTMSBitsPerCommand
		}
		var payload byte
		for i := 0; i < count; i++ {
			if tms.Bit(off + i) {
				payload |= 1 << uint(i)
			}
		}
		out = append(out, op, byte(count-1), payload)
	}
	return out
}

// TMSResponseBytes reports how many bytes of TDO a chip returns for an
// EncodeTMSTDOChunk(tms) frame set, one byte per command issued.
func TMSResponseBytes(nBits int) int {
	return numFrames(nBits, maxTMSBitsPerCommand)
}

// EncodeTDIChunk packs tdi into 0x19/0x1B frames (byte-mode frame(s) for
// the leading whole bytes, one bit-mode frame for a trailing partial byte),
// with no TDO capture.
func EncodeTDIChunk(tdi jtag.Bits) []byte {
	return encodeDataFrames(tdi, cmdTDIOutByte, cmdTDIOutBit)
}

// EncodeTDITDOChunk is the capturing counterpart of EncodeTDIChunk, using
// 0x39/0x3B frames. The chip returns exactly ceil(tdi.Len()/8) bytes of
// response with the trailing partial byte right-aligned (LSB first), which
// DecodeTDOChunk reassembles back into a jtag.Bits of the original length.
func EncodeTDITDOChunk(tdi jtag.Bits) []byte {
	return encodeDataFrames(tdi, cmdTDITDOOutByte, cmdTDITDOOutBit)
}

// maxDataBytesPerFrame is the hardware limit on a single byte-mode data
// frame: the length-1 field is 16 bits wide, so one frame carries at most
// 65536 bytes. Longer shifts are split across multiple frames.
const maxDataBytesPerFrame = 65536

func encodeDataFrames(tdi jtag.Bits, byteOp, bitOp byte) []byte {
	n := tdi.Len()
	fullBytes := n / 8
	trailingBits := n % 8

	var out []byte
	for off := 0; off < fullBytes; off += maxDataBytesPerFrame {
		count := fullBytes - off
		if count > maxDataBytesPerFrame {
			count = maxDataBytesPerFrame
		}
		length := count - 1 // length-1 encoding, LE16
		out = append(out, byteOp, byte(length), byte(length>>8))
		for i := 0; i < count; i++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				if tdi.Bit((off+i)*8 + bit) {
					b |= 1 << uint(bit)
				}
			}
			out = append(out, b)
		}
	}
	if trailingBits > 0 {
		var b byte
		for bit := 0; bit < trailingBits; bit++ {
			if tdi.Bit(fullBytes*8 + bit) {
				b |= 1 << uint(bit)
			}
		}
		out = append(out, bitOp, byte(trailingBits-1), b)
	}
	return out
}

// DataResponseBytes reports how many TDO bytes a chip returns for an
// EncodeTDITDOChunk(tdi) frame set of the given bit length: one byte per
// full 8-bit frame, plus one more if there's a trailing partial byte.
func DataResponseBytes(nBits int) int {
	return (nBits + 7) / 8
}

// DecodeTDOChunk reassembles the raw response bytes the chip returned for
// an EncodeTDITDOChunk(·) of length nBits back into a jtag.Bits stream of
// that same length, LSB first.
func DecodeTDOChunk(resp []byte, nBits int) jtag.Bits {
	return jtag.BitsFromBytes(resp, nBits)
}

// SendImmediate is the single-byte command that forces the chip to flush
// any buffered TDO response instead of waiting for its output buffer to
// fill, needed after the final command of a batch that expects a reply.
func SendImmediate() []byte { return []byte{cmdSendImmediate} }

func numFrames(total, perFrame int) int {
	if total <= 0 {
		return 0
	}
	return (total + perFrame - 1) / perFrame
}
