package rpc

import "encoding/binary"

// HeaderSize is the wire size in bytes of a packed Header.
const HeaderSize = 8

const (
	counterBits  = 22
	methodIDBits = 8
	counterMask  = uint64(1)<<counterBits - 1
	methodIDMask = uint64(1)<<methodIDBits - 1

	counterShift  = 32
	methodIDShift = counterShift + counterBits // 54
	isReplyShift  = methodIDShift + methodIDBits // 62
	successShift  = isReplyShift + 1             // 63
)

// genericMethodID is the reserved ordinal that routes a frame through the
// generic/dynamic call path instead of a table-bound dispatcher. It sits
// outside the 0-254 ordinal range a bound table can ever hand out, so it can
// never collide with a real registration (see table.go's 255-method cap).
const genericMethodID = 0xFF

// Header is the 8-byte frame header: the total frame size (this header plus
// its payload), which
// outbound call this frame correlates to, which method it targets, and
// whether it is a reply (and whether that reply signals success).
//
// Wire layout (little-endian uint64): size:32 | counter:22 | methodId:8 |
// isReply:1 | success:1.
type Header struct {
	Size     uint32
	Counter  uint32 // low 22 bits significant
	MethodID uint8
	IsReply  bool
	Success  bool
}

// correlationKey identifies one outbound call uniquely enough to match its
// reply: the 22-bit counter combined with the 8-bit method ordinal.
func (h Header) correlationKey() uint32 {
	return (h.Counter&uint32(counterMask))<<methodIDBits | uint32(h.MethodID)
}

func correlationKeyOf(counter uint32, methodID uint8) uint32 {
	return (counter&uint32(counterMask))<<methodIDBits | uint32(methodID)
}

// pack encodes the header into a uint64 bitfield.
func (h Header) pack() uint64 {
	v := uint64(h.Size)
	v |= (uint64(h.Counter) & counterMask) << counterShift
	v |= (uint64(h.MethodID) & methodIDMask) << methodIDShift
	if h.IsReply {
		v |= 1 << isReplyShift
	}
	if h.Success {
		v |= 1 << successShift
	}
	return v
}

// unpackHeader decodes a uint64 bitfield back into a Header.
func unpackHeader(v uint64) Header {
	return Header{
		Size:     uint32(v & 0xFFFFFFFF),
		Counter:  uint32((v >> counterShift) & counterMask),
		MethodID: uint8((v >> methodIDShift) & methodIDMask),
		IsReply:  (v>>isReplyShift)&1 != 0,
		Success:  (v>>successShift)&1 != 0,
	}
}

// WriteTo serializes the header as HeaderSize little-endian bytes.
func (h Header) WriteTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf, h.pack())
}

// ReadHeader decodes a Header from the first HeaderSize bytes of buf.
func ReadHeader(buf []byte) Header {
	return unpackHeader(binary.LittleEndian.Uint64(buf))
}
