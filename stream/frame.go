package stream

import (
	"encoding/binary"
	"fmt"

	"radarsweep/engine"
)

// HeaderSize is the length of the binary frame header: sequence number,
// width and height, little endian
const HeaderSize = 16

// EncodeFrame appends the wire form of f to dst: the header followed by
// the BGRA8 pixels
func EncodeFrame(dst []byte, f engine.Frame) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, f.Seq)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(f.Width))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(f.Height))
	return append(dst, f.Pixels...)
}

// DecodeFrame parses a binary frame message. Pixels aliases msg.
func DecodeFrame(msg []byte) (engine.Frame, error) {
	if len(msg) < HeaderSize {
		return engine.Frame{}, fmt.Errorf("frame message too short: %d bytes", len(msg))
	}
	f := engine.Frame{
		Seq:    binary.LittleEndian.Uint64(msg[0:8]),
		Width:  int(binary.LittleEndian.Uint32(msg[8:12])),
		Height: int(binary.LittleEndian.Uint32(msg[12:16])),
		Pixels: msg[HeaderSize:],
	}
	if want := f.Width * f.Height * 4; len(f.Pixels) != want {
		return engine.Frame{}, fmt.Errorf("frame %d: %d pixel bytes, want %d", f.Seq, len(f.Pixels), want)
	}
	return f, nil
}
