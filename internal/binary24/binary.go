// Package binary24 reads and writes the 24-bit big-endian integers used by
// RTMP chunk headers and FLV tag headers.
package binary24

var BigEndian bigEndian

type bigEndian struct{}

func (bigEndian) Uint24(b []byte) uint32 {
	_ = b[2] // early bounds check
	return uint32(b[2]) | uint32(b[1])<<8 | uint32(b[0])<<16
}

// PutUint24 stores the low 24 bits of v. Higher bits are dropped, which is the
// wraparound RTMP expects for timestamps.
func (bigEndian) PutUint24(b []byte, v uint32) {
	_ = b[2] // early bounds check
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}
