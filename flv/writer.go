package flv

import "encoding/binary"

// TagWriter wraps message payloads into FLV tags. Every tag is emitted with the
// previous-tag-size field of the tag before it in front, so the stream produced
// by consecutive calls is a valid FLV body once a file Header is prepended.
type TagWriter struct {
	previousTagSize uint32
}

// Wrap returns PreviousTagSize(4) + TagHeader(11) + payload for one tag and
// advances the previous-tag-size chain. The first tag of a stream carries a
// previous tag size of 0.
func (w *TagWriter) Wrap(tagType uint8, timestamp uint32, payload []byte) []byte {
	return w.Append(nil, tagType, timestamp, payload)
}

// Append is Wrap writing into dst, growing it as needed.
func (w *TagWriter) Append(dst []byte, tagType uint8, timestamp uint32, payload []byte) []byte {
	start := len(dst)
	size := PreviousTagSizeSize + TagHeaderSize + len(payload)
	if cap(dst)-start < size {
		grown := make([]byte, start, start+size)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:start+size]

	out := dst[start:]
	binary.BigEndian.PutUint32(out, w.previousTagSize)
	putTagHeader(out[PreviousTagSizeSize:], TagHeader{
		Type:      tagType,
		DataSize:  uint32(len(payload)),
		Timestamp: timestamp,
	})
	copy(out[PreviousTagSizeSize+TagHeaderSize:], payload)

	w.previousTagSize = uint32(len(payload)) + TagHeaderSize
	return dst
}

// PreviousTagSize returns the value the next wrapped tag will carry.
func (w *TagWriter) PreviousTagSize() uint32 {
	return w.previousTagSize
}
