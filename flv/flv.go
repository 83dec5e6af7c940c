// Package flv converts between RTMP media message payloads and the FLV byte
// stream: file header, tag framing with the previous-tag-size chain, and the
// onMetaData script tag.
package flv

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/internal/binary24"
)

const (
	HeaderSize          = 9
	TagHeaderSize       = 11
	PreviousTagSizeSize = 4

	Version = 1
)

// Tag types. They share their values with the RTMP message types carrying the
// same payloads.
const (
	TagAudio  uint8 = 0x08
	TagVideo  uint8 = 0x09
	TagScript uint8 = 0x12
)

// Header flags
const (
	FlagVideo uint8 = 0x01
	FlagAudio uint8 = 0x04
)

var signature = []byte{'F', 'L', 'V'}

var ErrInvalidSignature = errors.New("flv: invalid file signature")
var ErrShortTagHeader = errors.New("flv: tag header shorter than 11 bytes")

// Header returns the 9-byte FLV file header. The flags reflect which of audio
// and video have been seen; a stream where neither is known yet is announced
// as video only.
func Header(hasAudio, hasVideo bool) []byte {
	h := make([]byte, HeaderSize)
	copy(h, signature)
	h[3] = Version
	switch {
	case hasAudio && hasVideo:
		h[4] = FlagAudio | FlagVideo
	case hasAudio:
		h[4] = FlagAudio
	default:
		h[4] = FlagVideo
	}
	// DataOffset: size of this header
	binary.BigEndian.PutUint32(h[5:], HeaderSize)
	return h
}

// TagHeader is the decoded 11-byte header preceding every tag body.
type TagHeader struct {
	Type      uint8
	DataSize  uint32
	Timestamp uint32
	StreamID  uint32
}

// ParseTagHeader decodes the first 11 bytes of b.
//
//	 0      1-3        4-6          7            8-10
//	+----+---------+-----------+-----------+-----------+
//	|type|data size| timestamp |ts extended| stream id |
//	+----+---------+-----------+-----------+-----------+
func ParseTagHeader(b []byte) (TagHeader, error) {
	if len(b) < TagHeaderSize {
		return TagHeader{}, ErrShortTagHeader
	}
	return TagHeader{
		Type:      b[0],
		DataSize:  binary24.BigEndian.Uint24(b[1:4]),
		Timestamp: binary24.BigEndian.Uint24(b[4:7]) | uint32(b[7])<<24,
		StreamID:  binary24.BigEndian.Uint24(b[8:11]),
	}, nil
}

func putTagHeader(b []byte, h TagHeader) {
	b[0] = h.Type
	binary24.BigEndian.PutUint24(b[1:4], h.DataSize)
	binary24.BigEndian.PutUint24(b[4:7], h.Timestamp)
	b[7] = byte(h.Timestamp >> 24)
	binary24.BigEndian.PutUint24(b[8:11], h.StreamID)
}

// ParseHeader validates a 9-byte file header and returns its flags and data
// offset.
func ParseHeader(b []byte) (flags uint8, dataOffset uint32, err error) {
	if len(b) < HeaderSize || b[0] != 'F' || b[1] != 'L' || b[2] != 'V' {
		return 0, 0, ErrInvalidSignature
	}
	dataOffset = binary.BigEndian.Uint32(b[5:9])
	if dataOffset < HeaderSize {
		return 0, 0, errors.Errorf("flv: data offset %d smaller than header", dataOffset)
	}
	return b[4], dataOffset, nil
}
