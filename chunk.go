package rtmp

// ChunkType is the 2-bit header class in the top bits of a chunk's first
// byte. Each class drops fields that are unchanged from the previous message
// on the same channel.
type ChunkType uint8

const (
	// ChunkType0 is the full 12-byte header: timestamp, length, type and destination.
	ChunkType0 ChunkType = iota
	// ChunkType1 is the 8-byte header: timestamp delta, length and type.
	ChunkType1
	// ChunkType2 is the 4-byte header: timestamp delta only.
	ChunkType2
	// ChunkType3 is the 1-byte header: channel only. Also used between the
	// chunks of one message.
	ChunkType3
)

const channelMask = 0x3F

var headerSizes = [4]int{12, 8, 4, 1}

// HeaderSize returns the size in bytes of a header of this class, including
// the leading byte.
func (t ChunkType) HeaderSize() int {
	return headerSizes[t&3]
}

func basicHeader(t ChunkType, channel uint8) byte {
	return byte(t)<<6 | channel&channelMask
}

func parseBasicHeader(b byte) (ChunkType, uint8) {
	return ChunkType(b >> 6), b & channelMask
}

// channelState is the header compression state of one channel in one
// direction.
type channelState struct {
	timestamp      uint32
	timestampDelta uint32
	length         uint32
	messageType    MessageType
	dst            uint32
	// used is false until the first message on the channel. Send side only.
	used bool
	// body accumulates a message that spans several chunks. Receive side only,
	// nil when no message is in progress.
	body []byte
}

// maxTimestampDelta is the largest delta a 24-bit header field can carry.
const maxTimestampDelta = 0xFFFFFF

// next selects the header class for msg and records msg as the channel's
// previous message. The destination tag decides a full header, and so does a
// timestamp that cannot be sent as a delta (it went back, or moved further than
// 24 bits). Type or length changes need 8 bytes; a timestamp change needs 4. A
// 1-byte header lets the receiver add its cached delta, so it is only chosen
// when that delta is 0.
func (s *channelState) next(msg *Message) ChunkType {
	length := uint32(len(msg.Payload))
	switch {
	case !s.used || msg.Dst != s.dst || !s.deltaFits(msg.Timestamp):
		s.used = true
		s.timestamp = msg.Timestamp
		s.timestampDelta = 0
		s.length = length
		s.messageType = msg.Type
		s.dst = msg.Dst
		return ChunkType0
	case msg.Type != s.messageType || length != s.length:
		s.timestampDelta = msg.Timestamp - s.timestamp
		s.timestamp = msg.Timestamp
		s.length = length
		s.messageType = msg.Type
		return ChunkType1
	case msg.Timestamp != s.timestamp || s.timestampDelta != 0:
		s.timestampDelta = msg.Timestamp - s.timestamp
		s.timestamp = msg.Timestamp
		return ChunkType2
	default:
		return ChunkType3
	}
}

func (s *channelState) deltaFits(timestamp uint32) bool {
	return timestamp >= s.timestamp && timestamp-s.timestamp <= maxTimestampDelta
}

// interchunkHeaders is the number of 1-byte continuation headers needed to
// split a body of length bytes into chunks of chunkSize.
func interchunkHeaders(length, chunkSize int) int {
	if length == 0 {
		return 0
	}
	n := length / chunkSize
	if length%chunkSize == 0 {
		n--
	}
	return n
}
