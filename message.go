package rtmp

import "fmt"

type MessageType uint8

const (
	SetChunkSize MessageType = 1 + iota
	AbortMessage
	// Acknowledgement reports the number of bytes read so far ("bytes read").
	Acknowledgement
	// UserControlMessage carries pings.
	UserControlMessage
	// WindowAcknowledgementSize is the server bandwidth message.
	WindowAcknowledgementSize
	// SetPeerBandwidth is the client bandwidth message.
	SetPeerBandwidth

	AudioMessage MessageType = 8
	VideoMessage MessageType = 9

	DataMessageAMF3         MessageType = 15
	SharedObjectMessageAMF3 MessageType = 16
	CommandMessageAMF3      MessageType = 17

	// DataMessageAMF0 is a notify: onMetaData and friends.
	DataMessageAMF0         MessageType = 18
	SharedObjectMessageAMF0 MessageType = 19
	// CommandMessageAMF0 is an invoke: a remote procedure call or its result.
	CommandMessageAMF0 MessageType = 20

	AggregateMessage MessageType = 22
)

func (t MessageType) String() string {
	switch t {
	case SetChunkSize:
		return "chunk_size"
	case AbortMessage:
		return "abort"
	case Acknowledgement:
		return "bytes_read"
	case UserControlMessage:
		return "ping"
	case WindowAcknowledgementSize:
		return "server_bw"
	case SetPeerBandwidth:
		return "client_bw"
	case AudioMessage:
		return "audio"
	case VideoMessage:
		return "video"
	case DataMessageAMF3:
		return "flex_stream"
	case SharedObjectMessageAMF3:
		return "flex_shared_object"
	case CommandMessageAMF3:
		return "flex_message"
	case DataMessageAMF0:
		return "notify"
	case SharedObjectMessageAMF0:
		return "shared_object"
	case CommandMessageAMF0:
		return "invoke"
	case AggregateMessage:
		return "aggregate"
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Message is one complete RTMP message as it enters or leaves the chunk
// stream. Timestamp is absolute; TimestampDelta is the delta the chunk header
// carried (or will carry) relative to the previous message on the channel.
//
// Dst is the 32-bit context tag of the 12-byte header. It is read and written
// big-endian, so config.DstDefault (0x01000000) puts the bytes 01 00 00 00 on
// the wire.
type Message struct {
	Channel        uint8
	Timestamp      uint32
	TimestampDelta uint32
	Type           MessageType
	Dst            uint32
	Payload        []byte
}

// PingType is the event type leading a user control (ping) message.
type PingType uint16

const (
	PingClearStream        PingType = 0
	PingClearPlayingBuffer PingType = 1
	PingBufferTimeClient   PingType = 3
	PingResetStream        PingType = 4
	PingClientFromServer   PingType = 6
	PingPongFromClient     PingType = 7
)
