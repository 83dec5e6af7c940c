package config

import "time"

const DefaultPort = "1935"

const BuffioSize = 1024 * 64

// Chunk stream defaults. The chunk size applies to both directions until a
// set chunk size message is received.
const DefaultChunkSize uint32 = 128
const MaxChannels = 64

// Channels (chunk stream ids) every message type is sent on.
const (
	ChannelControl uint8 = 2
	ChannelInvoke  uint8 = 3
	ChannelNotify  uint8 = 4
	ChannelVideo   uint8 = 5
	ChannelAudio   uint8 = 6
)

// Destination tags carried in 12-byte chunk headers.
const (
	DstConnectObject  uint32 = 0
	DstConnectObject2 uint32 = 1
	DstDefault        uint32 = 0x01000000
)

const (
	DefaultStreamClientID float64 = 1
	DefaultStreamServerID float64 = 1
)

// Values sent by the active side in connect.
const (
	FlashVer      = "LNX 9,0,48,0"
	SwfURL        = "file:///mac.flv"
	PageURL       = "file:///mac.html"
	AudioCodecs   = 615.0
	VideoCodecs   = 124.0
	VideoFunction = 1.0
	// AMF0
	ObjectEncoding = 0.0
)

// ClientBufferTime is the buffer length, in milliseconds, announced after createStream and play.
const ClientBufferTime uint32 = 2000

// ServerBandwidth is the window announced to a peer that connects to us.
const ServerBandwidth uint32 = 0x200

// Pipeline limits.
const (
	MaxEmptyBlocks   = 200
	DefaultBlockSize = 1024
	DefaultQueueSize = 4096
	// MetadataMinBlocks is how many media blocks the first Read waits for
	// before it describes the stream.
	MetadataMinBlocks    = 2
	MetadataPollInterval = 10 * time.Millisecond
)

const (
	DefaultCaching          = 300 * time.Millisecond
	DefaultHandshakeTimeout = 2 * time.Second
)
