package video

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf
// The first byte of every video tag body holds the frame type in the high
// nibble and the codec id in the low nibble.

type FrameType uint8

const (
	KeyFrame             FrameType = 1
	InterFrame           FrameType = 2
	DisposableInterFrame FrameType = 3
	GeneratedKeyFrame    FrameType = 4
	// Video info/command frame
	CommandFrame FrameType = 5
)

type Codec uint8

const (
	SorensonH263    Codec = 2
	ScreenVideo     Codec = 3
	VP6             Codec = 4
	VP6AlphaChannel Codec = 5
	ScreenVideoV2   Codec = 6
	H264            Codec = 7
)

type AVCPacketType uint8

const (
	AVCSequenceHeader AVCPacketType = 0
	AVCNALU           AVCPacketType = 1
	AVCEndOfSequence  AVCPacketType = 2
)

// IsAVCSequenceHeader reports whether payload, a video tag body, carries the
// AVC decoder configuration record.
func IsAVCSequenceHeader(payload []byte) bool {
	return len(payload) > 1 && ParseHeader(payload[0]).Codec == H264 && AVCPacketType(payload[1]) == AVCSequenceHeader
}

const (
	codecMask     = 0x0F
	frameTypeMask = 0xF0
)

// Header is the decoded first byte of a video tag body.
type Header struct {
	FrameType FrameType
	Codec     Codec
}

func ParseHeader(b byte) Header {
	return Header{
		FrameType: FrameType((b & frameTypeMask) >> 4),
		Codec:     Codec(b & codecMask),
	}
}

func (c Codec) Known() bool {
	return c >= SorensonH263 && c <= H264
}

func (f FrameType) Known() bool {
	return f >= KeyFrame && f <= CommandFrame
}

// IsKeyFrame reports whether the frame can be decoded on its own.
func (f FrameType) IsKeyFrame() bool {
	return f == KeyFrame || f == GeneratedKeyFrame
}
