package audio

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf
// The first byte of every audio tag body packs the four fields below:
//
//	bits 7-4 format, bits 3-2 sample rate, bit 1 sample size, bit 0 channels

type Format uint8

const (
	LinearPCMPlatformEndian Format = 0
	ADPCM                   Format = 1
	MP3                     Format = 2
	LinearPCMLittleEndian   Format = 3
	Nellymoser16KHzMono     Format = 4
	Nellymoser8KHzMono      Format = 5
	Nellymoser              Format = 6
	G711AlawLogPCM          Format = 7
	G711MulawLogPCM         Format = 8
	AAC                     Format = 10
	Speex                   Format = 11
	MP38KHz                 Format = 14
	DeviceSpecificSound     Format = 15
)

// AACPacketType is the second byte of an AAC audio tag body.
type AACPacketType uint8

const (
	AACSequenceHeader AACPacketType = 0
	AACRaw            AACPacketType = 1
)

// IsAACSequenceHeader reports whether payload, an audio tag body, carries the
// AAC decoder configuration.
func IsAACSequenceHeader(payload []byte) bool {
	return len(payload) > 1 && ParseHeader(payload[0]).Format == AAC && AACPacketType(payload[1]) == AACSequenceHeader
}

type SampleRate uint8

const (
	Rate5p5KHz SampleRate = 0
	Rate11KHz  SampleRate = 1
	Rate22KHz  SampleRate = 2
	Rate44KHz  SampleRate = 3
)

type SampleSize uint8

const (
	Size8Bit  SampleSize = 0
	Size16Bit SampleSize = 1
)

type Channel uint8

const (
	Mono   Channel = 0
	Stereo Channel = 1
)

const (
	channelMask    = 0x01
	sampleSizeMask = 0x02
	sampleRateMask = 0x0C
	formatMask     = 0xF0
)

// Header is the decoded first byte of an audio tag body.
type Header struct {
	Format     Format
	SampleRate SampleRate
	SampleSize SampleSize
	Channels   Channel
}

func ParseHeader(b byte) Header {
	return Header{
		Format:     Format((b & formatMask) >> 4),
		SampleRate: SampleRate((b & sampleRateMask) >> 2),
		SampleSize: SampleSize((b & sampleSizeMask) >> 1),
		Channels:   Channel(b & channelMask),
	}
}

// Hz returns the sampling frequency the rate index stands for.
func (r SampleRate) Hz() uint32 {
	switch r {
	case Rate5p5KHz:
		return 5512
	case Rate11KHz:
		return 11025
	case Rate22KHz:
		return 22050
	default:
		return 44100
	}
}

// Known reports whether f is one of the formats defined by the FLV format.
func (f Format) Known() bool {
	switch f {
	case LinearPCMPlatformEndian, ADPCM, MP3, LinearPCMLittleEndian, Nellymoser16KHzMono,
		Nellymoser8KHzMono, Nellymoser, G711AlawLogPCM, G711MulawLogPCM, AAC, Speex, MP38KHz,
		DeviceSpecificSound:
		return true
	}
	return false
}
