package flv

import (
	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/amf/amf0"
	"github.com/torresjeff/rtmpflv/audio"
	"github.com/torresjeff/rtmpflv/video"
)

var ErrEmptyPayload = errors.New("flv: empty media payload")

// Metadata accumulates the stream parameters sniffed from the first audio and
// video tags. It is used to synthesize an onMetaData tag for streams whose
// server never sends one.
type Metadata struct {
	HasAudio bool
	HasVideo bool

	Stereo          bool
	AudioSampleSize uint8
	AudioSampleRate uint32
	AudioCodecID    audio.Format

	VideoCodecID   video.Codec
	VideoFrameType video.FrameType
}

// SniffAudio records the parameters found in the first byte of an audio tag
// body. It returns an error describing an unknown codec, but the other fields
// are recorded regardless.
func (m *Metadata) SniffAudio(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	h := audio.ParseHeader(payload[0])
	m.HasAudio = true
	m.Stereo = h.Channels == audio.Stereo
	m.AudioSampleSize = 8
	if h.SampleSize == audio.Size16Bit {
		m.AudioSampleSize = 16
	}
	m.AudioSampleRate = h.SampleRate.Hz()
	if !h.Format.Known() {
		return errors.Errorf("flv: unknown audio codec id %d", h.Format)
	}
	m.AudioCodecID = h.Format
	return nil
}

// SniffVideo records the codec and frame type found in the first byte of a
// video tag body.
func (m *Metadata) SniffVideo(payload []byte) error {
	if len(payload) == 0 {
		return ErrEmptyPayload
	}
	h := video.ParseHeader(payload[0])
	m.HasVideo = true
	if !h.Codec.Known() {
		return errors.Errorf("flv: unknown video codec id %d", h.Codec)
	}
	m.VideoCodecID = h.Codec
	if !h.FrameType.Known() {
		return errors.Errorf("flv: unknown video frame type %d", h.FrameType)
	}
	m.VideoFrameType = h.FrameType
	return nil
}

// OnMetaData returns the script data body of an onMetaData tag describing m,
// with duration 0 since the stream is live.
func (m Metadata) OnMetaData() ([]byte, error) {
	return amf0.EncodeAll("onMetaData", amf0.ECMAArray{
		{Key: "duration", Value: 0.0},
		{Key: "stereo", Value: m.Stereo},
		{Key: "audiosamplesize", Value: float64(m.AudioSampleSize)},
		{Key: "audiosamplerate", Value: float64(m.AudioSampleRate)},
		{Key: "audiocodecid", Value: float64(m.AudioCodecID)},
		{Key: "videocodecid", Value: float64(m.VideoCodecID)},
	})
}
