package rtmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torresjeff/rtmpflv/amf/amf0"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/flv"
)

func TestGeneratePingMessage(t *testing.T) {
	tests := []struct {
		name     string
		pingType PingType
		srcDst   uint32
		third    uint32
		payload  []byte
	}{
		{"clearStream", PingClearStream, 1, 0, []byte{0, 0, 0, 0, 0, 1}},
		{"resetStream", PingResetStream, 1, 0, []byte{0, 4, 0, 0, 0, 1}},
		{"clearPlayingBuffer", PingClearPlayingBuffer, 1, 0, []byte{0, 1, 0, 0, 0, 1}},
		{"bufferTime", PingBufferTimeClient, 1, 2000, []byte{0, 3, 0, 0, 0, 1, 0, 0, 0x07, 0xD0}},
		{"pong", PingPongFromClient, 0, 0, []byte{0, 7, 0, 0, 0, 0, 0x0D, 0x0E, 0x0A, 0x0D}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := generatePingMessage(tt.pingType, tt.srcDst, tt.third)
			assert.Equal(t, uint8(config.ChannelControl), msg.Channel)
			assert.Equal(t, UserControlMessage, msg.Type)
			assert.Equal(t, uint32(config.DstConnectObject), msg.Dst)
			assert.Equal(t, tt.payload, msg.Payload)
		})
	}
}

func TestGenerateBytesReadMessage(t *testing.T) {
	msg := generateBytesReadMessage(0x01020304)
	assert.Equal(t, uint8(config.ChannelControl), msg.Channel)
	assert.Equal(t, Acknowledgement, msg.Type)
	assert.Equal(t, []byte{1, 2, 3, 4}, msg.Payload)
}

func TestGenerateConnectMessage(t *testing.T) {
	msg, err := generateConnectMessage("live", "example.com:1935/live")
	require.NoError(t, err)
	assert.Equal(t, uint8(config.ChannelInvoke), msg.Channel)
	assert.Equal(t, CommandMessageAMF0, msg.Type)
	assert.Equal(t, uint32(config.DstConnectObject), msg.Dst)

	values, err := amf0.DecodeAll(msg.Payload)
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, CommandConnect, values[0])
	assert.Equal(t, 1.0, values[1])

	obj, ok := values[2].(amf0.Object)
	require.True(t, ok)
	var keys []string
	for _, p := range obj {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{
		"app", "flashVer", "swfUrl", "tcUrl", "fpad", "audioCodecs",
		"videoCodecs", "videoFunction", "pageUrl", "objectEncoding",
	}, keys)

	app, _ := obj.GetString("app")
	assert.Equal(t, "live", app)
	tcURL, _ := obj.GetString("tcUrl")
	assert.Equal(t, "rtmp://example.com:1935/live", tcURL)
	fpad, _ := obj.Get("fpad")
	assert.Equal(t, false, fpad)
	audioCodecs, _ := obj.GetNumber("audioCodecs")
	assert.Equal(t, float64(config.AudioCodecs), audioCodecs)
}

func TestGenerateStreamCommands(t *testing.T) {
	t.Run("createStream", func(t *testing.T) {
		msg, err := generateCreateStreamMessage()
		require.NoError(t, err)
		values, err := amf0.DecodeAll(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{CommandCreateStream, 3.0, nil}, values)
	})

	t.Run("play", func(t *testing.T) {
		msg, err := generatePlayMessage("movie")
		require.NoError(t, err)
		assert.Equal(t, uint32(config.DstDefault), msg.Dst)
		values, err := amf0.DecodeAll(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{CommandPlay, 0.0, nil, "movie"}, values)
	})

	t.Run("publish", func(t *testing.T) {
		msg, err := generatePublishMessage("movie")
		require.NoError(t, err)
		assert.Equal(t, uint32(config.DstDefault), msg.Dst)
		values, err := amf0.DecodeAll(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{CommandPublish, 0.0, nil, "movie", "live"}, values)
	})

	t.Run("seek", func(t *testing.T) {
		msg, err := generateSeekMessage(1500)
		require.NoError(t, err)
		values, err := amf0.DecodeAll(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{CommandSeek, 0.0, nil, 1500.0}, values)
	})
}

func TestGeneratePlayStatusMessages(t *testing.T) {
	tests := []struct {
		name        string
		generate    func(string, float64) (*Message, error)
		code        string
		description string
	}{
		{"reset", generatePlayResetMessage, CodePlayReset, "Playing and resetting movie."},
		{"start", generatePlayStartMessage, CodePlayStart, "Started playing movie."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := tt.generate("movie", 1)
			require.NoError(t, err)
			assert.Equal(t, uint8(config.ChannelNotify), msg.Channel)
			assert.Equal(t, CommandMessageAMF0, msg.Type)
			assert.Equal(t, uint32(config.DstDefault), msg.Dst)

			values, err := amf0.DecodeAll(msg.Payload)
			require.NoError(t, err)
			require.Len(t, values, 4)
			assert.Equal(t, OnStatus, values[0])
			assert.Equal(t, 1.0, values[1])
			assert.Nil(t, values[2])
			assert.Equal(t, amf0.Object{
				{Key: "level", Value: LevelStatus},
				{Key: "code", Value: tt.code},
				{Key: "description", Value: tt.description},
				{Key: "details", Value: "movie"},
				{Key: "clientid", Value: 1.0},
			}, values[3])
		})
	}
}

func TestGeneratePublishStartMessage(t *testing.T) {
	msg, err := generatePublishStartMessage(1, "movie", 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(config.ChannelInvoke), msg.Channel)

	values, err := amf0.DecodeAll(msg.Payload)
	require.NoError(t, err)
	require.Len(t, values, 4)
	assert.Equal(t, OnStatus, values[0])
	obj := values[3].(amf0.Object)
	code, _ := obj.GetString("code")
	assert.Equal(t, CodePublishStart, code)
	details, _ := obj.GetString("details")
	assert.Equal(t, "movie", details)
}

func TestGenerateTagMessage(t *testing.T) {
	tests := []struct {
		name    string
		tagType uint8
		channel uint8
		msgType MessageType
	}{
		{"audio", flv.TagAudio, config.ChannelAudio, AudioMessage},
		{"video", flv.TagVideo, config.ChannelVideo, VideoMessage},
		{"script", flv.TagScript, config.ChannelNotify, DataMessageAMF0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := generateTagMessage(flv.Tag{Type: tt.tagType, Timestamp: 42, Data: []byte{1, 2}})
			assert.Equal(t, tt.channel, msg.Channel)
			assert.Equal(t, tt.msgType, msg.Type)
			assert.Equal(t, uint32(42), msg.Timestamp)
			assert.Equal(t, uint32(config.DstDefault), msg.Dst)
			assert.Equal(t, []byte{1, 2}, msg.Payload)
		})
	}
}
