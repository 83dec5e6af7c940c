package rtmp

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/torresjeff/rtmpflv/amf/amf0"
	"github.com/torresjeff/rtmpflv/audio"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/video"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type managerFixture struct {
	manager *MessageManager
	session *Session
	queue   *MediaQueue
	sent    *bytes.Buffer
}

func newManagerFixture(t *testing.T, role Role) *managerFixture {
	t.Helper()
	sent := &bytes.Buffer{}
	session := NewSession(zaptest.NewLogger(t), role)
	queue := NewMediaQueue(16)
	chunkStream := newTestChunkStream(t, bytes.NewReader(nil), sent)
	return &managerFixture{
		manager: NewMessageManager(session, chunkStream, queue),
		session: session,
		queue:   queue,
		sent:    sent,
	}
}

// observe routes the manager's log output to an observer recording Warn and
// above.
func (f *managerFixture) observe() *observer.ObservedLogs {
	core, logs := observer.New(zapcore.WarnLevel)
	f.manager.logger = zap.New(core)
	return logs
}

func (f *managerFixture) replies(t *testing.T) []*Message {
	return readAllMessages(t, f.sent.Bytes())
}

func invoke(t *testing.T, channel uint8, values ...interface{}) *Message {
	t.Helper()
	msg, err := generateInvokeMessage(channel, config.DstConnectObject, values...)
	require.NoError(t, err)
	return msg
}

func statusObject(level, code string) amf0.Object {
	return amf0.Object{
		{Key: "level", Value: level},
		{Key: "code", Value: code},
		{Key: "description", Value: ""},
	}
}

func waitFor(t *testing.T, r *result) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := r.wait(ctx)
	require.NotEqual(t, context.DeadlineExceeded, err, "result was never resolved")
	return err
}

func decodeInvoke(t *testing.T, msg *Message) []interface{} {
	t.Helper()
	require.Equal(t, CommandMessageAMF0, msg.Type)
	values, err := amf0.DecodeAll(msg.Payload)
	require.NoError(t, err)
	return values
}

func TestPassiveConnect(t *testing.T) {
	f := newManagerFixture(t, RolePassive)
	connect, err := generateConnectMessage("live", "localhost:1935/live")
	require.NoError(t, err)
	require.NoError(t, f.manager.interpretMessage(connect))

	replies := f.replies(t)
	require.Len(t, replies, 4)

	assert.Equal(t, []interface{}{OnBWDone, 2.0, nil}, decodeInvoke(t, replies[0]))

	assert.Equal(t, WindowAcknowledgementSize, replies[1].Type)
	assert.Equal(t, []byte{0, 0, 0x02, 0}, replies[1].Payload)

	assert.Equal(t, UserControlMessage, replies[2].Type)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, replies[2].Payload)

	values := decodeInvoke(t, replies[3])
	require.Len(t, values, 4)
	assert.Equal(t, RespResult, values[0])
	assert.Equal(t, 1.0, values[1])
	code, _ := values[3].(amf0.Object).GetString("code")
	assert.Equal(t, CodeConnectSuccess, code)

	assert.NoError(t, waitFor(t, f.session.connect))
	assert.Equal(t, StateConnecting, f.session.State())
}

func TestPassiveCreateStream(t *testing.T) {
	f := newManagerFixture(t, RolePassive)
	require.NoError(t, f.manager.interpretMessage(invoke(t, config.ChannelInvoke, CommandCreateStream, 2.0, nil)))

	replies := f.replies(t)
	require.Len(t, replies, 3)
	assert.Equal(t, []interface{}{RespResult, 2.0, nil, 1.0}, decodeInvoke(t, replies[0]))
	assert.Equal(t, []byte{0, 4, 0, 0, 0, 1}, replies[1].Payload)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 1}, replies[2].Payload)

	client, server := f.session.streamIDs()
	assert.Equal(t, 2.0, client)
	assert.Equal(t, 1.0, server)
	assert.Equal(t, StateStreamCreated, f.session.State())
}

func TestPassivePlay(t *testing.T) {
	f := newManagerFixture(t, RolePassive)
	require.NoError(t, f.manager.interpretMessage(invoke(t, config.ChannelInvoke, CommandPlay, 0.0, nil, "movie")))

	replies := f.replies(t)
	require.Len(t, replies, 2)
	codes := make([]string, 0, 2)
	for _, reply := range replies {
		assert.Equal(t, uint8(config.ChannelNotify), reply.Channel)
		values := decodeInvoke(t, reply)
		require.Len(t, values, 4)
		assert.Equal(t, OnStatus, values[0])
		code, _ := values[3].(amf0.Object).GetString("code")
		codes = append(codes, code)
	}
	assert.Equal(t, []string{CodePlayReset, CodePlayStart}, codes)

	assert.Equal(t, "movie", f.session.Media())
	assert.NoError(t, waitFor(t, f.session.play))
	assert.Equal(t, StatePlaying, f.session.State())
}

func TestPassivePublish(t *testing.T) {
	f := newManagerFixture(t, RolePassive)
	require.NoError(t, f.manager.interpretMessage(invoke(t, config.ChannelInvoke, CommandPublish, 0.0, nil, "movie", PublishLive)))

	assert.Empty(t, f.replies(t))
	assert.Equal(t, "movie", f.session.PublishName())
	assert.NoError(t, waitFor(t, f.session.publish))
	assert.Equal(t, StatePublishing, f.session.State())

	require.NoError(t, f.manager.sendPublishStart())
	replies := f.replies(t)
	require.Len(t, replies, 1)
	code, _ := decodeInvoke(t, replies[0])[3].(amf0.Object).GetString("code")
	assert.Equal(t, CodePublishStart, code)
}

func TestStatusHandling(t *testing.T) {
	t.Run("connectSuccess", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, RespResult, 1.0, nil, statusObject(LevelStatus, CodeConnectSuccess))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.NoError(t, waitFor(t, f.session.connect))
		assert.False(t, f.session.Dead())
	})

	t.Run("invalidApp", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, RespError, 1.0, nil, statusObject(LevelError, CodeConnectInvalidApp))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Equal(t, ErrInvalidApp, waitFor(t, f.session.connect))
		assert.True(t, f.session.Dead())
		assert.True(t, f.queue.Woken())
		assert.Equal(t, StateErrored, f.session.State())
	})

	t.Run("otherConnectError", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, RespError, 1.0, nil, statusObject(LevelError, "NetConnection.Connect.Failed"))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Equal(t, ErrConnectRejected, errors.Cause(waitFor(t, f.session.connect)))
	})

	t.Run("streamCreated", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, RespResult, 3.0, nil, 5.0)
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Equal(t, StateStreamCreated, f.session.State())
		client, server := f.session.streamIDs()
		assert.Equal(t, 3.0, client)
		assert.Equal(t, 5.0, server)
	})

	t.Run("otherResultKeepsStreamIDs", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, RespResult, 2.0, nil, 5.0)
		require.NoError(t, f.manager.interpretMessage(msg))
		client, server := f.session.streamIDs()
		assert.Equal(t, 0.0, client)
		assert.Equal(t, 0.0, server)
	})

	t.Run("warningIsLogged", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		logs := f.observe()
		msg := invoke(t, config.ChannelNotify, OnStatus, 0.0, nil, statusObject(LevelWarning, "NetStream.Play.InsufficientBW"))
		require.NoError(t, f.manager.interpretMessage(msg))
		require.Equal(t, 1, logs.FilterMessage("peer reported a warning").Len())
		entry := logs.FilterMessage("peer reported a warning").All()[0]
		assert.Equal(t, "NetStream.Play.InsufficientBW", entry.ContextMap()["code"])
		assert.False(t, f.session.Dead())
	})

	t.Run("playStart", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelNotify, OnStatus, 0.0, nil, statusObject(LevelStatus, CodePlayStart))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.NoError(t, waitFor(t, f.session.play))
		assert.Equal(t, StatePlaying, f.session.State())
	})

	t.Run("playStop", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelNotify, OnStatus, 0.0, nil, statusObject(LevelStatus, CodePlayStop))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.True(t, f.session.Stopped())
		assert.True(t, f.queue.Woken())
		assert.Equal(t, StateStopped, f.session.State())
	})

	t.Run("publishBadName", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, OnStatus, 0.0, nil, statusObject(LevelError, CodePublishBadName))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Equal(t, ErrPublishRejected, errors.Cause(waitFor(t, f.session.publish)))
	})

	t.Run("publishStart", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		msg := invoke(t, config.ChannelInvoke, OnStatus, 0.0, nil, statusObject(LevelStatus, CodePublishStart))
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.NoError(t, waitFor(t, f.session.publish))
		assert.Equal(t, StatePublishing, f.session.State())
	})
}

func TestMediaDispatch(t *testing.T) {
	f := newManagerFixture(t, RoleActive)

	audioMsg := &Message{Channel: config.ChannelAudio, Type: AudioMessage, Timestamp: 10, Payload: []byte{0xAF, 0x01}}
	videoMsg := &Message{Channel: config.ChannelVideo, Type: VideoMessage, Timestamp: 20, Payload: []byte{0x17, 0x01}}
	laterAudio := &Message{Channel: config.ChannelAudio, Type: AudioMessage, Timestamp: 30, Payload: []byte{0x22}}
	for _, msg := range []*Message{audioMsg, videoMsg, laterAudio} {
		require.NoError(t, f.manager.interpretMessage(msg))
	}
	assert.Equal(t, 3, f.queue.Len())

	meta := f.session.Metadata()
	assert.True(t, meta.HasAudio)
	assert.True(t, meta.HasVideo)
	assert.True(t, meta.Stereo)
	assert.Equal(t, uint8(16), meta.AudioSampleSize)
	assert.Equal(t, uint32(44100), meta.AudioSampleRate)
	assert.Equal(t, audio.AAC, meta.AudioCodecID)
	assert.Equal(t, video.H264, meta.VideoCodecID)

	b, err := f.queue.Pop()
	require.NoError(t, err)
	assert.Equal(t, AudioMessage, b.Type)
	assert.Equal(t, uint32(10), b.Timestamp)
	assert.Equal(t, []byte{0xAF, 0x01}, b.Data)

	t.Run("notifyMarksMetadataReceived", func(t *testing.T) {
		assert.False(t, f.session.metadataReceived.Load())
		notify := &Message{Channel: config.ChannelNotify, Type: DataMessageAMF0, Payload: []byte{0x02, 0x00, 0x00}}
		require.NoError(t, f.manager.interpretMessage(notify))
		assert.True(t, f.session.metadataReceived.Load())
		assert.Equal(t, 3, f.queue.Len())
	})

	t.Run("droppedAfterWake", func(t *testing.T) {
		f.queue.Wake()
		require.NoError(t, f.manager.interpretMessage(audioMsg))
		assert.Equal(t, 3, f.queue.Len())
	})
}

func TestSetChunkSizeMessage(t *testing.T) {
	f := newManagerFixture(t, RoleActive)

	short := &Message{Channel: config.ChannelControl, Type: SetChunkSize, Payload: []byte{0, 1}}
	require.NoError(t, f.manager.interpretMessage(short))
	assert.Equal(t, uint32(config.DefaultChunkSize), f.manager.chunkStream.RecvChunkSize())

	msg := &Message{Channel: config.ChannelControl, Type: SetChunkSize, Payload: []byte{0, 0, 0x10, 0}}
	require.NoError(t, f.manager.interpretMessage(msg))
	assert.Equal(t, uint32(4096), f.manager.chunkStream.RecvChunkSize())
}

func TestUndecodableInvoke(t *testing.T) {
	t.Run("garbageOnly", func(t *testing.T) {
		f := newManagerFixture(t, RolePassive)
		msg := &Message{Channel: config.ChannelInvoke, Type: CommandMessageAMF0, Payload: []byte{0xFF, 0xFE, 0x11}}
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Empty(t, f.replies(t))
	})

	t.Run("garbageBeforeCommand", func(t *testing.T) {
		f := newManagerFixture(t, RolePassive)
		msg := invoke(t, config.ChannelInvoke, CommandCreateStream, 2.0, nil)
		msg.Payload = append([]byte{0xFF}, msg.Payload...)
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Len(t, f.replies(t), 3)
	})

	t.Run("unknownTypeInsideStatusObject", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		logs := f.observe()
		head, err := amf0.EncodeAll(OnStatus, 0.0, nil)
		require.NoError(t, err)
		payload := append(head, amf0.TypeObject)
		payload = append(payload, 0x00, 0x05, 'l', 'e', 'v', 'e', 'l', amf0.TypeString, 0x00, 0x06, 's', 't', 'a', 't', 'u', 's')
		payload = append(payload, 0x00, 0x01, 'x', 0x11)
		payload = append(payload, 0x00, 0x04, 'c', 'o', 'd', 'e', amf0.TypeString, 0x00, byte(len(CodePlayStart)))
		payload = append(payload, CodePlayStart...)
		payload = append(payload, 0x00, 0x00, amf0.TypeObjectEnd)

		msg := &Message{Channel: config.ChannelNotify, Type: CommandMessageAMF0, Payload: payload}
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.NoError(t, waitFor(t, f.session.play))
		assert.Equal(t, StatePlaying, f.session.State())

		skipped := logs.FilterMessage("skipping undecodable AMF0 property").All()
		require.Len(t, skipped, 1)
		assert.EqualValues(t, len(head)+20, skipped[0].ContextMap()["offset"])
	})

	t.Run("unknownMessageType", func(t *testing.T) {
		f := newManagerFixture(t, RolePassive)
		msg := &Message{Channel: config.ChannelControl, Type: AggregateMessage, Payload: []byte{1, 2, 3}}
		require.NoError(t, f.manager.interpretMessage(msg))
		assert.Equal(t, 0, f.queue.Len())
	})
}

func TestPassiveDeleteStream(t *testing.T) {
	f := newManagerFixture(t, RolePassive)
	require.NoError(t, f.manager.interpretMessage(invoke(t, config.ChannelInvoke, CommandPublish, 0.0, nil, "movie", PublishLive)))
	require.NoError(t, f.manager.interpretMessage(invoke(t, config.ChannelInvoke, CommandDeleteStream, 0.0, nil, 1.0)))

	assert.True(t, f.session.Stopped())
	assert.True(t, f.queue.Woken())
	assert.Equal(t, StateStopped, f.session.State())
	assert.Empty(t, f.replies(t))
}

func TestUserControl(t *testing.T) {
	t.Run("pingRequestGetsPong", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		ping := &Message{Channel: config.ChannelControl, Type: UserControlMessage, Payload: []byte{0, 6, 0, 0, 0x12, 0x34}}
		require.NoError(t, f.manager.interpretMessage(ping))

		replies := f.replies(t)
		require.Len(t, replies, 1)
		assert.Equal(t, UserControlMessage, replies[0].Type)
		assert.Equal(t, []byte{0, 7, 0, 0, 0x12, 0x34, 0x0D, 0x0E, 0x0A, 0x0D}, replies[0].Payload)
	})

	t.Run("otherEventsIgnored", func(t *testing.T) {
		f := newManagerFixture(t, RoleActive)
		for _, payload := range [][]byte{
			{0, 0, 0, 0, 0, 1},
			{0, 4, 0, 0, 0, 1},
			{0, 6, 0, 0},
			{0},
		} {
			msg := &Message{Channel: config.ChannelControl, Type: UserControlMessage, Payload: payload}
			require.NoError(t, f.manager.interpretMessage(msg))
		}
		assert.Empty(t, f.replies(t))
	})
}
