package rtmp

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/amf/amf0"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/flv"
	"go.uber.org/zap"
)

// MessageManager reads messages off the chunk stream, routes them to the
// session or the media queue, and sends the messages the session needs.
type MessageManager struct {
	logger      *zap.Logger
	session     *Session
	chunkStream *ChunkStream
	queue       *MediaQueue
}

func NewMessageManager(session *Session, chunkStream *ChunkStream, queue *MediaQueue) *MessageManager {
	return &MessageManager{
		logger:      session.logger,
		session:     session,
		chunkStream: chunkStream,
		queue:       queue,
	}
}

// Initialize performs the handshake. It must be called once before
// nextMessage.
func (m *MessageManager) Initialize() error {
	m.session.setState(StateHandshaking)
	return m.chunkStream.Initialize()
}

// Reads the next message and interprets it.
func (m *MessageManager) nextMessage() error {
	msg, err := m.chunkStream.ReadMessage()
	if err != nil {
		return err
	}
	return m.interpretMessage(msg)
}

func (m *MessageManager) interpretMessage(msg *Message) error {
	switch msg.Type {
	case SetChunkSize:
		if len(msg.Payload) < 4 {
			m.logger.Warn("short set chunk size message", zap.Int("length", len(msg.Payload)))
			return nil
		}
		size := binary.BigEndian.Uint32(msg.Payload)
		m.logger.Debug("peer changed chunk size", zap.Uint32("size", size))
		m.chunkStream.SetRecvChunkSize(size)
		return nil
	case AudioMessage, VideoMessage:
		m.session.sniff(msg)
		return m.enqueue(msg)
	case DataMessageAMF0:
		m.session.metadataReceived.Store(true)
		return m.enqueue(msg)
	case CommandMessageAMF0:
		return m.handleCommandMessage(msg)
	case UserControlMessage:
		return m.handleUserControl(msg)
	default:
		m.logger.Debug("ignoring message", zap.Stringer("type", msg.Type), zap.Uint8("channel", msg.Channel))
		return nil
	}
}

// handleUserControl answers a ping request with a pong echoing its timestamp.
// Other events need no reply.
func (m *MessageManager) handleUserControl(msg *Message) error {
	if len(msg.Payload) < 2 {
		m.logger.Warn("short user control message", zap.Int("length", len(msg.Payload)))
		return nil
	}
	event := PingType(binary.BigEndian.Uint16(msg.Payload))
	if event != PingClientFromServer {
		m.logger.Debug("user control event", zap.Uint16("event", uint16(event)))
		return nil
	}
	if len(msg.Payload) < 6 {
		m.logger.Warn("short ping request", zap.Int("length", len(msg.Payload)))
		return nil
	}
	timestamp := binary.BigEndian.Uint32(msg.Payload[2:])
	return m.send("pong", generatePingMessage(PingPongFromClient, timestamp, 0))
}

// enqueue hands a media message to the reader. Once the queue has been woken
// nobody will read it, so it is dropped.
func (m *MessageManager) enqueue(msg *Message) error {
	err := m.queue.Push(&Block{Type: msg.Type, Timestamp: msg.Timestamp, Data: msg.Payload})
	if err == ErrQueueClosed {
		m.logger.Debug("dropping media after end of stream", zap.Stringer("type", msg.Type))
		return nil
	}
	return err
}

// scanValues decodes every AMF0 value in an invoke body. It is lenient: a byte
// that does not start a decodable value is logged and skipped, and so is an
// unknown marker in an object property, keeping the rest of the object.
func (m *MessageManager) scanValues(payload []byte) []interface{} {
	var values []interface{}
	for offset := 0; offset < len(payload); {
		base := offset
		v, n, err := amf0.DecodeLenient(payload[offset:], func(at int, marker byte) {
			m.logger.Warn("skipping undecodable AMF0 property",
				zap.Int("offset", base+at), zap.Uint8("marker", marker))
		})
		if err != nil {
			m.logger.Warn("skipping undecodable AMF0 byte", zap.Int("offset", offset), zap.Error(err))
			offset++
			continue
		}
		values = append(values, v)
		offset += n
	}
	return values
}

func stringAt(values []interface{}, i int) string {
	if i < len(values) {
		if s, ok := values[i].(string); ok {
			return s
		}
	}
	return ""
}

func numberAt(values []interface{}, i int) float64 {
	if i < len(values) {
		if n, ok := values[i].(float64); ok {
			return n
		}
	}
	return 0
}

func (m *MessageManager) handleCommandMessage(msg *Message) error {
	values := m.scanValues(msg.Payload)
	command := stringAt(values, 0)
	transactionID := numberAt(values, 1)
	m.logger.Debug("received invoke", zap.String("command", command), zap.Float64("transaction", transactionID))

	var err error
	switch command {
	case CommandConnect:
		err = m.onConnect(transactionID)
	case CommandCreateStream:
		err = m.onCreateStream(transactionID)
	case CommandPublish:
		m.onPublish(stringAt(values, 3))
	case CommandPlay:
		err = m.onPlay(stringAt(values, 3))
	case CommandDeleteStream:
		m.onDeleteStream(numberAt(values, 3))
	case RespResult:
		if transactionID == transactionCreateStream && len(values) > 3 {
			server := numberAt(values, 3)
			m.logger.Debug("stream created", zap.Float64("stream", server))
			m.session.setStreamIDs(transactionID, server)
			m.session.setState(StateStreamCreated)
		}
	}
	if err != nil {
		return err
	}

	for i, v := range values {
		if i < 2 {
			continue
		}
		if obj, ok := v.(amf0.Object); ok {
			m.onStatusObject(command, obj)
		}
		if ce := m.logger.Check(zap.DebugLevel, "invoke argument"); ce != nil {
			ce.Write(zap.Int("index", i), zap.Any("value", v))
		}
	}
	return nil
}

// onStatusObject applies the status code of a _result, _error or onStatus
// object.
func (m *MessageManager) onStatusObject(command string, obj amf0.Object) {
	code, ok := obj.GetString("code")
	if !ok {
		return
	}
	level, _ := obj.GetString("level")
	m.logger.Debug("status", zap.String("command", command), zap.String("level", level), zap.String("code", code))

	switch code {
	case CodeConnectSuccess:
		m.session.connect.resolve(nil)
	case CodeConnectInvalidApp:
		m.logger.Error("server rejected the application", zap.String("code", code))
		m.session.kill(ErrInvalidApp)
		m.queue.Wake()
	case CodeConnectRejected:
		m.session.connect.resolve(ErrConnectRejected)
	case CodePlayStart:
		m.session.setState(StatePlaying)
		m.session.play.resolve(nil)
	case CodePlayNotFound:
		m.session.play.resolve(errors.Wrap(ErrPlayRejected, code))
	case CodePlayStop:
		m.logger.Info("stream stopped by peer")
		m.session.stop()
		m.queue.Wake()
	case CodePublishStart:
		m.session.setState(StatePublishing)
		m.session.publish.resolve(nil)
	case CodePublishBadName:
		m.session.publish.resolve(errors.Wrap(ErrPublishRejected, code))
	default:
		if level == LevelWarning {
			m.logger.Warn("peer reported a warning", zap.String("code", code))
		}
		if level == LevelError {
			m.logger.Warn("peer reported an error", zap.String("code", code))
			if command == RespError && !m.session.connect.resolved() {
				m.session.connect.resolve(errors.Wrap(ErrConnectRejected, code))
			}
		}
	}
}

// onConnect answers a peer's NetConnection.connect.
func (m *MessageManager) onConnect(transactionID float64) error {
	m.session.setState(StateConnecting)
	if err := m.sendInvoke("onBWDone", generateOnBWDoneMessage); err != nil {
		return err
	}
	if err := m.send("server bandwidth", generateServerBandwidthMessage(config.ServerBandwidth)); err != nil {
		return err
	}
	if err := m.send("clear stream", generatePingMessage(PingClearStream, config.DstConnectObject, 0)); err != nil {
		return err
	}
	err := m.sendInvoke("connect result", func() (*Message, error) {
		return generateConnectResultMessage(transactionID)
	})
	if err != nil {
		return err
	}
	m.session.connect.resolve(nil)
	return nil
}

// onCreateStream answers createStream with the stream id pair.
func (m *MessageManager) onCreateStream(transactionID float64) error {
	client, server := transactionID, config.DefaultStreamServerID
	m.session.setStreamIDs(client, server)
	err := m.sendInvoke("createStream result", func() (*Message, error) {
		return generateCreateStreamResultMessage(client, server)
	})
	if err != nil {
		return err
	}
	if err := m.send("reset stream", generatePingMessage(PingResetStream, config.DstConnectObject2, 0)); err != nil {
		return err
	}
	if err := m.send("clear stream", generatePingMessage(PingClearStream, config.DstConnectObject2, 0)); err != nil {
		return err
	}
	m.session.setState(StateStreamCreated)
	return nil
}

// onDeleteStream ends the media stream the peer is tearing down.
func (m *MessageManager) onDeleteStream(stream float64) {
	m.logger.Info("peer deleted stream", zap.Float64("stream", stream))
	m.session.stop()
	m.queue.Wake()
}

// onPublish records the name the peer publishes under. Publish.Start is sent
// once its media is first delivered to the reader.
func (m *MessageManager) onPublish(name string) {
	m.logger.Info("peer publishes", zap.String("name", name))
	m.session.setPublishName(name)
	m.session.setState(StatePublishing)
	m.session.publish.resolve(nil)
}

// onPlay answers a peer's play with Play.Reset and Play.Start.
func (m *MessageManager) onPlay(media string) error {
	m.logger.Info("peer plays", zap.String("media", media))
	m.session.setMedia(media)
	client, _ := m.session.streamIDs()
	err := m.sendInvoke("play reset", func() (*Message, error) {
		return generatePlayResetMessage(media, client)
	})
	if err != nil {
		return err
	}
	err = m.sendInvoke("play start", func() (*Message, error) {
		return generatePlayStartMessage(media, client)
	})
	if err != nil {
		return err
	}
	m.session.setState(StatePlaying)
	m.session.play.resolve(nil)
	return nil
}

func (m *MessageManager) send(what string, msg *Message) error {
	if err := m.chunkStream.WriteMessage(msg); err != nil {
		return errors.Wrapf(err, "send %s", what)
	}
	return nil
}

func (m *MessageManager) sendInvoke(what string, generate func() (*Message, error)) error {
	msg, err := generate()
	if err != nil {
		return errors.Wrapf(err, "build %s", what)
	}
	return m.send(what, msg)
}

func (m *MessageManager) requestConnect(app, url string) error {
	m.session.setState(StateConnecting)
	return m.sendInvoke("connect", func() (*Message, error) {
		return generateConnectMessage(app, url)
	})
}

func (m *MessageManager) requestCreateStream() error {
	return m.sendInvoke("createStream", generateCreateStreamMessage)
}

func (m *MessageManager) requestPlay(media string) error {
	m.session.setMedia(media)
	return m.sendInvoke("play", func() (*Message, error) {
		return generatePlayMessage(media)
	})
}

func (m *MessageManager) requestPublish(media string) error {
	m.session.setPublishName(media)
	return m.sendInvoke("publish", func() (*Message, error) {
		return generatePublishMessage(media)
	})
}

func (m *MessageManager) sendBufferTime(stream uint32) error {
	return m.send("buffer time", generatePingMessage(PingBufferTimeClient, stream, config.ClientBufferTime))
}

func (m *MessageManager) sendBytesRead() error {
	return m.send("bytes read", generateBytesReadMessage(uint32(m.chunkStream.ReadBytes())))
}

func (m *MessageManager) sendPublishStart() error {
	client, server := m.session.streamIDs()
	name := m.session.PublishName()
	return m.sendInvoke("publish start", func() (*Message, error) {
		return generatePublishStartMessage(server, name, client)
	})
}

func (m *MessageManager) sendPlayStop(media string) error {
	client, _ := m.session.streamIDs()
	return m.sendInvoke("play stop", func() (*Message, error) {
		return generatePlayStopMessage(media, client)
	})
}

func (m *MessageManager) sendTag(tag flv.Tag) error {
	return m.send("media tag", generateTagMessage(tag))
}
