package rtmp

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/amf/amf0"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/flv"
)

// Ping body sizes.
const (
	pingShortSize = 6
	pingLongSize  = 10
)

// generatePingMessage builds a user control message on the control channel.
// Clear stream, clear playing buffer and reset stream carry only the type and
// the stream they apply to. Buffer time carries the buffer length as a third
// field. Any other type is padded with a fixed filler.
func generatePingMessage(pingType PingType, srcDst uint32, third uint32) *Message {
	var body []byte
	switch pingType {
	case PingClearStream, PingClearPlayingBuffer, PingResetStream:
		body = make([]byte, pingShortSize)
	case PingBufferTimeClient:
		body = make([]byte, pingLongSize)
		binary.BigEndian.PutUint32(body[6:], third)
	default:
		body = make([]byte, pingLongSize)
		copy(body[6:], []byte{0x0D, 0x0E, 0x0A, 0x0D})
	}
	binary.BigEndian.PutUint16(body[0:2], uint16(pingType))
	binary.BigEndian.PutUint32(body[2:6], srcDst)

	return &Message{
		Channel: config.ChannelControl,
		Type:    UserControlMessage,
		Dst:     config.DstConnectObject,
		Payload: body,
	}
}

// generateBytesReadMessage acknowledges the number of bytes received so far.
func generateBytesReadMessage(bytesRead uint32) *Message {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, bytesRead)
	return &Message{
		Channel: config.ChannelControl,
		Type:    Acknowledgement,
		Dst:     config.DstConnectObject,
		Payload: body,
	}
}

func generateServerBandwidthMessage(bandwidth uint32) *Message {
	body := make([]byte, 4)
	binary.BigEndian.PutUint32(body, bandwidth)
	return &Message{
		Channel: config.ChannelControl,
		Type:    WindowAcknowledgementSize,
		Dst:     config.DstConnectObject,
		Payload: body,
	}
}

// generateInvokeMessage encodes values as the AMF0 body of an invoke.
func generateInvokeMessage(channel uint8, dst uint32, values ...interface{}) (*Message, error) {
	body, err := amf0.EncodeAll(values...)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %v invoke", values[0])
	}
	return &Message{
		Channel: channel,
		Type:    CommandMessageAMF0,
		Dst:     dst,
		Payload: body,
	}, nil
}

// generateConnectMessage builds NetConnection.connect for app. url is the
// target without its scheme.
func generateConnectMessage(app, url string) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstConnectObject,
		CommandConnect,
		transactionConnect,
		amf0.Object{
			{Key: "app", Value: app},
			{Key: "flashVer", Value: config.FlashVer},
			{Key: "swfUrl", Value: config.SwfURL},
			{Key: "tcUrl", Value: "rtmp://" + url},
			{Key: "fpad", Value: false},
			{Key: "audioCodecs", Value: config.AudioCodecs},
			{Key: "videoCodecs", Value: config.VideoCodecs},
			{Key: "videoFunction", Value: config.VideoFunction},
			{Key: "pageUrl", Value: config.PageURL},
			{Key: "objectEncoding", Value: config.ObjectEncoding},
		},
	)
}

func generateCreateStreamMessage() (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstConnectObject,
		CommandCreateStream, transactionCreateStream, nil)
}

func generatePlayMessage(media string) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstDefault,
		CommandPlay, transactionStream, nil, media)
}

func generatePublishMessage(media string) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstDefault,
		CommandPublish, transactionStream, nil, media, PublishLive)
}

// generateSeekMessage builds NetStream.seek to position milliseconds. Nothing
// sends it yet: seeking a live session is not supported.
func generateSeekMessage(position float64) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstDefault,
		CommandSeek, transactionStream, nil, position)
}

func generateOnBWDoneMessage() (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstConnectObject,
		OnBWDone, transactionOnBWDone, nil)
}

func generateConnectResultMessage(transactionID float64) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstConnectObject,
		RespResult, transactionID, nil,
		amf0.Object{
			{Key: "level", Value: LevelStatus},
			{Key: "code", Value: CodeConnectSuccess},
			{Key: "description", Value: "Connection succeeded."},
		},
	)
}

func generateCreateStreamResultMessage(clientID, serverID float64) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstConnectObject,
		RespResult, clientID, nil, serverID)
}

// generatePlayStatusMessage builds the onStatus a passive peer sends for a
// play request, sent on the notify channel as an invoke.
func generatePlayStatusMessage(code, description, media string, clientID float64) (*Message, error) {
	return generateInvokeMessage(config.ChannelNotify, config.DstDefault,
		OnStatus, 1.0, nil,
		amf0.Object{
			{Key: "level", Value: LevelStatus},
			{Key: "code", Value: code},
			{Key: "description", Value: description},
			{Key: "details", Value: media},
			{Key: "clientid", Value: clientID},
		},
	)
}

func generatePlayResetMessage(media string, clientID float64) (*Message, error) {
	return generatePlayStatusMessage(CodePlayReset, fmt.Sprintf("Playing and resetting %s.", media), media, clientID)
}

func generatePlayStartMessage(media string, clientID float64) (*Message, error) {
	return generatePlayStatusMessage(CodePlayStart, fmt.Sprintf("Started playing %s.", media), media, clientID)
}

func generatePlayStopMessage(media string, clientID float64) (*Message, error) {
	return generatePlayStatusMessage(CodePlayStop, fmt.Sprintf("Stopped playing %s.", media), media, clientID)
}

// generatePublishStartMessage tells a publishing peer that its stream is being
// consumed.
func generatePublishStartMessage(serverID float64, publishName string, clientID float64) (*Message, error) {
	return generateInvokeMessage(config.ChannelInvoke, config.DstConnectObject,
		OnStatus, serverID, nil,
		amf0.Object{
			{Key: "level", Value: LevelStatus},
			{Key: "code", Value: CodePublishStart},
			{Key: "description", Value: ""},
			{Key: "details", Value: publishName},
			{Key: "clientid", Value: clientID},
		},
	)
}

// channelForTag returns the channel media of the given FLV tag type travels on.
func channelForTag(tagType uint8) uint8 {
	switch tagType {
	case flv.TagAudio:
		return config.ChannelAudio
	case flv.TagVideo:
		return config.ChannelVideo
	default:
		return config.ChannelNotify
	}
}

// generateTagMessage turns one FLV tag into the message that carries it.
func generateTagMessage(tag flv.Tag) *Message {
	return &Message{
		Channel:   channelForTag(tag.Type),
		Timestamp: tag.Timestamp,
		Type:      MessageType(tag.Type),
		Dst:       config.DstDefault,
		Payload:   tag.Data,
	}
}
