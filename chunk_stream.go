package rtmp

import (
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/internal/binary24"
)

type Stage uint8

const (
	waitingForHandshake Stage = iota
	handshakeCompleted
)

// Offsets of the header fields after the leading byte.
const (
	// Timestamp (or its delta) is in indices [0, 3) (half-open range)
	timestampIndexStart = 0
	timestampLength     = 3

	messageLengthIndexStart = 3
	messageLengthLength     = 3

	messageTypeIDIndexStart = 6

	dstIndexStart = 7
	dstLength     = 4
)

var ErrNextMessageWithoutHandshake = errors.New("ReadMessage() was called before completing handshake")

// ChunkStream splits outgoing messages into chunks and reassembles incoming
// chunks into messages. It owns the header compression tables of both
// directions for one connection.
//
// ReadMessage must only be called from one goroutine. WriteMessage may be
// called from any goroutine: header selection, encoding and the write happen
// under one lock so the peer sees chunks in the order the send table assumes.
type ChunkStream struct {
	handshaker Handshaker
	reader     ReadByteReaderCounter
	writer     WriteFlusher
	stage      Stage

	recvChunkSize uint32
	recv          [config.MaxChannels]channelState

	sendMu        sync.Mutex
	sendChunkSize uint32
	send          [config.MaxChannels]channelState
}

func NewChunkStream(reader ReadByteReaderCounter, writer WriteFlusher, handshaker Handshaker) *ChunkStream {
	return &ChunkStream{
		handshaker:    handshaker,
		reader:        reader,
		writer:        writer,
		recvChunkSize: config.DefaultChunkSize,
		sendChunkSize: config.DefaultChunkSize,
		stage:         waitingForHandshake,
	}
}

// Initialize performs the handshake and changes the internal state of the ChunkStream to handshakeCompleted
func (cs *ChunkStream) Initialize() error {
	err := cs.handshaker.Handshake(cs.reader, cs.writer)
	if err != nil {
		return err
	}
	cs.stage = handshakeCompleted
	return nil
}

// SetRecvChunkSize changes the maximum chunk body the peer sends. It is called
// from the reading goroutine when a set chunk size message arrives.
func (cs *ChunkStream) SetRecvChunkSize(size uint32) {
	if size == 0 {
		return
	}
	cs.recvChunkSize = size
}

func (cs *ChunkStream) RecvChunkSize() uint32 {
	return cs.recvChunkSize
}

func (cs *ChunkStream) SendChunkSize() uint32 {
	cs.sendMu.Lock()
	defer cs.sendMu.Unlock()
	return cs.sendChunkSize
}

// ReadBytes returns the number of transport bytes consumed so far.
func (cs *ChunkStream) ReadBytes() uint64 {
	return cs.reader.ReadBytes()
}

// Encode selects the header class for msg, updates the send table and returns
// the chunked wire form of msg. It does not write anything, so the caller is
// responsible for sending the result before encoding the next message.
func (cs *ChunkStream) Encode(msg *Message) []byte {
	cs.sendMu.Lock()
	defer cs.sendMu.Unlock()
	return cs.encode(msg)
}

// WriteMessage encodes msg and writes it to the transport in full.
func (cs *ChunkStream) WriteMessage(msg *Message) error {
	cs.sendMu.Lock()
	defer cs.sendMu.Unlock()
	return send(cs.writer, cs.encode(msg))
}

func (cs *ChunkStream) encode(msg *Message) []byte {
	channel := msg.Channel & channelMask
	state := &cs.send[channel]
	chunkType := state.next(msg)
	headerSize := chunkType.HeaderSize()

	chunkSize := int(cs.sendChunkSize)
	length := len(msg.Payload)
	out := make([]byte, headerSize+length+interchunkHeaders(length, chunkSize))

	out[0] = basicHeader(chunkType, channel)
	header := out[1:headerSize]
	switch chunkType {
	case ChunkType0:
		binary24.BigEndian.PutUint24(header[timestampIndexStart:timestampIndexStart+timestampLength], msg.Timestamp)
	case ChunkType1, ChunkType2:
		binary24.BigEndian.PutUint24(header[timestampIndexStart:timestampIndexStart+timestampLength], state.timestampDelta)
	}
	if headerSize >= ChunkType1.HeaderSize() {
		binary24.BigEndian.PutUint24(header[messageLengthIndexStart:messageLengthIndexStart+messageLengthLength], uint32(length))
		header[messageTypeIDIndexStart] = byte(msg.Type)
	}
	if chunkType == ChunkType0 {
		binary.BigEndian.PutUint32(header[dstIndexStart:dstIndexStart+dstLength], msg.Dst)
	}

	// Body, with a continuation header in front of every chunk after the first.
	pos := headerSize
	for start := 0; start < length; start += chunkSize {
		if start > 0 {
			out[pos] = basicHeader(ChunkType3, channel)
			pos++
		}
		end := start + chunkSize
		if end > length {
			end = length
		}
		pos += copy(out[pos:], msg.Payload[start:end])
	}
	return out
}

// ReadMessage reads chunks until one message is complete on some channel and
// returns it. Chunks of other channels read on the way are accumulated in
// their channel's state. Any transport error is returned as is; the stream is
// unusable afterwards.
func (cs *ChunkStream) ReadMessage() (*Message, error) {
	if cs.stage == waitingForHandshake {
		return nil, ErrNextMessageWithoutHandshake
	}
	for {
		msg, err := cs.readChunk()
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
}

func (cs *ChunkStream) readChunk() (*Message, error) {
	b, err := cs.reader.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "read chunk basic header")
	}
	chunkType, channel := parseBasicHeader(b)
	state := &cs.recv[channel]

	var header [11]byte
	headerSize := chunkType.HeaderSize()
	if headerSize > 1 {
		if _, err := cs.reader.Read(header[:headerSize-1]); err != nil {
			return nil, errors.Wrapf(err, "read %d byte chunk header", headerSize)
		}
	}

	switch chunkType {
	case ChunkType0:
		state.timestamp = binary24.BigEndian.Uint24(header[timestampIndexStart : timestampIndexStart+timestampLength])
		state.timestampDelta = 0
		state.dst = binary.BigEndian.Uint32(header[dstIndexStart : dstIndexStart+dstLength])
	case ChunkType1, ChunkType2:
		state.timestampDelta = binary24.BigEndian.Uint24(header[timestampIndexStart : timestampIndexStart+timestampLength])
		state.timestamp += state.timestampDelta
	case ChunkType3:
		// A 1-byte header starting a new message repeats the previous delta.
		// Between the chunks of one message it carries nothing.
		if state.body == nil {
			state.timestamp += state.timestampDelta
		}
	}
	if headerSize >= ChunkType1.HeaderSize() {
		state.length = binary24.BigEndian.Uint24(header[messageLengthIndexStart : messageLengthIndexStart+messageLengthLength])
		state.messageType = MessageType(header[messageTypeIDIndexStart])
	}

	if state.body == nil {
		state.body = make([]byte, 0, state.length)
	}
	if received := len(state.body); uint32(received) > state.length {
		// A new header shrank the message under what we already have.
		state.body = nil
		return nil, errors.Errorf("channel %d: message length %d smaller than %d bytes received", channel, state.length, received)
	}

	toRead := state.length - uint32(len(state.body))
	if toRead > cs.recvChunkSize {
		toRead = cs.recvChunkSize
	}
	if toRead > 0 {
		start := len(state.body)
		state.body = append(state.body, make([]byte, toRead)...)
		if _, err := cs.reader.Read(state.body[start:]); err != nil {
			return nil, errors.Wrapf(err, "read %d byte chunk body on channel %d", toRead, channel)
		}
	}

	if uint32(len(state.body)) < state.length {
		return nil, nil
	}

	msg := &Message{
		Channel:        channel,
		Timestamp:      state.timestamp,
		TimestampDelta: state.timestampDelta,
		Type:           state.messageType,
		Dst:            state.dst,
		Payload:        state.body,
	}
	state.body = nil
	return msg, nil
}
