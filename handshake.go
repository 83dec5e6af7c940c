package rtmp

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const RtmpVersion3 = 3

// handshakeSize is the length of c1, c2, s1 and s2.
const handshakeSize = 1536

// Bytes [0, 8) of every handshake half hold time and version fields that
// neither side echoes exactly, so only the rest is compared.
const echoCompareStart = 8

// ActiveHandshaker performs the handshake of the side that opened the
// connection.
type ActiveHandshaker struct{}

func (ActiveHandshaker) Handshake(reader io.Reader, writer WriteFlusher) error {
	c1, err := sendC0C1(writer)
	if err != nil {
		return err
	}
	s1, s2, err := readS0S1S2(reader)
	if err != nil {
		return err
	}
	if !echoes(c1, s2) {
		return ErrWrongS2Message
	}
	return sendC2(writer, s1)
}

// PassiveHandshaker performs the handshake of the side that accepted the
// connection.
type PassiveHandshaker struct{}

func (PassiveHandshaker) Handshake(reader io.Reader, writer WriteFlusher) error {
	c1, err := readC0C1(reader)
	if err != nil {
		return err
	}
	s1, err := sendS0S1S2(writer, c1)
	if err != nil {
		return err
	}
	c2, err := readC2(reader)
	if err != nil {
		return err
	}
	if !echoes(s1, c2) {
		return ErrWrongC2Message
	}
	return nil
}

func echoes(sent, echo []byte) bool {
	return bytes.Equal(sent[echoCompareStart:], echo[echoCompareStart:])
}

// Returns the C1 message that was sent. Its payload is a counting pattern, the
// peer only has to echo it.
func sendC0C1(writer WriteFlusher) ([]byte, error) {
	var c0c1 [1 + handshakeSize]byte
	c0c1[0] = RtmpVersion3
	for i := 0; i < handshakeSize; i++ {
		c0c1[i+1] = byte(i)
	}
	if err := send(writer, c0c1[:]); err != nil {
		return nil, errors.Wrap(err, "client handshake: send c0+c1")
	}
	return c0c1[1:], nil
}

// Returns s1 and s2
func readS0S1S2(reader io.Reader) ([]byte, []byte, error) {
	var s0s1s2 [1 + 2*handshakeSize]byte
	if _, err := io.ReadFull(reader, s0s1s2[:]); err != nil {
		return nil, nil, errors.Wrap(err, "client handshake: read s0+s1+s2")
	}
	if s0s1s2[0] != RtmpVersion3 {
		return nil, nil, ErrUnsupportedRTMPVersion
	}
	return s0s1s2[1 : 1+handshakeSize], s0s1s2[1+handshakeSize:], nil
}

func sendC2(writer WriteFlusher, s1 []byte) error {
	var c2 [handshakeSize]byte
	copy(c2[:], s1)
	if err := send(writer, c2[:]); err != nil {
		return errors.Wrap(err, "client handshake: send c2")
	}
	return nil
}

// If successful returns the C1 handshake data (data sent by the client), it does not return c0 + c1.
func readC0C1(reader io.Reader) ([]byte, error) {
	var c0c1 [1 + handshakeSize]byte
	if _, err := io.ReadFull(reader, c0c1[:]); err != nil {
		return nil, errors.Wrap(err, "server handshake: read c0+c1")
	}
	if c0c1[0] != RtmpVersion3 {
		return nil, ErrUnsupportedRTMPVersion
	}
	return c0c1[1:], nil
}

// Sends s0, s1 and s2 and returns the s1 that was sent. s1 is all zeros and
// s2 is the client's c1 unchanged.
func sendS0S1S2(writer WriteFlusher, c1 []byte) ([]byte, error) {
	var s0s1s2 [1 + 2*handshakeSize]byte
	s0s1s2[0] = RtmpVersion3
	copy(s0s1s2[1+handshakeSize:], c1)
	if err := send(writer, s0s1s2[:]); err != nil {
		return nil, errors.Wrap(err, "server handshake: send s0+s1+s2")
	}
	return s0s1s2[1 : 1+handshakeSize], nil
}

// Returns the C2 message
func readC2(reader io.Reader) ([]byte, error) {
	var c2 [handshakeSize]byte
	if _, err := io.ReadFull(reader, c2[:]); err != nil {
		return nil, errors.Wrap(err, "server handshake: read c2")
	}
	return c2[:], nil
}
