package rtmp

import "github.com/pkg/errors"

var ErrNilWriter = errors.New("Expected *bufio.Writer to be non-nil, but got a nil value")
var ErrNilReader = errors.New("Expected *bufio.Reader to be non-nil, but got a nil value")

// Handshake failures.
var (
	ErrUnsupportedRTMPVersion = errors.New("The version of RTMP is not supported")
	ErrWrongC2Message         = errors.New("server handshake: s1 and c2 handshake messages do not match")
	ErrWrongS2Message         = errors.New("client handshake: c1 and s2 handshake messages do not match")
)

// Session failures surfaced by Dial, Accept, Read and Write.
var (
	ErrInvalidApp      = errors.New("rtmp: server rejected the application (NetConnection.Connect.InvalidApp)")
	ErrConnectRejected = errors.New("rtmp: server rejected connect")
	ErrPlayRejected    = errors.New("rtmp: server rejected play")
	ErrPublishRejected = errors.New("rtmp: server rejected publish")
	ErrSessionClosed   = errors.New("rtmp: session closed")
	ErrQueueClosed     = errors.New("rtmp: media queue closed")
	ErrShortWrite      = errors.New("rtmp: short write")
	ErrInvalidURL      = errors.New("rtmp: invalid url")
	ErrNotPublishing   = errors.New("rtmp: connection does not accept media from the caller")
	ErrNotPlaying      = errors.New("rtmp: connection does not deliver media to the caller")
	ErrSeekUnsupported = errors.New("rtmp: seek is not supported on live sessions")
)
