package rtmp

import (
	"context"
	"sync"

	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/flv"
	"github.com/torresjeff/rtmpflv/rand"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// State is the position of a session in the control exchange.
type State uint32

const (
	StateHandshaking State = iota
	StateConnecting
	StateStreamCreated
	StatePlaying
	StatePublishing
	StateStopped
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateConnecting:
		return "connecting"
	case StateStreamCreated:
		return "stream_created"
	case StatePlaying:
		return "playing"
	case StatePublishing:
		return "publishing"
	case StateStopped:
		return "stopped"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// result is resolved once by the receive loop when the peer answers a call
// (or makes the one we wait for). Waiters get the error it was resolved with.
type result struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

func (r *result) resolve(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

func (r *result) resolved() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

func (r *result) wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Session holds the control state of one connection. The receive loop mutates
// it; the caller's goroutine waits on its results and reads its metadata.
type Session struct {
	logger    *zap.Logger
	sessionID string
	role      Role
	state     atomic.Uint32

	// connect, play and publish resolve when the matching exchange is over.
	// On the passive side play and publish resolve when the peer asks for
	// them.
	connect *result
	play    *result
	publish *result

	metadataReceived atomic.Bool
	stopped          atomic.Bool
	dead             atomic.Bool
	die              chan struct{}
	dieOnce          sync.Once

	mu             sync.Mutex
	streamClientID float64
	streamServerID float64
	publishName    string
	media          string
	metadata       flv.Metadata
	sniffedAudio   bool
	sniffedVideo   bool
}

func NewSession(logger *zap.Logger, role Role) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := rand.GenerateUuid()
	return &Session{
		logger:         logger.With(zap.String("session", id), zap.Stringer("role", role)),
		sessionID:      id,
		role:           role,
		connect:        newResult(),
		play:           newResult(),
		publish:        newResult(),
		die:            make(chan struct{}),
		streamClientID: config.DefaultStreamClientID,
		streamServerID: config.DefaultStreamServerID,
	}
}

func (s *Session) GetID() string {
	return s.sessionID
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(state State) {
	old := State(s.state.Swap(uint32(state)))
	if old != state {
		s.logger.Debug("session state changed", zap.Stringer("from", old), zap.Stringer("to", state))
	}
}

// kill marks the session dead and fails every result still pending.
func (s *Session) kill(err error) {
	s.dieOnce.Do(func() {
		s.dead.Store(true)
		if s.State() != StateStopped {
			s.setState(StateErrored)
		}
		close(s.die)
	})
	s.connect.resolve(err)
	s.play.resolve(err)
	s.publish.resolve(err)
}

func (s *Session) Dead() bool {
	return s.dead.Load()
}

// Done is closed when the session dies.
func (s *Session) Done() <-chan struct{} {
	return s.die
}

// stop records the end of the media stream.
func (s *Session) stop() {
	s.stopped.Store(true)
	s.setState(StateStopped)
}

func (s *Session) Stopped() bool {
	return s.stopped.Load()
}

// sniff records codec parameters from the first audio and first video
// message. Later messages of the same kind are ignored.
func (s *Session) sniff(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch msg.Type {
	case AudioMessage:
		if s.sniffedAudio {
			return
		}
		s.sniffedAudio = true
		err = s.metadata.SniffAudio(msg.Payload)
	case VideoMessage:
		if s.sniffedVideo {
			return
		}
		s.sniffedVideo = true
		err = s.metadata.SniffVideo(msg.Payload)
	default:
		return
	}
	if err != nil {
		s.logger.Warn("unrecognised codec parameters", zap.Stringer("type", msg.Type), zap.Error(err))
	}
}

// Metadata returns the codec parameters sniffed so far.
func (s *Session) Metadata() flv.Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

func (s *Session) setStreamIDs(client, server float64) {
	s.mu.Lock()
	s.streamClientID = client
	s.streamServerID = server
	s.mu.Unlock()
}

func (s *Session) streamIDs() (client, server float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamClientID, s.streamServerID
}

func (s *Session) setPublishName(name string) {
	s.mu.Lock()
	s.publishName = name
	s.mu.Unlock()
}

func (s *Session) PublishName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishName
}

func (s *Session) setMedia(media string) {
	s.mu.Lock()
	s.media = media
	s.mu.Unlock()
}

// Media returns the stream name being played.
func (s *Session) Media() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media
}
