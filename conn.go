package rtmp

import (
	"bufio"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/flv"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Mode is the direction media flows between the caller and a Conn.
type Mode uint8

const (
	// ModePlay delivers the peer's media as an FLV byte stream through Read.
	ModePlay Mode = iota + 1
	// ModePublish sends an FLV byte stream given to Write to the peer.
	ModePublish
)

func (m Mode) String() string {
	switch m {
	case ModePlay:
		return "play"
	case ModePublish:
		return "publish"
	}
	return "none"
}

// Conn is one RTMP session over a TCP connection. A background goroutine
// reads and dispatches messages for the whole life of the Conn; the caller
// consumes media with Read or produces it with Write, depending on Mode.
type Conn struct {
	conn   net.Conn
	logger *zap.Logger
	cfg    *config.Config
	mode   Mode

	session        *Session
	chunkStream    *ChunkStream
	messageManager *MessageManager
	queue          *MediaQueue
	pool           *BlockPool

	readMu          sync.Mutex
	tags            flv.TagWriter
	metadataHandled bool
	headerSent      bool
	delivered       bool
	pending         []byte
	pendingBlock    []byte

	writeMu sync.Mutex
	parser  *flv.Parser

	loopDone  chan struct{}
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newConn(netConn net.Conn, role Role, opts []Option) *Conn {
	o := buildOptions(opts)

	reader, _ := NewReader(bufio.NewReaderSize(netConn, config.BuffioSize))
	writer, _ := NewWriter(bufio.NewWriterSize(netConn, config.BuffioSize))
	chunkStream := NewChunkStream(reader, writer, handshakerFor(role))
	session := NewSession(o.logger, role)
	queue := NewMediaQueue(o.cfg.RTMP.QueueSize)

	return &Conn{
		conn:           netConn,
		logger:         session.logger,
		cfg:            o.cfg,
		session:        session,
		chunkStream:    chunkStream,
		messageManager: NewMessageManager(session, chunkStream, queue),
		queue:          queue,
		pool:           NewBlockPool(config.MaxEmptyBlocks, config.DefaultBlockSize),
		parser:         flv.NewParser(),
	}
}

// handshake runs the handshake under the configured timeout, or the context
// deadline if that comes first.
func (c *Conn) handshake(ctx context.Context) error {
	var deadline time.Time
	if c.cfg.RTMP.HandshakeTimeout > 0 {
		deadline = time.Now().Add(c.cfg.RTMP.HandshakeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if !deadline.IsZero() {
		if err := c.conn.SetDeadline(deadline); err != nil {
			return errors.Wrap(err, "set handshake deadline")
		}
		defer c.conn.SetDeadline(time.Time{})
	}

	if err := c.messageManager.Initialize(); err != nil {
		return errors.Wrap(err, "handshake")
	}
	c.logger.Debug("handshake completed", zap.Stringer("remote", c.conn.RemoteAddr()))
	return nil
}

// start launches the receive loop. The loop ends on a transport error or when
// the Conn is closed, and it always leaves the session dead and the queue
// woken.
func (c *Conn) start() {
	c.loopDone = make(chan struct{})
	go c.loop()
}

func (c *Conn) loop() {
	defer close(c.loopDone)
	for {
		err := c.messageManager.nextMessage()
		if err == nil {
			continue
		}
		switch {
		case c.closing.Load():
			c.logger.Debug("receive loop ended by close")
		case c.session.Stopped() || errors.Cause(err) == io.EOF:
			c.logger.Info("peer closed the connection", zap.Error(err))
		default:
			c.logger.Error("receive loop failed", zap.Error(err))
		}
		c.session.kill(ErrSessionClosed)
		c.queue.Wake()
		return
	}
}

// waitForMode blocks until a peer that connected to us plays or publishes.
func (c *Conn) waitForMode(ctx context.Context) error {
	var err error
	select {
	case <-c.session.play.done:
		c.mode = ModePublish
		err = c.session.play.err
	case <-c.session.publish.done:
		c.mode = ModePlay
		err = c.session.publish.err
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	c.logger.Info("peer negotiated a stream", zap.Stringer("mode", c.mode))
	return nil
}

// connect runs the NetConnection.connect and createStream calls shared by the
// play and publish paths.
func (c *Conn) connect(ctx context.Context, u *URL) error {
	if err := c.messageManager.requestConnect(u.App, u.Location); err != nil {
		return err
	}
	if err := c.session.connect.wait(ctx); err != nil {
		return errors.Wrap(err, "connect")
	}
	c.logger.Debug("connected", zap.String("app", u.App))
	return c.messageManager.requestCreateStream()
}

func (c *Conn) startPlay(ctx context.Context, u *URL) error {
	if err := c.connect(ctx, u); err != nil {
		return err
	}
	mm := c.messageManager
	if err := mm.sendBufferTime(config.DstConnectObject); err != nil {
		return err
	}
	if err := mm.requestPlay(u.Media); err != nil {
		return err
	}
	if err := mm.sendBufferTime(config.DstConnectObject2); err != nil {
		return err
	}
	if err := c.session.play.wait(ctx); err != nil {
		return errors.Wrap(err, "play")
	}
	c.mode = ModePlay
	return nil
}

func (c *Conn) startPublish(ctx context.Context, u *URL) error {
	if err := c.connect(ctx, u); err != nil {
		return err
	}
	if err := c.messageManager.requestPublish(u.Media); err != nil {
		return err
	}
	if err := c.session.publish.wait(ctx); err != nil {
		return errors.Wrap(err, "publish")
	}
	c.mode = ModePublish
	return nil
}

func (c *Conn) Mode() Mode {
	return c.mode
}

func (c *Conn) Session() *Session {
	return c.session
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Read reads the FLV byte stream of the peer's media. The stream starts with
// the file header and an onMetaData tag. Read returns io.EOF once the peer
// stops the stream or the connection ends and every queued tag was read.
func (c *Conn) Read(p []byte) (int, error) {
	if c.mode != ModePlay {
		return 0, ErrNotPlaying
	}
	if len(p) == 0 {
		return 0, nil
	}
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if len(c.pending) == 0 {
		if err := c.nextBlock(); err != nil {
			return 0, err
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	if len(c.pending) == 0 {
		c.pool.Put(c.pendingBlock)
		c.pendingBlock = nil
	}
	return n, c.acknowledge()
}

// nextBlock fills c.pending with the next piece of the byte stream.
func (c *Conn) nextBlock() error {
	if !c.metadataHandled {
		c.metadataHandled = true
		if c.waitForMedia() && !c.session.metadataReceived.Load() {
			body, err := c.session.Metadata().OnMetaData()
			if err != nil {
				return errors.Wrap(err, "synthesize metadata")
			}
			c.setPending(uint8(DataMessageAMF0), 0, body)
			return nil
		}
	}

	block, err := c.queue.Pop()
	if err != nil {
		return err
	}
	c.setPending(uint8(block.Type), block.Timestamp, block.Data)
	return nil
}

// waitForMedia polls until enough media is queued to describe the stream, the
// peer's own metadata arrived, or the caching delay ran out. It returns false
// if the stream ended with nothing to describe.
func (c *Conn) waitForMedia() bool {
	deadline := time.Now().Add(c.cfg.Caching())
	ticker := time.NewTicker(config.MetadataPollInterval)
	defer ticker.Stop()
	for {
		if c.queue.Len() >= config.MetadataMinBlocks || c.session.metadataReceived.Load() {
			return true
		}
		if c.queue.Woken() || c.session.Dead() {
			return c.queue.Len() > 0
		}
		if !time.Now().Before(deadline) {
			return true
		}
		<-ticker.C
	}
}

// setPending wraps one tag, behind the file header if it is the first.
func (c *Conn) setPending(tagType uint8, timestamp uint32, payload []byte) {
	buf := c.pool.Get(flv.HeaderSize + flv.PreviousTagSizeSize + flv.TagHeaderSize + len(payload))
	if !c.headerSent {
		c.headerSent = true
		md := c.session.Metadata()
		buf = append(buf, flv.Header(md.HasAudio, md.HasVideo)...)
	}
	buf = c.tags.Append(buf, tagType, timestamp, payload)
	c.pending = buf
	c.pendingBlock = buf
}

// acknowledge reports the bytes received so far to the peer after every
// delivery. A peer publishing into us is told its stream started on the first.
func (c *Conn) acknowledge() error {
	if err := c.messageManager.sendBytesRead(); err != nil {
		return err
	}
	if !c.delivered {
		c.delivered = true
		if c.session.role == RolePassive {
			return c.messageManager.sendPublishStart()
		}
	}
	return nil
}

// Write sends an FLV byte stream to the peer. p may split tags anywhere; each
// tag is sent as one message as soon as it is complete. A leading file header
// is skipped.
func (c *Conn) Write(p []byte) (int, error) {
	if c.mode != ModePublish {
		return 0, ErrNotPublishing
	}
	if c.session.Dead() {
		return 0, ErrSessionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	tags, err := c.parser.Feed(p)
	if err != nil {
		return 0, errors.Wrap(err, "parse flv")
	}
	for _, tag := range tags {
		if err := c.messageManager.sendTag(tag); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// WriteTag sends one tag to the peer, the way Write sends each tag it
// completes.
func (c *Conn) WriteTag(tag flv.Tag) error {
	if c.mode != ModePublish {
		return ErrNotPublishing
	}
	if c.session.Dead() {
		return ErrSessionClosed
	}
	return c.messageManager.sendTag(tag)
}

// Seek is not supported: the session is live.
func (c *Conn) Seek(offset int64, whence int) (int64, error) {
	return 0, ErrSeekUnsupported
}

// Close ends the session, closes the connection and waits for the receive
// loop to exit. Blocked Read calls return io.EOF.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.session.kill(ErrSessionClosed)
		c.queue.Wake()
		c.closeErr = c.conn.Close()
		if c.loopDone != nil {
			<-c.loopDone
		}
		c.logger.Debug("connection closed")
	})
	return c.closeErr
}

var (
	_ io.ReadWriteCloser = (*Conn)(nil)
	_ io.Seeker          = (*Conn)(nil)
)
