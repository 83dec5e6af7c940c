package rtmp

import (
	"io"
	"sync"

	"github.com/torresjeff/rtmpflv/audio"
	"github.com/torresjeff/rtmpflv/config"
	"github.com/torresjeff/rtmpflv/flv"
	"github.com/torresjeff/rtmpflv/video"
	"go.uber.org/zap"
)

// A subscriber gets sent the tags that flow in a particular stream (identified
// with streamKey)
type Subscriber interface {
	SendTag(tag flv.Tag) error
	GetID() string
	SendEndOfStream()
}

// Broadcaster relays the stream of every peer publishing to a Server to the
// peers playing the same stream key. Its Serve method is a Handler.
type Broadcaster struct {
	context ContextStore
	logger  *zap.Logger
}

func NewBroadcaster(context ContextStore, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		context: context,
		logger:  logger,
	}
}

func (b *Broadcaster) RegisterPublisher(streamKey string) error {
	return b.context.RegisterPublisher(streamKey)
}

// DestroyPublisher ends the stream for all of its subscribers and forgets it.
func (b *Broadcaster) DestroyPublisher(streamKey string) error {
	b.BroadcastEndOfStream(streamKey)
	return b.context.DestroyPublisher(streamKey)
}

// RegisterSubscriber sends the stream's cached metadata and sequence headers
// to subscriber, then adds it to the stream.
func (b *Broadcaster) RegisterSubscriber(streamKey string, subscriber Subscriber) error {
	if !b.context.StreamExists(streamKey) {
		return b.context.RegisterSubscriber(streamKey, subscriber)
	}
	for _, tag := range b.context.GetStartupTagsForPublisher(streamKey) {
		if err := subscriber.SendTag(tag); err != nil {
			return err
		}
	}
	return b.context.RegisterSubscriber(streamKey, subscriber)
}

func (b *Broadcaster) DestroySubscriber(streamKey string, sessionID string) error {
	return b.context.DestroySubscriber(streamKey, sessionID)
}

func (b *Broadcaster) StreamExists(streamKey string) bool {
	return b.context.StreamExists(streamKey)
}

// Broadcast sends tag to every subscriber of streamKey. Metadata and sequence
// headers are remembered for subscribers that join later. A subscriber that
// fails to take the tag is dropped.
func (b *Broadcaster) Broadcast(streamKey string, tag flv.Tag) error {
	switch {
	case tag.Type == flv.TagScript:
		b.context.SetMetadataForPublisher(streamKey, tag)
	case tag.Type == flv.TagVideo && video.IsAVCSequenceHeader(tag.Data):
		b.context.SetAvcSequenceHeaderForPublisher(streamKey, tag)
	case tag.Type == flv.TagAudio && audio.IsAACSequenceHeader(tag.Data):
		b.context.SetAacSequenceHeaderForPublisher(streamKey, tag)
	}

	subscribers, err := b.context.GetSubscribersForStream(streamKey)
	if err != nil {
		return err
	}
	for _, sub := range subscribers {
		if err := sub.SendTag(tag); err != nil {
			b.logger.Warn("dropping subscriber", zap.String("stream", streamKey), zap.String("session", sub.GetID()), zap.Error(err))
			b.context.DestroySubscriber(streamKey, sub.GetID())
		}
	}
	return nil
}

func (b *Broadcaster) BroadcastEndOfStream(streamKey string) {
	subscribers, err := b.context.GetSubscribersForStream(streamKey)
	if err != nil {
		b.logger.Debug("no subscribers to end", zap.String("stream", streamKey), zap.Error(err))
		return
	}
	for _, sub := range subscribers {
		sub.SendEndOfStream()
	}
}

// Serve relays c: a peer that publishes becomes the source of its stream key,
// a peer that plays subscribes to it.
func (b *Broadcaster) Serve(c *Conn) {
	switch c.Mode() {
	case ModePlay:
		b.servePublisher(c)
	case ModePublish:
		b.serveSubscriber(c)
	}
}

func (b *Broadcaster) servePublisher(c *Conn) {
	streamKey := c.Session().PublishName()
	logger := c.logger.With(zap.String("stream", streamKey))
	if err := b.RegisterPublisher(streamKey); err != nil {
		logger.Warn("refusing publisher", zap.Error(err))
		return
	}
	defer b.DestroyPublisher(streamKey)
	logger.Info("relaying stream")

	parser := flv.NewParser()
	buf := make([]byte, config.BuffioSize)
	for {
		n, err := c.Read(buf)
		if n > 0 {
			tags, perr := parser.Feed(buf[:n])
			if perr != nil {
				logger.Error("publisher sent an unreadable stream", zap.Error(perr))
				return
			}
			for _, tag := range tags {
				if err := b.Broadcast(streamKey, tag); err != nil {
					logger.Error("broadcast failed", zap.Error(err))
					return
				}
			}
		}
		if err == io.EOF {
			logger.Info("publisher ended the stream")
			return
		}
		if err != nil {
			logger.Error("reading from publisher failed", zap.Error(err))
			return
		}
	}
}

func (b *Broadcaster) serveSubscriber(c *Conn) {
	streamKey := c.Session().Media()
	sub := newConnSubscriber(c)
	if err := b.RegisterSubscriber(streamKey, sub); err != nil {
		c.logger.Warn("cannot subscribe", zap.String("stream", streamKey), zap.Error(err))
		sub.SendEndOfStream()
		return
	}
	defer b.DestroySubscriber(streamKey, sub.GetID())

	select {
	case <-sub.done:
	case <-c.Session().Done():
	}
}

// connSubscriber feeds a relayed stream to a peer playing from us.
type connSubscriber struct {
	conn *Conn
	done chan struct{}
	once sync.Once
}

func newConnSubscriber(c *Conn) *connSubscriber {
	return &connSubscriber{conn: c, done: make(chan struct{})}
}

func (s *connSubscriber) SendTag(tag flv.Tag) error {
	return s.conn.WriteTag(tag)
}

func (s *connSubscriber) GetID() string {
	return s.conn.Session().GetID()
}

// SendEndOfStream tells the peer its stream stopped. The peer is expected to
// close the connection.
func (s *connSubscriber) SendEndOfStream() {
	s.once.Do(func() {
		if err := s.conn.messageManager.sendPlayStop(s.conn.Session().Media()); err != nil {
			s.conn.logger.Debug("could not send end of stream", zap.Error(err))
		}
		close(s.done)
	})
}
