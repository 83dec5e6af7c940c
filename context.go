package rtmp

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/torresjeff/rtmpflv/flv"
)

// ContextStore keeps track of the streams being relayed: who publishes each
// stream key, who plays it, and the tags a late player needs before it can
// decode anything.
type ContextStore interface {
	RegisterPublisher(streamKey string) error
	DestroyPublisher(streamKey string) error
	RegisterSubscriber(streamKey string, subscriber Subscriber) error
	GetSubscribersForStream(streamKey string) ([]Subscriber, error)
	DestroySubscriber(streamKey string, sessionID string) error
	StreamExists(streamKey string) bool
	SetMetadataForPublisher(streamKey string, tag flv.Tag)
	SetAvcSequenceHeaderForPublisher(streamKey string, tag flv.Tag)
	SetAacSequenceHeaderForPublisher(streamKey string, tag flv.Tag)
	// GetStartupTagsForPublisher returns the cached metadata, video and audio
	// sequence header tags, in that order, skipping the ones not seen yet.
	GetStartupTagsForPublisher(streamKey string) []flv.Tag
}

var ErrStreamNotFound = errors.New("stream not found")
var ErrStreamAlreadyPublished = errors.New("stream is already being published")

type startupTags struct {
	metadata          *flv.Tag
	avcSequenceHeader *flv.Tag
	aacSequenceHeader *flv.Tag
}

type InMemoryContext struct {
	subMutex    sync.RWMutex
	subscribers map[string][]Subscriber
	seqMutex    sync.RWMutex
	startup     map[string]*startupTags
}

func NewInMemoryContext() *InMemoryContext {
	return &InMemoryContext{
		subscribers: make(map[string][]Subscriber),
		startup:     make(map[string]*startupTags),
	}
}

func (c *InMemoryContext) RegisterPublisher(streamKey string) error {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	if _, exists := c.subscribers[streamKey]; exists {
		return errors.Wrap(ErrStreamAlreadyPublished, streamKey)
	}
	// Assume there will be a small amount of subscribers
	c.subscribers[streamKey] = make([]Subscriber, 0, 5)

	c.seqMutex.Lock()
	c.startup[streamKey] = &startupTags{}
	c.seqMutex.Unlock()
	return nil
}

func (c *InMemoryContext) DestroyPublisher(streamKey string) error {
	c.subMutex.Lock()
	delete(c.subscribers, streamKey)
	c.subMutex.Unlock()

	c.seqMutex.Lock()
	delete(c.startup, streamKey)
	c.seqMutex.Unlock()
	return nil
}

func (c *InMemoryContext) RegisterSubscriber(streamKey string, subscriber Subscriber) error {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	if _, exists := c.subscribers[streamKey]; exists {
		c.subscribers[streamKey] = append(c.subscribers[streamKey], subscriber)
		return nil
	}
	return errors.Wrap(ErrStreamNotFound, streamKey)
}

func (c *InMemoryContext) StreamExists(streamKey string) bool {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	_, exists := c.subscribers[streamKey]
	return exists
}

// GetSubscribersForStream returns a copy of the subscriber list, so callers
// may send to it without holding the lock.
func (c *InMemoryContext) GetSubscribersForStream(streamKey string) ([]Subscriber, error) {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	subscribers, exists := c.subscribers[streamKey]
	if !exists {
		return nil, errors.Wrap(ErrStreamNotFound, streamKey)
	}
	out := make([]Subscriber, len(subscribers))
	copy(out, subscribers)
	return out, nil
}

func (c *InMemoryContext) DestroySubscriber(streamKey string, sessionID string) error {
	c.subMutex.Lock()
	defer c.subMutex.Unlock()
	subscribers, exists := c.subscribers[streamKey]
	if !exists {
		return nil
	}
	for i, sub := range subscribers {
		if sub.GetID() == sessionID {
			// Swap with the last element, order doesn't matter
			last := len(subscribers) - 1
			subscribers[i] = subscribers[last]
			c.subscribers[streamKey] = subscribers[:last]
			return nil
		}
	}
	return nil
}

func (c *InMemoryContext) setStartupTag(streamKey string, set func(*startupTags)) {
	c.seqMutex.Lock()
	defer c.seqMutex.Unlock()
	if tags, exists := c.startup[streamKey]; exists {
		set(tags)
	}
}

func (c *InMemoryContext) SetMetadataForPublisher(streamKey string, tag flv.Tag) {
	c.setStartupTag(streamKey, func(s *startupTags) { s.metadata = &tag })
}

func (c *InMemoryContext) SetAvcSequenceHeaderForPublisher(streamKey string, tag flv.Tag) {
	c.setStartupTag(streamKey, func(s *startupTags) { s.avcSequenceHeader = &tag })
}

func (c *InMemoryContext) SetAacSequenceHeaderForPublisher(streamKey string, tag flv.Tag) {
	c.setStartupTag(streamKey, func(s *startupTags) { s.aacSequenceHeader = &tag })
}

func (c *InMemoryContext) GetStartupTagsForPublisher(streamKey string) []flv.Tag {
	c.seqMutex.RLock()
	defer c.seqMutex.RUnlock()
	s, exists := c.startup[streamKey]
	if !exists {
		return nil
	}
	var tags []flv.Tag
	for _, tag := range []*flv.Tag{s.metadata, s.avcSequenceHeader, s.aacSequenceHeader} {
		if tag != nil {
			tags = append(tags, *tag)
		}
	}
	return tags
}
