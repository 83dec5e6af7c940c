package rtmp

import (
	"io"
	"sync"

	"go.uber.org/atomic"
)

// Block is one media message waiting to be handed to the reader. It is
// wrapped into an FLV tag only when popped, so tags are numbered in delivery
// order.
type Block struct {
	Type      MessageType
	Timestamp uint32
	Data      []byte
}

// MediaQueue is the bounded FIFO between the receive loop and Read. There is
// one producer and one consumer.
type MediaQueue struct {
	blocks chan *Block
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

func NewMediaQueue(size int) *MediaQueue {
	if size < 1 {
		size = 1
	}
	return &MediaQueue{
		blocks: make(chan *Block, size),
		done:   make(chan struct{}),
	}
}

// Push appends b, blocking while the queue is full. It returns ErrQueueClosed
// once the queue has been woken.
func (q *MediaQueue) Push(b *Block) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.blocks <- b:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Pop removes the oldest block, blocking while the queue is empty. After Wake,
// blocks already queued are still returned; then Pop returns io.EOF.
func (q *MediaQueue) Pop() (*Block, error) {
	select {
	case b := <-q.blocks:
		return b, nil
	default:
	}
	select {
	case b := <-q.blocks:
		return b, nil
	case <-q.done:
		select {
		case b := <-q.blocks:
			return b, nil
		default:
			return nil, io.EOF
		}
	}
}

// Wake releases every blocked Push and Pop. It is safe to call more than once.
func (q *MediaQueue) Wake() {
	q.once.Do(func() {
		q.closed.Store(true)
		close(q.done)
	})
}

// Woken reports whether Wake has been called.
func (q *MediaQueue) Woken() bool {
	return q.closed.Load()
}

// Len returns the number of queued blocks.
func (q *MediaQueue) Len() int {
	return len(q.blocks)
}

// BlockPool recycles delivered byte blocks. At most max empty blocks are kept;
// anything returned beyond that is left to the garbage collector.
type BlockPool struct {
	free      chan []byte
	blockSize int
}

func NewBlockPool(max, blockSize int) *BlockPool {
	return &BlockPool{
		free:      make(chan []byte, max),
		blockSize: blockSize,
	}
}

// Get returns an empty block with room for at least n bytes.
func (p *BlockPool) Get(n int) []byte {
	for {
		select {
		case b := <-p.free:
			if cap(b) >= n {
				return b[:0]
			}
			// too small for this caller, drop it
		default:
			if n < p.blockSize {
				n = p.blockSize
			}
			return make([]byte, 0, n)
		}
	}
}

// Put hands b back for reuse.
func (p *BlockPool) Put(b []byte) {
	if b == nil {
		return
	}
	select {
	case p.free <- b[:0]:
	default:
	}
}

// Len returns the number of blocks waiting for reuse.
func (p *BlockPool) Len() int {
	return len(p.free)
}
