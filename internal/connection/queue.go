package connection

import (
	"errors"
	"sync"

	"rdcp/pkg/protocol"
)

var ErrQueueClosed = errors.New("send queue closed")

type queuedFrame struct {
	msgType uint32
	frame   []byte
}

// Bounded outbound queue. When total queued bytes pass the high-water
// mark, the oldest SCREEN_DATA frames are discarded until the queue is
// back under the mark; control frames are never dropped.
type SendQueue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []queuedFrame
	bytes     int
	highWater int
	closed    bool

	DroppedScreenFrames int
}

func NewSendQueue(highWater int) (queue *SendQueue) {
	queue = &SendQueue{highWater: highWater}
	queue.cond = sync.NewCond(&queue.mu)
	return
}

// Enqueues one encoded frame and applies the backpressure policy.
// Returns how many screen frames were discarded to make room; pushing
// after Close fails so senders can observe the dead connection.
func (queue *SendQueue) Push(msgType uint32, frame []byte) (dropped int, err error) {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	if queue.closed {
		err = ErrQueueClosed
		return
	}

	queue.items = append(queue.items, queuedFrame{msgType: msgType, frame: frame})
	queue.bytes += len(frame)

	for queue.bytes > queue.highWater {
		idx := -1
		for i, item := range queue.items {
			if item.msgType == protocol.MsgScreenData {
				idx = i
				break
			}
		}
		if idx < 0 {
			// Nothing droppable left; control traffic rides it out
			break
		}
		queue.bytes -= len(queue.items[idx].frame)
		queue.items = append(queue.items[:idx], queue.items[idx+1:]...)
		queue.DroppedScreenFrames++
		dropped++
	}

	queue.cond.Signal()
	return
}

// Blocks until a frame is available or the queue is closed
func (queue *SendQueue) Pop() (frame []byte, ok bool) {
	queue.mu.Lock()
	defer queue.mu.Unlock()

	for len(queue.items) == 0 && !queue.closed {
		queue.cond.Wait()
	}
	if len(queue.items) == 0 {
		return
	}

	frame = queue.items[0].frame
	queue.items = queue.items[1:]
	queue.bytes -= len(frame)
	ok = true
	return
}

// Total bytes currently queued
func (queue *SendQueue) QueuedBytes() (n int) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	n = queue.bytes
	return
}

// Closes the queue and wakes any blocked Pop. Idempotent.
func (queue *SendQueue) Close() {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	queue.closed = true
	queue.cond.Broadcast()
}
