package connection

import (
	"errors"
	"testing"
	"time"

	"rdcp/pkg/protocol"
)

func TestQueueOrdering(t *testing.T) {
	queue := NewSendQueue(1 << 20)
	queue.Push(protocol.MsgHeartbeat, []byte{1})
	queue.Push(protocol.MsgScreenData, []byte{2})
	queue.Push(protocol.MsgHeartbeat, []byte{3})

	for want := byte(1); want <= 3; want++ {
		frame, ok := queue.Pop()
		if !ok {
			t.Fatal("queue closed early")
		}
		if frame[0] != want {
			t.Errorf("got frame %d, want %d", frame[0], want)
		}
	}
}

func TestQueueDropsOldestScreenFrames(t *testing.T) {
	queue := NewSendQueue(250)

	control := make([]byte, 100)
	screenA := append(make([]byte, 99), 0xAA)
	screenB := append(make([]byte, 99), 0xBB)
	screenC := append(make([]byte, 99), 0xCC)

	queue.Push(protocol.MsgHeartbeat, control)
	queue.Push(protocol.MsgScreenData, screenA)
	if dropped, _ := queue.Push(protocol.MsgScreenData, screenB); dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}
	if dropped, _ := queue.Push(protocol.MsgScreenData, screenC); dropped != 1 {
		t.Errorf("expected 1 drop, got %d", dropped)
	}
	if queue.DroppedScreenFrames != 2 {
		t.Errorf("drop counter %d, want 2", queue.DroppedScreenFrames)
	}

	// The control frame survives, then only the newest screen frame
	frame, _ := queue.Pop()
	if len(frame) != 100 {
		t.Errorf("first pop should be the control frame")
	}
	frame, _ = queue.Pop()
	if frame[99] != 0xCC {
		t.Errorf("surviving screen frame is %#x, want 0xCC", frame[99])
	}
}

func TestQueueControlNeverDropped(t *testing.T) {
	queue := NewSendQueue(10)

	queue.Push(protocol.MsgHeartbeat, make([]byte, 50))
	if dropped, _ := queue.Push(protocol.MsgHeartbeat, make([]byte, 50)); dropped != 0 {
		t.Errorf("control frames dropped: %d", dropped)
	}
	if queue.QueuedBytes() != 100 {
		t.Errorf("queued bytes %d, want 100", queue.QueuedBytes())
	}
}

func TestQueuePushAfterCloseFails(t *testing.T) {
	queue := NewSendQueue(1 << 20)
	queue.Close()

	_, err := queue.Push(protocol.MsgHeartbeat, []byte{1})
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("push into a closed queue returned %v, want ErrQueueClosed", err)
	}
	if queue.QueuedBytes() != 0 {
		t.Errorf("closed queue accepted bytes")
	}
}

func TestQueueCloseUnblocksPop(t *testing.T) {
	queue := NewSendQueue(1 << 20)

	done := make(chan bool)
	go func() {
		_, ok := queue.Pop()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	queue.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop returned a frame from an empty closed queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked")
	}
}
