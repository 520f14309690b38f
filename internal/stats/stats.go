// Traffic and frame-rate accounting surfaced through StatusUpdate frames
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pbnjay/memory"

	"rdcp/internal/calc"
	"rdcp/pkg/protocol"
)

const frameRingSize = 120 // bounded ring of recent frame timestamps

// Shared between the I/O thread and the status reporter; counters are
// atomic, the frame ring sits behind its own mutex
type Collector struct {
	bytesRx atomic.Uint64
	bytesTx atomic.Uint64

	mu         sync.Mutex
	frameTimes []time.Time
	ringNext   int
}

func NewCollector() (collector *Collector) {
	collector = &Collector{
		frameTimes: make([]time.Time, 0, frameRingSize),
	}
	return
}

func (collector *Collector) AddRx(n int) {
	collector.bytesRx.Add(uint64(n))
}

func (collector *Collector) AddTx(n int) {
	collector.bytesTx.Add(uint64(n))
}

// Records one delivered screen frame for rate measurement
func (collector *Collector) FrameDelivered() {
	collector.mu.Lock()
	defer collector.mu.Unlock()

	now := time.Now()
	if len(collector.frameTimes) < frameRingSize {
		collector.frameTimes = append(collector.frameTimes, now)
		return
	}
	collector.frameTimes[collector.ringNext] = now
	collector.ringNext = (collector.ringNext + 1) % frameRingSize
}

// Frames delivered within the trailing second
func (collector *Collector) FPS() (fps uint16) {
	collector.mu.Lock()
	defer collector.mu.Unlock()

	cutoff := time.Now().Add(-time.Second)
	count := 0
	for _, stamp := range collector.frameTimes {
		if stamp.After(cutoff) {
			count++
		}
	}
	fps = uint16(count)
	return
}

// Trimmed mean of the gaps between recent frames in milliseconds.
// Outlier gaps from stalls or reconnects are dropped so the number
// reflects steady-state pacing. Zero until two frames have arrived.
func (collector *Collector) FrameIntervalMs() (interval float64) {
	collector.mu.Lock()
	defer collector.mu.Unlock()

	if len(collector.frameTimes) < 2 {
		return
	}

	// Restore chronological order from the ring
	ordered := make([]time.Time, 0, len(collector.frameTimes))
	if len(collector.frameTimes) == frameRingSize {
		ordered = append(ordered, collector.frameTimes[collector.ringNext:]...)
		ordered = append(ordered, collector.frameTimes[:collector.ringNext]...)
	} else {
		ordered = append(ordered, collector.frameTimes...)
	}

	gaps := make([]float64, 0, len(ordered)-1)
	for i := 1; i < len(ordered); i++ {
		gaps = append(gaps, float64(ordered[i].Sub(ordered[i-1]).Microseconds())/1000.0)
	}

	interval = calc.TrimmedMeanFloat64(gaps, 0.1)
	return
}

// Builds the wire status record from current counters.
// Memory is used system memory in MiB; CPU sampling is not wired and
// reports zero.
func (collector *Collector) Snapshot(status uint8) (rec protocol.StatusUpdate) {
	usedMiB := (memory.TotalMemory() - memory.FreeMemory()) / (1024 * 1024)

	rec = protocol.StatusUpdate{
		Status:  status,
		BytesRx: uint32(collector.bytesRx.Load()),
		BytesTx: uint32(collector.bytesTx.Load()),
		FPS:     collector.FPS(),
		Memory:  uint32(usedMiB),
	}
	return
}
