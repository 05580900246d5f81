package metrics

import (
	"sync"
	"time"
)

// Sample is a single historical data point for one metric
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// RingBuffer implements a capped circular buffer for metric samples;
// overflow evicts the oldest entry.
type RingBuffer struct {
	data     []Sample
	capacity int
	head     int
	size     int
	mu       sync.RWMutex
}

// NewRingBuffer creates a new ring buffer
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{
		data:     make([]Sample, capacity),
		capacity: capacity,
	}
}

// Add appends a new sample, evicting the oldest when full
func (rb *RingBuffer) Add(ts time.Time, value float64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.head] = Sample{Timestamp: ts, Value: value}
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
}

// All returns every sample in chronological order
func (rb *RingBuffer) All() []Sample {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return []Sample{}
	}

	result := make([]Sample, rb.size)
	if rb.size < rb.capacity {
		copy(result, rb.data[:rb.size])
		return result
	}

	idx := 0
	for i := rb.head; i < rb.capacity; i++ {
		result[idx] = rb.data[i]
		idx++
	}
	for i := 0; i < rb.head; i++ {
		result[idx] = rb.data[i]
		idx++
	}
	return result
}

// Recent returns the last n samples in chronological order
func (rb *RingBuffer) Recent(n int) []Sample {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n > rb.size {
		n = rb.size
	}
	if n == 0 {
		return []Sample{}
	}

	result := make([]Sample, n)
	for i := 0; i < n; i++ {
		idx := (rb.head - 1 - i + rb.capacity) % rb.capacity
		result[n-1-i] = rb.data[idx]
	}
	return result
}

// Since returns all samples at or after the cutoff, in chronological order
func (rb *RingBuffer) Since(cutoff time.Time) []Sample {
	all := rb.All()
	for i, s := range all {
		if !s.Timestamp.Before(cutoff) {
			return all[i:]
		}
	}
	return []Sample{}
}

// Average returns the mean value over all samples
func (rb *RingBuffer) Average() float64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.size == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < rb.size; i++ {
		sum += rb.data[i].Value
	}
	return sum / float64(rb.size)
}

// Size returns the current number of samples
func (rb *RingBuffer) Size() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// Clear drops all samples
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head = 0
	rb.size = 0
}

// HistorySet keeps one ring buffer per metric
type HistorySet struct {
	buffers  map[Name]*RingBuffer
	capacity int
	mu       sync.RWMutex
}

// NewHistorySet creates history buffers for all tracked metrics
func NewHistorySet(capacity int) *HistorySet {
	hs := &HistorySet{
		buffers:  make(map[Name]*RingBuffer),
		capacity: capacity,
	}
	for _, name := range AllNames() {
		hs.buffers[name] = NewRingBuffer(capacity)
	}
	return hs
}

// Record appends the current value of every metric in the state vector
func (hs *HistorySet) Record(ts time.Time, state State) {
	hs.mu.RLock()
	defer hs.mu.RUnlock()

	for name, value := range state {
		if buf, ok := hs.buffers[name]; ok {
			buf.Add(ts, value)
		}
	}
}

// Buffer returns the ring buffer for one metric, or nil for unknown names
func (hs *HistorySet) Buffer(name Name) *RingBuffer {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.buffers[name]
}

// Clear drops all history
func (hs *HistorySet) Clear() {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	for _, buf := range hs.buffers {
		buf.Clear()
	}
}
