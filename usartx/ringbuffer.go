// usartx/ringbuffer.go

package usartx

import "sync/atomic"

// MaxCapacity is the size of the backing array of every RingBuffer.
const MaxCapacity = 128

// DefaultCapacity is used when Config.Capacity is zero.
const DefaultCapacity = 32

// RingBuffer is a fixed-capacity byte queue shared by exactly one producer and
// one consumer that may preempt each other (foreground and interrupt handler).
//
// Each index is written only by its own side. The occupancy counter is the
// single field touched by both and is updated atomically, so IsFull/IsEmpty
// never observe a half-applied increment.
type RingBuffer struct {
	buf  [MaxCapacity]byte
	mask uint8
	in   uint8 // producer
	out  uint8 // consumer
	used atomic.Uint32
}

// NewRingBuffer returns an empty ring of capacity n. n must be a power of two
// between 2 and MaxCapacity; indices wrap with a bitmask.
func NewRingBuffer(n int) (*RingBuffer, error) {
	if !validCapacity(n) {
		return nil, ErrInvalidCapacity
	}
	return &RingBuffer{mask: uint8(n - 1)}, nil
}

func validCapacity(n int) bool {
	return n >= 2 && n <= MaxCapacity && n&(n-1) == 0
}

// Reset empties the ring. Only call it while the other side is quiescent.
func (rb *RingBuffer) Reset() {
	rb.in = 0
	rb.out = 0
	rb.used.Store(0)
}

// Size returns the capacity in bytes.
func (rb *RingBuffer) Size() int { return int(rb.mask) + 1 }

// Used returns the number of unread bytes.
func (rb *RingBuffer) Used() int { return int(rb.used.Load()) }

// IsFull reports whether another Insert would overwrite unread data.
func (rb *RingBuffer) IsFull() bool { return rb.used.Load() == uint32(rb.mask)+1 }

// IsEmpty reports whether there is nothing to Remove.
func (rb *RingBuffer) IsEmpty() bool { return rb.used.Load() == 0 }

// Insert appends b. The caller must have checked !IsFull().
func (rb *RingBuffer) Insert(b byte) {
	rb.buf[rb.in] = b // 1) write data
	rb.in = (rb.in + 1) & rb.mask
	rb.used.Add(1) // 2) publish
}

// Remove takes the oldest byte. The caller must have checked !IsEmpty().
func (rb *RingBuffer) Remove() byte {
	b := rb.buf[rb.out] // 1) read current element
	rb.out = (rb.out + 1) & rb.mask
	rb.used.Add(^uint32(0)) // 2) publish consumption
	return b
}

// MarkNewest ORs bits into the most recently inserted byte. The caller must
// have checked !IsEmpty().
func (rb *RingBuffer) MarkNewest(bits byte) {
	rb.buf[(rb.in-1)&rb.mask] |= bits
}

// Discard drops the oldest byte from the producer side to make room. Both
// sides touch the read index here, so the consumer must run with interrupts
// masked whenever a producer may call Discard.
func (rb *RingBuffer) Discard() {
	rb.out = (rb.out + 1) & rb.mask
	rb.used.Add(^uint32(0))
}
