package usartx

import (
	"math/rand"
	"testing"
)

func newTestRing(t *testing.T, n int) *RingBuffer {
	t.Helper()
	rb, err := NewRingBuffer(n)
	if err != nil {
		t.Fatalf("NewRingBuffer(%d): %v", n, err)
	}
	return rb
}

func TestNewRingBuffer_Capacity(t *testing.T) {
	for _, n := range []int{2, 4, 8, 16, 32, 64, 128} {
		rb := newTestRing(t, n)
		if rb.Size() != n {
			t.Fatalf("Size()=%d want %d", rb.Size(), n)
		}
		if !rb.IsEmpty() || rb.IsFull() {
			t.Fatalf("capacity %d: new ring not empty", n)
		}
	}
	for _, n := range []int{0, 1, 3, 12, 100, 256} {
		if _, err := NewRingBuffer(n); err != ErrInvalidCapacity {
			t.Fatalf("NewRingBuffer(%d) err=%v; want ErrInvalidCapacity", n, err)
		}
	}
}

func TestRingBuffer_FourSlotScenario(t *testing.T) {
	rb := newTestRing(t, 4)
	for _, b := range []byte("ABCD") {
		rb.Insert(b)
	}
	if !rb.IsFull() {
		t.Fatal("want full after 4 inserts")
	}
	if got := rb.Remove(); got != 'A' {
		t.Fatalf("Remove()=%q want 'A'", got)
	}
	if rb.IsFull() || rb.IsEmpty() {
		t.Fatalf("after one remove: full=%v empty=%v", rb.IsFull(), rb.IsEmpty())
	}
	rb.Insert('E')
	var got []byte
	for !rb.IsEmpty() {
		got = append(got, rb.Remove())
	}
	if string(got) != "BCDE" {
		t.Fatalf("got %q want \"BCDE\"", got)
	}
}

func TestRingBuffer_FIFOAcrossWraparound(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{2, 8, 128} {
		rb := newTestRing(t, n)
		var model []byte
		next := byte(0)
		for i := 0; i < 5000; i++ {
			if rng.Intn(2) == 0 && !rb.IsFull() {
				rb.Insert(next)
				model = append(model, next)
				next++
			} else if !rb.IsEmpty() {
				got := rb.Remove()
				if got != model[0] {
					t.Fatalf("cap %d step %d: got %d want %d", n, i, got, model[0])
				}
				model = model[1:]
			}
			if rb.Used() != len(model) {
				t.Fatalf("cap %d: Used()=%d want %d", n, rb.Used(), len(model))
			}
			if rb.IsFull() != (len(model) == n) {
				t.Fatalf("cap %d: IsFull()=%v with %d queued", n, rb.IsFull(), len(model))
			}
			if rb.IsEmpty() != (len(model) == 0) {
				t.Fatalf("cap %d: IsEmpty()=%v with %d queued", n, rb.IsEmpty(), len(model))
			}
		}
	}
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := newTestRing(t, 8)
	rb.Insert(1)
	rb.Insert(2)
	rb.Remove()
	rb.Reset()
	if !rb.IsEmpty() || rb.Used() != 0 {
		t.Fatal("Reset left data behind")
	}
	rb.Insert(9)
	if got := rb.Remove(); got != 9 {
		t.Fatalf("after Reset got %d want 9", got)
	}
}

func TestRingBuffer_Discard(t *testing.T) {
	rb := newTestRing(t, 2)
	rb.Insert('a')
	rb.Insert('b')
	rb.Discard()
	rb.Insert('c')
	if a, b := rb.Remove(), rb.Remove(); a != 'b' || b != 'c' {
		t.Fatalf("got %q%q want \"bc\"", a, b)
	}
}

func TestRingBuffer_MarkNewest(t *testing.T) {
	rb := newTestRing(t, 2)
	rb.Insert(0x01)
	rb.Remove()
	rb.Insert(0x02) // index 1
	rb.Insert(0x04) // wraps to index 0
	rb.MarkNewest(0x40)
	if a, b := rb.Remove(), rb.Remove(); a != 0x02 || b != 0x44 {
		t.Fatalf("got %#02x %#02x want 0x02 0x44", a, b)
	}
}
