//go:build usartdebug

package usartx_test

import (
	"testing"

	"github.com/jangala-dev/tinygo-usart/usartx"
)

func TestDebugCounters(t *testing.T) {
	u, p := newTestUnit(t, usartx.Config{Capacity: 4})

	deliver(p, 'a', 'b')
	p.InjectStatus('p', usartx.StatusPERR)
	p.Step()
	deliver(p, 'c', 'd') // 'd' finds the ring full

	s := u.DebugStats()
	if s.RXCCount != 5 || s.RingPuts != 4 || s.RingDrops != 1 {
		t.Fatalf("rxc=%d puts=%d drops=%d; want 5 4 1", s.RXCCount, s.RingPuts, s.RingDrops)
	}
	if s.ErrParity != 1 || s.ErrFraming != 0 || s.ErrOverrun != 0 {
		t.Fatalf("errors parity=%d framing=%d overrun=%d", s.ErrParity, s.ErrFraming, s.ErrOverrun)
	}
	if s.RingMaxUsed != 4 {
		t.Fatalf("RingMaxUsed=%d want 4", s.RingMaxUsed)
	}

	u.SendChar('x')
	drainTX(t, u, p)
	s = u.DebugStats()
	if s.DRECount != 1 || s.DREIdle == 0 {
		t.Fatalf("dre=%d idle=%d", s.DRECount, s.DREIdle)
	}

	r := u.DebugRegs()
	want := usartx.ReceiverEnable | usartx.TransmitterEnable | usartx.RXCInterrupt
	if r.Control != want || !r.DREIF {
		t.Fatalf("regs=%+v want control %#x with DREIF", r, want)
	}

	u.DebugReset()
	if s := u.DebugStats(); s != (usartx.Stats{}) {
		t.Fatalf("after reset: %+v", s)
	}
}
