// Package sim models an AVR USART register block and the wire attached to it,
// so usartx can run on a host.
//
// A Port holds one mutex that plays the role of the global interrupt flag.
// DisableInterrupts takes it, and Service holds it while calling the attached
// handlers, so a handler never overlaps a foreground critical section, as on
// a single-core MCU. Register methods assume the mutex is held.
//
// Time is explicit: Tick advances one character time (the transmitter shifts
// out one byte and the receiver samples one byte from the line) and Service
// dispatches every pending enabled interrupt. Run does both in the background.
package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jangala-dev/tinygo-usart/internal/log"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

// DefaultRxDepth is the hardware receive buffer depth of AVR-0/1 parts.
const DefaultRxDepth = 2

// maxDispatch bounds one Service call so a handler that never clears its
// condition cannot hang the caller.
const maxDispatch = 1024

// ISR is the pair of handlers a Port dispatches to. *usartx.USART satisfies it.
type ISR interface {
	HandleRXC()
	HandleDRE()
}

type frame struct {
	data   uint8
	status uint8
}

// Option configures a Port.
type Option func(*Port)

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Port) { p.log = l }
}

// WithRxDepth sets the hardware receive buffer depth.
func WithRxDepth(n int) Option {
	return func(p *Port) {
		if n > 0 {
			p.rxDepth = n
		}
	}
}

// Port is one simulated USART.
type Port struct {
	mu        sync.Mutex // global interrupt flag
	lineMu    sync.Mutex // guards line; taken after mu, never before
	deliverMu sync.Mutex // orders sink delivery
	name      string
	log       *slog.Logger
	rxDepth   int

	isr  ISR
	baud uint16
	ctrl usartx.Control
	pins int

	line    []frame // on the wire, not yet sampled
	rxbuf   []frame // hardware receive buffer
	overrun int

	txdata   uint8
	txFull   bool // TXDATA occupied, DREIF clear
	shift    uint8
	shifting bool
	lost     int // writes while TXDATA was occupied or TX disabled

	wire  []byte
	out   []byte // shifted out since the last delivery
	sinks []func(byte)

	kick chan struct{}
}

var (
	_ usartx.Hardware      = (*Port)(nil)
	_ usartx.PinConfigurer = (*Port)(nil)
)

// New returns an idle, disabled port.
func New(name string, opts ...Option) *Port {
	p := &Port{
		name:    name,
		rxDepth: DefaultRxDepth,
		kick:    make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	if p.log == nil {
		p.log = log.For(log.ComponentSim)
	}
	p.log = p.log.With("port", name)
	return p
}

// Name returns the name given to New.
func (p *Port) Name() string { return p.name }

// Attach installs the interrupt handlers, like filling the vector table.
func (p *Port) Attach(isr ISR) {
	p.mu.Lock()
	p.isr = isr
	p.mu.Unlock()
}

// ---------------- usartx.Hardware ----------------

func (p *Port) SetBaud(divisor uint16) {
	p.baud = divisor
	p.log.Debug("baud", "divisor", divisor)
}

func (p *Port) SetControl(c usartx.Control) {
	p.ctrl |= c
	if c&(usartx.RXCInterrupt|usartx.DREInterrupt) != 0 {
		select {
		case p.kick <- struct{}{}:
		default:
		}
	}
}

func (p *Port) ClearControl(c usartx.Control) {
	if c&usartx.TransmitterEnable != 0 && p.ctrl&usartx.TransmitterEnable != 0 {
		// The transmitter finishes pending characters before it stops.
		for p.shifting {
			p.shiftOut()
		}
	}
	if c&usartx.ReceiverEnable != 0 && p.ctrl&usartx.ReceiverEnable != 0 {
		// Disabling the receiver flushes its buffer.
		p.rxbuf = p.rxbuf[:0]
	}
	p.ctrl &^= c
}

func (p *Port) Control() usartx.Control { return p.ctrl }

func (p *Port) ReadData() (data, status uint8) {
	if len(p.rxbuf) == 0 {
		return 0, 0
	}
	f := p.rxbuf[0]
	p.rxbuf = p.rxbuf[1:]
	return f.data, f.status | usartx.StatusRXCIF
}

func (p *Port) WriteData(b uint8) {
	switch {
	case p.ctrl&usartx.TransmitterEnable == 0:
		p.lost++
		p.log.Warn("write with transmitter disabled", "byte", b)
	case p.txFull:
		p.lost++
		p.log.Warn("write while DREIF clear", "byte", b)
	case !p.shifting:
		p.shift, p.shifting = b, true
	default:
		p.txdata, p.txFull = b, true
	}
}

func (p *Port) TxDataEmpty() bool { return !p.txFull }

func (p *Port) DisableInterrupts() usartx.InterruptState {
	p.mu.Lock()
	return 0
}

func (p *Port) RestoreInterrupts(usartx.InterruptState) {
	p.unlock()
}

// ConfigurePins counts pin setups; Init calls it with interrupts masked.
func (p *Port) ConfigurePins() { p.pins++ }

// ---------------- wire side ----------------

// Inject puts error-free characters on the line towards the receiver.
func (p *Port) Inject(data ...byte) {
	p.lineMu.Lock()
	for _, b := range data {
		p.line = append(p.line, frame{data: b})
	}
	p.lineMu.Unlock()
}

// InjectStatus puts one character on the line that the receiver will flag
// with status (StatusPERR, StatusFERR).
func (p *Port) InjectStatus(b, status uint8) {
	p.lineMu.Lock()
	p.line = append(p.line, frame{data: b, status: status})
	p.lineMu.Unlock()
}

// Tick advances the port by one character time.
func (p *Port) Tick() {
	p.mu.Lock()
	if p.shifting {
		p.shiftOut()
	}
	p.lineMu.Lock()
	var f frame
	arrived := len(p.line) > 0
	if arrived {
		f = p.line[0]
		p.line = p.line[1:]
	}
	p.lineMu.Unlock()
	if arrived {
		p.sample(f)
	}
	p.unlock()
}

// Service runs every pending enabled interrupt until none is left. It reports
// how many handlers ran.
func (p *Port) Service() int {
	p.mu.Lock()
	n := p.dispatch()
	p.unlock()
	return n
}

// Step is Tick followed by Service.
func (p *Port) Step() int {
	p.Tick()
	return p.Service()
}

// Run steps the port every charTime and services interrupts as soon as the
// driver arms one, until ctx is done.
func (p *Port) Run(ctx context.Context, charTime time.Duration) error {
	if charTime <= 0 {
		charTime = time.Millisecond
	}
	t := time.NewTicker(charTime)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.Step()
		case <-p.kick:
			p.Service()
		}
	}
}

// OnTransmit registers fn to receive every byte leaving the shift register.
// fn runs without the port lock held.
func (p *Port) OnTransmit(fn func(byte)) {
	p.mu.Lock()
	p.sinks = append(p.sinks, fn)
	p.mu.Unlock()
}

// Transmitted returns a copy of every byte sent on the wire so far.
func (p *Port) Transmitted() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.wire...)
}

// TakeTransmitted returns and forgets the bytes sent so far.
func (p *Port) TakeTransmitted() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	w := p.wire
	p.wire = nil
	return w
}

// Connect cross-wires two ports: a's TX feeds b's RX and the other way round.
func Connect(a, b *Port) {
	a.OnTransmit(func(c byte) { b.Inject(c) })
	b.OnTransmit(func(c byte) { a.Inject(c) })
}

// Loopback wires p's TX back into its own RX.
func Loopback(p *Port) {
	p.OnTransmit(func(c byte) { p.Inject(c) })
}

// Snapshot is a consistent copy of the port state for inspection.
type Snapshot struct {
	Baud       uint16
	Control    usartx.Control
	DREIF      bool
	Shifting   bool
	RxBuffered int
	Line       int
	Overruns   int
	LostWrites int
	Pins       int
}

// Idle reports whether nothing is waiting to be sent or received.
func (s Snapshot) Idle() bool {
	return s.DREIF && !s.Shifting && s.RxBuffered == 0 && s.Line == 0
}

func (p *Port) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lineMu.Lock()
	line := len(p.line)
	p.lineMu.Unlock()
	return Snapshot{
		Baud:       p.baud,
		Control:    p.ctrl,
		DREIF:      !p.txFull,
		Shifting:   p.shifting,
		RxBuffered: len(p.rxbuf),
		Line:       line,
		Overruns:   p.overrun,
		LostWrites: p.lost,
		Pins:       p.pins,
	}
}

// ---------------- internals (lock held) ----------------

func (p *Port) shiftOut() {
	p.wire = append(p.wire, p.shift)
	p.out = append(p.out, p.shift)
	if p.txFull {
		p.shift, p.txFull = p.txdata, false
		return
	}
	p.shifting = false
}

func (p *Port) sample(f frame) {
	if p.ctrl&usartx.ReceiverEnable == 0 {
		return
	}
	if len(p.rxbuf) >= p.rxDepth {
		// The new character is lost; the hardware flags the newest buffered one.
		p.rxbuf[len(p.rxbuf)-1].status |= usartx.StatusBUFOVF
		p.overrun++
		p.log.Debug("receive overrun", "byte", f.data)
		return
	}
	p.rxbuf = append(p.rxbuf, f)
}

func (p *Port) dispatch() int {
	if p.isr == nil {
		return 0
	}
	n := 0
	for n < maxDispatch {
		switch {
		case p.ctrl&usartx.RXCInterrupt != 0 && len(p.rxbuf) > 0:
			p.isr.HandleRXC()
		case p.ctrl&usartx.DREInterrupt != 0 && !p.txFull:
			p.isr.HandleDRE()
		default:
			return n
		}
		n++
	}
	p.log.Warn("interrupt storm", "dispatched", n)
	return n
}

// unlock releases the mutex and delivers shifted bytes to the sinks.
// deliverMu is taken before mu is released so batches reach the sinks in
// the order they left the shifter.
func (p *Port) unlock() {
	out := p.out
	p.out = nil
	if len(out) == 0 {
		p.mu.Unlock()
		return
	}
	sinks := p.sinks
	p.deliverMu.Lock()
	p.mu.Unlock()
	defer p.deliverMu.Unlock()
	for _, b := range out {
		for _, fn := range sinks {
			fn(b)
		}
	}
}
