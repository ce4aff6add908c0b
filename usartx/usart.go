// usartx/usart.go

// Package usartx provides an interrupt-driven USART driver for AVR-0/1 and
// AVR-Dx class parts with up to six units. Each unit owns a software RX ring
// filled by the receive-complete interrupt and a TX ring drained by the
// data-register-empty interrupt.
//
// SendChar blocks only while the TX ring is full. ReadChar never blocks and
// returns the data byte packed with receive error flags, or NoData. Close
// waits until everything queued has been handed to the hardware and then
// disables the unit.
//
// The register block is reached through Hardware, so the same driver runs
// under TinyGo on target and against package sim in host tests.
package usartx

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"time"
)

// DefaultSettleDelay is the pause Close inserts after the TX path reports
// empty, leaving time for the last character to leave the shift register.
const DefaultSettleDelay = 200 * time.Millisecond

// ErrClosed is returned by blocking helpers when the unit is not running.
var ErrClosed = errors.New("usartx: unit not running")

// OverflowPolicy decides what the receive handler does when the RX ring is full.
type OverflowPolicy uint8

const (
	// OverflowDrop discards the new byte and raises the buffer-overflow flag.
	OverflowDrop OverflowPolicy = iota
	// OverflowOverwrite discards the oldest unread byte without any flag.
	OverflowOverwrite
)

// ErrorMode decides how receive errors are attributed to bytes.
type ErrorMode uint8

const (
	// ErrorsLastWins reports the status of the most recent reception with
	// whatever byte is read next.
	ErrorsLastWins ErrorMode = iota
	// ErrorsPerByte keeps each byte's own status in a parallel ring.
	ErrorsPerByte
)

// Config holds the per-unit build-time choices.
type Config struct {
	// Capacity of each ring, a power of two in 2..128. Zero means DefaultCapacity.
	Capacity int
	// SettleDelay after draining in Close. Zero means DefaultSettleDelay,
	// negative disables it.
	SettleDelay time.Duration
	RxOverflow  OverflowPolicy
	Errors      ErrorMode
	// Pins is invoked once per Init. May be nil.
	Pins PinConfigurer
}

// State is the lifecycle state of a unit.
type State uint32

const (
	Uninitialized State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "uninitialized"
}

// USART is one hardware unit with its software rings and sticky error register.
type USART struct {
	hw  Hardware
	cfg Config

	rx    RingBuffer // filled by HandleRXC
	tx    RingBuffer // drained by HandleDRE
	rxErr RingBuffer // status per queued byte, ErrorsPerByte only

	lastRxError uint8 // RXDATAH of the latest reception, masked
	state       atomic.Uint32
	notify      chan struct{} // coalesced RX readiness

	stats Stats
}

// New returns an uninitialized unit bound to hw.
func New(hw Hardware, cfg Config) (*USART, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if !validCapacity(cfg.Capacity) {
		return nil, ErrInvalidCapacity
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	mask := uint8(cfg.Capacity - 1)
	u := &USART{
		hw:     hw,
		cfg:    cfg,
		notify: make(chan struct{}, 1),
	}
	u.rx.mask = mask
	u.tx.mask = mask
	u.rxErr.mask = mask
	return u, nil
}

// Init resets both rings, runs the pin configuration, programs the baud
// divisor, enables receiver and transmitter and the receive interrupt. The
// DRE interrupt stays off until something is queued.
func (u *USART) Init(divisor uint16) {
	s := u.hw.DisableInterrupts()
	u.rx.Reset()
	u.tx.Reset()
	u.rxErr.Reset()
	u.lastRxError = 0

	if u.cfg.Pins != nil {
		u.cfg.Pins.ConfigurePins()
	}

	u.hw.SetBaud(divisor)
	u.hw.SetControl(ReceiverEnable | TransmitterEnable)
	u.hw.SetControl(RXCInterrupt)
	u.state.Store(uint32(Running))
	u.hw.RestoreInterrupts(s)

	select {
	case <-u.notify:
	default:
	}
}

// SendChar queues c for transmission and arms the DRE interrupt. It spins
// while the TX ring is full, so it must not be called with interrupts masked
// or from an interrupt handler. Calling it before Init or after Close is a
// programming error.
func (u *USART) SendChar(c byte) {
	for u.tx.IsFull() {
		u.dbgSendWait()
		runtime.Gosched()
	}
	u.tx.Insert(c)

	s := u.hw.DisableInterrupts()
	u.hw.SetControl(DREInterrupt)
	u.hw.RestoreInterrupts(s)
}

// SendString sends the first n bytes of p in order.
func (u *USART) SendString(p []byte, n uint8) {
	for i := 0; i < int(n); i++ {
		u.SendChar(p[i])
	}
}

// ReadChar dequeues one received byte without blocking. The result carries the
// receive status bits in its high byte and NoData when the ring was empty.
//
// With ErrorsLastWins the status is that of the latest hardware reception,
// which is only the dequeued byte's own status if the ring is drained promptly.
func (u *USART) ReadChar() uint16 {
	s := u.hw.DisableInterrupts()
	defer u.hw.RestoreInterrupts(s)

	if u.rx.IsEmpty() {
		if u.cfg.Errors == ErrorsPerByte {
			return NoData
		}
		return encode(0, u.lastRxError) | NoData
	}
	b := u.rx.Remove()
	status := u.lastRxError
	if u.cfg.Errors == ErrorsPerByte {
		status = u.rxErr.Remove()
	}
	return encode(b, status)
}

// Flush blocks until the TX ring is empty and the transmit data register has
// been taken by the shifter.
func (u *USART) Flush() error {
	return u.FlushContext(context.Background())
}

// FlushContext is Flush bounded by ctx.
func (u *USART) FlushContext(ctx context.Context) error {
	for !u.txDrained() {
		select {
		case <-ctx.Done():
			u.dbgTimeout()
			return ctx.Err()
		default:
		}
		runtime.Gosched()
	}
	return nil
}

func (u *USART) txDrained() bool {
	if !u.tx.IsEmpty() {
		return false
	}
	s := u.hw.DisableInterrupts()
	empty := u.hw.TxDataEmpty()
	u.hw.RestoreInterrupts(s)
	return empty
}

// Close drains the TX path, waits SettleDelay, and disables receiver,
// transmitter and both interrupts, in that order. The unit is inert until the
// next Init.
func (u *USART) Close() {
	_ = u.Flush()
	if u.cfg.SettleDelay > 0 {
		time.Sleep(u.cfg.SettleDelay)
	}

	s := u.hw.DisableInterrupts()
	u.hw.ClearControl(ReceiverEnable)
	u.hw.ClearControl(TransmitterEnable)
	u.hw.ClearControl(RXCInterrupt)
	u.hw.ClearControl(DREInterrupt)
	u.state.Store(uint32(Uninitialized))
	u.hw.RestoreInterrupts(s)

	// Wake blocked readers so they observe the state change.
	select {
	case u.notify <- struct{}{}:
	default:
	}
}

// State reports whether the unit has been initialized and not closed since.
func (u *USART) State() State { return State(u.state.Load()) }

// Draining reports whether the DRE interrupt is armed.
func (u *USART) Draining() bool {
	s := u.hw.DisableInterrupts()
	on := u.hw.Control()&DREInterrupt != 0
	u.hw.RestoreInterrupts(s)
	return on
}

// Buffered returns the number of received bytes waiting to be read.
func (u *USART) Buffered() int { return u.rx.Used() }

// TxFree returns the free space in the TX ring.
func (u *USART) TxFree() int { return u.tx.Size() - u.tx.Used() }

// Capacity returns the ring size configured for this unit.
func (u *USART) Capacity() int { return u.tx.Size() }
