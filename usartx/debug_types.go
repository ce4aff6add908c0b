//go:build usartdebug

package usartx

import "sync/atomic"

// Stats holds counters since the last reset.
type Stats struct {
	// ISR-level
	RXCCount uint32 // receive-complete entries
	DRECount uint32 // data-register-empty entries that wrote a byte
	DREIdle  uint32 // data-register-empty entries that disarmed the interrupt

	// Per-byte error flags from RXDATAH
	ErrOverrun uint32 // BUFOVF
	ErrParity  uint32 // PERR
	ErrFraming uint32 // FERR

	// Ring buffer
	RingPuts    uint32 // bytes stored in the RX ring
	RingDrops   uint32 // bytes lost to a full RX ring
	RingMaxUsed uint32 // high-water mark of RX occupancy

	// Foreground
	SendWaits     uint32 // SendChar spins on a full TX ring
	ReadWaits     uint32 // times a blocking read had to wait
	SpuriousWakes uint32 // notify received but no data available
	Timeouts      uint32 // context expiries in blocking helpers
}

func (u *USART) DebugReset() {
	s := u.hw.DisableInterrupts()
	u.stats = Stats{}
	u.hw.RestoreInterrupts(s)
}

func (u *USART) DebugStats() Stats {
	return Stats{
		RXCCount: atomic.LoadUint32(&u.stats.RXCCount),
		DRECount: atomic.LoadUint32(&u.stats.DRECount),
		DREIdle:  atomic.LoadUint32(&u.stats.DREIdle),

		ErrOverrun: atomic.LoadUint32(&u.stats.ErrOverrun),
		ErrParity:  atomic.LoadUint32(&u.stats.ErrParity),
		ErrFraming: atomic.LoadUint32(&u.stats.ErrFraming),

		RingPuts:    atomic.LoadUint32(&u.stats.RingPuts),
		RingDrops:   atomic.LoadUint32(&u.stats.RingDrops),
		RingMaxUsed: atomic.LoadUint32(&u.stats.RingMaxUsed),

		SendWaits:     atomic.LoadUint32(&u.stats.SendWaits),
		ReadWaits:     atomic.LoadUint32(&u.stats.ReadWaits),
		SpuriousWakes: atomic.LoadUint32(&u.stats.SpuriousWakes),
		Timeouts:      atomic.LoadUint32(&u.stats.Timeouts),
	}
}

// Regs is a snapshot of the unit's control state.
type Regs struct {
	Control Control
	DREIF   bool
}

func (u *USART) DebugRegs() Regs {
	s := u.hw.DisableInterrupts()
	defer u.hw.RestoreInterrupts(s)
	return Regs{Control: u.hw.Control(), DREIF: u.hw.TxDataEmpty()}
}
