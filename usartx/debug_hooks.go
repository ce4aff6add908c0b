//go:build usartdebug

package usartx

import "sync/atomic"

// Called from HandleRXC with the masked status and whether the byte was stored.
func (u *USART) dbgRXC(status uint8, stored bool) {
	atomic.AddUint32(&u.stats.RXCCount, 1)
	if status&StatusBUFOVF != 0 {
		atomic.AddUint32(&u.stats.ErrOverrun, 1)
	}
	if status&StatusPERR != 0 {
		atomic.AddUint32(&u.stats.ErrParity, 1)
	}
	if status&StatusFERR != 0 {
		atomic.AddUint32(&u.stats.ErrFraming, 1)
	}
	if !stored {
		atomic.AddUint32(&u.stats.RingDrops, 1)
		return
	}
	atomic.AddUint32(&u.stats.RingPuts, 1)
	// track high-water mark
	used := uint32(u.rx.Used())
	for {
		max := atomic.LoadUint32(&u.stats.RingMaxUsed)
		if used <= max {
			break
		}
		if atomic.CompareAndSwapUint32(&u.stats.RingMaxUsed, max, used) {
			break
		}
	}
}

func (u *USART) dbgDRE(sent bool) {
	if sent {
		atomic.AddUint32(&u.stats.DRECount, 1)
	} else {
		atomic.AddUint32(&u.stats.DREIdle, 1)
	}
}

func (u *USART) dbgSendWait() {
	atomic.AddUint32(&u.stats.SendWaits, 1)
}
func (u *USART) dbgReadWait() {
	atomic.AddUint32(&u.stats.ReadWaits, 1)
}
func (u *USART) dbgSpuriousWake() {
	atomic.AddUint32(&u.stats.SpuriousWakes, 1)
}
func (u *USART) dbgTimeout() {
	atomic.AddUint32(&u.stats.Timeouts, 1)
}
