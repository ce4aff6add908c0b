// usartx/isr.go

package usartx

// HandleRXC services the receive-complete interrupt: it moves one character
// from the hardware into the RX ring and records its status in the sticky
// error register. Wire it to the unit's RXC vector.
func (u *USART) HandleRXC() {
	data, status := u.hw.ReadData()
	status &= rxErrorMask

	if u.rx.IsFull() {
		if u.cfg.RxOverflow != OverflowOverwrite {
			u.lastRxError = status | StatusBUFOVF
			if u.cfg.Errors == ErrorsPerByte {
				// the loss shows on the byte queued before it
				u.rxErr.MarkNewest(StatusBUFOVF)
			}
			u.dbgRXC(status, false)
			u.signal()
			return
		}
		u.rx.Discard()
		if u.cfg.Errors == ErrorsPerByte {
			u.rxErr.Discard()
		}
	}

	u.rx.Insert(data)
	if u.cfg.Errors == ErrorsPerByte {
		u.rxErr.Insert(status)
	}
	u.lastRxError = status
	u.dbgRXC(status, true)
	u.signal()
}

// HandleDRE services the data-register-empty interrupt: it hands the next
// queued byte to the hardware, or disarms itself once the TX ring is empty.
// Wire it to the unit's DRE vector.
func (u *USART) HandleDRE() {
	if u.tx.IsEmpty() {
		u.hw.ClearControl(DREInterrupt)
		u.dbgDRE(false)
		return
	}
	u.hw.WriteData(u.tx.Remove())
	u.dbgDRE(true)
}

// signal posts a coalesced readable notification without blocking.
func (u *USART) signal() {
	select {
	case u.notify <- struct{}{}:
	default:
	}
}
