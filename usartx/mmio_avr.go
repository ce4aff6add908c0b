// usartx/mmio_avr.go

//go:build avr

package usartx

import (
	"runtime/interrupt"
	"runtime/volatile"
	"unsafe"
)

// usartRegs is the AVR-0/1 and AVR-Dx USART register block.
type usartRegs struct {
	RXDATAL  volatile.Register8
	RXDATAH  volatile.Register8
	TXDATAL  volatile.Register8
	TXDATAH  volatile.Register8
	STATUS   volatile.Register8
	CTRLA    volatile.Register8
	CTRLB    volatile.Register8
	CTRLC    volatile.Register8
	BAUDL    volatile.Register8
	BAUDH    volatile.Register8
	CTRLD    volatile.Register8
	DBGCTRL  volatile.Register8
	EVCTRL   volatile.Register8
	TXPLCTRL volatile.Register8
	RXPLCTRL volatile.Register8
}

const (
	usartBase   = 0x0800
	usartStride = 0x20

	ctrlaRXCIE  = 0x80
	ctrlaDREIE  = 0x20
	ctrlbRXEN   = 0x80
	ctrlbTXEN   = 0x40
	statusDREIF = 0x20
)

// mmio drives one memory-mapped unit.
type mmio struct {
	r *usartRegs
}

// Registers returns the Hardware for unit n. The unit must exist on the part.
func Registers(n Unit) Hardware {
	addr := uintptr(usartBase + usartStride*uintptr(n))
	return mmio{r: (*usartRegs)(unsafe.Pointer(addr))}
}

func (m mmio) SetBaud(divisor uint16) {
	// low byte first: the high byte write latches through TEMP
	m.r.BAUDL.Set(uint8(divisor))
	m.r.BAUDH.Set(uint8(divisor >> 8))
}

func (m mmio) SetControl(c Control) {
	a, b := split(c)
	if b != 0 {
		m.r.CTRLB.SetBits(b)
	}
	if a != 0 {
		m.r.CTRLA.SetBits(a)
	}
}

func (m mmio) ClearControl(c Control) {
	a, b := split(c)
	if b != 0 {
		m.r.CTRLB.ClearBits(b)
	}
	if a != 0 {
		m.r.CTRLA.ClearBits(a)
	}
}

func (m mmio) Control() Control {
	var c Control
	a, b := m.r.CTRLA.Get(), m.r.CTRLB.Get()
	if b&ctrlbRXEN != 0 {
		c |= ReceiverEnable
	}
	if b&ctrlbTXEN != 0 {
		c |= TransmitterEnable
	}
	if a&ctrlaRXCIE != 0 {
		c |= RXCInterrupt
	}
	if a&ctrlaDREIE != 0 {
		c |= DREInterrupt
	}
	return c
}

func (m mmio) ReadData() (data, status uint8) {
	status = m.r.RXDATAH.Get()
	data = m.r.RXDATAL.Get()
	return data, status
}

func (m mmio) WriteData(b uint8) { m.r.TXDATAL.Set(b) }

func (m mmio) TxDataEmpty() bool { return m.r.STATUS.HasBits(statusDREIF) }

func (m mmio) DisableInterrupts() InterruptState {
	return InterruptState(interrupt.Disable())
}

func (m mmio) RestoreInterrupts(s InterruptState) {
	interrupt.Restore(interrupt.State(s))
}

func split(c Control) (ctrla, ctrlb uint8) {
	if c&ReceiverEnable != 0 {
		ctrlb |= ctrlbRXEN
	}
	if c&TransmitterEnable != 0 {
		ctrlb |= ctrlbTXEN
	}
	if c&RXCInterrupt != 0 {
		ctrla |= ctrlaRXCIE
	}
	if c&DREInterrupt != 0 {
		ctrla |= ctrlaDREIE
	}
	return ctrla, ctrlb
}
