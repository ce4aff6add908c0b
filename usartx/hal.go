// usartx/hal.go

package usartx

// Control selects enable bits of a USART register block. The AVR binding maps
// them onto CTRLA/CTRLB; the simulator keeps them as-is.
type Control uint8

const (
	ReceiverEnable    Control = 1 << iota // CTRLB.RXEN
	TransmitterEnable                     // CTRLB.TXEN
	RXCInterrupt                          // CTRLA.RXCIE
	DREInterrupt                          // CTRLA.DREIE
)

// Receive status bits as found in RXDATAH.
const (
	StatusRXCIF  uint8 = 0x80
	StatusBUFOVF uint8 = 0x40
	StatusFERR   uint8 = 0x04
	StatusPERR   uint8 = 0x02
)

const rxErrorMask = StatusBUFOVF | StatusFERR | StatusPERR

// InterruptState is whatever a Hardware needs to undo DisableInterrupts.
type InterruptState uintptr

// Hardware is the register-level access a USART needs from one unit.
//
// Register methods are called either from an interrupt handler, or from the
// foreground between DisableInterrupts and RestoreInterrupts. Implementations
// may rely on that and do no locking of their own.
type Hardware interface {
	SetBaud(divisor uint16)
	SetControl(c Control)
	ClearControl(c Control)
	Control() Control

	// ReadData pops the received character. status is RXDATAH, which the
	// hardware requires to be read before RXDATAL.
	ReadData() (data, status uint8)
	WriteData(b uint8)

	// TxDataEmpty reports STATUS.DREIF.
	TxDataEmpty() bool

	DisableInterrupts() InterruptState
	RestoreInterrupts(InterruptState)
}

// PinConfigurer performs the one-time port multiplexing and pin direction
// setup for a unit.
type PinConfigurer interface {
	ConfigurePins()
}

// PinFunc adapts a plain function to PinConfigurer.
type PinFunc func()

func (f PinFunc) ConfigurePins() { f() }
