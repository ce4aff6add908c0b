// usartx/char.go

package usartx

import "errors"

// Flags in the value returned by ReadChar. The error flags are the RXDATAH
// status bits shifted up by 8; BufferOverflow keeps the historical 0x6400
// mask, so testing it also matches a frame error.
const (
	BufferOverflow uint16 = 0x6400
	FrameError     uint16 = 0x0400
	ParityError    uint16 = 0x0200
	NoData         uint16 = 0x0100
)

var (
	ErrInvalidCapacity = errors.New("usartx: capacity must be a power of two between 2 and 128")
	ErrBufferEmpty     = errors.New("usartx: receive buffer empty")
	ErrInvalidUnit     = errors.New("usartx: no such unit")
	ErrUnitInUse       = errors.New("usartx: unit already configured")
)

// Char is an encoded ReadChar value.
type Char uint16

// Valid reports whether Data holds a received byte.
func (c Char) Valid() bool { return uint16(c)&NoData == 0 }

func (c Char) Data() byte { return byte(c) }

func (c Char) ParityError() bool { return uint16(c)&ParityError != 0 }

func (c Char) FrameError() bool { return uint16(c)&FrameError != 0 }

// Overflow reports the buffer-overflow flag using the BufferOverflow mask.
func (c Char) Overflow() bool { return uint16(c)&BufferOverflow != 0 }

// Status returns the receive status bits carried in the high byte.
func (c Char) Status() uint8 { return uint8(c>>8) & rxErrorMask }

// Err returns an *RxError when any receive error flag is set.
func (c Char) Err() error {
	if s := c.Status(); s != 0 {
		return &RxError{Status: s}
	}
	return nil
}

// RxError carries the receive status bits reported alongside a byte. The flags
// reflect the most recent hardware reception, not necessarily this byte,
// unless the unit runs with ErrorsPerByte.
type RxError struct {
	Status uint8
}

func (e *RxError) Error() string {
	msg := "usartx: receive error:"
	if e.Status&StatusPERR != 0 {
		msg += " parity"
	}
	if e.Status&StatusFERR != 0 {
		msg += " frame"
	}
	if e.Status&StatusBUFOVF != 0 {
		msg += " overflow"
	}
	return msg
}

func encode(data byte, status uint8) uint16 {
	return uint16(status&rxErrorMask)<<8 | uint16(data)
}
