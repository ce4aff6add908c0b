// Package firmware holds the application loop used by the on-target demo and
// by usartsim: a banner, periodic counter lines, and an echo of whatever was
// received, labelled with any receive errors.
package firmware

import (
	"fmt"
	"io"

	"github.com/jangala-dev/tinygo-usart/usartx"
)

// Banner is sent once per Demo run with SendString.
var Banner = []byte("\r\n\r\nPEACE BRO!\r\n\r\n")

// Trailer marks the end of a run, before the unit is closed.
const Trailer = "\r\n\r\n<-<->->"

// Port is the part of *usartx.USART the routines use.
type Port interface {
	io.Writer
	SendChar(c byte)
	SendString(p []byte, n uint8)
	ReadChar() uint16
}

// Labels returns the error prefixes printed before an echoed character.
// The overflow test uses the BufferOverflow mask, so a frame error is
// reported under both labels.
func Labels(c uint16) []string {
	ch := usartx.Char(c)
	var out []string
	if ch.ParityError() {
		out = append(out, "USART PARITY ERROR: ")
	}
	if ch.FrameError() {
		out = append(out, "USART FRAME ERROR: ")
	}
	if ch.Overflow() {
		out = append(out, "USART BUFFER OVERFLOW ERROR: ")
	}
	return out
}

// Echo drains the receive ring, sending every byte back after its error
// labels. It returns the number of bytes echoed.
func Echo(u Port) int {
	n := 0
	for {
		c := u.ReadChar()
		if c&usartx.NoData != 0 {
			return n
		}
		for _, l := range Labels(c) {
			io.WriteString(u, l)
		}
		u.SendChar(byte(c))
		n++
	}
}

// Demo is the banner/counter/echo routine.
type Demo struct {
	// Rounds of counter line plus echo per Run.
	Rounds int
	// Pause runs between the counter line and the echo; nil means none.
	Pause func()

	counter uint8
}

// Run performs one pass. The caller owns Init and Close.
func (d *Demo) Run(u Port) (echoed int) {
	u.SendString(Banner, uint8(len(Banner)))
	fmt.Fprintf(u, "Hello world!\r\n")

	for i := 0; i < d.Rounds; i++ {
		fmt.Fprintf(u, "\r\nCounter value is: 0x%02X ", d.counter)
		d.counter++
		if d.Pause != nil {
			d.Pause()
		}
		echoed += Echo(u)
	}

	io.WriteString(u, Trailer)
	return echoed
}
