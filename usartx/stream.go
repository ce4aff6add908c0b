// usartx/stream.go

package usartx

// WriteByte is the one-byte write primitive for formatted-output facilities.
// It blocks like SendChar and always succeeds.
func (u *USART) WriteByte(c byte) error {
	u.SendChar(c)
	return nil
}

// Write implements io.Writer, so fmt.Fprintf can target a unit. It blocks
// until every byte is queued; it does not wait for the line to drain.
func (u *USART) Write(p []byte) (int, error) {
	for _, c := range p {
		u.SendChar(c)
	}
	return len(p), nil
}

// ReadByte dequeues one byte without blocking. It returns ErrBufferEmpty when
// nothing is buffered, and an *RxError alongside the byte when error flags
// are set.
func (u *USART) ReadByte() (byte, error) {
	c := Char(u.ReadChar())
	if !c.Valid() {
		return 0, ErrBufferEmpty
	}
	return c.Data(), c.Err()
}

// TryRead copies up to len(p) buffered bytes and returns how many. It never
// blocks and drops the error flags; use ReadChar when they matter.
func (u *USART) TryRead(p []byte) int {
	n := 0
	for n < len(p) {
		c := Char(u.ReadChar())
		if !c.Valid() {
			break
		}
		p[n] = c.Data()
		n++
	}
	return n
}

// Read implements io.Reader with the non-blocking semantics of
// machine.UART.Read: it returns 0, nil when nothing is buffered.
func (u *USART) Read(p []byte) (int, error) {
	return u.TryRead(p), nil
}
