// usartx/blocking.go

package usartx

import "context"

// Readable returns a coalesced notification posted by the receive handler.
// Callers must re-check Buffered after waking.
func (u *USART) Readable() <-chan struct{} { return u.notify }

// WaitReadable blocks until a byte is buffered, the unit is closed, or ctx is done.
func (u *USART) WaitReadable(ctx context.Context) error {
	for {
		if u.Buffered() > 0 {
			return nil
		}
		if u.State() != Running {
			return ErrClosed
		}
		u.dbgReadWait()
		select {
		case <-u.notify:
			// re-check; coalesced, may be spurious
			if u.Buffered() == 0 {
				u.dbgSpuriousWake()
			}
		case <-ctx.Done():
			u.dbgTimeout()
			return ctx.Err()
		}
	}
}

// ReadCharContext blocks for one received character and returns it encoded
// like ReadChar.
func (u *USART) ReadCharContext(ctx context.Context) (uint16, error) {
	for {
		if c := u.ReadChar(); c&NoData == 0 {
			return c, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return NoData, err
		}
	}
}

// ReadByteContext blocks for one byte. Receive errors are returned as *RxError
// together with the byte.
func (u *USART) ReadByteContext(ctx context.Context) (byte, error) {
	c, err := u.ReadCharContext(ctx)
	if err != nil {
		return 0, err
	}
	return Char(c).Data(), Char(c).Err()
}

// ReadFullContext reads exactly len(p) bytes or until ctx is done. Receive
// error flags are ignored.
func (u *USART) ReadFullContext(ctx context.Context, p []byte) (int, error) {
	read := 0
	for read < len(p) {
		if n := u.TryRead(p[read:]); n > 0 {
			read += n
			continue
		}
		if err := u.WaitReadable(ctx); err != nil {
			return read, err
		}
	}
	return read, nil
}
