//go:build !usartdebug

package usartx

// Stats is empty without the usartdebug build tag.
type Stats struct{}

func (u *USART) DebugReset()       {}
func (u *USART) DebugStats() Stats { return Stats{} }

// Regs is empty without the usartdebug build tag.
type Regs struct{}

func (u *USART) DebugRegs() Regs { return Regs{} }

func (u *USART) dbgRXC(uint8, bool) {}
func (u *USART) dbgDRE(bool)        {}
func (u *USART) dbgSendWait()       {}
func (u *USART) dbgReadWait()       {}
func (u *USART) dbgSpuriousWake()   {}
func (u *USART) dbgTimeout()        {}
