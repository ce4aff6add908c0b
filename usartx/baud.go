// usartx/baud.go

package usartx

import "time"

// BaudDivisor returns the BAUD register value for an asynchronous normal-speed
// USART: 64*fCPU / (16*baud), rounded to nearest.
func BaudDivisor(cpuHz, baud uint32) uint16 {
	if baud == 0 {
		return 0
	}
	num := uint64(cpuHz) * 64
	den := uint64(baud) * 16
	div := (num + den/2) / den
	if div > 0xFFFF {
		div = 0xFFFF
	}
	return uint16(div)
}

// BaudRate is the inverse of BaudDivisor.
func BaudRate(cpuHz uint32, divisor uint16) uint32 {
	if divisor == 0 {
		return 0
	}
	return uint32(uint64(cpuHz) * 64 / (16 * uint64(divisor)))
}

// CharTime is the duration of one 8N1 character (10 bit times) at baud.
func CharTime(baud uint32) time.Duration {
	if baud == 0 {
		return 0
	}
	return 10 * time.Second / time.Duration(baud)
}
