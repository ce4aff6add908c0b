// cmd/usartsim/main.go
// usartsim runs the usartx driver against simulated USART hardware on a host.

package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
