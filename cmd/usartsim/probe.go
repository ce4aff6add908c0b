package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sigurn/crc16"
	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-usart/sim"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

var probeOpts struct {
	unit  int
	bytes int
	hold  time.Duration
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Loop a unit back on itself and print driver and port state",
	Long: `probe wires a unit's TX to its own RX and runs three phases: a checked
transfer, a burst that is not read for --hold so the receive ring overflows,
and a two-byte wake-up check. After each phase it prints the simulated port
state and the driver counters (build with -tags usartdebug to fill them).`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
	probeCmd.Flags().IntVar(&probeOpts.unit, "unit", -1, "Unit to probe (default: first configured)")
	probeCmd.Flags().IntVar(&probeOpts.bytes, "bytes", 1024, "Bytes in the checked transfer")
	probeCmd.Flags().DurationVar(&probeOpts.hold, "hold", 50*time.Millisecond, "Read hold-off during the burst phase")
}

func runProbe(cmd *cobra.Command, args []string) error {
	cu, err := unitFor(probeOpts.unit)
	if err != nil {
		return err
	}
	r, err := newRig(cmd.Context(), cu.Unit)
	if err != nil {
		return err
	}
	defer r.stop()
	u, p := r.units[0], r.ports[0]
	sim.Loopback(p)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("usartx probe ("+r.name(0)+", loopback)"))

	// checked transfer
	phase(out, "transfer")
	u.DebugReset()
	src := make([]byte, probeOpts.bytes)
	x := uint32(0x12345678)
	for i := range src {
		x = 1664525*x + 1013904223
		src[i] = byte(x >> 24)
	}
	go u.Write(src)
	got, err := readFor(cmd.Context(), u, len(src), 2*time.Second+time.Duration(len(src))*settings.CharTime(cu))
	ok := err == nil && crc16.Checksum(got, crcTable) == crc16.Checksum(src, crcTable)
	fmt.Fprintf(out, "  [%s] received %d of %d bytes\n", verdict(ok), len(got), len(src))
	printState(out, u, p)

	// burst with reads held off
	phase(out, "burst")
	u.DebugReset()
	n := 4 * u.Capacity()
	burst := make([]byte, n)
	for i := range burst {
		burst[i] = byte(i)
	}
	wrote := make(chan struct{})
	go func() {
		u.Write(burst)
		close(wrote)
	}()
	time.Sleep(probeOpts.hold)
	got, _ = readFor(cmd.Context(), u, n, 20*settings.CharTime(cu)+100*time.Millisecond)
	<-wrote
	if err := u.Flush(); err != nil {
		return err
	}
	// the shift register may still hold the last byte
	time.Sleep(2 * settings.CharTime(cu))
	fmt.Fprintf(out, "  received %d of %d bytes, %d overruns\n", len(got), n, p.Snapshot().Overruns)
	printState(out, u, p)

	// wake-up
	phase(out, "wake")
	u.DebugReset()
	drain(u)
	go func() {
		u.WriteByte('A')
		time.Sleep(5 * time.Millisecond)
		u.WriteByte('B')
	}()
	got, err = readFor(cmd.Context(), u, 2, 300*time.Millisecond)
	fmt.Fprintf(out, "  [%s] got %q\n", verdict(err == nil && string(got) == "AB"), got)
	printState(out, u, p)
	return nil
}

// readFor reads n bytes or gives up after d.
func readFor(ctx context.Context, u *usartx.USART, n int, d time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	buf := make([]byte, n)
	k, err := u.ReadFullContext(ctx, buf)
	return buf[:k], err
}

func phase(w io.Writer, name string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, titleStyle.Render("[phase] "+name))
}

func printState(w io.Writer, u *usartx.USART, p *sim.Port) {
	s := p.Snapshot()
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  port:  baud=%d ctrl=%#02x dreif=%t shifting=%t rx=%d lost=%d",
		s.Baud, uint8(s.Control), s.DREIF, s.Shifting, s.RxBuffered, s.LostWrites)))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  unit:  state=%s buffered=%d txfree=%d", u.State(), u.Buffered(), u.TxFree())))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  stats: %+v", u.DebugStats())))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  regs:  %+v", u.DebugRegs())))
}
