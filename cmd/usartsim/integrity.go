// integrity streams deterministic patterns between two cross-connected units
// and verifies every byte, with a hex dump around the first mismatch.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sigurn/crc16"
	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-usart/internal/log"
	"github.com/jangala-dev/tinygo-usart/sim"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

var integrityOpts struct {
	units   []int
	bytes   int
	duplex  bool
	timeout time.Duration
	radius  int
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Stream patterns between two cross-connected units and verify them",
	Long: `integrity connects the TX of each unit to the RX of the other and sends a
deterministic pattern in each direction, either at the same time (--duplex)
or one direction after the other.

Every received byte is compared with the pattern. The first mismatch fails
the direction and prints the bytes around it. A CRC-16/XMODEM of the whole
stream is reported next to the expected one.`,
	Example: `  usartsim integrity --bytes 65536
  usartsim --tick 50us integrity --duplex=false`,
	RunE: runIntegrity,
}

func init() {
	rootCmd.AddCommand(integrityCmd)
	integrityCmd.Flags().IntSliceVar(&integrityOpts.units, "units", []int{0, 1}, "The two units to cross-connect")
	integrityCmd.Flags().IntVar(&integrityOpts.bytes, "bytes", 4096, "Bytes per direction")
	integrityCmd.Flags().BoolVar(&integrityOpts.duplex, "duplex", true, "Run both directions at once")
	integrityCmd.Flags().DurationVar(&integrityOpts.timeout, "timeout", 30*time.Second, "Time limit per run")
	integrityCmd.Flags().IntVar(&integrityOpts.radius, "radius", 16, "Bytes shown before a mismatch")
}

func patternA(i int) byte { return byte((i*31 + 0x55) & 0xFF) }
func patternB(i int) byte { return byte((i*17 + 0xA6) & 0xFF) }

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

func patternCRC(gen func(int) byte, n int) uint16 {
	b := make([]byte, n)
	for i := range b {
		b[i] = gen(i)
	}
	return crc16.Checksum(b, crcTable)
}

var errFlagged = errors.New("receive error flags set")

type mismatchError struct {
	Offset    int
	Want, Got byte
	Context   string
}

func (e *mismatchError) Error() string {
	return fmt.Sprintf("mismatch at offset %d: want %02X got %02X\n%s", e.Offset, e.Want, e.Got, e.Context)
}

type streamResult struct {
	Label   string
	N       int
	WantCRC uint16
	GotCRC  uint16
	Flagged int
	Elapsed time.Duration
	Err     error
}

func (r streamResult) ok() bool { return r.Err == nil && r.WantCRC == r.GotCRC }

func runIntegrity(cmd *cobra.Command, args []string) error {
	if len(integrityOpts.units) != 2 {
		return errors.New("integrity: --units needs exactly two units")
	}
	if integrityOpts.bytes <= 0 {
		return fmt.Errorf("integrity: invalid --bytes %d", integrityOpts.bytes)
	}

	r, err := newRig(cmd.Context(), integrityOpts.units...)
	if err != nil {
		return err
	}
	defer r.stop()
	sim.Connect(r.ports[0], r.ports[1])

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("usartx integrity test"))
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s <-> %s  bytes/dir=%d  duplex=%t",
		r.name(0), r.name(1), integrityOpts.bytes, integrityOpts.duplex)))

	ctx, cancel := context.WithTimeout(cmd.Context(), integrityOpts.timeout)
	defer cancel()
	results := integrityRun(ctx, r, integrityOpts.bytes, integrityOpts.duplex, integrityOpts.radius)

	fail := 0
	for _, res := range results {
		fmt.Fprintf(out, "[%s] %-20s %d bytes  crc %04X/%04X  %v\n",
			verdict(res.ok()), res.Label, res.N, res.GotCRC, res.WantCRC, res.Elapsed.Round(time.Millisecond))
		if res.Err != nil {
			fmt.Fprintf(out, "  %v\n", res.Err)
		}
		if !res.ok() {
			fail++
		}
	}
	fmt.Fprintf(out, "\nSummary\n  passed = %d\n  failed = %d\n", len(results)-fail, fail)
	if fail > 0 {
		return fmt.Errorf("integrity: %d of %d directions failed", fail, len(results))
	}
	return nil
}

// integrityRun sends patternA from member 0 to member 1 and patternB back.
func integrityRun(ctx context.Context, r *rig, n int, duplex bool, radius int) []streamResult {
	ab := r.name(0) + " -> " + r.name(1)
	ba := r.name(1) + " -> " + r.name(0)
	if !duplex {
		return []streamResult{
			runOneWay(ctx, ab, r.units[0], r.units[1], patternA, n, radius),
			runOneWay(ctx, ba, r.units[1], r.units[0], patternB, n, radius),
		}
	}
	ch := make(chan streamResult, 1)
	go func() { ch <- runOneWay(ctx, ba, r.units[1], r.units[0], patternB, n, radius) }()
	first := runOneWay(ctx, ab, r.units[0], r.units[1], patternA, n, radius)
	return []streamResult{first, <-ch}
}

func runOneWay(ctx context.Context, label string, tx, rx *usartx.USART, gen func(int) byte, n, radius int) streamResult {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info(log.ComponentIntegrity, "stream start", "dir", label, "bytes", n)
	start := time.Now()
	sent := make(chan error, 1)
	go func() { sent <- sendPattern(ctx, tx, gen, n) }()

	got, flagged, err := recvAndCheck(ctx, rx, gen, n, radius)
	cancel()
	serr := <-sent

	res := streamResult{
		Label:   label,
		N:       n,
		WantCRC: patternCRC(gen, n),
		GotCRC:  crc16.Checksum(got, crcTable),
		Flagged: flagged,
		Elapsed: time.Since(start),
		Err:     err,
	}
	if res.Err == nil && flagged > 0 {
		res.Err = fmt.Errorf("%d bytes: %w", flagged, errFlagged)
	}
	if res.Err == nil && serr != nil && !errors.Is(serr, context.Canceled) {
		res.Err = fmt.Errorf("send: %w", serr)
	}
	if res.Err != nil {
		log.Warn(log.ComponentIntegrity, "stream failed", "dir", label, "received", len(got), "err", res.Err)
	}
	return res
}

// sendPattern queues gen(0..n-1), yielding while the transmit ring is full.
func sendPattern(ctx context.Context, u *usartx.USART, gen func(int) byte, n int) error {
	for i := 0; i < n; i++ {
		for u.TxFree() == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(50 * time.Microsecond)
		}
		u.SendChar(gen(i))
	}
	return nil
}

// recvAndCheck reads n characters and compares each with gen(i). It stops at
// the first mismatch.
func recvAndCheck(ctx context.Context, u *usartx.USART, gen func(int) byte, n, radius int) (got []byte, flagged int, err error) {
	got = make([]byte, 0, n)
	for len(got) < n {
		c, err := u.ReadCharContext(ctx)
		if err != nil {
			return got, flagged, fmt.Errorf("after %d bytes: %w", len(got), err)
		}
		ch := usartx.Char(c)
		if ch.Status() != 0 {
			flagged++
		}
		i := len(got)
		got = append(got, ch.Data())
		if want := gen(i); ch.Data() != want {
			return got, flagged, &mismatchError{
				Offset:  i,
				Want:    want,
				Got:     ch.Data(),
				Context: hexContext(gen, got, i, radius),
			}
		}
	}
	return got, flagged, nil
}

// hexContext dumps expected and received bytes from pivot-radius to pivot,
// bracketing the pivot.
func hexContext(gen func(int) byte, got []byte, pivot, radius int) string {
	start := pivot - radius
	if start < 0 {
		start = 0
	}
	var exp, act strings.Builder
	for i := start; i <= pivot; i++ {
		open, closing := " ", ""
		if i == pivot {
			open, closing = "[", "]"
		}
		fmt.Fprintf(&exp, "%s%02X%s", open, gen(i), closing)
		fmt.Fprintf(&act, "%s%02X%s", open, got[i], closing)
	}
	return fmt.Sprintf("  bytes %d to %d\n  exp:%s\n  act:%s", start, pivot, exp.String(), act.String())
}
