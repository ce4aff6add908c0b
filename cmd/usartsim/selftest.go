package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-usart/sim"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

var selftestOpts struct {
	units   []int
	timeout time.Duration
}

var selftestCmd = &cobra.Command{
	Use:   "selftest",
	Short: "Run the cross-unit driver self-test",
	Long: `selftest cross-connects two units and checks short messages in each
direction, receive error attribution, that Close releases a blocked reader,
that Close drains pending output, and that the units stay independent under
load.`,
	RunE: runSelftest,
}

func init() {
	rootCmd.AddCommand(selftestCmd)
	selftestCmd.Flags().IntSliceVar(&selftestOpts.units, "units", []int{0, 1}, "The two units to cross-connect")
	selftestCmd.Flags().DurationVar(&selftestOpts.timeout, "timeout", 5*time.Second, "Time limit per check")
}

type check struct {
	name string
	run  func(ctx context.Context) error
}

func runSelftest(cmd *cobra.Command, args []string) error {
	if len(selftestOpts.units) != 2 {
		return errors.New("selftest: --units needs exactly two units")
	}
	r, err := newRig(cmd.Context(), selftestOpts.units...)
	if err != nil {
		return err
	}
	defer r.stop()
	sim.Connect(r.ports[0], r.ports[1])

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("usartx self-test (%s <-> %s)", r.name(0), r.name(1))))

	pass, fail := 0, 0
	for _, c := range selfChecks(r) {
		ctx, cancel := context.WithTimeout(cmd.Context(), selftestOpts.timeout)
		err := c.run(ctx)
		cancel()
		fmt.Fprintf(out, "[%s] %s\n", verdict(err == nil), c.name)
		if err != nil {
			fmt.Fprintf(out, "  %v\n", err)
			fail++
			continue
		}
		pass++
	}
	fmt.Fprintf(out, "\nSummary\n  passed = %d\n  failed = %d\n", pass, fail)
	if fail > 0 {
		return fmt.Errorf("selftest: %d checks failed", fail)
	}
	return nil
}

func selfChecks(r *rig) []check {
	a, b := r.units[0], r.units[1]
	return []check{
		{r.name(0) + " -> " + r.name(1) + " short", func(ctx context.Context) error {
			return shortMessage(ctx, a, b, []byte("hello from "+r.name(0)+"\r\n"))
		}},
		{r.name(1) + " -> " + r.name(0) + " short", func(ctx context.Context) error {
			return shortMessage(ctx, b, a, []byte("hi from "+r.name(1)+"\r\n"))
		}},
		{"error attribution", func(ctx context.Context) error {
			drain(a)
			drain(b)
			r.ports[1].InjectStatus('!', usartx.StatusPERR)
			c, err := b.ReadCharContext(ctx)
			if err != nil {
				return err
			}
			if ch := usartx.Char(c); ch.Data() != '!' || !ch.ParityError() || ch.FrameError() {
				return fmt.Errorf("%s read %#04x, want '!' with parity error only", r.name(1), c)
			}
			if c := usartx.Char(a.ReadChar()); c.Valid() || c.Status() != 0 {
				return fmt.Errorf("%s reports %#04x, want no data and no error", r.name(0), uint16(c))
			}
			// A clean byte clears the sticky error.
			return shortMessage(ctx, a, b, []byte("ok"))
		}},
		{"close releases blocked reader", func(ctx context.Context) error {
			drain(a)
			done := make(chan error, 1)
			go func() {
				_, err := a.ReadCharContext(ctx)
				done <- err
			}()
			time.Sleep(10 * time.Millisecond)
			a.Close()
			defer a.Init(settings.Divisor(r.conf[0]))
			select {
			case err := <-done:
				if !errors.Is(err, usartx.ErrClosed) {
					return fmt.Errorf("reader returned %v, want %v", err, usartx.ErrClosed)
				}
				return nil
			case <-ctx.Done():
				return fmt.Errorf("reader still blocked: %w", ctx.Err())
			}
		}},
		{"close drains transmit ring", func(ctx context.Context) error {
			drain(b)
			msg := bytes.Repeat([]byte("0123456789abcdef"), a.Capacity()/16+1)
			closed := make(chan struct{})
			go func() {
				a.Write(msg)
				r.restart(0)
				close(closed)
			}()
			got := make([]byte, len(msg))
			_, err := b.ReadFullContext(ctx, got)
			<-closed
			if err != nil {
				return err
			}
			if !bytes.Equal(got, msg) {
				return fmt.Errorf("got %q", got)
			}
			return nil
		}},
		{"units independent under load", func(ctx context.Context) error {
			drain(a)
			drain(b)
			n := 8 * a.Capacity()
			flood := make(chan streamResult, 1)
			go func() { flood <- runOneWay(ctx, "flood", a, b, patternA, n, 8) }()
			if err := shortMessage(ctx, b, a, []byte("still here\r\n")); err != nil {
				return err
			}
			if res := <-flood; !res.ok() {
				return fmt.Errorf("flood: %v", res.Err)
			}
			return nil
		}},
	}
}

// shortMessage writes msg on tx and expects exactly msg on rx.
func shortMessage(ctx context.Context, tx, rx *usartx.USART, msg []byte) error {
	drain(rx)
	done := make(chan struct{})
	go func() {
		tx.Write(msg)
		close(done)
	}()
	got := make([]byte, len(msg))
	n, err := rx.ReadFullContext(ctx, got)
	<-done
	if err != nil {
		return fmt.Errorf("received %d of %d bytes: %w", n, len(msg), err)
	}
	if !bytes.Equal(got, msg) {
		return fmt.Errorf("got %q want %q", got, msg)
	}
	return nil
}

func drain(u *usartx.USART) {
	for u.Buffered() > 0 {
		u.ReadChar()
	}
}
