package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jangala-dev/tinygo-usart/internal/firmware"
	"github.com/jangala-dev/tinygo-usart/internal/log"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

var demoOpts struct {
	unit        int
	rounds      int
	input       string
	parityError string
	frameError  string
	pause       time.Duration
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the banner, counter and echo loop on one simulated unit",
	Long: `demo runs the firmware application loop against a simulated unit and
prints everything the unit transmits.

Characters given with --input arrive on the line during the first round and
are echoed back. Characters given with --parity-error or --frame-error arrive
flagged, so the echo is prefixed with the matching error labels.`,
	Example: `  usartsim demo --input hi --rounds 2
  usartsim demo --frame-error x --parity-error y`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().IntVar(&demoOpts.unit, "unit", -1, "Unit to run on (default: first configured)")
	demoCmd.Flags().IntVar(&demoOpts.rounds, "rounds", 3, "Counter rounds")
	demoCmd.Flags().StringVar(&demoOpts.input, "input", "", "Characters received during the first round")
	demoCmd.Flags().StringVar(&demoOpts.parityError, "parity-error", "", "Characters received with a parity error")
	demoCmd.Flags().StringVar(&demoOpts.frameError, "frame-error", "", "Characters received with a frame error")
	demoCmd.Flags().DurationVar(&demoOpts.pause, "pause", 100*time.Millisecond, "Delay between the counter line and the echo")
}

func runDemo(cmd *cobra.Command, args []string) error {
	cu, err := unitFor(demoOpts.unit)
	if err != nil {
		return err
	}
	var tbl usartx.Table
	u, p, err := bringUp(&tbl, cu)
	if err != nil {
		return err
	}
	defer tbl.Release(usartx.Unit(cu.Unit))

	var outMu sync.Mutex
	out := cmd.OutOrStdout()
	p.OnTransmit(func(b byte) {
		outMu.Lock()
		out.Write([]byte{b})
		outMu.Unlock()
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go p.Run(ctx, settings.CharTime(cu))

	u.Init(settings.Divisor(cu))
	log.Info(log.ComponentFirmware, "unit initialized", "unit", usartx.Unit(cu.Unit), "baud", cu.Baud)

	injected := false
	d := firmware.Demo{
		Rounds: demoOpts.rounds,
		Pause: func() {
			if !injected {
				injected = true
				p.Inject([]byte(demoOpts.input)...)
				for _, c := range []byte(demoOpts.parityError) {
					p.InjectStatus(c, usartx.StatusPERR)
				}
				for _, c := range []byte(demoOpts.frameError) {
					p.InjectStatus(c, usartx.StatusFERR)
				}
			}
			time.Sleep(demoOpts.pause)
		},
	}
	echoed := d.Run(u)
	u.Close()

	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out)
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%s: echoed %d, %d overruns", usartx.Unit(cu.Unit), echoed, p.Snapshot().Overruns)))
	return nil
}
