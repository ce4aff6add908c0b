package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/tarm/serial"

	"github.com/jangala-dev/tinygo-usart/internal/firmware"
	"github.com/jangala-dev/tinygo-usart/internal/log"
	"github.com/jangala-dev/tinygo-usart/sim"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

var bridgeOpts struct {
	unit   int
	device string
	banner bool
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge --device /dev/ttyUSB0",
	Short: "Attach a simulated unit to a real serial port",
	Long: `bridge puts a host serial port on the wire of a simulated unit: bytes the
unit transmits are written to the port and bytes read from the port arrive on
the unit's receiver. The unit runs the echo loop until interrupted, so a
terminal on the other end sees its input echoed with error labels.`,
	RunE: runBridgeCmd,
}

func init() {
	rootCmd.AddCommand(bridgeCmd)
	bridgeCmd.Flags().IntVar(&bridgeOpts.unit, "unit", -1, "Unit to run on (default: first configured)")
	bridgeCmd.Flags().StringVarP(&bridgeOpts.device, "device", "d", "", "Serial device")
	bridgeCmd.Flags().BoolVar(&bridgeOpts.banner, "banner", true, "Send the banner on start")
	bridgeCmd.MarkFlagRequired("device")
}

// openPort opens a host serial port; replaced in tests.
var openPort = func(name string, baud int) (io.ReadWriteCloser, error) {
	return serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
	})
}

func runBridgeCmd(cmd *cobra.Command, args []string) error {
	cu, err := unitFor(bridgeOpts.unit)
	if err != nil {
		return err
	}
	rw, err := openPort(bridgeOpts.device, int(cu.Baud))
	if err != nil {
		return err
	}
	defer rw.Close()

	var tbl usartx.Table
	u, p, err := bringUp(&tbl, cu)
	if err != nil {
		return err
	}
	defer tbl.Release(usartx.Unit(cu.Unit))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	log.Info(log.ComponentBridge, "bridging", "unit", usartx.Unit(cu.Unit), "device", bridgeOpts.device, "baud", cu.Baud)
	err = runBridge(ctx, u, p, rw, settings.CharTime(cu), settings.Divisor(cu), bridgeOpts.banner)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runBridge wires p to rw, initializes u and echoes until ctx is done. u is
// closed before it returns.
func runBridge(ctx context.Context, u *usartx.USART, p *sim.Port, rw io.ReadWriter, charTime time.Duration, divisor uint16, banner bool) error {
	p.OnTransmit(func(b byte) {
		if _, err := rw.Write([]byte{b}); err != nil {
			log.Warn(log.ComponentBridge, "port write", "err", err)
		}
	})

	// The port keeps running after ctx ends so Close can drain.
	simCtx, stopSim := context.WithCancel(context.WithoutCancel(ctx))
	defer stopSim()
	go p.Run(simCtx, charTime)
	go pump(ctx, rw, p)

	u.Init(divisor)
	defer u.Close()
	if banner {
		u.SendString(firmware.Banner, uint8(len(firmware.Banner)))
	}

	for {
		if err := u.WaitReadable(ctx); err != nil {
			return err
		}
		if n := firmware.Echo(u); n > 0 {
			log.Debug(log.ComponentBridge, "echoed", "bytes", n)
		}
	}
}

// eofBackoff paces pump when the reader reports EOF without data.
const eofBackoff = 20 * time.Millisecond

// pump copies bytes read from r onto the line of p until ctx is done or r
// fails. A read timeout shows up as an empty read.
func pump(ctx context.Context, r io.Reader, p *sim.Port) {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := r.Read(buf)
		if n > 0 {
			p.Inject(buf[:n]...)
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if n == 0 {
				time.Sleep(eofBackoff)
			}
		default:
			log.Error(log.ComponentBridge, "port read", "err", err)
			return
		}
	}
}
