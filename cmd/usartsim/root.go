package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jangala-dev/tinygo-usart/internal/config"
	"github.com/jangala-dev/tinygo-usart/internal/log"
	"github.com/jangala-dev/tinygo-usart/sim"
	"github.com/jangala-dev/tinygo-usart/usartx"
)

var (
	cfgFile  string
	settings *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "usartsim",
	Short: "Exercise the usartx driver on simulated USART hardware",
	Long: `usartsim wires usartx units to register-level USART models and runs
the same application code that runs on the microcontroller.

Units, baud rates, ring capacities and policies come from a YAML file
(--config), USARTSIM_* environment variables, or flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		for key, flag := range map[string]string{
			"log_level":  "log-level",
			"log_format": "log-format",
			"cpu_hz":     "cpu-hz",
			"tick":       "tick",
		} {
			if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
				return err
			}
		}

		c, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		level, err := log.ParseLevel(c.LogLevel)
		if err != nil {
			return err
		}
		format, err := log.ParseFormat(c.LogFormat)
		if err != nil {
			return err
		}
		log.SetLevel(level)
		log.SetOutput(cmd.ErrOrStderr(), format)

		settings = c
		log.Debug(log.ComponentCLI, "configuration loaded", "units", len(c.Units), "cpu_hz", c.CPUHz)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().Uint32("cpu-hz", config.DefaultCPUHz, "Simulated CPU clock used for baud divisors")
	rootCmd.PersistentFlags().Duration("tick", 0, "Simulated character time (0 derives it from baud)")
}

// unitFor returns the configured unit n, or the first configured unit when n < 0.
func unitFor(n int) (config.Unit, error) {
	if n < 0 {
		return settings.Units[0], nil
	}
	if u, ok := settings.Find(n); ok {
		return u, nil
	}
	return config.Unit{}, fmt.Errorf("unit %d: %w", n, usartx.ErrInvalidUnit)
}

// bringUp configures unit cu in tbl on a fresh simulated port and attaches
// its handlers. The unit is not initialized.
func bringUp(tbl *usartx.Table, cu config.Unit) (*usartx.USART, *sim.Port, error) {
	dc, err := cu.DriverConfig()
	if err != nil {
		return nil, nil, err
	}
	n := usartx.Unit(cu.Unit)
	p := sim.New(n.String())
	dc.Pins = p
	u, err := tbl.Configure(n, p, dc)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", n, err)
	}
	p.Attach(u)
	return u, p, nil
}
