package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/usartx"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usartsim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, uint32(DefaultCPUHz), c.CPUHz)
	require.Len(t, c.Units, 1)
	assert.Equal(t, 3, c.Units[0].Unit)
	assert.Equal(t, uint32(9600), c.Units[0].Baud)
	assert.Equal(t, uint16(1389), c.Divisor(c.Units[0]))
	assert.Equal(t, usartx.CharTime(9600), c.CharTime(c.Units[0]))
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
cpu_hz: 20000000
tick: 250us
units:
  - unit: 0
    baud: 115200
    capacity: 64
    settle: 5ms
    overflow: overwrite
    errors: per-byte
  - unit: 1
`)
	c, err := Load(viper.New(), path)
	require.NoError(t, err)

	require.Len(t, c.Units, 2)
	u0, ok := c.Find(0)
	require.True(t, ok)
	assert.Equal(t, uint16(694), c.Divisor(u0))
	assert.Equal(t, 250*time.Microsecond, c.CharTime(u0))

	cfg, err := u0.DriverConfig()
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Capacity)
	assert.Equal(t, 5*time.Millisecond, cfg.SettleDelay)
	assert.Equal(t, usartx.OverflowOverwrite, cfg.RxOverflow)
	assert.Equal(t, usartx.ErrorsPerByte, cfg.Errors)

	u1, ok := c.Find(1)
	require.True(t, ok)
	assert.Equal(t, uint32(9600), u1.Baud)
	cfg, err = u1.DriverConfig()
	require.NoError(t, err)
	assert.Equal(t, usartx.DefaultCapacity, cfg.Capacity)

	_, ok = c.Find(5)
	assert.False(t, ok)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("USARTSIM_CPU_HZ", "16000000")
	c, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, uint32(16000000), c.CPUHz)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"capacity", "units:\n  - unit: 0\n    capacity: 48\n", usartx.ErrInvalidCapacity},
		{"unit", "units:\n  - unit: 6\n", usartx.ErrInvalidUnit},
		{"duplicate", "units:\n  - unit: 2\n  - unit: 2\n", ErrDuplicateUnit},
		{"overflow", "units:\n  - unit: 0\n    overflow: block\n", ErrUnknownPolicy},
		{"errors", "units:\n  - unit: 0\n    errors: first\n", ErrUnknownErrMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(viper.New(), writeFile(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
