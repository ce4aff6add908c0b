package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jangala-dev/tinygo-usart/usartx"
)

// recorder is a minimal handler pair that reads/writes the port directly.
type recorder struct {
	p    *Port
	rx   []frame
	tx   []byte
	dres int
}

func (r *recorder) HandleRXC() {
	d, s := r.p.ReadData()
	r.rx = append(r.rx, frame{data: d, status: s})
}

func (r *recorder) HandleDRE() {
	r.dres++
	if len(r.tx) == 0 {
		r.p.ClearControl(usartx.DREInterrupt)
		return
	}
	r.p.WriteData(r.tx[0])
	r.tx = r.tx[1:]
}

func enable(p *Port, c usartx.Control) {
	s := p.DisableInterrupts()
	p.SetControl(c)
	p.RestoreInterrupts(s)
}

func TestTransmitPipeline(t *testing.T) {
	p := New("tx")
	r := &recorder{p: p, tx: []byte("abc")}
	p.Attach(r)
	enable(p, usartx.TransmitterEnable|usartx.DREInterrupt)

	// Shifter and data register fill at once.
	p.Service()
	s := p.Snapshot()
	assert.True(t, s.Shifting)
	assert.False(t, s.DREIF)

	for i := 0; i < 5; i++ {
		p.Step()
	}
	assert.Equal(t, "abc", string(p.Transmitted()))
	s = p.Snapshot()
	assert.True(t, s.DREIF)
	assert.False(t, s.Shifting)
	assert.Zero(t, s.Control&usartx.DREInterrupt, "DRE handler should disarm itself")
	assert.Zero(t, s.LostWrites)
}

func TestWriteWhileFullIsLost(t *testing.T) {
	p := New("lost")
	enable(p, usartx.TransmitterEnable)

	s := p.DisableInterrupts()
	p.WriteData('1') // shifter
	p.WriteData('2') // data register
	p.WriteData('3') // DREIF clear: dropped
	p.RestoreInterrupts(s)

	assert.Equal(t, 1, p.Snapshot().LostWrites)
	p.Tick()
	p.Tick()
	assert.Equal(t, "12", string(p.TakeTransmitted()))
	assert.Empty(t, p.Transmitted())
}

func TestReceiveOverrun(t *testing.T) {
	p := New("rx")
	r := &recorder{p: p}
	p.Attach(r)
	enable(p, usartx.ReceiverEnable|usartx.RXCInterrupt)

	p.Inject('a', 'b', 'c')
	p.Tick()
	p.Tick()
	p.Tick()
	assert.Equal(t, 1, p.Snapshot().Overruns)

	require.Equal(t, 2, p.Service())
	require.Len(t, r.rx, 2)
	assert.Equal(t, uint8('a'), r.rx[0].data)
	assert.Equal(t, usartx.StatusRXCIF, r.rx[0].status)
	assert.Equal(t, uint8('b'), r.rx[1].data)
	assert.Equal(t, usartx.StatusRXCIF|usartx.StatusBUFOVF, r.rx[1].status)
}

func TestReceiverDisabledIgnoresLine(t *testing.T) {
	p := New("off")
	p.Inject('x')
	p.Tick()
	s := p.Snapshot()
	assert.Zero(t, s.RxBuffered)
	assert.Zero(t, s.Line)
}

func TestInjectStatusCarriesFlags(t *testing.T) {
	p := New("flags", WithRxDepth(4))
	r := &recorder{p: p}
	p.Attach(r)
	enable(p, usartx.ReceiverEnable|usartx.RXCInterrupt)

	p.InjectStatus('p', usartx.StatusPERR)
	p.Step()
	require.Len(t, r.rx, 1)
	assert.Equal(t, usartx.StatusRXCIF|usartx.StatusPERR, r.rx[0].status)
}

func TestDisableTransmitterCompletesPending(t *testing.T) {
	p := New("close")
	enable(p, usartx.TransmitterEnable)

	s := p.DisableInterrupts()
	p.WriteData('x')
	p.WriteData('y')
	p.ClearControl(usartx.TransmitterEnable)
	p.RestoreInterrupts(s)

	assert.Equal(t, "xy", string(p.Transmitted()))
	assert.True(t, p.Snapshot().Idle())
}

func TestConnect(t *testing.T) {
	a, b := New("a"), New("b")
	Connect(a, b)
	ra, rb := &recorder{p: a, tx: []byte("ping")}, &recorder{p: b}
	a.Attach(ra)
	b.Attach(rb)
	enable(a, usartx.TransmitterEnable|usartx.DREInterrupt)
	enable(b, usartx.ReceiverEnable|usartx.RXCInterrupt)

	for i := 0; i < 10; i++ {
		a.Step()
		b.Step()
	}
	var got []byte
	for _, f := range rb.rx {
		got = append(got, f.data)
	}
	assert.Equal(t, "ping", string(got))
}

func TestRunServicesOnKick(t *testing.T) {
	p := New("run")
	r := &recorder{p: p, tx: []byte("k")}
	p.Attach(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, time.Hour) }()

	enable(p, usartx.TransmitterEnable|usartx.DREInterrupt)
	require.Eventually(t, func() bool {
		return p.Snapshot().Control&usartx.DREInterrupt == 0
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPinsAndBaud(t *testing.T) {
	p := New("cfg")
	s := p.DisableInterrupts()
	p.ConfigurePins()
	p.SetBaud(1389)
	p.RestoreInterrupts(s)

	snap := p.Snapshot()
	assert.Equal(t, 1, snap.Pins)
	assert.Equal(t, uint16(1389), snap.Baud)
	assert.Equal(t, "cfg", p.Name())
}
