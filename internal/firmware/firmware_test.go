package firmware

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jangala-dev/tinygo-usart/usartx"
)

// fakePort replays encoded reads and records everything sent.
type fakePort struct {
	bytes.Buffer
	reads []uint16
}

func (f *fakePort) SendChar(c byte) { f.WriteByte(c) }

func (f *fakePort) SendString(p []byte, n uint8) { f.Buffer.Write(p[:n]) }

func (f *fakePort) ReadChar() uint16 {
	if len(f.reads) == 0 {
		return usartx.NoData
	}
	c := f.reads[0]
	f.reads = f.reads[1:]
	return c
}

func TestLabels(t *testing.T) {
	assert.Empty(t, Labels('a'))
	assert.Equal(t, []string{"USART PARITY ERROR: "}, Labels(usartx.ParityError|'a'))
	assert.Equal(t, []string{"USART BUFFER OVERFLOW ERROR: "}, Labels(0x4000|'a'))
	assert.Equal(t,
		[]string{"USART FRAME ERROR: ", "USART BUFFER OVERFLOW ERROR: "},
		Labels(usartx.FrameError|'a'))
}

func TestEcho(t *testing.T) {
	f := &fakePort{reads: []uint16{'o', usartx.ParityError | 'k'}}
	assert.Equal(t, 2, Echo(f))
	assert.Equal(t, "oUSART PARITY ERROR: k", f.String())
	assert.Zero(t, Echo(f))
}

func TestDemo_Run(t *testing.T) {
	f := &fakePort{reads: []uint16{'x'}}
	pauses := 0
	d := &Demo{Rounds: 2, Pause: func() { pauses++ }}

	assert.Equal(t, 1, d.Run(f))
	out := f.String()
	assert.True(t, strings.HasPrefix(out, string(Banner)+"Hello world!\r\n"))
	assert.Contains(t, out, "Counter value is: 0x00 x")
	assert.Contains(t, out, "Counter value is: 0x01 ")
	assert.True(t, strings.HasSuffix(out, Trailer))
	assert.Equal(t, 2, pauses)

	// The counter carries over between runs.
	f.Reset()
	d.Run(f)
	assert.Contains(t, f.String(), "Counter value is: 0x02 ")
}
