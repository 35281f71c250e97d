package norflash

import (
	"bytes"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/gentam/norflash/norflashtest"
)

func TestStatusRegisterString(t *testing.T) {
	c := qt.New(t)
	c.Assert(StatusRegister(0x00).String(), qt.Equals, "00000000")
	c.Assert(StatusRegister(0x03).String(), qt.Equals, "00000011 WEL,BUSY")
	c.Assert(StatusRegister(0x9C).String(), qt.Equals, "10011100 SRP,BP2,BP1,BP0")
}

func newTestPoller(c *qt.C, busyPolls int) (*Poller, *Executor, *norflashtest.Chip) {
	d := Uniform("test", 1<<20, 256, sector4KB)
	chip := norflashtest.New([3]byte{0xEF, 0x70, 0x18}, 1<<20, 256)
	chip.BusyPolls = busyPolls
	e := NewExecutor(chip, chip.CS, time.Second)

	// Start a sector erase so the chip reports BUSY.
	for _, op := range []Op{OpWriteEnable, OpSectorErase} {
		fr, err := Encode(&d, op, 0, 0)
		c.Assert(err, qt.IsNil)
		_, err = e.Execute(fr, nil)
		c.Assert(err, qt.IsNil)
	}
	return NewPoller(e, &d, 10*time.Microsecond), e, chip
}

func TestPollerWaitUntilReady(t *testing.T) {
	c := qt.New(t)
	p, _, chip := newTestPoller(c, 3)

	sr, err := p.ReadStatus()
	c.Assert(err, qt.IsNil)
	c.Assert(sr.Busy(), qt.IsTrue)

	c.Assert(p.WaitUntilReady(time.Second), qt.IsNil)
	c.Assert(chip.Busy(), qt.IsFalse)
	c.Assert(chip.BusyViolations, qt.Equals, 0)

	// WREN, erase, one read above, two busy reads and the ready read.
	c.Assert(chip.Ops, qt.DeepEquals, []byte{0x06, 0x20, 0x05, 0x05, 0x05, 0x05})
}

func TestPollerTimeout(t *testing.T) {
	c := qt.New(t)
	chip := norflashtest.New([3]byte{0xEF, 0x70, 0x18}, 1<<20, 256)
	chip.Stuck = true
	d := Uniform("test", 1<<20, 256, sector4KB)
	e := NewExecutor(chip, chip.CS, time.Second)
	for _, op := range []Op{OpWriteEnable, OpSectorErase} {
		fr, err := Encode(&d, op, 0, 0)
		c.Assert(err, qt.IsNil)
		_, err = e.Execute(fr, nil)
		c.Assert(err, qt.IsNil)
	}
	p := NewPoller(e, &d, 0)
	c.Assert(p.interval, qt.Equals, DefaultPollInterval)

	start := time.Now()
	err := p.WaitUntilReady(5 * time.Millisecond)
	c.Assert(err, qt.ErrorIs, ErrBusTimeout)
	c.Assert(err, qt.ErrorMatches, `device still busy \(00000001 BUSY\) after .*: bus timeout`)
	c.Assert(time.Since(start) >= 5*time.Millisecond, qt.IsTrue)
	c.Assert(chip.BusyViolations, qt.Equals, 0)
	c.Assert(bytes.Count(chip.Ops, []byte{0x05}) > 1, qt.IsTrue)
}
