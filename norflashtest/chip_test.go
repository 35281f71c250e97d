package norflashtest

import (
	"bytes"
	"errors"
	"io"
	"testing"

	qt "github.com/frankban/quicktest"
	"periph.io/x/conn/v3/gpio"
)

// tx runs one transaction with chip select asserted.
func tx(c *qt.C, chip *Chip, w ...byte) []byte {
	c.Assert(chip.CS.Out(gpio.Low), qt.IsNil)
	defer chip.CS.Out(gpio.High)
	r := make([]byte, len(w))
	c.Assert(chip.Tx(w, r), qt.IsNil)
	return r
}

func TestProgramRequiresWriteEnable(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)

	tx(c, chip, cmdPageProgram, 0, 0, 0x10, 0x00)
	c.Assert(chip.Bytes(0x10, 1), qt.DeepEquals, []byte{0xFF})

	tx(c, chip, cmdWriteEnable)
	c.Assert(tx(c, chip, cmdReadStatus, 0)[1], qt.Equals, byte(statusWEL))
	tx(c, chip, cmdPageProgram, 0, 0, 0x10, 0x0F)
	c.Assert(chip.Bytes(0x10, 1), qt.DeepEquals, []byte{0x0F})

	// Programming only clears bits.
	tx(c, chip, cmdWriteEnable)
	tx(c, chip, cmdPageProgram, 0, 0, 0x10, 0xF3)
	c.Assert(chip.Bytes(0x10, 1), qt.DeepEquals, []byte{0x03})
}

func TestProgramWrapsInPage(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)

	tx(c, chip, cmdWriteEnable)
	tx(c, chip, cmdPageProgram, 0, 0x01, 0xFF, 0x11, 0x22)
	c.Assert(chip.Bytes(0x1FF, 1), qt.DeepEquals, []byte{0x11})
	c.Assert(chip.Bytes(0x100, 1), qt.DeepEquals, []byte{0x22})
	c.Assert(chip.Bytes(0x200, 1), qt.DeepEquals, []byte{0xFF})
}

func TestBusy(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)
	chip.BusyPolls = 1

	tx(c, chip, cmdWriteEnable)
	tx(c, chip, cmdErase4KB, 0, 0x10, 0)
	c.Assert(chip.Busy(), qt.IsTrue)

	tx(c, chip, cmdRead, 0, 0, 0, 0)
	c.Assert(chip.BusyViolations, qt.Equals, 1)

	c.Assert(tx(c, chip, cmdReadStatus, 0)[1], qt.Equals, byte(statusBusy))
	c.Assert(tx(c, chip, cmdReadStatus, 0)[1], qt.Equals, byte(0))
	c.Assert(chip.Busy(), qt.IsFalse)
}

func TestReadID(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{0xEF, 0x70, 0x18}, 1<<16, 256)
	c.Assert(tx(c, chip, cmdReadID, 0, 0, 0), qt.DeepEquals, []byte{0, 0xEF, 0x70, 0x18})
	c.Assert(chip.String(), qt.Equals, "norflashtest(EF7018)")
}

func TestPowerDown(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{0xEF, 0x70, 0x18}, 1<<16, 256)
	tx(c, chip, cmdPowerDown)
	c.Assert(tx(c, chip, cmdReadID, 0, 0, 0), qt.DeepEquals, []byte{0, 0, 0, 0})
	tx(c, chip, cmdPowerUp)
	c.Assert(tx(c, chip, cmdReadID, 0, 0, 0), qt.DeepEquals, []byte{0, 0xEF, 0x70, 0x18})
}

func TestContinuousRead(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)
	copy(chip.Mem[0x40:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	tx(c, chip, cmdWriteEnable)
	tx(c, chip, cmdWriteStatus, 0, configQE)
	chip.Ops = nil

	r := tx(c, chip, cmdQuadIORead, 0, 0, 0x40, 0xA0, 0xFF, 0xFF, 0, 0)
	c.Assert(r[7:], qt.DeepEquals, []byte{0xDE, 0xAD})
	c.Assert(chip.Continuous(), qt.IsTrue)

	// No instruction byte while in continuous read mode.
	r = tx(c, chip, 0, 0, 0x42, 0xA0, 0xFF, 0xFF, 0, 0)
	c.Assert(r[6:], qt.DeepEquals, []byte{0xBE, 0xEF})

	tx(c, chip, 0xFF, 0xFF, 0xFF, 0xFF)
	c.Assert(chip.Continuous(), qt.IsFalse)
	c.Assert(chip.Ops, qt.DeepEquals, []byte{cmdQuadIORead, cmdQuadIORead, cmdResetContinuous})

	// Mode bits other than 0b10 on M5-4 end continuous read after the frame.
	tx(c, chip, cmdQuadIORead, 0, 0, 0x40, 0x00, 0xFF, 0xFF, 0)
	c.Assert(chip.Continuous(), qt.IsFalse)
}

func TestQuadEnable(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)
	chip.BusyPolls = 1
	copy(chip.Mem[0x40:], []byte{0xDE, 0xAD})

	// Quad I/O reads are ignored until QE is set.
	r := tx(c, chip, cmdQuadIORead, 0, 0, 0x40, 0xA0, 0xFF, 0xFF, 0, 0)
	c.Assert(r[7:], qt.DeepEquals, []byte{0, 0})
	c.Assert(chip.Continuous(), qt.IsFalse)
	c.Assert(chip.QuadRejects, qt.Equals, 1)

	// Status writes need WEL.
	tx(c, chip, cmdWriteStatus, 0, configQE)
	c.Assert(chip.QuadEnabled(), qt.IsFalse)
	c.Assert(tx(c, chip, cmdReadConfig, 0)[1], qt.Equals, byte(0))

	tx(c, chip, cmdWriteEnable)
	tx(c, chip, cmdWriteStatus, 0, configQE)
	c.Assert(chip.Busy(), qt.IsTrue)
	c.Assert(tx(c, chip, cmdReadStatus, 0)[1], qt.Equals, byte(statusBusy))
	c.Assert(tx(c, chip, cmdReadStatus, 0)[1], qt.Equals, byte(0))
	c.Assert(chip.QuadEnabled(), qt.IsTrue)
	c.Assert(tx(c, chip, cmdReadConfig, 0, 0), qt.DeepEquals, []byte{0, configQE, configQE})

	r = tx(c, chip, cmdQuadIORead, 0, 0, 0x40, 0xA0, 0xFF, 0xFF, 0, 0)
	c.Assert(r[7:], qt.DeepEquals, []byte{0xDE, 0xAD})
	c.Assert(chip.Continuous(), qt.IsTrue)
	c.Assert(chip.QuadRejects, qt.Equals, 1)
}

func TestChipSelect(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)
	c.Assert(chip.Tx([]byte{cmdReadID, 0, 0, 0}, make([]byte, 4)), qt.ErrorMatches, `norflashtest: chip select not asserted`)

	chip.Fault = errors.New("unplugged")
	c.Assert(chip.CS.Out(gpio.Low), qt.IsNil)
	c.Assert(chip.Tx([]byte{cmdReadID}, nil), qt.Equals, chip.Fault)
}

func TestWindow(t *testing.T) {
	c := qt.New(t)
	chip := New([3]byte{1, 2, 3}, 1<<16, 256)
	copy(chip.Mem[0x100:], "hello")

	_, err := chip.MapWindow(0x60000000, 1<<17)
	c.Assert(err, qt.ErrorMatches, `norflashtest: window of 131072 bytes exceeds chip size 65536`)

	r, err := chip.MapWindow(0x60000000, 1<<16)
	c.Assert(err, qt.IsNil)
	c.Assert(chip.Mapped(), qt.IsTrue)

	buf := make([]byte, 5)
	_, err = r.ReadAt(buf, 0x100)
	c.Assert(err, qt.IsNil)
	c.Assert(string(buf), qt.Equals, "hello")

	n, err := r.ReadAt(buf, 1<<16-2)
	c.Assert(n, qt.Equals, 2)
	c.Assert(err, qt.Equals, io.EOF)

	c.Assert(chip.UnmapWindow(), qt.IsNil)
	_, err = r.ReadAt(buf, 0)
	c.Assert(err, qt.ErrorMatches, `norflashtest: window not mapped`)
	c.Assert(bytes.Equal(chip.Bytes(0x100, 5), []byte("hello")), qt.IsTrue)
}
