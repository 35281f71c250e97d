// Package norflashtest provides a simulated SPI NOR flash chip that speaks
// the common 24-bit command set over a periph spi.Conn.
package norflashtest

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

const (
	cmdPowerUp         = 0xAB
	cmdPowerDown       = 0xB9
	cmdReadID          = 0x9F
	cmdRead            = 0x03
	cmdFastRead        = 0x0B
	cmdQuadIORead      = 0xEB
	cmdWriteEnable     = 0x06
	cmdWriteDisable    = 0x04
	cmdPageProgram     = 0x02
	cmdErase4KB        = 0x20
	cmdErase32KB       = 0x52
	cmdErase64KB       = 0xD8
	cmdEraseChip       = 0xC7
	cmdEraseChipAlt    = 0x60
	cmdReadStatus      = 0x05
	cmdReadConfig      = 0x35
	cmdWriteStatus     = 0x01
	cmdResetContinuous = 0xFF

	statusBusy = 1 << 0
	statusWEL  = 1 << 1

	configQE = 1 << 1
)

// Chip is a simulated SPI NOR flash. Every Tx call is one chip-select
// framed transaction. Exported fields may be changed between transfers.
type Chip struct {
	sync.Mutex

	// CS must be driven low for the duration of each transfer.
	CS *gpiotest.Pin

	ID       [3]byte
	Mem      []byte
	PageSize int

	// BusyPolls is the number of status reads reporting BUSY after each
	// program or erase.
	BusyPolls int
	// Stuck keeps BUSY set forever after the next program or erase.
	Stuck bool
	// Hang blocks transfers until the channel is closed.
	Hang chan struct{}
	// Fault is returned by every transfer when non-nil.
	Fault error
	// MapFault is returned by MapWindow when non-nil.
	MapFault error

	// Ops records the instruction of each transfer. Transfers in continuous
	// read mode are recorded as 0xEB.
	Ops []byte
	// BusyViolations counts commands other than read status received while
	// a program or erase was in progress.
	BusyViolations int
	// QuadRejects counts quad I/O reads ignored because the quad enable bit
	// was clear.
	QuadRejects int

	wel        bool
	config     byte // status register 2 / configuration register
	busy       int // remaining BUSY status reads, -1 forever
	powerDown  bool
	continuous bool
	mapped     bool
}

// New returns an erased chip of size bytes.
func New(id [3]byte, size, pageSize int) *Chip {
	c := &Chip{
		CS:       &gpiotest.Pin{N: "CS", L: gpio.High},
		ID:       id,
		Mem:      make([]byte, size),
		PageSize: pageSize,
	}
	for i := range c.Mem {
		c.Mem[i] = 0xFF
	}
	return c
}

func (c *Chip) String() string {
	return fmt.Sprintf("norflashtest(%X)", c.ID)
}

func (c *Chip) Duplex() conn.Duplex {
	return conn.Full
}

// Tx runs one transaction. w and r may alias.
func (c *Chip) Tx(w, r []byte) error {
	if c.Hang != nil {
		<-c.Hang
	}

	c.Lock()
	defer c.Unlock()
	if c.Fault != nil {
		return c.Fault
	}
	if c.CS != nil && c.CS.Read() != gpio.Low {
		return errors.New("norflashtest: chip select not asserted")
	}
	if len(r) != 0 && len(r) != len(w) {
		return errors.New("norflashtest: r and w must have the same length")
	}

	cmd := append([]byte(nil), w...)
	out := make([]byte, len(cmd))
	c.exec(cmd, out)
	copy(r, out)
	return nil
}

// TxPackets runs each packet as its own transaction.
func (c *Chip) TxPackets(p []spi.Packet) error {
	for _, pkt := range p {
		if err := c.Tx(pkt.W, pkt.R); err != nil {
			return err
		}
	}
	return nil
}

func (c *Chip) exec(cmd, out []byte) {
	if len(cmd) == 0 {
		return
	}

	if c.continuous {
		if allFF(cmd) {
			c.Ops = append(c.Ops, cmdResetContinuous)
			c.continuous = false
			return
		}
		c.Ops = append(c.Ops, cmdQuadIORead)
		c.quadRead(cmd, out)
		return
	}

	op := cmd[0]
	c.Ops = append(c.Ops, op)
	if c.powerDown && op != cmdPowerUp {
		return
	}
	if c.busy != 0 && op != cmdReadStatus {
		c.BusyViolations++
		return
	}

	switch op {
	case cmdReadStatus:
		sr := c.status()
		for i := 1; i < len(out); i++ {
			out[i] = sr
		}
		if c.busy > 0 {
			c.busy--
		}
	case cmdWriteEnable:
		c.wel = true
	case cmdWriteDisable:
		c.wel = false
	case cmdReadID:
		copy(out[1:], c.ID[:])
	case cmdRead:
		c.read(cmd, out, 4)
	case cmdFastRead:
		c.read(cmd, out, 5)
	case cmdQuadIORead:
		if c.config&configQE == 0 {
			c.QuadRejects++
			return
		}
		c.quadRead(cmd[1:], out[1:])
	case cmdReadConfig:
		for i := 1; i < len(out); i++ {
			out[i] = c.config
		}
	case cmdWriteStatus:
		// Only the second byte is kept; protection bits are not modelled.
		if c.wel && len(cmd) >= 2 {
			if len(cmd) >= 3 {
				c.config = cmd[2]
			}
			c.startBusy()
		}
	case cmdPageProgram:
		c.program(cmd)
	case cmdErase4KB:
		c.erase(cmd, 4<<10)
	case cmdErase32KB:
		c.erase(cmd, 32<<10)
	case cmdErase64KB:
		c.erase(cmd, 64<<10)
	case cmdEraseChip, cmdEraseChipAlt:
		if c.wel {
			for i := range c.Mem {
				c.Mem[i] = 0xFF
			}
			c.startBusy()
		}
	case cmdPowerDown:
		c.powerDown = true
	case cmdPowerUp:
		c.powerDown = false
	}
}

func (c *Chip) status() byte {
	var sr byte
	if c.busy != 0 {
		sr |= statusBusy
	}
	if c.wel {
		sr |= statusWEL
	}
	return sr
}

func (c *Chip) startBusy() {
	c.wel = false
	c.busy = c.BusyPolls
	if c.Stuck {
		c.busy = -1
	}
}

func addr24(b []byte) int {
	return int(b[0])<<16 | int(b[1])<<8 | int(b[2])
}

// read serves a read whose data starts after hdr bytes.
func (c *Chip) read(cmd, out []byte, hdr int) {
	if len(cmd) < hdr {
		return
	}
	addr := addr24(cmd[1:4])
	for i := hdr; i < len(out); i++ {
		out[i] = c.Mem[(addr+i-hdr)%len(c.Mem)]
	}
}

// quadRead serves a quad I/O read without its instruction byte: address,
// mode bits, two dummy bytes, data. Mode bits 0b10xx_xxxx on M5-4 keep the
// chip in continuous read mode.
func (c *Chip) quadRead(cmd, out []byte) {
	const hdr = 6
	if len(cmd) < hdr {
		return
	}
	c.continuous = cmd[3]&0x30 == 0x20
	addr := addr24(cmd[0:3])
	for i := hdr; i < len(out); i++ {
		out[i] = c.Mem[(addr+i-hdr)%len(c.Mem)]
	}
}

// program clears bits within one page; data past the page end wraps to the
// start of the same page.
func (c *Chip) program(cmd []byte) {
	if !c.wel || len(cmd) < 4 {
		return
	}
	addr := addr24(cmd[1:4]) % len(c.Mem)
	page := addr - addr%c.PageSize
	for i, b := range cmd[4:] {
		a := page + (addr-page+i)%c.PageSize
		c.Mem[a] &= b
	}
	c.startBusy()
}

func (c *Chip) erase(cmd []byte, size int) {
	if !c.wel || len(cmd) < 4 {
		return
	}
	base := addr24(cmd[1:4]) % len(c.Mem)
	base -= base % size
	for i := base; i < base+size && i < len(c.Mem); i++ {
		c.Mem[i] = 0xFF
	}
	c.startBusy()
}

func allFF(b []byte) bool {
	for _, v := range b {
		if v != 0xFF {
			return false
		}
	}
	return true
}

// Continuous reports whether the chip is in continuous read mode.
func (c *Chip) Continuous() bool {
	c.Lock()
	defer c.Unlock()
	return c.continuous
}

// QuadEnabled reports whether the quad enable bit is set.
func (c *Chip) QuadEnabled() bool {
	c.Lock()
	defer c.Unlock()
	return c.config&configQE != 0
}

// Mapped reports whether a window is mapped.
func (c *Chip) Mapped() bool {
	c.Lock()
	defer c.Unlock()
	return c.mapped
}

// Busy reports whether a program or erase is in progress.
func (c *Chip) Busy() bool {
	c.Lock()
	defer c.Unlock()
	return c.busy != 0
}

// Bytes returns a copy of n bytes of memory at addr.
func (c *Chip) Bytes(addr, n int) []byte {
	c.Lock()
	defer c.Unlock()
	return append([]byte(nil), c.Mem[addr:addr+n]...)
}

// MapWindow maps the chip memory as a controller with mapping hardware
// would. The returned reader fails once the window is unmapped.
func (c *Chip) MapWindow(base uint32, size int) (io.ReaderAt, error) {
	c.Lock()
	defer c.Unlock()
	if c.MapFault != nil {
		return nil, c.MapFault
	}
	if size > len(c.Mem) {
		return nil, fmt.Errorf("norflashtest: window of %d bytes exceeds chip size %d", size, len(c.Mem))
	}
	c.mapped = true
	return &window{c: c, size: size}, nil
}

// UnmapWindow tears down the mapped window.
func (c *Chip) UnmapWindow() error {
	c.Lock()
	defer c.Unlock()
	c.mapped = false
	return nil
}

type window struct {
	c    *Chip
	size int
}

func (w *window) ReadAt(p []byte, off int64) (int, error) {
	w.c.Lock()
	defer w.c.Unlock()
	if !w.c.mapped {
		return 0, errors.New("norflashtest: window not mapped")
	}
	if off < 0 || off >= int64(w.size) {
		return 0, io.EOF
	}
	n := copy(p, w.c.Mem[off:w.size])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
