package norflash

import (
	"fmt"
	"strings"
	"time"
)

// StatusRegister represents the status register of the flash chip.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect2() bool         { return sr&(1<<4) != 0 }
func (sr StatusRegister) BlockProtect1() bool         { return sr&(1<<3) != 0 }
func (sr StatusRegister) BlockProtect0() bool         { return sr&(1<<2) != 0 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	b := fmt.Sprintf("%08b", byte(sr))
	flags := []struct {
		set  bool
		name string
	}{
		{sr.StatusRegisterProtect(), "SRP"},
		{sr.SectorProtect(), "SEC"},
		{sr.TopBottom(), "TB"},
		{sr.BlockProtect2(), "BP2"},
		{sr.BlockProtect1(), "BP1"},
		{sr.BlockProtect0(), "BP0"},
		{sr.WriteEnabled(), "WEL"},
		{sr.Busy(), "BUSY"},
	}
	s := []string{}
	for _, f := range flags {
		if f.set {
			s = append(s, f.name)
		}
	}
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}

// DefaultPollInterval is the first backoff between status reads.
const DefaultPollInterval = 100 * time.Microsecond

// maxBackoff caps the doubling poll interval.
const maxBackoff = 10 * time.Millisecond

// Poller waits for program and erase cycles to complete.
type Poller struct {
	exec     *Executor
	desc     *Descriptor
	interval time.Duration
}

// NewPoller returns a poller that issues status reads through exec.
func NewPoller(exec *Executor, d *Descriptor, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{exec: exec, desc: d, interval: interval}
}

// ReadStatus issues one read status command.
func (p *Poller) ReadStatus() (StatusRegister, error) {
	fr, err := Encode(p.desc, OpReadStatus, 0, 1)
	if err != nil {
		return 0, err
	}
	var buf [1]byte
	if _, err := p.exec.Execute(fr, buf[:]); err != nil {
		return 0, err
	}
	return StatusRegister(buf[0]), nil
}

// WaitUntilReady polls the status register until BUSY clears, sleeping
// between reads with a doubling interval. It returns ErrBusTimeout if the
// device is still busy after timeout. Set timeout to 0 to wait indefinitely.
func (p *Poller) WaitUntilReady(timeout time.Duration) error {
	start := time.Now()
	backoff := p.interval
	for {
		sr, err := p.ReadStatus()
		if err != nil {
			return err
		}
		if !sr.Busy() {
			return nil
		}

		elapsed := time.Since(start)
		sleep := backoff
		if timeout > 0 {
			if elapsed >= timeout {
				return fmt.Errorf("device still busy (%v) after %v: %w", sr, elapsed.Round(time.Microsecond), ErrBusTimeout)
			}
			sleep = min(sleep, timeout-elapsed)
		}
		time.Sleep(sleep)
		backoff = min(backoff*2, max(p.interval, maxBackoff))
	}
}
