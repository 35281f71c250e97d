package norflash

import (
	"fmt"
	"io"
)

// Mapper is implemented by bus controllers that can map the flash into the
// host address space. While mapped, the controller issues read frames
// itself and the bus must not be used for other commands.
type Mapper interface {
	// MapWindow maps size bytes of the device at bus address base.
	MapWindow(base uint32, size int) (io.ReaderAt, error)
	// UnmapWindow tears down the window and returns the bus to the driver.
	UnmapWindow() error
}

// Window is the read-only memory-mapped view of the device. It is valid
// until the driver returns to Indirect mode.
type Window struct {
	f    *Flash
	base uint32
	size int
	r    io.ReaderAt
}

// Base returns the bus address of device offset 0.
func (w *Window) Base() uint32 { return w.base }

// Size returns the size of the window in bytes.
func (w *Window) Size() int { return w.size }

// ReadAt reads len(p) bytes at window offset off.
func (w *Window) ReadAt(p []byte, off int64) (int, error) {
	w.f.mu.Lock()
	defer w.f.mu.Unlock()
	if w.f.window != w {
		return 0, fmt.Errorf("window read: %w: window is unmapped", ErrMode)
	}
	if off < 0 || off+int64(len(p)) > int64(w.size) {
		return 0, &AddressError{Op: OpFastRead, Addr: int(off), Len: len(p), Reason: "outside window"}
	}
	return w.r.ReadAt(p, off)
}

// Load reads the byte at bus address addr, the way a load instruction
// against the mapped range would.
func (w *Window) Load(addr uint32) (byte, error) {
	var b [1]byte
	if _, err := w.ReadAt(b[:], int64(addr)-int64(w.base)); err != nil {
		return 0, err
	}
	return b[0], nil
}

// busWindow serves window reads with fast read frames on the bus when the
// controller has no mapping hardware. The caller holds f.mu.
type busWindow struct {
	f *Flash
}

func (bw busWindow) ReadAt(p []byte, off int64) (int, error) {
	addr := int(off)
	n := 0
	for n < len(p) {
		chunk := min(len(p)-n, maxReadTx-8)
		fr, err := Encode(&bw.f.desc, OpFastRead, addr, chunk)
		if err != nil {
			return n, err
		}
		if _, err := bw.f.exec.Execute(fr, p[n:n+chunk]); err != nil {
			return n, err
		}
		addr += chunk
		n += chunk
	}
	return n, nil
}

// SetMode switches between indirect and memory-mapped access. Switching to
// the current mode is a no-op. The switch is refused with ErrBusBusy while a
// transfer is in flight.
func (f *Flash) SetMode(m Mode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if m != Indirect && m != MemoryMapped {
		return fmt.Errorf("%w: unknown mode %v", ErrMode, m)
	}
	if m == f.mode {
		if m == Indirect && f.continuous {
			return f.resetContinuous()
		}
		return nil
	}
	if f.exec.Busy() {
		return fmt.Errorf("switch to %v mode: %w", m, ErrBusBusy)
	}

	var err error
	if m == MemoryMapped {
		err = f.enterMapped()
	} else {
		err = f.exitMapped()
	}
	if err != nil {
		return err
	}
	f.log.Info("access mode changed", "mode", m.String())
	return nil
}

// EnableXIP switches to MemoryMapped mode if enabled, or back to Indirect.
func (f *Flash) EnableXIP(enabled bool) error {
	if enabled {
		return f.SetMode(MemoryMapped)
	}
	return f.SetMode(Indirect)
}

// quad reports whether the mapped path uses quad I/O continuous read. Both
// the part and the controller must drive four data lines.
func (f *Flash) quad() bool {
	return f.desc.Width == Quad && f.cfg.BusWidth == Quad && f.cfg.Mapper != nil
}

// enableQuad sets the quad enable bit unless it is already set.
func (f *Flash) enableQuad() error {
	sr, err := f.poll.ReadStatus()
	if err != nil {
		return err
	}
	var cr [1]byte
	if err := f.do(OpReadConfig, 0, cr[:]); err != nil {
		return err
	}
	if cr[0]&QuadEnableBit != 0 {
		return nil
	}
	f.log.Debug("set quad enable", "status", sr.String(), "config", fmt.Sprintf("%08b", cr[0]))
	if err := f.writeEnable(); err != nil {
		return err
	}
	if err := f.do(OpWriteStatus, 0, []byte{byte(sr), cr[0] | QuadEnableBit}); err != nil {
		return err
	}
	return f.waitReady(f.tW())
}

func (f *Flash) resetContinuous() error {
	if err := f.do(OpResetContinuous, 0, nil); err != nil {
		return fmt.Errorf("reset continuous read: %w", err)
	}
	f.continuous = false
	return nil
}

func (f *Flash) enterMapped() error {
	if f.continuous {
		if err := f.resetContinuous(); err != nil {
			return err
		}
	}

	if f.quad() {
		if err := f.enableQuad(); err != nil {
			return fmt.Errorf("enable quad I/O: %w", err)
		}
		// Latch continuous read mode with a one byte quad I/O read.
		var b [1]byte
		if err := f.do(OpQuadIORead, 0, b[:]); err != nil {
			return fmt.Errorf("enter continuous read: %w", err)
		}
		f.continuous = true
	}

	var r io.ReaderAt = busWindow{f}
	if f.cfg.Mapper != nil {
		mr, err := f.cfg.Mapper.MapWindow(f.desc.Base, f.desc.Size)
		if err != nil {
			if f.continuous {
				if rerr := f.resetContinuous(); rerr != nil {
					f.log.Error("continuous read reset failed", "err", rerr)
				}
			}
			return fmt.Errorf("map window: %w: %w", ErrMode, err)
		}
		r = mr
	}

	f.window = &Window{f: f, base: f.desc.Base, size: f.desc.Size, r: r}
	f.mode = MemoryMapped
	return nil
}

// exitMapped tears the window down. Once the controller has released the
// bus the driver is in Indirect mode even if the reset frame fails; the
// reset is then repeated before the next command.
func (f *Flash) exitMapped() error {
	if f.cfg.Mapper != nil {
		if err := f.cfg.Mapper.UnmapWindow(); err != nil {
			return fmt.Errorf("unmap window: %w: %w", ErrMode, err)
		}
	}
	f.window = nil
	f.mode = Indirect
	if f.continuous {
		return f.resetContinuous()
	}
	return nil
}

// Window returns the mapped window. It fails with ErrMode unless the driver
// is in MemoryMapped mode.
func (f *Flash) Window() (*Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != MemoryMapped {
		return nil, fmt.Errorf("window: %w: device is in %v mode", ErrMode, f.mode)
	}
	return f.window, nil
}
