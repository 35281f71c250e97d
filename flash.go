package norflash

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Flash drives a SPI NOR flash chip. All methods are serialized; the bus and
// the chip are owned by the Flash for the duration of each call.
type Flash struct {
	mu   sync.Mutex
	exec *Executor
	poll *Poller
	cfg  Config
	log  Logger

	id   [3]byte // JEDEC ID of the flash chip
	pr   *flashParams
	desc Descriptor

	mode   Mode
	window *Window

	// continuous is set while the chip may be in continuous read mode and
	// needs a reset frame before it accepts commands again.
	continuous bool
}

// New returns a driver for the chip on conn selected by cs. No I/O is done;
// call ReadID to identify the chip and adopt its geometry.
func New(conn spi.Conn, cs gpio.PinOut, opts ...Option) (*Flash, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &Flash{
		exec: NewExecutor(conn, cs, cfg.BusTimeout),
		cfg:  cfg,
		log:  cfg.Logger,
	}
	if f.log == nil {
		f.log = nopLogger{}
	}

	if cfg.Descriptor != nil {
		f.desc = *cfg.Descriptor
	} else {
		// Until the chip is identified assume the largest 24-bit device
		// with the common 4KB/256B geometry.
		f.desc = Uniform("", max24, 256, sector4KB)
	}
	if err := f.desc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}
	switch cfg.BusWidth {
	case Single:
	case Quad:
		if cfg.Mapper == nil {
			return nil, errors.New("quad bus width requires a Mapper")
		}
	default:
		return nil, fmt.Errorf("unsupported bus width %v", cfg.BusWidth)
	}
	f.poll = NewPoller(f.exec, &f.desc, cfg.PollInterval)
	return f, nil
}

// do encodes op and executes it with buf as the data phase.
func (f *Flash) do(op Op, addr int, buf []byte) error {
	fr, err := Encode(&f.desc, op, addr, len(buf))
	if err != nil {
		return err
	}
	_, err = f.exec.Execute(fr, buf)
	return err
}

func (f *Flash) requireIndirect(op Op) error {
	if f.mode != Indirect {
		return fmt.Errorf("%v: %w: device is in %v mode", op, ErrMode, f.mode)
	}
	if f.continuous {
		if err := f.resetContinuous(); err != nil {
			return fmt.Errorf("%v: %w", op, err)
		}
	}
	return nil
}

func (f *Flash) waitReady(timeout time.Duration) error {
	if f.cfg.ReadyTimeout > 0 {
		timeout = f.cfg.ReadyTimeout
	}
	return f.poll.WaitUntilReady(timeout)
}

func (f *Flash) PowerUp() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpPowerUp); err != nil {
		return err
	}
	if err := f.do(OpPowerUp, 0, nil); err != nil {
		return err
	}
	time.Sleep(f.tRES1())
	return nil
}

func (f *Flash) PowerDown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpPowerDown); err != nil {
		return err
	}
	if err := f.do(OpPowerDown, 0, nil); err != nil {
		return err
	}
	time.Sleep(f.tDP())
	return nil
}

// ReadID returns the JEDEC ID of the flash chip and configures its parameters.
// It returns a non-empty name for known IDs. The extended device string is
// ignored. A descriptor set with WithDescriptor is kept.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err = f.requireIndirect(OpReadID); err != nil {
		return
	}

	buf := make([]byte, 3)
	if err = f.do(OpReadID, 0, buf); err != nil {
		return
	}

	f.id = [3]byte(buf)
	if params, ok := knownFlash[f.id]; ok {
		f.pr = &params
		name = params.desc.Name
		if f.cfg.Descriptor == nil {
			f.desc = params.desc
		}
	}
	f.log.Debug("flash identified", "id", fmt.Sprintf("%X", f.id), "name", name)
	return f.id, name, nil
}

// ReadStatusRegister reads the status register once.
func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpReadStatus); err != nil {
		return 0, err
	}
	return f.poll.ReadStatus()
}

// WaitUntilReady polls the status register until the device is not busy.
func (f *Flash) WaitUntilReady(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpReadStatus); err != nil {
		return err
	}
	return f.poll.WaitUntilReady(timeout)
}

// maxReadTx limits a read transfer to the MPSSE maximum. [FTDI-AN_108]
const maxReadTx = 65536

// ReadAt reads len(p) bytes at device offset off, splitting the read into
// multiple transactions if needed to stay within the maximum transaction
// size. It implements io.ReaderAt.
func (f *Flash) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpRead); err != nil {
		return 0, err
	}
	if off < 0 || off+int64(len(p)) > int64(f.desc.Size) {
		return 0, &AddressError{Op: OpRead, Addr: int(off), Len: len(p), Reason: "outside device"}
	}

	addr := int(off)
	n := 0
	for n < len(p) {
		chunk := min(len(p)-n, maxReadTx-4)
		if err := f.readChunk(addr, p[n:n+chunk]); err != nil {
			return n, err
		}
		addr += chunk
		n += chunk
	}
	return n, nil
}

// readChunk reads one transfer, retrying bus timeouts once the bus drains.
func (f *Flash) readChunk(addr int, p []byte) error {
	fr, err := Encode(&f.desc, OpRead, addr, len(p))
	if err != nil {
		return err
	}
	for attempt := 0; ; attempt++ {
		_, err = f.exec.Execute(fr, p)
		if err == nil || !Retryable(err) || attempt >= f.cfg.Retries {
			return err
		}
		f.log.Debug("read timed out, retrying", "addr", addr, "attempt", attempt+1)
		if werr := f.exec.Wait(f.cfg.BusTimeout); werr != nil {
			return err
		}
	}
}

// Read returns n bytes read at addr.
func (f *Flash) Read(addr, n int) ([]byte, error) {
	if n < 0 {
		return nil, &AddressError{Op: OpRead, Addr: addr, Len: n, Reason: "negative length"}
	}
	out := make([]byte, n)
	if _, err := f.ReadAt(out, int64(addr)); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *Flash) writeEnable() error {
	return f.do(OpWriteEnable, 0, nil)
}

// pageProgram programs data within a single page and waits for completion.
func (f *Flash) pageProgram(addr int, data []byte) error {
	fr, err := Encode(&f.desc, OpPageProgram, addr, len(data))
	if err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	if _, err := f.exec.Execute(fr, data); err != nil {
		return err
	}
	return f.waitReady(f.tPP())
}

// Write programs p at addr, splitting it at page boundaries. The region must
// have been erased since it was last written.
func (f *Flash) Write(addr int, p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpPageProgram); err != nil {
		return err
	}
	if addr < 0 || addr+len(p) > f.desc.Size {
		return &AddressError{Op: OpPageProgram, Addr: addr, Len: len(p), Reason: "outside device"}
	}

	for len(p) > 0 {
		chunk := min(len(p), f.desc.PageSize-addr%f.desc.PageSize)
		if err := f.pageProgram(addr, p[:chunk]); err != nil {
			return err
		}
		addr += chunk
		p = p[chunk:]
	}
	return nil
}

// WriteFrom programs the contents of r starting at addr and returns the
// number of bytes written.
func (f *Flash) WriteFrom(r io.Reader, addr int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpPageProgram); err != nil {
		return 0, err
	}

	buf := make([]byte, f.desc.PageSize)
	written := 0
	for {
		chunk := f.desc.PageSize - addr%f.desc.PageSize
		n, err := io.ReadFull(r, buf[:chunk])
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return written, err
		}
		if n == 0 {
			return written, nil
		}
		if err := f.pageProgram(addr, buf[:n]); err != nil {
			return written, err
		}
		addr += n
		written += n
		if n < chunk {
			return written, nil
		}
	}
}

func (f *Flash) erase(op Op, addr int, timeout time.Duration) error {
	fr, err := Encode(&f.desc, op, addr, 0)
	if err != nil {
		return err
	}
	if err := f.writeEnable(); err != nil {
		return err
	}
	if _, err := f.exec.Execute(fr, nil); err != nil {
		return err
	}
	return f.waitReady(timeout)
}

// Erase erases the size bytes starting from baseAddr. Both ends must fall on
// erase sector boundaries of their region. Block erase is used for as much
// as possible where the part supports it.
func (f *Flash) Erase(baseAddr, size int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpSectorErase); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}
	end := baseAddr + size
	if baseAddr < 0 || size < 0 || end > f.desc.Size {
		return &AddressError{Op: OpSectorErase, Addr: baseAddr, Len: size, Reason: "outside device"}
	}
	if s := f.desc.EraseSize(end - 1); end%s != 0 {
		return &AddressError{Op: OpSectorErase, Addr: baseAddr, Len: size,
			Reason: fmt.Sprintf("end 0x%X not aligned to 0x%X sector", end, s)}
	}

	block := f.desc.BlockSize
	for addr := baseAddr; addr < end; {
		sector := f.desc.EraseSize(addr)
		if block > sector && addr%block == 0 && end-addr >= block && f.desc.EraseSize(addr+block-1) == sector {
			f.log.Debug("erase block", "addr", addr, "size", block)
			if err := f.erase(OpBlockErase, addr, f.tErase64KB()); err != nil {
				return err
			}
			addr += block
			continue
		}
		f.log.Debug("erase sector", "addr", addr, "size", sector)
		if err := f.erase(OpSectorErase, addr, f.tErase(sector)); err != nil {
			return err
		}
		addr += sector
	}
	return nil
}

// EraseChip bulk erase the entire chip.
func (f *Flash) EraseChip() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requireIndirect(OpChipErase); err != nil {
		return err
	}
	f.log.Info("erase chip", "size", f.desc.Size)
	return f.erase(OpChipErase, 0, f.tEraseChip())
}

// Size returns the device size in bytes.
func (f *Flash) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.desc.Size
}

// EraseSize returns the erase granularity at addr.
func (f *Flash) EraseSize(addr int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.desc.EraseSize(addr)
}

// Descriptor returns a copy of the device descriptor.
func (f *Flash) Descriptor() Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.desc
}

// Mode returns the current access mode.
func (f *Flash) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Busy reports whether a bus transfer is still in flight, for example after
// a bus timeout.
func (f *Flash) Busy() bool {
	return f.exec.Busy()
}
