// Package harness runs the erase, program and read-back sequence that proves
// a flash device works through both indirect and memory-mapped access.
package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gentam/norflash"
)

// Device is the part of the driver the harness exercises.
type Device interface {
	Descriptor() norflash.Descriptor
	Size() int
	EraseSize(addr int) int
	Erase(addr, size int) error
	Write(addr int, p []byte) error
	ReadAt(p []byte, off int64) (int, error)
	SetMode(m norflash.Mode) error
	Window() (*norflash.Window, error)
}

// Step identifies a stage of the sequence.
type Step int

const (
	StepErase Step = iota + 1
	StepReadErased
	StepWrite
	StepReadBack
	StepEnterMapped
	StepReadMapped
	StepExitMapped
)

var stepNames = map[Step]string{
	StepErase:       "Erasing memory failed",
	StepReadErased:  "Reading after erase failed",
	StepWrite:       "Writing to memory failed",
	StepReadBack:    "Reading back failed",
	StepEnterMapped: "Enabling XIP mode failed",
	StepReadMapped:  "Reading in XIP mode failed",
	StepExitMapped:  "Disabling XIP mode failed",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// StepError is the failure of one step. Code is the numeric error code
// printed on the console.
type StepError struct {
	Step Step
	Code uint32
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%v: %v (code 0x%08X)", e.Step, e.Err, e.Code)
}

func (e *StepError) Unwrap() error { return e.Err }

// Config parameterizes a run.
type Config struct {
	// Addr is the device address of the sector under test.
	Addr int
	// Length is the number of bytes written and compared. Default 64.
	Length int
	// Pattern returns the byte written at index i. Default byte(i).
	Pattern func(i int) byte
	// KeepMapped leaves the device in MemoryMapped mode on success.
	KeepMapped bool
	// Out receives progress lines and hex dumps. Nil discards them.
	Out io.Writer
}

// Report summarizes a successful run.
type Report struct {
	Addr       int
	Erased     int // bytes erased
	Written    []byte
	WindowBase uint32
}

// Run erases the sector at cfg.Addr, checks that it reads as 0xFF, writes
// the pattern, reads it back, then reads it again through the mapped window.
// The first failing step stops the run.
func Run(dev Device, cfg Config) (*Report, error) {
	if cfg.Length <= 0 {
		cfg.Length = 64
	}
	if cfg.Pattern == nil {
		cfg.Pattern = func(i int) byte { return byte(i) }
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	fail := func(s Step, err error) (*Report, error) {
		return nil, &StepError{Step: s, Code: norflash.Code(err), Err: err}
	}

	r := &Report{Addr: cfg.Addr}
	name := dev.Descriptor().Name
	if name == "" {
		name = "unknown"
	}
	// One chip behind one chip select.
	fmt.Fprintf(out, "Current active chip is 0 (%s)\n", name)
	fmt.Fprintln(out, "Total chips configured is 1")
	fmt.Fprintf(out, "Total Memory Size is %d bytes\n", dev.Size())

	// Erase before write, covering every sector that holds the pattern.
	size, err := eraseSpan(dev, cfg.Addr, cfg.Length)
	if err != nil {
		return fail(StepErase, err)
	}
	fmt.Fprintf(out, "\n1. Erasing %d bytes of memory\n", size)
	if err := dev.Erase(cfg.Addr, size); err != nil {
		return fail(StepErase, err)
	}
	r.Erased = size

	fmt.Fprintf(out, "\n2. Reading after Erase & verifying that each byte is 0xFF\n")
	rx := make([]byte, cfg.Length)
	if _, err := dev.ReadAt(rx, int64(cfg.Addr)); err != nil {
		return fail(StepReadErased, err)
	}
	PrintArray(out, "Received Data", rx)
	if err := norflash.Compare(cfg.Addr, bytes.Repeat([]byte{0xFF}, cfg.Length), rx); err != nil {
		return fail(StepReadErased, fmt.Errorf("flash contains data other than 0xFF after erase: %w", err))
	}

	tx := make([]byte, cfg.Length)
	for i := range tx {
		tx[i] = cfg.Pattern(i)
	}
	fmt.Fprintf(out, "\n3. Writing data to memory\n")
	if err := dev.Write(cfg.Addr, tx); err != nil {
		return fail(StepWrite, err)
	}
	PrintArray(out, "Written Data", tx)
	r.Written = tx

	fmt.Fprintf(out, "\n4. Reading back for verification\n")
	clear(rx)
	if _, err := dev.ReadAt(rx, int64(cfg.Addr)); err != nil {
		return fail(StepReadBack, err)
	}
	PrintArray(out, "Received Data", rx)
	if err := norflash.Compare(cfg.Addr, tx, rx); err != nil {
		return fail(StepReadBack, err)
	}

	if err := dev.SetMode(norflash.MemoryMapped); err != nil {
		return fail(StepEnterMapped, err)
	}
	w, err := dev.Window()
	if err != nil {
		return fail(StepEnterMapped, err)
	}
	r.WindowBase = w.Base()

	fmt.Fprintf(out, "\n5. Reading back in XIP mode for verification\n")
	clear(rx)
	base := w.Base() + uint32(cfg.Addr)
	for i := range rx {
		b, err := w.Load(base + uint32(i))
		if err != nil {
			return fail(StepReadMapped, err)
		}
		rx[i] = b
	}
	PrintArray(out, "Received Data", rx)
	if err := norflash.Compare(cfg.Addr, tx, rx); err != nil {
		return fail(StepReadMapped, err)
	}

	if !cfg.KeepMapped {
		if err := dev.SetMode(norflash.Indirect); err != nil {
			return fail(StepExitMapped, err)
		}
	}

	fmt.Fprintf(out, "\n=========================================================\n")
	fmt.Fprintf(out, "SUCCESS: Read data matches with written data!\n")
	fmt.Fprintf(out, "=========================================================\n")
	return r, nil
}

// eraseSpan returns the number of bytes from addr to the end of the sector
// holding addr+n-1.
func eraseSpan(dev Device, addr, n int) (int, error) {
	if addr < 0 || n <= 0 || addr+n > dev.Size() {
		return 0, &norflash.AddressError{Op: norflash.OpSectorErase, Addr: addr, Len: n, Reason: "outside device"}
	}
	if s := dev.EraseSize(addr); s == 0 || addr%s != 0 {
		return 0, &norflash.AddressError{Op: norflash.OpSectorErase, Addr: addr, Len: n,
			Reason: fmt.Sprintf("not aligned to 0x%X sector", s)}
	}
	end := addr
	for end < addr+n {
		s := dev.EraseSize(end)
		if s == 0 {
			return 0, errors.New("erase granularity unknown")
		}
		end += s
	}
	return end - addr, nil
}

// PrintArray writes buf as rows of 16 hex bytes under a title.
func PrintArray(w io.Writer, title string, buf []byte) {
	fmt.Fprintf(w, "\n%s (%d bytes):\n", title, len(buf))
	fmt.Fprintf(w, "-------------------------\n")
	for i, b := range buf {
		fmt.Fprintf(w, "0x%02X ", b)
		if (i+1)%16 == 0 {
			fmt.Fprintln(w)
		}
	}
}

// Fail writes the failure banner for err.
func Fail(w io.Writer, err error) {
	msg, code := err.Error(), norflash.Code(err)
	var se *StepError
	if errors.As(err, &se) {
		msg, code = fmt.Sprintf("%v: %v", se.Step, se.Err), se.Code
	}
	fmt.Fprintf(w, "\n=====================================================")
	fmt.Fprintf(w, "\nFAIL: %s", msg)
	fmt.Fprintf(w, "\nError Code: 0x%08X", code)
	fmt.Fprintf(w, "\n=====================================================\n")
}
