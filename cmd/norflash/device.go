package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gentam/norflash"
	"github.com/gentam/norflash/norflashtest"
)

// target is the flash device selected by the common flags.
type target struct {
	sim     bool
	qspi    bool
	part    string
	verbose bool

	dev   *norflash.Device
	chip  *norflashtest.Chip
	flash *norflash.Flash
}

func (t *target) register(fs *flag.FlagSet) {
	fs.BoolVar(&t.sim, "sim", false, "use a simulated flash chip instead of the FT2232H")
	fs.BoolVar(&t.qspi, "qspi", false, "with -sim, simulate a quad SPI controller that maps the window")
	fs.StringVar(&t.part, "part", "", "flash part: n25q32, w25q128, s25fl128 (default: from JEDEC ID)")
	fs.BoolVar(&t.verbose, "v", false, "log driver operations")
}

// open connects to the device, powers the flash up and identifies it.
func (t *target) open() *norflash.Flash {
	var opts []norflash.Option
	if t.verbose {
		opts = append(opts, norflash.WithLogger(stdLogger{log.New(os.Stderr, "norflash: ", log.Lmicroseconds)}))
	}

	simID := [3]byte{0xEF, 0x70, 0x18} // Winbond W25Q128
	if t.part != "" {
		id, d, ok := norflash.PartByName(t.part)
		if !ok {
			fatalUsage("unknown part %q", t.part)
		}
		opts = append(opts, norflash.WithDescriptor(d))
		simID = id
	}

	if t.sim {
		d, _ := norflash.LookupPart(simID)
		t.chip = norflashtest.New(simID, d.Size, d.PageSize)
		t.chip.BusyPolls = 2
		if t.qspi {
			opts = append(opts, norflash.WithMapper(t.chip), norflash.WithBusWidth(norflash.Quad))
		}
		f, err := norflash.New(t.chip, t.chip.CS, opts...)
		if err != nil {
			fatalf("%v", err)
		}
		t.flash = f
	} else {
		if t.qspi {
			fatalUsage("-qspi needs -sim: the FT2232H drives a single data line")
		}
		dev, err := norflash.NewDevice(opts...)
		if err != nil {
			fatalf("%v", err)
		}
		t.dev = dev
		t.flash = dev.Flash
		if err := dev.HoldBusMaster(); err != nil {
			fatalf("hold bus master failed: %v", err)
		}
	}

	if err := t.flash.PowerUp(); err != nil {
		t.close()
		fatalf("flash power up failed: %v", err)
	}
	id, name, err := t.flash.ReadID()
	if err != nil {
		t.close()
		fatalf("read flash ID failed: %v", err)
	}
	if name == "" {
		fmt.Fprintf(os.Stderr, "unknown flash ID (%X)\n", id)
	}
	return t.flash
}

// close returns the flash to indirect mode, powers it down and releases
// the bus.
func (t *target) close() {
	if t.flash != nil {
		if err := t.flash.SetMode(norflash.Indirect); err != nil {
			fmt.Fprintln(os.Stderr, "leave XIP mode failed:", err)
		}
		if err := t.flash.PowerDown(); err != nil {
			fmt.Fprintln(os.Stderr, "flash power down failed:", err)
		}
	}
	if t.dev != nil {
		t.dev.ReleaseBusMaster()
		t.dev.Close()
	}
}

// fail releases the device and exits with the error and its code.
func (t *target) fail(msg string, err error) {
	t.close()
	fatalf("%s: %v (code 0x%08X)", msg, err, norflash.Code(err))
}

type stdLogger struct {
	l *log.Logger
}

func (s stdLogger) Debug(msg string, kv ...any) { s.l.Println(append([]any{"DEBUG", msg}, kv...)...) }
func (s stdLogger) Info(msg string, kv ...any)  { s.l.Println(append([]any{"INFO", msg}, kv...)...) }
func (s stdLogger) Error(msg string, kv ...any) { s.l.Println(append([]any{"ERROR", msg}, kv...)...) }
