package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/gentam/norflash"
)

func readCommand(args []string) {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	var (
		t          target
		addr       int
		nread      int
		idOnly     bool
		statusOnly bool
		xip        bool
		outFile    string
	)
	t.register(fs)
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.IntVar(&nread, "n", 256, "number of bytes to read")
	fs.BoolVar(&idOnly, "id", false, "just print flash ID")
	fs.BoolVar(&statusOnly, "s", false, "just print flash status register")
	fs.BoolVar(&xip, "xip", false, "read through the memory-mapped window")
	fs.StringVar(&outFile, "o", "", "output file (default: hexdump)")
	fs.Parse(args)

	f := t.open()
	defer t.close()

	if statusOnly {
		sr, err := f.ReadStatusRegister()
		if err != nil {
			t.fail("read flash status register failed", err)
		}
		fmt.Println(sr)
		return
	}

	if idOnly {
		id, name, err := f.ReadID()
		if err != nil {
			t.fail("read flash ID failed", err)
		}
		fmt.Printf("%X\t%s\n", id, name)
		return
	}

	if nread < 0 {
		t.fail("read flash failed", &norflash.AddressError{Op: norflash.OpRead, Addr: addr, Len: nread, Reason: "negative length"})
	}
	data := make([]byte, nread)
	if xip {
		if err := f.SetMode(norflash.MemoryMapped); err != nil {
			t.fail("enable XIP failed", err)
		}
		w, err := f.Window()
		if err != nil {
			t.fail("enable XIP failed", err)
		}
		if _, err := w.ReadAt(data, int64(addr)); err != nil {
			t.fail("read flash failed", err)
		}
	} else if _, err := f.ReadAt(data, int64(addr)); err != nil {
		t.fail("read flash failed", err)
	}

	if outFile == "" {
		fmt.Println(hex.Dump(data))
		return
	}
	if err := os.WriteFile(outFile, data, 0644); err != nil {
		fmt.Fprintln(os.Stderr, "write file failed:", err)
	}
}
