package main

import (
	"flag"
	"fmt"
	"os"
)

func writeCommand(args []string) {
	fs := flag.NewFlagSet("write", flag.ExitOnError)
	var (
		t         target
		filename  string
		addr      int
		bulkErase bool
		noErase   bool
	)
	t.register(fs)
	fs.StringVar(&filename, "f", "", "input file")
	fs.IntVar(&addr, "addr", 0, "start address")
	fs.BoolVar(&bulkErase, "e", false, "bulk erase entire flash")
	fs.BoolVar(&noErase, "no-erase", false, "do not erase the sectors covered by the file")
	fs.Parse(args)

	if filename == "" && !bulkErase {
		fatalUsage("input file is required")
	}

	var input *os.File
	var size int
	if filename != "" {
		var err error
		input, err = os.Open(filename)
		if err != nil {
			fatalf("failed to open file: %v", err)
		}
		defer input.Close()
		st, err := input.Stat()
		if err != nil {
			fatalf("failed to stat file: %v", err)
		}
		size = int(st.Size())
	}

	f := t.open()
	defer t.close()

	if bulkErase {
		if err := f.EraseChip(); err != nil {
			t.fail("bulk erase flash failed", err)
		}
	} else if input != nil && !noErase && size > 0 {
		end := addr
		for end < addr+size {
			s := f.EraseSize(end)
			if s == 0 {
				t.fail("erase flash failed", fmt.Errorf("0x%X is outside the device", end))
			}
			end += s
		}
		if err := f.Erase(addr, end-addr); err != nil {
			t.fail("erase flash failed", err)
		}
	}

	if input != nil {
		n, err := f.WriteFrom(input, addr)
		if err != nil {
			t.fail("write flash failed", err)
		}
		fmt.Printf("wrote %d bytes at 0x%06X\n", n, addr)
	}
}
