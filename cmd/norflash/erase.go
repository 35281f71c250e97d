package main

import "flag"

func eraseCommand(args []string) {
	fs := flag.NewFlagSet("erase", flag.ExitOnError)
	var (
		t    target
		addr int
		size int
		chip bool
	)
	t.register(fs)
	fs.IntVar(&addr, "addr", 0, "start address, aligned to an erase sector")
	fs.IntVar(&size, "n", 0, "number of bytes, a multiple of the erase sector (default: one sector)")
	fs.BoolVar(&chip, "chip", false, "bulk erase entire flash")
	fs.Parse(args)

	f := t.open()
	defer t.close()

	if chip {
		if err := f.EraseChip(); err != nil {
			t.fail("bulk erase flash failed", err)
		}
		return
	}
	if size == 0 {
		size = f.EraseSize(addr)
	}
	if err := f.Erase(addr, size); err != nil {
		t.fail("erase flash failed", err)
	}
}
