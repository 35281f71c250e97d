package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gentam/norflash/harness"
)

func demoCommand(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	var (
		t          target
		addr       int
		length     int
		keepMapped bool
	)
	t.register(fs)
	fs.IntVar(&addr, "addr", 0, "address of the sector under test")
	fs.IntVar(&length, "n", 64, "number of bytes to write and verify")
	fs.BoolVar(&keepMapped, "keep-mapped", false, "stay in XIP mode after the run until exit")
	fs.Parse(args)

	f := t.open()
	defer t.close()

	fmt.Print("****************** Serial Flash Read and Write ******************\n\n")
	d := f.Descriptor()
	fmt.Printf("Flash: %v\n", &d)

	cfg := harness.Config{Addr: addr, Length: length, KeepMapped: keepMapped, Out: os.Stdout}
	r, err := harness.Run(f, cfg)
	if err != nil {
		harness.Fail(os.Stdout, err)
		t.close()
		os.Exit(1)
	}
	fmt.Printf("Mode: %v, window at 0x%08X\n", f.Mode(), r.WindowBase)
}
