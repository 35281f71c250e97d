package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gentam/norflash"
	"periph.io/x/host/v3/ftdi"
)

func infoCommand(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	var t target
	t.register(fs)
	fs.Parse(args)

	f := t.open()
	defer t.close()

	if t.dev != nil {
		printFTDI(t.dev.FTDI)
	}
	printFlash(os.Stdout, f)
}

func printFTDI(ft *ftdi.FT232H) {
	// Reference: https://github.com/periph/cmd/tree/main/ftdi-list
	i := ftdi.Info{}
	ft.Info(&i)
	fmt.Printf("Type:            %s\n", i.Type)
	fmt.Printf("Vendor ID:       %#04x\n", i.VenID)
	fmt.Printf("Device ID:       %#04x\n", i.DevID)

	ee := ftdi.EEPROM{}
	if err := ft.EEPROM(&ee); err != nil {
		fmt.Printf("EEPROM:          %v\n", err)
	} else {
		fmt.Printf("Manufacturer:    %s\n", ee.Manufacturer)
		fmt.Printf("Desc:            %s\n", ee.Desc)
		fmt.Printf("Serial:          %s\n", ee.Serial)
	}

	for _, p := range ft.Header() {
		fmt.Printf("%s: %s\n", p, p.Function())
	}
}

func printFlash(w io.Writer, f *norflash.Flash) {
	d := f.Descriptor()
	name := d.Name
	if name == "" {
		name = "unknown"
	}
	fmt.Fprintf(w, "Flash:           %s\n", name)
	fmt.Fprintf(w, "Size:            %d bytes\n", d.Size)
	fmt.Fprintf(w, "Page size:       %d bytes\n", d.PageSize)
	for _, r := range d.Regions {
		fmt.Fprintf(w, "Erase region:    [0x%06X, 0x%06X) sector %d bytes\n", r.Start, r.End, r.SectorSize)
	}
	if d.BlockSize > 0 {
		fmt.Fprintf(w, "Block erase:     %d bytes\n", d.BlockSize)
	}
	fmt.Fprintf(w, "Bus width:       %v\n", d.Width)
	fmt.Fprintf(w, "XIP window:      0x%08X\n", d.Base)
	fmt.Fprintf(w, "Mode:            %v\n", f.Mode())
	if sr, err := f.ReadStatusRegister(); err == nil {
		fmt.Fprintf(w, "Status:          %v\n", sr)
	}
}
