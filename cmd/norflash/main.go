package main

import (
	"flag"
	"fmt"
	"os"
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	norflash <command> [arguments]

Commands:
	demo	 erase, write and verify a sector through indirect and XIP reads
	read	 read flash memory
	write	 write flash memory
	erase	 erase flash memory
	info	 print bridge and flash information
	console	 run flash commands read from stdin

Every command accepts -sim to use a simulated chip, -qspi to give the
simulated chip a quad SPI controller with a mapped window, and -part to fix
the flash geometry.
`)
	os.Exit(2)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	args := flag.Args()[1:]
	switch cmd := flag.Arg(0); cmd {
	case "demo":
		demoCommand(args)
	case "read":
		readCommand(args)
	case "write":
		writeCommand(args)
	case "erase":
		eraseCommand(args)
	case "info":
		infoCommand(args)
	case "console":
		consoleCommand(args)
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}
