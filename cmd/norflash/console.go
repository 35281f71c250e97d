package main

import (
	"bufio"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gentam/norflash"
	"github.com/google/shlex"
)

type cmdfunc func(f *norflash.Flash, out io.Writer, argv []string) error

var consoleCommands = map[string]cmdfunc{
	"erase":  consoleErase,
	"read":   consoleRead,
	"write":  consoleWrite,
	"xip":    consoleXIP,
	"load":   consoleLoad,
	"status": consoleStatus,
	"id":     consoleID,
	"info":   func(f *norflash.Flash, out io.Writer, _ []string) error { printFlash(out, f); return nil },
}

var errQuit = errors.New("quit")

func consoleCommand(args []string) {
	fs := flag.NewFlagSet("console", flag.ExitOnError)
	var t target
	t.register(fs)
	fs.Parse(args)

	f := t.open()
	defer t.close()

	runConsole(f, os.Stdin, os.Stdout)
}

// runConsole executes one command per input line until EOF or quit.
func runConsole(f *norflash.Flash, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "==> ")
	for sc.Scan() {
		err := runLine(f, sc.Text(), out)
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v (code 0x%08X)\n", err, norflash.Code(err))
		}
		fmt.Fprint(out, "==> ")
	}
}

func runLine(f *norflash.Flash, line string, out io.Writer) error {
	argv, err := shlex.Split(line)
	if err != nil {
		return err
	}
	if len(argv) == 0 {
		return nil
	}
	switch argv[0] {
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(out, "erase ADDR [N] | read ADDR N | write ADDR TEXT | load ADDR N | xip on|off | status | id | info | quit")
		return nil
	}
	cmd, ok := consoleCommands[argv[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", argv[0])
	}
	return cmd(f, out, argv[1:])
}

func parseInt(argv []string, i int, name string) (int, error) {
	if i >= len(argv) {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseInt(argv[i], 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", name, argv[i], err)
	}
	return int(v), nil
}

func consoleErase(f *norflash.Flash, out io.Writer, argv []string) error {
	addr, err := parseInt(argv, 0, "address")
	if err != nil {
		return err
	}
	size := f.EraseSize(addr)
	if len(argv) > 1 {
		if size, err = parseInt(argv, 1, "length"); err != nil {
			return err
		}
	}
	if err := f.Erase(addr, size); err != nil {
		return err
	}
	fmt.Fprintf(out, "erased %d bytes at 0x%06X\n", size, addr)
	return nil
}

func consoleRead(f *norflash.Flash, out io.Writer, argv []string) error {
	addr, err := parseInt(argv, 0, "address")
	if err != nil {
		return err
	}
	n, err := parseInt(argv, 1, "length")
	if err != nil {
		return err
	}
	data, err := f.Read(addr, n)
	if err != nil {
		return err
	}
	fmt.Fprint(out, hex.Dump(data))
	return nil
}

func consoleWrite(f *norflash.Flash, out io.Writer, argv []string) error {
	addr, err := parseInt(argv, 0, "address")
	if err != nil {
		return err
	}
	if len(argv) < 2 {
		return errors.New("missing data")
	}
	if err := f.Write(addr, []byte(argv[1])); err != nil {
		return err
	}
	fmt.Fprintf(out, "wrote %d bytes at 0x%06X\n", len(argv[1]), addr)
	return nil
}

func consoleXIP(f *norflash.Flash, out io.Writer, argv []string) error {
	if len(argv) != 1 || (argv[0] != "on" && argv[0] != "off") {
		return errors.New("usage: xip on|off")
	}
	if err := f.EnableXIP(argv[0] == "on"); err != nil {
		return err
	}
	fmt.Fprintf(out, "mode: %v\n", f.Mode())
	return nil
}

// consoleLoad reads through the mapped window; ADDR is a bus address.
func consoleLoad(f *norflash.Flash, out io.Writer, argv []string) error {
	addr, err := parseInt(argv, 0, "address")
	if err != nil {
		return err
	}
	n, err := parseInt(argv, 1, "length")
	if err != nil {
		return err
	}
	if n < 0 {
		return &norflash.AddressError{Op: norflash.OpFastRead, Addr: addr, Len: n, Reason: "negative length"}
	}
	w, err := f.Window()
	if err != nil {
		return err
	}
	data := make([]byte, n)
	for i := range data {
		if data[i], err = w.Load(uint32(addr + i)); err != nil {
			return err
		}
	}
	fmt.Fprint(out, hex.Dump(data))
	return nil
}

func consoleStatus(f *norflash.Flash, out io.Writer, _ []string) error {
	sr, err := f.ReadStatusRegister()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, sr)
	return nil
}

func consoleID(f *norflash.Flash, out io.Writer, _ []string) error {
	id, name, err := f.ReadID()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%X\t%s\n", id, name)
	return nil
}
