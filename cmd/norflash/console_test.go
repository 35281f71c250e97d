package main

import (
	"bytes"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/gentam/norflash"
)

func TestConsole(t *testing.T) {
	c := qt.New(t)
	tg := target{sim: true, part: "w25q128"}
	f := tg.open()
	defer tg.close()

	script := strings.Join([]string{
		`write 0x1000 "hello flash"`,
		"read 0x1000 5",
		"xip on",
		"load 0x60001006 5",
		"write 0 x",
		"xip off",
		"erase 0x1000",
		"read 0x1000 2",
		"bogus",
		"quit",
		"read 0 1",
	}, "\n")
	var out bytes.Buffer
	runConsole(f, strings.NewReader(script), &out)
	s := out.String()

	c.Assert(s, qt.Contains, "wrote 11 bytes at 0x001000")
	c.Assert(s, qt.Contains, "68 65 6c 6c 6f")
	c.Assert(s, qt.Contains, "mode: memory-mapped")
	c.Assert(s, qt.Contains, "66 6c 61 73 68")
	c.Assert(s, qt.Contains, "(code 0x00000301)")
	c.Assert(s, qt.Contains, "mode: indirect")
	c.Assert(s, qt.Contains, "erased 4096 bytes at 0x001000")
	c.Assert(s, qt.Contains, "ff ff")
	c.Assert(s, qt.Contains, `error: unknown command "bogus"`)
	// Nothing runs after quit.
	c.Assert(strings.Count(s, "00000000  "), qt.Equals, 3)
	c.Assert(f.Mode(), qt.Equals, norflash.Indirect)
}

func TestRunLineErrors(t *testing.T) {
	c := qt.New(t)
	tg := target{sim: true}
	f := tg.open()
	defer tg.close()

	var out bytes.Buffer
	c.Assert(runLine(f, "", &out), qt.IsNil)
	c.Assert(runLine(f, "read", &out), qt.ErrorMatches, `missing address`)
	c.Assert(runLine(f, "read zz 1", &out), qt.ErrorMatches, `bad address "zz": .*`)
	c.Assert(runLine(f, "xip maybe", &out), qt.ErrorMatches, `usage: xip on\|off`)
	c.Assert(runLine(f, `write 0 "unterminated`, &out), qt.IsNotNil)
	c.Assert(runLine(f, "load 0x60000000 1", &out), qt.ErrorIs, norflash.ErrMode)
	c.Assert(runLine(f, "exit", &out), qt.Equals, errQuit)

	c.Assert(runLine(f, "xip on", &out), qt.IsNil)
	c.Assert(runLine(f, "load 0x60000000 -1", &out), qt.ErrorIs, norflash.ErrInvalidAddress)
	c.Assert(runLine(f, "load 0x60000000 -1", &out), qt.ErrorMatches, `.*negative length`)
	c.Assert(runLine(f, "xip off", &out), qt.IsNil)

	out.Reset()
	c.Assert(runLine(f, "id", &out), qt.IsNil)
	c.Assert(out.String(), qt.Equals, "EF7018\tWinbond W25Q 128Mb\n")

	out.Reset()
	c.Assert(runLine(f, "info", &out), qt.IsNil)
	c.Assert(out.String(), qt.Contains, "Erase region:    [0x000000, 0x1000000) sector 4096 bytes")
	c.Assert(out.String(), qt.Contains, "Bus width:       quad")
}
