package norflash

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestKnownPartsValid(t *testing.T) {
	c := qt.New(t)
	for id, p := range knownFlash {
		c.Assert(p.desc.Validate(), qt.IsNil, qt.Commentf("%X %s", id, p.desc.Name))
	}
	for name := range partNames {
		_, d, ok := PartByName(name)
		c.Assert(ok, qt.IsTrue, qt.Commentf("%s", name))
		c.Assert(d.Name, qt.Not(qt.Equals), "")
	}
	_, _, ok := PartByName("at25sf041")
	c.Assert(ok, qt.IsFalse)
}

func TestValidate(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name string
		edit func(d *Descriptor)
		err  string
	}{
		{"too large", func(d *Descriptor) { d.Size = 32 << 20 }, `size 33554432 out of 24-bit range`},
		{"page size", func(d *Descriptor) { d.PageSize = 200 }, `page size 200 is not a power of two`},
		{"width", func(d *Descriptor) { d.Width = 2 }, `unsupported bus width Width\(2\)`},
		{"no regions", func(d *Descriptor) { d.Regions = nil }, `no erase regions`},
		{"gap", func(d *Descriptor) {
			d.Regions = []EraseRegion{{0, 0x10000, sector4KB}, {0x20000, 1 << 20, block64KB}}
		}, `erase region 1 starts at 0x20000, want 0x10000`},
		{"short", func(d *Descriptor) {
			d.Regions = []EraseRegion{{0, 0x80000, sector4KB}}
		}, `erase regions end at 0x80000, device size is 0x100000`},
		{"unaligned", func(d *Descriptor) {
			d.Regions = []EraseRegion{{0, 0x11000, sector4KB}, {0x11000, 1 << 20, block64KB}}
		}, `erase region 1 \[0x11000, 0x100000\) not aligned to 0x10000`},
		{"block size", func(d *Descriptor) { d.BlockSize = sector32KB }, `unsupported block size 32768`},
	}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			d := Uniform("test", 1<<20, 256, sector4KB)
			test.edit(&d)
			c.Assert(d.Validate(), qt.ErrorMatches, test.err)
		})
	}
}

func TestEraseSize(t *testing.T) {
	c := qt.New(t)
	d := hybrid()
	c.Assert(d.EraseSize(0), qt.Equals, sector4KB)
	c.Assert(d.EraseSize(128<<10-1), qt.Equals, sector4KB)
	c.Assert(d.EraseSize(128<<10), qt.Equals, block64KB)
	c.Assert(d.EraseSize(d.Size-1), qt.Equals, block64KB)
	c.Assert(d.EraseSize(d.Size), qt.Equals, 0)
	c.Assert(d.EraseSize(-1), qt.Equals, 0)
}
