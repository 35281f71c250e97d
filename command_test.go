package norflash

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func hybrid() Descriptor {
	d, _ := LookupPart(flashIDInfineonS25FL128)
	return d
}

func TestEncodeHeader(t *testing.T) {
	c := qt.New(t)
	d := Uniform("test", 1<<20, 256, sector4KB)

	tests := []struct {
		op     Op
		addr   int
		n      int
		header []byte
		len    int
	}{
		{OpRead, 0x012345, 16, []byte{0x03, 0x01, 0x23, 0x45}, 16},
		{OpFastRead, 0x000100, 4, []byte{0x0B, 0x00, 0x01, 0x00, 0xFF}, 4},
		{OpQuadIORead, 0x000010, 1, []byte{0xEB, 0x00, 0x00, 0x10, 0xA0, 0xFF, 0xFF}, 1},
		{OpContinuousRead, 0x000010, 8, []byte{0x00, 0x00, 0x10, 0xA0, 0xFF, 0xFF}, 8},
		{OpResetContinuous, 0, 0, []byte{0xFF, 0xFF, 0xFF, 0xFF}, 0},
		{OpPageProgram, 0x000200, 256, []byte{0x02, 0x00, 0x02, 0x00}, 256},
		{OpSectorErase, 0x001000, 99, []byte{0x20, 0x00, 0x10, 0x00}, 0},
		{OpChipErase, 0, 0, []byte{0xC7}, 0},
		{OpReadStatus, 0, 0, []byte{0x05}, 1},
		{OpWriteEnable, 0, 0, []byte{0x06}, 0},
		{OpWriteDisable, 0, 0, []byte{0x04}, 0},
		{OpReadID, 0, 0, []byte{0x9F}, 3},
		{OpPowerDown, 0, 0, []byte{0xB9}, 0},
		{OpPowerUp, 0, 0, []byte{0xAB}, 0},
		{OpReadConfig, 0, 0, []byte{0x35}, 1},
		{OpWriteStatus, 0, 2, []byte{0x01}, 2},
	}
	for _, test := range tests {
		c.Run(test.op.String(), func(c *qt.C) {
			fr, err := Encode(&d, test.op, test.addr, test.n)
			c.Assert(err, qt.IsNil)
			c.Assert(fr.Header(), qt.DeepEquals, test.header)
			c.Assert(fr.HeaderLen(), qt.Equals, len(test.header))
			c.Assert(fr.Len, qt.Equals, test.len)
		})
	}
}

func TestEncodeAddressErrors(t *testing.T) {
	c := qt.New(t)
	d := Uniform("test", 1<<20, 256, sector4KB)

	tests := []struct {
		name string
		op   Op
		addr int
		n    int
	}{
		{"read past end", OpRead, 1<<20 - 4, 8},
		{"read at size", OpRead, 1 << 20, 1},
		{"negative address", OpRead, -1, 1},
		{"negative length", OpRead, 0, -1},
		{"empty program", OpPageProgram, 0, 0},
		{"program crosses page", OpPageProgram, 0xF0, 32},
		{"program exceeds page", OpPageProgram, 0, 257},
		{"program past end", OpPageProgram, 1 << 20, 1},
		{"unaligned sector erase", OpSectorErase, 0x1001, 0},
		{"sector erase past end", OpSectorErase, 1 << 20, 0},
		{"block erase unsupported", OpBlockErase, 0, 0},
		{"empty status write", OpWriteStatus, 0, 0},
		{"long status write", OpWriteStatus, 0, 3},
	}
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			_, err := Encode(&d, test.op, test.addr, test.n)
			c.Assert(err, qt.ErrorIs, ErrInvalidAddress)
			var ae *AddressError
			c.Assert(err, qt.ErrorAs, &ae)
			c.Assert(ae.Op, qt.Equals, test.op)
		})
	}
}

func TestEncodePageBoundary(t *testing.T) {
	c := qt.New(t)
	d := Uniform("test", 1<<20, 256, sector4KB)

	// Ending exactly on the boundary is fine.
	fr, err := Encode(&d, OpPageProgram, 0xF0, 16)
	c.Assert(err, qt.IsNil)
	c.Assert(fr.Len, qt.Equals, 16)

	_, err = Encode(&d, OpPageProgram, 0xF0, 17)
	c.Assert(err, qt.ErrorMatches, `.*crosses page boundary`)
}

func TestEncodeEraseRegions(t *testing.T) {
	c := qt.New(t)
	d := hybrid()

	fr, err := Encode(&d, OpSectorErase, 0x1F000, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(fr.Opcode, qt.Equals, byte(0x20))

	fr, err = Encode(&d, OpSectorErase, 0x20000, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(fr.Opcode, qt.Equals, byte(0xD8))

	// 4KB aligned is not enough in the 64KB region.
	_, err = Encode(&d, OpSectorErase, 0x21000, 0)
	c.Assert(err, qt.ErrorIs, ErrInvalidAddress)

	d32 := Uniform("32k", 1<<20, 256, sector32KB)
	fr, err = Encode(&d32, OpSectorErase, 0x8000, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(fr.Opcode, qt.Equals, byte(0x52))
}

func TestEncodeBlockErase(t *testing.T) {
	c := qt.New(t)
	d, _ := LookupPart(flashIDWinbondW25Q128)

	fr, err := Encode(&d, OpBlockErase, 0x10000, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(fr.Header(), qt.DeepEquals, []byte{0xD8, 0x01, 0x00, 0x00})

	_, err = Encode(&d, OpBlockErase, 0x11000, 0)
	c.Assert(err, qt.ErrorIs, ErrInvalidAddress)
}

func TestEncodeUnknownOp(t *testing.T) {
	c := qt.New(t)
	d := Uniform("test", 1<<20, 256, sector4KB)
	_, err := Encode(&d, Op(200), 0, 0)
	c.Assert(err, qt.ErrorMatches, `unknown operation Op\(200\)`)
}
