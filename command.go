package norflash

import "fmt"

// Op is the kind of operation a command frame performs.
type Op uint8

const (
	OpRead Op = iota
	OpFastRead
	OpQuadIORead
	OpContinuousRead // quad I/O read with the instruction elided
	OpResetContinuous
	OpPageProgram
	OpSectorErase
	OpBlockErase
	OpChipErase
	OpReadStatus
	OpWriteEnable
	OpWriteDisable
	OpReadID
	OpPowerDown
	OpPowerUp
	OpReadConfig
	OpWriteStatus
)

var opNames = [...]string{
	OpRead:            "read",
	OpFastRead:        "fast read",
	OpQuadIORead:      "quad I/O read",
	OpContinuousRead:  "continuous read",
	OpResetContinuous: "continuous read reset",
	OpPageProgram:     "page program",
	OpSectorErase:     "sector erase",
	OpBlockErase:      "block erase",
	OpChipErase:       "chip erase",
	OpReadStatus:      "read status",
	OpWriteEnable:     "write enable",
	OpWriteDisable:    "write disable",
	OpReadID:          "read ID",
	OpPowerDown:       "power down",
	OpPowerUp:         "power up",
	OpReadConfig:      "read config",
	OpWriteStatus:     "write status",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	flashCmdPowerUp            = 0xAB // Release Power Down
	flashCmdPowerDown          = 0xB9
	flashCmdReadID             = 0x9F
	flashCmdRead               = 0x03
	flashCmdFastRead           = 0x0B
	flashCmdQuadIORead         = 0xEB
	flashCmdWriteEnable        = 0x06
	flashCmdWriteDisable       = 0x04
	flashCmdPageProgram        = 0x02
	flashCmdErase4KB           = 0x20 // Subsector Erase / Sector Erase (4KB)
	flashCmdErase32KB          = 0x52 // Block Erase (32KB)
	flashCmdErase64KB          = 0xD8 // Sector Erase / Block Erase (64KB)
	flashCmdEraseChip          = 0xC7 // Bulk Erase / Chip Erase
	flashCmdReadStatusRegister = 0x05
	flashCmdResetContinuous    = 0xFF // Continuous Read Mode Reset
	flashCmdReadConfig         = 0x35 // Read Status Register-2 / Read Configuration Register
	flashCmdWriteStatus        = 0x01 // Write Status Register / WRR
)

// Quad enable bit of the second status byte: QE in [W25Q128|7.1.4], QUAD in
// CR1 of [S25FL128S]. Both are read with 0x35 and written as the second data
// byte of 0x01.
const QuadEnableBit = 1 << 1

// Mode bits sent after the address of a quad I/O read. [W25Q128|8.2.12]
// M5-4 = 10 keeps the device in continuous read mode, so the next read omits
// the instruction byte.
const ContinuousModeBits = 0xA0

// Direction of the data phase of a frame.
type Direction uint8

const (
	DirNone Direction = iota
	DirRead
	DirWrite
)

// Frame is one chip-select-delimited command: instruction, optional 24-bit
// address, optional mode bits, dummy bytes, then Len bytes of data.
type Frame struct {
	Op       Op
	Opcode   byte
	NoOpcode bool
	Addr     int
	AddrLen  int
	Mode     byte
	ModeLen  int
	Dummy    int
	Len      int
	Dir      Direction
}

// HeaderLen is the number of bytes shifted before the data phase.
func (fr Frame) HeaderLen() int {
	n := fr.AddrLen + fr.ModeLen + fr.Dummy
	if !fr.NoOpcode {
		n++
	}
	return n
}

// Header returns the bytes shifted before the data phase.
func (fr Frame) Header() []byte {
	return fr.putHeader(make([]byte, fr.HeaderLen()))
}

// putHeader writes the header into buf and returns buf[:HeaderLen()].
func (fr Frame) putHeader(buf []byte) []byte {
	i := 0
	if !fr.NoOpcode {
		buf[i] = fr.Opcode
		i++
	}
	if fr.AddrLen == 3 {
		buf[i] = byte(fr.Addr >> 16)
		buf[i+1] = byte(fr.Addr >> 8)
		buf[i+2] = byte(fr.Addr)
		i += 3
	}
	if fr.ModeLen == 1 {
		buf[i] = fr.Mode
		i++
	}
	for j := 0; j < fr.Dummy; j++ {
		buf[i] = 0xFF
		i++
	}
	return buf[:i]
}

func (fr Frame) String() string {
	if fr.AddrLen > 0 {
		return fmt.Sprintf("%v 0x%02X @0x%06X len %d", fr.Op, fr.Opcode, fr.Addr, fr.Len)
	}
	return fmt.Sprintf("%v 0x%02X len %d", fr.Op, fr.Opcode, fr.Len)
}

// Encode builds the frame for op at addr with n data bytes. It performs no
// I/O. Erase frames ignore n; the erased size is implied by the opcode.
func Encode(d *Descriptor, op Op, addr, n int) (Frame, error) {
	fr := Frame{Op: op}
	bad := func(reason string) (Frame, error) {
		return Frame{}, &AddressError{Op: op, Addr: addr, Len: n, Reason: reason}
	}
	if n < 0 {
		return bad("negative length")
	}

	switch op {
	case OpRead:
		fr.Opcode, fr.AddrLen, fr.Dir = flashCmdRead, 3, DirRead
	case OpFastRead:
		fr.Opcode, fr.AddrLen, fr.Dummy, fr.Dir = flashCmdFastRead, 3, 1, DirRead
	case OpQuadIORead, OpContinuousRead:
		fr.Opcode, fr.AddrLen, fr.Dummy, fr.Dir = flashCmdQuadIORead, 3, 2, DirRead
		fr.Mode, fr.ModeLen = ContinuousModeBits, 1
		fr.NoOpcode = op == OpContinuousRead
	case OpResetContinuous:
		fr.Opcode, fr.Dummy = flashCmdResetContinuous, 3
	case OpPageProgram:
		fr.Opcode, fr.AddrLen, fr.Dir = flashCmdPageProgram, 3, DirWrite
		switch {
		case n == 0:
			return bad("empty program")
		case n > d.PageSize:
			return bad(fmt.Sprintf("exceeds page size %d", d.PageSize))
		case addr/d.PageSize != (addr+n-1)/d.PageSize:
			return bad("crosses page boundary")
		}
	case OpSectorErase:
		size := d.EraseSize(addr)
		if size == 0 {
			return bad("outside device")
		}
		if addr%size != 0 {
			return bad(fmt.Sprintf("not aligned to 0x%X sector", size))
		}
		switch {
		case size <= sector4KB:
			fr.Opcode = flashCmdErase4KB
		case size <= sector32KB:
			fr.Opcode = flashCmdErase32KB
		default:
			fr.Opcode = flashCmdErase64KB
		}
		fr.AddrLen = 3
		n = 0
	case OpBlockErase:
		if d.BlockSize == 0 {
			return bad("block erase not supported")
		}
		if size := d.EraseSize(addr); size == 0 || size > d.BlockSize {
			return bad("outside block-erasable region")
		}
		if addr%d.BlockSize != 0 {
			return bad(fmt.Sprintf("not aligned to 0x%X block", d.BlockSize))
		}
		fr.Opcode, fr.AddrLen = flashCmdErase64KB, 3
		n = 0
	case OpChipErase:
		fr.Opcode = flashCmdEraseChip
		n = 0
	case OpReadStatus:
		fr.Opcode, fr.Dir = flashCmdReadStatusRegister, DirRead
		n = max(n, 1)
	case OpWriteEnable:
		fr.Opcode = flashCmdWriteEnable
		n = 0
	case OpWriteDisable:
		fr.Opcode = flashCmdWriteDisable
		n = 0
	case OpReadID:
		fr.Opcode, fr.Dir = flashCmdReadID, DirRead
		n = 3
	case OpPowerDown:
		fr.Opcode = flashCmdPowerDown
		n = 0
	case OpPowerUp:
		fr.Opcode = flashCmdPowerUp
		n = 0
	case OpReadConfig:
		fr.Opcode, fr.Dir = flashCmdReadConfig, DirRead
		n = 1
	case OpWriteStatus:
		fr.Opcode, fr.Dir = flashCmdWriteStatus, DirWrite
		if n < 1 || n > 2 {
			return bad("status write takes 1 or 2 bytes")
		}
	default:
		return Frame{}, fmt.Errorf("unknown operation %v", op)
	}

	if fr.AddrLen > 0 {
		if addr < 0 || addr >= d.Size {
			return bad("outside device")
		}
		if addr+n > d.Size {
			return bad(fmt.Sprintf("exceeds device size %d", d.Size))
		}
		fr.Addr = addr
	}
	if fr.Dir == DirNone {
		n = 0
	}
	fr.Len = n
	return fr, nil
}
