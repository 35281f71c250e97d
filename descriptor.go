package norflash

import (
	"errors"
	"fmt"
)

// Width is the number of data lines used for the mapped read path.
type Width uint8

const (
	Single Width = 1
	Quad   Width = 4
)

func (w Width) String() string {
	switch w {
	case Single:
		return "single"
	case Quad:
		return "quad"
	}
	return fmt.Sprintf("Width(%d)", uint8(w))
}

// Mode is the access mode of the controller.
type Mode uint8

const (
	// Indirect accepts command frames (read, program, erase, status).
	Indirect Mode = iota
	// MemoryMapped serves reads through the mapped window only.
	MemoryMapped
)

func (m Mode) String() string {
	switch m {
	case Indirect:
		return "indirect"
	case MemoryMapped:
		return "memory-mapped"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// EraseRegion is a contiguous address range [Start, End) erased in units of
// SectorSize.
type EraseRegion struct {
	Start      int
	End        int
	SectorSize int
}

// Descriptor describes the geometry of a flash device.
type Descriptor struct {
	Name string

	// Base is the bus address at which the mapped window starts.
	Base uint32

	Size     int
	PageSize int
	Regions  []EraseRegion

	// BlockSize is the size erased by the block erase command (0xD8) in
	// regions with smaller sectors. Zero disables block erase.
	BlockSize int

	Width Width
}

const (
	max24 = 1 << 24 // 24-bit addressing

	sector4KB  = 4 << 10
	sector32KB = 32 << 10
	block64KB  = 64 << 10
)

// DefaultXIPBase is the mapped window base used when none is configured.
const DefaultXIPBase = 0x60000000

// Uniform returns a descriptor for a device with one erase granularity.
func Uniform(name string, size, pageSize, sectorSize int) Descriptor {
	return Descriptor{
		Name:     name,
		Base:     DefaultXIPBase,
		Size:     size,
		PageSize: pageSize,
		Regions:  []EraseRegion{{Start: 0, End: size, SectorSize: sectorSize}},
		Width:    Single,
	}
}

// Validate checks the descriptor for consistency.
func (d *Descriptor) Validate() error {
	if d.Size <= 0 || d.Size > max24 {
		return fmt.Errorf("size %d out of 24-bit range", d.Size)
	}
	if d.PageSize <= 0 || d.PageSize&(d.PageSize-1) != 0 {
		return fmt.Errorf("page size %d is not a power of two", d.PageSize)
	}
	if d.Width != Single && d.Width != Quad {
		return fmt.Errorf("unsupported bus width %v", d.Width)
	}
	if len(d.Regions) == 0 {
		return errors.New("no erase regions")
	}
	next := 0
	for i, r := range d.Regions {
		if r.Start != next {
			return fmt.Errorf("erase region %d starts at 0x%X, want 0x%X", i, r.Start, next)
		}
		if r.SectorSize <= 0 || r.SectorSize < d.PageSize {
			return fmt.Errorf("erase region %d: bad sector size %d", i, r.SectorSize)
		}
		if r.End <= r.Start || r.Start%r.SectorSize != 0 || r.End%r.SectorSize != 0 {
			return fmt.Errorf("erase region %d [0x%X, 0x%X) not aligned to 0x%X", i, r.Start, r.End, r.SectorSize)
		}
		next = r.End
	}
	if next != d.Size {
		return fmt.Errorf("erase regions end at 0x%X, device size is 0x%X", next, d.Size)
	}
	if d.BlockSize != 0 && d.BlockSize != block64KB {
		return fmt.Errorf("unsupported block size %d", d.BlockSize)
	}
	return nil
}

// region returns the erase region containing addr.
func (d *Descriptor) region(addr int) (EraseRegion, bool) {
	for _, r := range d.Regions {
		if addr >= r.Start && addr < r.End {
			return r, true
		}
	}
	return EraseRegion{}, false
}

// EraseSize returns the erase granularity at addr, or 0 if addr is outside
// the device.
func (d *Descriptor) EraseSize(addr int) int {
	r, ok := d.region(addr)
	if !ok {
		return 0
	}
	return r.SectorSize
}

func (d *Descriptor) String() string {
	name := d.Name
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s: %d bytes, page %d, %d erase region(s), %v, window 0x%08X",
		name, d.Size, d.PageSize, len(d.Regions), d.Width, d.Base)
}
