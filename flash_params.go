package norflash

import "time"

type flashParams struct {
	desc Descriptor

	tRES1      time.Duration
	tDP        time.Duration
	tPP        time.Duration
	tW         time.Duration
	tErase4KB  time.Duration
	tErase64KB time.Duration
	tEraseChip time.Duration
}

var (
	flashIDMicronN25Q32     = [3]byte{0x20, 0xBA, 0x16}
	flashIDWinbondW25Q128   = [3]byte{0xEF, 0x70, 0x18}
	flashIDInfineonS25FL128 = [3]byte{0x01, 0x20, 0x18}
)

// partNames maps the short names accepted by the command line to JEDEC IDs.
var partNames = map[string][3]byte{
	"n25q32":   flashIDMicronN25Q32,
	"w25q128":  flashIDWinbondW25Q128,
	"s25fl128": flashIDInfineonS25FL128,
}

var knownFlash = map[[3]byte]flashParams{
	flashIDMicronN25Q32: {
		desc: Descriptor{
			Name:      "Micron N25Q 32Mb",
			Base:      DefaultXIPBase,
			Size:      4 << 20,
			PageSize:  256,
			Regions:   []EraseRegion{{Start: 0, End: 4 << 20, SectorSize: sector4KB}},
			BlockSize: block64KB,
			Width:     Single,
		},

		// [N25Q32|Table 38: AC Characteristics and Operating Conditions]
		// tPP: PAGE PROGRAM cycle time (256 bytes)
		tPP: 5 * time.Millisecond,
		// tSSE: Subsector ERASE cycle time
		tErase4KB: 800 * time.Millisecond,
		// tSE: Sector ERASE cycle time
		tErase64KB: 3 * time.Second,
		// tBE: Bulk ERASE cycle time
		tEraseChip: 60 * time.Second,
	},

	flashIDWinbondW25Q128: {
		desc: Descriptor{
			Name:      "Winbond W25Q 128Mb",
			Base:      DefaultXIPBase,
			Size:      16 << 20,
			PageSize:  256,
			Regions:   []EraseRegion{{Start: 0, End: 16 << 20, SectorSize: sector4KB}},
			BlockSize: block64KB,
			Width:     Quad,
		},

		// [W25Q128|9.6 AC Electrical Characteristics]:
		// tRES1: /CS High to Standby Mode without ID Read
		tRES1: 3 * time.Microsecond,
		// tDP: /CS High to Power-down Mode
		tDP: 3 * time.Microsecond,
		// tPP: Page Program Time
		tPP: 3 * time.Millisecond,
		// tW: Write Status Register Time
		tW: 15 * time.Millisecond,
		// tSE: Sector Erase Time (4KB)
		tErase4KB: 400 * time.Millisecond,
		// tBE2: Block Erase Time (64KB)
		tErase64KB: 2000 * time.Millisecond,
		// tCE: Chip Erase Time
		tEraseChip: 200 * time.Second,
	},

	flashIDInfineonS25FL128: {
		// Hybrid map: 4KB parameter sectors at the bottom, 64KB sectors above.
		desc: Descriptor{
			Name:     "Infineon S25FL 128Mb",
			Base:     DefaultXIPBase,
			Size:     16 << 20,
			PageSize: 256,
			Regions: []EraseRegion{
				{Start: 0, End: 128 << 10, SectorSize: sector4KB},
				{Start: 128 << 10, End: 16 << 20, SectorSize: block64KB},
			},
			Width: Quad,
		},

		// [S25FL128S|AC Characteristics]
		tRES1:      30 * time.Microsecond,
		tDP:        10 * time.Microsecond,
		tPP:        750 * time.Microsecond,
		tW:         2000 * time.Millisecond,
		tErase4KB:  725 * time.Millisecond,
		tErase64KB: 2600 * time.Millisecond,
		tEraseChip: 165 * time.Second,
	},
}

// LookupPart returns the descriptor of a known JEDEC ID.
func LookupPart(id [3]byte) (Descriptor, bool) {
	p, ok := knownFlash[id]
	return p.desc, ok
}

// PartByName returns the JEDEC ID and descriptor of a known part by its
// short name ("n25q32", "w25q128", "s25fl128").
func PartByName(name string) ([3]byte, Descriptor, bool) {
	id, ok := partNames[name]
	if !ok {
		return [3]byte{}, Descriptor{}, false
	}
	d, ok := LookupPart(id)
	return id, d, ok
}

func (f *Flash) paramOrMax(get func(*flashParams) time.Duration) time.Duration {
	// get parameter if configured
	if f.pr != nil {
		if d := get(f.pr); d > 0 {
			return d
		}
	}

	// fall back to maximum duration from all known flash parameters
	var tmax time.Duration
	for _, param := range knownFlash {
		tmax = max(tmax, get(&param))
	}
	return tmax
}

func (f *Flash) tRES1() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tRES1 })
}
func (f *Flash) tDP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tDP })
}
func (f *Flash) tPP() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tPP })
}
func (f *Flash) tW() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tW })
}
func (f *Flash) tErase4KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase4KB })
}
func (f *Flash) tErase64KB() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tErase64KB })
}
func (f *Flash) tEraseChip() time.Duration {
	return f.paramOrMax(func(p *flashParams) time.Duration { return p.tEraseChip })
}

// tErase returns the erase time for a sector or block of the given size.
func (f *Flash) tErase(size int) time.Duration {
	if size <= sector4KB {
		return f.tErase4KB()
	}
	return f.tErase64KB()
}
