package wad

// Linedef is a wall segment between two vertices. The right side is the front; a linedef
// without a left side is one-sided.
type Linedef struct {
	V1, V2  uint16
	Flags   LinedefFlags
	Special uint16 // line type, see the triggers section of the metadata
	Tag     uint16 // sectors with the same tag are affected by the special
	SideR   uint16
	SideL   uint16 // NoSidedef if one-sided
}

// NoSidedef marks a missing side. It is -1 when read as a signed value.
const NoSidedef = 0xffff

type LinedefFlags uint16

const (
	FlagImpassable LinedefFlags = 1 << iota
	FlagBlockMonsters
	FlagTwoSided
	FlagUpperUnpegged
	FlagLowerUnpegged
	FlagSecret
	FlagBlocksSound
	FlagNeverMap
	FlagAlwaysMap
)

func (l *Linedef) Impassable() bool { return l.Flags&FlagImpassable != 0 }
func (l *Linedef) UpperUnpegged() bool { return l.Flags&FlagUpperUnpegged != 0 }
func (l *Linedef) LowerUnpegged() bool { return l.Flags&FlagLowerUnpegged != 0 }
func (l *Linedef) HasLeft() bool { return l.SideL != NoSidedef }

// Side returns the right or left sidedef index.
func (l *Linedef) Side(left bool) uint16 {
	if left {
		return l.SideL
	}
	return l.SideR
}
