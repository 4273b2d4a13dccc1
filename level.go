package wad

import (
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Level is the decoded data of one map: eight parallel record arrays cross referencing each
// other by index. ReadLevel validates every reference, so a Level obtained from it can be
// walked without further bounds surprises; the accessors still check and report corruption.
type Level struct {
	Name       string
	Things     []Thing
	Linedefs   []Linedef
	Sidedefs   []Sidedef
	Vertices   []Vertex
	Segs       []Seg
	Subsectors []Subsector
	Nodes      []Node
	Sectors    []Sector
}

type Thing struct {
	X, Y  int16
	Angle int16 // degrees
	Type  uint16
	Flags uint16
}

func (t *Thing) Skill1and2() bool { return t.Flags&1 != 0 }
func (t *Thing) Skill3() bool { return t.Flags&2 != 0 }
func (t *Thing) Skill4and5() bool { return t.Flags&4 != 0 }
func (t *Thing) MultiplayerOnly() bool { return t.Flags&0x10 != 0 }

// Skill selects the things of one difficulty. SkillAny keeps every thing; SkillEasy is
// skills 1 and 2 and SkillHard is skills 4 and 5.
type Skill int

const (
	SkillAny Skill = iota
	SkillEasy
	SkillMedium
	SkillHard
)

// Appears reports whether the thing is placed at skill s. Multiplayer only things are
// left out unless multiplayer is set.
func (t *Thing) Appears(s Skill, multiplayer bool) bool {
	if t.MultiplayerOnly() && !multiplayer {
		return false
	}
	switch s {
	case SkillEasy:
		return t.Skill1and2()
	case SkillMedium:
		return t.Skill3()
	case SkillHard:
		return t.Skill4and5()
	}
	return true
}

// Yaw returns the facing angle snapped to 45 degrees, in radians.
func (t *Thing) Yaw() float32 {
	return degreesToRadians(math32.Round(float32(t.Angle)/45) * 45)
}

type Sidedef struct {
	XOffset       int16
	YOffset       int16
	UpperTexture  LumpName
	LowerTexture  LumpName
	MiddleTexture LumpName
	Sector        uint16
}

type Vertex struct {
	X, Y int16
}

type Seg struct {
	V1        uint16
	V2        uint16
	Angle     int16 // Full circle is -32768 to 32767.
	Linedef   uint16
	Direction uint16 // 0 - same as linedef, 1 - opposite to linedef
	Offset    int16  // Distance along line to start of segment
}

// Back reports whether the seg runs along the left side of its linedef.
func (s *Seg) Back() bool { return s.Direction != 0 }

type Subsector struct {
	NumSegs  uint16
	FirstSeg uint16
}

type BBox struct {
	Top    int16
	Bottom int16
	Left   int16
	Right  int16
}

// Node is a BSP partition line with its two children. The right child is the front side.
type Node struct {
	X, Y           int16
	DX, DY         int16
	BBoxR, BBoxL   BBox
	ChildR, ChildL ChildID
}

// Child returns the child for side 0 (right) or 1 (left).
func (n *Node) Child(side int) ChildID {
	if side == 0 {
		return n.ChildR
	}
	return n.ChildL
}

// ChildID points at a node, or at a subsector when the high bit is set.
type ChildID uint16

const subsectorBit = 0x8000

// NewChildID builds a child id. index must fit in 15 bits.
func NewChildID(index int, leaf bool) ChildID {
	id := ChildID(index & 0x7fff)
	if leaf {
		id |= subsectorBit
	}
	return id
}

// Split separates the target index from the leaf flag.
func (c ChildID) Split() (index int, leaf bool) {
	return int(c & 0x7fff), c&subsectorBit != 0
}

type Sector struct {
	FloorHeight    int16
	CeilingHeight  int16
	FloorTexture   LumpName
	CeilingTexture LumpName
	LightLevel     int16
	Type           SectorType
	Tag            uint16
}

type SectorType uint16

const (
	TypeNormal          SectorType = iota
	TypeBlinkRandom                // 1  Light  Blink random
	TypeBlink05                    // 2  Light  Blink 0.5 second
	TypeBlink10                    // 3  Light  Blink 1.0 second
	TypeDamage20Blink05            // 4  Both   20% damage per second; light blink 0.5 second
	TypeDamage10                   // 5	 Damage 10% damage per second
	TypeUnused1                    // 6  Unused
	TypeDamage5                    // 7	 Damage 5% damage per second
	TypeOscillate                  // 8	 Light  Oscillates
	TypeSecret                     // 9	 Secret Player entering this sector gets credit for finding a secret
	TypeDoor30                     // 10 Door   30 seconds after level start, ceiling closes like a door
	TypeEnd                        // 11 End    20% damage ps. Level ends when player health drops below 11% & touching floor
	TypeBlink10Sync                // 12 Light  Blink 1.0 second, synchronized
	TypeBlink05Sync                // 13 Light  Blink 0.5 second, synchronized
	TypeDoor300                    // 14 Door   300 seconds after level start, ceiling opens like a door
	TypeUnused2                    // 15 Unused
	TypeDamage20                   // 16 Damage 20% damage per second
	TypeFlickerRandom              // 17 Light  Flickers randomly
)

// The lumps that follow a level marker, in order.
var levelLumps = [...]string{"THINGS", "LINEDEFS", "SIDEDEFS", "VERTEXES", "SEGS", "SSECTORS", "NODES", "SECTORS"}

// ReadLevel reads level data from WAD archive and returns a Level struct. Either all eight
// lumps decode and every cross reference checks out, or an error is returned.
func (a *Archive) ReadLevel(name string) (*Level, error) {
	name = strings.ToUpper(name)
	logger.Infof("Reading Level %v ...", name)

	levelIdx, ok := a.levels[name]
	if !ok {
		return nil, a.levelError(name, ErrMissingEntry, "no marker")
	}
	level := &Level{Name: name}
	for i, want := range levelLumps {
		lumpNum := levelIdx + 1 + i
		if lumpNum >= len(a.lumpInfos) || a.lumpInfos[lumpNum].Name.String() != want {
			return nil, a.levelError(name, ErrMissingEntry, "%v", want)
		}
		var err error
		switch want {
		case "THINGS":
			level.Things, err = ReadRecords[Thing](a, lumpNum)
		case "LINEDEFS":
			level.Linedefs, err = ReadRecords[Linedef](a, lumpNum)
		case "SIDEDEFS":
			level.Sidedefs, err = ReadRecords[Sidedef](a, lumpNum)
		case "VERTEXES":
			level.Vertices, err = ReadRecords[Vertex](a, lumpNum)
		case "SEGS":
			level.Segs, err = ReadRecords[Seg](a, lumpNum)
		case "SSECTORS":
			level.Subsectors, err = ReadRecords[Subsector](a, lumpNum)
		case "NODES":
			level.Nodes, err = ReadRecords[Node](a, lumpNum)
		case "SECTORS":
			level.Sectors, err = ReadRecords[Sector](a, lumpNum)
		}
		if err != nil {
			return nil, withPath(err, a.path)
		}
		logger.Debugf("Read %v (%v bytes)", want, a.lumpInfos[lumpNum].Size)
	}
	level.normalizeNames()
	if err := level.Validate(); err != nil {
		return nil, withPath(err, a.path)
	}
	logger.Infof("Read %v things, %v linedefs, %v sidedefs, %v vertices, %v segs, %v subsectors, %v nodes, %v sectors",
		len(level.Things), len(level.Linedefs), len(level.Sidedefs), len(level.Vertices),
		len(level.Segs), len(level.Subsectors), len(level.Nodes), len(level.Sectors))
	return level, nil
}

func (a *Archive) levelError(name string, cause error, format string, args ...any) error {
	err := corrupt(cause, format, args...)
	return withPath(withName(err, name), a.path)
}

// normalizeNames upper cases texture names; some PWADs store them in lower case.
func (l *Level) normalizeNames() {
	for i := range l.Sidedefs {
		s := &l.Sidedefs[i]
		s.UpperTexture = normalizeName(s.UpperTexture)
		s.LowerTexture = normalizeName(s.LowerTexture)
		s.MiddleTexture = normalizeName(s.MiddleTexture)
	}
	for i := range l.Sectors {
		s := &l.Sectors[i]
		s.FloorTexture = normalizeName(s.FloorTexture)
		s.CeilingTexture = normalizeName(s.CeilingTexture)
	}
}

func normalizeName(n LumpName) LumpName {
	var out LumpName
	for i, c := range n {
		if c == 0 {
			break
		}
		out[i] = upper(c)
	}
	return out
}

func (l *Level) badRef(format string, args ...any) error {
	return withName(corrupt(ErrBadReference, format, args...), l.Name)
}

// Validate checks every cross reference in the level.
func (l *Level) Validate() error {
	for i := range l.Linedefs {
		ld := &l.Linedefs[i]
		if int(ld.V1) >= len(l.Vertices) || int(ld.V2) >= len(l.Vertices) {
			return l.badRef("linedef %v vertices %v, %v of %v", i, ld.V1, ld.V2, len(l.Vertices))
		}
		if int(ld.SideR) >= len(l.Sidedefs) {
			return l.badRef("linedef %v right sidedef %v of %v", i, ld.SideR, len(l.Sidedefs))
		}
		if ld.HasLeft() && int(ld.SideL) >= len(l.Sidedefs) {
			return l.badRef("linedef %v left sidedef %v of %v", i, ld.SideL, len(l.Sidedefs))
		}
	}
	for i := range l.Sidedefs {
		if int(l.Sidedefs[i].Sector) >= len(l.Sectors) {
			return l.badRef("sidedef %v sector %v of %v", i, l.Sidedefs[i].Sector, len(l.Sectors))
		}
	}
	for i := range l.Segs {
		s := &l.Segs[i]
		if int(s.V1) >= len(l.Vertices) || int(s.V2) >= len(l.Vertices) {
			return l.badRef("seg %v vertices %v, %v of %v", i, s.V1, s.V2, len(l.Vertices))
		}
		if int(s.Linedef) >= len(l.Linedefs) {
			return l.badRef("seg %v linedef %v of %v", i, s.Linedef, len(l.Linedefs))
		}
		if s.Back() && !l.Linedefs[s.Linedef].HasLeft() {
			return l.badRef("seg %v is on the missing left side of linedef %v", i, s.Linedef)
		}
	}
	for i := range l.Subsectors {
		ss := &l.Subsectors[i]
		if int(ss.FirstSeg)+int(ss.NumSegs) > len(l.Segs) {
			return l.badRef("subsector %v segs %v+%v of %v", i, ss.FirstSeg, ss.NumSegs, len(l.Segs))
		}
	}
	for i := range l.Nodes {
		for side := 0; side < 2; side++ {
			if err := l.checkChild(l.Nodes[i].Child(side)); err != nil {
				return withName(corrupt(err, "node %v side %v", i, side), l.Name)
			}
		}
	}
	return nil
}

func (l *Level) checkChild(c ChildID) error {
	index, leaf := c.Split()
	if leaf && index >= len(l.Subsectors) {
		return corrupt(ErrBadChild, "subsector %v of %v", index, len(l.Subsectors))
	}
	if !leaf && index >= len(l.Nodes) {
		return corrupt(ErrBadChild, "node %v of %v", index, len(l.Nodes))
	}
	return nil
}

// VertexPos returns vertex i in world coordinates.
func (l *Level) VertexPos(i uint16) (mgl32.Vec2, error) {
	if int(i) >= len(l.Vertices) {
		return mgl32.Vec2{}, l.badRef("vertex %v of %v", i, len(l.Vertices))
	}
	v := l.Vertices[i]
	return FromWadCoords(v.X, v.Y), nil
}

// SegVertices returns the seg's end points in world coordinates.
func (l *Level) SegVertices(s *Seg) (v1, v2 mgl32.Vec2, err error) {
	if v1, err = l.VertexPos(s.V1); err != nil {
		return
	}
	v2, err = l.VertexPos(s.V2)
	return
}

func (l *Level) SegLinedef(s *Seg) (*Linedef, error) {
	if int(s.Linedef) >= len(l.Linedefs) {
		return nil, l.badRef("linedef %v of %v", s.Linedef, len(l.Linedefs))
	}
	return &l.Linedefs[s.Linedef], nil
}

// LinedefSide returns the right or left sidedef of ld, or nil if the linedef has no such side.
func (l *Level) LinedefSide(ld *Linedef, left bool) (*Sidedef, error) {
	i := ld.Side(left)
	if i == NoSidedef && left {
		return nil, nil
	}
	if int(i) >= len(l.Sidedefs) {
		return nil, l.badRef("sidedef %v of %v", i, len(l.Sidedefs))
	}
	return &l.Sidedefs[i], nil
}

// SegSidedef returns the sidedef the seg is drawn on.
func (l *Level) SegSidedef(s *Seg) (*Sidedef, error) {
	ld, err := l.SegLinedef(s)
	if err != nil {
		return nil, err
	}
	sd, err := l.LinedefSide(ld, s.Back())
	if err == nil && sd == nil {
		err = l.badRef("seg on missing side of linedef %v", s.Linedef)
	}
	return sd, err
}

// SegBackSidedef returns the sidedef behind the seg, or nil for a one-sided linedef.
func (l *Level) SegBackSidedef(s *Seg) (*Sidedef, error) {
	ld, err := l.SegLinedef(s)
	if err != nil {
		return nil, err
	}
	if !s.Back() && !ld.HasLeft() {
		return nil, nil
	}
	return l.LinedefSide(ld, !s.Back())
}

// SidedefSector returns the index of the sector a sidedef faces.
func (l *Level) SidedefSector(sd *Sidedef) (int, error) {
	if int(sd.Sector) >= len(l.Sectors) {
		return 0, l.badRef("sector %v of %v", sd.Sector, len(l.Sectors))
	}
	return int(sd.Sector), nil
}

// SegSector returns the index of the sector in front of the seg.
func (l *Level) SegSector(s *Seg) (int, error) {
	sd, err := l.SegSidedef(s)
	if err != nil {
		return 0, err
	}
	return l.SidedefSector(sd)
}

// SegBackSector returns the index of the sector behind the seg; ok is false if there is none.
func (l *Level) SegBackSector(s *Seg) (sector int, ok bool, err error) {
	sd, err := l.SegBackSidedef(s)
	if err != nil || sd == nil {
		return 0, false, err
	}
	sector, err = l.SidedefSector(sd)
	return sector, err == nil, err
}

// SubsectorSegs returns the segs of subsector i.
func (l *Level) SubsectorSegs(i int) ([]Seg, error) {
	if i < 0 || i >= len(l.Subsectors) {
		return nil, l.badRef("subsector %v of %v", i, len(l.Subsectors))
	}
	ss := l.Subsectors[i]
	start := int(ss.FirstSeg)
	end := start + int(ss.NumSegs)
	if end > len(l.Segs) {
		return nil, l.badRef("subsector %v segs %v..%v of %v", i, start, end, len(l.Segs))
	}
	return l.Segs[start:end], nil
}

// AdjacentSectors returns the sectors sharing a two-sided linedef with sector id. A
// neighbour bordering on several linedefs is listed once for each.
func (l *Level) AdjacentSectors(id int) []int {
	var adjacent []int
	for i := range l.Linedefs {
		ld := &l.Linedefs[i]
		if !ld.HasLeft() || int(ld.SideL) >= len(l.Sidedefs) || int(ld.SideR) >= len(l.Sidedefs) {
			continue
		}
		left, right := int(l.Sidedefs[ld.SideL].Sector), int(l.Sidedefs[ld.SideR].Sector)
		var other int
		switch id {
		case left:
			other = right
		case right:
			other = left
		default:
			continue
		}
		if other >= len(l.Sectors) {
			logger.Errorf("Bad WAD: linedef %v refers to sector %v of %v", i, other, len(l.Sectors))
			continue
		}
		adjacent = append(adjacent, other)
	}
	return adjacent
}

// SectorMinLight returns the lowest light level of a sector and its neighbours.
func (l *Level) SectorMinLight(id int) int16 {
	light := l.Sectors[id].LightLevel
	for _, other := range l.AdjacentSectors(id) {
		light = min(light, l.Sectors[other].LightLevel)
	}
	return light
}

// NeighbourHeights summarises the floors and ceilings around a sector, in map units.
type NeighbourHeights struct {
	LowestFloor    int16
	NextFloor      int16 // lowest neighbouring floor above this sector's floor
	HasNextFloor   bool
	HighestFloor   int16
	LowestCeiling  int16
	HighestCeiling int16
}

// NeighbourHeights computes the heights around sector id. ok is false for a sector without
// neighbours.
func (l *Level) NeighbourHeights(id int) (h NeighbourHeights, ok bool) {
	own := l.Sectors[id].FloorHeight
	for _, other := range l.AdjacentSectors(id) {
		s := &l.Sectors[other]
		floor, ceiling := s.FloorHeight, s.CeilingHeight
		if !ok {
			h = NeighbourHeights{
				LowestFloor: floor, HighestFloor: floor,
				LowestCeiling: ceiling, HighestCeiling: ceiling,
			}
			ok = true
		}
		h.LowestFloor = min(h.LowestFloor, floor)
		h.HighestFloor = max(h.HighestFloor, floor)
		h.LowestCeiling = min(h.LowestCeiling, ceiling)
		h.HighestCeiling = max(h.HighestCeiling, ceiling)
		if floor > own && (!h.HasNextFloor || floor < h.NextFloor) {
			h.NextFloor = floor
			h.HasNextFloor = true
		}
	}
	return h, ok
}

// TaggedSectors returns the sectors carrying tag, in index order.
func (l *Level) TaggedSectors(tag uint16) []int {
	var sectors []int
	for i := range l.Sectors {
		if l.Sectors[i].Tag == tag {
			sectors = append(sectors, i)
		}
	}
	return sectors
}

// HeightRange returns the lowest floor and the highest ceiling, padded by 512 map units.
func (l *Level) HeightRange() (lo, hi int) {
	lo, hi = 32767, -32768
	for i := range l.Sectors {
		lo = min(lo, int(l.Sectors[i].FloorHeight))
		hi = max(hi, int(l.Sectors[i].CeilingHeight))
	}
	return lo - 512, hi + 512
}
