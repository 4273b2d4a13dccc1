package wad

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type testLump struct {
	name string
	data []byte
}

// wadBuilder assembles a WAD in memory: header, lump data, then the directory.
type wadBuilder struct {
	magic string
	lumps []testLump
}

func newWadBuilder() *wadBuilder {
	return &wadBuilder{magic: magicPWAD}
}

func (b *wadBuilder) add(name string, data []byte) *wadBuilder {
	b.lumps = append(b.lumps, testLump{name, data})
	return b
}

func (b *wadBuilder) addRecords(name string, records any) *wadBuilder {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, records); err != nil {
		panic(err)
	}
	return b.add(name, buf.Bytes())
}

// addLevel appends a level marker and its eight lumps.
func (b *wadBuilder) addLevel(l *Level) *wadBuilder {
	b.add(l.Name, nil)
	b.addRecords("THINGS", l.Things)
	b.addRecords("LINEDEFS", l.Linedefs)
	b.addRecords("SIDEDEFS", l.Sidedefs)
	b.addRecords("VERTEXES", l.Vertices)
	b.addRecords("SEGS", l.Segs)
	b.addRecords("SSECTORS", l.Subsectors)
	b.addRecords("NODES", l.Nodes)
	b.addRecords("SECTORS", l.Sectors)
	return b
}

func (b *wadBuilder) bytes() []byte {
	var data bytes.Buffer
	var dir []binLumpInfo
	for _, lump := range b.lumps {
		var bi binLumpInfo
		copy(bi.Name[:], lump.name)
		bi.Filepos = int32(12 + data.Len())
		bi.Size = int32(len(lump.data))
		data.Write(lump.data)
		dir = append(dir, bi)
	}

	var out bytes.Buffer
	var header binHeader
	copy(header.Magic[:], b.magic)
	header.NumLumps = int32(len(dir))
	header.InfoTableOfs = int32(12 + data.Len())
	binary.Write(&out, binary.LittleEndian, header)
	out.Write(data.Bytes())
	binary.Write(&out, binary.LittleEndian, dir)
	return out.Bytes()
}

func (b *wadBuilder) open(t *testing.T) *Archive {
	t.Helper()
	data := b.bytes()
	a, err := OpenReader(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		t.Fatalf("OpenReader() error: %v", err)
	}
	return a
}

func name8(s string) (n LumpName) {
	copy(n[:], s)
	return n
}

// squareLevel is a single 128x128 room split along its diagonal into two triangular
// subsectors. Subsector 0 is the half below the diagonal, on the right of the partition.
func squareLevel() *Level {
	wall := Sidedef{MiddleTexture: name8("STARTAN3"), UpperTexture: name8("-"), LowerTexture: name8("-")}
	return &Level{
		Name: "E1M1",
		Things: []Thing{
			{X: 96, Y: 32, Angle: 90, Type: 1},
		},
		Linedefs: []Linedef{
			{V1: 0, V2: 3, Flags: FlagImpassable, SideR: 0, SideL: NoSidedef},
			{V1: 3, V2: 2, Flags: FlagImpassable, SideR: 1, SideL: NoSidedef},
			{V1: 2, V2: 1, Flags: FlagImpassable, SideR: 2, SideL: NoSidedef},
			{V1: 1, V2: 0, Flags: FlagImpassable, SideR: 3, SideL: NoSidedef},
		},
		Sidedefs: []Sidedef{wall, wall, wall, wall},
		Vertices: []Vertex{{0, 0}, {128, 0}, {128, 128}, {0, 128}},
		Segs: []Seg{
			{V1: 2, V2: 1, Linedef: 2},
			{V1: 1, V2: 0, Linedef: 3},
			{V1: 0, V2: 3, Linedef: 0},
			{V1: 3, V2: 2, Linedef: 1},
		},
		Subsectors: []Subsector{
			{NumSegs: 2, FirstSeg: 0},
			{NumSegs: 2, FirstSeg: 2},
		},
		Nodes: []Node{
			{X: 0, Y: 0, DX: 128, DY: 128, ChildR: NewChildID(0, true), ChildL: NewChildID(1, true)},
		},
		Sectors: []Sector{
			{FloorHeight: 0, CeilingHeight: 128, FloorTexture: name8("FLOOR4_8"), CeilingTexture: name8("CEIL3_5"), LightLevel: 160},
		},
	}
}
