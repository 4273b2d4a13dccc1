package wad

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Visitor receives the geometry of a level as a Walker extracts it. Records are only valid
// for the duration of the call; copy what you keep.
type Visitor interface {
	VisitWallQuad(q *WallQuad)
	VisitSkyQuad(q *WallQuad)
	VisitFlatPoly(p *FlatPoly)
	VisitDecor(d *Decor)
	VisitMarker(m *Marker)
	VisitTrigger(t *Trigger)
}

// WallQuad is a vertical rectangle between two points of the floor plan. Texture coordinates
// are in texels; s runs along the wall and t downwards.
type WallQuad struct {
	Sector    int
	Object    int // dynamic object moving the quad, 0 if static
	V1, V2    mgl32.Vec2
	Low, High float32
	TexStart  mgl32.Vec2
	TexEnd    mgl32.Vec2
	Texture   LumpName
	Textured  bool // false for untextured walls, which are invisible
	Light     LightInfo
	YOffset   float32
	Scroll    float32
	Blocker   bool
	Sky       bool
}

// FlatPoly is the convex floor and ceiling of one subsector. Points run counter clockwise.
type FlatPoly struct {
	Subsector      int
	Sector         int
	NumSegs        int
	Points         []mgl32.Vec2
	Floor          float32
	Ceiling        float32
	FloorTexture   LumpName
	CeilingTexture LumpName
	FloorSky       bool
	CeilingSky     bool
	FloorObject    int
	CeilingObject  int
	Light          LightInfo
}

// Decor is a billboard sprite standing on the floor or hanging from the ceiling.
type Decor struct {
	Thing     int
	ThingType uint16
	Object    int
	Low, High mgl32.Vec3
	HalfWidth float32
	Sprite    LumpName   // first frame
	Frames    []LumpName // animation sequence, including Sprite
	Obstacle  bool
	Light     LightInfo
}

type MarkerKind int

const (
	StartPos MarkerKind = iota
	TeleportStart
	TeleportEnd
)

func (k MarkerKind) String() string {
	switch k {
	case StartPos:
		return "start"
	case TeleportStart:
		return "teleport start"
	case TeleportEnd:
		return "teleport end"
	}
	return "unknown"
}

// Marker is a position of interest that is not drawn: a player start or a teleport end.
type Marker struct {
	Kind   MarkerKind
	Player int // for StartPos
	Thing  int
	Pos    mgl32.Vec3
	Yaw    float32
}

const (
	thingPlayer1Start  = 1
	thingPlayer4Start  = 4
	thingTeleportStart = 11
	thingTeleportEnd   = 14
)

// markerFor maps player starts and teleports to markers.
func markerFor(thingType uint16) (Marker, bool) {
	switch {
	case thingType >= thingPlayer1Start && thingType <= thingPlayer4Start:
		return Marker{Kind: StartPos, Player: int(thingType - thingPlayer1Start)}, true
	case thingType == thingTeleportStart:
		return Marker{Kind: TeleportStart}, true
	case thingType == thingTeleportEnd:
		return Marker{Kind: TeleportEnd}, true
	}
	return Marker{}, false
}

// NopVisitor ignores everything. Embed it to implement part of Visitor.
type NopVisitor struct{}

func (NopVisitor) VisitWallQuad(*WallQuad) {}
func (NopVisitor) VisitSkyQuad(*WallQuad)  {}
func (NopVisitor) VisitFlatPoly(*FlatPoly) {}
func (NopVisitor) VisitDecor(*Decor)       {}
func (NopVisitor) VisitMarker(*Marker)     {}
func (NopVisitor) VisitTrigger(*Trigger)   {}

// Collector keeps a copy of every record.
type Collector struct {
	Walls    []WallQuad
	Skies    []WallQuad
	Polys    []FlatPoly
	Decors   []Decor
	Markers  []Marker
	Triggers []Trigger
}

func (c *Collector) VisitWallQuad(q *WallQuad) { c.Walls = append(c.Walls, *q) }
func (c *Collector) VisitSkyQuad(q *WallQuad)  { c.Skies = append(c.Skies, *q) }
func (c *Collector) VisitFlatPoly(p *FlatPoly) { c.Polys = append(c.Polys, *p) }
func (c *Collector) VisitDecor(d *Decor)       { c.Decors = append(c.Decors, *d) }
func (c *Collector) VisitMarker(m *Marker)     { c.Markers = append(c.Markers, *m) }
func (c *Collector) VisitTrigger(t *Trigger)   { c.Triggers = append(c.Triggers, *t) }

// TextureNames returns the distinct wall textures used by textured walls, sorted.
func (c *Collector) TextureNames() []LumpName {
	set := make(map[LumpName]bool)
	for i := range c.Walls {
		if c.Walls[i].Textured {
			set[c.Walls[i].Texture] = true
		}
	}
	return sortedNames(set)
}

// FlatNames returns the distinct floor and ceiling flats, sky excluded, sorted.
func (c *Collector) FlatNames() []LumpName {
	set := make(map[LumpName]bool)
	for i := range c.Polys {
		p := &c.Polys[i]
		if !p.FloorSky {
			set[p.FloorTexture] = true
		}
		if !p.CeilingSky {
			set[p.CeilingTexture] = true
		}
	}
	return sortedNames(set)
}

// SpriteNames returns every decor frame, sorted.
func (c *Collector) SpriteNames() []LumpName {
	set := make(map[LumpName]bool)
	for i := range c.Decors {
		for _, f := range c.Decors[i].Frames {
			set[f] = true
		}
	}
	return sortedNames(set)
}

// SpriteFrameSets returns the distinct decor frame sequences, ordered by first frame. Each
// set is one animation and packs as a single atlas strip.
func (c *Collector) SpriteFrameSets() [][]LumpName {
	seen := make(map[string]bool)
	var sets [][]LumpName
	for i := range c.Decors {
		frames := c.Decors[i].Frames
		if len(frames) == 0 {
			continue
		}
		key := ""
		for _, f := range frames {
			key += f.String() + "/"
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		sets = append(sets, frames)
	}
	sort.SliceStable(sets, func(i, j int) bool { return sets[i][0].String() < sets[j][0].String() })
	return sets
}

func sortedNames(set map[LumpName]bool) []LumpName {
	names := make([]LumpName, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}

// MultiVisitor passes every record to each of its visitors in turn.
type MultiVisitor []Visitor

func (m MultiVisitor) VisitWallQuad(q *WallQuad) {
	for _, v := range m {
		v.VisitWallQuad(q)
	}
}

func (m MultiVisitor) VisitSkyQuad(q *WallQuad) {
	for _, v := range m {
		v.VisitSkyQuad(q)
	}
}

func (m MultiVisitor) VisitFlatPoly(p *FlatPoly) {
	for _, v := range m {
		v.VisitFlatPoly(p)
	}
}

func (m MultiVisitor) VisitDecor(d *Decor) {
	for _, v := range m {
		v.VisitDecor(d)
	}
}

func (m MultiVisitor) VisitMarker(mk *Marker) {
	for _, v := range m {
		v.VisitMarker(mk)
	}
}

func (m MultiVisitor) VisitTrigger(t *Trigger) {
	for _, v := range m {
		v.VisitTrigger(t)
	}
}
