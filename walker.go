package wad

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// Distance on the wrong side of a BSP or seg line that still counts as inside.
	bspTolerance = 1e-3
	segTolerance = 0.1

	// All polygons are fattened by this much to hide thin gaps between them.
	polyBias = 0.64 * 3e-4
)

// TextureSizer reports image sizes in texels. TextureDirectory implements it.
type TextureSizer interface {
	TextureSize(name LumpName) (image.Point, bool)
	SpriteSize(name LumpName) (image.Point, bool)
}

// Stats counts what a walk visited and emitted.
type Stats struct {
	Nodes    int
	Leaves   int
	Segs     int
	Walls    int
	SkyQuads int
	Polys    int
	Decors   int
	Markers  int
	Triggers int
	Skipped  int
	Filtered int // things not placed at the walk's skill
}

// Walker extracts the static geometry of a level by visiting every node of its BSP tree
// once. It does no view dependent culling.
type Walker struct {
	level    *Level
	meta     *Metadata
	textures TextureSizer
	visitor  Visitor

	skill       Skill
	multiplayer bool

	lights    LightTable
	triggers  *TriggerAnalysis
	sky       *SkyMetadata
	minHeight int
	maxHeight int
	bspLines  []line2 // half planes from the root down to the current subtree
	points    []mgl32.Vec2
	segLines  []line2
	stats     Stats
}

// NewWalker returns a walker emitting to v. meta may be nil for the built in metadata, and
// textures may be nil when image sizes are unknown.
func NewWalker(level *Level, meta *Metadata, textures TextureSizer, v Visitor) *Walker {
	return &Walker{level: level, meta: meta, textures: textures, visitor: v}
}

// SetSkill limits the things a walk emits to those placed at skill s, with or without the
// multiplayer only ones. The default is SkillAny.
func (w *Walker) SetSkill(s Skill, multiplayer bool) *Walker {
	w.skill, w.multiplayer = s, multiplayer
	return w
}

type peg int

const (
	pegTop peg = iota
	pegBottom
	pegBottomLower
	pegTopFloat
	pegBottomFloat
)

type walkFrame struct {
	child   ChildID
	depth   int   // number of partition lines above line
	line    line2 // half plane containing child
	hasLine bool
}

// Walk visits the BSP tree, then the things, then the triggers. A level with a dangling
// reference or a malformed tree fails with a KindCorruptArchive error; degenerate segs, subsectors and things are skipped.
func (w *Walker) Walk() (Stats, error) {
	w.stats = Stats{}
	if w.meta == nil {
		meta, err := DefaultMetadata()
		if err != nil {
			return w.stats, err
		}
		w.meta = meta
	}
	if err := w.level.Validate(); err != nil {
		return w.stats, err
	}
	var err error
	if w.lights, err = NewLightTable(w.level); err != nil {
		return w.stats, err
	}
	if w.triggers, err = AnalyzeTriggers(w.level, w.meta); err != nil {
		return w.stats, err
	}
	w.sky, _ = w.meta.SkyFor(w.level.Name)
	w.minHeight, w.maxHeight = w.level.HeightRange()

	logger.Infof("Walking level %v", w.level.Name)
	if err := w.walkTree(); err != nil {
		return w.stats, err
	}
	w.things()
	for i := range w.triggers.Triggers {
		w.visitor.VisitTrigger(&w.triggers.Triggers[i])
		w.stats.Triggers++
	}
	logger.Infof("Walked %v nodes, %v subsectors: %v walls, %v sky quads, %v polygons, %v decors, %v skipped",
		w.stats.Nodes, w.stats.Leaves, w.stats.Walls, w.stats.SkyQuads, w.stats.Polys, w.stats.Decors, w.stats.Skipped)
	return w.stats, nil
}

func (w *Walker) badChild(format string, args ...any) error {
	return withName(corrupt(ErrBadChild, format, args...), w.level.Name)
}

// rootChild returns the root of the tree: the last node, or the only subsector of a level too
// small to need nodes.
func rootChild(l *Level) (ChildID, bool) {
	switch {
	case len(l.Nodes) > 0:
		return NewChildID(len(l.Nodes)-1, false), true
	case len(l.Subsectors) > 0:
		return NewChildID(0, true), true
	}
	return 0, false
}

func (w *Walker) walkTree() error {
	l := w.level
	if len(l.Nodes) > subsectorBit {
		return w.badChild("%v nodes", len(l.Nodes))
	}
	root, ok := rootChild(l)
	if !ok {
		logger.Warningf("Level %v contains no nodes, nothing to walk", l.Name)
		return nil
	}
	if len(l.Nodes) == 0 && len(l.Subsectors) > 1 {
		logger.Warningf("Level %v has %v subsectors but no nodes", l.Name, len(l.Subsectors))
	}

	visitedNodes := make([]bool, len(l.Nodes))
	visitedLeaves := make([]bool, len(l.Subsectors))
	stack := []walkFrame{{child: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		w.bspLines = w.bspLines[:f.depth]
		if f.hasLine {
			w.bspLines = append(w.bspLines, f.line)
		}

		index, leaf := f.child.Split()
		if leaf {
			if index >= len(l.Subsectors) {
				return w.badChild("subsector %v of %v", index, len(l.Subsectors))
			}
			if visitedLeaves[index] {
				return w.badChild("subsector %v reached twice", index)
			}
			visitedLeaves[index] = true
			w.stats.Leaves++
			if err := w.subsector(index); err != nil {
				return err
			}
			continue
		}

		if index >= len(l.Nodes) {
			return w.badChild("node %v of %v", index, len(l.Nodes))
		}
		if visitedNodes[index] {
			return w.badChild("node %v reached twice", index)
		}
		visitedNodes[index] = true
		w.stats.Nodes++

		node := &l.Nodes[index]
		partition := partitionLine(node)
		depth := len(w.bspLines)
		// Pushed right first, so the left subtree is walked first.
		stack = append(stack,
			walkFrame{child: node.ChildR, depth: depth, line: partition.inverted(), hasLine: true},
			walkFrame{child: node.ChildL, depth: depth, line: partition, hasLine: true})
	}

	if w.stats.Nodes < len(l.Nodes) || w.stats.Leaves < len(l.Subsectors) {
		logger.Warningf("Level %v: %v of %v nodes and %v of %v subsectors are unreachable", l.Name,
			len(l.Nodes)-w.stats.Nodes, len(l.Nodes), len(l.Subsectors)-w.stats.Leaves, len(l.Subsectors))
	}
	return nil
}

func partitionLine(n *Node) line2 {
	return lineFromPoints(
		FromWadCoords(n.X, n.Y),
		FromWadCoords(int(n.X)+int(n.DX), int(n.Y)+int(n.DY)))
}

func (w *Walker) subsector(id int) error {
	l := w.level
	segs, err := l.SubsectorSegs(id)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		logger.Warningf("Zero segs for subsector %v, skipping", id)
		w.stats.Skipped++
		return nil
	}
	sector, err := l.SegSector(&segs[0])
	if err != nil {
		return err
	}

	// Explicit points are the seg vertices.
	w.points = w.points[:0]
	w.segLines = w.segLines[:0]
	for i := range segs {
		seg := &segs[i]
		w.stats.Segs++
		v1, v2, err := l.SegVertices(seg)
		if err != nil {
			return err
		}
		if v1 == v2 {
			logger.Warningf("Zero length seg %v in subsector %v, skipping", int(l.Subsectors[id].FirstSeg)+i, id)
			w.stats.Skipped++
			continue
		}
		w.points = append(w.points, v1, v2)
		w.segLines = append(w.segLines, lineFromPoints(v1, v2))
		if err := w.seg(sector, seg, v1, v2); err != nil {
			return err
		}
	}

	// Implicit points are where partition lines cross inside both the BSP and seg half
	// planes.
	for i := 0; i < len(w.bspLines); i++ {
		for j := i + 1; j < len(w.bspLines); j++ {
			p, ok := w.bspLines[i].intersect(w.bspLines[j])
			if ok && w.insideBSP(p) && w.insideSegs(p) {
				w.points = append(w.points, p)
			}
		}
	}

	poly := toPolygon(w.points, polyBias)
	if poly == nil {
		logger.Warningf("Degenerate polygon for subsector %v (%v points), skipping", id, len(w.points))
		w.stats.Skipped++
		return nil
	}
	w.flatPoly(id, sector, int(l.Subsectors[id].NumSegs), poly)
	return nil
}

func (w *Walker) insideBSP(p mgl32.Vec2) bool {
	for _, line := range w.bspLines {
		if line.signedDistance(p) < -bspTolerance {
			return false
		}
	}
	return true
}

func (w *Walker) insideSegs(p mgl32.Vec2) bool {
	for _, line := range w.segLines {
		if line.signedDistance(p) > segTolerance {
			return false
		}
	}
	return true
}

// wallSide is the part of a wall shared by all its quads.
type wallSide struct {
	sector  int
	seg     *Seg
	linedef *Linedef
	sidedef *Sidedef
	v1, v2  mgl32.Vec2
}

func (w *Walker) seg(sector int, seg *Seg, v1, v2 mgl32.Vec2) error {
	l := w.level
	ld, err := l.SegLinedef(seg)
	if err != nil {
		return err
	}
	sd, err := l.SegSidedef(seg)
	if err != nil {
		return err
	}
	side := wallSide{sector: sector, seg: seg, linedef: ld, sidedef: sd, v1: v1, v2: v2}
	s := &l.Sectors[sector]
	floor, ceiling := int(s.FloorHeight), int(s.CeilingHeight)
	floorSpan, ceilingSpan := w.triggers.ranges(l, sector)
	floorObject, ceilingObject := w.triggers.floorObject(sector), w.triggers.ceilingObject(sector)
	unpegLower := ld.LowerUnpegged()

	back, twoSided, err := l.SegBackSector(seg)
	if err != nil {
		return err
	}
	if !twoSided {
		maxHeight := int(ceilingSpan.Hi) - int(floorSpan.Lo)
		if unpegLower {
			w.wallQuad(&side, floorObject, floor, floor+maxHeight, sd.MiddleTexture, pegBottom, true)
		} else {
			w.wallQuad(&side, ceilingObject, ceiling-maxHeight, ceiling, sd.MiddleTexture, pegTop, true)
		}
		if s.CeilingTexture.IsSky() {
			w.skyQuad(sector, ceilingObject, v1, v2, ceiling, w.maxHeight)
		}
		if s.FloorTexture.IsSky() {
			w.skyQuad(sector, floorObject, v1, v2, w.minHeight, floor)
		}
		return nil
	}

	bs := &l.Sectors[back]
	backFloor, backCeiling := int(bs.FloorHeight), int(bs.CeilingHeight)
	backFloorSpan, _ := w.triggers.ranges(l, back)
	if s.CeilingTexture.IsSky() && !bs.CeilingTexture.IsSky() {
		w.skyQuad(sector, ceilingObject, v1, v2, ceiling, w.maxHeight)
	}
	if s.FloorTexture.IsSky() && !bs.FloorTexture.IsSky() {
		w.skyQuad(sector, floorObject, v1, v2, w.minHeight, floor)
	}

	low := floor
	if backFloorSpan.Hi > floorSpan.Lo {
		p := pegTop
		if unpegLower {
			p = pegBottomLower
		}
		w.wallQuad(&side, w.triggers.floorObject(back),
			backFloor-int(backFloorSpan.Hi)+int(floorSpan.Lo), backFloor, sd.LowerTexture, p, true)
		low = backFloor
	}
	high := ceiling
	if backCeiling < ceiling {
		if !bs.CeilingTexture.IsSky() {
			p := pegBottom
			if ld.UpperUnpegged() {
				p = pegTop
			}
			w.wallQuad(&side, w.triggers.ceilingObject(back), backCeiling, ceiling, sd.UpperTexture, p, true)
		}
		high = backCeiling
	}

	var middle peg
	switch {
	case unpegLower && sd.UpperTexture.IsUntextured():
		middle = pegTopFloat
	case unpegLower:
		middle = pegBottom
	case sd.LowerTexture.IsUntextured():
		middle = pegBottomFloat
	default:
		middle = pegTop
	}
	object := ceilingObject
	if unpegLower {
		object = floorObject
	}
	w.wallQuad(&side, object, low, high, sd.MiddleTexture, middle, ld.Impassable())
	return nil
}

func (w *Walker) wallQuad(side *wallSide, object, low, high int, texture LumpName, p peg, blocker bool) {
	if low >= high {
		return
	}
	textured := !texture.IsUntextured()
	var size image.Point
	hasSize := false
	if textured && w.textures != nil {
		var ok bool
		if size, ok = w.textures.TextureSize(texture); !ok {
			logger.Warningf("No such wall texture %v", texture)
			w.stats.Skipped++
			return
		}
		hasSize = true
	}

	sd := side.sidedef
	bias := normalizeOrZero(side.v2.Sub(side.v1)).Mul(polyBias)
	v1, v2 := side.v1.Sub(bias), side.v2.Add(bias)
	yOffset := int(sd.YOffset)
	lowY, highY := FromWadHeight(low), FromWadHeight(high)
	if hasSize {
		switch p {
		case pegTopFloat:
			lowY, highY = FromWadHeight(low+yOffset), FromWadHeight(low+size.Y+yOffset)
		case pegBottomFloat:
			lowY, highY = FromWadHeight(high+yOffset-size.Y), FromWadHeight(high+yOffset)
		}
	}

	light := w.lights[side.sector]
	if light.Effect == nil {
		switch {
		case math32.Abs(v1[0]-v2[0]) < lightEpsilon:
			light = light.WithContrast(Brighten)
		case math32.Abs(v1[1]-v2[1]) < lightEpsilon:
			light = light.WithContrast(Darken)
		}
	}

	height := ToWadHeight(highY - lowY)
	s1 := float32(side.seg.Offset) + float32(sd.XOffset)
	s2 := s1 + ToWadHeight(v2.Sub(v1).Len())
	h := float32(size.Y)
	var t1, t2 float32
	switch {
	case !hasSize || p == pegTop:
		t1, t2 = height, 0
	case p == pegBottom:
		t1, t2 = h, h-height
	case p == pegBottomLower:
		s := &w.level.Sectors[side.sector]
		sectorHeight := float32(int(s.CeilingHeight) - int(s.FloorHeight))
		t1, t2 = h+sectorHeight, h-height+sectorHeight
	default:
		t1, t2 = h, 0
	}
	t1 += float32(sd.YOffset)
	t2 += float32(sd.YOffset)

	w.visitor.VisitWallQuad(&WallQuad{
		Sector:   side.sector,
		Object:   object,
		V1:       v1,
		V2:       v2,
		Low:      lowY - polyBias,
		High:     highY + polyBias,
		TexStart: mgl32.Vec2{s1, t1},
		TexEnd:   mgl32.Vec2{s2, t2},
		Texture:  texture,
		Textured: textured,
		Light:    light,
		YOffset:  float32(sd.YOffset),
		Scroll:   w.meta.ScrollRate(side.linedef.Special),
		Blocker:  blocker,
	})
	w.stats.Walls++
}

func (w *Walker) skyQuad(sector, object int, v1, v2 mgl32.Vec2, low, high int) {
	if low >= high {
		return
	}
	edge := normalizeOrZero(v2.Sub(v1))
	bias := edge.Mul(polyBias * 16)
	normalBias := mgl32.Vec2{-edge[1], edge[0]}.Mul(polyBias * 16)
	q := WallQuad{
		Sector:   sector,
		Object:   object,
		V1:       v1.Add(normalBias).Sub(bias),
		V2:       v2.Add(normalBias).Add(bias),
		Low:      FromWadHeight(low),
		High:     FromWadHeight(high),
		Texture:  SkyFlatName,
		Textured: true,
		Light:    LightInfo{Level: 1},
		Sky:      true,
	}
	if w.sky != nil {
		q.Texture, q.Scroll = w.sky.TextureName, w.sky.ScrollRate
	}
	w.visitor.VisitSkyQuad(&q)
	w.stats.SkyQuads++
}

func (w *Walker) flatPoly(subsector, sector, numSegs int, points []mgl32.Vec2) {
	s := &w.level.Sectors[sector]
	floorSky, ceilingSky := s.FloorTexture.IsSky(), s.CeilingTexture.IsSky()
	floor, ceiling := int(s.FloorHeight), int(s.CeilingHeight)
	if floorSky {
		floor = w.minHeight
	}
	if ceilingSky {
		ceiling = w.maxHeight
	}
	w.visitor.VisitFlatPoly(&FlatPoly{
		Subsector:      subsector,
		Sector:         sector,
		NumSegs:        numSegs,
		Points:         points,
		Floor:          FromWadHeight(floor),
		Ceiling:        FromWadHeight(ceiling),
		FloorTexture:   s.FloorTexture,
		CeilingTexture: s.CeilingTexture,
		FloorSky:       floorSky,
		CeilingSky:     ceilingSky,
		FloorObject:    w.triggers.floorObject(sector),
		CeilingObject:  w.triggers.ceilingObject(sector),
		Light:          w.lights[sector],
	})
	w.stats.Polys++
}

func (w *Walker) things() {
	l := w.level
	for i := range l.Things {
		t := &l.Things[i]
		if w.skill != SkillAny && !t.Appears(w.skill, w.multiplayer) {
			w.stats.Filtered++
			continue
		}
		pos := FromWadCoords(t.X, t.Y)
		sector, ok := SectorAt(l, pos)
		if !ok {
			logger.Debugf("Thing %v (type %v) is outside the level", i, t.Type)
			w.stats.Skipped++
			continue
		}
		s := &l.Sectors[sector]
		if m, ok := markerFor(t.Type); ok {
			m.Thing = i
			m.Pos = mgl32.Vec3{pos[0], FromWadHeight(s.FloorHeight), pos[1]}
			m.Yaw = t.Yaw()
			w.visitor.VisitMarker(&m)
			w.stats.Markers++
			continue
		}
		w.decor(i, t, pos, sector)
	}
}

// SectorAt finds the sector containing pos, in world coordinates, by descending the BSP
// tree. ok is false for points outside every subsector or for a malformed tree.
func SectorAt(l *Level, pos mgl32.Vec2) (sector int, ok bool) {
	child, ok := rootChild(l)
	if !ok {
		return 0, false
	}
	for steps := 0; steps <= len(l.Nodes); steps++ {
		index, leaf := child.Split()
		if leaf {
			return leafSector(l, index, pos)
		}
		if index >= len(l.Nodes) {
			return 0, false
		}
		node := &l.Nodes[index]
		if partitionLine(node).signedDistance(pos) > 0 {
			child = node.ChildL
		} else {
			child = node.ChildR
		}
	}
	return 0, false
}

func leafSector(l *Level, id int, pos mgl32.Vec2) (int, bool) {
	segs, err := l.SubsectorSegs(id)
	if err != nil || len(segs) == 0 {
		return 0, false
	}
	sector, err := l.SegSector(&segs[0])
	if err != nil {
		return 0, false
	}
	for i := range segs {
		v1, v2, err := l.SegVertices(&segs[i])
		if err != nil {
			return 0, false
		}
		if lineFromPoints(v1, v2).signedDistance(pos) > segTolerance {
			return 0, false
		}
	}
	return sector, true
}

func (w *Walker) decor(i int, t *Thing, pos mgl32.Vec2, sector int) {
	meta, ok := w.meta.FindThing(t.Type)
	if !ok {
		logger.Warningf("No metadata found for thing type %v", t.Type)
		w.stats.Skipped++
		return
	}
	base, err := EncodeName(meta.Sprite)
	var sprite, name0, name1 LumpName
	if err == nil {
		sprite, err = base.Append(meta.Sequence[0])
	}
	if err == nil {
		name0, err = sprite.Append('0')
	}
	if err == nil {
		name1, err = sprite.Append('1')
	}
	if err != nil {
		logger.Warningf("Sprite %v for thing type %v is not a valid name: %v", meta.Sprite, t.Type, err)
		w.stats.Skipped++
		return
	}

	// Without image sizes the billboard is a square as wide as the thing.
	name := name0
	size := image.Point{int(meta.Radius) * 2, int(meta.Radius) * 2}
	if w.textures != nil {
		if sz, ok := w.textures.SpriteSize(name0); ok {
			size = sz
		} else if sz, ok := w.textures.SpriteSize(name1); ok {
			name, size = name1, sz
		} else {
			logger.Warningf("No such sprite %v for thing type %v", meta.Sprite, t.Type)
			w.stats.Skipped++
			return
		}
	}
	rotation := name[sprite.Len()]

	frames := make([]LumpName, 0, len(meta.Sequence))
	for j := 0; j < len(meta.Sequence); j++ {
		frame, err := base.Append(meta.Sequence[j])
		if err == nil {
			frame, err = frame.Append(rotation)
		}
		if err != nil {
			logger.Warningf("Bad frame %q for thing type %v: %v", meta.Sequence[j], t.Type, err)
			break
		}
		frames = append(frames, frame)
	}

	s := &w.level.Sectors[sector]
	width, height := FromWadHeight(size.X), FromWadHeight(size.Y)
	d := Decor{
		Thing:     i,
		ThingType: t.Type,
		HalfWidth: width * 0.5,
		Sprite:    name,
		Frames:    frames,
		Obstacle:  meta.Obstacle,
		Light:     w.lights[sector],
	}
	if meta.Hanging {
		ceiling := FromWadHeight(s.CeilingHeight)
		d.Object = w.triggers.ceilingObject(sector)
		d.Low = mgl32.Vec3{pos[0], ceiling - height, pos[1]}
		d.High = mgl32.Vec3{pos[0], ceiling, pos[1]}
	} else {
		floor := FromWadHeight(s.FloorHeight)
		d.Object = w.triggers.floorObject(sector)
		d.Low = mgl32.Vec3{pos[0], floor, pos[1]}
		d.High = mgl32.Vec3{pos[0], floor + height, pos[1]}
	}
	w.visitor.VisitDecor(&d)
	w.stats.Decors++
}
