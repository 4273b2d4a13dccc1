package wad

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// TriggerKind is how a player sets a trigger off.
type TriggerKind int

const (
	TriggerPush TriggerKind = iota
	TriggerSwitch
	TriggerWalkOver
	TriggerGun
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerPush:
		return "push"
	case TriggerSwitch:
		return "switch"
	case TriggerWalkOver:
		return "walk"
	case TriggerGun:
		return "gun"
	}
	return "unknown"
}

type ExitEffect int

const (
	ExitNone ExitEffect = iota
	ExitNormal
	ExitSecret
)

func (e ExitEffect) String() string {
	switch e {
	case ExitNormal:
		return "normal"
	case ExitSecret:
		return "secret"
	}
	return "none"
}

// HeightRef names the height a moving floor or ceiling travels to, relative to the sector
// or its neighbours.
type HeightRef int

const (
	LowestFloor HeightRef = iota
	NextFloor
	HighestFloor
	LowestCeiling
	HighestCeiling
	Floor
	Ceiling
)

var heightRefNames = map[string]HeightRef{
	"lowest_floor":    LowestFloor,
	"next_floor":      NextFloor,
	"highest_floor":   HighestFloor,
	"lowest_ceiling":  LowestCeiling,
	"highest_ceiling": HighestCeiling,
	"floor":           Floor,
	"ceiling":         Ceiling,
}

func (r HeightRef) String() string {
	for name, ref := range heightRefNames {
		if ref == r {
			return name
		}
	}
	return "unknown"
}

func (r *HeightRef) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	ref, ok := heightRefNames[s]
	if !ok {
		return nodeError(value, "unknown height reference %q", s)
	}
	*r = ref
	return nil
}

// HeightDef is a reference height plus an offset in map units.
type HeightDef struct {
	Ref    HeightRef `yaml:"ref"`
	Offset int16     `yaml:"offset"`
}

// height resolves d for sector s. NextFloor has no value when no neighbour floor is higher.
func (d HeightDef) height(s *Sector, h *NeighbourHeights) (int16, bool) {
	var base int16
	switch d.Ref {
	case LowestFloor:
		base = h.LowestFloor
	case NextFloor:
		if !h.HasNextFloor {
			return 0, false
		}
		base = h.NextFloor
	case HighestFloor:
		base = h.HighestFloor
	case LowestCeiling:
		base = h.LowestCeiling
	case HighestCeiling:
		base = h.HighestCeiling
	case Floor:
		base = s.FloorHeight
	case Ceiling:
		base = s.CeilingHeight
	}
	return base + d.Offset, true
}

// HeightEffectDef moves a surface to First, and then to Second if present.
type HeightEffectDef struct {
	First  HeightDef  `yaml:"first"`
	Second *HeightDef `yaml:"second"`
}

// heights resolves both stops. A nil definition resolves to nothing.
func (d *HeightEffectDef) heights(s *Sector, h *NeighbourHeights) (stops []int16) {
	if d == nil {
		return nil
	}
	first, ok := d.First.height(s, h)
	if !ok {
		return nil
	}
	stops = append(stops, first)
	if d.Second != nil {
		if second, ok := d.Second.height(s, h); ok {
			stops = append(stops, second)
		}
	}
	return stops
}

type MoveEffectDef struct {
	Floor   *HeightEffectDef `yaml:"floor"`
	Ceiling *HeightEffectDef `yaml:"ceiling"`
	Repeat  bool             `yaml:"repeat"`
}

// TriggerDef is what metadata says about one linedef special.
type TriggerDef struct {
	Special  uint16
	Kind     TriggerKind
	OnlyOnce bool
	Wait     float32 // seconds before a door or lift returns
	Speed    float32 // world units per second
	Move     *MoveEffectDef
	Exit     ExitEffect
}

// MoveEffect is a resolved move of one dynamic floor or ceiling, as offsets in world units
// from the surface's initial height.
type MoveEffect struct {
	Sector       int
	Object       int
	Ceiling      bool
	FirstOffset  float32
	SecondOffset float32
	HasSecond    bool
	Repeat       bool
}

// Trigger is an active linedef with its resolved targets.
type Trigger struct {
	TriggerDef
	Linedef int
	V1, V2  mgl32.Vec2
	Targets []int
	Moves   []MoveEffect
}

// HeightSpan is the range of heights a moving surface can occupy, in map units.
type HeightSpan struct {
	Lo, Hi int16
	Valid  bool
}

func (s *HeightSpan) merge(current int16, stops []int16) {
	for _, h := range stops {
		if !s.Valid {
			*s = HeightSpan{Lo: h, Hi: h, Valid: true}
			continue
		}
		s.Lo, s.Hi = min(s.Lo, h), max(s.Hi, h)
	}
	if s.Valid {
		s.Lo, s.Hi = min(s.Lo, current), max(s.Hi, current)
	}
}

// DynamicSector is a sector moved by at least one trigger. Object ids are allocated from 1;
// 0 is the static world.
type DynamicSector struct {
	FloorObject   int
	CeilingObject int
	Floor         HeightSpan
	Ceiling       HeightSpan

	heights      NeighbourHeights
	heightsKnown bool
}

// TriggerAnalysis holds every trigger of a level and the sectors they move.
type TriggerAnalysis struct {
	Triggers   []Trigger
	Dynamic    map[int]*DynamicSector
	NumObjects int
}

// AnalyzeTriggers translates linedef specials into triggers using meta.
func AnalyzeTriggers(level *Level, meta *Metadata) (*TriggerAnalysis, error) {
	ta := &TriggerAnalysis{Dynamic: make(map[int]*DynamicSector), NumObjects: 1}
	for i := range level.Linedefs {
		ld := &level.Linedefs[i]
		def, ok := meta.TriggerFor(ld.Special)
		if !ok {
			continue
		}
		v1, err := level.VertexPos(ld.V1)
		if err != nil {
			return nil, errors.WithMessagef(err, "linedef %v", i)
		}
		v2, err := level.VertexPos(ld.V2)
		if err != nil {
			return nil, errors.WithMessagef(err, "linedef %v", i)
		}
		trigger := Trigger{TriggerDef: def, Linedef: i, V1: v1, V2: v2}

		if ld.Tag == 0 {
			side, err := level.LinedefSide(ld, true)
			if err != nil {
				return nil, errors.WithMessagef(err, "linedef %v", i)
			}
			if side != nil {
				sector, err := level.SidedefSector(side)
				if err != nil {
					return nil, errors.WithMessagef(err, "linedef %v", i)
				}
				logger.Debugf("Sector %v with zero tag is dynamic, required by manual linedef %v", sector, i)
				trigger.Targets = append(trigger.Targets, sector)
			}
		} else {
			trigger.Targets = level.TaggedSectors(ld.Tag)
			if len(trigger.Targets) == 0 {
				logger.Warningf("No sector with the tag %v, required by linedef %v", ld.Tag, i)
			}
		}
		for _, sector := range trigger.Targets {
			ta.update(level, sector, &trigger)
		}
		ta.Triggers = append(ta.Triggers, trigger)
	}
	logger.Infof("Found %v triggers moving %v dynamic objects", len(ta.Triggers), ta.NumObjects-1)
	return ta, nil
}

func (ta *TriggerAnalysis) update(level *Level, id int, trigger *Trigger) {
	move := trigger.Move
	if move == nil {
		return
	}
	dyn, ok := ta.Dynamic[id]
	if !ok {
		dyn = &DynamicSector{}
		ta.Dynamic[id] = dyn
	}
	sector := &level.Sectors[id]
	if !dyn.heightsKnown {
		h, ok := level.NeighbourHeights(id)
		if !ok {
			logger.Errorf("Sector %v has no neighbours, cannot compute its open height", id)
			return
		}
		dyn.heights, dyn.heightsKnown = h, true
	}

	floors := move.Floor.heights(sector, &dyn.heights)
	ceilings := move.Ceiling.heights(sector, &dyn.heights)
	dyn.Floor.merge(sector.FloorHeight, floors)
	dyn.Ceiling.merge(sector.CeilingHeight, ceilings)
	if dyn.Ceiling.Valid && dyn.CeilingObject == 0 {
		dyn.CeilingObject = ta.NumObjects
		ta.NumObjects++
	}
	if dyn.Floor.Valid && dyn.FloorObject == 0 {
		dyn.FloorObject = ta.NumObjects
		ta.NumObjects++
	}

	if len(floors) > 0 {
		trigger.Moves = append(trigger.Moves, moveEffect(id, dyn.FloorObject, false, sector.FloorHeight, floors, move.Repeat))
	}
	if len(ceilings) > 0 {
		trigger.Moves = append(trigger.Moves, moveEffect(id, dyn.CeilingObject, true, sector.CeilingHeight, ceilings, move.Repeat))
	}
}

func moveEffect(sector, object int, ceiling bool, base int16, stops []int16, repeat bool) MoveEffect {
	m := MoveEffect{
		Sector:      sector,
		Object:      object,
		Ceiling:     ceiling,
		FirstOffset: FromWadHeight(stops[0] - base),
		Repeat:      repeat,
	}
	if len(stops) > 1 {
		m.SecondOffset, m.HasSecond = FromWadHeight(stops[1]-base), true
	}
	return m
}

// floorObject returns the object id of a sector's floor, 0 if it never moves.
func (ta *TriggerAnalysis) floorObject(id int) int {
	if dyn, ok := ta.Dynamic[id]; ok {
		return dyn.FloorObject
	}
	return 0
}

func (ta *TriggerAnalysis) ceilingObject(id int) int {
	if dyn, ok := ta.Dynamic[id]; ok {
		return dyn.CeilingObject
	}
	return 0
}

// ranges returns the floor and ceiling spans of a sector, which for a static sector are
// just its heights.
func (ta *TriggerAnalysis) ranges(level *Level, id int) (floor, ceiling HeightSpan) {
	s := &level.Sectors[id]
	floor = HeightSpan{Lo: s.FloorHeight, Hi: s.FloorHeight, Valid: true}
	ceiling = HeightSpan{Lo: s.CeilingHeight, Hi: s.CeilingHeight, Valid: true}
	if dyn, ok := ta.Dynamic[id]; ok {
		if dyn.Floor.Valid {
			floor = dyn.Floor
		}
		if dyn.Ceiling.Valid {
			ceiling = dyn.Ceiling
		}
	}
	return floor, ceiling
}
