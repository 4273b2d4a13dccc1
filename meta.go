package wad

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed doom.yaml
var doomMetadata []byte

// Metadata is the companion description of a game that the WAD itself does not carry: which
// sky goes with which level, animated textures, what each thing type looks like, and what
// each linedef special does.
type Metadata struct {
	Sky        []SkyMetadata          `yaml:"sky"`
	Animations AnimationMetadata      `yaml:"animations"`
	Scrolling  []ScrollMetadata       `yaml:"scrolling"`
	Things     ThingDirectoryMetadata `yaml:"things"`
	Triggers   TriggerMetadata        `yaml:"triggers"`

	scroll     map[uint16]float32
	things     map[uint16]*ThingMetadata
	kinds      map[uint16]TriggerKind
	moves      map[uint16]*MoveEffectDef
	exits      map[uint16]ExitEffect
	once       map[uint16]bool
	waits      map[uint16]float32
	speeds     map[uint16]float32
	wallFrames map[LumpName][]LumpName
	flatFrames map[LumpName][]LumpName
}

type SkyMetadata struct {
	LevelPattern  Pattern  `yaml:"level_pattern"`
	TextureName   LumpName `yaml:"texture_name"`
	TiledBandSize float32  `yaml:"tiled_band_size"`
	ScrollRate    float32  `yaml:"scroll_rate"`
}

// AnimationMetadata lists groups of textures that cycle through each other.
type AnimationMetadata struct {
	Flats [][]LumpName `yaml:"flats"`
	Walls [][]LumpName `yaml:"walls"`
}

type ScrollMetadata struct {
	Special uint16  `yaml:"special"`
	Rate    float32 `yaml:"rate"`
}

type ThingMetadata struct {
	ThingType uint16 `yaml:"thing_type"`
	Sprite    string `yaml:"sprite"`
	Sequence  string `yaml:"sequence"`
	Hanging   bool   `yaml:"hanging"`
	Obstacle  bool   `yaml:"obstacle"`
	Radius    uint32 `yaml:"radius"`
}

type ThingDirectoryMetadata struct {
	Decorations []ThingMetadata `yaml:"decorations"`
	Weapons     []ThingMetadata `yaml:"weapons"`
	Powerups    []ThingMetadata `yaml:"powerups"`
	Artifacts   []ThingMetadata `yaml:"artifacts"`
	Ammo        []ThingMetadata `yaml:"ammo"`
	Keys        []ThingMetadata `yaml:"keys"`
	Monsters    []ThingMetadata `yaml:"monsters"`
}

// TriggerMetadata maps linedef specials to trigger properties. Each table is independent;
// a special is a trigger when it has a kind and either a move or an exit.
type TriggerMetadata struct {
	Gun    SpecialSet `yaml:"gun"`
	Push   SpecialSet `yaml:"push"`
	Switch SpecialSet `yaml:"switch"`
	Walk   SpecialSet `yaml:"walk"`
	Once   SpecialSet `yaml:"once"`
	Exits  struct {
		Normal SpecialSet `yaml:"normal"`
		Secret SpecialSet `yaml:"secret"`
	} `yaml:"exits"`
	Waits  []SpecialValue `yaml:"waits"`
	Speeds []SpecialValue `yaml:"speeds"`
	Moves  []MoveMetadata `yaml:"moves"`
}

type SpecialValue struct {
	Specials SpecialSet `yaml:"specials"`
	Value    float32    `yaml:"value"`
}

type MoveMetadata struct {
	Name          string     `yaml:"name"`
	Specials      SpecialSet `yaml:"specials"`
	MoveEffectDef `yaml:",inline"`
}

// SpecialSet is a list of linedef specials. In YAML, entries are numbers or "first-last"
// ranges.
type SpecialSet []uint16

// Pattern is a regular expression read from a YAML string.
type Pattern struct {
	*regexp.Regexp
}

// LoadMetadata reads metadata from path. An empty path returns the built in Doom metadata.
func LoadMetadata(path string) (*Metadata, error) {
	if path == "" {
		return DefaultMetadata()
	}
	logger.Infof("Loading metadata %v", path)
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, withPath(ioError(err, "read metadata"), path)
	}
	m, err := ParseMetadata(text)
	if err != nil {
		return nil, withPath(err, path)
	}
	return m, nil
}

var defaultMetadata = sync.OnceValues(func() (*Metadata, error) {
	return ParseMetadata(doomMetadata)
})

// DefaultMetadata returns the built in metadata for Doom, Ultimate Doom and Doom II.
func DefaultMetadata() (*Metadata, error) {
	return defaultMetadata()
}

// ParseMetadata decodes YAML metadata. Malformed YAML is a KindMetadataSyntax error; well
// formed YAML that does not fit the schema is a KindMetadataSchema error.
func ParseMetadata(text []byte) (*Metadata, error) {
	dec := yaml.NewDecoder(bytes.NewReader(text))
	dec.KnownFields(true)
	var m Metadata
	if err := dec.Decode(&m); err != nil {
		return nil, classifyMetadataError(err)
	}
	if err := m.index(); err != nil {
		return nil, err
	}
	return &m, nil
}

func classifyMetadataError(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, io.EOF) {
		return &Error{Kind: KindMetadataSchema, Err: errors.New("empty metadata")}
	}
	var te *yaml.TypeError
	if errors.As(err, &te) {
		return &Error{Kind: KindMetadataSchema, Err: err}
	}
	return &Error{Kind: KindMetadataSyntax, Err: err}
}

func schemaError(format string, args ...any) error {
	return &Error{Kind: KindMetadataSchema, Err: errors.Errorf(format, args...)}
}

func nodeError(n *yaml.Node, format string, args ...any) error {
	return &Error{Kind: KindMetadataSchema, Err: errors.Errorf("line %v: %v", n.Line, errors.Errorf(format, args...))}
}

// UnmarshalYAML reads a name from a string, validating it.
func (n *LumpName) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	name, err := EncodeName(s)
	if err != nil {
		return nodeError(value, "%v", err)
	}
	*n = name
	return nil
}

func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return nodeError(value, "level pattern: %v", err)
	}
	p.Regexp = re
	return nil
}

func (s *SpecialSet) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.SequenceNode {
		return nodeError(value, "specials must be a list")
	}
	var set SpecialSet
	for _, item := range value.Content {
		if item.Kind != yaml.ScalarNode {
			return nodeError(item, "special must be a number or a range")
		}
		first, last, found := strings.Cut(item.Value, "-")
		lo, err := parseSpecial(item, first)
		if err != nil {
			return err
		}
		hi := lo
		if found {
			if hi, err = parseSpecial(item, last); err != nil {
				return err
			}
			if hi < lo {
				return nodeError(item, "empty range %q", item.Value)
			}
		}
		for sp := uint32(lo); sp <= uint32(hi); sp++ {
			set = append(set, uint16(sp))
		}
	}
	*s = set
	return nil
}

func parseSpecial(n *yaml.Node, s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, nodeError(n, "bad special %q", n.Value)
	}
	return uint16(v), nil
}

// index validates cross field constraints and builds the lookup tables.
func (m *Metadata) index() error {
	m.scroll = make(map[uint16]float32)
	for _, s := range m.Scrolling {
		if _, ok := m.scroll[s.Special]; ok {
			return schemaError("scrolling special %v listed twice", s.Special)
		}
		m.scroll[s.Special] = s.Rate
	}

	m.things = make(map[uint16]*ThingMetadata)
	for _, list := range m.Things.lists() {
		for i := range list {
			t := &list[i]
			if _, ok := m.things[t.ThingType]; ok {
				return schemaError("thing type %v listed twice", t.ThingType)
			}
			if t.Sequence == "" {
				return schemaError("thing type %v has no sequence", t.ThingType)
			}
			// The sprite name gets a frame and a rotation character appended.
			if len(t.Sprite) == 0 || len(t.Sprite) > 6 {
				return schemaError("thing type %v: bad sprite %q", t.ThingType, t.Sprite)
			}
			if _, err := EncodeName(t.Sprite + t.Sequence[:1]); err != nil {
				return schemaError("thing type %v: %v", t.ThingType, err)
			}
			m.things[t.ThingType] = t
		}
	}

	tr := &m.Triggers
	m.kinds = make(map[uint16]TriggerKind)
	for kind, set := range map[TriggerKind]SpecialSet{
		TriggerGun: tr.Gun, TriggerPush: tr.Push, TriggerSwitch: tr.Switch, TriggerWalkOver: tr.Walk,
	} {
		for _, sp := range set {
			if other, ok := m.kinds[sp]; ok {
				return schemaError("special %v is both %v and %v", sp, other, kind)
			}
			m.kinds[sp] = kind
		}
	}
	m.once = make(map[uint16]bool)
	for _, sp := range tr.Once {
		m.once[sp] = true
	}
	m.exits = make(map[uint16]ExitEffect)
	for exit, set := range map[ExitEffect]SpecialSet{ExitNormal: tr.Exits.Normal, ExitSecret: tr.Exits.Secret} {
		for _, sp := range set {
			if _, ok := m.exits[sp]; ok {
				return schemaError("special %v has two exits", sp)
			}
			m.exits[sp] = exit
		}
	}
	var err error
	if m.waits, err = indexValues("waits", tr.Waits); err != nil {
		return err
	}
	if m.speeds, err = indexValues("speeds", tr.Speeds); err != nil {
		return err
	}
	m.moves = make(map[uint16]*MoveEffectDef)
	for i := range tr.Moves {
		mv := &tr.Moves[i]
		if mv.Floor == nil && mv.Ceiling == nil {
			return schemaError("move %q moves nothing", mv.Name)
		}
		for _, sp := range mv.Specials {
			if _, ok := m.moves[sp]; ok {
				return schemaError("special %v has two moves", sp)
			}
			m.moves[sp] = &mv.MoveEffectDef
		}
	}

	m.wallFrames = indexAnimations(m.Animations.Walls)
	m.flatFrames = indexAnimations(m.Animations.Flats)
	return nil
}

func (d *ThingDirectoryMetadata) lists() [][]ThingMetadata {
	return [][]ThingMetadata{d.Decorations, d.Weapons, d.Powerups, d.Artifacts, d.Ammo, d.Keys, d.Monsters}
}

func indexValues(table string, values []SpecialValue) (map[uint16]float32, error) {
	index := make(map[uint16]float32)
	for _, v := range values {
		for _, sp := range v.Specials {
			if _, ok := index[sp]; ok {
				return nil, schemaError("%v: special %v listed twice", table, sp)
			}
			index[sp] = v.Value
		}
	}
	return index, nil
}

func indexAnimations(groups [][]LumpName) map[LumpName][]LumpName {
	index := make(map[LumpName][]LumpName)
	for _, frames := range groups {
		for _, name := range frames {
			index[name] = frames
		}
	}
	return index
}

// SkyFor returns the sky for a level. A level matching no pattern gets the first sky.
func (m *Metadata) SkyFor(level string) (*SkyMetadata, bool) {
	for i := range m.Sky {
		if m.Sky[i].LevelPattern.Regexp != nil && m.Sky[i].LevelPattern.MatchString(level) {
			return &m.Sky[i], true
		}
	}
	if len(m.Sky) == 0 {
		logger.Errorf("No sky metadata provided")
		return nil, false
	}
	logger.Warningf("No sky found for level %v, using %v", level, m.Sky[0].TextureName)
	return &m.Sky[0], true
}

// FindThing looks a thing type up in every category.
func (m *Metadata) FindThing(thingType uint16) (*ThingMetadata, bool) {
	t, ok := m.things[thingType]
	return t, ok
}

// ScrollRate returns the texture scroll rate for walls with the given special, or 0.
func (m *Metadata) ScrollRate(special uint16) float32 {
	return m.scroll[special]
}

// WallAnimation returns the frames of the animation a wall texture belongs to.
func (m *Metadata) WallAnimation(name LumpName) ([]LumpName, bool) {
	frames, ok := m.wallFrames[name]
	return frames, ok
}

// FlatAnimation returns the frames of the animation a flat belongs to.
func (m *Metadata) FlatAnimation(name LumpName) ([]LumpName, bool) {
	frames, ok := m.flatFrames[name]
	return frames, ok
}

// TriggerFor describes what a linedef special does. ok is false for specials that are not
// triggers, or whose effect is not modelled.
func (m *Metadata) TriggerFor(special uint16) (def TriggerDef, ok bool) {
	kind, ok := m.kinds[special]
	if !ok {
		return def, false
	}
	move := m.moves[special]
	exit := m.exits[special]
	if move == nil && exit == ExitNone {
		return def, false
	}
	return TriggerDef{
		Special:  special,
		Kind:     kind,
		OnlyOnce: m.once[special],
		Wait:     m.waits[special],
		Speed:    m.speeds[special],
		Move:     move,
		Exit:     exit,
	}, true
}
