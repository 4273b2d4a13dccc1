package wad

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// LightInfo is the brightness of a sector: a base level in [0, 1] and an optional animated
// effect. It is derived once per level load.
type LightInfo struct {
	Level  float32
	Effect *LightEffect
}

// LightEffect alternates a sector's brightness between its own level and AltLevel.
type LightEffect struct {
	AltLevel float32
	Speed    float32
	Duration float32
	Sync     float32
	Kind     LightEffectKind
}

type LightEffectKind int

const (
	Glow LightEffectKind = iota
	Random
	Alternate
)

func (k LightEffectKind) String() string {
	switch k {
	case Glow:
		return "glow"
	case Random:
		return "random"
	case Alternate:
		return "alternate"
	}
	return "unknown"
}

type Contrast int

const (
	Darken Contrast = iota
	Brighten
)

const (
	flashSpeed         = 20
	flashDuration      = 0.06
	flickerSpeed       = 8
	flickerDuration    = 0.5
	slowStrobeSpeed    = 1
	slowStrobeDuration = 0.85
	fastStrobeSpeed    = 2
	fastStrobeDuration = 0.7
	glowSpeed          = 0.5

	contrastStep = 2.0 / 31
	syncPhase    = 3.5435
	lightEpsilon = 1.1920929e-07
)

// NewLightInfo derives the light of a sector from its level and type.
func NewLightInfo(level *Level, sector int) (LightInfo, error) {
	if sector < 0 || sector >= len(level.Sectors) {
		return LightInfo{}, level.badRef("sector %v of %v", sector, len(level.Sectors))
	}
	s := &level.Sectors[sector]
	info := LightInfo{Level: quantizeLight(s.LightLevel)}

	var kind LightEffectKind
	var speed, duration float32
	switch s.Type {
	case TypeBlinkRandom:
		kind, speed, duration = Random, flashSpeed, flashDuration
	case TypeFlickerRandom:
		kind, speed, duration = Random, flickerSpeed, flickerDuration
	case TypeBlink10, TypeBlink10Sync:
		kind, speed, duration = Alternate, slowStrobeSpeed, slowStrobeDuration
	case TypeBlink05, TypeDamage20Blink05, TypeBlink05Sync:
		kind, speed, duration = Alternate, fastStrobeSpeed, fastStrobeDuration
	case TypeOscillate:
		kind, speed = Glow, glowSpeed
	default:
		return info, nil
	}

	alt := quantizeLight(level.SectorMinLight(sector))
	if math32.Abs(alt-info.Level) < lightEpsilon {
		return info, nil
	}
	var sync float32
	switch s.Type {
	case TypeBlink10Sync, TypeBlink05Sync, TypeOscillate:
	default:
		sync = idToSync(sector)
	}
	info.Effect = &LightEffect{AltLevel: alt, Speed: speed, Duration: duration, Sync: sync, Kind: kind}
	return info, nil
}

// quantizeLight maps a 0-255 light level onto 32 steps in [0, 1]. Levels outside 0-255
// are clamped.
func quantizeLight(light int16) float32 {
	return float32(clamp(light, 0, 255)>>3) / 31
}

// idToSync derives a stable phase from a sector index.
func idToSync(id int) float32 {
	return float32((uint64(id)*1664525+1013904223)&0xffff) / 15
}

// WithContrast shifts the base level one step for directional wall shading.
func (li LightInfo) WithContrast(c Contrast) LightInfo {
	step := float32(contrastStep)
	if c == Darken {
		step = -step
	}
	li.Level = clamp(li.Level+step, 0, 1)
	return li
}

// At returns the brightness at time t, in seconds. The result depends only on li and t.
func (li LightInfo) At(t float32) float32 {
	e := li.Effect
	if e == nil {
		return li.Level
	}
	switch e.Kind {
	case Glow:
		scale := li.Level - e.AltLevel
		phase := t * e.Speed / scale
		v := math32.Abs(0.5-fract(phase))*2*scale + e.AltLevel
		return clamp(v, min(li.Level, e.AltLevel), max(li.Level, e.AltLevel))
	case Random:
		if noise(e.Sync, math32.Floor(t*e.Speed)) < e.Duration {
			return e.AltLevel
		}
		return li.Level
	case Alternate:
		if fract(t*e.Speed+e.Sync*syncPhase) < e.Duration {
			return e.AltLevel
		}
		return li.Level
	}
	return li.Level
}

func fract(x float32) float32 {
	return x - math32.Floor(x)
}

func noise(sync, t float32) float32 {
	return fract(1 + math32.Sin((sync+t/1000)*12.9898+sync*78.233)*43758.547)
}

// LightTable holds the light of every sector of a level, indexed by sector.
type LightTable []LightInfo

// NewLightTable derives the light of every sector.
func NewLightTable(level *Level) (LightTable, error) {
	table := make(LightTable, len(level.Sectors))
	for i := range level.Sectors {
		info, err := NewLightInfo(level, i)
		if err != nil {
			return nil, errors.Wrapf(err, "sector %v", i)
		}
		table[i] = info
	}
	return table, nil
}

// Fill writes the brightness of each sector at time t as a byte, reusing buf.
func (lt LightTable) Fill(t float32, buf []byte) []byte {
	buf = buf[:0]
	for _, info := range lt {
		buf = append(buf, byte(clamp(info.At(t), 0, 1)*255))
	}
	return buf
}
