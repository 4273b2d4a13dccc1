package wad

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
)

func TestDefaultMetadata(t *testing.T) {
	m, err := DefaultMetadata()
	if err != nil {
		t.Fatalf("DefaultMetadata() error: %v", err)
	}
	for level, want := range map[string]string{"E1M1": "SKY1", "E3M9": "SKY3", "MAP15": "SKY2", "MAP31": "SKY3"} {
		sky, ok := m.SkyFor(level)
		if !ok || sky.TextureName.String() != want {
			t.Errorf("SkyFor(%v) = %v, want %v", level, sky, want)
		}
	}
	if sky, ok := m.SkyFor("NOTALEVEL"); !ok || sky != &m.Sky[0] {
		t.Errorf("SkyFor(NOTALEVEL) = %v, %v, want the first sky", sky, ok)
	}
	thing, ok := m.FindThing(2028)
	if !ok || thing.Sprite != "COLU" || !thing.Obstacle {
		t.Errorf("FindThing(2028) = %+v, %v", thing, ok)
	}
	if _, ok := m.FindThing(1); ok {
		t.Error("FindThing(1) found player start metadata")
	}
	if rate := m.ScrollRate(48); rate != 35 {
		t.Errorf("ScrollRate(48) = %v, want 35", rate)
	}
	frames, ok := m.WallAnimation(MustName("SLADRIP2"))
	if !ok || len(frames) != 3 || frames[0].String() != "SLADRIP1" {
		t.Errorf("WallAnimation(SLADRIP2) = %v, %v", frames, ok)
	}
	if _, ok := m.FlatAnimation(MustName("FLOOR4_8")); ok {
		t.Error("FlatAnimation(FLOOR4_8) is animated")
	}
}

const testMetadata = `
sky:
  - {level_pattern: "^TEST$", texture_name: SKY9, tiled_band_size: 0.1, scroll_rate: 2}
animations:
  flats: [[A1, A2]]
  walls: []
scrolling: []
things:
  decorations:
    - {thing_type: 5000, sprite: ABCD, sequence: AB, radius: 8}
triggers:
  walk: [1-3]
  once: [2]
  moves:
    - name: lift
      specials: [1-3]
      floor:
        first: {ref: lowest_floor}
        second: {ref: floor}
      repeat: true
`

func TestParseMetadata(t *testing.T) {
	m, err := ParseMetadata([]byte(testMetadata))
	if err != nil {
		t.Fatalf("ParseMetadata() error: %v", err)
	}
	if sky, ok := m.SkyFor("TEST"); !ok || sky.TextureName.String() != "SKY9" || sky.ScrollRate != 2 {
		t.Errorf("SkyFor(TEST) = %+v", sky)
	}
	def, ok := m.TriggerFor(2)
	if !ok || def.Kind != TriggerWalkOver || !def.OnlyOnce || def.Move == nil || !def.Move.Repeat {
		t.Fatalf("TriggerFor(2) = %+v, %v", def, ok)
	}
	if f := def.Move.Floor; f == nil || f.First.Ref != LowestFloor || f.Second == nil || f.Second.Ref != Floor {
		t.Errorf("floor move = %+v", def.Move.Floor)
	}
	if def, _ := m.TriggerFor(3); def.OnlyOnce {
		t.Error("TriggerFor(3) is once")
	}
}

func TestMetadataErrors(t *testing.T) {
	for _, tt := range []struct {
		name string
		text string
		kind ErrorKind
	}{
		{"syntax", "sky: [", KindMetadataSyntax},
		{"unknown field", "colours: 3", KindMetadataSchema},
		{"type mismatch", "scrolling: {special: 1}", KindMetadataSchema},
		{"bad name", `sky: [{level_pattern: "x", texture_name: "FAR TOO LONG"}]`, KindMetadataSchema},
		{"bad pattern", `sky: [{level_pattern: "(", texture_name: SKY1}]`, KindMetadataSchema},
		{"bad ref", "triggers: {moves: [{name: x, specials: [1], floor: {first: {ref: sideways}}}]}", KindMetadataSchema},
		{"empty range", "triggers: {walk: [5-3]}", KindMetadataSchema},
		{"two kinds", "triggers: {walk: [1], gun: [1]}", KindMetadataSchema},
		{"duplicate thing", "things: {keys: [{thing_type: 5, sprite: BKEY, sequence: A}], ammo: [{thing_type: 5, sprite: CLIP, sequence: A}]}", KindMetadataSchema},
		{"no sequence", "things: {keys: [{thing_type: 5, sprite: BKEY}]}", KindMetadataSchema},
		{"empty", "", KindMetadataSchema},
	} {
		_, err := ParseMetadata([]byte(tt.text))
		if got := KindOf(err); got != tt.kind {
			t.Errorf("%v: ParseMetadata() = %v (%v), want %v", tt.name, err, got, tt.kind)
		}
	}
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "game.yaml")
	if err := os.WriteFile(path, []byte(testMetadata), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadMetadata(path); err != nil {
		t.Errorf("LoadMetadata(%v) error: %v", path, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("sky: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadMetadata(bad)
	var e *Error
	if !errors.As(err, &e) || e.Kind != KindMetadataSyntax || e.Path != bad {
		t.Errorf("LoadMetadata(bad) = %v, want a syntax error carrying the path", err)
	}

	if _, err := LoadMetadata(filepath.Join(dir, "missing.yaml")); KindOf(err) != KindIO {
		t.Errorf("LoadMetadata(missing) = %v, want an i/o error", err)
	}
}
