package wad

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

func encodePatchNames(names ...string) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(names)))
	for _, n := range names {
		name := name8(n)
		buf.Write(name[:])
	}
	return buf.Bytes()
}

func encodeTextureDefs(defs ...TextureDef) []byte {
	var body bytes.Buffer
	offsets := make([]uint32, len(defs))
	base := 4 + 4*len(defs)
	for i, def := range defs {
		offsets[i] = uint32(base + body.Len())
		header := binTextureHeader{
			TextureName: name8(def.Name.String()),
			Width:       int16(def.Width),
			Height:      int16(def.Height),
			NumPatches:  int16(len(def.Patches)),
		}
		if def.Masked {
			header.Masked = 1
		}
		binary.Write(&body, binary.LittleEndian, header)
		for _, p := range def.Patches {
			binary.Write(&body, binary.LittleEndian, binPatch{
				XOffset: int16(p.OriginX), YOffset: int16(p.OriginY), PatchNameIdx: int16(p.Patch),
			})
		}
	}
	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint32(len(defs)))
	binary.Write(&out, binary.LittleEndian, offsets)
	out.Write(body.Bytes())
	return out.Bytes()
}

// textureWad has two patches, WALL00 (solid) and WALL01 (checkered), and PNAMES naming a
// third, WALL02, that is absent. Textures: GOOD uses both present patches, BROKEN uses the
// absent one.
func textureWad() *wadBuilder {
	palette := make([]byte, 768*2)
	for i := 0; i < 256; i++ {
		palette[i*3], palette[i*3+1], palette[i*3+2] = byte(i), byte(255-i), 7
	}
	colormaps := make([]byte, 256*NumLightColorMaps)
	for m := 0; m < NumLightColorMaps; m++ {
		for i := 0; i < 256; i++ {
			colormaps[m*256+i] = byte(i / (m + 1))
		}
	}
	flat := make([]byte, FlatWidth*FlatHeight)
	for i := range flat {
		flat[i] = byte(i)
	}

	return newWadBuilder().
		add("PLAYPAL", palette).
		add("COLORMAP", colormaps).
		add("PNAMES", encodePatchNames("WALL00", "WALL01", "WALL02")).
		add("TEXTURE1", encodeTextureDefs(
			TextureDef{Name: MustName("GOOD"), Width: 8, Height: 8, Patches: []PatchRef{
				{OriginX: 0, OriginY: 0, Patch: 0},
				{OriginX: 4, OriginY: -3, Patch: 1},
			}},
			TextureDef{Name: MustName("BROKEN"), Width: 8, Height: 8, Patches: []PatchRef{
				{OriginX: 0, OriginY: 0, Patch: 2},
			}},
		)).
		add("WALL00", encodePicture(solidPicture("WALL00", 8, 8, 3))).
		add("WALL01", encodePicture(checkerPicture("WALL01", 4, 4))).
		add("F_START", nil).
		add("FLAT1", flat).
		add("F_END", nil).
		add("S_START", nil).
		add("TROOA1", encodePicture(solidPicture("TROOA1", 4, 6, 2))).
		add("TROOA2A8", encodePicture(checkerPicture("TROOA2A8", 4, 6))).
		add("S_END", nil)
}

func TestTextureDirectory(t *testing.T) {
	d, err := NewTextureDirectory(textureWad().open(t))
	if err != nil {
		t.Fatalf("NewTextureDirectory() error: %v", err)
	}
	if len(d.Palettes()) != 2 || len(d.ColorMaps()) != NumLightColorMaps {
		t.Errorf("%v palettes, %v colormaps", len(d.Palettes()), len(d.ColorMaps()))
	}
	if d.NumPatches() != 3 {
		t.Errorf("NumPatches() = %v, want 3", d.NumPatches())
	}
	if _, ok := d.Patch(2); ok {
		t.Error("Patch(2) is present")
	}

	// Present patches compose.
	good, ok := d.Texture(MustName("GOOD"))
	if !ok {
		t.Fatal("texture GOOD missing")
	}
	checker := checkerPicture("", 4, 4)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			want := byte(3)
			// The negative y origin is treated as 0.
			if v, ok := checker.At(x-4, y); ok {
				want = v
			}
			if v, ok := good.At(x, y); !ok || v != want {
				t.Errorf("GOOD at %v, %v = %v, %v, want %v", x, y, v, ok, want)
			}
		}
	}
	if sz, ok := d.TextureSize(MustName("GOOD")); !ok || sz.X != 8 || sz.Y != 8 {
		t.Errorf("TextureSize(GOOD) = %v, %v", sz, ok)
	}

	// An absent patch skips the texture and records the failure.
	if _, ok := d.Texture(MustName("BROKEN")); ok {
		t.Error("texture BROKEN composed without its patch")
	}
	if len(d.Failures()) != 1 {
		t.Fatalf("Failures() = %v, want one", d.Failures())
	}
	err = d.Failures()[0]
	var e *Error
	if !errors.Is(err, ErrMissingPatch) || !errors.As(err, &e) || e.Kind != KindBadImage || e.Name != "BROKEN" {
		t.Errorf("failure = %v, want a missing patch in BROKEN", err)
	}
	if names := d.TextureNames(); len(names) != 1 || names[0].String() != "GOOD" {
		t.Errorf("TextureNames() = %v", names)
	}
	if len(d.TextureDefs()) != 2 {
		t.Errorf("TextureDefs() = %v definitions, want 2", len(d.TextureDefs()))
	}

	f, ok := d.Flat(MustName("FLAT1"))
	if !ok || len(f.Data) != FlatWidth*FlatHeight || f.Data[65] != 65 {
		t.Fatalf("Flat(FLAT1) = %v", ok)
	}
	if fp := f.Picture(); fp.Width != 64 || !fp.Opaque[100] {
		t.Errorf("flat picture = %vx%v", fp.Width, fp.Height)
	}

	// Sprites with two rotations are registered under both, mirrored for the second.
	for _, name := range []string{"TROOA1", "TROOA2", "TROOA8", "TROOA2A8"} {
		if _, ok := d.Sprite(MustName(name)); !ok {
			t.Errorf("sprite %v missing", name)
		}
	}
	a2, _ := d.Sprite(MustName("TROOA2"))
	a8, _ := d.Sprite(MustName("TROOA8"))
	v2, ok2 := a2.At(1, 1)
	v8, ok8 := a8.At(2, 1)
	if !ok2 || !ok8 || v2 != v8 {
		t.Errorf("TROOA8 at 2, 1 = %v, %v, want TROOA2 at 1, 1 = %v, %v", v8, ok8, v2, ok2)
	}
	if sz, ok := d.SpriteSize(MustName("TROOA1")); !ok || sz.X != 4 || sz.Y != 6 {
		t.Errorf("SpriteSize(TROOA1) = %v, %v", sz, ok)
	}
}

func TestTextureDirectoryFatal(t *testing.T) {
	for _, drop := range []string{"PLAYPAL", "COLORMAP", "PNAMES"} {
		b := textureWad()
		for i, l := range b.lumps {
			if l.name == drop {
				b.lumps = append(b.lumps[:i], b.lumps[i+1:]...)
				break
			}
		}
		_, err := NewTextureDirectory(b.open(t))
		if !errors.Is(err, ErrMissingEntry) {
			t.Errorf("without %v: NewTextureDirectory() = %v, want %v", drop, err, ErrMissingEntry)
		}
	}

	b := textureWad()
	for i, l := range b.lumps {
		if l.name == "TEXTURE1" {
			b.lumps[i].data = l.data[:10]
		}
	}
	_, err := NewTextureDirectory(b.open(t))
	if KindOf(err) != KindCorruptArchive {
		t.Errorf("truncated TEXTURE1: NewTextureDirectory() = %v, want a corrupt archive", err)
	}
}

func TestComposeTexture(t *testing.T) {
	def := &TextureDef{Name: MustName("T"), Width: 4, Height: 2, Patches: []PatchRef{{Patch: 0}, {OriginX: 2, Patch: 1}}}
	pic, err := ComposeTexture(def, []*Picture{solidPicture("A", 4, 2, 1), checkerPicture("B", 2, 2)})
	if err != nil {
		t.Fatal(err)
	}
	// Transparent pixels of the second patch leave the first visible.
	want := []byte{1, 1, 0, 1, 1, 1, 1, 17}
	if !bytes.Equal(pic.Pixels, want) {
		t.Errorf("ComposeTexture() = %v, want %v", pic.Pixels, want)
	}

	if _, err := ComposeTexture(def, []*Picture{solidPicture("A", 4, 2, 1)}); !errors.Is(err, ErrMissingPatch) {
		t.Errorf("ComposeTexture(missing) = %v, want %v", err, ErrMissingPatch)
	}
	big := &TextureDef{Name: MustName("BIG"), Width: MaxImageSize + 1, Height: 1}
	if _, err := ComposeTexture(big, nil); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("ComposeTexture(big) = %v, want %v", err, ErrImageTooLarge)
	}
}

func TestShade(t *testing.T) {
	d, err := NewTextureDirectory(textureWad().open(t))
	if err != nil {
		t.Fatal(err)
	}
	if c := d.Color(200, 0); c.R != 200 || c.G != 55 || c.B != 7 || c.A != 255 {
		t.Errorf("Color(200, 0) = %v", c)
	}
	if c := d.Shade(200, 1); c != d.Color(200, 0) {
		t.Errorf("Shade(200, 1) = %v, want colormap 0", c)
	}
	if c := d.Shade(200, 0); c != d.Color(200, NumLightColorMaps-1) {
		t.Errorf("Shade(200, 0) = %v, want the darkest colormap", c)
	}
	if c := d.Color(200, 1000); c != d.Color(200, NumLightColorMaps-1) {
		t.Errorf("Color(200, 1000) = %v, not clamped", c)
	}
	if got := d.MappedPalette(0, 0, 1); len(got) != 2*256*3 || got[3*200] != 200 || got[256*3+3*200] != 100 {
		t.Errorf("MappedPalette(0, 0, 1) has %v bytes", len(got))
	}
}
