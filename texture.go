package wad

import (
	"bytes"
	"encoding/binary"
	"image"
	"sort"

	"github.com/pkg/errors"
)

// TextureDef is one wall texture definition from TEXTURE1 or TEXTURE2.
type TextureDef struct {
	Name          LumpName
	Masked        bool
	Width, Height int
	Patches       []PatchRef
}

// PatchRef places a patch, by its PNAMES index, in a texture.
type PatchRef struct {
	OriginX, OriginY int // relative to the upper left of the texture
	Patch            int
}

type binTextureHeader struct {
	TextureName [8]byte
	Masked      int32
	Width       int16
	Height      int16
	Unused      int32 // ColumnDirectory
	NumPatches  int16
}

type binPatch struct {
	XOffset      int16
	YOffset      int16
	PatchNameIdx int16
	Unused1      int16 // StepDir
	Unused2      int16 // ColorMap
}

// A flat is a raw 64x64 floor or ceiling image with no header.
type Flat struct {
	Name LumpName
	Data []byte
}

const FlatWidth, FlatHeight = 64, 64

// Picture returns the flat as a fully opaque picture.
func (f *Flat) Picture() *Picture {
	pic := &Picture{
		Name:   f.Name.String(),
		Width:  FlatWidth,
		Height: FlatHeight,
		Pixels: f.Data,
		Opaque: make([]bool, len(f.Data)),
	}
	for i := range pic.Opaque {
		pic.Opaque[i] = true
	}
	return pic
}

// TextureDirectory holds every image of an archive: patches, composed wall textures,
// flats and sprites, plus the palettes and colormaps to display them.
type TextureDirectory struct {
	meta         *Metadata
	palettes     []Palette
	colorMaps    []ColorMap
	patchNames   []LumpName
	patches      []*Picture // nil where missing or undecodable
	defs         []TextureDef
	textures     map[LumpName]*Picture
	textureNames []LumpName
	flats        map[LumpName]*Flat
	flatNames    []LumpName
	sprites      map[LumpName]*Picture
	spriteNames  []LumpName
	failures     []error
}

// NewTextureDirectory reads every image in a. A missing PLAYPAL, COLORMAP or PNAMES, or a
// malformed TEXTUREx, fails the whole directory. A single texture, flat or sprite that
// cannot be decoded is logged, skipped, and kept in Failures.
func NewTextureDirectory(a *Archive) (*TextureDirectory, error) {
	logger.Infof("Reading texture directory ...")
	d := &TextureDirectory{
		meta:     a.Metadata(),
		textures: make(map[LumpName]*Picture),
		flats:    make(map[LumpName]*Flat),
		sprites:  make(map[LumpName]*Picture),
	}
	var err error
	if d.palettes, err = readNamedRecords[Palette](a, "PLAYPAL"); err != nil {
		return nil, err
	}
	if d.colorMaps, err = readNamedRecords[ColorMap](a, "COLORMAP"); err != nil {
		return nil, err
	}
	logger.Infof("Read %v palettes, %v colormaps", len(d.palettes), len(d.colorMaps))

	if err := d.readPatches(a); err != nil {
		return nil, withPath(err, a.Path())
	}
	for _, lump := range []string{"TEXTURE1", "TEXTURE2"} {
		if _, ok := a.Lookup(lump); !ok {
			continue
		}
		data, err := a.ReadNamedLump(lump)
		if err != nil {
			return nil, withPath(err, a.Path())
		}
		defs, err := ParseTextureDefs(data)
		if err != nil {
			return nil, withPath(withName(err, lump), a.Path())
		}
		logger.Infof("Read %v texture definitions from %v", len(defs), lump)
		d.defs = append(d.defs, defs...)
	}
	d.composeTextures()
	if err := d.readFlats(a); err != nil {
		return nil, withPath(err, a.Path())
	}
	if err := d.readSprites(a); err != nil {
		return nil, withPath(err, a.Path())
	}
	logger.Infof("Loaded %v textures, %v flats, %v sprites; %v failed",
		len(d.textures), len(d.flats), len(d.sprites), len(d.failures))
	return d, nil
}

// readNamedRecords reads a required lump as an array of T.
func readNamedRecords[T any](a *Archive, name string) ([]T, error) {
	i, ok := a.Index(MustName(name))
	if !ok {
		return nil, withPath(&Error{Kind: KindCorruptArchive, Name: name, Err: ErrMissingEntry}, a.Path())
	}
	records, err := ReadRecords[T](a, i)
	if err != nil {
		return nil, withPath(err, a.Path())
	}
	if len(records) == 0 {
		return nil, withPath(withName(corrupt(ErrMissingEntry, "empty"), name), a.Path())
	}
	return records, nil
}

// readPatches reads PNAMES and decodes every patch it names.
func (d *TextureDirectory) readPatches(a *Archive) error {
	lump, err := a.ReadNamedLump("PNAMES")
	if err != nil {
		return err
	}
	names, err := ParsePatchNames(lump)
	if err != nil {
		return withName(err, "PNAMES")
	}
	d.patchNames = names
	d.patches = make([]*Picture, len(names))
	missing := 0
	for i, name := range names {
		lumpNum, ok := a.Index(name)
		if !ok {
			missing++
			continue
		}
		data, err := a.ReadLump(lumpNum)
		if err != nil {
			return err
		}
		pic, err := DecodePicture(name.String(), data)
		if err != nil {
			logger.Errorf("Skipping patch %v: %v", name, err)
			d.failures = append(d.failures, err)
			continue
		}
		d.patches[i] = pic
	}
	logger.Infof("Read %v patches, %v missing", len(names), missing)
	return nil
}

// ParsePatchNames decodes a PNAMES lump: a count followed by that many names.
func ParsePatchNames(lump []byte) ([]LumpName, error) {
	reader := bytes.NewReader(lump)
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return nil, corrupt(ErrBadEntry, "patch count: %v", err)
	}
	if int64(count) > int64(reader.Len())/8 {
		return nil, corrupt(ErrBadEntry, "%v patch names in %v bytes", count, reader.Len())
	}
	raw := make([][8]byte, count)
	if err := binary.Read(reader, binary.LittleEndian, raw); err != nil {
		return nil, corrupt(ErrBadEntry, "patch names: %v", err)
	}
	names := make([]LumpName, count)
	for i, r := range raw {
		name, err := DecodeName(r)
		if err != nil {
			return nil, corrupt(err, "patch name %v", i)
		}
		names[i] = name
	}
	return names, nil
}

// ParseTextureDefs decodes a TEXTURE1 or TEXTURE2 lump: a count, that many offsets, and at
// each offset a header followed by its patch references.
func ParseTextureDefs(lump []byte) ([]TextureDef, error) {
	reader := bytes.NewReader(lump)
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return nil, corrupt(ErrBadEntry, "texture count: %v", err)
	}
	if int64(count) > int64(reader.Len())/4 {
		return nil, corrupt(ErrBadEntry, "%v texture offsets in %v bytes", count, reader.Len())
	}
	offsets := make([]uint32, count)
	if err := binary.Read(reader, binary.LittleEndian, offsets); err != nil {
		return nil, corrupt(ErrBadEntry, "texture offsets: %v", err)
	}

	defs := make([]TextureDef, 0, count)
	for i, offset := range offsets {
		if int64(offset) >= int64(len(lump)) {
			return nil, corrupt(ErrBadEntry, "texture %v at %v of %v bytes", i, offset, len(lump))
		}
		section := bytes.NewReader(lump[offset:])
		var header binTextureHeader
		if err := binary.Read(section, binary.LittleEndian, &header); err != nil {
			return nil, corrupt(ErrBadEntry, "texture %v header: %v", i, err)
		}
		name, err := DecodeName(header.TextureName)
		if err != nil {
			return nil, corrupt(err, "texture %v", i)
		}
		if header.NumPatches < 0 {
			return nil, corrupt(ErrBadEntry, "texture %v has %v patches", name, header.NumPatches)
		}
		binPatches := make([]binPatch, header.NumPatches)
		if err := binary.Read(section, binary.LittleEndian, binPatches); err != nil {
			return nil, corrupt(ErrBadEntry, "texture %v patches: %v", name, err)
		}
		def := TextureDef{
			Name:    name,
			Masked:  header.Masked != 0,
			Width:   int(header.Width),
			Height:  int(header.Height),
			Patches: make([]PatchRef, len(binPatches)),
		}
		for pi, p := range binPatches {
			def.Patches[pi] = PatchRef{OriginX: int(p.XOffset), OriginY: int(p.YOffset), Patch: int(p.PatchNameIdx)}
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// ComposeTexture paints the patches of def, in order, onto a transparent canvas. patches is
// indexed by PNAMES number and holds nil for missing patches. A negative y origin is
// treated as 0, as the original renderer does. A missing patch fails with ErrMissingPatch.
func ComposeTexture(def *TextureDef, patches []*Picture) (*Picture, error) {
	name := def.Name.String()
	pic, err := NewPicture(name, def.Width, def.Height)
	if err != nil {
		return nil, err
	}
	for i, ref := range def.Patches {
		if ref.Patch < 0 || ref.Patch >= len(patches) || patches[ref.Patch] == nil {
			return nil, badImage(name, ErrMissingPatch, "patch %v (PNAMES %v)", i, ref.Patch)
		}
		pic.Blit(patches[ref.Patch], ref.OriginX, max(ref.OriginY, 0))
	}
	return pic, nil
}

func (d *TextureDirectory) composeTextures() {
	for i := range d.defs {
		def := &d.defs[i]
		pic, err := ComposeTexture(def, d.patches)
		if err != nil {
			if errors.Is(err, ErrMissingPatch) {
				if ref := missingPatch(def, d.patches); ref >= 0 && ref < len(d.patchNames) {
					err = errors.WithMessagef(err, "%v", d.patchNames[ref])
				}
			}
			logger.Errorf("Skipping texture %v: %v", def.Name, err)
			d.failures = append(d.failures, err)
			continue
		}
		if _, ok := d.textures[def.Name]; !ok {
			d.textureNames = append(d.textureNames, def.Name)
		}
		d.textures[def.Name] = pic
	}
}

func missingPatch(def *TextureDef, patches []*Picture) int {
	for _, ref := range def.Patches {
		if ref.Patch < 0 || ref.Patch >= len(patches) || patches[ref.Patch] == nil {
			return ref.Patch
		}
	}
	return -1
}

// readFlats reads the flats between F_START and F_END, and FF_START and FF_END in PWADs.
func (d *TextureDirectory) readFlats(a *Archive) error {
	found := false
	for _, ns := range [][2]string{{"F_START", "F_END"}, {"FF_START", "FF_END"}} {
		first, last, ok := a.namespace(ns[0], ns[1])
		if !ok {
			continue
		}
		found = true
		for i := first; i < last; i++ {
			info := a.LumpInfo(i)
			// Skip marker lumps
			if info.Size == 0 {
				continue
			}
			if info.Size < FlatWidth*FlatHeight {
				err := badImage(info.Name.String(), ErrBadPicture, "flat of %v bytes", info.Size)
				logger.Errorf("Skipping flat %v: %v", info.Name, err)
				d.failures = append(d.failures, err)
				continue
			}
			data, err := a.ReadLump(i)
			if err != nil {
				return err
			}
			if _, ok := d.flats[info.Name]; !ok {
				d.flatNames = append(d.flatNames, info.Name)
			}
			d.flats[info.Name] = &Flat{Name: info.Name, Data: data[:FlatWidth*FlatHeight]}
		}
	}
	if !found {
		logger.Warningf("No flats found")
	}
	return nil
}

// readSprites reads the sprites between S_START and S_END, and SS_START and SS_END.
// A lump named like TROOA2A8 holds rotation 2 of frame A and, mirrored, rotation 8.
func (d *TextureDirectory) readSprites(a *Archive) error {
	found := false
	for _, ns := range [][2]string{{"S_START", "S_END"}, {"SS_START", "SS_END"}} {
		first, last, ok := a.namespace(ns[0], ns[1])
		if !ok {
			continue
		}
		found = true
		for i := first; i < last; i++ {
			info := a.LumpInfo(i)
			if info.Size == 0 {
				continue
			}
			data, err := a.ReadLump(i)
			if err != nil {
				return err
			}
			pic, err := DecodePicture(info.Name.String(), data)
			if err != nil {
				logger.Errorf("Skipping sprite %v: %v", info.Name, err)
				d.failures = append(d.failures, err)
				continue
			}
			d.addSprite(info.Name, pic)
			if info.Name.Len() == 8 {
				var mirror LumpName
				copy(mirror[:4], info.Name[:4])
				copy(mirror[4:6], info.Name[6:8])
				d.addSprite(mirror, pic.FlipX(mirror.String()))
				trimmed := info.Name
				trimmed[6], trimmed[7] = 0, 0
				d.addSprite(trimmed, pic)
			}
		}
	}
	if !found {
		logger.Warningf("No sprites found")
	}
	return nil
}

func (d *TextureDirectory) addSprite(name LumpName, pic *Picture) {
	if _, ok := d.sprites[name]; !ok {
		d.spriteNames = append(d.spriteNames, name)
	}
	d.sprites[name] = pic
}

func (d *TextureDirectory) Texture(name LumpName) (*Picture, bool) {
	pic, ok := d.textures[name]
	return pic, ok
}

func (d *TextureDirectory) Flat(name LumpName) (*Flat, bool) {
	f, ok := d.flats[name]
	return f, ok
}

func (d *TextureDirectory) Sprite(name LumpName) (*Picture, bool) {
	pic, ok := d.sprites[name]
	return pic, ok
}

// Patch returns the patch with PNAMES index i; ok is false if it is missing.
func (d *TextureDirectory) Patch(i int) (*Picture, bool) {
	if i < 0 || i >= len(d.patches) || d.patches[i] == nil {
		return nil, false
	}
	return d.patches[i], true
}

func (d *TextureDirectory) NumPatches() int { return len(d.patches) }

// TextureDefs returns every texture definition, including ones that failed to compose.
func (d *TextureDirectory) TextureDefs() []TextureDef { return d.defs }

// TextureNames returns the composed textures in definition order.
func (d *TextureDirectory) TextureNames() []LumpName { return d.textureNames }

func (d *TextureDirectory) FlatNames() []LumpName { return d.flatNames }

// SpriteNames returns every sprite frame name, sorted.
func (d *TextureDirectory) SpriteNames() []LumpName {
	names := append([]LumpName(nil), d.spriteNames...)
	sort.Slice(names, func(i, j int) bool { return names[i].String() < names[j].String() })
	return names
}

func (d *TextureDirectory) Palettes() []Palette { return d.palettes }

func (d *TextureDirectory) ColorMaps() []ColorMap { return d.colorMaps }

// Failures returns the errors of every image that was skipped.
func (d *TextureDirectory) Failures() []error { return d.failures }

func (d *TextureDirectory) TextureSize(name LumpName) (image.Point, bool) {
	if pic, ok := d.textures[name]; ok {
		return pic.Size(), true
	}
	return image.Point{}, false
}

func (d *TextureDirectory) SpriteSize(name LumpName) (image.Point, bool) {
	if pic, ok := d.sprites[name]; ok {
		return pic.Size(), true
	}
	return image.Point{}, false
}
