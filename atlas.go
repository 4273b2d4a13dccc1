package wad

import (
	"image"
	"sort"
)

// DefaultAtlasSize is the width and height of an atlas when AtlasOptions leaves it unset.
const DefaultAtlasSize = 1024

// AtlasEntry is one image, or one animation laid out as a strip of frames, to be packed.
type AtlasEntry struct {
	Name       LumpName
	Frames     []*Picture
	FrameNames []LumpName // one per frame; Name alone when empty
}

type AtlasOptions struct {
	Size int
}

// Bounds locates a packed entry. Pos and Size are in texels and describe a single cell;
// the frames of an animation follow each other to the right of Pos.
type Bounds struct {
	Atlas     int
	Pos       image.Point
	Size      image.Point
	NumFrames int
	RowHeight int
}

// Frame returns the position of frame i of the strip.
func (b Bounds) Frame(i int) image.Point {
	return image.Pt(b.Pos.X+i*b.Size.X, b.Pos.Y)
}

// Atlas is a square page of packed images.
type Atlas struct {
	*Picture
}

type AtlasSet struct {
	Atlases []*Atlas
	Bounds  map[LumpName]Bounds // by frame name
}

type packItem struct {
	entry *AtlasEntry
	cell  image.Point
	strip image.Point
}

// PackAtlases packs entries into as many fixed size atlases as needed. Entries are placed
// on shelves, tallest first with ties broken by name, so the same input always gives the
// same layout. An entry wider or taller than an atlas fails with ErrImageTooLarge, and a
// name used by two entries fails with ErrDuplicateImage; pack images from different
// namespaces into separate sets.
func PackAtlases(entries []AtlasEntry, opts AtlasOptions) (*AtlasSet, error) {
	size := opts.Size
	if size <= 0 {
		size = DefaultAtlasSize
	}
	if size > MaxImageSize {
		return nil, badImage("atlas", ErrImageTooLarge, "atlas size %v", size)
	}

	items := make([]packItem, 0, len(entries))
	owner := make(map[LumpName]int)
	for i := range entries {
		e := &entries[i]
		if len(e.Frames) == 0 {
			return nil, badImage(e.Name.String(), ErrBadPicture, "no frames")
		}
		for _, name := range append([]LumpName{e.Name}, e.FrameNames...) {
			if j, ok := owner[name]; ok && j != i {
				return nil, badImage(name.String(), ErrDuplicateImage, "entries %v and %v", j, i)
			}
			owner[name] = i
		}
		var cell image.Point
		for _, f := range e.Frames {
			cell.X, cell.Y = max(cell.X, f.Width), max(cell.Y, f.Height)
		}
		strip := image.Pt(cell.X*len(e.Frames), cell.Y)
		if strip.X > size || strip.Y > size {
			return nil, badImage(e.Name.String(), ErrImageTooLarge, "%v frames of %vx%v in a %v atlas",
				len(e.Frames), cell.X, cell.Y, size)
		}
		items = append(items, packItem{entry: e, cell: cell, strip: strip})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].strip.Y != items[j].strip.Y {
			return items[i].strip.Y > items[j].strip.Y
		}
		return items[i].entry.Name.String() < items[j].entry.Name.String()
	})

	set := &AtlasSet{Bounds: make(map[LumpName]Bounds)}
	var page *Atlas
	var x, y, rowHeight int
	newPage := func() error {
		pic, err := NewPicture("atlas", size, size)
		if err != nil {
			return err
		}
		page = &Atlas{pic}
		set.Atlases = append(set.Atlases, page)
		x, y, rowHeight = 0, 0, 0
		return nil
	}

	for _, it := range items {
		if page == nil {
			if err := newPage(); err != nil {
				return nil, err
			}
		}
		// Next shelf
		if x+it.strip.X > size {
			x, y, rowHeight = 0, y+rowHeight, 0
		}
		// Next atlas
		if y+it.strip.Y > size {
			if err := newPage(); err != nil {
				return nil, err
			}
		}
		if rowHeight == 0 {
			rowHeight = it.strip.Y
		}

		b := Bounds{
			Atlas:     len(set.Atlases) - 1,
			Pos:       image.Pt(x, y),
			Size:      it.cell,
			NumFrames: len(it.entry.Frames),
			RowHeight: rowHeight,
		}
		for i, f := range it.entry.Frames {
			p := b.Frame(i)
			page.Blit(f, p.X, p.Y)
		}
		set.Bounds[it.entry.Name] = b
		for _, name := range it.entry.FrameNames {
			set.Bounds[name] = b
		}
		x += it.strip.X
	}
	logger.Infof("Packed %v entries into %v atlases of %v", len(items), len(set.Atlases), size)
	return set, nil
}

// WallEntries returns atlas entries for the named wall textures. A texture that belongs to
// an animation brings in the whole animation as one entry.
func (d *TextureDirectory) WallEntries(names []LumpName) []AtlasEntry {
	return d.entries(animationSets(names, d.meta.WallAnimation), d.Texture)
}

// FlatEntries is WallEntries for flats.
func (d *TextureDirectory) FlatEntries(names []LumpName) []AtlasEntry {
	return d.entries(animationSets(names, d.meta.FlatAnimation), func(n LumpName) (*Picture, bool) {
		f, ok := d.Flat(n)
		if !ok {
			return nil, false
		}
		return f.Picture(), true
	})
}

// SpriteEntries returns one entry per frame set, such as the sequences of
// Collector.SpriteFrameSets. A set with several frames packs as a strip.
func (d *TextureDirectory) SpriteEntries(sets [][]LumpName) []AtlasEntry {
	return d.entries(sets, d.Sprite)
}

func animationSets(names []LumpName, animation func(LumpName) ([]LumpName, bool)) [][]LumpName {
	sets := make([][]LumpName, 0, len(names))
	for _, name := range names {
		if anim, ok := animation(name); ok {
			sets = append(sets, anim)
		} else {
			sets = append(sets, []LumpName{name})
		}
	}
	return sets
}

// entries builds one entry per set. A frame already placed by an earlier set is left out,
// so no name is packed twice.
func (d *TextureDirectory) entries(sets [][]LumpName, lookup func(LumpName) (*Picture, bool)) []AtlasEntry {
	seen := make(map[LumpName]bool)
	var entries []AtlasEntry
	for _, frames := range sets {
		entry := AtlasEntry{}
		for _, f := range frames {
			if seen[f] {
				continue
			}
			seen[f] = true
			pic, ok := lookup(f)
			if !ok {
				logger.Warningf("No image for %v", f)
				continue
			}
			if len(entry.Frames) == 0 {
				entry.Name = f
			}
			entry.Frames = append(entry.Frames, pic)
			entry.FrameNames = append(entry.FrameNames, f)
		}
		if len(entry.Frames) > 0 {
			entries = append(entries, entry)
		}
	}
	return entries
}
