package wad

import (
	"bytes"
	"encoding/binary"
	"image"
)

// MaxImageSize bounds both dimensions of any decoded or composed image.
const MaxImageSize = 4096

type binPatchImageHeader struct {
	Width, Height         uint16
	LeftOffset, TopOffset int16
}

// The doom picture (image) format, decoded into rows. Pixels holds palette indices and
// Opaque marks the ones that are drawn; everything else is a gap between column posts.
type Picture struct {
	Name                  string
	Width, Height         int
	LeftOffset, TopOffset int // Allows soulspheres, weapons and keys to float
	Pixels                []byte
	Opaque                []bool
}

// NewPicture returns a fully transparent picture.
func NewPicture(name string, width, height int) (*Picture, error) {
	if width < 0 || height < 0 || width > MaxImageSize || height > MaxImageSize {
		return nil, badImage(name, ErrImageTooLarge, "%vx%v", width, height)
	}
	return &Picture{
		Name:   name,
		Width:  width,
		Height: height,
		Pixels: make([]byte, width*height),
		Opaque: make([]bool, width*height),
	}, nil
}

func (p *Picture) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

func (p *Picture) Size() image.Point {
	return image.Pt(p.Width, p.Height)
}

// At returns the pixel at x, y and whether it is opaque.
func (p *Picture) At(x, y int) (byte, bool) {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return 0, false
	}
	i := y*p.Width + x
	return p.Pixels[i], p.Opaque[i]
}

// Blit paints the opaque pixels of src onto p with src's origin at x, y. Pixels falling
// outside p are clipped.
func (p *Picture) Blit(src *Picture, x, y int) {
	x0, y0 := max(0, -x), max(0, -y)
	x1, y1 := min(src.Width, p.Width-x), min(src.Height, p.Height-y)
	for sy := y0; sy < y1; sy++ {
		srow := sy * src.Width
		drow := (sy+y)*p.Width + x
		for sx := x0; sx < x1; sx++ {
			if src.Opaque[srow+sx] {
				p.Pixels[drow+sx] = src.Pixels[srow+sx]
				p.Opaque[drow+sx] = true
			}
		}
	}
}

// FlipX returns a mirrored copy of p, used for sprite rotations stored once for two views.
func (p *Picture) FlipX(name string) *Picture {
	flipped := &Picture{
		Name:       name,
		Width:      p.Width,
		Height:     p.Height,
		LeftOffset: p.Width - p.LeftOffset,
		TopOffset:  p.TopOffset,
		Pixels:     make([]byte, len(p.Pixels)),
		Opaque:     make([]bool, len(p.Opaque)),
	}
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			src, dst := y*p.Width+x, y*p.Width+p.Width-1-x
			flipped.Pixels[dst] = p.Pixels[src]
			flipped.Opaque[dst] = p.Opaque[src]
		}
	}
	return flipped
}

// DecodePicture reads a picture lump. Each column is a list of posts, each
// {row start, count, pad, count pixels, pad}, ending with a row start of 0xFF. Every offset
// and post is checked against the lump and the image; failures are KindBadImage errors
// carrying name.
func DecodePicture(name string, lump []byte) (*Picture, error) {
	reader := bytes.NewReader(lump)
	var header binPatchImageHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, badImage(name, ErrBadPicture, "header: %v", err)
	}
	width, height := int(header.Width), int(header.Height)
	pic, err := NewPicture(name, width, height)
	if err != nil {
		return nil, err
	}
	pic.LeftOffset, pic.TopOffset = int(header.LeftOffset), int(header.TopOffset)

	// Read column offsets
	offsets := make([]uint32, width)
	if err := binary.Read(reader, binary.LittleEndian, offsets); err != nil {
		return nil, badImage(name, ErrBadPicture, "column offsets: %v", err)
	}

	// For each column offset, expand out the posts into the column
	size := int64(len(lump))
	for x, offset := range offsets {
		pos := int64(offset)
		for post := 0; ; post++ {
			if pos >= size {
				return nil, badImage(name, ErrBadPicture, "column %v post %v: past end of lump", x, post)
			}
			topDelta := int(lump[pos])
			if topDelta == 0xff {
				break
			}
			if pos+2 >= size {
				return nil, badImage(name, ErrBadPicture, "column %v post %v: truncated header", x, post)
			}
			numPixels := int(lump[pos+1])
			pos += 3 // row start, count, padding
			if topDelta+numPixels > height {
				return nil, badImage(name, ErrBadPicture, "column %v post %v: rows %v+%v of %v",
					x, post, topDelta, numPixels, height)
			}
			if pos+int64(numPixels)+1 > size {
				return nil, badImage(name, ErrBadPicture, "column %v post %v: %v pixels past end of lump",
					x, post, numPixels)
			}
			for i := 0; i < numPixels; i++ {
				j := (topDelta+i)*width + x
				pic.Pixels[j] = lump[pos+int64(i)]
				pic.Opaque[j] = true
			}
			pos += int64(numPixels) + 1 // pixels, padding
		}
	}
	return pic, nil
}
