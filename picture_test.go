package wad

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

// encodePicture writes pic in the column post format, one post per vertical run of opaque
// pixels.
func encodePicture(pic *Picture) []byte {
	var columns bytes.Buffer
	offsets := make([]uint32, pic.Width)
	base := 8 + 4*pic.Width
	for x := 0; x < pic.Width; x++ {
		offsets[x] = uint32(base + columns.Len())
		for y := 0; y < pic.Height; {
			if _, ok := pic.At(x, y); !ok {
				y++
				continue
			}
			start := y
			var run []byte
			for ; y < pic.Height; y++ {
				v, ok := pic.At(x, y)
				if !ok {
					break
				}
				run = append(run, v)
			}
			columns.Write([]byte{byte(start), byte(len(run)), 0})
			columns.Write(run)
			columns.WriteByte(0)
		}
		columns.WriteByte(0xff)
	}

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, binPatchImageHeader{
		Width: uint16(pic.Width), Height: uint16(pic.Height),
		LeftOffset: int16(pic.LeftOffset), TopOffset: int16(pic.TopOffset),
	})
	binary.Write(&out, binary.LittleEndian, offsets)
	out.Write(columns.Bytes())
	return out.Bytes()
}

// checkerPicture has opaque pixels where x+y is even, holding x*16+y.
func checkerPicture(name string, w, h int) *Picture {
	pic, err := NewPicture(name, w, h)
	if err != nil {
		panic(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				pic.Pixels[y*w+x] = byte(x*16 + y)
				pic.Opaque[y*w+x] = true
			}
		}
	}
	return pic
}

// solidPicture is fully opaque with every pixel set to v.
func solidPicture(name string, w, h int, v byte) *Picture {
	pic, err := NewPicture(name, w, h)
	if err != nil {
		panic(err)
	}
	for i := range pic.Pixels {
		pic.Pixels[i], pic.Opaque[i] = v, true
	}
	return pic
}

func samePixels(a, b *Picture) bool {
	return a.Width == b.Width && a.Height == b.Height &&
		bytes.Equal(a.Pixels, b.Pixels) && func() bool {
		for i := range a.Opaque {
			if a.Opaque[i] != b.Opaque[i] {
				return false
			}
		}
		return true
	}()
}

func TestDecodePictureTransparency(t *testing.T) {
	want := checkerPicture("CHECK", 7, 5)
	want.LeftOffset, want.TopOffset = 3, -2
	got, err := DecodePicture("CHECK", encodePicture(want))
	if err != nil {
		t.Fatalf("DecodePicture() error: %v", err)
	}
	if !samePixels(got, want) {
		t.Errorf("DecodePicture() pixels = %v %v, want %v %v", got.Pixels, got.Opaque, want.Pixels, want.Opaque)
	}
	if got.LeftOffset != 3 || got.TopOffset != -2 {
		t.Errorf("offsets = %v, %v, want 3, -2", got.LeftOffset, got.TopOffset)
	}
}

func TestDecodePictureErrors(t *testing.T) {
	good := encodePicture(solidPicture("SOLID", 4, 4, 1))

	for _, tt := range []struct {
		name  string
		lump  func() []byte
		cause error
	}{
		{"short header", func() []byte { return good[:5] }, ErrBadPicture},
		{"short offsets", func() []byte { return good[:12] }, ErrBadPicture},
		{"truncated run", func() []byte { return good[:len(good)-3] }, ErrBadPicture},
		{"offset past end", func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(b[8:], 1<<30)
			return b
		}, ErrBadPicture},
		{"run past bottom", func() []byte {
			b := append([]byte(nil), good...)
			b[8+4*4+1] = 200 // count of the first post
			return b
		}, ErrBadPicture},
		{"too large", func() []byte {
			b := append([]byte(nil), good...)
			binary.LittleEndian.PutUint16(b[0:], MaxImageSize+1)
			return b
		}, ErrImageTooLarge},
	} {
		_, err := DecodePicture("BAD", tt.lump())
		if !errors.Is(err, tt.cause) || KindOf(err) != KindBadImage {
			t.Errorf("%v: DecodePicture() = %v, want %v", tt.name, err, tt.cause)
			continue
		}
		var e *Error
		if errors.As(err, &e) && e.Name != "BAD" {
			t.Errorf("%v: error names %q, want BAD", tt.name, e.Name)
		}
	}
}

func TestBlitClips(t *testing.T) {
	dst := solidPicture("DST", 4, 4, 9)
	src := checkerPicture("SRC", 3, 3)
	dst.Blit(src, 2, -1)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v, _ := dst.At(x, y)
			want := byte(9)
			if sv, ok := src.At(x-2, y+1); ok {
				want = sv
			}
			if v != want {
				t.Errorf("At(%v, %v) = %v, want %v", x, y, v, want)
			}
		}
	}
}

func TestFlipX(t *testing.T) {
	pic := checkerPicture("A", 3, 2)
	pic.LeftOffset = 1
	flipped := pic.FlipX("B")
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			a, aok := pic.At(x, y)
			b, bok := flipped.At(2-x, y)
			if a != b || aok != bok {
				t.Errorf("FlipX pixel %v, %v = %v, %v, want %v, %v", 2-x, y, b, bok, a, aok)
			}
		}
	}
	if flipped.LeftOffset != 2 || flipped.Name != "B" {
		t.Errorf("FlipX = %v offset %v", flipped.Name, flipped.LeftOffset)
	}
}

func TestPictureImage(t *testing.T) {
	var pal Palette
	pal[5] = RGB{10, 20, 30}
	var cm ColorMap
	for i := range cm {
		cm[i] = byte(i)
	}
	pic, _ := NewPicture("P", 2, 1)
	pic.Pixels[0], pic.Opaque[0] = 5, true
	img := pic.Image(&pal, &cm)
	if c := img.NRGBAAt(0, 0); c.R != 10 || c.G != 20 || c.B != 30 || c.A != 255 {
		t.Errorf("pixel 0 = %v", c)
	}
	if c := img.NRGBAAt(1, 0); c.A != 0 {
		t.Errorf("transparent pixel = %v", c)
	}
}
