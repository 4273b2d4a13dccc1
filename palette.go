package wad

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"
)

type RGB struct {
	Red, Green, Blue uint8
}

// Each palette in PLAYPAL contains 256 three-ubyte colors totaling 768 bytes (RGB).
type Palette [256]RGB

// Each color map is a table 256 bytes long. It is indexed using a pixel value (from 0 to 255)
// and yields a new, brightness-adjusted pixel value.
type ColorMap [256]byte

// The first 32 colormaps go from full brightness to black; the rest are special effects.
const NumLightColorMaps = 32

func (p *Palette) Color(index byte) color.NRGBA {
	c := p[index]
	return color.NRGBA{R: c.Red, G: c.Green, B: c.Blue, A: 0xff}
}

// LightColorMap picks the colormap for a brightness in [0, 1].
func LightColorMap(light float32) int {
	light = clamp(light, 0, 1)
	return int(math32.Round((1 - light) * (NumLightColorMaps - 1)))
}

// Color maps a palette index through a colormap and the first palette.
func (d *TextureDirectory) Color(index byte, colormap int) color.NRGBA {
	colormap = clamp(colormap, 0, len(d.colorMaps)-1)
	return d.palettes[0].Color(d.colorMaps[colormap][index])
}

// Shade is Color at the colormap for a brightness in [0, 1].
func (d *TextureDirectory) Shade(index byte, light float32) color.NRGBA {
	return d.Color(index, LightColorMap(light))
}

// MappedPalette returns the RGB triples of every index under each colormap from first to
// last inclusive, colormap major, for upload as a lookup texture.
func (d *TextureDirectory) MappedPalette(palette, first, last int) []byte {
	pal := &d.palettes[clamp(palette, 0, len(d.palettes)-1)]
	first, last = clamp(first, 0, len(d.colorMaps)-1), clamp(last, 0, len(d.colorMaps)-1)
	mapped := make([]byte, 0, (last-first+1)*256*3)
	for _, cm := range d.colorMaps[first : last+1] {
		for _, index := range cm {
			c := pal[index]
			mapped = append(mapped, c.Red, c.Green, c.Blue)
		}
	}
	return mapped
}

// Image renders the picture through a palette and colormap. Transparent pixels have zero
// alpha.
func (p *Picture) Image(palette *Palette, colormap *ColorMap) *image.NRGBA {
	img := image.NewNRGBA(p.Bounds())
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			i := y*p.Width + x
			if p.Opaque[i] {
				img.SetNRGBA(x, y, palette.Color(colormap[p.Pixels[i]]))
			}
		}
	}
	return img
}
