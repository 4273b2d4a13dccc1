package wad

import (
	"sort"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Map units per world unit.
const wadScale = 100

// FromWadHeight converts a map height to world units.
func FromWadHeight[T constraints.Integer | constraints.Float](h T) float32 {
	return float32(h) / wadScale
}

// ToWadHeight converts a world length back to map units.
func ToWadHeight(h float32) float32 {
	return h * wadScale
}

// FromWadCoords converts a map position to world coordinates. World x runs along map -y and
// world y along map -x, which mirrors the map.
func FromWadCoords[T constraints.Integer | constraints.Float](x, y T) mgl32.Vec2 {
	return mgl32.Vec2{-float32(y) / wadScale, -float32(x) / wadScale}
}

// degreesToRadians
func degreesToRadians[T constraints.Integer | constraints.Float](n T) float32 {
	return float32(n) * (math32.Pi / 180)
}

func clamp[T constraints.Integer | constraints.Float](v, lo, hi T) T {
	return max(lo, min(v, hi))
}

func perpDot(a, b mgl32.Vec2) float32 {
	return a[0]*b[1] - a[1]*b[0]
}

func normalizeOrZero(v mgl32.Vec2) mgl32.Vec2 {
	if l := v.Len(); l > 0 {
		return v.Mul(1 / l)
	}
	return v
}

// line2 is a line through origin along the unit vector dir.
type line2 struct {
	origin mgl32.Vec2
	dir    mgl32.Vec2
	length float32
}

func lineFromPoints(a, b mgl32.Vec2) line2 {
	d := b.Sub(a)
	l := d.Len()
	if l >= 1e-16 {
		d = d.Mul(1 / l)
	}
	return line2{origin: a, dir: d, length: l}
}

// inverted swaps the two half planes.
func (l line2) inverted() line2 {
	l.dir = l.dir.Mul(-1)
	return l
}

// signedDistance is positive on the half plane to the left of dir, in the mirrored world.
func (l line2) signedDistance(p mgl32.Vec2) float32 {
	return perpDot(p.Sub(l.origin), l.dir)
}

func (l line2) intersect(o line2) (mgl32.Vec2, bool) {
	denom := perpDot(l.dir, o.dir)
	if math32.Abs(denom) < 1e-16 {
		return mgl32.Vec2{}, false
	}
	t := -perpDot(l.origin.Sub(o.origin), o.dir) / denom
	return l.origin.Add(l.dir.Mul(t)), true
}

const (
	minPolyArea     = 1.024e-05
	minPolyEdge     = 0.0032
	maxPolySimplify = 64
)

func polygonCenter(points []mgl32.Vec2) mgl32.Vec2 {
	var c mgl32.Vec2
	for _, p := range points {
		c = c.Add(p)
	}
	return c.Mul(1 / float32(len(points)))
}

// toPolygon sorts points counter clockwise around their centre, drops duplicates and
// collinear points, and pushes the result out by bias. It returns nil if fewer than three
// points remain.
func toPolygon(points []mgl32.Vec2, bias float32) []mgl32.Vec2 {
	if len(points) < 3 {
		return nil
	}
	center := polygonCenter(points)
	sorted := append([]mgl32.Vec2(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Sub(center), sorted[j].Sub(center)
		aa, ba := math32.Atan2(a[1], a[0]), math32.Atan2(b[1], b[0])
		if aa != ba {
			return aa < ba
		}
		return a.Len() < b.Len()
	})

	// Remove duplicates.
	poly := sorted[:1]
	for _, p := range sorted[1:] {
		if p.Sub(poly[len(poly)-1]).Len() >= minPolyEdge {
			poly = append(poly, p)
		}
	}
	for len(poly) > 1 && poly[0].Sub(poly[len(poly)-1]).Len() < minPolyEdge {
		poly = poly[:len(poly)-1]
	}

	// Remove collinear points.
	for pass := 0; pass < maxPolySimplify && len(poly) >= 3; pass++ {
		removed := false
		for i := 0; i < len(poly) && len(poly) >= 3; i++ {
			prev, cur, next := poly[(i+len(poly)-1)%len(poly)], poly[i], poly[(i+1)%len(poly)]
			if math32.Abs(perpDot(cur.Sub(prev), next.Sub(cur)))*0.5 < minPolyArea {
				poly = append(poly[:i], poly[i+1:]...)
				removed = true
				i--
			}
		}
		if !removed {
			break
		}
	}
	if len(poly) < 3 {
		return nil
	}

	center = polygonCenter(poly)
	for i, p := range poly {
		d := p.Sub(center)
		if l := d.Len(); l > 0 {
			poly[i] = p.Add(d.Mul(bias / l))
		}
	}
	return poly
}
