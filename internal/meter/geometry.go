package meter

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Layout positions the meter's parts in pixels of the face texture, with
// the origin at the top left and Y growing downward.
//
// The base plate occupies the top-left Base rectangle of the texture and
// defines the drawing area. The needle and LED artwork sit below it in
// the texture and are drawn over the base: the needle rotates around
// Pivot with its inner end NeedleBaseY pixels down the base, the LED is
// copied to LEDOnBase.
type Layout struct {
	Texture           mgl32.Vec2 `yaml:"texture"`
	Base              mgl32.Vec2 `yaml:"base"`
	NeedleTopLeft     mgl32.Vec2 `yaml:"needle_top_left"`
	NeedleBottomRight mgl32.Vec2 `yaml:"needle_bottom_right"`
	Pivot             mgl32.Vec2 `yaml:"pivot"`
	NeedleBaseY       float32    `yaml:"needle_base_y"`
	LEDOnBase         mgl32.Vec2 `yaml:"led_on_base"`
	LEDTopLeft        mgl32.Vec2 `yaml:"led_top_left"`
	LEDBottomRight    mgl32.Vec2 `yaml:"led_bottom_right"`
}

// DefaultLayout matches the stock 512x512 meter face.
func DefaultLayout() Layout {
	return Layout{
		Texture:           mgl32.Vec2{512, 512},
		Base:              mgl32.Vec2{512, 300},
		NeedleTopLeft:     mgl32.Vec2{8, 313},
		NeedleBottomRight: mgl32.Vec2{187, 316},
		Pivot:             mgl32.Vec2{251, 288},
		NeedleBaseY:       240,
		LEDOnBase:         mgl32.Vec2{414, 116},
		LEDTopLeft:        mgl32.Vec2{198, 304},
		LEDBottomRight:    mgl32.Vec2{231, 339},
	}
}

// NormX converts a base-plate pixel X to normalized device coordinates.
func (l Layout) NormX(px float32) float32 {
	return (px/l.Base.X())*2 - 1
}

// NormY converts a base-plate pixel Y to normalized device coordinates,
// flipping the axis so that up is positive.
func (l Layout) NormY(py float32) float32 {
	return (py/l.Base.Y())*-2 + 1
}

// PixelX is the inverse of NormX.
func (l Layout) PixelX(nx float32) float32 {
	return (nx + 1) / 2 * l.Base.X()
}

// PixelY is the inverse of NormY.
func (l Layout) PixelY(ny float32) float32 {
	return (1 - ny) / 2 * l.Base.Y()
}

const (
	// FloatsPerVertex is XYZ position followed by UV texture coordinates.
	FloatsPerVertex = 5
	// VertexCount covers three quads: base plate, needle and LED.
	VertexCount = 3 * 4
	// VertexFloats is the length of the vertex buffer.
	VertexFloats = VertexCount * FloatsPerVertex
	// IndexCount is two triangles per quad.
	IndexCount = 3 * 6

	// AlwaysDrawnIndices covers the base plate and the needle.
	AlwaysDrawnIndices = 12
	// LEDIndexOffset and LEDIndexCount select the overload LED quad.
	LEDIndexOffset = 12
	LEDIndexCount  = 6

	baseVertex   = 0
	needleVertex = 4
	ledVertex    = 8
)

// Geometry is the interleaved vertex buffer and the index buffer handed
// to the renderer.
type Geometry struct {
	Vertices [VertexFloats]float32
	Indices  [IndexCount]uint16

	layout      Layout
	radiusShort float32
	radiusLong  float32
	halfWidth   float32
}

// NewGeometry builds the static base plate and LED quads, every texture
// coordinate and the index buffer. The needle starts pointing straight up.
func NewGeometry(layout Layout) *Geometry {
	g := &Geometry{layout: layout}

	g.radiusShort = layout.Pivot.Y() - layout.NeedleBaseY
	g.radiusLong = g.radiusShort + layout.NeedleBottomRight.X() - layout.NeedleTopLeft.X()
	g.halfWidth = (layout.NeedleBottomRight.Y() - layout.NeedleTopLeft.Y()) * 0.5

	base := corners(mgl32.Vec2{}, layout.Base)
	g.setQuad(baseVertex, base, base)

	ledSize := layout.LEDBottomRight.Sub(layout.LEDTopLeft)
	g.setQuad(ledVertex,
		corners(layout.LEDOnBase, layout.LEDOnBase.Add(ledSize)),
		corners(layout.LEDTopLeft, layout.LEDBottomRight))

	needleUV := corners(layout.NeedleTopLeft, layout.NeedleBottomRight)
	for i, uv := range needleUV {
		g.setTexCoord(needleVertex+i, uv)
	}

	for q := 0; q < 3; q++ {
		v := uint16(q * 4)
		copy(g.Indices[q*6:], []uint16{v, v + 1, v + 2, v + 2, v + 3, v})
	}

	g.UpdateNeedle(math.Pi / 2)
	return g
}

// UpdateNeedle recomputes the needle quad for angle theta. The needle is a
// rectangle radiusShort..radiusLong pixels out from the pivot.
func (g *Geometry) UpdateNeedle(theta float64) {
	sin, cos := math.Sincos(theta)
	s, c := float32(sin), float32(cos)

	// Pixel Y grows downward, so a positive angle points up the texture.
	dir := mgl32.Vec2{c, -s}
	inner := g.layout.Pivot.Add(dir.Mul(g.radiusShort))
	outer := g.layout.Pivot.Add(dir.Mul(g.radiusLong))
	side := mgl32.Vec2{-g.halfWidth * s, -g.halfWidth * c}

	g.setPosition(needleVertex+0, outer.Add(side))
	g.setPosition(needleVertex+1, outer.Sub(side))
	g.setPosition(needleVertex+2, inner.Add(side))
	g.setPosition(needleVertex+3, inner.Sub(side))
}

// Position returns vertex i's normalized XY position.
func (g *Geometry) Position(i int) mgl32.Vec2 {
	return mgl32.Vec2{g.Vertices[i*FloatsPerVertex], g.Vertices[i*FloatsPerVertex+1]}
}

// TexCoord returns vertex i's UV texture coordinate.
func (g *Geometry) TexCoord(i int) mgl32.Vec2 {
	return mgl32.Vec2{g.Vertices[i*FloatsPerVertex+3], g.Vertices[i*FloatsPerVertex+4]}
}

func (g *Geometry) setQuad(first int, pos, uv [4]mgl32.Vec2) {
	for i := range pos {
		g.setPosition(first+i, pos[i])
		g.setTexCoord(first+i, uv[i])
	}
}

func (g *Geometry) setPosition(i int, px mgl32.Vec2) {
	o := i * FloatsPerVertex
	g.Vertices[o] = g.layout.NormX(px.X())
	g.Vertices[o+1] = g.layout.NormY(px.Y())
	g.Vertices[o+2] = 0
}

func (g *Geometry) setTexCoord(i int, px mgl32.Vec2) {
	o := i*FloatsPerVertex + 3
	g.Vertices[o] = px.X() / g.layout.Texture.X()
	g.Vertices[o+1] = px.Y() / g.layout.Texture.Y()
}

// corners lists a rectangle's corners in quad order: bottom right, top
// right, top left, bottom left.
func corners(topLeft, bottomRight mgl32.Vec2) [4]mgl32.Vec2 {
	return [4]mgl32.Vec2{
		{bottomRight.X(), bottomRight.Y()},
		{bottomRight.X(), topLeft.Y()},
		{topLeft.X(), topLeft.Y()},
		{topLeft.X(), bottomRight.Y()},
	}
}
