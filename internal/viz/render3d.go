package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/nbodysim/internal/metrics"
	"github.com/san-kum/nbodysim/internal/particles"
)

// Camera is an orthographic view centred on Center. Rotations are applied
// about X, then Y, then Z; Scale maps world units to canvas half-extents and
// Zoom multiplies it.
type Camera struct {
	Center           r3.Vec
	RotX, RotY, RotZ float64
	Scale            float64
	Zoom             float64
}

func NewCamera() *Camera {
	return &Camera{Scale: 1, Zoom: 1}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) RotateZ(a float64) { c.RotZ += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(100, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.01, c.Zoom/1.2) }

// Rotate applies the camera rotation to p relative to Center.
func (c *Camera) Rotate(p r3.Vec) r3.Vec {
	p = r3.Sub(p, c.Center)
	sx, cx := math.Sincos(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	sy, cy := math.Sincos(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	sz, cz := math.Sincos(c.RotZ)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	return p
}

// Unrotate is the inverse of Rotate.
func (c *Camera) Unrotate(p r3.Vec) r3.Vec {
	sz, cz := math.Sincos(-c.RotZ)
	p.X, p.Y = p.X*cz-p.Y*sz, p.X*sz+p.Y*cz
	sy, cy := math.Sincos(-c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	sx, cx := math.Sincos(-c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	return r3.Add(p, c.Center)
}

// pixelsPerUnit fits Scale world units into the smaller half-dimension.
func (c *Camera) pixelsPerUnit(w, h int) float64 {
	half := math.Min(float64(w), float64(h)) / 2
	return half * c.Zoom / c.Scale
}

// Project maps p to dot coordinates on a w x h dot grid. ok is false for
// points outside the grid.
func (c *Camera) Project(p r3.Vec, w, h int) (x, y int, depth float64, ok bool) {
	rot := c.Rotate(p)
	k := c.pixelsPerUnit(w, h)
	fx := float64(w)/2 + rot.X*k
	fy := float64(h)/2 - rot.Y*k
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return 0, 0, 0, false
	}
	x, y = int(math.Floor(fx)), int(math.Floor(fy))
	return x, y, rot.Z, x >= 0 && x < w && y >= 0 && y < h
}

// Unproject maps dot (x, y) back to the world point in the view plane
// through Center.
func (c *Camera) Unproject(x, y, w, h int) r3.Vec {
	k := c.pixelsPerUnit(w, h)
	view := r3.Vec{
		X: (float64(x) + 0.5 - float64(w)/2) / k,
		Y: (float64(h)/2 - float64(y) - 0.5) / k,
	}
	return c.Unrotate(view)
}

// Fit centres the camera on the centre of mass and scales it to the
// farthest particle.
func (c *Camera) Fit(s *particles.Store) {
	if s.Len() == 0 {
		c.Center, c.Scale = r3.Vec{}, 1
		return
	}
	c.Center = metrics.CenterOfMass(s)
	var r float64
	for _, p := range s.Positions() {
		r = math.Max(r, r3.Norm(r3.Sub(p, c.Center)))
	}
	if r == 0 || math.IsInf(r, 0) || math.IsNaN(r) {
		r = 1
	}
	c.Scale = 1.1 * r
}

// Draw plots every particle of s onto the canvas and returns how many were
// visible.
func Draw(cv *Canvas, s *particles.Store, cam *Camera) int {
	w, h := cv.DotsWide(), cv.DotsHigh()
	visible := 0
	for _, p := range s.Positions() {
		if x, y, _, ok := cam.Project(p, w, h); ok {
			cv.Set(x, y)
			visible++
		}
	}
	return visible
}

// Crosshair marks dot (x, y) with a small plus sign.
func Crosshair(cv *Canvas, x, y int) {
	cv.DrawLine(x-2, y, x+2, y)
	cv.DrawLine(x, y-2, x, y+2)
}
