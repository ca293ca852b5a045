package montage

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Hit is a ray-surface intersection.
type Hit struct {
	Point    r3.Vec
	Distance float64
}

// Raycaster answers nearest-hit ray queries against the physical-surface
// layer. When two surfaces occlude each other along the ray, only the
// nearest hit within the bound is reported.
type Raycaster interface {
	Cast(origin, dir r3.Vec, maxDistance float64) (Hit, bool)
}

// Projector relocates abstract layout points onto a target surface. It is a
// deterministic, one-shot placement: each layout point is projected exactly
// once at setup and never re-evaluated.
type Projector struct {
	SpawnOrigin    r3.Vec
	HeadCenter     r3.Vec
	PreScale       float64
	MaxRayDistance float64
	Surface        Raycaster // nil disables projection; candidates are kept as-is
}

// NewProjector builds a projector from the head config and a surface.
func NewProjector(head HeadConfig, surface Raycaster) *Projector {
	return &Projector{
		SpawnOrigin:    head.SpawnOrigin.Vec(),
		HeadCenter:     head.Center.Vec(),
		PreScale:       head.PreScale,
		MaxRayDistance: head.MaxRayDistance,
		Surface:        surface,
	}
}

// Candidate computes the pre-projection world position of a layout point:
// the montage (x, y, z) remaps to world (-y, z, x), pre-scaled and offset
// from the spawn origin. This reconciles the montage's anterior/left/superior
// axes with the world's right/up/forward convention.
func (pr *Projector) Candidate(p LayoutPoint) r3.Vec {
	remapped := r3.Vec{X: -p.Local.Y, Y: p.Local.Z, Z: p.Local.X}
	return r3.Add(pr.SpawnOrigin, r3.Scale(pr.PreScale, remapped))
}

// Place projects a single layout point onto the surface. The ray runs from
// the candidate position toward the head center; on a hit the landmark moves
// to the intersection and its up axis is oriented along the surface normal
// (from the candidate toward the center), on a miss the candidate position
// and a default orientation are kept.
func (pr *Projector) Place(p LayoutPoint) PlacedLandmark {
	candidate := pr.Candidate(p)
	lm := PlacedLandmark{
		Name:        p.Name,
		Position:    candidate,
		Orientation: IdentityRotation(),
		Visible:     true,
	}

	if pr.Surface == nil {
		return lm
	}
	toCenter := r3.Sub(pr.HeadCenter, candidate)
	if r3.Norm(toCenter) < 1e-12 {
		return lm
	}

	hit, ok := pr.Surface.Cast(candidate, r3.Unit(toCenter), pr.MaxRayDistance)
	if !ok {
		return lm
	}

	lm.Orientation = RotationBetween(r3.Vec{Y: 1}, toCenter)
	lm.Position = hit.Point
	return lm
}

// PlaceAll projects every layout point in table order.
func (pr *Projector) PlaceAll(layout *Layout) []PlacedLandmark {
	points := layout.All()
	placed := make([]PlacedLandmark, len(points))
	for i, p := range points {
		placed[i] = pr.Place(p)
	}
	return placed
}

// SphereSurface is a virtual head surface: a sphere answering nearest-hit
// ray queries. It stands in for the mesh collider when no physical surface
// scan is available.
type SphereSurface struct {
	Center r3.Vec
	Radius float64
}

// Cast intersects a ray with the sphere and reports the nearest hit within
// maxDistance. dir must be a unit vector.
func (s SphereSurface) Cast(origin, dir r3.Vec, maxDistance float64) (Hit, bool) {
	oc := r3.Sub(origin, s.Center)
	b := r3.Dot(oc, dir)
	c := r3.Norm2(oc) - s.Radius*s.Radius
	disc := b*b - c
	if disc < 0 {
		return Hit{}, false
	}

	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq // origin inside the sphere: exit point
	}
	if t < 0 || t > maxDistance {
		return Hit{}, false
	}
	return Hit{Point: r3.Add(origin, r3.Scale(t, dir)), Distance: t}, true
}
