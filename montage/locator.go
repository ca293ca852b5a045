package montage

import "gonum.org/v1/gonum/spatial/r3"

// Locator resolves landmark names to their current instantiated positions.
// A rig locator resolves placement positions directly; a world locator maps
// them through the head frame first. The solver uses the rig locator so that
// re-solving never accumulates a previously committed alignment.
type Locator struct {
	scene *Scene
	frame *HeadFrame // nil for rig-space resolution
}

// NewLocator creates a rig-space locator over a scene.
func NewLocator(scene *Scene) *Locator {
	return &Locator{scene: scene}
}

// NewWorldLocator creates a locator that resolves through the head frame.
func NewWorldLocator(scene *Scene, frame *HeadFrame) *Locator {
	return &Locator{scene: scene, frame: frame}
}

// PositionOf resolves a landmark name to a position. Unknown names return
// the zero vector rather than an error; callers combining pairs tolerate a
// missing landmark degrading to a zero contribution.
func (l *Locator) PositionOf(name string) r3.Vec {
	p := l.scene.RigPosition(name)
	if l.frame != nil {
		p = l.frame.Apply(p)
	}
	return p
}

// Midpoint returns the arithmetic mean of two resolved landmark positions.
// It is commutative in its arguments.
func (l *Locator) Midpoint(nameA, nameB string) r3.Vec {
	return Midpoint(l.PositionOf(nameA), l.PositionOf(nameB))
}
