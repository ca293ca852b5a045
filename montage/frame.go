package montage

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// AlignmentFrame is the dedicated transform node the solver's result is
// applied to. Scale is applied first, then rotation, then the additive
// translation delta; the assignment order matters because the frame
// recenters after each property change.
type AlignmentFrame struct {
	Scale    r3.Vec
	Rotation r3.Rotation
	Offset   r3.Vec
}

// NewAlignmentFrame returns an identity frame.
func NewAlignmentFrame() AlignmentFrame {
	return AlignmentFrame{Scale: One(), Rotation: IdentityRotation()}
}

// Apply maps a rig-space point through the frame.
func (f AlignmentFrame) Apply(p r3.Vec) r3.Vec {
	return r3.Add(f.Rotation.Rotate(MulElem(f.Scale, p)), f.Offset)
}

// ManualOffset is the independently user-controlled frame composed on top of
// the automatic alignment. It is set from an external control surface and
// never touched by the solver.
type ManualOffset struct {
	Position r3.Vec
	Rotation r3.Rotation
	Scale    r3.Vec
}

// NewManualOffset returns an identity offset.
func NewManualOffset() ManualOffset {
	return ManualOffset{Rotation: IdentityRotation(), Scale: One()}
}

// Apply maps an aligned-space point through the manual offset.
func (m ManualOffset) Apply(p r3.Vec) r3.Vec {
	return r3.Add(m.Rotation.Rotate(MulElem(m.Scale, p)), m.Position)
}

// HeadFrame composes the alignment frame with the manual offset:
// world = manual(alignment(rig)). It is the Alignment Transform Sink.
type HeadFrame struct {
	mu        sync.RWMutex
	alignment AlignmentFrame
	manual    ManualOffset
	committed *AlignmentResult
}

// NewHeadFrame returns an identity head frame.
func NewHeadFrame() *HeadFrame {
	return &HeadFrame{
		alignment: NewAlignmentFrame(),
		manual:    NewManualOffset(),
	}
}

// Commit applies a solved alignment to the frame. Scale and rotation are
// set, the translation delta is added to the fresh frame; committing the
// same result twice reproduces the same frame, it does not accumulate.
func (h *HeadFrame) Commit(res AlignmentResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alignment = AlignmentFrame{
		Scale:    res.Scale,
		Rotation: res.Rotation,
		Offset:   res.TranslationDelta,
	}
	stored := res
	h.committed = &stored
}

// Reset restores the alignment frame to identity unconditionally. The
// manual offset is left alone; it belongs to the user.
func (h *HeadFrame) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alignment = NewAlignmentFrame()
	h.committed = nil
}

// Committed returns the last committed alignment result, or nil.
func (h *HeadFrame) Committed() *AlignmentResult {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.committed == nil {
		return nil
	}
	out := *h.committed
	return &out
}

// Alignment returns a copy of the current alignment frame.
func (h *HeadFrame) Alignment() AlignmentFrame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.alignment
}

// SetManualOffset replaces the manual-offset frame. Rotation is given as
// per-axis Euler angles in degrees.
func (h *HeadFrame) SetManualOffset(position r3.Vec, rotationDeg r3.Vec, scale r3.Vec) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.manual = ManualOffset{
		Position: position,
		Rotation: EulerRotation(rotationDeg.X, rotationDeg.Y, rotationDeg.Z),
		Scale:    scale,
	}
}

// Manual returns a copy of the current manual offset.
func (h *HeadFrame) Manual() ManualOffset {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manual
}

// Apply maps a rig-space point to world space through both frames.
func (h *HeadFrame) Apply(p r3.Vec) r3.Vec {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.manual.Apply(h.alignment.Apply(p))
}

// ApplyOrientation composes a rig-space orientation with both frames'
// rotations.
func (h *HeadFrame) ApplyOrientation(o r3.Rotation) r3.Rotation {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return ComposeRotation(h.manual.Rotation, ComposeRotation(h.alignment.Rotation, o))
}
