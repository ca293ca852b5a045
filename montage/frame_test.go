package montage

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestHeadFrame_IdentityByDefault(t *testing.T) {
	frame := NewHeadFrame()
	p := r3.Vec{X: 0.3, Y: 1.5, Z: -0.1}
	if got := frame.Apply(p); !vecsEqual(got, p, epsilon) {
		t.Errorf("identity frame moved point: %v", got)
	}
	if frame.Committed() != nil {
		t.Error("fresh frame should have no committed result")
	}
}

func TestHeadFrame_CommitDoesNotAccumulate(t *testing.T) {
	frame := NewHeadFrame()
	result := AlignmentResult{
		Scale:            r3.Vec{X: 2, Y: 2, Z: 2},
		Rotation:         r3.NewRotation(math.Pi/2, r3.Vec{Y: 1}),
		TranslationDelta: r3.Vec{X: 0.5},
	}

	frame.Commit(result)
	p := r3.Vec{X: 1, Y: 0, Z: 0}
	first := frame.Apply(p)

	// Committing the identical result again reproduces the same frame.
	frame.Commit(result)
	second := frame.Apply(p)

	if !vecsEqual(first, second, epsilon) {
		t.Errorf("repeated commit accumulated: %v then %v", first, second)
	}
}

func TestHeadFrame_ApplyOrder(t *testing.T) {
	// Scale first, then rotation, then offset: (1,0,0) doubles to (2,0,0),
	// a quarter turn about Y carries it to (0,0,-2), then the offset adds.
	frame := NewHeadFrame()
	frame.Commit(AlignmentResult{
		Scale:            r3.Vec{X: 2, Y: 1, Z: 1},
		Rotation:         r3.NewRotation(math.Pi/2, r3.Vec{Y: 1}),
		TranslationDelta: r3.Vec{Y: 1},
	})

	got := frame.Apply(r3.Vec{X: 1})
	if !vecsEqual(got, r3.Vec{Y: 1, Z: -2}, 1e-9) {
		t.Errorf("Apply = %v, want (0, 1, -2)", got)
	}
}

func TestHeadFrame_ResetRestoresIdentity(t *testing.T) {
	frame := NewHeadFrame()
	frame.Commit(AlignmentResult{
		Scale:            r3.Vec{X: 3, Y: 3, Z: 3},
		Rotation:         r3.NewRotation(1, r3.Vec{X: 1}),
		TranslationDelta: r3.Vec{Z: 5},
	})

	frame.Reset()

	p := r3.Vec{X: 1, Y: 2, Z: 3}
	if got := frame.Apply(p); !vecsEqual(got, p, epsilon) {
		t.Errorf("reset frame moved point: %v", got)
	}
	if frame.Committed() != nil {
		t.Error("Committed() should be nil after Reset")
	}

	// Reset is idempotent.
	frame.Reset()
	if got := frame.Apply(p); !vecsEqual(got, p, epsilon) {
		t.Errorf("second reset changed frame: %v", got)
	}
}

func TestHeadFrame_ResetKeepsManualOffset(t *testing.T) {
	frame := NewHeadFrame()
	frame.SetManualOffset(r3.Vec{X: 0.1}, r3.Vec{}, One())
	frame.Commit(AlignmentResult{Scale: One(), Rotation: IdentityRotation(), TranslationDelta: r3.Vec{Y: 2}})

	frame.Reset()

	// The manual offset belongs to the user and survives alignment resets.
	got := frame.Apply(r3.Vec{})
	if !vecsEqual(got, r3.Vec{X: 0.1}, epsilon) {
		t.Errorf("manual offset lost on reset: Apply(0) = %v", got)
	}
}

func TestHeadFrame_ManualComposesOnTop(t *testing.T) {
	frame := NewHeadFrame()
	frame.Commit(AlignmentResult{
		Scale:            One(),
		Rotation:         IdentityRotation(),
		TranslationDelta: r3.Vec{X: 1},
	})
	// Manual quarter turn about Y applies after the alignment translation.
	frame.SetManualOffset(r3.Vec{}, r3.Vec{Y: 90}, One())

	got := frame.Apply(r3.Vec{})
	if !vecsEqual(got, r3.Vec{Z: -1}, 1e-9) {
		t.Errorf("Apply = %v, want (0, 0, -1)", got)
	}
}

func TestHeadFrame_CommittedReturnsCopy(t *testing.T) {
	frame := NewHeadFrame()
	frame.Commit(AlignmentResult{Scale: One(), Rotation: IdentityRotation(), TranslationDelta: r3.Vec{X: 1}})

	committed := frame.Committed()
	committed.TranslationDelta.X = 99

	if frame.Committed().TranslationDelta.X != 1 {
		t.Error("Committed() leaked internal state")
	}
}

func TestHeadFrame_ApplyOrientation(t *testing.T) {
	frame := NewHeadFrame()
	frame.Commit(AlignmentResult{
		Scale:            One(),
		Rotation:         r3.NewRotation(math.Pi/2, r3.Vec{Y: 1}),
		TranslationDelta: r3.Vec{},
	})

	// An identity rig orientation picks up the alignment rotation.
	rotated := frame.ApplyOrientation(IdentityRotation())
	got := rotated.Rotate(r3.Vec{X: 1})
	if !vecsEqual(got, r3.Vec{Z: -1}, 1e-9) {
		t.Errorf("oriented +X = %v, want (0, 0, -1)", got)
	}
}
