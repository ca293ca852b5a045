package montage

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// axisReference is a well-conditioned anchor set: one unit anchor per axis,
// centroid at the origin.
func axisReference() [AnchorCount]r3.Vec {
	var ref [AnchorCount]r3.Vec
	ref[AnchorFront] = r3.Vec{Z: 1}
	ref[AnchorBack] = r3.Vec{Z: -1}
	ref[AnchorLeft] = r3.Vec{X: -1}
	ref[AnchorRight] = r3.Vec{X: 1}
	ref[AnchorTop] = r3.Vec{Y: 1}
	return ref
}

// transformAnchors applies scale (in the reference frame), rotation, and
// translation to every anchor.
func transformAnchors(ref [AnchorCount]r3.Vec, scale r3.Vec, rot r3.Rotation, offset r3.Vec) [AnchorCount]r3.Vec {
	var out [AnchorCount]r3.Vec
	for i := range ref {
		out[i] = r3.Add(rot.Rotate(MulElem(scale, ref[i])), offset)
	}
	return out
}

func TestSolve_Identity(t *testing.T) {
	ref := axisReference()

	result, err := Solve(ref, ref)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if !vecsEqual(result.Scale, One(), 1e-9) {
		t.Errorf("Scale = %v, want (1, 1, 1)", result.Scale)
	}
	if angle := RotationAngle(result.Rotation); angle > 1e-6 {
		t.Errorf("rotation angle = %v, want 0", angle)
	}
	if !vecsEqual(result.TranslationDelta, r3.Vec{}, 1e-9) {
		t.Errorf("TranslationDelta = %v, want zero", result.TranslationDelta)
	}
}

func TestSolve_ScaleAndQuarterTurn(t *testing.T) {
	// Observed set is the reference scaled by 2 and rotated 90 degrees about
	// the vertical axis, with coincident centroids.
	ref := axisReference()
	rot := r3.NewRotation(math.Pi/2, r3.Vec{Y: 1})
	observed := transformAnchors(ref, r3.Vec{X: 2, Y: 2, Z: 2}, rot, r3.Vec{})

	result, err := Solve(ref, observed)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	if !vecsEqual(result.Scale, r3.Vec{X: 2, Y: 2, Z: 2}, 1e-6) {
		t.Errorf("Scale = %v, want (2, 2, 2)", result.Scale)
	}
	if angle := RotationAngle(result.Rotation) * 180 / math.Pi; math.Abs(angle-90) > 1e-4 {
		t.Errorf("rotation angle = %v degrees, want 90", angle)
	}
	if !vecsEqual(result.TranslationDelta, r3.Vec{}, 1e-6) {
		t.Errorf("TranslationDelta = %v, want zero", result.TranslationDelta)
	}
}

func TestSolve_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		scale  r3.Vec
		rot    r3.Rotation
		offset r3.Vec
	}{
		{
			name:   "translation only",
			scale:  One(),
			rot:    IdentityRotation(),
			offset: r3.Vec{X: 0.3, Y: 1.2, Z: -0.5},
		},
		{
			name:   "anisotropic scale",
			scale:  r3.Vec{X: 1.1, Y: 0.9, Z: 1.3},
			rot:    IdentityRotation(),
			offset: r3.Vec{},
		},
		{
			name:   "full pose",
			scale:  r3.Vec{X: 1.2, Y: 1.05, Z: 0.95},
			rot:    r3.NewRotation(0.7, r3.Vec{X: 0.2, Y: 1, Z: -0.3}),
			offset: r3.Vec{X: -0.1, Y: 1.5, Z: 0.4},
		},
		{
			name:   "head sized",
			scale:  r3.Vec{X: 0.095, Y: 0.11, Z: 0.1},
			rot:    r3.NewRotation(-0.2, r3.Vec{Z: 1}),
			offset: r3.Vec{X: 0.02, Y: 1.42, Z: -0.01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := axisReference()
			observed := transformAnchors(ref, tt.scale, tt.rot, tt.offset)

			result, err := Solve(ref, observed)
			if err != nil {
				t.Fatalf("Solve: %v", err)
			}

			// Pushing the reference anchors through the solved transform must
			// land within 1e-4 of the observed anchors.
			for i := range ref {
				got := r3.Add(result.Rotation.Rotate(MulElem(result.Scale, ref[i])), result.TranslationDelta)
				if Distance(got, observed[i]) > 1e-4 {
					t.Errorf("anchor %s: transformed = %v, observed = %v (err %v)",
						AnchorName(i), got, observed[i], Distance(got, observed[i]))
				}
			}
		})
	}
}

func TestSolve_Deterministic(t *testing.T) {
	ref := axisReference()
	observed := transformAnchors(ref,
		r3.Vec{X: 1.07, Y: 0.98, Z: 1.02},
		r3.NewRotation(0.4, r3.Vec{X: 0.1, Y: 1, Z: 0.2}),
		r3.Vec{Y: 1.4})

	first, err := Solve(ref, observed)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	second, err := Solve(ref, observed)
	if err != nil {
		t.Fatalf("Solve (second): %v", err)
	}

	if first != second {
		t.Errorf("identical inputs produced different results:\n%+v\n%+v", first, second)
	}
}

func TestSolve_DegenerateLeftRight(t *testing.T) {
	ref := axisReference()
	ref[AnchorLeft] = ref[AnchorRight] // collapse the X baseline

	_, err := Solve(ref, axisReference())
	if err == nil {
		t.Fatal("expected error for coincident left/right anchors")
	}
	if !errors.Is(err, ErrDegenerateConfiguration) {
		t.Errorf("error = %v, want ErrDegenerateConfiguration", err)
	}
}

func TestSolve_DegenerateTopOnMidline(t *testing.T) {
	ref := axisReference()
	ref[AnchorTop] = Midpoint(ref[AnchorFront], ref[AnchorBack])

	_, err := Solve(ref, axisReference())
	if !errors.Is(err, ErrDegenerateConfiguration) {
		t.Errorf("error = %v, want ErrDegenerateConfiguration", err)
	}
}

func TestSolve_MirroredObservationsKeepHandedness(t *testing.T) {
	// Mirror-image observations must never flip the montage: the solver has
	// to return a proper rotation even when the raw SVD solution would be a
	// reflection.
	ref := axisReference()
	observed := ref
	for i := range observed {
		observed[i].X = -observed[i].X
	}

	result, err := Solve(ref, observed)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	// A proper rotation preserves the handedness of a rotated triad.
	ex := result.Rotation.Rotate(r3.Vec{X: 1})
	ey := result.Rotation.Rotate(r3.Vec{Y: 1})
	ez := result.Rotation.Rotate(r3.Vec{Z: 1})
	if triple := r3.Dot(r3.Cross(ex, ey), ez); triple < 0.99 {
		t.Errorf("rotated triad triple product = %v, want +1 (proper rotation)", triple)
	}

	// Scales stay positive; the reflection is absorbed as a best-fit proper
	// rotation, not as a negative axis scale.
	if result.Scale.X <= 0 || result.Scale.Y <= 0 || result.Scale.Z <= 0 {
		t.Errorf("Scale = %v, want all components positive", result.Scale)
	}
}

func TestReferencePoints(t *testing.T) {
	scene := NewScene()
	layout := DefaultLayout()
	projector := NewProjector(HeadConfig{
		SpawnOrigin:    Vec3{Y: 1.4},
		Center:         Vec3{Y: 1.4},
		PreScale:       0.1,
		SurfaceRadius:  0.1,
		MaxRayDistance: 1,
	}, nil)
	scene.SetPlacements(projector.PlaceAll(layout))

	ref := ReferencePoints(NewLocator(scene))

	// Midline anchors have no lateral offset; lateral anchors mirror each
	// other across the midline plane.
	if math.Abs(ref[AnchorFront].X) > 1e-9 || math.Abs(ref[AnchorBack].X) > 1e-9 || math.Abs(ref[AnchorTop].X) > 1e-9 {
		t.Errorf("midline anchors off the midline: front=%v back=%v top=%v",
			ref[AnchorFront], ref[AnchorBack], ref[AnchorTop])
	}
	if math.Abs(ref[AnchorLeft].X+ref[AnchorRight].X) > 1e-9 {
		t.Errorf("left/right anchors not mirrored: %v vs %v", ref[AnchorLeft], ref[AnchorRight])
	}

	// The top anchor sits above the front/back midline.
	mid := Midpoint(ref[AnchorFront], ref[AnchorBack])
	if ref[AnchorTop].Y <= mid.Y {
		t.Errorf("top anchor %v not above front/back midline %v", ref[AnchorTop], mid)
	}
}
