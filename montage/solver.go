package montage

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateConfiguration reports a zero-length reference baseline, which
// leaves an axis scale undefined. It should never occur with the shipped
// montage but is checked before any division.
var ErrDegenerateConfiguration = errors.New("degenerate reference configuration")

// Anchor roles index the five correspondence slots of the solver inputs.
const (
	AnchorFront = iota
	AnchorBack
	AnchorLeft
	AnchorRight
	AnchorTop
	AnchorCount
)

// anchorScaleEps is the tolerance below which a reference baseline is
// considered collapsed.
const anchorScaleEps = 1e-9

// Solve computes the similarity transform (anisotropic scale, rotation,
// translation) mapping the five reference points onto the five observed
// points. Both arrays are indexed by anchor role.
//
// The resolution order is fixed: axis scales from landmark-pair distances,
// then the optimal rotation of the co-scaled sets via SVD of their
// cross-covariance, then the translation recentering the scaled/rotated
// reference centroid onto the observed centroid. The solve is closed form;
// it either succeeds in one pass or fails with ErrDegenerateConfiguration
// without touching any state.
func Solve(reference, observed [AnchorCount]r3.Vec) (AlignmentResult, error) {
	centerR := Centroid(reference[:])
	centerO := Centroid(observed[:])

	var r, o [AnchorCount]r3.Vec
	for i := 0; i < AnchorCount; i++ {
		r[i] = r3.Sub(reference[i], centerR)
		o[i] = r3.Sub(observed[i], centerO)
	}

	scale, err := axisScales(r, o)
	if err != nil {
		return AlignmentResult{}, err
	}

	for i := range r {
		r[i] = MulElem(scale, r[i])
	}

	rot, err := kabschRotation(r, o)
	if err != nil {
		return AlignmentResult{}, err
	}

	// The translation recenters the scaled, rotated reference centroid onto
	// the observed centroid. It is an additive delta on the frame, not a
	// folded-in matrix column, because the frame applies scale and rotation
	// before the offset.
	delta := r3.Sub(centerO, rot.Rotate(MulElem(scale, centerR)))

	return AlignmentResult{Scale: scale, Rotation: rot, TranslationDelta: delta}, nil
}

// axisScales derives the three independent axis scales from corresponding
// anchor-pair distances. X spans left-right, Z spans front-back, and Y is
// measured from the top anchor against the front/back midline rather than
// the full centroid.
func axisScales(r, o [AnchorCount]r3.Vec) (r3.Vec, error) {
	lrRef := Distance(r[AnchorLeft], r[AnchorRight])
	fbRef := Distance(r[AnchorFront], r[AnchorBack])
	topRef := Distance(r[AnchorTop], Midpoint(r[AnchorFront], r[AnchorBack]))

	if lrRef < anchorScaleEps {
		return r3.Vec{}, fmt.Errorf("%w: left/right reference anchors coincide", ErrDegenerateConfiguration)
	}
	if fbRef < anchorScaleEps {
		return r3.Vec{}, fmt.Errorf("%w: front/back reference anchors coincide", ErrDegenerateConfiguration)
	}
	if topRef < anchorScaleEps {
		return r3.Vec{}, fmt.Errorf("%w: top reference anchor lies on the front/back midline", ErrDegenerateConfiguration)
	}

	return r3.Vec{
		X: Distance(o[AnchorLeft], o[AnchorRight]) / lrRef,
		Y: Distance(o[AnchorTop], Midpoint(o[AnchorFront], o[AnchorBack])) / topRef,
		Z: Distance(o[AnchorFront], o[AnchorBack]) / fbRef,
	}, nil
}

// kabschRotation computes the proper rotation carrying the centered,
// co-scaled reference set onto the centered observed set via SVD of the
// cross-covariance matrix. A negative determinant marks a reflection; the U
// column of the smallest singular value is negated to force a proper
// rotation.
func kabschRotation(r, o [AnchorCount]r3.Vec) (r3.Rotation, error) {
	refM := mat.NewDense(AnchorCount, 3, nil)
	obsM := mat.NewDense(AnchorCount, 3, nil)
	for i := 0; i < AnchorCount; i++ {
		refM.SetRow(i, []float64{r[i].X, r[i].Y, r[i].Z})
		obsM.SetRow(i, []float64{o[i].X, o[i].Y, o[i].Z})
	}

	var h mat.Dense
	h.Mul(obsM.T(), refM)

	var svd mat.SVD
	if ok := svd.Factorize(&h, mat.SVDFull); !ok {
		return IdentityRotation(), fmt.Errorf("SVD factorization of cross-covariance failed")
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var rot mat.Dense
	rot.Mul(&u, v.T())

	if mat.Det(&rot) < 0 {
		// Singular values sort descending, so the last column of U
		// corresponds to the smallest.
		for i := 0; i < 3; i++ {
			u.Set(i, 2, -u.At(i, 2))
		}
		rot.Mul(&u, v.T())
	}

	return RotationFromMatrix(&rot), nil
}

// anchorPairs maps each anchor role to the layout landmark pair whose
// midpoint serves as the role's reference point.
var anchorPairs = [AnchorCount][2]string{
	AnchorFront: {"AFz", "Fpz"},
	AnchorBack:  {"OI1h", "OI2h"},
	AnchorLeft:  {"C5", "T7"},
	AnchorRight: {"C6", "T8"},
	AnchorTop:   {"Cz", "FCz"},
}

// AnchorName returns a human-readable role name for logs and API payloads.
func AnchorName(role int) string {
	switch role {
	case AnchorFront:
		return "front"
	case AnchorBack:
		return "back"
	case AnchorLeft:
		return "left"
	case AnchorRight:
		return "right"
	case AnchorTop:
		return "top"
	}
	return fmt.Sprintf("anchor-%d", role)
}

// ReferencePoints builds the solver's reference set from the locator: one
// landmark-pair midpoint per anchor role.
func ReferencePoints(loc *Locator) [AnchorCount]r3.Vec {
	var ref [AnchorCount]r3.Vec
	for role, pair := range anchorPairs {
		ref[role] = loc.Midpoint(pair[0], pair[1])
	}
	return ref
}
