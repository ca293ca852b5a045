package montage

import (
	"log"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// FiducialVisualizer is the detection/visualization collaborator: the
// fiducial overlay is hidden when calibration commits and shown again on
// reset.
type FiducialVisualizer interface {
	SetFiducialsVisible(visible bool)
}

// Aligner orchestrates calibration: it gathers the reference midpoints from
// the scene, runs the closed-form solve against the observed fiducials, and
// commits the result to the head frame. It is fed by the detection stream
// and triggered on demand or, when autoAlign is set, on first completeness.
type Aligner struct {
	registry   *Registry
	locator    *Locator
	frame      *HeadFrame
	visualizer FiducialVisualizer
	cachePath  string
	autoAlign  bool

	mu sync.Mutex
}

// NewAligner wires an aligner over the scene's rig locator. visualizer may
// be nil; cachePath empty disables persistence.
func NewAligner(registry *Registry, scene *Scene, frame *HeadFrame, visualizer FiducialVisualizer, cachePath string, autoAlign bool) *Aligner {
	return &Aligner{
		registry:   registry,
		locator:    NewLocator(scene),
		frame:      frame,
		visualizer: visualizer,
		cachePath:  cachePath,
		autoAlign:  autoAlign,
	}
}

// SetVisualizer attaches the visualization collaborator after construction.
// Service wiring needs this: the publisher exists only once the broker
// client is up, which is after the aligner (and its cache restore) is built.
func (a *Aligner) SetVisualizer(v FiducialVisualizer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.visualizer = v
}

// OnObservation is the detection-stream callback. It upserts the observation
// and, in auto-align mode, solves once the fifth distinct marker arrives.
func (a *Aligner) OnObservation(id int, position r3.Vec, orientation r3.Rotation) {
	a.registry.Observe(id, position, orientation)

	if !a.autoAlign || a.registry.Calibrated() || !a.registry.Complete() {
		return
	}
	if _, err := a.Align(); err != nil {
		log.Printf("[ALIGN] auto-align failed: %v", err)
	}
}

// Align runs one calibration attempt: collect the five observations, solve,
// commit. On ErrIncomplete or ErrDegenerateConfiguration it aborts without
// side effects; the head frame is only touched after a full successful
// solve.
func (a *Aligner) Align() (AlignmentResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	observations, err := a.registry.TryGetAll()
	if err != nil {
		return AlignmentResult{}, err
	}

	reference := ReferencePoints(a.locator)
	var observed [AnchorCount]r3.Vec
	for role, obs := range observations {
		observed[role] = obs.Position
	}

	result, err := Solve(reference, observed)
	if err != nil {
		return AlignmentResult{}, err
	}

	a.frame.Commit(result)
	a.registry.MarkCalibrated()
	if a.visualizer != nil {
		a.visualizer.SetFiducialsVisible(false)
	}

	log.Printf("[ALIGN] committed: scale=(%.4f, %.4f, %.4f) delta=(%.4f, %.4f, %.4f)",
		result.Scale.X, result.Scale.Y, result.Scale.Z,
		result.TranslationDelta.X, result.TranslationDelta.Y, result.TranslationDelta.Z)

	if a.cachePath != "" {
		if err := SaveAlignment(a.cachePath, &AlignmentData{Result: NewAlignmentRecord(result)}); err != nil {
			log.Printf("[ALIGN] warning: failed to save alignment cache: %v", err)
		}
	}

	return result, nil
}

// Reset restores the identity alignment, reopens the registry for
// observations, and signals the visualization collaborator to resume
// display. It is unconditional and idempotent.
func (a *Aligner) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frame.Reset()
	a.registry.Reset()
	if a.visualizer != nil {
		a.visualizer.SetFiducialsVisible(true)
	}
	log.Printf("[ALIGN] reset to identity")
}

// Restore re-commits a previously cached alignment, e.g. after a service
// restart. The registry is marked calibrated so stale detections do not
// overwrite the restored pose.
func (a *Aligner) Restore(data *AlignmentData) {
	if data == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.frame.Commit(data.Result.Result())
	a.registry.MarkCalibrated()
	if a.visualizer != nil {
		a.visualizer.SetFiducialsVisible(false)
	}
	log.Printf("[ALIGN] restored cached alignment from %d", data.LastUpdated)
}
