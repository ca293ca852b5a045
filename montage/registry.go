package montage

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrIncomplete reports that fewer than five distinct fiducial ids have been
// observed. Callers wait for more observations; no state is mutated.
var ErrIncomplete = errors.New("incomplete fiducial set")

// Fiducial marker ids, one per anchor role. Observations with any other id
// are ignored.
const (
	FiducialFront = 1
	FiducialBack  = 2
	FiducialLeft  = 3
	FiducialRight = 4
	FiducialTop   = 5
)

// fiducialRole maps a marker id to its anchor role index, or -1.
func fiducialRole(id int) int {
	switch id {
	case FiducialFront:
		return AnchorFront
	case FiducialBack:
		return AnchorBack
	case FiducialLeft:
		return AnchorLeft
	case FiducialRight:
		return AnchorRight
	case FiducialTop:
		return AnchorTop
	}
	return -1
}

// Registry accumulates the most recent pose observation per fiducial id.
// It is a two-state machine: while Uncalibrated, observations upsert by id;
// once calibration is committed the set is frozen until Reset.
type Registry struct {
	mu           sync.RWMutex
	observations map[int]FiducialObservation
	calibrated   bool
}

// NewRegistry creates an empty, uncalibrated registry.
func NewRegistry() *Registry {
	return &Registry{
		observations: make(map[int]FiducialObservation, AnchorCount),
	}
}

// Observe records the latest pose for a marker id. Ids outside 1..5 are
// ignored, as are all observations while the registry is calibrated.
func (g *Registry) Observe(id int, position r3.Vec, orientation r3.Rotation) {
	if fiducialRole(id) < 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calibrated {
		return
	}
	g.observations[id] = FiducialObservation{ID: id, Position: position, Orientation: orientation}
}

// TryGetAll returns the five observations ordered by anchor role, or
// ErrIncomplete naming the first missing marker.
func (g *Registry) TryGetAll() ([AnchorCount]FiducialObservation, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out [AnchorCount]FiducialObservation
	for _, id := range []int{FiducialFront, FiducialBack, FiducialLeft, FiducialRight, FiducialTop} {
		obs, ok := g.observations[id]
		if !ok {
			return out, fmt.Errorf("%w: marker %d (%s) not yet observed", ErrIncomplete, id, AnchorName(fiducialRole(id)))
		}
		out[fiducialRole(id)] = obs
	}
	return out, nil
}

// Complete reports whether all five marker ids have at least one observation.
func (g *Registry) Complete() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.observations) == AnchorCount
}

// Observations returns a snapshot of the current observations keyed by id.
func (g *Registry) Observations() map[int]FiducialObservation {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[int]FiducialObservation, len(g.observations))
	for id, obs := range g.observations {
		out[id] = obs
	}
	return out
}

// Calibrated reports the current state-machine state.
func (g *Registry) Calibrated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.calibrated
}

// MarkCalibrated freezes the registry. Further Observe calls are no-ops
// until Reset.
func (g *Registry) MarkCalibrated() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calibrated = true
}

// Reset transitions back to Uncalibrated. Prior observations are retained;
// the latest-per-id rule keeps behavior well defined once upserts resume.
func (g *Registry) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calibrated = false
}

// ClearObservations drops all recorded observations for a cold restart of
// the calibration procedure.
func (g *Registry) ClearObservations() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observations = make(map[int]FiducialObservation, AnchorCount)
}
