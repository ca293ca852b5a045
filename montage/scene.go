package montage

import (
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Scene owns the placed landmarks for the application session. Placement
// happens once at setup; afterwards only the visibility flags mutate. MQTT
// callbacks and HTTP handlers both read it, hence the lock.
type Scene struct {
	mu        sync.RWMutex
	landmarks map[string]*PlacedLandmark
	order     []string
	viewer    *r3.Vec
}

// NewScene creates an empty scene.
func NewScene() *Scene {
	return &Scene{landmarks: make(map[string]*PlacedLandmark)}
}

// SetPlacements installs the projected landmarks, replacing any prior set.
func (s *Scene) SetPlacements(placed []PlacedLandmark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.landmarks = make(map[string]*PlacedLandmark, len(placed))
	s.order = make([]string, 0, len(placed))
	for i := range placed {
		lm := placed[i]
		key := strings.ToUpper(lm.Name)
		s.landmarks[key] = &lm
		s.order = append(s.order, key)
	}
}

// RigPosition resolves a landmark name to its rig-space placement position.
// Unknown names resolve to the zero vector so that pair combinations degrade
// gracefully to a zero contribution.
func (s *Scene) RigPosition(name string) r3.Vec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lm, ok := s.landmarks[strings.ToUpper(name)]
	if !ok {
		return r3.Vec{}
	}
	return lm.Position
}

// Landmarks returns the placed landmarks in table order.
func (s *Scene) Landmarks() []PlacedLandmark {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PlacedLandmark, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.landmarks[key])
	}
	return out
}

// Len returns the number of placed landmarks.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.landmarks)
}

// SetViewer updates the camera-like position used for visibility culling.
func (s *Scene) SetViewer(pos r3.Vec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pos
	s.viewer = &p
}

// ClearViewer removes the viewer; culling degrades to "no culling" and all
// landmarks become visible again.
func (s *Scene) ClearViewer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = nil
	for _, lm := range s.landmarks {
		lm.Visible = true
	}
}

// CullByDistance runs the per-frame visibility pass: each landmark's world
// position is compared against the viewer and only the Visible flag is
// written. world maps rig positions to world space (the head frame's Apply).
// Without a viewer, every landmark is visible.
func (s *Scene) CullByDistance(world func(r3.Vec) r3.Vec, maxDistance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewer == nil || maxDistance <= 0 {
		for _, lm := range s.landmarks {
			lm.Visible = true
		}
		return
	}
	for _, lm := range s.landmarks {
		lm.Visible = Distance(world(lm.Position), *s.viewer) <= maxDistance
	}
}

// VisibleNames returns the sorted names of currently visible landmarks.
func (s *Scene) VisibleNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for _, key := range s.order {
		if s.landmarks[key].Visible {
			names = append(names, s.landmarks[key].Name)
		}
	}
	sort.Strings(names)
	return names
}
