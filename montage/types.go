package montage

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// LayoutPoint is a single named landmark position in the montage's own local
// reference frame (X anterior, Y left, Z superior, unit-sphere scalp).
type LayoutPoint struct {
	Name  string
	Local r3.Vec
}

// PlacedLandmark is a landmark anchored to the head surface at setup time.
// Position and Orientation are in rig coordinates (before the alignment and
// manual-offset frames apply); only Visible mutates after placement.
type PlacedLandmark struct {
	Name        string
	Position    r3.Vec
	Orientation r3.Rotation
	Visible     bool
}

// FiducialObservation is the latest tracked pose for one physical marker.
// IDs 1..5 correspond to the front/back/left/right/top anchor roles.
type FiducialObservation struct {
	ID          int
	Position    r3.Vec
	Orientation r3.Rotation
}

// AlignmentResult is the similarity transform mapping the montage reference
// points onto the observed fiducials. It is derived per solve and applied
// once to the alignment frame; it is never stored incrementally.
type AlignmentResult struct {
	Scale            r3.Vec
	Rotation         r3.Rotation
	TranslationDelta r3.Vec
}

// Vec3 is the wire/config representation of a 3D vector.
type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Vec converts to the computation type.
func (v Vec3) Vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// NewVec3 converts from the computation type.
func NewVec3(v r3.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Quat is the wire/config representation of an orientation quaternion.
type Quat struct {
	W float64 `yaml:"w" json:"w"`
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Rotation converts to the computation type.
func (q Quat) Rotation() r3.Rotation {
	return r3.Rotation(quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z})
}

// NewQuat converts from the computation type.
func NewQuat(r r3.Rotation) Quat {
	n := quat.Number(r)
	return Quat{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// ManualOffsetConfig is an optional user-controlled nudge applied on top of
// the automatic alignment frame.
type ManualOffsetConfig struct {
	Position Vec3 `yaml:"position" json:"position"`
	Rotation Vec3 `yaml:"rotation" json:"rotation"` // Euler angles, degrees
	Scale    Vec3 `yaml:"scale" json:"scale"`
}

// HeadConfig describes the spawn geometry for landmark placement.
type HeadConfig struct {
	SpawnOrigin    Vec3    `yaml:"spawnOrigin" json:"spawnOrigin"`
	Center         Vec3    `yaml:"center" json:"center"`                 // interior reference point rays are cast toward
	PreScale       float64 `yaml:"preScale" json:"preScale"`             // montage unit-sphere -> world metres
	SurfaceRadius  float64 `yaml:"surfaceRadius" json:"surfaceRadius"`   // default sphere surface for placement
	MaxRayDistance float64 `yaml:"maxRayDistance" json:"maxRayDistance"` // raycast bound
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker          string `yaml:"broker" json:"broker"`
	ClientID        string `yaml:"clientId" json:"clientId"`
	Username        string `yaml:"username,omitempty" json:"username,omitempty"`
	Password        string `yaml:"password,omitempty" json:"password,omitempty"`
	FiducialTopic   string `yaml:"fiducialTopic" json:"fiducialTopic"`
	ViewerTopic     string `yaml:"viewerTopic,omitempty" json:"viewerTopic,omitempty"`
	VisibilityTopic string `yaml:"visibilityTopic,omitempty" json:"visibilityTopic,omitempty"`
	PublishPrefix   string `yaml:"publishPrefix" json:"publishPrefix"`
}

// Config represents the full configuration file.
type Config struct {
	MQTT           MQTTConfig          `yaml:"mqtt" json:"mqtt"`
	Head           HeadConfig          `yaml:"head" json:"head"`
	LayoutFile     string              `yaml:"layoutFile,omitempty" json:"layoutFile,omitempty"`
	AlignmentCache string              `yaml:"alignmentCache,omitempty" json:"alignmentCache,omitempty"`
	CullDistance   float64             `yaml:"cullDistance,omitempty" json:"cullDistance,omitempty"` // landmark visibility radius, metres
	AutoAlign      bool                `yaml:"autoAlign" json:"autoAlign"`                           // solve on first fiducial completeness
	ManualOffset   *ManualOffsetConfig `yaml:"manualOffset,omitempty" json:"manualOffset,omitempty"`
}

// HasManualOffset returns true when the config carries a manual nudge.
func (c *Config) HasManualOffset() bool {
	return c.ManualOffset != nil
}
