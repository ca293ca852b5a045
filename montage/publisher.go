package montage

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// LandmarkPose is one published world-space landmark pose.
type LandmarkPose struct {
	Name        string `json:"name"`
	Position    Vec3   `json:"position"`
	Orientation Quat   `json:"orientation"`
	Visible     bool   `json:"visible"`
	Timestamp   int64  `json:"timestamp"`
}

// AlignmentStatus is the published state of the calibration cycle.
type AlignmentStatus struct {
	Calibrated bool             `json:"calibrated"`
	Result     *AlignmentRecord `json:"result,omitempty"`
	Timestamp  int64            `json:"timestamp"`
}

// Publisher manages publishing world-space landmark poses and alignment
// status to MQTT
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	poses         map[string]*LandmarkPose
	mu            sync.RWMutex
}

// NewPublisher creates a new pose publisher
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client, prefix string) *Publisher {
	if env := os.Getenv("MQTT_PUBLISH_PREFIX"); env != "" {
		prefix = env
	}
	if prefix == "" {
		prefix = "capmesh"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // QoS 0 for pose updates (fire and forget)
		retain:        true, // Retain for latest pose
		poses:         make(map[string]*LandmarkPose),
	}
}

// PublishLandmark publishes a single landmark's world-space pose to MQTT
// Publishes to both the individual topic and the combined landmarks topic
func (p *Publisher) PublishLandmark(name string, position r3.Vec, orientation r3.Rotation, visible bool) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	pose := &LandmarkPose{
		Name:        name,
		Position:    NewVec3(position),
		Orientation: NewQuat(orientation),
		Visible:     visible,
		Timestamp:   time.Now().Unix(),
	}

	p.mu.Lock()
	p.poses[name] = pose
	p.mu.Unlock()

	// Publish to individual topic: capmesh/landmark/{name}
	if err := p.publishIndividual(pose); err != nil {
		log.Printf("Error publishing pose for %s: %v", name, err)
		return err
	}

	return nil
}

// PublishLandmarks publishes a batch of poses followed by one combined
// message with the whole set
func (p *Publisher) PublishLandmarks(poses []LandmarkPose) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	now := time.Now().Unix()
	for i := range poses {
		poses[i].Timestamp = now
		pose := poses[i]
		p.poses[pose.Name] = &pose
	}
	p.mu.Unlock()

	return p.publishCombined()
}

// publishIndividual publishes one landmark pose to its individual topic
func (p *Publisher) publishIndividual(pose *LandmarkPose) error {
	topic := fmt.Sprintf("%s/landmark/%s", p.publishPrefix, pose.Name)

	payload, err := json.Marshal(pose)
	if err != nil {
		return fmt.Errorf("marshaling pose: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// publishCombined publishes all known landmark poses to the combined topic
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	poses := make([]*LandmarkPose, 0, len(p.poses))
	for _, pose := range p.poses {
		poses = append(poses, pose)
	}
	p.mu.RUnlock()

	if len(poses) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/landmarks", p.publishPrefix)

	message := map[string]interface{}{
		"landmarks": poses,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined poses: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// PublishAlignmentStatus publishes the current calibration state
func (p *Publisher) PublishAlignmentStatus(calibrated bool, result *AlignmentResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	status := AlignmentStatus{
		Calibrated: calibrated,
		Timestamp:  time.Now().Unix(),
	}
	if result != nil {
		record := NewAlignmentRecord(*result)
		status.Result = &record
	}

	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshaling alignment status: %w", err)
	}

	topic := fmt.Sprintf("%s/alignment", p.publishPrefix)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published alignment status: calibrated=%v", calibrated)
	return nil
}

// SetFiducialsVisible publishes the fiducial-overlay visibility toggle. It
// satisfies the aligner's visualizer hook so the detection overlay follows
// the calibration state machine.
func (p *Publisher) SetFiducialsVisible(visible bool) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	topic := fmt.Sprintf("%s/fiducials/visible", p.publishPrefix)
	payload, _ := json.Marshal(map[string]bool{"visible": visible})

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		log.Printf("Error publishing fiducial visibility: %v", token.Error())
	}
}

// GetPose returns the last published pose for a landmark
func (p *Publisher) GetPose(name string) (*LandmarkPose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pose, ok := p.poses[name]
	return pose, ok
}

// ClearPoses forgets all cached poses (e.g. after a reset)
func (p *Publisher) ClearPoses() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poses = make(map[string]*LandmarkPose)
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
