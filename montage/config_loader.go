package montage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfig returns a configuration with sensible defaults: a local
// broker, the head geometry used by the reference rig, and placement onto a
// 10 cm sphere.
func DefaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker:        "tcp://localhost:1883",
			ClientID:      "capmesh",
			FiducialTopic: "capmesh/fiducial/+",
			PublishPrefix: "capmesh",
		},
		Head: HeadConfig{
			SpawnOrigin:    Vec3{X: 0, Y: 1.4, Z: 0},
			Center:         Vec3{X: 0, Y: 1.4, Z: 0},
			PreScale:       0.1,
			SurfaceRadius:  0.1,
			MaxRayDistance: 1.0,
		},
		AlignmentCache: DefaultAlignmentCachePath,
		AutoAlign:      true,
	}
}

// LoadConfig loads the unified configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	// Validate required fields
	if config.MQTT.Broker == "" {
		return nil, fmt.Errorf("mqtt.broker is required")
	}
	if config.MQTT.FiducialTopic == "" {
		return nil, fmt.Errorf("mqtt.fiducialTopic is required")
	}
	if config.Head.PreScale <= 0 {
		return nil, fmt.Errorf("head.preScale must be positive, got %g", config.Head.PreScale)
	}
	if config.Head.SurfaceRadius < 0 {
		return nil, fmt.Errorf("head.surfaceRadius must not be negative, got %g", config.Head.SurfaceRadius)
	}
	if config.Head.MaxRayDistance <= 0 {
		config.Head.MaxRayDistance = 1.0
	}
	if config.ManualOffset != nil && config.ManualOffset.Scale == (Vec3{}) {
		config.ManualOffset.Scale = Vec3{X: 1, Y: 1, Z: 1}
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
