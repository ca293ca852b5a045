package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kwv/capmesh/montage"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *montage.Config
	Layout     *montage.Layout
	Scene      *montage.Scene
	Registry   *montage.Registry
	Frame      *montage.HeadFrame
	Aligner    *montage.Aligner
	MQTTClient *montage.MQTTClient
	Publisher  *montage.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile     string
	LayoutFile     string
	AlignmentCache string
	ObservedFile   string
	HttpPort       int
	MqttMode       bool
	HttpMode       bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Scene:    montage.NewScene(),
		Registry: montage.NewRegistry(),
		Frame:    montage.NewHeadFrame(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.LayoutFile = opts.LayoutFile
	a.AlignmentCache = opts.AlignmentCache
	a.ObservedFile = opts.ObservedFile
	a.HttpPort = opts.HttpPort
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
}

// loadConfig resolves the configuration, falling back to defaults when no
// config file exists at the default path.
func (a *App) loadConfig() *montage.Config {
	if _, err := os.Stat(a.ConfigFile); err != nil {
		if a.ConfigFile != "config.yaml" {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("No config file at %s, using defaults", a.ConfigFile)
		return montage.DefaultConfig()
	}

	config, err := montage.LoadConfig(a.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded config from %s", a.ConfigFile)
	return config
}

// loadLayout resolves the electrode layout: CLI flag, then config, then the
// built-in table.
func (a *App) loadLayout(config *montage.Config) *montage.Layout {
	path := a.LayoutFile
	if path == "" {
		path = config.LayoutFile
	}
	if path == "" {
		log.Printf("Using built-in electrode layout (%d landmarks)", montage.DefaultLayout().Len())
		return montage.DefaultLayout()
	}

	layout, err := montage.LoadLayoutFile(path)
	if err != nil {
		log.Fatalf("Failed to load layout file %s: %v", path, err)
	}
	log.Printf("Loaded %d landmarks from %s", layout.Len(), path)
	return layout
}

// place runs the one-shot surface placement and seeds the scene.
func (a *App) place(config *montage.Config, layout *montage.Layout) []montage.PlacedLandmark {
	surface := montage.SphereSurface{
		Center: config.Head.Center.Vec(),
		Radius: config.Head.SurfaceRadius,
	}
	projector := montage.NewProjector(config.Head, surface)
	placed := projector.PlaceAll(layout)
	a.Scene.SetPlacements(placed)
	return placed
}

// RunPlaceOnly places the montage on the head surface and prints the
// resulting rig-space poses
func (a *App) RunPlaceOnly() {
	config := a.loadConfig()
	layout := a.loadLayout(config)
	placed := a.place(config, layout)

	fmt.Printf("Placed %d landmarks\n\n", len(placed))
	for _, lm := range placed {
		fmt.Printf("%-8s pos(%8.4f, %8.4f, %8.4f)\n",
			lm.Name, lm.Position.X, lm.Position.Y, lm.Position.Z)
	}
}

// observedFile is the on-disk format for --solve mode: one captured pose per
// fiducial marker.
type observedFile struct {
	Fiducials []struct {
		ID          int          `json:"id" yaml:"id"`
		Position    montage.Vec3 `json:"position" yaml:"position"`
		Orientation montage.Quat `json:"orientation" yaml:"orientation"`
	} `json:"fiducials" yaml:"fiducials"`
}

// RunSolveFile places the montage, loads captured fiducial poses from a JSON
// file, runs one alignment solve, and prints the result
func (a *App) RunSolveFile() {
	config := a.loadConfig()
	layout := a.loadLayout(config)
	a.place(config, layout)

	data, err := os.ReadFile(a.ObservedFile)
	if err != nil {
		log.Fatalf("Failed to read observations file: %v", err)
	}
	var obs observedFile
	if err := json.Unmarshal(data, &obs); err != nil {
		log.Fatalf("Failed to parse observations file: %v", err)
	}

	for _, f := range obs.Fiducials {
		a.Registry.Observe(f.ID, f.Position.Vec(), f.Orientation.Rotation())
	}

	aligner := montage.NewAligner(a.Registry, a.Scene, a.Frame, nil, "", false)
	result, err := aligner.Align()
	if err != nil {
		log.Fatalf("Alignment failed: %v", err)
	}

	fmt.Printf("Alignment solved:\n")
	fmt.Printf("  Scale:    (%.6f, %.6f, %.6f)\n", result.Scale.X, result.Scale.Y, result.Scale.Z)
	q := montage.NewQuat(result.Rotation)
	fmt.Printf("  Rotation: (w=%.6f, x=%.6f, y=%.6f, z=%.6f)\n", q.W, q.X, q.Y, q.Z)
	fmt.Printf("  Delta:    (%.6f, %.6f, %.6f)\n",
		result.TranslationDelta.X, result.TranslationDelta.Y, result.TranslationDelta.Z)

	if a.AlignmentCache != "" {
		record := montage.NewAlignmentRecord(result)
		if err := montage.SaveAlignment(a.AlignmentCache, &montage.AlignmentData{Result: record}); err != nil {
			log.Printf("Warning: failed to save alignment cache: %v", err)
		} else {
			fmt.Printf("Saved alignment cache: %s\n", a.AlignmentCache)
		}
	}
}

// RunService starts the combined MQTT and/or HTTP service
func (a *App) RunService() {
	fmt.Println("Starting capmesh service...")

	// 1. Load config (required for service mode)
	config := a.loadConfig()
	a.Config = config

	// 2. Place the montage on the head surface
	layout := a.loadLayout(config)
	a.Layout = layout
	placed := a.place(config, layout)
	fmt.Printf("Placed %d landmarks on head surface\n", len(placed))

	// 3. Apply manual offset from config if present
	if config.HasManualOffset() {
		mo := config.ManualOffset
		a.Frame.SetManualOffset(mo.Position.Vec(), mo.Rotation.Vec(), mo.Scale.Vec())
		log.Printf("Applied manual offset from config")
	}

	// 4. Resolve alignment cache path
	resolvedCache := a.AlignmentCache
	if resolvedCache == "" {
		resolvedCache = config.AlignmentCache
	}
	if resolvedCache == "" {
		resolvedCache = montage.DefaultAlignmentCachePath
	}
	if dir := filepath.Dir(resolvedCache); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Printf("Warning: cannot create cache directory %s: %v", dir, err)
		}
	}

	// 5. Wire the aligner over the scene, frame, and registry
	a.Aligner = montage.NewAligner(a.Registry, a.Scene, a.Frame, nil, resolvedCache, config.AutoAlign)

	// 6. Restore a cached alignment if one exists
	cache, err := montage.LoadAlignment(resolvedCache)
	if err != nil {
		log.Printf("Warning: failed to load alignment cache %s: %v", resolvedCache, err)
	} else if cache != nil {
		a.Aligner.Restore(cache)
		log.Printf("Restored alignment cache from %s", resolvedCache)
	} else {
		log.Printf("No alignment cache at %s, starting uncalibrated", resolvedCache)
	}

	// 7. Start MQTT if enabled
	if a.MqttMode {
		observationHandler := func(id int, position montage.Vec3, orientation montage.Quat) {
			a.Aligner.OnObservation(id, position.Vec(), orientation.Rotation())
		}
		viewerHandler := func(position montage.Vec3) {
			a.Scene.SetViewer(position.Vec())
		}

		mqttClient, err := montage.InitMQTT(config, observationHandler, viewerHandler)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		a.MQTTClient = mqttClient

		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}

		a.Publisher = montage.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		a.Aligner.SetVisualizer(a.Publisher)
		fmt.Println("MQTT pose publisher initialized")
	}

	// 8. Start HTTP server if enabled
	if a.HttpMode {
		httpServer := newHTTPServer(a)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", a.HttpPort)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
			log.Printf("[HTTP] Server stopped unexpectedly")
		}()
	}

	// 9. Periodic publish and visibility culling
	stopTicker := make(chan struct{})
	go a.runPublishLoop(stopTicker)

	// 10. Print service info
	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Printf("  Fiducial topic: %s\n", config.MQTT.FiducialTopic)
		if config.MQTT.ViewerTopic != "" {
			fmt.Printf("  Viewer topic:   %s\n", config.MQTT.ViewerTopic)
		}
		publishPrefix := config.MQTT.PublishPrefix
		if publishPrefix == "" {
			publishPrefix = "capmesh"
		}
		fmt.Printf("  Publishing to:  %s/landmark/{name}\n", publishPrefix)
		fmt.Printf("  Combined poses: %s/landmarks\n", publishPrefix)
		fmt.Printf("  Alignment:      %s/alignment\n", publishPrefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET  /health         - Health check")
		fmt.Println("  GET  /api/landmarks  - World-space landmark poses")
		fmt.Println("  GET  /api/fiducials  - Latest fiducial observations")
		fmt.Println("  GET  /api/alignment  - Committed alignment")
		fmt.Println("  POST /api/align      - Run alignment solve")
		fmt.Println("  POST /api/reset      - Reset to identity")
		fmt.Println("  POST /api/offset     - Set manual offset")
		fmt.Println("  POST /api/viewer     - Set viewer position")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	// 11. Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	close(stopTicker)
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Println("Service stopped")
}

// runPublishLoop periodically culls landmark visibility against the viewer
// position and publishes current world-space poses.
func (a *App) runPublishLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if a.Config.CullDistance > 0 {
				a.Scene.CullByDistance(a.Frame.Apply, a.Config.CullDistance)
			}

			if a.Publisher == nil {
				continue
			}
			poses := worldPoses(a.Scene, a.Frame)
			if err := a.Publisher.PublishLandmarks(poses); err != nil {
				log.Printf("Error publishing landmark poses: %v", err)
			}
			if err := a.Publisher.PublishAlignmentStatus(a.Registry.Calibrated(), a.Frame.Committed()); err != nil {
				log.Printf("Error publishing alignment status: %v", err)
			}
		}
	}
}

// worldPoses maps the scene's rig-space landmarks through the head frame.
func worldPoses(scene *montage.Scene, frame *montage.HeadFrame) []montage.LandmarkPose {
	landmarks := scene.Landmarks()
	poses := make([]montage.LandmarkPose, 0, len(landmarks))
	for _, lm := range landmarks {
		poses = append(poses, montage.LandmarkPose{
			Name:        lm.Name,
			Position:    montage.NewVec3(frame.Apply(lm.Position)),
			Orientation: montage.NewQuat(frame.ApplyOrientation(lm.Orientation)),
			Visible:     lm.Visible,
		})
	}
	return poses
}
