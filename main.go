package main

import (
	"flag"
	"fmt"
)

// Version is set at build time via -ldflags
var Version = "dev"

// AppOptions carries the parsed CLI flags into the App
type AppOptions struct {
	ConfigFile     string
	LayoutFile     string
	AlignmentCache string
	ObservedFile   string
	HttpPort       int
	MqttMode       bool
	HttpMode       bool
}

var (
	configFile     = flag.String("config", "config.yaml", "Path to configuration file")
	layoutFile     = flag.String("layout", "", "Path to electrode layout file (default: built-in 10-05 table)")
	alignmentCache = flag.String("alignment-cache", "", "Path to alignment cache file")
	placeOnly      = flag.Bool("place-only", false, "Place landmarks on the head surface, print poses, and exit")
	solveFile      = flag.String("solve", "", "Solve alignment from a captured fiducial observations file and exit")
	mqttMode       = flag.Bool("mqtt", false, "Run MQTT service mode for real-time fiducial tracking")
	httpMode       = flag.Bool("http", false, "Enable HTTP API server")
	httpPort       = flag.Int("http-port", 8080, "HTTP server port (default 8080)")
)

func main() {
	flag.Parse()
	fmt.Printf("capmesh version: %s\n", Version)

	app := NewApp()
	app.ApplyOptions(AppOptions{
		ConfigFile:     *configFile,
		LayoutFile:     *layoutFile,
		AlignmentCache: *alignmentCache,
		ObservedFile:   *solveFile,
		HttpPort:       *httpPort,
		MqttMode:       *mqttMode,
		HttpMode:       *httpMode,
	})

	if *placeOnly {
		app.RunPlaceOnly()
		return
	}

	if *solveFile != "" {
		app.RunSolveFile()
		return
	}

	if *mqttMode || *httpMode {
		app.RunService()
		return
	}

	fmt.Println("capmesh service starting...")
	fmt.Println("Use --place-only to print placed landmark poses")
	fmt.Println("Use --solve=FILE to run one alignment solve from captured observations")
	fmt.Println("Use --mqtt to run MQTT service mode")
	fmt.Println("Use --http to run the HTTP API server")
	fmt.Println("Use --mqtt --http to run both together")
	fmt.Println("\nConfiguration:")
	fmt.Println("  config.yaml - MQTT settings, head geometry, and manual offset")
	fmt.Println("  .alignment-cache.json - Last committed alignment (cached)")
}
