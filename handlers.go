package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/kwv/capmesh/montage"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(app *App) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status     string    `json:"status"`
			Timestamp  time.Time `json:"timestamp"`
			Landmarks  int       `json:"landmarks"`
			Calibrated bool      `json:"calibrated"`
		}{
			Status:     "ok",
			Timestamp:  time.Now(),
			Landmarks:  app.Scene.Len(),
			Calibrated: app.Registry.Calibrated(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// World-space landmark poses
	mux.HandleFunc("/api/landmarks", func(w http.ResponseWriter, r *http.Request) {
		poses := worldPoses(app.Scene, app.Frame)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		response := struct {
			Landmarks []montage.LandmarkPose `json:"landmarks"`
			Timestamp int64                  `json:"timestamp"`
		}{
			Landmarks: poses,
			Timestamp: time.Now().Unix(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Error encoding landmarks: %v", err)
		}
	})

	// Latest fiducial observations
	mux.HandleFunc("/api/fiducials", func(w http.ResponseWriter, r *http.Request) {
		observations := app.Registry.Observations()

		type fiducial struct {
			ID          int          `json:"id"`
			Role        string       `json:"role"`
			Position    montage.Vec3 `json:"position"`
			Orientation montage.Quat `json:"orientation"`
		}
		fiducials := make([]fiducial, 0, len(observations))
		for id := montage.FiducialFront; id <= montage.FiducialTop; id++ {
			obs, ok := observations[id]
			if !ok {
				continue
			}
			fiducials = append(fiducials, fiducial{
				ID:          obs.ID,
				Role:        montage.AnchorName(obs.ID - 1),
				Position:    montage.NewVec3(obs.Position),
				Orientation: montage.NewQuat(obs.Orientation),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		response := struct {
			Fiducials  []fiducial `json:"fiducials"`
			Complete   bool       `json:"complete"`
			Calibrated bool       `json:"calibrated"`
		}{
			Fiducials:  fiducials,
			Complete:   app.Registry.Complete(),
			Calibrated: app.Registry.Calibrated(),
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Error encoding fiducials: %v", err)
		}
	})

	// Committed alignment
	mux.HandleFunc("/api/alignment", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		committed := app.Frame.Committed()
		response := struct {
			Calibrated bool                     `json:"calibrated"`
			Result     *montage.AlignmentRecord `json:"result,omitempty"`
		}{
			Calibrated: app.Registry.Calibrated(),
		}
		if committed != nil {
			record := montage.NewAlignmentRecord(*committed)
			response.Result = &record
		}
		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.Printf("Error encoding alignment: %v", err)
		}
	})

	// Run an alignment solve on demand
	mux.HandleFunc("/api/align", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		result, err := app.Aligner.Align()
		if err != nil {
			switch {
			case errors.Is(err, montage.ErrIncomplete):
				http.Error(w, err.Error(), http.StatusConflict)
			case errors.Is(err, montage.ErrDegenerateConfiguration):
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		record := montage.NewAlignmentRecord(result)
		if err := json.NewEncoder(w).Encode(record); err != nil {
			log.Printf("Error encoding align result: %v", err)
		}
	})

	// Reset alignment to identity
	mux.HandleFunc("/api/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		app.Aligner.Reset()
		if app.Publisher != nil {
			app.Publisher.ClearPoses()
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"reset"}`)
	})

	// Set the manual offset
	mux.HandleFunc("/api/offset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		var offset montage.ManualOffsetConfig
		if err := json.NewDecoder(r.Body).Decode(&offset); err != nil {
			http.Error(w, fmt.Sprintf("invalid offset payload: %v", err), http.StatusBadRequest)
			return
		}
		if offset.Scale == (montage.Vec3{}) {
			offset.Scale = montage.Vec3{X: 1, Y: 1, Z: 1}
		}

		app.Frame.SetManualOffset(offset.Position.Vec(), offset.Rotation.Vec(), offset.Scale.Vec())
		log.Printf("[HTTP] manual offset set: pos=(%.3f, %.3f, %.3f)",
			offset.Position.X, offset.Position.Y, offset.Position.Z)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	// Set the viewer position for distance culling
	mux.HandleFunc("/api/viewer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		var payload struct {
			Position *montage.Vec3 `json:"position"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, fmt.Sprintf("invalid viewer payload: %v", err), http.StatusBadRequest)
			return
		}

		if payload.Position == nil {
			app.Scene.ClearViewer()
		} else {
			app.Scene.SetViewer(payload.Position.Vec())
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	// Default route serves a minimal status page
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>capmesh</title>
<style>
body{font-family:monospace;background:#1a1a1a;color:#ddd;padding:2em}
a{color:#8cf}
</style>
</head>
<body>
<h1>capmesh</h1>
<ul>
<li><a href="/health">/health</a></li>
<li><a href="/api/landmarks">/api/landmarks</a></li>
<li><a href="/api/fiducials">/api/fiducials</a></li>
<li><a href="/api/alignment">/api/alignment</a></li>
</ul>
</body>
</html>`)
	})

	// Wrap mux with logging middleware
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		mux.ServeHTTP(w, r)
	})
}
