package montage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultAlignmentCachePath is the default path for the committed-alignment cache
const DefaultAlignmentCachePath = ".alignment-cache.json"

// AlignmentRecord is the serializable form of an AlignmentResult.
type AlignmentRecord struct {
	Scale            Vec3 `json:"scale"`
	Rotation         Quat `json:"rotation"`
	TranslationDelta Vec3 `json:"translationDelta"`
}

// NewAlignmentRecord converts a solve result into its cacheable form.
func NewAlignmentRecord(r AlignmentResult) AlignmentRecord {
	return AlignmentRecord{
		Scale:            NewVec3(r.Scale),
		Rotation:         NewQuat(r.Rotation),
		TranslationDelta: NewVec3(r.TranslationDelta),
	}
}

// Result converts the record back into an AlignmentResult.
func (r AlignmentRecord) Result() AlignmentResult {
	return AlignmentResult{
		Scale:            r.Scale.Vec(),
		Rotation:         r.Rotation.Rotation(),
		TranslationDelta: r.TranslationDelta.Vec(),
	}
}

// AlignmentData is the cache file contents: the last committed alignment
// plus the save timestamp.
type AlignmentData struct {
	Result      AlignmentRecord `json:"result"`
	LastUpdated int64           `json:"lastUpdated"`
}

// LoadAlignment loads a previously committed alignment from a JSON cache file
func LoadAlignment(path string) (*AlignmentData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No alignment cached yet
		}
		return nil, fmt.Errorf("reading alignment file: %w", err)
	}

	var cache AlignmentData
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("parsing alignment file: %w", err)
	}

	// An all-zero scale means the file predates the current format or was
	// hand-edited; treat it as absent rather than committing a collapse.
	if cache.Result.Scale == (Vec3{}) {
		return nil, nil
	}

	return &cache, nil
}

// SaveAlignment saves a committed alignment to a JSON cache file
func SaveAlignment(path string, cache *AlignmentData) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating alignment directory: %w", err)
	}

	cache.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling alignment data: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing alignment file: %w", err)
	}

	return nil
}

// NeedsRealign reports whether the cached alignment is stale or absent.
func (c *AlignmentData) NeedsRealign(maxAge time.Duration) bool {
	if c == nil || c.LastUpdated == 0 {
		return true
	}
	return time.Since(time.Unix(c.LastUpdated, 0)) > maxAge
}

// ApplyTo is a convenience for transforming a rig-space position with the
// cached result without committing it to a frame.
func (c *AlignmentData) ApplyTo(p r3.Vec) r3.Vec {
	if c == nil {
		return p
	}
	r := c.Result.Result()
	return r3.Add(r.Rotation.Rotate(MulElem(r.Scale, p)), r.TranslationDelta)
}
