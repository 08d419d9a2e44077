// Package cache provides content-addressed caching for rendered report pages.
//
// Rendering a thresholded overlay page is the expensive step of a report run:
// it loads the beta and residual volumes, computes the statistic map and walks
// every voxel. Pages are deterministic functions of the persisted model file
// and the render options, so they can be cached aggressively. Keys are built
// from the SHA-256 hash of the model file plus the option set that influences
// the rendered output.
package cache

import (
	"context"
	"time"
)

// TTL values for cached entries.
const (
	// TTLPage is how long a rendered page stays valid. Pages are keyed by
	// the model file hash, so a re-estimated model never hits a stale page.
	TTLPage = 7 * 24 * time.Hour
)

// Cache is the interface for page caching backends.
type Cache interface {
	// Get retrieves a value. The second return value reports a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given TTL. A TTL of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// PageKeyOpts are the render options that participate in a page cache key.
// Any option that changes the rendered output must appear here: beyond the
// thresholding and view options this includes the anatomical underlay and a
// hash of the physiological model, which shapes synthesized contrast weights.
type PageKeyOpts struct {
	Threshold      float64 `json:"threshold"`
	Correction     string  `json:"correction"`
	ColorCap       float64 `json:"color_cap"`
	Position       string  `json:"position"`
	FOV            float64 `json:"fov"`
	WorldAligned   bool    `json:"world_aligned"`
	HideCrosshair  bool    `json:"hide_crosshair"`
	TitlePrefix    string  `json:"title_prefix"`
	AnatomicalPath string  `json:"anatomical_path"`
	PhysioHash     string  `json:"physio_hash"`
}

// Keyer generates cache keys for pipeline artifacts.
type Keyer interface {
	// PageKey generates a key for a rendered contrast page.
	PageKey(modelHash, contrast string, opts PageKeyOpts) string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// PageKey generates a key for a rendered contrast page.
func (k *DefaultKeyer) PageKey(modelHash, contrast string, opts PageKeyOpts) string {
	return hashKey("page", modelHash, contrast, opts)
}
