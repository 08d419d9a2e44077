// Package pipeline provides the core contrast-reporting pipeline for
// physioreport.
//
// This package implements the complete ensure → render → append flow that
// turns a list of named physiological contrasts into pages of one report
// document. By centralizing this logic, the CLI and library callers share
// identical behavior.
//
// # Architecture
//
// A report run has three stages:
//
//  1. Ensure: resolve contrast names against the fitted model, synthesizing
//     missing contrasts from the physiological regressor groups
//  2. Render: threshold the contrast statistic map and compose an
//     orthogonal-slice overlay page per contrast
//  3. Append: add each page to the PostScript report document, in order
//
// A contrast that cannot be resolved is skipped without aborting the run;
// a renderer or sink failure aborts the run. Either way the process working
// directory and the global window mode are restored before Execute returns.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{
//	    ModelPath:  "glm/model.yaml",
//	    ReportPath: "physio_report.ps",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Pages, "pages")
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/neuroglm/physioreport/pkg/cache"
	"github.com/neuroglm/physioreport/pkg/errors"
	"github.com/neuroglm/physioreport/pkg/glm"
	"github.com/neuroglm/physioreport/pkg/report"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Library Callers
// =============================================================================

const (
	// DefaultReportPath is the report document written next to the model
	// unless configured otherwise.
	DefaultReportPath = "physio_report.ps"

	// DefaultModelPath is the persisted fitted-model document.
	DefaultModelPath = "glm/model.yaml"

	// DefaultPhysioPath is the persisted physiological-model document.
	// A missing file is not an error; synthesis simply finds fewer
	// constructible contrasts.
	DefaultPhysioPath = "glm/physio.yaml"

	// DefaultThreshold is the per-voxel significance threshold.
	DefaultThreshold = 0.001

	// DefaultCorrection is the multiple-comparisons correction mode.
	DefaultCorrection = string(report.CorrectionNone)

	// DefaultPosition is the crosshair position spec.
	DefaultPosition = "max"
)

// Options contains all configuration for a report run. Options are merged
// onto defaults and validated once; after ValidateAndSetDefaults the struct
// is treated as immutable. TOML tags allow a defaults file to be decoded
// directly onto the zero value.
type Options struct {
	// ReportPath is the output report document.
	ReportPath string `toml:"report_path"`

	// AnatomicalPath is the anatomical overlay volume. When empty or
	// missing on disk, the bundled canonical template is substituted.
	AnatomicalPath string `toml:"anatomical_path"`

	// ModelPath is the persisted fitted-model document.
	ModelPath string `toml:"model_path"`

	// PhysioPath is the persisted physiological-model document.
	PhysioPath string `toml:"physio_path"`

	// Names is the canonical contrast name list. Defaults to the full
	// canonical physiological set.
	Names []string `toml:"names"`

	// Indices selects which entries of Names to report, 1-based, in
	// report order. Defaults to all of Names.
	Indices []int `toml:"indices"`

	// Threshold is the significance threshold (default 0.001).
	Threshold float64 `toml:"threshold"`

	// Correction is the multiple-comparisons mode: "none" or "FWE".
	Correction string `toml:"correction"`

	// ColorCap caps the overlay color scale; 0 means unbounded.
	ColorCap float64 `toml:"color_cap"`

	// Position is the crosshair spec: "max" or an explicit "x,y,z" world
	// coordinate in mm.
	Position string `toml:"position"`

	// HideCrosshair suppresses crosshair lines on rendered pages.
	HideCrosshair bool `toml:"hide_crosshair"`

	// FOV is the field-of-view radius in mm; 0 means full extent.
	FOV float64 `toml:"fov"`

	// WorldAligned selects world-axis-aligned slice resampling instead of
	// the default voxel-aligned slicing.
	WorldAligned bool `toml:"world_aligned"`

	// TitlePrefix is prepended to every page title.
	TitlePrefix string `toml:"title_prefix"`

	// Refresh bypasses the page cache.
	Refresh bool `toml:"refresh"`

	// DefaultPhysio is used when no physiological-model document exists
	// at PhysioPath. Defaults to a freshly constructed empty model.
	DefaultPhysio *glm.PhysioModel `toml:"-"`

	// Logger receives run progress. Defaults to a discarding logger.
	Logger *log.Logger `toml:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `toml:"-"`
}

// ValidateAndSetDefaults checks option consistency and applies defaults.
// This method is idempotent - calling it multiple times has the same effect
// as calling it once. Structurally invalid options are rejected here, before
// any model is loaded or any global state is touched.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}

	if o.ReportPath == "" {
		o.ReportPath = DefaultReportPath
	}
	if o.ModelPath == "" {
		o.ModelPath = DefaultModelPath
	}
	if o.PhysioPath == "" {
		o.PhysioPath = DefaultPhysioPath
	}
	if len(o.Names) == 0 {
		o.Names = glm.CanonicalContrasts()
	}
	if len(o.Indices) == 0 {
		o.Indices = make([]int, len(o.Names))
		for i := range o.Indices {
			o.Indices[i] = i + 1
		}
	}
	for _, n := range o.Indices {
		if n < 1 || n > len(o.Names) {
			return errors.New(errors.ErrCodeInvalidIndex,
				"contrast index %d out of range 1..%d", n, len(o.Names))
		}
	}

	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Threshold <= 0 || o.Threshold >= 1 {
		return errors.New(errors.ErrCodeInvalidThreshold,
			"significance threshold %g must be in (0, 1)", o.Threshold)
	}
	if o.Correction == "" {
		o.Correction = DefaultCorrection
	}
	if _, err := report.ParseCorrection(o.Correction); err != nil {
		return err
	}
	if o.Position == "" {
		o.Position = DefaultPosition
	}
	if _, err := report.ParsePosition(o.Position); err != nil {
		return err
	}
	if o.ColorCap < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "color cap must not be negative")
	}
	if o.FOV < 0 {
		return errors.New(errors.ErrCodeInvalidOption, "field of view must not be negative")
	}

	if o.DefaultPhysio == nil {
		o.DefaultPhysio = glm.NewPhysioModel()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	o.validated = true
	return nil
}

// ThresholdSpec builds the per-contrast threshold spec from the options.
func (o *Options) ThresholdSpec() report.ThresholdSpec {
	return report.ThresholdSpec{
		P:          o.Threshold,
		Correction: report.Correction(o.Correction),
		ColorCap:   o.ColorCap,
	}
}

// PageKeyOpts returns the cache key options for a rendered page. The physio
// hash is not known at the options level; the runner fills it in after the
// physiological model has been resolved.
func (o *Options) PageKeyOpts() cache.PageKeyOpts {
	return cache.PageKeyOpts{
		Threshold:      o.Threshold,
		Correction:     o.Correction,
		ColorCap:       o.ColorCap,
		Position:       o.Position,
		FOV:            o.FOV,
		WorldAligned:   o.WorldAligned,
		HideCrosshair:  o.HideCrosshair,
		TitlePrefix:    o.TitlePrefix,
		AnatomicalPath: o.AnatomicalPath,
	}
}

// Result contains the outputs of a report run.
type Result struct {
	// Options is the fully resolved configuration the run used, for
	// caller introspection and idempotent reuse.
	Options Options

	// RunID uniquely identifies this run; it is stamped on page footers.
	RunID string

	// Pages is the number of pages appended to the report document.
	Pages int

	// Rendered lists the pages in append order.
	Rendered []PageInfo

	// Skipped lists requested contrast names that could not be resolved.
	Skipped []string

	// Stats contains timing information.
	Stats Stats
}

// PageInfo describes one appended page.
type PageInfo struct {
	Name           string
	Index          int
	Coord          [3]float64
	Peak           float64
	Suprathreshold int
	Cached         bool
}

// Stats contains run timing information.
type Stats struct {
	EnsureTime time.Duration
	RenderTime time.Duration
	TotalTime  time.Duration
}
