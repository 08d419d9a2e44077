package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/neuroglm/physioreport/pkg/cache"
	"github.com/neuroglm/physioreport/pkg/errors"
	"github.com/neuroglm/physioreport/pkg/glm"
	"github.com/neuroglm/physioreport/pkg/report"
	"github.com/neuroglm/physioreport/pkg/volume"
)

// Runner encapsulates report-pipeline execution with page caching.
//
// The Runner is stateless except for its collaborators, so one Runner can
// serve multiple Execute calls with different options. Execution itself is
// strictly sequential: the renderer and the sink share process-wide display
// and working-directory state that cannot be interleaved.
type Runner struct {
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	Renderer report.OverlayRenderer

	// Sink overrides the default PostScript document sink. When nil, a
	// PSDocument for the configured report path is used.
	Sink report.Sink
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		Renderer: report.NewSliceRenderer(logger),
	}
}

// cachedPage is the serialized form of a rendered page in the cache.
type cachedPage struct {
	Page           []byte     `json:"page"`
	Coord          [3]float64 `json:"coord"`
	Peak           float64    `json:"peak"`
	Suprathreshold int        `json:"suprathreshold"`
}

// Execute runs the complete ensure → render → append pipeline.
//
// The working directory and the global window mode are captured before any
// mutation and restored on every exit path, so a failing render or sink
// leaves the caller's environment consistent even though the report document
// may be incomplete.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()

	// Resolve every configured path to absolute form before any directory
	// changes, so collaborators that write relative to the current
	// directory cannot misplace files.
	if err := opts.resolvePaths(); err != nil {
		return nil, err
	}

	model, err := glm.LoadModel(opts.ModelPath)
	if err != nil {
		return nil, err
	}
	modelDir := filepath.Dir(opts.ModelPath)
	model.BetaPath = resolveAgainst(modelDir, model.BetaPath)
	model.ResMSPath = resolveAgainst(modelDir, model.ResMSPath)

	// Availability fallback, not an error: render on the bundled
	// canonical template when no anatomical overlay exists.
	if opts.AnatomicalPath == "" || !fileExists(opts.AnatomicalPath) {
		if opts.AnatomicalPath != "" {
			opts.Logger.Warn("anatomical overlay not found, using canonical template",
				"path", opts.AnatomicalPath)
		}
		opts.AnatomicalPath = volume.CanonicalTemplate
	}

	physio := opts.DefaultPhysio
	if fileExists(opts.PhysioPath) {
		physio, err = glm.LoadPhysio(opts.PhysioPath)
		if err != nil {
			return nil, err
		}
	} else {
		opts.Logger.Debug("no physiological model document, using default",
			"path", opts.PhysioPath)
	}

	// The renderer's page geometry assumes the normalized window mode.
	// Force it for the duration of the run; the deferred restore runs on
	// every exit path, after the working-directory restore below.
	restoreMode := report.PushWindowMode(report.WindowNormalized)
	defer restoreMode()

	ensureStart := time.Now()
	added := glm.EnsureContrasts(model, physio, opts.Names)
	if len(added) > 0 {
		opts.Logger.Info("synthesized contrasts", "names", added)
	}

	pathBeforeReport, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "get working directory")
	}
	defer func() {
		_ = os.Chdir(pathBeforeReport)
	}()

	modelHash, err := cache.HashFile(opts.ModelPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeLoadModel, err, "hash model %s", opts.ModelPath)
	}

	snk := r.Sink
	if snk == nil {
		// The document sink writes relative to the current directory;
		// appendPage changes into the document directory around each call.
		snk = report.NewPSDocument(filepath.Base(opts.ReportPath))
	}
	docDir := filepath.Dir(opts.ReportPath)
	pos, _ := report.ParsePosition(opts.Position) // validated above

	// The physio model shapes synthesized contrast weights, so its content
	// participates in every page key alongside the anatomical overlay path.
	keyOpts := opts.PageKeyOpts()
	if physioData, err := json.Marshal(physio); err == nil {
		keyOpts.PhysioHash = cache.Hash(physioData)
	}

	result := &Result{RunID: uuid.NewString()}
	result.Stats.EnsureTime = time.Since(ensureStart)

	renderStart := time.Now()
	for _, n := range opts.Indices {
		name := opts.Names[n-1]
		idx, ok := model.FindContrast(name)
		if !ok {
			// Soft skip: the regressor group behind this contrast was
			// not part of the design.
			skipErr := errors.New(errors.ErrCodeContrastNotFound,
				"contrast %q not in model", name)
			opts.Logger.Warn("skipping contrast", "name", name, "error", skipErr)
			result.Skipped = append(result.Skipped, name)
			continue
		}

		info := PageInfo{Name: name, Index: idx}
		key := r.Keyer.PageKey(modelHash, name, keyOpts)

		var page []byte
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
				var entry cachedPage
				if json.Unmarshal(data, &entry) == nil {
					page = entry.Page
					info.Coord = entry.Coord
					info.Peak = entry.Peak
					info.Suprathreshold = entry.Suprathreshold
					info.Cached = true
				}
			}
		}

		if page == nil {
			res, err := r.Renderer.Render(ctx, model, idx, opts.ThresholdSpec(),
				opts.AnatomicalPath, r.renderOptions(opts, name, result.RunID))
			if err != nil {
				return nil, fmt.Errorf("render %q: %w", name, err)
			}
			coord := report.ResolveCrosshair(pos, res)
			page, err = res.Compose(coord)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeRenderFailed, err, "compose page for %q", name)
			}
			info.Coord = coord
			info.Peak = res.PeakStat
			info.Suprathreshold = res.Suprathreshold

			entry, err := json.Marshal(cachedPage{
				Page:           page,
				Coord:          coord,
				Peak:           res.PeakStat,
				Suprathreshold: res.Suprathreshold,
			})
			if err == nil {
				_ = r.Cache.Set(ctx, key, entry, cache.TTLPage)
			}
		}

		if err := appendPage(snk, docDir, page); err != nil {
			return nil, fmt.Errorf("append page for %q: %w", name, err)
		}

		result.Pages++
		result.Rendered = append(result.Rendered, info)
		opts.Logger.Info("appended page",
			"contrast", name,
			"coord", info.Coord,
			"cached", info.Cached)
	}
	result.Stats.RenderTime = time.Since(renderStart)
	result.Stats.TotalTime = time.Since(start)
	result.Options = opts

	opts.Logger.Info("report complete",
		"document", opts.ReportPath,
		"pages", result.Pages,
		"skipped", len(result.Skipped),
		"duration", result.Stats.TotalTime)

	return result, nil
}

// appendPage invokes the sink from inside the document's directory and then
// returns to the immediately-prior directory. Restoring the immediate
// predecessor rather than a global anchor keeps nested directory changes by
// collaborators from leaking.
func appendPage(snk report.Sink, docDir string, page []byte) error {
	prev, err := os.Getwd()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "get working directory")
	}
	if err := os.Chdir(docDir); err != nil {
		return errors.Wrap(errors.ErrCodeSinkFailed, err, "enter report directory %s", docDir)
	}
	defer func() {
		_ = os.Chdir(prev)
	}()
	return snk.Append(page)
}

// renderOptions builds the per-page render options.
func (r *Runner) renderOptions(opts Options, name, runID string) report.RenderOptions {
	title := name
	if opts.TitlePrefix != "" {
		title = strings.TrimSpace(opts.TitlePrefix) + ": " + name
	}
	return report.RenderOptions{
		FOV:           opts.FOV,
		WorldAligned:  opts.WorldAligned,
		HideCrosshair: opts.HideCrosshair,
		Title:         title,
		Footer:        fmt.Sprintf("physioreport run %s, %s", runID, time.Now().Format(time.RFC3339)),
	}
}

// resolvePaths converts the configured paths to absolute form.
func (o *Options) resolvePaths() error {
	for _, p := range []*string{&o.ReportPath, &o.ModelPath, &o.PhysioPath} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidOption, err, "resolve path %s", *p)
		}
		*p = abs
	}
	if o.AnatomicalPath != "" && o.AnatomicalPath != volume.CanonicalTemplate {
		abs, err := filepath.Abs(o.AnatomicalPath)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidOption, err, "resolve path %s", o.AnatomicalPath)
		}
		o.AnatomicalPath = abs
	}
	return nil
}

// resolveAgainst resolves a possibly relative path against a base directory.
func resolveAgainst(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// fileExists reports whether a path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
