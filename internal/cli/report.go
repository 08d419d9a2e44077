package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/neuroglm/physioreport/pkg/pipeline"
)

// reportOpts holds the command-line flags for the report command.
// These options mirror pipeline.Options; flags left at their defaults do not
// override values loaded from a --defaults file.
type reportOpts struct {
	output        string   // report document path
	anatomy       string   // anatomical overlay volume path
	model         string   // fitted-model document path
	physio        string   // physiological-model document path
	contrasts     []string // contrast names to report
	indices       []int    // 1-based selection into the contrast names
	threshold     float64  // per-voxel significance threshold
	correction    string   // multiple-comparisons mode: "none" or "FWE"
	colorCap      float64  // overlay color scale cap (0 = unbounded)
	position      string   // crosshair position: "max" or "x,y,z" in mm
	hideCrosshair bool     // suppress crosshair lines
	fov           float64  // field-of-view radius in mm (0 = full extent)
	worldAligned  bool     // world-axis-aligned slicing instead of voxel-aligned
	title         string   // prefix for every page title
	refresh       bool     // re-render pages even when cached
	defaultsFile  string   // TOML file with option defaults
	noCache       bool     // disable the page cache
}

// newReportCmd creates the report command for generating contrast report pages.
//
// Default settings:
//   - threshold: 0.001, uncorrected
//   - position: max (global statistic maximum)
//   - contrasts: the full canonical physiological set
//   - slicing: voxel-aligned, full field of view
func newReportCmd() *cobra.Command {
	opts := reportOpts{
		threshold:  pipeline.DefaultThreshold,
		correction: pipeline.DefaultCorrection,
		position:   pipeline.DefaultPosition,
	}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render contrast overlays into a PostScript report document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", pipeline.DefaultReportPath, "report document path")
	cmd.Flags().StringVarP(&opts.anatomy, "anatomy", "a", "", "anatomical overlay volume (canonical template when missing)")
	cmd.Flags().StringVarP(&opts.model, "model", "m", pipeline.DefaultModelPath, "fitted-model document")
	cmd.Flags().StringVar(&opts.physio, "physio", pipeline.DefaultPhysioPath, "physiological-model document")
	cmd.Flags().StringSliceVarP(&opts.contrasts, "contrast", "c", nil, "contrast name(s) to report (default: canonical set)")
	cmd.Flags().IntSliceVar(&opts.indices, "index", nil, "1-based contrast selection, in report order (default: all)")
	cmd.Flags().Float64VarP(&opts.threshold, "threshold", "p", opts.threshold, "significance threshold in (0, 1)")
	cmd.Flags().StringVar(&opts.correction, "correction", opts.correction, "multiple-comparisons correction: none, FWE")
	cmd.Flags().Float64Var(&opts.colorCap, "color-cap", 0, "cap the overlay color scale at this statistic value")
	cmd.Flags().StringVar(&opts.position, "position", opts.position, `crosshair position: "max" or "x,y,z" in mm`)
	cmd.Flags().BoolVar(&opts.hideCrosshair, "hide-crosshair", false, "hide crosshair lines on rendered pages")
	cmd.Flags().Float64Var(&opts.fov, "fov", 0, "field-of-view radius in mm around the crosshair")
	cmd.Flags().BoolVar(&opts.worldAligned, "world-aligned", false, "resample slices along world axes instead of voxel axes")
	cmd.Flags().StringVar(&opts.title, "title", "", "prefix for every page title")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "re-render pages even when cached")
	cmd.Flags().StringVar(&opts.defaultsFile, "defaults", "", "TOML file with option defaults")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the rendered-page cache")

	return cmd
}

// runReport builds pipeline options from the defaults file and flags, then
// executes the report run and prints a summary.
func runReport(cmd *cobra.Command, opts *reportOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	pipeOpts, err := buildPipelineOpts(cmd, opts)
	if err != nil {
		return err
	}
	pipeOpts.Logger = logger

	pageCache, err := newCLICache(opts.noCache)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	runner := pipeline.NewRunner(pageCache, nil, logger)
	defer runner.Close()

	prog := newProgress(logger)
	spinner := newSpinnerWithContext(ctx, "Rendering report pages...")
	spinner.Start()

	result, err := runner.Execute(ctx, pipeOpts)
	spinner.Stop()
	if spinner.Cancelled() {
		return context.Canceled
	}
	if err != nil {
		printError("Report failed: %v", err)
		return err
	}
	prog.done(fmt.Sprintf("Appended %d pages", result.Pages))

	printSuccess("Report written")
	printFile(result.Options.ReportPath)
	for _, page := range result.Rendered {
		printPage(page.Name, page.Coord, page.Peak, page.Cached)
	}
	for _, name := range result.Skipped {
		printWarning("skipped %q: contrast not in model", name)
	}
	printStats(result.Pages, len(result.Skipped))
	return nil
}

// buildPipelineOpts merges the defaults file (if any) with explicitly set
// flags. Flags the user touched always win over the defaults file; untouched
// flags only fill fields the file leaves empty.
func buildPipelineOpts(cmd *cobra.Command, opts *reportOpts) (pipeline.Options, error) {
	var pipeOpts pipeline.Options

	if opts.defaultsFile != "" {
		data, err := os.ReadFile(opts.defaultsFile)
		if err != nil {
			return pipeOpts, fmt.Errorf("read defaults file: %w", err)
		}
		if err := toml.Unmarshal(data, &pipeOpts); err != nil {
			return pipeOpts, fmt.Errorf("parse defaults file %s: %w", opts.defaultsFile, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("output") || pipeOpts.ReportPath == "" {
		pipeOpts.ReportPath = opts.output
	}
	if changed("anatomy") || pipeOpts.AnatomicalPath == "" {
		pipeOpts.AnatomicalPath = opts.anatomy
	}
	if changed("model") || pipeOpts.ModelPath == "" {
		pipeOpts.ModelPath = opts.model
	}
	if changed("physio") || pipeOpts.PhysioPath == "" {
		pipeOpts.PhysioPath = opts.physio
	}
	if changed("contrast") {
		pipeOpts.Names = opts.contrasts
	}
	if changed("index") {
		pipeOpts.Indices = opts.indices
	}
	if changed("threshold") || pipeOpts.Threshold == 0 {
		pipeOpts.Threshold = opts.threshold
	}
	if changed("correction") || pipeOpts.Correction == "" {
		pipeOpts.Correction = opts.correction
	}
	if changed("color-cap") {
		pipeOpts.ColorCap = opts.colorCap
	}
	if changed("position") || pipeOpts.Position == "" {
		pipeOpts.Position = opts.position
	}
	if changed("hide-crosshair") {
		pipeOpts.HideCrosshair = opts.hideCrosshair
	}
	if changed("fov") {
		pipeOpts.FOV = opts.fov
	}
	if changed("world-aligned") {
		pipeOpts.WorldAligned = opts.worldAligned
	}
	if changed("title") {
		pipeOpts.TitlePrefix = opts.title
	}
	if changed("refresh") {
		pipeOpts.Refresh = opts.refresh
	}

	return pipeOpts, nil
}
