// Package pipeline runs the load → layout → render sequence shared by the CLI
// and the API server.
//
// # Stages
//
//  1. Load: read a profile document and build the program's CFGs
//  2. Layout: order the hot blocks of every function
//  3. Render: write cluster files, symbol orders, JSON, DOT or SVG
//
// Layouts and artifacts are cached by content hash, so rerunning on an
// unchanged profile skips the ordering work.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    ProfilePath: "profile.yaml",
//	    Formats:     []string{pipeline.FormatClusters, pipeline.FormatSymbolOrder},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile("clusters.txt", result.Artifacts[pipeline.FormatClusters], 0644)
package pipeline

import (
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/blockorder/pkg/cache"
	"github.com/matzehuels/blockorder/pkg/cfg"
	"github.com/matzehuels/blockorder/pkg/errors"
	"github.com/matzehuels/blockorder/pkg/layout"
)

// Output formats.
const (
	FormatClusters    = "clusters"
	FormatSymbolOrder = "symorder"
	FormatJSON        = "json"
	FormatDOT         = "dot"
	FormatSVG         = "svg"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatClusters:    true,
	FormatSymbolOrder: true,
	FormatJSON:        true,
	FormatDOT:         true,
	FormatSVG:         true,
}

// DefaultFormats are rendered when Options.Formats is empty.
var DefaultFormats = []string{FormatClusters}

// =============================================================================
// Options
// =============================================================================

// Options configures a pipeline run. The struct doubles as the API request
// body.
type Options struct {
	// ProfilePath is a JSON or YAML profile file. Ignored if Profile is set.
	ProfilePath string `json:"profile_path,omitempty"`
	// Profile is an inline profile document.
	Profile []byte `json:"-"`
	// ProfileFormat overrides format detection from ProfilePath.
	ProfileFormat string `json:"profile_format,omitempty"`

	// Params are the layout parameters. The zero value selects
	// layout.DefaultParams.
	Params  layout.Params `json:"params"`
	Workers int           `json:"workers,omitempty"`

	Formats []string `json:"formats,omitempty"`
	// Function selects the function drawn by dot and svg. Empty selects the
	// function with the highest optimized score.
	Function string `json:"function,omitempty"`

	// Refresh bypasses cached layouts and artifacts.
	Refresh bool `json:"refresh,omitempty"`

	Logger *log.Logger `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks all options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForLoad(); err != nil {
		return err
	}
	if err := o.ValidateForLayout(); err != nil {
		return err
	}
	if err := o.ValidateForRender(); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// ValidateForLoad checks that a profile source is set.
func (o *Options) ValidateForLoad() error {
	if len(o.Profile) == 0 && o.ProfilePath == "" {
		return errors.New(errors.ErrCodeInvalidInput, "a profile path or inline profile is required")
	}
	if o.ProfileFormat == "" {
		o.ProfileFormat = cfg.FormatFromPath(o.ProfilePath)
	}
	if o.ProfileFormat != cfg.FormatJSON && o.ProfileFormat != cfg.FormatYAML {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid profile format %q (must be json or yaml)", o.ProfileFormat)
	}
	o.setLogger()
	return nil
}

// SetLayoutDefaults replaces zero params with the defaults.
func (o *Options) SetLayoutDefaults() {
	if o.Params == (layout.Params{}) {
		o.Params = layout.DefaultParams()
	}
	if o.Workers < 0 {
		o.Workers = 0
	}
	o.setLogger()
}

// ValidateForLayout sets layout defaults and checks the params.
func (o *Options) ValidateForLayout() error {
	o.SetLayoutDefaults()
	return layout.CheckParams(o.Params)
}

// SetRenderDefaults fills in default formats.
func (o *Options) SetRenderDefaults() {
	if len(o.Formats) == 0 {
		o.Formats = slices.Clone(DefaultFormats)
	}
	o.setLogger()
}

// ValidateForRender sets render defaults and checks the formats.
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Function != "" {
		return errors.ValidateFunctionName(o.Function)
	}
	return nil
}

func (o *Options) setLogger() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Source describes where the profile came from, for logs and hooks.
func (o *Options) Source() string {
	if len(o.Profile) > 0 {
		return "inline"
	}
	return o.ProfilePath
}

// LayoutKeyOpts returns cache key options for layout computation.
func (o *Options) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{Params: o.Params}
}

// ArtifactKeyOpts returns cache key options for one artifact.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{Format: format}
	if format == FormatDOT || format == FormatSVG {
		opts.Function = o.Function
	}
	return opts
}

// ValidateFormat checks that format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: %s)",
			format, strings.Join(formatNames(), ", "))
	}
	return nil
}

// ValidateFormats checks every format.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

func formatNames() []string {
	names := make([]string, 0, len(ValidFormats))
	for f := range ValidFormats {
		names = append(names, f)
	}
	slices.Sort(names)
	return names
}

// ParseFormats splits a comma-separated format list.
func ParseFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Results
// =============================================================================

// Result is the output of a pipeline run.
type Result struct {
	Program     *cfg.Program
	ProfileHash string

	Layout     *layout.Layout
	LayoutHash string

	// Artifacts holds rendered outputs keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats holds sizes and timings of a run.
type Stats struct {
	Functions    int
	HotFunctions int
	Blocks       int
	HotBlocks    int
	LoadTime     time.Duration
	LayoutTime   time.Duration
	RenderTime   time.Duration
}

// CacheInfo records which stages were served from the cache.
type CacheInfo struct {
	LayoutHit bool
	RenderHit bool
}
