// Package config provides YAML configuration loading and validation for
// the peak-detection core's ambient collaborators (spec §6
// "Configuration"). It is deliberately outside rbpf/lwpf/radial: the
// core packages take typed Config structs directly and never touch a
// file path.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xrd-imaging/peakscan/errs"
	"github.com/xrd-imaging/peakscan/layout"
	"github.com/xrd-imaging/peakscan/lwpf"
	"github.com/xrd-imaging/peakscan/radial"
	"github.com/xrd-imaging/peakscan/rbpf"
)

// Layout mirrors layout.Detector for YAML decoding.
type Layout struct {
	AsicFs   uint16 `yaml:"asic_fs"`
	AsicSs   uint16 `yaml:"asic_ss"`
	NAsicsFs uint8  `yaml:"nasics_fs"`
	NAsicsSs uint8  `yaml:"nasics_ss"`
}

// Radial mirrors radial.Config for YAML decoding.
type Radial struct {
	MinSNR       float32 `yaml:"min_snr"`
	ADCThreshold float32 `yaml:"adc_threshold"`
	Iterations   int     `yaml:"iterations"`
}

// RBPF mirrors rbpf.Config for YAML decoding.
type RBPF struct {
	MinSNR        float32 `yaml:"min_snr"`
	ADCThreshold  float32 `yaml:"adc_threshold"`
	MinPixCount   int     `yaml:"min_pix_count"`
	MaxPixCount   int     `yaml:"max_pix_count"`
	LocalBgRadius int     `yaml:"local_bg_radius"`
	MaxNumPeaks   int     `yaml:"max_num_peaks"`
}

// LWPF mirrors lwpf.Config for YAML decoding.
type LWPF struct {
	WindowRadius          int     `yaml:"window_radius"`
	SigmaBiggest          float64 `yaml:"sigma_biggest"`
	SigmaPeakPixel        float64 `yaml:"sigma_peak_pixel"`
	SigmaWholePeak        float64 `yaml:"sigma_whole_peak"`
	MinSigma              float64 `yaml:"min_sigma"`
	MinOversizeNeighbours float64 `yaml:"min_oversize_neighbours"`
	MaxNumPeaks           int     `yaml:"max_num_peaks"`
	DoubleBgWindow        bool    `yaml:"double_bg_window"`
}

// Config is the flat record of every parameter spec §4.C/D/E
// enumerates, loadable from a single YAML document.
type Config struct {
	Layout Layout `yaml:"layout"`
	Radial Radial `yaml:"radial"`
	RBPF   RBPF   `yaml:"rbpf"`
	LWPF   LWPF   `yaml:"lwpf"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every field that spec §7.1 classes as a construction-
// time configuration error.
func (c *Config) Validate() error {
	if c.Layout.AsicFs == 0 || c.Layout.AsicSs == 0 || c.Layout.NAsicsFs == 0 || c.Layout.NAsicsSs == 0 {
		return fmt.Errorf("%w: layout dimensions must be positive", errs.ErrConfigRequired)
	}
	if c.LWPF.WindowRadius < 2 {
		return fmt.Errorf("%w: lwpf.window_radius must be >= 2", errs.ErrConfigRequired)
	}
	if c.RBPF.MinPixCount <= 0 || c.RBPF.MaxPixCount < c.RBPF.MinPixCount {
		return fmt.Errorf("%w: rbpf.min_pix_count/max_pix_count are inconsistent", errs.ErrConfigRequired)
	}
	if c.RBPF.MaxNumPeaks <= 0 || c.LWPF.MaxNumPeaks <= 0 {
		return fmt.Errorf("%w: max_num_peaks must be positive", errs.ErrConfigRequired)
	}
	return nil
}

// BuildLayout constructs a layout.Detector from the config.
func (c *Config) BuildLayout() (layout.Detector, error) {
	return layout.New(c.Layout.AsicFs, c.Layout.AsicSs, c.Layout.NAsicsFs, c.Layout.NAsicsSs)
}

// BuildRadial converts the YAML radial section to radial.Config.
func (c *Config) BuildRadial() radial.Config {
	return radial.Config{
		MinSNR:       c.Radial.MinSNR,
		ADCThreshold: c.Radial.ADCThreshold,
		Iterations:   c.Radial.Iterations,
	}
}

// BuildRBPF converts the YAML rbpf section to rbpf.Config.
func (c *Config) BuildRBPF() rbpf.Config {
	return rbpf.Config{
		MinSNR:        c.RBPF.MinSNR,
		ADCThreshold:  c.RBPF.ADCThreshold,
		MinPixCount:   c.RBPF.MinPixCount,
		MaxPixCount:   c.RBPF.MaxPixCount,
		LocalBgRadius: c.RBPF.LocalBgRadius,
		MaxNumPeaks:   c.RBPF.MaxNumPeaks,
	}
}

// BuildLWPF converts the YAML lwpf section to a validated lwpf.Config.
func (c *Config) BuildLWPF() (lwpf.Config, error) {
	return lwpf.New(lwpf.Config{
		WindowRadius:          c.LWPF.WindowRadius,
		SigmaBiggest:          c.LWPF.SigmaBiggest,
		SigmaPeakPixel:        c.LWPF.SigmaPeakPixel,
		SigmaWholePeak:        c.LWPF.SigmaWholePeak,
		MinSigma:              c.LWPF.MinSigma,
		MinOversizeNeighbours: c.LWPF.MinOversizeNeighbours,
		MaxNumPeaks:           c.LWPF.MaxNumPeaks,
		DoubleBgWindow:        c.LWPF.DoubleBgWindow,
	})
}
