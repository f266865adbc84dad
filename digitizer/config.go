// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Sampling frequencies, as board register indices.
const (
	Freq5GSs    = 0 // 5 GS/s
	Freq2500MSs = 1 // 2.5 GS/s
	Freq1GSs    = 2 // 1 GS/s
	Freq750MSs  = 3 // 750 MS/s
	numFreqs    = 4
	numSizes    = 4
	numTrigSrcs = 4
)

var (
	freqs   = [numFreqs]float64{5e9, 2.5e9, 1e9, 750e6}
	samples = [numSizes]int{1024, 520, 256, 136}
)

// Config is the configuration applied to a digitizer board at
// configure-time.
type Config struct {
	Name string

	SamplingFrequency  int // sampling frequency index (see Freq5GSs, ...)
	PostTriggerSamples int
	TriggerSource      int
	Groups             [NumGroups]bool // enabled channel groups
	CustomSize         int             // record length index (0:1024, 1:520, 2:256, 3:136)

	// AllGroups requests frames carrying the channels of every enabled
	// group instead of group 0 only.
	AllGroups bool
}

// Validate checks the configuration values are within the ranges
// supported by the board.
func (cfg Config) Validate() error {
	switch {
	case cfg.SamplingFrequency < 0 || cfg.SamplingFrequency >= numFreqs:
		return fmt.Errorf("digitizer: invalid sampling frequency index %d", cfg.SamplingFrequency)
	case cfg.CustomSize < 0 || cfg.CustomSize >= numSizes:
		return fmt.Errorf("digitizer: invalid custom size index %d", cfg.CustomSize)
	case cfg.TriggerSource < 0 || cfg.TriggerSource >= numTrigSrcs:
		return fmt.Errorf("digitizer: invalid trigger source %d", cfg.TriggerSource)
	case cfg.PostTriggerSamples < 0 || cfg.PostTriggerSamples >= MaxSamples:
		return fmt.Errorf("digitizer: invalid post-trigger samples %d", cfg.PostTriggerSamples)
	}
	return nil
}

// Frequency returns the sampling frequency in Hz.
func (cfg Config) Frequency() float64 {
	if cfg.SamplingFrequency < 0 || cfg.SamplingFrequency >= numFreqs {
		return 0
	}
	return freqs[cfg.SamplingFrequency]
}

// Samples returns the number of samples per channel recorded for each event.
func (cfg Config) Samples() int {
	if cfg.CustomSize < 0 || cfg.CustomSize >= numSizes {
		return MaxSamples
	}
	return samples[cfg.CustomSize]
}

// GroupMask returns the enabled groups as a bit mask.
func (cfg Config) GroupMask() uint32 {
	var mask uint32
	for i, on := range cfg.Groups {
		if on {
			mask |= 1 << i
		}
	}
	return mask
}

// ConfigSet is a set of named configurations.
type ConfigSet map[string]Config

// DigitizerConfig returns the configuration named name.
func (set ConfigSet) DigitizerConfig(ctx context.Context, name string) (Config, error) {
	cfg, ok := set[name]
	if !ok {
		return Config{}, fmt.Errorf("digitizer: unknown configuration %q", name)
	}
	return cfg, nil
}

// Names returns the sorted names of the configurations.
func (set ConfigSet) Names() []string {
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type yamlConfig struct {
	SamplingFrequency  int  `yaml:"sampling_frequency"`
	PostTriggerSamples int  `yaml:"post_trigger_samples"`
	TriggerSource      int  `yaml:"trigger_source"`
	Group0             int  `yaml:"group0"`
	Group1             int  `yaml:"group1"`
	Group2             int  `yaml:"group2"`
	Group3             int  `yaml:"group3"`
	CustomSize         int  `yaml:"custom_size"`
	AllGroups          bool `yaml:"frame_all_groups"`
}

// LoadConfigs reads a YAML document mapping configuration names to
// digitizer settings. Missing keys default to zero.
//
// Example:
//
//	beam:
//	  sampling_frequency: 1
//	  post_trigger_samples: 10
//	  trigger_source: 1
//	  group0: 1
//	  group1: 1
//	  custom_size: 0
func LoadConfigs(r io.Reader) (ConfigSet, error) {
	var raw map[string]yamlConfig
	err := yaml.NewDecoder(r).Decode(&raw)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("digitizer: could not decode configurations: %w", err)
	}

	set := make(ConfigSet, len(raw))
	for name, v := range raw {
		cfg := Config{
			Name:               name,
			SamplingFrequency:  v.SamplingFrequency,
			PostTriggerSamples: v.PostTriggerSamples,
			TriggerSource:      v.TriggerSource,
			Groups: [NumGroups]bool{
				v.Group0 != 0,
				v.Group1 != 0,
				v.Group2 != 0,
				v.Group3 != 0,
			},
			CustomSize: v.CustomSize,
			AllGroups:  v.AllGroups,
		}
		err = cfg.Validate()
		if err != nil {
			return nil, fmt.Errorf("digitizer: invalid configuration %q: %w", name, err)
		}
		set[name] = cfg
	}
	return set, nil
}
