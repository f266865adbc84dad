// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package digitizer

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	for _, tc := range []struct {
		name    string
		cfg     Config
		err     string
		freq    float64
		samples int
		mask    uint32
	}{
		{
			name:    "default",
			freq:    5e9,
			samples: 1024,
		},
		{
			name: "groups",
			cfg: Config{
				SamplingFrequency: Freq1GSs,
				Groups:            [NumGroups]bool{true, false, true, true},
				CustomSize:        2,
			},
			freq:    1e9,
			samples: 256,
			mask:    0xd,
		},
		{
			name: "invalid-freq",
			cfg:  Config{SamplingFrequency: 4},
			err:  "digitizer: invalid sampling frequency index 4",
		},
		{
			name: "invalid-size",
			cfg:  Config{CustomSize: -1},
			err:  "digitizer: invalid custom size index -1",
			freq: 5e9,
		},
		{
			name:    "invalid-trigger",
			cfg:     Config{TriggerSource: 5, CustomSize: 3},
			err:     "digitizer: invalid trigger source 5",
			freq:    5e9,
			samples: 136,
		},
		{
			name:    "invalid-post-trigger",
			cfg:     Config{PostTriggerSamples: 1024, SamplingFrequency: Freq750MSs},
			err:     "digitizer: invalid post-trigger samples 1024",
			freq:    750e6,
			samples: 1024,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			switch {
			case err != nil && tc.err != "":
				if got, want := err.Error(), tc.err; got != want {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
				}
				return
			case err != nil && tc.err == "":
				t.Fatalf("could not validate configuration: %+v", err)
			case err == nil && tc.err != "":
				t.Fatalf("expected an error (%s)", tc.err)
			}

			if got, want := tc.cfg.Frequency(), tc.freq; got != want {
				t.Fatalf("invalid frequency: got=%g, want=%g", got, want)
			}
			if got, want := tc.cfg.Samples(), tc.samples; got != want {
				t.Fatalf("invalid samples: got=%d, want=%d", got, want)
			}
			if got, want := tc.cfg.GroupMask(), tc.mask; got != want {
				t.Fatalf("invalid mask: got=0x%x, want=0x%x", got, want)
			}
		})
	}
}

func TestLoadConfigs(t *testing.T) {
	const doc = `
beam:
  sampling_frequency: 1
  post_trigger_samples: 10
  trigger_source: 1
  group0: 1
  group2: 1
  custom_size: 2
cosmics:
  group0: 1
  frame_all_groups: true
`
	set, err := LoadConfigs(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("could not load configurations: %+v", err)
	}

	if got, want := set.Names(), []string{"beam", "cosmics"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid names: got=%q, want=%q", got, want)
	}

	ctx := context.Background()
	cfg, err := set.DigitizerConfig(ctx, "beam")
	if err != nil {
		t.Fatalf("could not find beam configuration: %+v", err)
	}
	want := Config{
		Name:               "beam",
		SamplingFrequency:  Freq2500MSs,
		PostTriggerSamples: 10,
		TriggerSource:      1,
		Groups:             [NumGroups]bool{true, false, true, false},
		CustomSize:         2,
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("invalid configuration:\ngot= %+v\nwant=%+v", cfg, want)
	}

	cfg, err = set.DigitizerConfig(ctx, "cosmics")
	if err != nil {
		t.Fatalf("could not find cosmics configuration: %+v", err)
	}
	if !cfg.AllGroups || cfg.GroupMask() != 0x1 || cfg.Samples() != MaxSamples {
		t.Fatalf("invalid cosmics configuration: %+v", cfg)
	}

	_, err = set.DigitizerConfig(ctx, "calib")
	if got, want := err.Error(), `digitizer: unknown configuration "calib"`; got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}
}

func TestLoadConfigsErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  string
		err  string
	}{
		{
			name: "invalid-value",
			doc:  "beam:\n  sampling_frequency: 7\n",
			err:  `digitizer: invalid configuration "beam": digitizer: invalid sampling frequency index 7`,
		},
		{
			name: "invalid-yaml",
			doc:  "beam: [1, 2\n",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfigs(strings.NewReader(tc.doc))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.err == "" {
				return
			}
			if got, want := err.Error(), tc.err; got != want {
				t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
			}
		})
	}

	set, err := LoadConfigs(strings.NewReader(""))
	if err != nil {
		t.Fatalf("could not load empty document: %+v", err)
	}
	if len(set) != 0 {
		t.Fatalf("invalid configuration set: %v", set)
	}
}
