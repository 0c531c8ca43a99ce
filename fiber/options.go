//go:build linux && amd64

// File: fiber/options.go
// Package fiber: functional options for Run.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package fiber

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-fiber/api"
	"github.com/momentics/hioload-fiber/control"
)

type options struct {
	cfg    api.Config
	logger zerolog.Logger
}

// Option customizes a runtime instance at Run.
type Option func(*options)

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.cfg = o.cfg.Normalize()
	if o.cfg.TraceEnabled {
		o.logger = control.NewTraceLogger()
	}
	return o
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg api.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithStackSize sets the usable fiber stack size in bytes.
func WithStackSize(n int) Option {
	return func(o *options) { o.cfg.StackSize = n }
}

// WithStackCache caps the number of pooled stacks per size class.
func WithStackCache(n int) Option {
	return func(o *options) { o.cfg.StackCacheSize = n }
}

// WithHugePages advises huge-page backing for fiber stacks.
func WithHugePages() Option {
	return func(o *options) { o.cfg.HugePages = true }
}

// WithRingEntries sets the io_uring SQ size.
func WithRingEntries(n uint32) Option {
	return func(o *options) { o.cfg.RingEntries = n }
}

// WithLogger attaches a structured logger for lifecycle tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTrace enables the default stderr trace logger.
func WithTrace() Option {
	return func(o *options) { o.cfg.TraceEnabled = true }
}

// ConfigFromTOML loads an api.Config from a TOML file.
func ConfigFromTOML(path string) (api.Config, error) {
	var cfg api.Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return api.Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}
