package oba

import (
	"time"

	"github.com/oba-ldap/oba/internal/client"
	"github.com/oba-ldap/oba/internal/filter"
	"github.com/oba-ldap/oba/internal/logging"
)

// EmptyValuePolicy controls how the modification planner treats a
// replace modification whose value list is empty; add and delete
// modifications are not subject to it.
type EmptyValuePolicy = client.EmptyValuePolicy

const (
	EmptyValueIgnore = client.EmptyValueIgnore
	EmptyValueWarn   = client.EmptyValueWarn
	EmptyValueError  = client.EmptyValueError
)

// FilterMode selects which search-filter grammar a Conn parses string
// filters with by default.
type FilterMode = filter.Mode

const (
	FilterModeStandard = filter.ModeStandard
	FilterModeSimple   = filter.ModeSimple
	FilterModeUnified  = filter.ModeUnified
)

// Logger is the structured leveled logger interface a Conn logs through.
// The default is a nop logger; a nil Logger is silent as well.
type Logger = logging.Logger

// DefaultsConfig is the immutable set of per-connection defaults new
// connections inherit, built via NewDefaults and its functional options
// rather than process-wide mutable state.
type DefaultsConfig struct {
	cfg client.Config
}

// DefaultsOption configures a DefaultsConfig under construction.
type DefaultsOption func(*client.Config)

// WithDialTimeout sets the TCP/TLS dial timeout.
func WithDialTimeout(d time.Duration) DefaultsOption {
	return func(c *client.Config) { c.DialTimeout = d }
}

// WithOperationTimeout sets the per-operation response deadline.
func WithOperationTimeout(d time.Duration) DefaultsOption {
	return func(c *client.Config) { c.OperationTimeout = d }
}

// WithBackpressure sets the bounded high-water mark for search-stream
// buffering.
func WithBackpressure(highWaterMark int) DefaultsOption {
	return func(c *client.Config) { c.BackpressureHighWaterMark = highWaterMark }
}

// WithEmptyValuePolicy sets how the planner handles an empty modification
// value list.
func WithEmptyValuePolicy(p EmptyValuePolicy) DefaultsOption {
	return func(c *client.Config) { c.EmptyValuePolicy = p }
}

// WithStrictModify disables the planner's pre-fetch/dedup pass, emitting
// high-level modifications exactly as requested.
func WithStrictModify(strict bool) DefaultsOption {
	return func(c *client.Config) { c.Strict = strict }
}

// WithFilterMode sets the default grammar used to parse a string filter
// when a caller does not supply a pre-built filter tree.
func WithFilterMode(mode FilterMode) DefaultsOption {
	return func(c *client.Config) { c.FilterMode = mode }
}

// WithLogger attaches a structured logger; nil restores the nop default.
func WithLogger(l Logger) DefaultsOption {
	return func(c *client.Config) { c.Logger = l }
}

// NewDefaults builds a DefaultsConfig from the package baseline plus opts,
// applied in order.
func NewDefaults(opts ...DefaultsOption) DefaultsConfig {
	cfg := client.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return DefaultsConfig{cfg: cfg}
}
