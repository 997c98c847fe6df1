package client

import (
	"time"

	oerrors "github.com/oba-ldap/oba/internal/errors"
	"github.com/oba-ldap/oba/internal/filter"
	"github.com/oba-ldap/oba/internal/logging"
)

// EmptyValuePolicy controls how the modification planner (internal/modify)
// treats a replace whose value list is empty. It does not apply to add
// or delete: the non-strict planner drops an add or delete left with no
// values after dedup whatever the policy. It is a single value, so Ignore, Warn and Error cannot be set at the
// same time; no construction step checks for a conflicting combination.
type EmptyValuePolicy int

const (
	// EmptyValueIgnore silently drops the modification.
	EmptyValueIgnore EmptyValuePolicy = iota
	// EmptyValueWarn logs a warning and drops the modification.
	EmptyValueWarn
	// EmptyValueError fails the call with InvalidValue.
	EmptyValueError
)

// Config is the immutable set of per-connection defaults a Connection is
// built with. The public oba.DefaultsConfig builder produces one of
// these; internal/client never constructs a Config from file-format
// input, which belongs to surrounding tooling.
type Config struct {
	DialTimeout      time.Duration
	OperationTimeout time.Duration

	// BackpressureHighWaterMark bounds the buffered channel backing each
	// search stream's sink. Zero means the package default (see
	// DefaultConfig).
	BackpressureHighWaterMark int

	EmptyValuePolicy EmptyValuePolicy

	// Strict disables the modification planner's pre-fetch/dedup pass.
	Strict bool

	// FilterMode is the default parse mode used when a caller supplies a
	// filter string rather than a pre-built *filter.Filter.
	FilterMode filter.Mode

	Logger logging.Logger
}

// DefaultConfig returns the package's baseline Config: a 30s dial
// timeout, a 30s per-operation timeout, a 100-entry search backpressure
// window, ignore-empty modifications, non-strict planning, unified
// filter parsing, and a nop logger.
func DefaultConfig() Config {
	return Config{
		DialTimeout:               30 * time.Second,
		OperationTimeout:          30 * time.Second,
		BackpressureHighWaterMark: 100,
		EmptyValuePolicy:          EmptyValueIgnore,
		Strict:                    false,
		FilterMode:                filter.ModeUnified,
		Logger:                    logging.NewNop(),
	}
}

// Valid reports whether c's toggles are an allowed combination. Currently
// the only constraint is EmptyValuePolicy being one of its three declared
// values; it exists as a single validation point so future mutually
// exclusive options can be checked in one place.
func (c Config) Valid() error {
	switch c.EmptyValuePolicy {
	case EmptyValueIgnore, EmptyValueWarn, EmptyValueError:
		return nil
	default:
		return &oerrors.InvalidValue{Attribute: "EmptyValuePolicy", Reason: "must be one of Ignore, Warn, or Error"}
	}
}

func (c Config) highWaterMark() int {
	if c.BackpressureHighWaterMark > 0 {
		return c.BackpressureHighWaterMark
	}
	return DefaultConfig().BackpressureHighWaterMark
}

func (c Config) logger() logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.NewNop()
}
