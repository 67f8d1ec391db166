package config

import (
	"errors"
	"fmt"
)

// ErrConfig marks every configuration failure.
var ErrConfig = errors.New("config error")

var (
	errMissing = errors.New("missing required setting")
	errRange   = errors.New("out of range")
)

// ConfigError names the setting that failed to load.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}
