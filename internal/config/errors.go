package config

import "errors"

// ErrConfigNotFound is returned when no config file is found at the
// specified path.
var ErrConfigNotFound = errors.New("config file not found")
