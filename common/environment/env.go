// Package environment reads process configuration from environment
// variables. Optional variables fall back to a default on absence or a
// parse failure; required ones return an error so main can report it
// instead of the library exiting the process.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// StringOr returns the named variable's value, or def when it is unset
// or empty.
func StringOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// RequiredString returns the named variable's value, or an error when it
// is unset or empty.
func RequiredString(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("required environment variable %q is not set", name)
	}
	return v, nil
}

// IntOr parses the named variable as a decimal integer, falling back to
// def when it is unset, empty, or unparseable.
func IntOr(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// DurationOr parses the named variable with time.ParseDuration (e.g.
// "30s", "5m"), falling back to def when it is unset, empty, or
// unparseable.
func DurationOr(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
