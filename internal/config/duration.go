package config

import (
	"fmt"
	"strings"
	"time"
)

// Shared defaults used by validation and the app wiring.
const (
	DefaultPollTimeout  = 10 * time.Second
	DefaultInterval     = 5 * time.Minute
	DefaultMaxPostAge   = 24 * time.Hour
	DefaultPostDelayMin = 5 * time.Second
	DefaultPostDelayMax = 10 * time.Second
	DefaultFetchLimit   = 10
)

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
