// Package config is the Defaults Config (SPEC_FULL.md §4.I): an optional
// YAML file, loaded once at startup, supplying defaults for settings the
// CLI also accepts as flags or environment variables. Precedence is
// CLI flag/explicit env > file > built-in constant, matching the teacher's
// config layering. Unknown keys are rejected outright (teacher's
// findUnexpectedKey pattern) rather than silently ignored.
package config

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults holds the subset of CLI behaviour an operator can pin in a
// shared file instead of repeating flags on every invocation (SPEC_FULL.md
// §4.I). CLI flags and explicit env vars always win over these; these win
// over built-in constants.
type Defaults struct {
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	AllowedProtocols string        `yaml:"allowed_protocols"`
	PreCloneHook     string        `yaml:"pre_clone_hook"`
	CacheRoot        string        `yaml:"cache_root"`
	Prefetch         bool          `yaml:"prefetch"`
}

var allowedKeys = allowedYAMLKeys(Defaults{})

// Load parses data as a Defaults document, rejecting any top-level key not
// named by a `yaml` struct tag on Defaults.
func Load(data []byte) (*Defaults, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: unable to decode defaults file: %w", err)
	}
	if key := findUnexpectedKey(raw, allowedKeys); key != "" {
		return nil, fmt.Errorf("config: unexpected key: .%s", key)
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("config: unable to decode defaults file: %w", err)
	}
	return &d, nil
}

func allowedYAMLKeys(v any) []string {
	var keys []string
	typ := reflect.TypeOf(v)
	for i := 0; i < typ.NumField(); i++ {
		if tag := typ.Field(i).Tag.Get("yaml"); tag != "" {
			keys = append(keys, tag)
		}
	}
	return keys
}

func findUnexpectedKey(raw map[string]any, allowed []string) string {
	for key := range raw {
		if !slices.Contains(allowed, key) {
			return key
		}
	}
	return ""
}
