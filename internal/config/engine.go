// internal/config/engine.go
// Reward engine tuning, read from an optional TOML file

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/imadgeboyega/heartwing-backend/internal/butterfly"
)

// EngineConfig is the engine tuning plus the commit retry budget.
type EngineConfig struct {
	Settings          butterfly.Settings
	MaxCommitAttempts int
}

type engineFile struct {
	butterfly.Settings
	RecentRewardWindow string `toml:"recent_reward_window"`
	MaxCommitAttempts  int    `toml:"max_commit_attempts"`
}

// LoadEngineConfig overlays the TOML file at path on the engine defaults.
// An empty path returns the defaults. Keys the engine does not know are
// rejected so typos do not silently fall back to defaults.
func LoadEngineConfig(path string, maxCommitAttempts int) (*EngineConfig, error) {
	cfg := &EngineConfig{
		Settings:          butterfly.DefaultSettings(),
		MaxCommitAttempts: maxCommitAttempts,
	}
	if path == "" {
		return cfg, nil
	}

	file := engineFile{Settings: cfg.Settings}
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown engine config keys: %s", strings.Join(keys, ", "))
	}

	if file.RecentRewardWindow != "" {
		window, err := time.ParseDuration(file.RecentRewardWindow)
		if err != nil {
			return nil, fmt.Errorf("invalid recent_reward_window: %w", err)
		}
		file.Settings.RecentRewardWindow = window
	}
	if md.IsDefined("max_commit_attempts") {
		if file.MaxCommitAttempts < 1 {
			return nil, fmt.Errorf("max_commit_attempts must be positive")
		}
		cfg.MaxCommitAttempts = file.MaxCommitAttempts
	}

	cfg.Settings = file.Settings.Normalize()
	return cfg, nil
}
