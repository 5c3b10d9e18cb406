package butterfly

import "time"

// Settings are the tunable knobs of the engine. Zero values are replaced by
// DefaultSettings in Normalize.
type Settings struct {
	SilenceThresholdHours  int           `toml:"silence_threshold_hours"`
	RecentRewardWindow     time.Duration `toml:"-"`
	HeartSyncPhoenixAbove  int           `toml:"heart_sync_phoenix_above"`
	FlutterTapProbability  float64       `toml:"flutter_tap_probability"`
	NormalizeSyncLevel     bool          `toml:"normalize_sync_level"`
	HeartRateHistoryLimit  int           `toml:"heart_rate_history_limit"`
	SessionDurationSeconds int           `toml:"session_duration_seconds"`
	SampleIntervalMs       int           `toml:"sample_interval_ms"`
	TargetSyncPercent      int           `toml:"target_sync_percent"`
}

func DefaultSettings() Settings {
	return Settings{
		SilenceThresholdHours:  72,
		RecentRewardWindow:     24 * time.Hour,
		HeartSyncPhoenixAbove:  90,
		FlutterTapProbability:  0.40,
		NormalizeSyncLevel:     false,
		HeartRateHistoryLimit:  100,
		SessionDurationSeconds: 60,
		SampleIntervalMs:       1000,
		TargetSyncPercent:      80,
	}
}

// Normalize fills unset fields with defaults.
func (s Settings) Normalize() Settings {
	d := DefaultSettings()
	if s.SilenceThresholdHours <= 0 {
		s.SilenceThresholdHours = d.SilenceThresholdHours
	}
	if s.RecentRewardWindow <= 0 {
		s.RecentRewardWindow = d.RecentRewardWindow
	}
	if s.HeartSyncPhoenixAbove <= 0 {
		s.HeartSyncPhoenixAbove = d.HeartSyncPhoenixAbove
	}
	if s.FlutterTapProbability <= 0 || s.FlutterTapProbability > 1 {
		s.FlutterTapProbability = d.FlutterTapProbability
	}
	if s.HeartRateHistoryLimit <= 0 {
		s.HeartRateHistoryLimit = d.HeartRateHistoryLimit
	}
	if s.SessionDurationSeconds <= 0 {
		s.SessionDurationSeconds = d.SessionDurationSeconds
	}
	if s.SampleIntervalMs <= 0 {
		s.SampleIntervalMs = d.SampleIntervalMs
	}
	if s.TargetSyncPercent <= 0 {
		s.TargetSyncPercent = d.TargetSyncPercent
	}
	return s
}
