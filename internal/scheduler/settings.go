package scheduler

import (
	"fmt"
	"strconv"
	"strings"
)

// Recognized setting keys. Storage stays stringly-typed for operator
// configurability; parsing into Settings happens at the evaluator boundary.
const (
	KeyEnabled            = "scheduler_enabled"
	KeyMinHoursBetween    = "min_hours_between_posts"
	KeyPostsThreshold     = "posts_threshold"
	KeyViewsThreshold     = "views_threshold"
	KeyTriggerProbability = "trigger_probability"
	KeyGlobalDailyCap     = "global_daily_cap"
	KeyPersonaDailyCap    = "persona_daily_cap"
	KeyPersonaCooldown    = "persona_cooldown_hours"
)

// Settings is the typed view of the scheduler configuration.
type Settings struct {
	Enabled            bool
	MinHoursBetween    float64
	PostsThreshold     int
	ViewsThreshold     int
	TriggerProbability float64
	GlobalDailyCap     int
	PersonaDailyCap    int
	PersonaCooldown    float64
}

// DefaultSettings returns the configuration a fresh deployment runs with.
func DefaultSettings() Settings {
	return Settings{
		Enabled:            true,
		MinHoursBetween:    2.0,
		PostsThreshold:     3,
		ViewsThreshold:     25,
		TriggerProbability: 0.25,
		GlobalDailyCap:     10,
		PersonaDailyCap:    2,
		PersonaCooldown:    6.0,
	}
}

// ParseSettings builds typed settings from the stored key/value rows. A
// missing or malformed value falls back to its default, never to a zero
// value.
func ParseSettings(values map[string]string) Settings {
	s := DefaultSettings()
	if v, ok := lookup(values, KeyEnabled); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Enabled = b
		}
	}
	if f, ok := parseNonNegativeFloat(values, KeyMinHoursBetween); ok {
		s.MinHoursBetween = f
	}
	if n, ok := parseNonNegativeInt(values, KeyPostsThreshold); ok {
		s.PostsThreshold = n
	}
	if n, ok := parseNonNegativeInt(values, KeyViewsThreshold); ok {
		s.ViewsThreshold = n
	}
	if f, ok := parseNonNegativeFloat(values, KeyTriggerProbability); ok && f <= 1 {
		s.TriggerProbability = f
	}
	if n, ok := parseNonNegativeInt(values, KeyGlobalDailyCap); ok {
		s.GlobalDailyCap = n
	}
	if n, ok := parseNonNegativeInt(values, KeyPersonaDailyCap); ok {
		s.PersonaDailyCap = n
	}
	if f, ok := parseNonNegativeFloat(values, KeyPersonaCooldown); ok {
		s.PersonaCooldown = f
	}
	return s
}

// ValidateSetting rejects writes the evaluator could not honor. Reads stay
// lenient; writes do not.
func ValidateSetting(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyEnabled:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s must be a boolean", key)
		}
	case KeyMinHoursBetween, KeyPersonaCooldown:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("%s must be a non-negative number of hours", key)
		}
	case KeyTriggerProbability:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	case KeyPostsThreshold, KeyViewsThreshold, KeyGlobalDailyCap, KeyPersonaDailyCap:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer", key)
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

func lookup(values map[string]string, key string) (string, bool) {
	v, ok := values[key]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	return v, true
}

func parseNonNegativeInt(values map[string]string, key string) (int, bool) {
	v, ok := lookup(values, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseNonNegativeFloat(values map[string]string, key string) (float64, bool) {
	v, ok := lookup(values, key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
