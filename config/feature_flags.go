package config

import (
	"errors"
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Flags gate optional side effects only. The derivation rules themselves
// are never behind a flag.
const (
	FeatureNotifyAchievement = "notify.achievement"
	FeatureNotifyLevelUp     = "notify.level_up"
	FeatureLeaderboardCache  = "leaderboard.cache"
	FeatureCatalogSeed       = "catalog.seed"
)

// knownFeatures lists every flag with its default rollout percentage.
var knownFeatures = map[string]int{
	FeatureNotifyAchievement: 100,
	FeatureNotifyLevelUp:     100,
	FeatureLeaderboardCache:  100,
	FeatureCatalogSeed:       100,
}

var (
	ErrFeatureNotFound       = errors.New("feature not found")
	ErrInvalidRolloutPercent = errors.New("rollout percent must be 0-100")
)

// FeatureContext is what a flag is evaluated against.
type FeatureContext struct {
	UserID string
}

// FeatureFlags holds a rollout percentage per flag plus per-user overrides.
// A user's bucket is a hash of flag and user, so raising the percentage
// only ever adds users. The zero value is not usable; a nil *FeatureFlags
// reports every flag as enabled.
type FeatureFlags struct {
	mu        sync.RWMutex
	rollout   map[string]int
	overrides map[string]map[string]bool // user -> flag -> enabled
}

// NewFeatureFlags returns the defaults, ignoring the environment.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		rollout:   make(map[string]int, len(knownFeatures)),
		overrides: make(map[string]map[string]bool),
	}
	for name, percent := range knownFeatures {
		ff.rollout[name] = percent
	}
	return ff
}

// LoadFeatureFlags applies FEATURE_<NAME> overrides on top of the defaults.
// A value is a bool or a percentage; anything else is ignored.
//
//	FEATURE_NOTIFY_LEVEL_UP=false
//	FEATURE_NOTIFY_ACHIEVEMENT=50
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	for name := range ff.rollout {
		if percent, ok := parseRollout(os.Getenv(envKeyFor(name))); ok {
			ff.rollout[name] = percent
		}
	}
	return ff
}

func parseRollout(v string) (int, bool) {
	if v == "" {
		return 0, false
	}
	if b, err := strconv.ParseBool(v); err == nil {
		if b {
			return 100, true
		}
		return 0, true
	}
	if p, err := strconv.Atoi(v); err == nil && p >= 0 && p <= 100 {
		return p, true
	}
	return 0, false
}

// envKeyFor maps "notify.level_up" to "FEATURE_NOTIFY_LEVEL_UP".
func envKeyFor(name string) string {
	return "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))
}

// IsEnabled evaluates a flag. Without a user a partial rollout counts as
// enabled; unknown flags are disabled.
func (ff *FeatureFlags) IsEnabled(name string, fc *FeatureContext) bool {
	if ff == nil {
		return true
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	userID := ""
	if fc != nil {
		userID = fc.UserID
	}
	if enabled, ok := ff.overrides[userID][name]; ok && userID != "" {
		return enabled
	}

	percent, ok := ff.rollout[name]
	switch {
	case !ok || percent == 0:
		return false
	case percent == 100 || userID == "":
		return true
	default:
		return bucketOf(name, userID) < percent
	}
}

// EnabledFor evaluates a flag for one user.
func (ff *FeatureFlags) EnabledFor(name, userID string) bool {
	return ff.IsEnabled(name, &FeatureContext{UserID: userID})
}

func bucketOf(name, userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % 100)
}

// SetUserOverride pins a flag for one user regardless of rollout.
func (ff *FeatureFlags) SetUserOverride(userID, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.overrides[userID] == nil {
		ff.overrides[userID] = make(map[string]bool)
	}
	ff.overrides[userID][name] = enabled
}

func (ff *FeatureFlags) SetRolloutPercent(name string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.rollout[name]; !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}
	ff.rollout[name] = percent
	return nil
}

func (ff *FeatureFlags) EnableFeature(name string) error { return ff.SetRolloutPercent(name, 100) }

func (ff *FeatureFlags) DisableFeature(name string) error { return ff.SetRolloutPercent(name, 0) }
