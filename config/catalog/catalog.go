// Package catalog loads the built-in achievement catalog. The default is
// embedded; CATALOG_YAML points to a replacement file.
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recoverly/progress-hub/internal/domain/achievement"
)

// PathEnv overrides the embedded catalog with a file on disk.
const PathEnv = "CATALOG_YAML"

//go:embed achievements.yaml
var catalogFS embed.FS

type yamlCatalog struct {
	Version      int               `yaml:"version"`
	Achievements []yamlAchievement `yaml:"achievements"`
}

type yamlAchievement struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Description string       `yaml:"description"`
	Category    string       `yaml:"category"`
	Tier        string       `yaml:"tier"`
	Criteria    yamlCriteria `yaml:"criteria"`
	XPReward    int          `yaml:"xp_reward"`
	Active      *bool        `yaml:"active"`
}

type yamlCriteria struct {
	Type  string `yaml:"type"`
	Value int    `yaml:"value"`
}

// Load reads the catalog from CATALOG_YAML or the embedded default.
func Load(now time.Time) ([]*achievement.Achievement, error) {
	data, err := read()
	if err != nil {
		return nil, err
	}
	return Parse(data, now)
}

// Default returns the embedded catalog.
func Default(now time.Time) ([]*achievement.Achievement, error) {
	data, err := catalogFS.ReadFile("achievements.yaml")
	if err != nil {
		return nil, err
	}
	return Parse(data, now)
}

// Parse decodes and validates a catalog document.
func Parse(data []byte, now time.Time) ([]*achievement.Achievement, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(doc.Achievements) == 0 {
		return nil, errors.New("catalog: no achievements defined")
	}

	seen := make(map[string]bool, len(doc.Achievements))
	out := make([]*achievement.Achievement, 0, len(doc.Achievements))
	for i, y := range doc.Achievements {
		category, err := achievement.ParseCategory(y.Category)
		if err != nil {
			return nil, fmt.Errorf("catalog: entry %d (%s): %w", i, y.ID, err)
		}
		a := &achievement.Achievement{
			ID:          strings.TrimSpace(y.ID),
			Name:        strings.TrimSpace(y.Name),
			Description: strings.TrimSpace(y.Description),
			Category:    category,
			Tier:        y.Tier,
			Criteria:    achievement.Criteria{Type: y.Criteria.Type, Value: y.Criteria.Value},
			XPReward:    y.XPReward,
			IsActive:    y.Active == nil || *y.Active,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("catalog: entry %d (%s): %w", i, y.ID, err)
		}
		if seen[a.ID] {
			return nil, fmt.Errorf("catalog: duplicate id %q", a.ID)
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out, nil
}

func read() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(PathEnv)); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("catalog: read %s: %w", path, err)
		}
		return data, nil
	}
	return catalogFS.ReadFile("achievements.yaml")
}
