package companioncore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ──────────────────────────────────────────────
// Mode Catalog Loader — YAML → validated immutable catalog
// ──────────────────────────────────────────────

// CatalogWarning is a non-fatal issue found while normalizing the catalog.
type CatalogWarning struct {
	ModeID  string
	Field   string
	Message string
}

// modeCatalogFile is the on-disk YAML shape.
type modeCatalogFile struct {
	Modes []Mode `yaml:"modes"`
}

// LoadModeCatalog reads and parses a YAML mode catalog from path.
// Schema violations fail here, at startup, never per-request.
func LoadModeCatalog(path string) ([]Mode, []CatalogWarning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read mode catalog: %w", err)
	}
	return ParseModeCatalog(data)
}

// ParseModeCatalog parses a YAML mode catalog and fills defaults.
// The non-empty-catalog invariant is enforced here; per-mode gaps that
// have safe defaults (split strategy, typing speed) produce warnings
// instead of errors.
func ParseModeCatalog(data []byte) ([]Mode, []CatalogWarning, error) {
	var file modeCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("parse mode catalog: %w", err)
	}
	if len(file.Modes) == 0 {
		return nil, nil, fmt.Errorf("mode catalog is empty: at least one mode is required")
	}

	var warnings []CatalogWarning
	for i := range file.Modes {
		m := &file.Modes[i]
		if m.ID == "" {
			return nil, nil, fmt.Errorf("mode at index %d has empty id", i)
		}
		switch m.SplitStrategy {
		case SplitNormal, SplitFragmented:
		case "":
			m.SplitStrategy = SplitNormal
		default:
			warnings = append(warnings, CatalogWarning{
				ModeID:  m.ID,
				Field:   "split_strategy",
				Message: fmt.Sprintf("unknown strategy %q, defaulting to normal", m.SplitStrategy),
			})
			m.SplitStrategy = SplitNormal
		}
		if m.TypingSpeedMultiplier <= 0 {
			if m.TypingSpeedMultiplier < 0 {
				warnings = append(warnings, CatalogWarning{
					ModeID:  m.ID,
					Field:   "typing_speed_multiplier",
					Message: fmt.Sprintf("non-positive multiplier %v, defaulting to 1.0", m.TypingSpeedMultiplier),
				})
			}
			m.TypingSpeedMultiplier = 1.0
		}
	}
	return file.Modes, warnings, nil
}
