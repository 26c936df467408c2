package phase

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eaeptdev/eaept/internal/log"
)

// Config holds the scheduling policy for a single phase.
type Config struct {
	Name        string
	Description string

	// AutoTransitionThreshold is the minimum completion confidence required
	// to auto-advance past this phase.
	AutoTransitionThreshold float64

	// BudgetThreshold is the fraction of the total resource budget that
	// triggers optimization after this phase. Comparison is strict.
	BudgetThreshold float64

	// MaxDurationMinutes is advisory metadata for the external phase
	// executor. Zero means no limit.
	MaxDurationMinutes int

	// OptimizationStrategy names the strategy passed to the optimization
	// trigger when the budget threshold is crossed.
	OptimizationStrategy string

	// RAGIntegration and Parallelizable describe phase characteristics
	// consumed by external executors, not by the scheduler itself.
	RAGIntegration bool
	Parallelizable bool
}

// Override carries user-supplied policy values for a single phase.
// Nil fields keep the built-in default.
type Override struct {
	AutoTransitionThreshold *float64 `yaml:"auto_transition_threshold"`
	BudgetThreshold         *float64 `yaml:"budget_threshold"`
	MaxDurationMinutes      *int     `yaml:"max_duration_minutes"`
	OptimizationStrategy    *string  `yaml:"optimization_strategy"`
	RAGIntegration          *bool    `yaml:"rag_integration"`
	Parallelizable          *bool    `yaml:"parallel_execution"`
}

// Catalog is the static table of per-phase configs.
type Catalog struct {
	configs map[Phase]Config
}

// NewCatalog builds a catalog populated with the built-in defaults.
func NewCatalog() *Catalog {
	return &Catalog{
		configs: map[Phase]Config{
			Express: {
				Name:                    "Express",
				Description:             "Deep analysis and task framing",
				AutoTransitionThreshold: 0.85,
				BudgetThreshold:         0.6,
				MaxDurationMinutes:      15,
				OptimizationStrategy:    "preserve_thinking",
			},
			Ask: {
				Name:                    "Ask",
				Description:             "Interactive clarification and validation",
				AutoTransitionThreshold: 0.9,
				BudgetThreshold:         0.5,
				MaxDurationMinutes:      10,
				OptimizationStrategy:    "preserve_dialogue",
			},
			Explore: {
				Name:                    "Explore",
				Description:             "RAG-powered research and discovery",
				AutoTransitionThreshold: 0.8,
				BudgetThreshold:         0.85,
				MaxDurationMinutes:      30,
				OptimizationStrategy:    "preserve_research",
				RAGIntegration:          true,
				Parallelizable:          true,
			},
			Plan: {
				Name:                    "Plan",
				Description:             "Detailed implementation planning",
				AutoTransitionThreshold: 0.85,
				BudgetThreshold:         0.7,
				MaxDurationMinutes:      20,
				OptimizationStrategy:    "preserve_architecture",
			},
			Code: {
				Name:                    "Code",
				Description:             "Implementation and development",
				AutoTransitionThreshold: 0.8,
				BudgetThreshold:         0.9,
				MaxDurationMinutes:      60,
				OptimizationStrategy:    "preserve_code",
				Parallelizable:          true,
			},
			Test: {
				Name:                    "Test",
				Description:             "Validation and quality assurance",
				AutoTransitionThreshold: 0.9,
				BudgetThreshold:         0.8,
				MaxDurationMinutes:      30,
				OptimizationStrategy:    "preserve_tests",
				Parallelizable:          true,
			},
		},
	}
}

// ConfigFor returns the config for a phase. It fails with ErrUnknownPhase for
// names outside the fixed order. The terminal phase has no policy parameters.
func (c *Catalog) ConfigFor(p Phase) (Config, error) {
	if !p.Valid() {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownPhase, p)
	}
	cfg, ok := c.configs[p]
	if !ok {
		return Config{}, fmt.Errorf("phase %s has no config", p)
	}
	return cfg, nil
}

// ApplyOverrides merges user-supplied values over the built-in defaults
// field-by-field. Unknown phase keys and out-of-range thresholds are logged
// and skipped; the session must still start.
func (c *Catalog) ApplyOverrides(overrides map[string]Override) {
	for name, ov := range overrides {
		p, err := Parse(name)
		if err != nil {
			log.Warn("ignoring override for unknown phase", "phase", name)
			continue
		}
		cfg, ok := c.configs[p]
		if !ok {
			log.Warn("ignoring override for terminal phase", "phase", name)
			continue
		}

		if ov.AutoTransitionThreshold != nil {
			if v := *ov.AutoTransitionThreshold; v < 0 || v > 1 {
				log.Warn("ignoring out-of-range auto_transition_threshold",
					"phase", name, "value", v)
			} else {
				cfg.AutoTransitionThreshold = v
			}
		}
		if ov.BudgetThreshold != nil {
			if v := *ov.BudgetThreshold; v < 0 || v > 1 {
				log.Warn("ignoring out-of-range budget_threshold",
					"phase", name, "value", v)
			} else {
				cfg.BudgetThreshold = v
			}
		}
		if ov.MaxDurationMinutes != nil {
			cfg.MaxDurationMinutes = *ov.MaxDurationMinutes
		}
		if ov.OptimizationStrategy != nil {
			cfg.OptimizationStrategy = *ov.OptimizationStrategy
		}
		if ov.RAGIntegration != nil {
			cfg.RAGIntegration = *ov.RAGIntegration
		}
		if ov.Parallelizable != nil {
			cfg.Parallelizable = *ov.Parallelizable
		}

		c.configs[p] = cfg
	}
}

// overridesFile is the YAML layout of the phase override file.
type overridesFile struct {
	Phases map[string]Override `yaml:"phases"`
}

// LoadOverrides reads phase overrides from a YAML file. A missing file is not
// an error; the catalog defaults apply.
func LoadOverrides(path string) (map[string]Override, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read phase overrides: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse phase overrides: %w", err)
	}
	return file.Phases, nil
}
