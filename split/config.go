package split

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Floors applied whatever the configuration says. A single-point period
// cannot be trained or evaluated on, and the earliest fold needs at least one
// sample to train on.
const (
	minTrainFloor     = 2
	minValFloor       = 2
	minFoldTrainFloor = 1

	// maxFoldsCeiling bounds how many folds a single plan may materialize.
	maxFoldsCeiling = 10000
)

// ValidationConfig tunes the thresholds and hint messages of the validators.
// The validators only read it.
type ValidationConfig struct {
	// Minimum samples in the training period.
	MinTrainPoints int `yaml:"min_data_points_train" json:"min_data_points_train"`

	// Minimum samples in the validation period.
	MinValPoints int `yaml:"min_data_points_val" json:"min_data_points_val"`

	// Minimum samples between the training start and the earliest
	// cross-validation cutoff.
	MinFoldTrainPoints int `yaml:"min_data_points_fold_train" json:"min_data_points_fold_train"`

	// Maximum folds in one cross-validation plan. Zero means the built-in
	// ceiling; larger values are capped to it.
	MaxFolds int `yaml:"max_folds" json:"max_folds,omitempty"`

	// Hints are attached to errors by rule code, e.g.
	//   hints:
	//     insufficient_samples: "Extend the date range or use a finer frequency."
	Hints map[Code]string `yaml:"hints" json:"hints,omitempty"`
}

// DefaultValidationConfig returns the thresholds used when no config file is
// given.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MinTrainPoints:     30,
		MinValPoints:       2,
		MinFoldTrainPoints: 5,
		MaxFolds:           1000,
		Hints: map[Code]string{
			CodeOverlapOrPrecedence:    "Move the validation start after the training end date.",
			CodeInsufficientSamples:    "Extend the date range or choose a finer frequency.",
			CodeFrequencyMismatch:      "Sample training and validation data at the same frequency.",
			CodeInvalidFoldCount:       "Use at least one fold and no more than max_folds.",
			CodeInvalidHorizon:         "Use a horizon of at least one period.",
			CodeFoldsExceedTrainWindow: "Reduce the number of folds or the horizon, or extend the training period.",
		},
	}
}

// LoadConfig reads a YAML file over DefaultValidationConfig. Keys absent from
// the file keep their default.
func LoadConfig(path string) (ValidationConfig, error) {
	cfg := DefaultValidationConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return ValidationConfig{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ValidationConfig{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MinTrainPoints < 0 || cfg.MinValPoints < 0 || cfg.MinFoldTrainPoints < 0 || cfg.MaxFolds < 0 {
		return ValidationConfig{}, fmt.Errorf("parse config: thresholds must not be negative")
	}
	return cfg, nil
}

func (c ValidationConfig) minTrain() int     { return max(minTrainFloor, c.MinTrainPoints) }
func (c ValidationConfig) minVal() int       { return max(minValFloor, c.MinValPoints) }
func (c ValidationConfig) minFoldTrain() int { return max(minFoldTrainFloor, c.MinFoldTrainPoints) }

func (c ValidationConfig) maxFolds() int {
	if c.MaxFolds <= 0 {
		return maxFoldsCeiling
	}
	return min(c.MaxFolds, maxFoldsCeiling)
}

func (c ValidationConfig) hint(code Code) string {
	return c.Hints[code]
}
