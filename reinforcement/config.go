package reinforcement

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	. "gridvalue/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// VALUE_ITERATION_KIND is the only config kind understood by FromYaml.
const VALUE_ITERATION_KIND = "valueIteration"

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig holds the grid definition, transition weights, living cost
// and sweep parameters of a value iteration run.
// The yaml tags are lowercase because viper lowercases every key it reads.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Iterations is the exact number of sweeps to run.
	Iterations int `yaml:"iterations"`
	// Update selects the sweep discipline; see UpdateRule.
	Update string `yaml:"update"`
	// Workers is the number of sweep routines for double-buffered updates.
	Workers int        `yaml:"workers"`
	Grid    GridConfig `yaml:"grid"`
	// TrainingDeadline is a duration describing when to abandon the run.
	TrainingDeadline map[string]string `yaml:"trainingdeadline"`
}

// GridConfig is a rune layout (see grid_world.Convert) and the rewards of
// its terminal runes, keyed by single-rune strings.
type GridConfig struct {
	Layout          []string           `yaml:"layout"`
	TerminalRewards map[string]float64 `yaml:"terminalrewards"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// Hyper-parameter keys.
const (
	LIVING_COST_KEY   = "livingCost"
	INTENDED_PROB_KEY = "intendedProb"
	DRIFT_PROB_KEY    = "driftProb"
)

// DefaultConfig reproduces the reference instance: the 3x4 world, living
// cost -3, 0.8/0.1/0.1 transitions and 100 in-place sweeps.
func DefaultConfig() *TrainingConfig {
	rewards := map[string]float64{}
	for cellType, reward := range ThrunRewards {
		rewards[string(cellType)] = reward
	}

	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: LIVING_COST_KEY, Val: THRUN_LIVING_COST},
			{Key: INTENDED_PROB_KEY, Val: INTENDED_PROB},
			{Key: DRIFT_PROB_KEY, Val: DRIFT_PROB},
		},
		Iterations: 100,
		Update:     string(IN_PLACE),
		Workers:    runtime.NumCPU(),
		Grid: GridConfig{
			Layout:          append([]string{}, ThrunLayout...),
			TerminalRewards: rewards,
		},
	}
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WithTrainingDeadline returns a context extended by the training deadline, if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, fmt.Errorf("training deadline: %w", err)
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// BuildModel converts the configured grid and transition weights into a
// validated transition model over a new GridWorld.
func (cfg *TrainingConfig) BuildModel() (*TransitionModel, error) {
	terminalRewards := map[rune]float64{}
	for key, reward := range cfg.Grid.TerminalRewards {
		cellType, size := utf8.DecodeRuneInString(key)
		if size == 0 || size != len(key) {
			return nil, fmt.Errorf("%w: terminal key %q is not a single rune", ErrConfiguration, key)
		}
		terminalRewards[cellType] = reward
	}

	world, err := Convert(
		cfg.Grid.Layout,
		terminalRewards,
		cfg.GetHyperParamOrDefault(LIVING_COST_KEY, THRUN_LIVING_COST))
	if err != nil {
		return nil, err
	}

	return NewTransitionModel(
		world,
		cfg.GetHyperParamOrDefault(INTENDED_PROB_KEY, INTENDED_PROB),
		cfg.GetHyperParamOrDefault(DRIFT_PROB_KEY, DRIFT_PROB))
}

// FromYaml reads a {kind, def} config envelope with viper and decodes its
// definition into a TrainingConfig. Fields absent from the file keep the
// values of DefaultConfig.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if !strings.EqualFold(outerConfig.Kind, VALUE_ITERATION_KIND) {
		return nil, fmt.Errorf("%w: unsupported config kind %q", ErrConfiguration, outerConfig.Kind)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, fmt.Errorf("encode config def: %w", err)
	}

	// yaml merges into existing maps, so the default rewards are only
	// restored when the file names none.
	innerConfig := DefaultConfig()
	defaultRewards := innerConfig.Grid.TerminalRewards
	innerConfig.Grid.TerminalRewards = nil
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("decode config def: %w", err)
	}
	if len(innerConfig.Grid.TerminalRewards) == 0 {
		innerConfig.Grid.TerminalRewards = defaultRewards
	}

	return innerConfig, nil
}
