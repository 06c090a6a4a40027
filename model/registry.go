package model

import (
	"sort"
	"sync"

	"github.com/esimov/reenact"
	"github.com/esimov/reenact/nn"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultArchitecture is used when a network section does not name its architecture.
const DefaultArchitecture = "pooled"

// Module is a network whose weights can be restored from a checkpoint group.
type Module interface {
	Parameters() map[string]tensor.Shape
	Load(weights map[string]*tensor.Dense) error
	State() map[string]*tensor.Dense
	Device() reenact.Device
}

// GeneratorModule is a loadable generator.
type GeneratorModule interface {
	Module
	reenact.Generator
}

// DetectorModule is a loadable keypoint detector.
type DetectorModule interface {
	Module
	reenact.KeypointDetector
}

// EstimatorModule is a loadable head pose estimator.
type EstimatorModule interface {
	Module
	reenact.PoseEstimator
}

type (
	// GeneratorBuilder instantiates a generator variant from the configuration.
	GeneratorBuilder func(cfg *Config, variant string, dev reenact.Device) (GeneratorModule, error)
	// DetectorBuilder instantiates a keypoint detector from the configuration.
	DetectorBuilder func(cfg *Config, dev reenact.Device) (DetectorModule, error)
	// EstimatorBuilder instantiates a head pose estimator from the configuration.
	EstimatorBuilder func(cfg *Config, dev reenact.Device) (EstimatorModule, error)
)

var (
	mu         sync.RWMutex
	generators = map[string]GeneratorBuilder{
		"original": newWarpGenerator,
		"spade":    newWarpGenerator,
	}
	detectors = map[string]DetectorBuilder{
		DefaultArchitecture: newKPDetector,
	}
	estimators = map[string]EstimatorBuilder{
		DefaultArchitecture: newHEEstimator,
	}
)

// RegisterGenerator makes a generator variant available to Load.
func RegisterGenerator(variant string, b GeneratorBuilder) {
	mu.Lock()
	defer mu.Unlock()
	generators[variant] = b
}

// RegisterDetector makes a keypoint detector architecture available to Load.
func RegisterDetector(arch string, b DetectorBuilder) {
	mu.Lock()
	defer mu.Unlock()
	detectors[arch] = b
}

// RegisterEstimator makes a head pose estimator architecture available to Load.
func RegisterEstimator(arch string, b EstimatorBuilder) {
	mu.Lock()
	defer mu.Unlock()
	estimators[arch] = b
}

// Variants returns the registered generator variants in sorted order.
func Variants() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func buildGenerator(cfg *Config, variant string, dev reenact.Device) (GeneratorModule, error) {
	mu.RLock()
	b, ok := generators[variant]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "unknown generator variant %q, expected one of %v", variant, Variants())
	}
	return b(cfg, variant, dev)
}

func buildDetector(cfg *Config, dev reenact.Device) (DetectorModule, error) {
	arch, err := cfg.ModelParams.KPDetectorParams.String("architecture", DefaultArchitecture)
	if err != nil {
		return nil, err
	}
	mu.RLock()
	b, ok := detectors[arch]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "unknown kp detector architecture %q", arch)
	}
	return b(cfg, dev)
}

func buildEstimator(cfg *Config, dev reenact.Device) (EstimatorModule, error) {
	arch, err := cfg.ModelParams.HEEstimatorParams.String("architecture", DefaultArchitecture)
	if err != nil {
		return nil, err
	}
	mu.RLock()
	b, ok := estimators[arch]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "unknown head pose estimator architecture %q", arch)
	}
	return b(cfg, dev)
}

func newWarpGenerator(cfg *Config, variant string, dev reenact.Device) (GeneratorModule, error) {
	params := cfg.ModelParams.GeneratorParams
	variance, err := params.Float("kp_variance", nn.DefaultKPVariance)
	if err != nil {
		return nil, err
	}
	background, err := params.Float("background_weight", nn.DefaultBackgroundWeight)
	if err != nil {
		return nil, err
	}
	g, err := nn.NewWarpGenerator(nn.WarpGeneratorOptions{
		Variant:          variant,
		NumKP:            cfg.ModelParams.CommonParams.NumKP,
		KPVariance:       variance,
		BackgroundWeight: background,
		Device:           dev,
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func newKPDetector(cfg *Config, dev reenact.Device) (DetectorModule, error) {
	grid, err := cfg.ModelParams.KPDetectorParams.Int("feature_grid", nn.DefaultGrid)
	if err != nil {
		return nil, err
	}
	d, err := nn.NewKPDetector(nn.KPDetectorOptions{
		NumKP:            cfg.ModelParams.CommonParams.NumKP,
		Grid:             grid,
		EstimateJacobian: cfg.ModelParams.CommonParams.EstimateJacobian,
		Device:           dev,
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func newHEEstimator(cfg *Config, dev reenact.Device) (EstimatorModule, error) {
	grid, err := cfg.ModelParams.HEEstimatorParams.Int("feature_grid", nn.DefaultGrid)
	if err != nil {
		return nil, err
	}
	e, err := nn.NewHEEstimator(nn.HEEstimatorOptions{
		NumKP:  cfg.ModelParams.CommonParams.NumKP,
		Grid:   grid,
		Device: dev,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
