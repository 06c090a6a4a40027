// Package model instantiates the animation networks from a YAML configuration
// and restores their weights from a checkpoint archive.
package model

import (
	"time"

	"github.com/esimov/reenact"
	"github.com/esimov/reenact/utils"
	"github.com/pkg/errors"
)

// Models bundles the three networks needed by reenact.Animator.
type Models struct {
	Generator GeneratorModule
	Detector  DetectorModule
	Estimator EstimatorModule

	// EstimateJacobian reports whether the detector returns jacobians.
	EstimateJacobian bool
	Device           reenact.Device
	Config           *Config
}

// Load reads the configuration, instantiates the generator variant, the keypoint detector
// and the head pose estimator on the selected device and restores their weights.
// The checkpoint must match the instantiated networks exactly.
func Load(configPath, checkpointPath, variant string, useGPU bool) (*Models, error) {
	start := time.Now()

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	dev, err := SelectDevice(useGPU)
	if err != nil {
		return nil, err
	}
	models, err := Build(cfg, variant, dev)
	if err != nil {
		return nil, err
	}

	ckpt, err := ReadCheckpoint(checkpointPath)
	if err != nil {
		return nil, err
	}
	if err := models.Restore(ckpt); err != nil {
		return nil, err
	}

	utils.Logger().Info("models loaded",
		"variant", variant,
		"device", dev,
		"num_kp", cfg.ModelParams.CommonParams.NumKP,
		"estimate_jacobian", models.EstimateJacobian,
		"elapsed", time.Since(start),
	)
	return models, nil
}

// Build instantiates the networks with zero weights.
func Build(cfg *Config, variant string, dev reenact.Device) (*Models, error) {
	gen, err := buildGenerator(cfg, variant, dev)
	if err != nil {
		return nil, err
	}
	det, err := buildDetector(cfg, dev)
	if err != nil {
		return nil, err
	}
	est, err := buildEstimator(cfg, dev)
	if err != nil {
		return nil, err
	}
	return &Models{
		Generator:        gen,
		Detector:         det,
		Estimator:        est,
		EstimateJacobian: cfg.ModelParams.CommonParams.EstimateJacobian,
		Device:           dev,
		Config:           cfg,
	}, nil
}

// Restore loads every network from its checkpoint group.
func (m *Models) Restore(ckpt Checkpoint) error {
	for _, g := range m.groups() {
		weights, ok := ckpt[g.name]
		if !ok {
			return errors.Wrapf(reenact.ErrCheckpointMismatch, "checkpoint has no %s group", g.name)
		}
		if err := g.module.Load(weights); err != nil {
			return errors.Wrapf(err, "%s", g.name)
		}
		utils.Logger().Debug("weights restored", "group", g.name, "params", len(weights))
	}
	return nil
}

// Checkpoint returns a copy of the current weights of every network.
func (m *Models) Checkpoint() Checkpoint {
	ckpt := make(Checkpoint)
	for _, g := range m.groups() {
		ckpt[g.name] = Weights(g.module.State())
	}
	return ckpt
}

// Animator returns an animator wired to the loaded networks.
func (m *Models) Animator() *reenact.Animator {
	return &reenact.Animator{
		Detector:         m.Detector,
		Estimator:        m.Estimator,
		Generator:        m.Generator,
		EstimateJacobian: m.EstimateJacobian,
	}
}

type group struct {
	name   string
	module Module
}

func (m *Models) groups() []group {
	return []group{
		{GroupGenerator, m.Generator},
		{GroupKPDetector, m.Detector},
		{GroupHEEstimator, m.Estimator},
	}
}
