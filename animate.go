package reenact

import (
	"time"

	"github.com/esimov/reenact/utils"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// FrameStats holds the relevant information about an animated frame.
type FrameStats struct {
	Index   int
	Yaw     float64
	Pitch   float64
	Roll    float64
	Elapsed time.Duration
}

// Animator animates a source frame with the head motion of a driving sequence.
type Animator struct {
	Detector  KeypointDetector
	Estimator PoseEstimator
	Generator Generator

	// EstimateJacobian should match the configuration the detector was loaded with.
	EstimateJacobian bool

	// FreeView overrides the driving angles with Yaw, Pitch and Roll (when set).
	FreeView bool
	Yaw      *float64
	Pitch    *float64
	Roll     *float64

	// Normalize enables the relative motion transfer. It is disabled by default,
	// in which case Relative and AdaptMovementScale have no effect.
	Normalize          bool
	Relative           bool
	AdaptMovementScale bool

	// ReferencePi converts degrees with the truncated π of the reference outputs.
	ReferencePi bool

	// OnFrame, if set, is called after every synthesized frame.
	OnFrame func(FrameStats)
}

// Animate produces one output frame for each driving frame, in the same order.
// The canonical keypoints of the source are computed once and reused for every frame.
// The first error aborts the whole animation: no partial result is returned.
func (a *Animator) Animate(source *tensor.Dense, driving []*tensor.Dense) ([]*tensor.Dense, error) {
	height, width, err := FrameSize(source)
	if err != nil {
		return nil, errors.Wrap(err, "invalid source frame")
	}
	if len(driving) == 0 {
		return []*tensor.Dense{}, nil
	}
	if a.Detector == nil || a.Estimator == nil || a.Generator == nil {
		return nil, errors.Wrap(ErrConfiguration, "animator requires a detector, an estimator and a generator")
	}

	canonical, err := a.Detector.Detect(source)
	if err != nil {
		return nil, errors.Wrap(err, "keypoint detection failed on the source frame")
	}
	baseOpts := TransformOptions{
		EstimateJacobian: a.EstimateJacobian,
		ReferencePi:      a.ReferencePi,
	}

	kpSource, _, err := a.keypoints(canonical, source, baseOpts)
	if err != nil {
		return nil, errors.Wrap(err, "source frame")
	}
	kpInitial, _, err := a.keypoints(canonical, driving[0], baseOpts)
	if err != nil {
		return nil, errors.Wrap(err, "initial driving frame")
	}

	drivingOpts := baseOpts
	drivingOpts.FreeView = a.FreeView
	drivingOpts.Yaw, drivingOpts.Pitch, drivingOpts.Roll = a.Yaw, a.Pitch, a.Roll

	frames := make([]*tensor.Dense, 0, len(driving))
	for idx, frame := range driving {
		now := time.Now()

		kpDriving, angles, err := a.keypoints(canonical, frame, drivingOpts)
		if err != nil {
			return nil, errors.Wrapf(err, "driving frame %d", idx)
		}
		if a.Normalize {
			kpDriving, err = NormalizeKeypoints(kpSource, kpDriving, kpInitial, NormalizeOptions{
				AdaptMovementScale: a.AdaptMovementScale,
				RelativeMovement:   a.Relative,
				RelativeJacobian:   a.EstimateJacobian,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "driving frame %d: keypoint normalization", idx)
			}
		}

		out, err := a.Generator.Synthesize(source, kpSource, kpDriving)
		if err != nil {
			return nil, errors.Wrapf(err, "driving frame %d: synthesis failed", idx)
		}
		h, w, err := FrameSize(out)
		if err != nil {
			return nil, errors.Wrapf(err, "driving frame %d: generator output", idx)
		}
		if h != height || w != width {
			return nil, shapeErrorf("driving frame %d: generator returned %dx%d, expected %dx%d", idx, w, h, width, height)
		}
		frames = append(frames, out)

		stats := FrameStats{
			Index:   idx,
			Yaw:     first(angles.Yaw),
			Pitch:   first(angles.Pitch),
			Roll:    first(angles.Roll),
			Elapsed: time.Since(now),
		}
		utils.Logger().Debug("frame animated",
			"frame", idx, "yaw", stats.Yaw, "pitch", stats.Pitch, "roll", stats.Roll, "elapsed", stats.Elapsed)
		if a.OnFrame != nil {
			a.OnFrame(stats)
		}
	}
	return frames, nil
}

// keypoints estimates the head pose of the frame and moves the canonical keypoints into it.
func (a *Animator) keypoints(canonical KeypointSet, frame *tensor.Dense, opts TransformOptions) (KeypointSet, Angles, error) {
	pose, err := a.Estimator.Estimate(frame)
	if err != nil {
		return KeypointSet{}, Angles{}, errors.Wrap(err, "head pose estimation failed")
	}
	angles, err := ResolveAngles(pose, opts)
	if err != nil {
		return KeypointSet{}, Angles{}, err
	}
	kp, err := transformWithAngles(canonical, pose, angles, opts)
	if err != nil {
		return KeypointSet{}, Angles{}, err
	}
	return kp, angles, nil
}

// first returns the value of the first batch element.
func first(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}
