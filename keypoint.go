package reenact

import (
	"gorgonia.org/tensor"
)

// NumBins is the number of discrete bins of a head pose angle prediction.
const NumBins = 66

// KeypointSet holds K 3D keypoints per batch element and,
// when jacobian estimation is enabled, a 3x3 local linear map for each keypoint.
//
// Value has the shape (B, K, 3), Jacobian has the shape (B, K, 3, 3) or it is nil.
// A KeypointSet is never modified in place: every transformation returns a new one.
type KeypointSet struct {
	Value    *tensor.Dense
	Jacobian *tensor.Dense
}

// HeadPose describes the rigid and non-rigid head state estimated for one frame.
//
// Yaw, Pitch and Roll hold the raw scores over NumBins bins, with the shape (B, NumBins).
// T is the translation, shaped (B, 3), Exp is the expression deviation, shaped (B, 3K).
type HeadPose struct {
	Yaw   *tensor.Dense
	Pitch *tensor.Dense
	Roll  *tensor.Dense
	T     *tensor.Dense
	Exp   *tensor.Dense
}

// Batch returns the batch size of the keypoint set.
func (kp KeypointSet) Batch() int {
	if kp.Value == nil || kp.Value.Dims() != 3 {
		return 0
	}
	return kp.Value.Shape()[0]
}

// Len returns the number of keypoints per batch element.
func (kp KeypointSet) Len() int {
	if kp.Value == nil || kp.Value.Dims() != 3 {
		return 0
	}
	return kp.Value.Shape()[1]
}

// HasJacobian reports whether the keypoint set carries jacobians.
func (kp KeypointSet) HasJacobian() bool {
	return kp.Jacobian != nil
}

// Validate checks the tensor shapes of the keypoint set.
func (kp KeypointSet) Validate() error {
	if kp.Value == nil {
		return shapeErrorf("keypoint value is missing")
	}
	if err := expectShape("keypoint value", kp.Value, -1, -1, 3); err != nil {
		return err
	}
	if kp.Jacobian == nil {
		return nil
	}
	return expectShape("keypoint jacobian", kp.Jacobian, kp.Batch(), kp.Len(), 3, 3)
}

// Clone returns a deep copy of the keypoint set.
func (kp KeypointSet) Clone() KeypointSet {
	var res KeypointSet
	if kp.Value != nil {
		res.Value = kp.Value.Clone().(*tensor.Dense)
	}
	if kp.Jacobian != nil {
		res.Jacobian = kp.Jacobian.Clone().(*tensor.Dense)
	}
	return res
}

// Batch returns the batch size of the head pose.
func (hp HeadPose) Batch() int {
	if hp.T == nil || hp.T.Dims() != 2 {
		return 0
	}
	return hp.T.Shape()[0]
}

// Validate checks the head pose shapes against the number of keypoints it should deform.
func (hp HeadPose) Validate(numKP int) error {
	if hp.T == nil || hp.Exp == nil {
		return shapeErrorf("head pose translation or expression is missing")
	}
	if err := expectShape("head pose translation", hp.T, -1, 3); err != nil {
		return err
	}
	batch := hp.Batch()
	if err := expectShape("head pose expression", hp.Exp, batch, 3*numKP); err != nil {
		return err
	}
	for name, angle := range map[string]*tensor.Dense{"yaw": hp.Yaw, "pitch": hp.Pitch, "roll": hp.Roll} {
		if angle == nil {
			continue
		}
		if err := expectShape("head pose "+name, angle, batch, NumBins); err != nil {
			return err
		}
	}
	return nil
}
