package reenact

import (
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// TransformOptions controls how the canonical keypoints are moved into a head pose.
type TransformOptions struct {
	// EstimateJacobian rotates the canonical jacobians too.
	EstimateJacobian bool
	// FreeView lets Yaw, Pitch and Roll override the estimated angles.
	// A nil override falls back to the angle decoded from the head pose.
	FreeView bool
	Yaw      *float64
	Pitch    *float64
	Roll     *float64
	// ReferencePi converts degrees to radians with the truncated ReferencePi constant.
	ReferencePi bool
}

// Angles holds the yaw, pitch and roll in degrees of every batch element.
type Angles struct {
	Yaw, Pitch, Roll []float64
}

// ResolveAngles returns the angles the keypoints will be rotated with.
// Outside of free view mode all three angles are decoded from the head pose.
func ResolveAngles(pose HeadPose, opts TransformOptions) (Angles, error) {
	var (
		angles Angles
		err    error
	)
	batch := pose.Batch()

	resolve := func(name string, pred *tensor.Dense, override *float64) ([]float64, error) {
		if opts.FreeView && override != nil {
			res := make([]float64, batch)
			for i := range res {
				res[i] = *override
			}
			return res, nil
		}
		if pred == nil {
			return nil, shapeErrorf("head pose %s prediction is missing", name)
		}
		return DecodeAngle(pred)
	}

	if angles.Yaw, err = resolve("yaw", pose.Yaw, opts.Yaw); err != nil {
		return Angles{}, err
	}
	if angles.Pitch, err = resolve("pitch", pose.Pitch, opts.Pitch); err != nil {
		return Angles{}, err
	}
	if angles.Roll, err = resolve("roll", pose.Roll, opts.Roll); err != nil {
		return Angles{}, err
	}
	return angles, nil
}

// TransformKeypoints moves the canonical keypoints into the provided head pose.
// The keypoints are rotated, translated by the pose translation and shifted by the
// expression deviation. The canonical keypoints are left untouched.
func TransformKeypoints(canonical KeypointSet, pose HeadPose, opts TransformOptions) (KeypointSet, error) {
	angles, err := ResolveAngles(pose, opts)
	if err != nil {
		return KeypointSet{}, err
	}
	return transformWithAngles(canonical, pose, angles, opts)
}

func transformWithAngles(canonical KeypointSet, pose HeadPose, angles Angles, opts TransformOptions) (KeypointSet, error) {
	if err := canonical.Validate(); err != nil {
		return KeypointSet{}, err
	}
	batch, numKP := canonical.Batch(), canonical.Len()

	if err := pose.Validate(numKP); err != nil {
		return KeypointSet{}, err
	}
	if pose.Batch() != batch {
		return KeypointSet{}, shapeErrorf("keypoint batch %d differs from head pose batch %d", batch, pose.Batch())
	}
	if opts.EstimateJacobian && canonical.Jacobian == nil {
		return KeypointSet{}, shapeErrorf("jacobian estimation requested but the canonical keypoints carry none")
	}

	rots, err := RotationMatrices(angles.Yaw, angles.Pitch, angles.Roll, opts.ReferencePi)
	if err != nil {
		return KeypointSet{}, err
	}
	if len(rots) != batch {
		return KeypointSet{}, shapeErrorf("expected %d rotations, got %d", batch, len(rots))
	}

	kp, _ := Float32s(canonical.Value)
	t, _ := Float32s(pose.T)
	exp, _ := Float32s(pose.Exp)

	value := make([]float32, len(kp))
	var (
		src = mat.NewVecDense(3, nil)
		dst = mat.NewVecDense(3, nil)
	)
	for b := 0; b < batch; b++ {
		for k := 0; k < numKP; k++ {
			off := (b*numKP + k) * 3
			for i := 0; i < 3; i++ {
				src.SetVec(i, float64(kp[off+i]))
			}
			// Rotation, then translation shared by every keypoint,
			// then the per keypoint expression deviation.
			dst.MulVec(rots[b], src)
			for i := 0; i < 3; i++ {
				value[off+i] = float32(dst.AtVec(i) + float64(t[b*3+i]) + float64(exp[off+i]))
			}
		}
	}

	res := KeypointSet{
		Value: NewTensor(value, batch, numKP, 3),
	}
	if !opts.EstimateJacobian {
		return res, nil
	}

	jac, _ := Float32s(canonical.Jacobian)
	jacobian := make([]float32, len(jac))
	var (
		j   = mat.NewDense(3, 3, nil)
		out mat.Dense
	)
	for b := 0; b < batch; b++ {
		for k := 0; k < numKP; k++ {
			off := (b*numKP + k) * 9
			for i := 0; i < 9; i++ {
				j.Set(i/3, i%3, float64(jac[off+i]))
			}
			out.Mul(rots[b], j)
			for i := 0; i < 9; i++ {
				jacobian[off+i] = float32(out.At(i/3, i%3))
			}
		}
	}
	res.Jacobian = NewTensor(jacobian, batch, numKP, 3, 3)

	return res, nil
}
