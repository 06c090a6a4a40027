package reenact

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// ReferencePi is the truncated value of π used by the reference implementation
// when converting degrees to radians. It is only used when bit-compatibility
// with reference outputs is requested.
const ReferencePi = 3.14

// RotationMatrix builds the 3x3 head rotation matrix from the yaw, pitch and roll angles
// expressed in degrees. The matrix is composed as pitch · yaw · roll, where pitch rotates
// around the X axis, yaw around the Y axis and roll around the Z axis.
func RotationMatrix(yaw, pitch, roll float64) *mat.Dense {
	return composeRotation(yaw, pitch, roll, math.Pi)
}

// RotationMatrices builds one rotation matrix per batch element.
func RotationMatrices(yaw, pitch, roll []float64, referencePi bool) ([]*mat.Dense, error) {
	if len(yaw) != len(pitch) || len(yaw) != len(roll) {
		return nil, shapeErrorf("angle batches differ: yaw %d, pitch %d, roll %d", len(yaw), len(pitch), len(roll))
	}
	pi := math.Pi
	if referencePi {
		pi = ReferencePi
	}
	rots := make([]*mat.Dense, len(yaw))
	for b := range yaw {
		rots[b] = composeRotation(yaw[b], pitch[b], roll[b], pi)
	}
	return rots, nil
}

func composeRotation(yaw, pitch, roll, pi float64) *mat.Dense {
	yaw, pitch, roll = yaw/180*pi, pitch/180*pi, roll/180*pi

	var py, rot mat.Dense
	py.Mul(pitchMatrix(pitch), yawMatrix(yaw))
	rot.Mul(&py, rollMatrix(roll))

	return &rot
}

// pitchMatrix rotates around the X axis.
func pitchMatrix(a float64) *mat.Dense {
	sin, cos := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cos, -sin,
		0, sin, cos,
	})
}

// yawMatrix rotates around the Y axis.
func yawMatrix(a float64) *mat.Dense {
	sin, cos := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		cos, 0, sin,
		0, 1, 0,
		-sin, 0, cos,
	})
}

// rollMatrix rotates around the Z axis.
func rollMatrix(a float64) *mat.Dense {
	sin, cos := math.Sincos(a)
	return mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})
}
