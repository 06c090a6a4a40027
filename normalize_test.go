package reenact

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(side, dx float32) KeypointSet {
	return KeypointSet{Value: NewTensor([]float32{
		dx, 0, 0,
		dx + side, 0, 0,
		dx + side, side, 0,
		dx, side, 0,
	}, 1, 4, 3)}
}

func cube(side, dx float32) KeypointSet {
	var data []float32
	for _, z := range []float32{0, side} {
		for _, y := range []float32{0, side} {
			for _, x := range []float32{0, side} {
				data = append(data, dx+x, y, z)
			}
		}
	}
	return KeypointSet{Value: NewTensor(data, 1, 8, 3)}
}

func TestNormalize_DisabledReturnsDriving(t *testing.T) {
	driving := square(1, 0.5)
	kp, err := NormalizeKeypoints(square(1, 0), driving, square(1, 0), NormalizeOptions{})
	require.NoError(t, err)
	assert.Same(t, driving.Value, kp.Value)
}

func TestNormalize_RelativeMovement(t *testing.T) {
	kp, err := NormalizeKeypoints(square(1, 0), square(1, 0.25), square(1, 0.5), NormalizeOptions{RelativeMovement: true})
	require.NoError(t, err)
	assert.InDeltaSlice(t, square(1, -0.25).Value.Data(), kp.Value.Data(), 1e-6)
}

func TestNormalize_AdaptMovementScale(t *testing.T) {
	// The source hull holds eight times the initial driving volume,
	// so the motion is scaled by sqrt(8).
	opts := NormalizeOptions{RelativeMovement: true, AdaptMovementScale: true}
	kp, err := NormalizeKeypoints(cube(2, 0), cube(1, 0.25), cube(1, 0), opts)
	require.NoError(t, err)
	assert.InDeltaSlice(t, cube(2, 0.25*float32(math.Sqrt(8))).Value.Data(), kp.Value.Data(), 1e-6)
}

func TestNormalize_RelativeJacobian(t *testing.T) {
	identity := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	withJacobian := func(kp KeypointSet, j []float32) KeypointSet {
		var data []float32
		for k := 0; k < kp.Len(); k++ {
			data = append(data, j...)
		}
		kp.Jacobian = NewTensor(data, 1, kp.Len(), 3, 3)
		return kp
	}

	source := withJacobian(square(1, 0), []float32{2, 0, 0, 0, 2, 0, 0, 0, 2})
	driving := withJacobian(square(1, 0), []float32{3, 0, 0, 0, 3, 0, 0, 0, 3})
	initial := withJacobian(square(1, 0), identity)

	kp, err := NormalizeKeypoints(source, driving, initial, NormalizeOptions{RelativeMovement: true, RelativeJacobian: true})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{6, 0, 0, 0, 6, 0, 0, 0, 6}, kp.Jacobian.Data().([]float32)[:9], 1e-6)

	_, err = NormalizeKeypoints(square(1, 0), driving, initial, NormalizeOptions{RelativeMovement: true, RelativeJacobian: true})
	assert.True(t, errors.Is(err, ErrInputShape))
}

func TestNormalize_DegenerateInitial(t *testing.T) {
	flat := cube(1, 0)
	data := flat.Value.Data().([]float32)
	for k := 0; k < flat.Len(); k++ {
		data[k*3+2] = 0
	}
	opts := NormalizeOptions{RelativeMovement: true, AdaptMovementScale: true}
	_, err := NormalizeKeypoints(cube(1, 0), cube(1, 0), flat, opts)
	assert.True(t, errors.Is(err, ErrInputShape))

	_, err = NormalizeKeypoints(flat, cube(1, 0), cube(1, 0), opts)
	assert.True(t, errors.Is(err, ErrInputShape))
}

func TestNormalize_HullVolume(t *testing.T) {
	testCases := []struct {
		name string
		kp   KeypointSet
		want float64
	}{
		{"tetrahedron", KeypointSet{Value: NewTensor([]float32{
			0, 0, 0,
			1, 0, 0,
			0, 1, 0,
			0, 0, 1,
		}, 1, 4, 3)}, 1.0 / 6},
		{"cube with inner point and apex", KeypointSet{Value: NewTensor(append(
			cube(2, 0).Value.Data().([]float32),
			1, 1, 1,
			1, 1, 5,
		), 1, 10, 3)}, 12},
		{"planar", square(1, 0), 0},
		{"too few points", KeypointSet{Value: NewTensor([]float32{0, 0, 0, 1, 1, 1}, 1, 2, 3)}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			vol, err := hullVolume(tc.kp)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, vol, 1e-9)
		})
	}
}
