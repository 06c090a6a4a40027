package reenact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

type fakeDetector struct {
	calls int
	kp    KeypointSet
	err   error
}

func (d *fakeDetector) Detect(*tensor.Dense) (KeypointSet, error) {
	d.calls++
	return d.kp, d.err
}

// fakeEstimator encodes the first pixel of every frame as translation along X.
type fakeEstimator struct {
	calls  int
	numKP  int
	failAt int
}

func (e *fakeEstimator) Estimate(frame *tensor.Dense) (HeadPose, error) {
	e.calls++
	if e.failAt > 0 && e.calls == e.failAt {
		return HeadPose{}, errors.New("estimator failure")
	}
	pose := uniformPose(1, e.numKP)
	pose.T.Data().([]float32)[0] = frame.Data().([]float32)[0]
	return pose, nil
}

// fakeGenerator writes the X of the first driving keypoint into every pixel.
type fakeGenerator struct {
	calls  int
	resize bool
}

func (g *fakeGenerator) Synthesize(source *tensor.Dense, _, kpDriving KeypointSet) (*tensor.Dense, error) {
	g.calls++
	h, w, err := FrameSize(source)
	if err != nil {
		return nil, err
	}
	if g.resize {
		h++
	}
	out := NewFrame(h, w)
	x := kpDriving.Value.Data().([]float32)[0]
	data := out.Data().([]float32)
	for i := range data {
		data[i] = x
	}
	return out, nil
}

func markedFrame(v float32) *tensor.Dense {
	frame := NewFrame(4, 4)
	frame.Data().([]float32)[0] = v
	return frame
}

func newTestAnimator() (*Animator, *fakeDetector, *fakeEstimator, *fakeGenerator) {
	det := &fakeDetector{kp: KeypointSet{Value: NewTensor(make([]float32, 3), 1, 1, 3)}}
	est := &fakeEstimator{numKP: 1}
	gen := &fakeGenerator{}

	a := &Animator{
		Detector:  det,
		Estimator: est,
		Generator: gen,
		FreeView:  true,
		Yaw:       ptr(0),
		Pitch:     ptr(0),
		Roll:      ptr(0),
	}
	return a, det, est, gen
}

func TestAnimate_EmptyDriving(t *testing.T) {
	a, det, est, gen := newTestAnimator()

	frames, err := a.Animate(markedFrame(0), nil)
	require.NoError(t, err)
	assert.NotNil(t, frames)
	assert.Empty(t, frames)
	assert.Zero(t, det.calls+est.calls+gen.calls)
}

func TestAnimate_LengthAndOrder(t *testing.T) {
	a, det, est, gen := newTestAnimator()

	var stats []FrameStats
	a.OnFrame = func(s FrameStats) { stats = append(stats, s) }

	driving := []*tensor.Dense{markedFrame(0.1), markedFrame(0.2), markedFrame(0.3)}
	frames, err := a.Animate(markedFrame(0.9), driving)
	require.NoError(t, err)
	require.Len(t, frames, 3)

	for i, f := range frames {
		assert.InDelta(t, driving[i].Data().([]float32)[0], f.Data().([]float32)[5], 1e-6)
	}
	assert.Equal(t, 1, det.calls)
	assert.Equal(t, len(driving)+2, est.calls)
	assert.Equal(t, len(driving), gen.calls)

	require.Len(t, stats, 3)
	for i, s := range stats {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, 0.0, s.Yaw)
	}
}

func TestAnimate_RelativeMotion(t *testing.T) {
	a, _, _, _ := newTestAnimator()
	a.Normalize = true
	a.Relative = true

	// Source at 0.9, initial driving at 0.1: the driving motion is applied onto the source.
	driving := []*tensor.Dense{markedFrame(0.1), markedFrame(0.3)}
	frames, err := a.Animate(markedFrame(0.9), driving)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, frames[0].Data().([]float32)[1], 1e-6)
	assert.InDelta(t, 1.1, frames[1].Data().([]float32)[1], 1e-6)
}

func TestAnimate_ErrorsAbort(t *testing.T) {
	t.Run("estimator", func(t *testing.T) {
		a, _, est, gen := newTestAnimator()
		est.failAt = 4

		frames, err := a.Animate(markedFrame(0), []*tensor.Dense{markedFrame(0), markedFrame(0), markedFrame(0)})
		assert.Error(t, err)
		assert.Nil(t, frames)
		assert.Equal(t, 1, gen.calls)
	})

	t.Run("detector", func(t *testing.T) {
		a, det, _, _ := newTestAnimator()
		det.err = errors.New("detector failure")

		_, err := a.Animate(markedFrame(0), []*tensor.Dense{markedFrame(0)})
		assert.ErrorContains(t, err, "detector failure")
	})

	t.Run("generator size", func(t *testing.T) {
		a, _, _, gen := newTestAnimator()
		gen.resize = true

		_, err := a.Animate(markedFrame(0), []*tensor.Dense{markedFrame(0)})
		assert.True(t, errors.Is(err, ErrInputShape))
	})

	t.Run("source shape", func(t *testing.T) {
		a, _, _, _ := newTestAnimator()

		_, err := a.Animate(NewTensor(make([]float32, 16), 1, 1, 4, 4), []*tensor.Dense{markedFrame(0)})
		assert.True(t, errors.Is(err, ErrInputShape))
	})

	t.Run("missing networks", func(t *testing.T) {
		a := &Animator{}

		_, err := a.Animate(markedFrame(0), []*tensor.Dense{markedFrame(0)})
		assert.True(t, errors.Is(err, ErrConfiguration))
	})
}
