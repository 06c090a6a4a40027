package nn

import (
	"github.com/esimov/reenact"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// HEEstimatorOptions holds the construction parameters of an HEEstimator.
type HEEstimatorOptions struct {
	NumKP  int
	Grid   int
	Device reenact.Device
}

// HEEstimator predicts the head pose bins, the translation and the
// expression deviation from the pooled frame features.
type HEEstimator struct {
	parameters

	grid  int
	yaw   *linear
	pitch *linear
	roll  *linear
	t     *linear
	exp   *linear
}

// NewHEEstimator instantiates an estimator with zero weights.
func NewHEEstimator(opts HEEstimatorOptions) (*HEEstimator, error) {
	if err := checkDevice("head pose estimator", opts.Device); err != nil {
		return nil, err
	}
	if opts.NumKP <= 0 || opts.Grid <= 0 {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "head pose estimator: invalid num_kp %d or feature_grid %d", opts.NumKP, opts.Grid)
	}

	e := &HEEstimator{
		parameters: newParameters(opts.Device),
		grid:       opts.Grid,
	}
	features := 3 * opts.Grid * opts.Grid
	e.yaw = newLinear(&e.parameters, "fc_yaw", features, reenact.NumBins)
	e.pitch = newLinear(&e.parameters, "fc_pitch", features, reenact.NumBins)
	e.roll = newLinear(&e.parameters, "fc_roll", features, reenact.NumBins)
	e.t = newLinear(&e.parameters, "fc_t", features, 3)
	e.exp = newLinear(&e.parameters, "fc_exp", features, 3*opts.NumKP)
	return e, nil
}

// Estimate implements reenact.PoseEstimator.
func (e *HEEstimator) Estimate(frame *tensor.Dense) (reenact.HeadPose, error) {
	feats, err := poolFeatures(frame, e.grid)
	if err != nil {
		return reenact.HeadPose{}, err
	}

	var (
		pose  reenact.HeadPose
		heads = []struct {
			layer *linear
			dst   **tensor.Dense
		}{
			{e.yaw, &pose.Yaw},
			{e.pitch, &pose.Pitch},
			{e.roll, &pose.Roll},
			{e.t, &pose.T},
			{e.exp, &pose.Exp},
		}
	)
	for _, h := range heads {
		out, err := h.layer.forward(feats)
		if err != nil {
			return reenact.HeadPose{}, err
		}
		if err := out.Reshape(1, out.Shape().TotalSize()); err != nil {
			return reenact.HeadPose{}, errors.Wrap(err, "Can't reshape the head pose prediction")
		}
		*h.dst = out
	}
	return pose, nil
}
