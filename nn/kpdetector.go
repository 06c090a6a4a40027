package nn

import (
	"github.com/chewxy/math32"
	"github.com/esimov/reenact"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// KPDetectorOptions holds the construction parameters of a KPDetector.
type KPDetectorOptions struct {
	NumKP            int
	Grid             int
	EstimateJacobian bool
	Device           reenact.Device
}

// KPDetector regresses the canonical keypoints from the pooled frame features.
// Keypoint coordinates are squashed into (-1, 1) by tanh.
type KPDetector struct {
	parameters

	numKP    int
	grid     int
	fc       *linear
	jacobian *linear
}

// NewKPDetector instantiates a detector with zero weights.
func NewKPDetector(opts KPDetectorOptions) (*KPDetector, error) {
	if err := checkDevice("kp detector", opts.Device); err != nil {
		return nil, err
	}
	if opts.NumKP <= 0 || opts.Grid <= 0 {
		return nil, errors.Wrapf(reenact.ErrConfiguration, "kp detector: invalid num_kp %d or feature_grid %d", opts.NumKP, opts.Grid)
	}

	d := &KPDetector{
		parameters: newParameters(opts.Device),
		numKP:      opts.NumKP,
		grid:       opts.Grid,
	}
	features := 3 * opts.Grid * opts.Grid
	d.fc = newLinear(&d.parameters, "fc", features, 3*opts.NumKP)
	if opts.EstimateJacobian {
		d.jacobian = newLinear(&d.parameters, "jacobian", features, 9*opts.NumKP)
	}
	return d, nil
}

// Detect implements reenact.KeypointDetector.
func (d *KPDetector) Detect(frame *tensor.Dense) (reenact.KeypointSet, error) {
	feats, err := poolFeatures(frame, d.grid)
	if err != nil {
		return reenact.KeypointSet{}, err
	}

	value, err := d.fc.forward(feats)
	if err != nil {
		return reenact.KeypointSet{}, err
	}
	if _, err := value.Apply(math32.Tanh, tensor.UseUnsafe()); err != nil {
		return reenact.KeypointSet{}, errors.Wrap(err, "Can't apply tanh to the keypoints")
	}
	if err := value.Reshape(1, d.numKP, 3); err != nil {
		return reenact.KeypointSet{}, errors.Wrap(err, "Can't reshape the keypoints")
	}
	kp := reenact.KeypointSet{Value: value}

	if d.jacobian != nil {
		jac, err := d.jacobian.forward(feats)
		if err != nil {
			return reenact.KeypointSet{}, err
		}
		if err := jac.Reshape(1, d.numKP, 3, 3); err != nil {
			return reenact.KeypointSet{}, errors.Wrap(err, "Can't reshape the jacobians")
		}
		kp.Jacobian = jac
	}
	return kp, nil
}
