package nn

import (
	"math"

	"github.com/esimov/reenact"
	"github.com/esimov/reenact/utils"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Default parameters of the warp generator.
const (
	DefaultKPVariance       = 0.01
	DefaultBackgroundWeight = 0.01
)

// WarpGeneratorOptions holds the construction parameters of a WarpGenerator.
type WarpGeneratorOptions struct {
	Variant          string
	NumKP            int
	KPVariance       float64
	BackgroundWeight float64
	Device           reenact.Device
}

// WarpGenerator moves the source frame with a first order sparse motion field.
//
// Every keypoint k contributes the local motion z -> ks + A·(z - kd), where A is the
// 2x2 jacobian ratio Js·Jd⁻¹ (identity without jacobians), weighted by a Gaussian
// centred on the driving keypoint. A constant background weight keeps the pixel in place.
// The warped frame then passes through a 1x1 colour projection clamped to [0, 1].
type WarpGenerator struct {
	parameters

	Variant string

	numKP      int
	variance   float64
	background float64
	weight     *tensor.Dense
	bias       *tensor.Dense
}

// NewWarpGenerator instantiates a generator with zero weights.
func NewWarpGenerator(opts WarpGeneratorOptions) (*WarpGenerator, error) {
	if err := checkDevice(opts.Variant+" generator", opts.Device); err != nil {
		return nil, err
	}
	switch {
	case opts.NumKP <= 0:
		return nil, errors.Wrapf(reenact.ErrConfiguration, "generator: invalid num_kp %d", opts.NumKP)
	case opts.KPVariance <= 0:
		return nil, errors.Wrapf(reenact.ErrConfiguration, "generator: kp_variance must be positive, got %v", opts.KPVariance)
	case opts.BackgroundWeight <= 0:
		return nil, errors.Wrapf(reenact.ErrConfiguration, "generator: background_weight must be positive, got %v", opts.BackgroundWeight)
	}

	g := &WarpGenerator{
		parameters: newParameters(opts.Device),
		Variant:    opts.Variant,
		numKP:      opts.NumKP,
		variance:   opts.KPVariance,
		background: opts.BackgroundWeight,
	}
	g.weight = g.add("final.weight", 3, 3)
	g.bias = g.add("final.bias", 3)
	return g, nil
}

// motion is the local affine motion of a single keypoint, in normalized coordinates.
type motion struct {
	kdx, kdy float64
	dx, dy   float64
	a        [4]float64
}

// Synthesize implements reenact.Generator.
func (g *WarpGenerator) Synthesize(source *tensor.Dense, kpSource, kpDriving reenact.KeypointSet) (*tensor.Dense, error) {
	height, width, err := reenact.FrameSize(source)
	if err != nil {
		return nil, err
	}
	motions, err := g.motions(kpSource, kpDriving)
	if err != nil {
		return nil, err
	}

	src, _ := reenact.Float32s(source)
	plane := height * width
	warped := make([]float32, 3*plane)

	sx := float64(utils.Max(width-1, 1)) / 2
	sy := float64(utils.Max(height-1, 1)) / 2
	norm := -0.5 / g.variance

	for y := 0; y < height; y++ {
		zy := float64(y)/sy - 1
		for x := 0; x < width; x++ {
			zx := float64(x)/sx - 1

			var wsum, ox, oy float64
			for _, m := range motions {
				rx, ry := zx-m.kdx, zy-m.kdy
				w := math.Exp(norm * (rx*rx + ry*ry))
				if w == 0 {
					continue
				}
				// (A - I)·(z - kd) + (ks - kd)
				ox += w * (m.dx + (m.a[0]-1)*rx + m.a[1]*ry)
				oy += w * (m.dy + m.a[2]*rx + (m.a[3]-1)*ry)
				wsum += w
			}
			px, py := float64(x), float64(y)
			if wsum > 0 {
				wsum += g.background
				px += ox / wsum * sx
				py += oy / wsum * sy
			}
			for c := 0; c < 3; c++ {
				warped[c*plane+y*width+x] = bilinear(src[c*plane:(c+1)*plane], width, height, px, py)
			}
		}
	}

	flat := tensor.New(tensor.WithShape(3, plane), tensor.WithBacking(warped))
	out, err := g.weight.MatMul(flat)
	if err != nil {
		return nil, errors.Wrap(err, "Can't apply the final colour projection")
	}
	data := out.Data().([]float32)
	bias := g.bias.Data().([]float32)
	for c := 0; c < 3; c++ {
		ch := data[c*plane : (c+1)*plane]
		for i, v := range ch {
			ch[i] = utils.Clamp(v+bias[c], 0, 1)
		}
	}
	if err := out.Reshape(1, 3, height, width); err != nil {
		return nil, errors.Wrap(err, "Can't reshape the generated frame")
	}
	return out, nil
}

// motions collects the per keypoint motion of batch element 0.
func (g *WarpGenerator) motions(kpSource, kpDriving reenact.KeypointSet) ([]motion, error) {
	for _, kp := range []reenact.KeypointSet{kpSource, kpDriving} {
		if err := kp.Validate(); err != nil {
			return nil, err
		}
		if kp.Batch() != 1 || kp.Len() != g.numKP {
			return nil, errors.Wrapf(reenact.ErrInputShape, "generator expects 1x%d keypoints, got %v", g.numKP, kp.Value.Shape())
		}
	}
	ks, _ := reenact.Float32s(kpSource.Value)
	kd, _ := reenact.Float32s(kpDriving.Value)
	useJacobian := kpSource.HasJacobian() && kpDriving.HasJacobian()

	motions := make([]motion, g.numKP)
	for k := range motions {
		m := &motions[k]
		m.kdx, m.kdy = float64(kd[3*k]), float64(kd[3*k+1])
		m.dx, m.dy = float64(ks[3*k])-m.kdx, float64(ks[3*k+1])-m.kdy
		m.a = [4]float64{1, 0, 0, 1}
		if !useJacobian {
			continue
		}

		js, _ := reenact.Float32s(kpSource.Jacobian)
		jd, _ := reenact.Float32s(kpDriving.Jacobian)
		var inv mat.Dense
		if err := inv.Inverse(jacobian2x2(jd, k)); err != nil {
			return nil, errors.Wrapf(err, "driving jacobian %d is not invertible", k)
		}
		var a mat.Dense
		a.Mul(jacobian2x2(js, k), &inv)
		m.a = [4]float64{a.At(0, 0), a.At(0, 1), a.At(1, 0), a.At(1, 1)}
	}
	return motions, nil
}

// jacobian2x2 returns the XY block of the k-th 3x3 jacobian.
func jacobian2x2(data []float32, k int) *mat.Dense {
	j := data[9*k:]
	return mat.NewDense(2, 2, []float64{
		float64(j[0]), float64(j[1]),
		float64(j[3]), float64(j[4]),
	})
}

// bilinear samples the plane at (x, y). Samples outside of the plane read as zero.
func bilinear(plane []float32, width, height int, x, y float64) float32 {
	x0, y0 := int(math.Floor(x)), int(math.Floor(y))
	fx, fy := float32(x-float64(x0)), float32(y-float64(y0))

	at := func(px, py int) float32 {
		if px < 0 || py < 0 || px >= width || py >= height {
			return 0
		}
		return plane[py*width+px]
	}
	top := at(x0, y0)*(1-fx) + at(x0+1, y0)*fx
	bottom := at(x0, y0+1)*(1-fx) + at(x0+1, y0+1)*fx
	return top*(1-fy) + bottom*fy
}
