package reenact

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// NormalizeOptions configures the relative motion transfer.
type NormalizeOptions struct {
	// AdaptMovementScale scales the driving motion by the square root of the ratio
	// of the source and initial driving keypoint hull volumes.
	AdaptMovementScale bool
	// RelativeMovement applies the motion relative to the initial driving frame
	// onto the source keypoints instead of using the driving keypoints directly.
	RelativeMovement bool
	// RelativeJacobian applies the jacobian change relative to the initial driving frame.
	RelativeJacobian bool
}

// NormalizeKeypoints transfers the motion observed between the initial driving frame and
// the current driving frame onto the source keypoints. With RelativeMovement disabled the
// driving keypoints are returned as they are.
func NormalizeKeypoints(source, driving, initial KeypointSet, opts NormalizeOptions) (KeypointSet, error) {
	for _, kp := range []KeypointSet{source, driving, initial} {
		if err := kp.Validate(); err != nil {
			return KeypointSet{}, err
		}
	}
	if !sameShape(source, driving) || !sameShape(source, initial) {
		return KeypointSet{}, shapeErrorf("keypoint sets differ in shape: source %v, driving %v, initial %v",
			source.Value.Shape(), driving.Value.Shape(), initial.Value.Shape())
	}
	if !opts.RelativeMovement {
		return driving, nil
	}

	scale := 1.0
	if opts.AdaptMovementScale {
		srcVol, err := hullVolume(source)
		if err != nil {
			return KeypointSet{}, err
		}
		initVol, err := hullVolume(initial)
		if err != nil {
			return KeypointSet{}, err
		}
		if srcVol == 0 || initVol == 0 {
			return KeypointSet{}, shapeErrorf("keypoints span no volume: source %g, initial driving %g", srcVol, initVol)
		}
		scale = math.Sqrt(srcVol) / math.Sqrt(initVol)
	}

	src, _ := Float32s(source.Value)
	drv, _ := Float32s(driving.Value)
	ini, _ := Float32s(initial.Value)

	value := make([]float32, len(src))
	for i := range value {
		value[i] = float32(float64(drv[i]-ini[i])*scale) + src[i]
	}
	res := KeypointSet{
		Value:    NewTensor(value, source.Value.Shape()...),
		Jacobian: driving.Jacobian,
	}
	if !opts.RelativeJacobian {
		return res, nil
	}
	if source.Jacobian == nil || driving.Jacobian == nil || initial.Jacobian == nil {
		return KeypointSet{}, shapeErrorf("relative jacobian requested but a keypoint set carries none")
	}

	srcJ, _ := Float32s(source.Jacobian)
	drvJ, _ := Float32s(driving.Jacobian)
	iniJ, _ := Float32s(initial.Jacobian)

	jacobian := make([]float32, len(srcJ))
	var inv, diff, out mat.Dense
	for off := 0; off < len(srcJ); off += 9 {
		if err := inv.Inverse(matrix3(iniJ[off : off+9])); err != nil {
			return KeypointSet{}, errors.Wrapf(ErrInputShape, "initial driving jacobian is not invertible: %v", err)
		}
		diff.Mul(matrix3(drvJ[off:off+9]), &inv)
		out.Mul(&diff, matrix3(srcJ[off:off+9]))
		for i := 0; i < 9; i++ {
			jacobian[off+i] = float32(out.At(i/3, i%3))
		}
	}
	res.Jacobian = NewTensor(jacobian, source.Jacobian.Shape()...)

	return res, nil
}

func sameShape(a, b KeypointSet) bool {
	if !a.Value.Shape().Eq(b.Value.Shape()) {
		return false
	}
	if a.Jacobian == nil || b.Jacobian == nil {
		return true
	}
	return a.Jacobian.Shape().Eq(b.Jacobian.Shape())
}

func matrix3(data []float32) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i, v := range data {
		m.Set(i/3, i%3, float64(v))
	}
	return m
}

// hullVolume returns the volume of the convex hull spanned by the keypoints
// of the first batch element. Coplanar keypoints span no volume.
func hullVolume(kp KeypointSet) (float64, error) {
	data, err := Float32s(kp.Value)
	if err != nil {
		return 0, err
	}
	pts := make([]r3.Vec, kp.Len())
	for k := range pts {
		pts[k] = r3.Vec{X: float64(data[k*3]), Y: float64(data[k*3+1]), Z: float64(data[k*3+2])}
	}
	faces, ok := convexHull(pts)
	if !ok {
		return 0, nil
	}

	var vol float64
	for _, f := range faces {
		vol += r3.Dot(pts[f.a], r3.Cross(pts[f.b], pts[f.c]))
	}
	return math.Abs(vol) / 6, nil
}

// face is a hull triangle, wound counter clockwise when seen from outside.
type face struct{ a, b, c int }

func (f face) normal(pts []r3.Vec) r3.Vec {
	return r3.Cross(r3.Sub(pts[f.b], pts[f.a]), r3.Sub(pts[f.c], pts[f.a]))
}

// convexHull builds the hull incrementally, starting from a tetrahedron
// of extreme points. It reports false when the points span no volume.
func convexHull(pts []r3.Vec) ([]face, bool) {
	if len(pts) < 4 {
		return nil, false
	}
	var extent float64
	for _, p := range pts {
		extent = math.Max(extent, r3.Norm(r3.Sub(p, pts[0])))
	}
	eps := 1e-9 * math.Max(extent, 1)

	// The initial tetrahedron: the farthest point from the first one, then the farthest
	// point from that line, then the farthest point from that plane.
	var (
		i0         = 0
		i1, i2, i3 int
		d          float64
	)
	farthest := func(dist func(p r3.Vec) float64) (int, float64) {
		idx, best := -1, 0.0
		for i, p := range pts {
			if d := dist(p); d > best {
				idx, best = i, d
			}
		}
		return idx, best
	}
	i1, d = farthest(func(p r3.Vec) float64 { return r3.Norm(r3.Sub(p, pts[i0])) })
	if d < eps {
		return nil, false
	}
	axis := r3.Sub(pts[i1], pts[i0])
	i2, d = farthest(func(p r3.Vec) float64 {
		return r3.Norm(r3.Cross(axis, r3.Sub(p, pts[i0]))) / r3.Norm(axis)
	})
	if d < eps {
		return nil, false
	}
	n := r3.Cross(axis, r3.Sub(pts[i2], pts[i0]))
	i3, d = farthest(func(p r3.Vec) float64 {
		return math.Abs(r3.Dot(n, r3.Sub(p, pts[i0]))) / r3.Norm(n)
	})
	if d < eps {
		return nil, false
	}

	inner := r3.Scale(0.25, r3.Add(r3.Add(pts[i0], pts[i1]), r3.Add(pts[i2], pts[i3])))
	orient := func(f face) face {
		if r3.Dot(f.normal(pts), r3.Sub(inner, pts[f.a])) > 0 {
			f.b, f.c = f.c, f.b
		}
		return f
	}
	faces := []face{
		orient(face{i0, i1, i2}),
		orient(face{i0, i1, i3}),
		orient(face{i0, i2, i3}),
		orient(face{i1, i2, i3}),
	}

	for i, p := range pts {
		if i == i0 || i == i1 || i == i2 || i == i3 {
			continue
		}
		visible := make(map[[2]int]bool)
		var kept []face
		for _, f := range faces {
			fn := f.normal(pts)
			if r3.Dot(fn, r3.Sub(p, pts[f.a])) > eps*r3.Norm(fn) {
				visible[[2]int{f.a, f.b}] = true
				visible[[2]int{f.b, f.c}] = true
				visible[[2]int{f.c, f.a}] = true
				continue
			}
			kept = append(kept, f)
		}
		if len(visible) == 0 {
			continue
		}
		// The horizon is made of the visible edges whose twin belongs to a hidden face.
		for e := range visible {
			if !visible[[2]int{e[1], e[0]}] {
				kept = append(kept, face{e[0], e[1], i})
			}
		}
		faces = kept
	}
	return faces, true
}
