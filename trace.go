package reenact

import (
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PoseTrace collects the head pose angles which drove every output frame.
type PoseTrace struct {
	Title  string
	Frames []FrameStats
}

// Record appends the frame statistics. It can be used as Animator.OnFrame.
func (pt *PoseTrace) Record(stats FrameStats) {
	pt.Frames = append(pt.Frames, stats)
}

// Save plots the yaw, pitch and roll curves and writes the chart into the dst file.
// The image format is chosen by the file extension (png, svg, pdf...).
func (pt *PoseTrace) Save(dst string) error {
	if len(pt.Frames) == 0 {
		return errors.New("the pose trace has no frames")
	}

	yaw := make(plotter.XYs, len(pt.Frames))
	pitch := make(plotter.XYs, len(pt.Frames))
	roll := make(plotter.XYs, len(pt.Frames))
	for i, f := range pt.Frames {
		x := float64(f.Index)
		yaw[i] = plotter.XY{X: x, Y: f.Yaw}
		pitch[i] = plotter.XY{X: x, Y: f.Pitch}
		roll[i] = plotter.XY{X: x, Y: f.Roll}
	}

	p := plot.New()
	p.Title.Text = pt.Title
	p.X.Label.Text = "driving frame"
	p.Y.Label.Text = "degrees"
	p.Y.Min, p.Y.Max = -binOffset, binOffset
	p.Add(plotter.NewGrid())

	if err := plotutil.AddLinePoints(p, "yaw", yaw, "pitch", pitch, "roll", roll); err != nil {
		return errors.Wrap(err, "could not plot the pose trace")
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, dst); err != nil {
		return errors.Wrapf(err, "could not save the pose trace into %s", dst)
	}
	return nil
}
