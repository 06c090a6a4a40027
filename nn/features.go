package nn

import (
	"github.com/esimov/reenact"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DefaultGrid is the side of the pooled feature grid.
const DefaultGrid = 8

// poolFeatures averages every channel of a (1, 3, H, W) frame over a grid x grid
// partition, returning 3·grid² features in channel, row, column order.
func poolFeatures(frame *tensor.Dense, grid int) ([]float32, error) {
	height, width, err := reenact.FrameSize(frame)
	if err != nil {
		return nil, err
	}
	if height < grid || width < grid {
		return nil, errors.Wrapf(reenact.ErrInputShape, "frame %dx%d is smaller than the %dx%d feature grid", width, height, grid, grid)
	}
	data, _ := reenact.Float32s(frame)

	plane := height * width
	feats := make([]float32, 0, 3*grid*grid)
	for c := 0; c < 3; c++ {
		for gy := 0; gy < grid; gy++ {
			y0, y1 := gy*height/grid, (gy+1)*height/grid
			for gx := 0; gx < grid; gx++ {
				x0, x1 := gx*width/grid, (gx+1)*width/grid

				var sum float32
				for y := y0; y < y1; y++ {
					row := data[c*plane+y*width:]
					for x := x0; x < x1; x++ {
						sum += row[x]
					}
				}
				feats = append(feats, sum/float32((y1-y0)*(x1-x0)))
			}
		}
	}
	return feats, nil
}
