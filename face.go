package reenact

import (
	"image"
	"math"
	"os"

	"github.com/disintegration/imaging"
	"github.com/esimov/reenact/utils"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// FaceCropper crops the most prominent face of an image, so that it fills the frame
// the same way the training faces did.
type FaceCropper struct {
	detector *pigo.Pigo

	// Angle is the in-plane rotation of the searched faces, in the [0, 1] range.
	Angle float64
	// Scale enlarges the detected face square to include hair and chin.
	Scale float64
	// MinSize is the smallest face size in pixels considered by the detector.
	MinSize int
}

// NewFaceCropper unpacks the pigo cascade file found under the provided path.
func NewFaceCropper(cascadePath string) (*FaceCropper, error) {
	cascade, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the cascade file")
	}

	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	detector, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, errors.Wrap(err, "error unpacking the cascade file")
	}
	return &FaceCropper{
		detector: detector,
		Scale:    1.8,
		MinSize:  60,
	}, nil
}

// Crop returns the square region around the highest scoring face.
// The source image is returned unchanged when no face is found.
func (fc *FaceCropper) Crop(img image.Image) image.Image {
	src := imgToNRGBA(img)
	dx, dy := src.Bounds().Dx(), src.Bounds().Dy()

	cParams := pigo.CascadeParams{
		MinSize:     fc.MinSize,
		MaxSize:     utils.Max(dx, dy),
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,

		ImageParams: pigo.ImageParams{
			Pixels: rgbToGrayscale(src),
			Rows:   dy,
			Cols:   dx,
			Dim:    dx,
		},
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	faces := fc.detector.RunCascade(cParams, fc.Angle)

	// Calculate the intersection over union (IoU) of two clusters.
	faces = fc.detector.ClusterDetections(faces, 0.2)
	if len(faces) == 0 {
		utils.Logger().Debug("no face detected, keeping the full image")
		return src
	}

	best := faces[0]
	for _, face := range faces[1:] {
		if face.Q > best.Q {
			best = face
		}
	}
	return imaging.Crop(src, faceRect(best.Col, best.Row, best.Scale, fc.Scale, src.Bounds()))
}

// faceRect returns the enlarged square centred on the face, shifted to fit into the bounds.
func faceRect(col, row, size int, scale float64, bounds image.Rectangle) image.Rectangle {
	side := int(math.Round(float64(size) * scale))
	side = utils.Min(side, utils.Min(bounds.Dx(), bounds.Dy()))

	x0 := utils.Clamp(col-side/2, bounds.Min.X, bounds.Max.X-side)
	y0 := utils.Clamp(row-side/2, bounds.Min.Y, bounds.Max.Y-side)

	return image.Rect(x0, y0, x0+side, y0+side)
}
