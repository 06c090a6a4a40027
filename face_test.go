package reenact

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCascade packs a single depth one tree, which fires on the windows whose
// centre is brighter than the pixel half a window above it.
func writeCascade(t *testing.T) string {
	t.Helper()

	buf := make([]byte, 8)
	buf = binary.LittleEndian.AppendUint32(buf, 1) // tree depth
	buf = binary.LittleEndian.AppendUint32(buf, 1) // number of trees
	buf = append(buf, 0, 0, byte(0x81), 0)         // centre, then -127/256 of the window upwards
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(1))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(-1))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(0))

	path := filepath.Join(t.TempDir(), "facefinder")
	require.NoError(t, os.WriteFile(path, buf, 0644))
	return path
}

func TestFace_CropAroundDetection(t *testing.T) {
	fc, err := NewFaceCropper(writeCascade(t))
	require.NoError(t, err)
	fc.MinSize = 20

	img := image.NewNRGBA(image.Rect(0, 0, 400, 200))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	// Without any bright region nothing is detected.
	res := fc.Crop(img)
	assert.Equal(t, img.Bounds(), res.Bounds())

	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	for y := 80; y < 140; y++ {
		for x := 170; x < 230; x++ {
			img.SetNRGBA(x, y, white)
		}
	}
	res = fc.Crop(img)

	b := res.Bounds()
	assert.Equal(t, b.Dx(), b.Dy())
	assert.Less(t, b.Dx(), img.Bounds().Dx())

	var found bool
	for y := b.Min.Y; y < b.Max.Y && !found; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if r, _, _, _ := res.At(x, y).RGBA(); r == 0xffff {
				found = true
				break
			}
		}
	}
	assert.True(t, found, "the crop holds the bright region")
}

func TestFace_RectIsCentredAndEnlarged(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 300)

	r := faceRect(200, 150, 100, 1.5, bounds)
	assert.Equal(t, image.Rect(125, 75, 275, 225), r)
	assert.Equal(t, r.Dx(), r.Dy())
}

func TestFace_RectIsShiftedIntoBounds(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 300)

	assert.Equal(t, image.Rect(0, 0, 100, 100), faceRect(10, 10, 50, 2, bounds))
	assert.Equal(t, image.Rect(300, 200, 400, 300), faceRect(390, 290, 50, 2, bounds))

	// The square never exceeds the shorter image side.
	assert.Equal(t, image.Rect(50, 0, 350, 300), faceRect(200, 150, 500, 2, bounds))
}

func TestFace_MissingCascade(t *testing.T) {
	_, err := NewFaceCropper(filepath.Join(t.TempDir(), "facefinder"))
	assert.Error(t, err)
}
