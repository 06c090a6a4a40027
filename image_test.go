package reenact

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImage_ImgToNRGBA(t *testing.T) {
	rect := image.Rect(-1, -1, 15, 15)
	colors := palette.Plan9
	testCases := []struct {
		name string
		img  image.Image
	}{
		{
			name: "NRGBA",
			img:  makeNRGBAImage(rect, colors),
		},
		{
			name: "YCbCr-444",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio444),
		},
		{
			name: "YCbCr-420",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio420),
		},
		{
			name: "Gray",
			img:  makeGrayImage(rect),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			src := tc.img.Bounds()
			dst := imgToNRGBA(tc.img)
			require.Equal(t, image.Rect(0, 0, src.Dx(), src.Dy()), dst.Bounds())

			for y := src.Min.Y; y < src.Max.Y; y++ {
				for x := src.Min.X; x < src.Max.X; x++ {
					want := color.NRGBAModel.Convert(tc.img.At(x, y)).(color.NRGBA)
					got := dst.NRGBAAt(x-src.Min.X, y-src.Min.Y)
					if !closeColor(want, got, 1) {
						t.Fatalf("pixel (%d, %d): got %v want %v", x, y, got, want)
					}
				}
			}
		})
	}
}

func TestImage_FrameRoundTrip(t *testing.T) {
	img := makeNRGBAImage(image.Rect(0, 0, 16, 16), palette.Plan9)

	frame := FrameFromImage(img, 16)
	h, w, err := FrameSize(frame)
	require.NoError(t, err)
	assert.Equal(t, 16, h)
	assert.Equal(t, 16, w)

	data, err := Float32s(frame)
	require.NoError(t, err)
	for _, v := range data {
		assert.True(t, v >= 0 && v <= 1)
	}

	res, err := ImageFromFrame(frame)
	require.NoError(t, err)
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			want := img.NRGBAAt(x, y)
			want.A = 0xff
			assert.Equal(t, want, res.NRGBAAt(x, y))
		}
	}
}

func TestImage_FrameFromImageResizes(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))
	frame := FrameFromImage(img, DefaultFrameSize)

	h, w, err := FrameSize(frame)
	require.NoError(t, err)
	assert.Equal(t, DefaultFrameSize, h)
	assert.Equal(t, DefaultFrameSize, w)
}

func TestImage_ImageFromFrameClamps(t *testing.T) {
	frame := NewFrame(1, 2)
	copy(frame.Data().([]float32), []float32{-1, 2, 0.5, 0.5, 0, 1})

	img, err := ImageFromFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{0, 128, 0, 255}, img.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{255, 128, 255, 255}, img.NRGBAAt(1, 0))

	_, err = ImageFromFrame(NewTensor(make([]float32, 4), 1, 1, 2, 2))
	assert.Error(t, err)
}

func TestImage_EncodeFormats(t *testing.T) {
	img := makeNRGBAImage(image.Rect(0, 0, 8, 8), palette.Plan9)
	for _, ext := range []string{".png", ".jpg", ".bmp"} {
		var buf bytes.Buffer
		require.NoError(t, EncodeImage(&buf, ext, img), ext)
		assert.NotZero(t, buf.Len())
	}
	assert.Error(t, EncodeImage(&bytes.Buffer{}, ".tiff", img))
}

func TestImage_SaveAndDecode(t *testing.T) {
	img := makeNRGBAImage(image.Rect(0, 0, 8, 8), palette.Plan9)
	dst := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, SaveImage(dst, img))

	decoded, err := DecodeImage(dst)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	_, err = DecodeImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func closeColor(a, b color.NRGBA, delta int) bool {
	diff := func(x, y uint8) bool {
		d := int(x) - int(y)
		return d <= delta && d >= -delta
	}
	return diff(a.R, b.R) && diff(a.G, b.G) && diff(a.B, b.B) && diff(a.A, b.A)
}

func makeYCbCrImage(rect image.Rectangle, colors []color.Color, sr image.YCbCrSubsampleRatio) *image.YCbCr {
	img := image.NewYCbCr(rect, sr)
	j := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			iy := img.YOffset(x, y)
			ic := img.COffset(x, y)
			c := color.NRGBAModel.Convert(colors[j]).(color.NRGBA)
			img.Y[iy], img.Cb[ic], img.Cr[ic] = color.RGBToYCbCr(c.R, c.G, c.B)
			j++
		}
	}
	return img
}

func makeNRGBAImage(rect image.Rectangle, colors []color.Color) *image.NRGBA {
	img := image.NewNRGBA(rect)
	fillDrawImage(img, colors)
	return img
}

func makeGrayImage(rect image.Rectangle) *image.Gray {
	img := image.NewGray(rect)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	return img
}

func fillDrawImage(img *image.NRGBA, colors []color.Color) {
	colorsNRGBA := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
		nrgba.A = uint8(i % 256)
		colorsNRGBA[i] = nrgba
	}
	rect := img.Bounds()
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.SetNRGBA(x, y, colorsNRGBA[i%len(colorsNRGBA)])
			i++
		}
	}
}
