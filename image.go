package reenact

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/esimov/reenact/utils"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"gorgonia.org/tensor"
)

// DefaultFrameSize is the square resolution the networks are trained on.
const DefaultFrameSize = 256

// DecodeImage decodes an image file to type image.Image.
func DecodeImage(src string) (image.Image, error) {
	ctype, err := utils.DetectContentType(src)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(ctype, "image") {
		return nil, errors.Errorf("%s should be an image file, got %s", src, ctype)
	}

	file, err := os.Open(src)
	if err != nil {
		return nil, errors.Wrap(err, "could not open the image file")
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "could not decode the image file %s", src)
	}
	return img, nil
}

// EncodeImage encodes an image to a destination of type io.Writer.
// The image format is chosen by the file extension.
func EncodeImage(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(ext) {
	case "", ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 100})
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	default:
		return errors.Errorf("unsupported image format %q", ext)
	}
}

// SaveImage writes the image into the dst file.
func SaveImage(dst string, img image.Image) error {
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "unable to create the destination file")
	}
	if err := EncodeImage(f, filepath.Ext(dst), img); err != nil {
		f.Close()
		os.Remove(dst)
		return err
	}
	return f.Close()
}

// FrameFromImage resizes the image to size x size and converts it into a frame tensor
// shaped (1, 3, size, size), with the channel values scaled into the [0, 1] range.
// The alpha channel is dropped.
func FrameFromImage(img image.Image, size int) *tensor.Dense {
	src := imgToNRGBA(img)
	if b := src.Bounds(); b.Dx() != size || b.Dy() != size {
		src = imaging.Resize(src, size, size, imaging.Linear)
	}

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := src.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				data[c*plane+y*size+x] = float32(src.Pix[i+c]) / 255
			}
		}
	}
	return NewTensor(data, 1, 3, size, size)
}

// ImageFromFrame converts a frame tensor back into an image.
// Values outside of the [0, 1] range are clipped.
func ImageFromFrame(frame *tensor.Dense) (*image.NRGBA, error) {
	height, width, err := FrameSize(frame)
	if err != nil {
		return nil, err
	}
	data, _ := Float32s(frame)

	plane := height * width
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := utils.Clamp(float64(data[c*plane+y*width+x]), 0, 1)
				dst.Pix[i+c] = uint8(math.Round(v * 255))
			}
			dst.Pix[i+3] = 0xff
		}
	}
	return dst, nil
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := srcBounds.Dx() * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}

// rgbToGrayscale converts an image to grayscale mode and
// returns the pixel values as an one dimensional array.
func rgbToGrayscale(src *image.NRGBA) []uint8 {
	width, height := src.Bounds().Dx(), src.Bounds().Dy()
	gray := make([]uint8, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			gray[y*width+x] = uint8(
				(0.299*float64(r) +
					0.587*float64(g) +
					0.114*float64(b)) / 256,
			)
		}
	}

	return gray
}
