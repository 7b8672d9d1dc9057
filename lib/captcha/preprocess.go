package captcha

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Variant is one preprocessed rendition of a challenge image.
type Variant struct {
	Name  string
	Image image.Image
}

const (
	contrastFactor    = 2.5
	binaryThreshold   = 140
	grayscaleMidpoint = 128
)

// Preprocess produces the ordered variant list fed to OCR. A variant
// that cannot be produced is skipped, and undecodable input yields no
// variants at all.
func Preprocess(data []byte) []Variant {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Debug("captcha image did not decode", "err", err)
		return nil
	}
	slog.Debug("decoded captcha image", "format", format, "bounds", src.Bounds())

	variants := []Variant{{Name: "original", Image: src}}

	gray := toGray(src)
	variants = append(variants,
		Variant{Name: "grayscale", Image: gray},
		Variant{Name: "grayscale+contrast", Image: adjustContrast(gray, contrastFactor)},
		Variant{Name: "grayscale+threshold", Image: threshold(gray, binaryThreshold)},
		Variant{Name: "sharpened", Image: sharpen(src)},
	)
	return variants
}

func toGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)
	return dst
}

func adjustContrast(src *image.Gray, factor float64) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(src.GrayAt(x, y).Y)
			v = (v-grayscaleMidpoint)*factor + grayscaleMidpoint
			dst.SetGray(x, y, color.Gray{Y: clampByte(v)})
		}
	}
	return dst
}

func threshold(src *image.Gray, cutoff uint8) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := uint8(0)
			if src.GrayAt(x, y).Y > cutoff {
				v = 255
			}
			dst.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return dst
}

// 3x3 edge-enhancement kernel, center-weighted.
var sharpenKernel = [3][3]int{
	{0, -1, 0},
	{-1, 5, -1},
	{0, -1, 0},
}

func sharpen(src image.Image) image.Image {
	bounds := src.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, src, bounds.Min, draw.Src)

	dst := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var r, g, b int
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					weight := sharpenKernel[ky+1][kx+1]
					px := clampInt(x+kx, bounds.Min.X, bounds.Max.X-1)
					py := clampInt(y+ky, bounds.Min.Y, bounds.Max.Y-1)
					c := rgba.RGBAAt(px, py)
					r += int(c.R) * weight
					g += int(c.G) * weight
					b += int(c.B) * weight
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: clampByte(float64(r)),
				G: clampByte(float64(g)),
				B: clampByte(float64(b)),
				A: rgba.RGBAAt(x, y).A,
			})
		}
	}
	return dst
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
