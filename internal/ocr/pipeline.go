package ocr

import (
	"image"

	"github.com/nfnt/resize"
)

// PreprocessMode selects the normalization step applied after grayscale
// conversion. Exactly one runs per read.
type PreprocessMode string

const (
	// PreprocessThreshold binarizes with an automatic Otsu split. Best for
	// solid text on a dark or busy background.
	PreprocessThreshold PreprocessMode = "thresh"
	// PreprocessBlur smooths with a 3x3 Gaussian kernel. Best for antialiased
	// text that thresholding would shred.
	PreprocessBlur PreprocessMode = "blur"
	// PreprocessNone skips normalization.
	PreprocessNone PreprocessMode = "none"
)

// PipelineConfig controls the fixed preprocessing sequence: grayscale, one
// normalization mode, polarity correction, integer upscale, light border.
type PipelineConfig struct {
	Mode    PreprocessMode
	Invert  bool // flip dark-background crops so text reads dark-on-light
	Upscale int  // integer scale factor applied before recognition
	Border  int  // white padding in pixels around the processed crop
}

// DefaultPipelineConfig returns the settings tuned for small game-UI text.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Mode:    PreprocessThreshold,
		Invert:  true,
		Upscale: 2,
		Border:  10,
	}
}

// Preprocess runs the normalization pipeline over a cropped frame and returns
// the grayscale image to hand to the recognizer. The input is never modified.
func Preprocess(src *image.RGBA, config PipelineConfig) *image.Gray {
	gray := grayscale(src)

	switch config.Mode {
	case PreprocessThreshold:
		binarize(gray, otsuLevel(gray))
	case PreprocessBlur:
		gray = gaussianBlur3(gray)
	}

	// Recognizers expect dark text on a light background. Flip crops whose
	// average intensity says the polarity is reversed.
	if config.Invert && meanIntensity(gray) < 127 {
		invert(gray)
	}

	if config.Upscale > 1 {
		gray = upscale(gray, config.Upscale)
	}

	if config.Border > 0 {
		gray = addBorder(gray, config.Border, 255)
	}

	return gray
}

// grayscale flattens RGBA to intensity using the standard luminance weights.
func grayscale(src *image.RGBA) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	gray := image.NewGray(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		srcRow := y * src.Stride
		dstRow := y * gray.Stride
		for x := 0; x < w; x++ {
			idx := srcRow + x*4
			r := src.Pix[idx]
			g := src.Pix[idx+1]
			b := src.Pix[idx+2]
			gray.Pix[dstRow+x] = uint8((int(r)*299 + int(g)*587 + int(b)*114) / 1000)
		}
	}

	return gray
}

// otsuLevel finds the threshold that maximizes between-class variance of the
// intensity histogram.
func otsuLevel(gray *image.Gray) uint8 {
	var hist [256]int
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	total := w * h
	if total == 0 {
		return 0
	}

	for y := 0; y < h; y++ {
		row := y * gray.Stride
		for x := 0; x < w; x++ {
			hist[gray.Pix[row+x]]++
		}
	}

	var sum float64
	for i, count := range hist {
		sum += float64(i) * float64(count)
	}

	var sumB, wB float64
	var varMax float64
	var level uint8

	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])

		mB := sumB / wB
		mF := (sum - sumB) / wF
		between := wB * wF * (mB - mF) * (mB - mF)
		if between > varMax {
			varMax = between
			level = uint8(t)
		}
	}

	return level
}

// binarize maps pixels above the level to 255 and the rest to 0, in place.
func binarize(gray *image.Gray, level uint8) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		row := y * gray.Stride
		for x := 0; x < w; x++ {
			if gray.Pix[row+x] > level {
				gray.Pix[row+x] = 255
			} else {
				gray.Pix[row+x] = 0
			}
		}
	}
}

// gaussianBlur3 applies a separable 3x3 binomial kernel with edge replication.
func gaussianBlur3(gray *image.Gray) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w == 0 || h == 0 {
		return gray
	}

	clampX := func(x int) int {
		if x < 0 {
			return 0
		}
		if x >= w {
			return w - 1
		}
		return x
	}
	clampY := func(y int) int {
		if y < 0 {
			return 0
		}
		if y >= h {
			return h - 1
		}
		return y
	}

	// Horizontal pass
	tmp := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		row := y * gray.Stride
		out := y * w
		for x := 0; x < w; x++ {
			left := int(gray.Pix[row+clampX(x-1)])
			mid := int(gray.Pix[row+x])
			right := int(gray.Pix[row+clampX(x+1)])
			tmp[out+x] = uint16(left + 2*mid + right)
		}
	}

	// Vertical pass
	result := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		above := clampY(y-1) * w
		cur := y * w
		below := clampY(y+1) * w
		out := y * result.Stride
		for x := 0; x < w; x++ {
			v := int(tmp[above+x]) + 2*int(tmp[cur+x]) + int(tmp[below+x])
			result.Pix[out+x] = uint8((v + 8) / 16)
		}
	}

	return result
}

// meanIntensity returns the average pixel value.
func meanIntensity(gray *image.Gray) float64 {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	var sum uint64
	for y := 0; y < h; y++ {
		row := y * gray.Stride
		for x := 0; x < w; x++ {
			sum += uint64(gray.Pix[row+x])
		}
	}
	return float64(sum) / float64(w*h)
}

// invert flips every pixel in place.
func invert(gray *image.Gray) {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	for y := 0; y < h; y++ {
		row := y * gray.Stride
		for x := 0; x < w; x++ {
			gray.Pix[row+x] = 255 - gray.Pix[row+x]
		}
	}
}

// upscale enlarges by an integer factor with bicubic interpolation.
func upscale(gray *image.Gray, factor int) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	resized := resize.Resize(uint(w*factor), uint(h*factor), gray, resize.Bicubic)

	if out, ok := resized.(*image.Gray); ok {
		return out
	}

	// Resize returns image.Image; normalize when the concrete type differs.
	bounds := resized.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, resized.At(x, y))
		}
	}
	return out
}

// addBorder pads the image with a uniform value on all sides.
func addBorder(gray *image.Gray, px int, value uint8) *image.Gray {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	out := image.NewGray(image.Rect(0, 0, w+2*px, h+2*px))

	for i := range out.Pix {
		out.Pix[i] = value
	}

	for y := 0; y < h; y++ {
		srcRow := y * gray.Stride
		dstRow := (y+px)*out.Stride + px
		copy(out.Pix[dstRow:dstRow+w], gray.Pix[srcRow:srcRow+w])
	}

	return out
}
