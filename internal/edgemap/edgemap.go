// Package edgemap reduces a photo to the binary edge map searched for the
// document outline.
package edgemap

import (
	"image"

	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/scanerr"
)

// Build returns a single channel image the size of img whose non-zero pixels
// are candidate boundary pixels. img is not modified.
//
// The photo is converted to gray, blurred, adaptively thresholded and cleaned
// with a morphological close (and optionally open) so shadows and glare do not
// break the page outline. Canny edges of the result are then dilated to bridge
// the gaps left by the threshold.
func Build(img gocv.Mat, p config.Edge) (gocv.Mat, error) {
	if err := Validate(img); err != nil {
		return gocv.Mat{}, err
	}

	gray, err := Gray(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := oddKernel(p.BlurKernel)
	if err := gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault); err != nil {
		return gocv.Mat{}, stageFailed("blur", err)
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	if err := gocv.AdaptiveThreshold(blurred, &thresh, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary, p.ThresholdBlockSize, p.ThresholdC); err != nil {
		return gocv.Mat{}, stageFailed("adaptive threshold", err)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.MorphKernel, p.MorphKernel))
	defer kernel.Close()

	if err := gocv.MorphologyEx(thresh, &thresh, gocv.MorphClose, kernel); err != nil {
		return gocv.Mat{}, stageFailed("close", err)
	}
	if p.OpenAfterClose {
		if err := gocv.MorphologyEx(thresh, &thresh, gocv.MorphOpen, kernel); err != nil {
			return gocv.Mat{}, stageFailed("open", err)
		}
	}

	edges := gocv.NewMat()
	if err := gocv.Canny(thresh, &edges, p.CannyLow, p.CannyHigh); err != nil {
		edges.Close()
		return gocv.Mat{}, stageFailed("canny", err)
	}
	for i := 0; i < p.DilateIterations; i++ {
		if err := gocv.Dilate(edges, &edges, kernel); err != nil {
			edges.Close()
			return gocv.Mat{}, stageFailed("dilate", err)
		}
	}
	return edges, nil
}

// Validate rejects empty images and anything but 8-bit gray or BGR.
func Validate(img gocv.Mat) error {
	if img.Empty() || img.Rows() <= 0 || img.Cols() <= 0 {
		return scanerr.Invalidf("image has no pixels")
	}
	if ch := img.Channels(); ch != 1 && ch != 3 {
		return scanerr.Invalidf("expected 1 or 3 channels, got %d", ch)
	}
	if t := img.Type(); t != gocv.MatTypeCV8UC1 && t != gocv.MatTypeCV8UC3 {
		return scanerr.Invalidf("expected 8-bit samples, got mat type %v", t)
	}
	return nil
}

// Gray returns a single channel copy of img, which must already be valid.
func Gray(img gocv.Mat) (gocv.Mat, error) {
	if img.Channels() == 1 {
		return img.Clone(), nil
	}
	gray := gocv.NewMat()
	if err := gocv.CvtColor(img, &gray, gocv.ColorBGRToGray); err != nil {
		gray.Close()
		return gocv.Mat{}, stageFailed("gray conversion", err)
	}
	return gray, nil
}

// stageFailed reports an OpenCV rejection of an input that passed Validate.
func stageFailed(op string, err error) error {
	return scanerr.Invalidf("%s: %v", op, err)
}

func oddKernel(k int) int {
	if k < 1 {
		return 1
	}
	if k%2 == 0 {
		return k + 1
	}
	return k
}
