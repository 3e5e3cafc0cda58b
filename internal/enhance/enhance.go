// Package enhance improves the legibility of a rectified page.
package enhance

import (
	"image"

	"gocv.io/x/gocv"

	"docscan/internal/config"
	"docscan/internal/edgemap"
	"docscan/internal/scanerr"
)

// Enhance equalizes lighting and removes sensor noise without softening
// text edges. Color pages are processed in YCrCb: tile based histogram
// equalization (CLAHE) and a bilateral filter are applied to luminance only,
// then the chroma channels are recombined. Gray pages are processed as is.
// The result has the channel count of img unless p.Grayscale is set, which
// yields a gray page expanded to three channels.
func Enhance(img gocv.Mat, p config.Enhance) (gocv.Mat, error) {
	if err := edgemap.Validate(img); err != nil {
		return gocv.Mat{}, err
	}
	if p.Disabled {
		return img.Clone(), nil
	}

	if img.Channels() == 1 || p.Grayscale {
		gray, err := edgemap.Gray(img)
		if err != nil {
			return gocv.Mat{}, err
		}
		defer gray.Close()
		lum, err := luminance(gray, p)
		if err != nil || !p.Grayscale {
			return lum, err
		}
		defer lum.Close()
		out := gocv.NewMat()
		if err := gocv.CvtColor(lum, &out, gocv.ColorGrayToBGR); err != nil {
			out.Close()
			return gocv.Mat{}, scanerr.Invalidf("gray to BGR: %v", err)
		}
		return out, nil
	}

	ycc := gocv.NewMat()
	defer ycc.Close()
	if err := gocv.CvtColor(img, &ycc, gocv.ColorBGRToYCrCb); err != nil {
		return gocv.Mat{}, scanerr.Invalidf("BGR to YCrCb: %v", err)
	}

	planes := gocv.Split(ycc)
	defer func() {
		for _, m := range planes {
			m.Close()
		}
	}()
	if len(planes) != 3 {
		return gocv.Mat{}, scanerr.Invalidf("YCrCb split gave %d planes", len(planes))
	}

	lum, err := luminance(planes[0], p)
	if err != nil {
		return gocv.Mat{}, err
	}
	planes[0].Close()
	planes[0] = lum

	merged := gocv.NewMat()
	defer merged.Close()
	if err := gocv.Merge(planes, &merged); err != nil {
		return gocv.Mat{}, scanerr.Invalidf("merge planes: %v", err)
	}

	out := gocv.NewMat()
	if err := gocv.CvtColor(merged, &out, gocv.ColorYCrCbToBGR); err != nil {
		out.Close()
		return gocv.Mat{}, scanerr.Invalidf("YCrCb to BGR: %v", err)
	}
	return out, nil
}

// luminance applies CLAHE followed by a bilateral filter to a single
// channel image and returns a new Mat.
func luminance(y gocv.Mat, p config.Enhance) (gocv.Mat, error) {
	clahe := gocv.NewCLAHEWithParams(p.ClipLimit, image.Pt(p.TileGrid, p.TileGrid))
	defer clahe.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	if err := clahe.Apply(y, &equalized); err != nil {
		return gocv.Mat{}, scanerr.Invalidf("clahe: %v", err)
	}

	out := gocv.NewMat()
	if err := gocv.BilateralFilter(equalized, &out, p.BilateralDiam, p.SigmaColor, p.SigmaSpace); err != nil {
		out.Close()
		return gocv.Mat{}, scanerr.Invalidf("bilateral filter: %v", err)
	}
	return out, nil
}
