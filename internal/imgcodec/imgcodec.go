// Package imgcodec converts between encoded image payloads and gocv Mats.
package imgcodec

import (
	"bytes"
	"fmt"
	"strings"

	"gocv.io/x/gocv"
	"golang.org/x/image/webp"

	"docscan/internal/scanerr"
)

// Format is an output encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
)

// DefaultQuality is the JPEG quality used by the scan service.
const DefaultQuality = 95

// ParseFormat accepts jpeg, jpg or png in any case.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	if f == PNG {
		return ".png"
	}
	return ".jpg"
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == PNG {
		return "image/png"
	}
	return "image/jpeg"
}

// Decode reads any raster format OpenCV was built with into a 3 channel
// BGR Mat. WebP payloads are decoded in Go when OpenCV lacks support.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: empty payload", scanerr.ErrDecode)
	}

	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err == nil {
		if !img.Empty() {
			return img, nil
		}
		img.Close()
	}

	if isWebP(data) {
		return decodeWebP(data)
	}
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: %v", scanerr.ErrDecode, err)
	}
	return gocv.Mat{}, fmt.Errorf("%w: unrecognized or corrupt image data (%d bytes)", scanerr.ErrDecode, len(data))
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

func decodeWebP(data []byte) (gocv.Mat, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: webp: %v", scanerr.ErrDecode, err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%w: webp to mat: %v", scanerr.ErrDecode, err)
	}
	return mat, nil
}

// Encode serializes img. Quality only applies to JPEG and is clamped to
// [1,100]; zero selects DefaultQuality.
func Encode(img gocv.Mat, f Format, quality int) ([]byte, error) {
	if img.Empty() {
		return nil, fmt.Errorf("%w: empty image", scanerr.ErrEncode)
	}
	if ch := img.Channels(); ch != 1 && ch != 3 {
		return nil, fmt.Errorf("%w: %d channels not supported", scanerr.ErrEncode, ch)
	}
	if !supportsType(f, img.Type()) {
		return nil, fmt.Errorf("%w: mat type %v cannot be written as %s", scanerr.ErrEncode, img.Type(), f)
	}

	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	switch f {
	case JPEG:
		if quality == 0 {
			quality = DefaultQuality
		}
		quality = max(1, min(100, quality))
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	case PNG:
		buf, err = gocv.IMEncode(gocv.PNGFileExt, img)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", scanerr.ErrEncode, f)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", scanerr.ErrEncode, err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// supportsType reports whether f stores samples of type t without the
// encoder silently converting them to 8 bits. PNG also keeps 16-bit samples.
func supportsType(f Format, t gocv.MatType) bool {
	switch t {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
		return true
	case gocv.MatTypeCV16UC1, gocv.MatTypeCV16UC3:
		return f == PNG
	}
	return false
}
