package imagefx

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	targetWidth  = 1280
	targetHeight = 720

	// ratioTolerance: images already within this distance of 16:9 are left
	// alone, re-encoding them would only cost quality.
	ratioTolerance = 0.05
)

// needsCorrection reports whether an image's ratio strays from 16:9 by
// more than the tolerance.
func needsCorrection(width, height int) bool {
	if height == 0 {
		return false
	}
	ratio := float64(width) / float64(height)
	return math.Abs(ratio-16.0/9.0) > ratioTolerance
}

// fixTo16x9 re-encodes a base64 image to exactly 1280x720 using a cover
// fit: scale until both dimensions are filled, center-crop the overflow.
// No letterboxing. Images already approximating 16:9 pass through intact.
func fixTo16x9(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode base64 image: %w", err)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if !needsCorrection(bounds.Dx(), bounds.Dy()) {
		return encoded, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, coverRect(bounds), xdraw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, dst)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 92})
	}
	if err != nil {
		return "", fmt.Errorf("encode corrected image: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// coverRect selects the centered source region whose ratio is exactly
// 16:9, so scaling it fills the target with no distortion.
func coverRect(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	target := 16.0 / 9.0

	cropW, cropH := w, h
	if w/h > target {
		// too wide: trim the sides
		cropW = h * target
	} else {
		// too tall: trim top and bottom
		cropH = w / target
	}

	x0 := bounds.Min.X + int((w-cropW)/2)
	y0 := bounds.Min.Y + int((h-cropH)/2)
	return image.Rect(x0, y0, x0+int(cropW), y0+int(cropH))
}

// toDataURI wraps a base64 payload for direct use in an <img> tag. The
// format is sniffed from the bytes; the provider does not say.
func toDataURI(encoded string) string {
	mime := "image/png"
	if raw, err := base64.StdEncoding.DecodeString(encoded); err == nil {
		if _, format, err := image.DecodeConfig(bytes.NewReader(raw)); err == nil && format != "" {
			mime = "image/" + format
		}
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, encoded)
}
