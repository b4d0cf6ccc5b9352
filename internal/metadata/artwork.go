package metadata

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/nfnt/resize"
)

// downscaleCover shrinks a cover image so its longest dimension does not
// exceed maxPixels. Images already within bounds are returned unchanged.
func downscaleCover(imageData []byte, maxPixels int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode cover image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxPixels && height <= maxPixels {
		return imageData, mimeForFormat(format), nil
	}

	var resized image.Image
	if width > height {
		resized = resize.Resize(uint(maxPixels), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(maxPixels), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, resized)
	default:
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 95})
		format = "jpeg"
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode cover image: %w", err)
	}

	return buf.Bytes(), mimeForFormat(format), nil
}

// mimeForFormat maps an image.Decode format name to a MIME type
func mimeForFormat(format string) string {
	if format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}
