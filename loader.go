package trievo

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/anthonynsimon/bild/transform"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// LoadReference decodes an image (png, jpeg, gif, bmp, tiff or webp) and
// resizes it to a size x size opaque reference.
func LoadReference(r io.Reader, size int) (*image.RGBA, error) {
	if size <= 0 {
		return nil, &ConfigurationError{Field: "image size", Reason: fmt.Sprintf("must be positive, got %d", size)}
	}
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("unable to decode reference image: %w", err)
	}
	return Resize(src, size), nil
}

// OpenReference loads the reference image stored at path.
func OpenReference(path string, size int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open reference image: %w", err)
	}
	defer f.Close()

	return LoadReference(f, size)
}

// Resize scales the image to exactly size x size pixels using Lanczos
// resampling, ignoring the aspect ratio. Images already at the right size are only converted.
func Resize(img image.Image, size int) *image.RGBA {
	if img.Bounds().Size() == image.Pt(size, size) {
		return ToRGBA(img)
	}
	return ToRGBA(transform.Resize(img, size, size, transform.Lanczos))
}
