package processor

import (
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// scalePerLevel is how many times the raster is shrunk per blur level
// before it is scaled back up.
const scalePerLevel = 5

// Processor decodes, blurs and encodes rasters.
// It holds no state and is safe for concurrent use.
type Processor struct{}

// New creates a new Processor.
func New() *Processor {
	return &Processor{}
}

// Decode reads an image from r, applying EXIF orientation if present.
func (p *Processor) Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// Blur blurs img by shrinking it by level*5 and scaling it back to its
// original size. Levels of zero or below return an unblurred copy.
func (p *Processor) Blur(img image.Image, level int) image.Image {
	if level <= 0 {
		return imaging.Clone(img)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	factor := level * scalePerLevel
	small := imaging.Resize(img, max(width/factor, 1), max(height/factor, 1), imaging.Linear)

	return imaging.Resize(small, width, height, imaging.Linear)
}

// Encode writes img to w as PNG.
func (p *Processor) Encode(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	return nil
}
