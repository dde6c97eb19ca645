package commands

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"
	xdraw "golang.org/x/image/draw"
)

// ThumbnailParams represents typed parameters for the thumbnail command
type ThumbnailParams struct {
	Width  int
	Height int
}

// NewThumbnailParamsFromMap creates ThumbnailParams from a generic map
func NewThumbnailParamsFromMap(params map[string]any) (*ThumbnailParams, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"height", "width"}); err != nil {
		return nil, err
	}

	width := commandstructure.GetIntParam(params, "width", 0)
	height := commandstructure.GetIntParam(params, "height", 0)
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}

	return &ThumbnailParams{Width: width, Height: height}, nil
}

// ThumbnailCommand shrinks an image to fit inside a bounding box, preserving aspect ratio.
// Images already inside the box are left untouched.
type ThumbnailCommand struct {
	name   string
	params *ThumbnailParams
}

// NewThumbnailCommand creates a new thumbnail command from configuration parameters
func NewThumbnailCommand(params map[string]any) (commandstructure.Command, error) {
	typedParams, err := NewThumbnailParamsFromMap(params)
	if err != nil {
		return nil, err
	}
	return &ThumbnailCommand{name: "ThumbnailCommand", params: typedParams}, nil
}

// NewThumbnailCommandWithParams creates a new thumbnail command from concrete typed parameters
func NewThumbnailCommandWithParams(width, height int) (*ThumbnailCommand, error) {
	if width <= 0 {
		return nil, fmt.Errorf("width must be positive, got %d", width)
	}
	if height <= 0 {
		return nil, fmt.Errorf("height must be positive, got %d", height)
	}

	return &ThumbnailCommand{
		name:   "ThumbnailCommand",
		params: &ThumbnailParams{Width: width, Height: height},
	}, nil
}

// Name returns the command name
func (c *ThumbnailCommand) Name() string {
	return c.name
}

// GetParams returns the typed parameters
func (c *ThumbnailCommand) GetParams() *ThumbnailParams {
	return c.params
}

// Execute downscales the image with a Catmull-Rom filter
func (c *ThumbnailCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("ThumbnailCommand: failed to decode PNG image", "error", err)
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= c.params.Width && bounds.Dy() <= c.params.Height {
		slog.Debug("ThumbnailCommand: image already fits; skipping",
			"width", bounds.Dx(),
			"height", bounds.Dy())
		return imageData, nil
	}

	w, h := computeFitDimensions(bounds.Dx(), bounds.Dy(), c.params.Width, c.params.Height)
	slog.Debug("ThumbnailCommand: scaling",
		"original_width", bounds.Dx(),
		"original_height", bounds.Dy(),
		"scaled_width", w,
		"scaled_height", h)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)

	out, err := encodePNG(dst)
	if err != nil {
		slog.Error("ThumbnailCommand: failed to encode scaled image", "error", err)
		return nil, fmt.Errorf("failed to encode scaled PNG image: %w", err)
	}
	return out, nil
}

// computeFitDimensions returns the largest size with the original aspect ratio that fits the box.
// Neither side drops below one pixel.
func computeFitDimensions(originalWidth, originalHeight, boxWidth, boxHeight int) (int, int) {
	originalAspect := float64(originalWidth) / float64(originalHeight)
	boxAspect := float64(boxWidth) / float64(boxHeight)

	var w, h int
	if originalAspect > boxAspect {
		// wider than the box: width is the limit
		w = boxWidth
		h = int(float64(boxWidth)/originalAspect + 0.5)
	} else {
		h = boxHeight
		w = int(float64(boxHeight)*originalAspect + 0.5)
	}
	return max(w, 1), max(h, 1)
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("ThumbnailCommand", NewThumbnailCommand); err != nil {
		panic(fmt.Sprintf("failed to register ThumbnailCommand: %v", err))
	}
}
