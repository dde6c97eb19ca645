package commands

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// defaultSvgSize matches the square output of the image generator used at the booth
const defaultSvgSize = 1024

// defaultMaxDimension bounds either side of a submission before it is decoded
const defaultMaxDimension = 8192

// ErrImageTooLarge is returned for images whose width or height exceeds the configured bound
var ErrImageTooLarge = errors.New("image dimensions exceed limit")

// hasCorrectPngSignature checks whether the provided data begins with a valid PNG signature
func hasCorrectPngSignature(data []byte) bool {
	// PNG signature: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) < 8 {
		return false
	}
	expected := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return bytes.Equal(data[:8], expected)
}

// PngConverterCommand normalizes a fetched submission to PNG so it can be archived and pasted
type PngConverterCommand struct {
	name              string
	svgFallbackWidth  int
	svgFallbackHeight int
	maxDimension      int
}

// NewPngConverterCommand creates a new PNG converter command
func NewPngConverterCommand(params map[string]any) (commandstructure.Command, error) {
	// Used only when an SVG lacks explicit size
	w := commandstructure.GetIntParam(params, "svgFallbackWidth", defaultSvgSize)
	h := commandstructure.GetIntParam(params, "svgFallbackHeight", defaultSvgSize)
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("svg fallback size must be positive, got %dx%d", w, h)
	}
	maxDim := commandstructure.GetIntParam(params, "maxDimension", defaultMaxDimension)
	if maxDim <= 0 {
		return nil, fmt.Errorf("maxDimension must be positive, got %d", maxDim)
	}
	if w > maxDim || h > maxDim {
		return nil, fmt.Errorf("svg fallback size %dx%d exceeds maxDimension %d", w, h, maxDim)
	}

	return &PngConverterCommand{
		name:              "PngConverterCommand",
		svgFallbackWidth:  w,
		svgFallbackHeight: h,
		maxDimension:      maxDim,
	}, nil
}

// NewPngConverterCommandDirect creates a PNG converter with the default SVG fallback size
func NewPngConverterCommandDirect() *PngConverterCommand {
	return &PngConverterCommand{
		name:              "PngConverterCommand",
		svgFallbackWidth:  defaultSvgSize,
		svgFallbackHeight: defaultSvgSize,
		maxDimension:      defaultMaxDimension,
	}
}

// Name returns the command name
func (c *PngConverterCommand) Name() string {
	return c.name
}

func (c *PngConverterCommand) Execute(imageData []byte) ([]byte, error) {
	slog.Debug("PngConverterCommand: start", "input_size_bytes", len(imageData))

	if isSVGData(imageData) {
		if w, h, ok := parseSvgExplicitSize(imageData); ok {
			if err := c.checkDimensions(w, h); err != nil {
				return nil, err
			}
		}
		img, err := renderSVG(imageData, c.svgFallbackWidth, c.svgFallbackHeight)
		if err != nil {
			slog.Error("PngConverterCommand: failed to render SVG", "error", err)
			return nil, err
		}
		return encodePNG(img)
	}

	// header only, so oversized images are rejected before any pixel buffer is allocated
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to read image header", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := c.checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	if hasCorrectPngSignature(imageData) {
		slog.Debug("PngConverterCommand: PNG detected; returning original bytes")
		return imageData, nil
	}

	img, currentFormat, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		slog.Error("PngConverterCommand: failed to decode image", "error", err)
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	slog.Debug("PngConverterCommand: decoded raster image",
		"current_format", currentFormat,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy())

	out, err := encodePNG(img)
	if err != nil {
		slog.Error("PngConverterCommand: failed to encode image to PNG", "error", err)
		return nil, fmt.Errorf("failed to encode image to PNG: %w", err)
	}
	return out, nil
}

func (c *PngConverterCommand) checkDimensions(w, h int) error {
	if w > c.maxDimension || h > c.maxDimension {
		slog.Warn("PngConverterCommand: image too large", "width", w, "height", h, "max_dimension", c.maxDimension)
		return fmt.Errorf("%w: %dx%d, max %d", ErrImageTooLarge, w, h, c.maxDimension)
	}
	return nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("PngConverterCommand", NewPngConverterCommand); err != nil {
		panic(fmt.Sprintf("failed to register PngConverterCommand: %v", err))
	}
}
