package commands

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"os"

	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"
)

// BrandingCommand overlays the booth branding mark at the image origin, using the mark's
// alpha channel as mask
type BrandingCommand struct {
	name string
	mark image.Image
	// svg marks are rasterized per image so they always match the image size
	svgMark []byte
}

// NewBrandingCommand creates a branding command from the "path" parameter (PNG, JPEG or SVG file)
func NewBrandingCommand(params map[string]any) (commandstructure.Command, error) {
	if err := commandstructure.ValidateRequiredParams(params, []string{"path"}); err != nil {
		return nil, err
	}
	path := commandstructure.GetStringParam(params, "path", "")
	if path == "" {
		return nil, fmt.Errorf("path must not be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read branding mark: %w", err)
	}
	return NewBrandingCommandFromBytes(data)
}

// NewBrandingCommandFromBytes creates a branding command from an encoded mark
func NewBrandingCommandFromBytes(data []byte) (*BrandingCommand, error) {
	if isSVGData(data) {
		// validate once up front
		if _, err := renderSVG(data, defaultSvgSize, defaultSvgSize); err != nil {
			return nil, err
		}
		return &BrandingCommand{name: "BrandingCommand", svgMark: data}, nil
	}

	mark, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode branding mark: %w", err)
	}
	return NewBrandingCommandWithImage(mark), nil
}

// NewBrandingCommandWithImage creates a branding command from an already decoded mark
func NewBrandingCommandWithImage(mark image.Image) *BrandingCommand {
	return &BrandingCommand{name: "BrandingCommand", mark: mark}
}

// Name returns the command name
func (c *BrandingCommand) Name() string {
	return c.name
}

// Execute draws the mark over the decoded PNG and re-encodes the result
func (c *BrandingCommand) Execute(imageData []byte) ([]byte, error) {
	img, err := decodePNG(imageData)
	if err != nil {
		slog.Error("BrandingCommand: failed to decode PNG image", "error", err)
		return nil, fmt.Errorf("failed to decode PNG image: %w", err)
	}
	dst := toRGBA(img)

	mark := c.mark
	if c.svgMark != nil {
		mark, err = renderSVGAt(c.svgMark, dst.Bounds().Dx(), dst.Bounds().Dy())
		if err != nil {
			return nil, err
		}
	}

	mb := mark.Bounds()
	draw.Draw(dst, image.Rect(0, 0, mb.Dx(), mb.Dy()), mark, mb.Min, draw.Over)

	slog.Debug("BrandingCommand: mark applied",
		"image_width", dst.Bounds().Dx(),
		"image_height", dst.Bounds().Dy(),
		"mark_width", mb.Dx(),
		"mark_height", mb.Dy())

	out, err := encodePNG(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to encode branded PNG image: %w", err)
	}
	return out, nil
}

func init() {
	if err := commandstructure.DefaultRegistry.Register("BrandingCommand", NewBrandingCommand); err != nil {
		panic(fmt.Sprintf("failed to register BrandingCommand: %v", err))
	}
}
