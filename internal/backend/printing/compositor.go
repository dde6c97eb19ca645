package printing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jo-hoe/boothprint/internal/backend/commands"
	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"
	"github.com/jo-hoe/boothprint/internal/backend/database"
	"github.com/jo-hoe/boothprint/internal/backend/fetch"
	"github.com/jung-kurt/gofpdf"
)

// Sheet is a composed, printable document
type Sheet struct {
	DocumentPath string
	Slots        []SheetSlot
}

// SheetSlot links a source URL to its archived copy. SubmissionID is empty for slots
// not backed by a claimed submission, such as padding.
type SheetSlot struct {
	SubmissionID string
	ImageURL     string
	FileName     string
}

// PrintedImages converts the submission backed slots into the rows persisted after printing
func (s *Sheet) PrintedImages() []database.PrintedImage {
	images := make([]database.PrintedImage, 0, len(s.Slots))
	for _, slot := range s.Slots {
		if slot.SubmissionID == "" {
			continue
		}
		images = append(images, database.PrintedImage{
			SubmissionID: slot.SubmissionID,
			ImageURL:     slot.ImageURL,
			FileName:     slot.FileName,
		})
	}
	return images
}

type Compositor struct {
	fetcher    fetch.Fetcher
	normalizer commandstructure.Command
	pipeline   *commandstructure.CommandInvoker
	imagesDir  string
	batchesDir string
	now        func() time.Time
}

// NewCompositor creates the output directories if needed. pipeline runs on every archived
// image before it is pasted; nil means paste as-is.
func NewCompositor(fetcher fetch.Fetcher, pipeline *commandstructure.CommandInvoker, imagesDir, batchesDir string) (*Compositor, error) {
	for _, dir := range []string{imagesDir, batchesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if pipeline == nil {
		pipeline = commandstructure.NewCommandInvoker(nil)
	}
	return &Compositor{
		fetcher:    fetcher,
		normalizer: commands.NewPngConverterCommandDirect(),
		pipeline:   pipeline,
		imagesDir:  imagesDir,
		batchesDir: batchesDir,
		now:        time.Now,
	}, nil
}

// Compose lays out up to BatchSize images on a letter sheet and writes it as a one-page PDF.
// An empty input yields no sheet and no error. Any failing image aborts the whole sheet.
func (c *Compositor) Compose(ctx context.Context, imageURLs []string) (*Sheet, error) {
	if len(imageURLs) == 0 {
		slog.Info("no images passed to compose, skipping")
		return nil, nil
	}
	if len(imageURLs) > BatchSize {
		slog.Warn("too many images for one sheet, using only the first ones",
			"count", len(imageURLs),
			"batch_size", BatchSize)
	}
	canvas, sheet, err := c.composeCanvas(ctx, NormalizeBatch(imageURLs, BatchSize))
	if err != nil {
		return nil, err
	}

	path, err := c.writeDocument(canvas)
	if err != nil {
		c.removeArchived(sheet)
		return nil, err
	}
	sheet.DocumentPath = path

	slog.Info("sheet composed", "document", path, "images", len(sheet.Slots))
	return sheet, nil
}

// ComposeBatch composes the sheet for a claimed batch and ties each slot to the submission
// it was claimed for, so repeated URLs keep separate archives.
func (c *Compositor) ComposeBatch(ctx context.Context, claim *database.BatchClaim) (*Sheet, error) {
	if claim == nil {
		return nil, nil
	}
	sheet, err := c.Compose(ctx, claim.ImageURLs())
	if err != nil || sheet == nil {
		return sheet, err
	}
	for i := range sheet.Slots {
		if i >= len(claim.Submissions) {
			break
		}
		sheet.Slots[i].SubmissionID = claim.Submissions[i].ID
	}
	return sheet, nil
}

// composeCanvas pastes one prepared image per slot onto a white canvas
func (c *Compositor) composeCanvas(ctx context.Context, urls []string) (*image.RGBA, *Sheet, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, SheetWidth, SheetHeight))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	sheet := &Sheet{Slots: make([]SheetSlot, 0, len(urls))}
	for idx, url := range urls {
		fileName, img, err := c.prepare(ctx, url)
		if fileName != "" {
			sheet.Slots = append(sheet.Slots, SheetSlot{ImageURL: url, FileName: fileName})
		}
		if err != nil {
			c.removeArchived(sheet)
			return nil, nil, fmt.Errorf("slot %d (%s): %w", idx, url, err)
		}

		origin := Slots[idx]
		b := img.Bounds()
		draw.Draw(canvas, image.Rectangle{Min: origin, Max: origin.Add(b.Size())}, img, b.Min, draw.Over)
	}
	return canvas, sheet, nil
}

// prepare fetches one image, archives it as PNG and runs the per-image pipeline.
// The archived file name is returned even when a later step fails so it can be cleaned up.
func (c *Compositor) prepare(ctx context.Context, url string) (string, image.Image, error) {
	raw, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", nil, err
	}
	normalized, err := c.normalizer.Execute(raw)
	if err != nil {
		return "", nil, err
	}

	fileName := filepath.Join(c.imagesDir, uuid.NewString()+".png")
	if err := os.WriteFile(fileName, normalized, 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to archive image: %w", err)
	}

	processed, err := c.pipeline.Execute(normalized)
	if err != nil {
		return fileName, nil, err
	}
	img, err := png.Decode(bytes.NewReader(processed))
	if err != nil {
		return fileName, nil, fmt.Errorf("failed to decode processed image: %w", err)
	}
	return fileName, img, nil
}

func (c *Compositor) removeArchived(sheet *Sheet) {
	for _, slot := range sheet.Slots {
		if err := os.Remove(slot.FileName); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to remove archived image", "file", slot.FileName, "error", err)
		}
	}
}

// writeDocument embeds the canvas into a letter-size PDF page with no margins.
func (c *Compositor) writeDocument(canvas image.Image) (string, error) {
	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, canvas, &jpeg.Options{Quality: 95}); err != nil {
		return "", fmt.Errorf("failed to encode sheet: %w", err)
	}

	widthIn := float64(SheetWidth) / SheetDPI
	heightIn := float64(SheetHeight) / SheetDPI
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: widthIn, Ht: heightIn},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opt := gofpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader("sheet", opt, &jpg)
	pdf.ImageOptions("sheet", 0, 0, widthIn, heightIn, false, opt, 0, "")

	path := c.documentPath()
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write sheet document: %w", err)
	}
	return path, nil
}

// documentPath returns <batchesDir>/<YYYYMMDDHHMMSS>_<unix>.pdf, suffixed when that name is taken.
func (c *Compositor) documentPath() string {
	now := c.now()
	base := fmt.Sprintf("%s_%d", now.Format("20060102150405"), now.Unix())
	path := filepath.Join(c.batchesDir, base+".pdf")
	for n := 1; ; n++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
		path = filepath.Join(c.batchesDir, fmt.Sprintf("%s_%d.pdf", base, n))
	}
}
