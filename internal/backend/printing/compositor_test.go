package printing

import (
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/boothprint/internal/backend/commands"
	"github.com/jo-hoe/boothprint/internal/backend/commandstructure"
	"github.com/jo-hoe/boothprint/internal/backend/database"
	"github.com/jo-hoe/boothprint/internal/backend/fetch"
	"github.com/ledongthuc/pdf"
)

func newTestCompositor(t *testing.T, fetcher fetch.Fetcher, pipeline *commandstructure.CommandInvoker) (*Compositor, string, string) {
	t.Helper()
	root := t.TempDir()
	imagesDir := filepath.Join(root, "processed_images")
	batchesDir := filepath.Join(root, "processed_batches")
	c, err := NewCompositor(fetcher, pipeline, imagesDir, batchesDir)
	if err != nil {
		t.Fatalf("NewCompositor error: %v", err)
	}
	c.now = func() time.Time { return time.Date(2022, 11, 1, 14, 30, 5, 0, time.UTC) }
	return c, imagesDir, batchesDir
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error: %v", dir, err)
	}
	return len(entries)
}

func TestCompositor_EmptyInput(t *testing.T) {
	f := newFakeFetcher()
	c, imagesDir, batchesDir := newTestCompositor(t, f, nil)

	sheet, err := c.Compose(context.Background(), nil)
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if sheet != nil {
		t.Fatalf("expected no sheet, got %+v", sheet)
	}
	if len(f.calls) != 0 {
		t.Errorf("expected no fetches, got %v", f.calls)
	}
	if countFiles(t, imagesDir) != 0 || countFiles(t, batchesDir) != 0 {
		t.Error("expected no files to be written")
	}
}

func TestCompositor_ComposeFullSheet(t *testing.T) {
	f := newFakeFetcher()
	urls := sampleURLs(BatchSize)
	for _, u := range urls {
		f.add(u, solidPNG(t, 64, 64, color.RGBA{255, 0, 0, 255}))
	}
	c, imagesDir, batchesDir := newTestCompositor(t, f, nil)

	sheet, err := c.Compose(context.Background(), urls)
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if len(sheet.Slots) != BatchSize {
		t.Fatalf("expected %d slots, got %d", BatchSize, len(sheet.Slots))
	}

	seen := map[string]bool{}
	for i, slot := range sheet.Slots {
		if slot.ImageURL != urls[i] {
			t.Errorf("slot %d url %s, want %s", i, slot.ImageURL, urls[i])
		}
		if filepath.Dir(slot.FileName) != imagesDir || filepath.Ext(slot.FileName) != ".png" {
			t.Errorf("slot %d archived as %s", i, slot.FileName)
		}
		if seen[slot.FileName] {
			t.Errorf("duplicate archive name %s", slot.FileName)
		}
		seen[slot.FileName] = true
		if _, err := os.Stat(slot.FileName); err != nil {
			t.Errorf("archived file missing: %v", err)
		}
	}
	if countFiles(t, imagesDir) != BatchSize {
		t.Errorf("expected %d archived files", BatchSize)
	}

	expectedDoc := filepath.Join(batchesDir, "20221101143005_1667313005.pdf")
	if sheet.DocumentPath != expectedDoc {
		t.Errorf("DocumentPath = %s, want %s", sheet.DocumentPath, expectedDoc)
	}

	file, reader, err := pdf.Open(sheet.DocumentPath)
	if err != nil {
		t.Fatalf("pdf.Open error: %v", err)
	}
	defer func() {
		_ = file.Close()
	}()
	if n := reader.NumPage(); n != 1 {
		t.Errorf("expected a one page document, got %d pages", n)
	}
}

func TestCompositor_DocumentNameCollision(t *testing.T) {
	f := newFakeFetcher()
	f.add("a", solidPNG(t, 8, 8, color.Black))
	c, _, _ := newTestCompositor(t, f, nil)

	first, err := c.Compose(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("first Compose error: %v", err)
	}
	second, err := c.Compose(context.Background(), []string{"a"})
	if err != nil {
		t.Fatalf("second Compose error: %v", err)
	}
	if first.DocumentPath == second.DocumentPath {
		t.Fatal("sheets composed in the same second must not overwrite each other")
	}
	if !strings.HasSuffix(second.DocumentPath, "_1.pdf") {
		t.Errorf("unexpected second document name %s", second.DocumentPath)
	}
}

func TestCompositor_PadsShortBatch(t *testing.T) {
	f := newFakeFetcher()
	f.add("a", solidPNG(t, 8, 8, color.Black))
	f.add("b", solidPNG(t, 8, 8, color.White))
	c, _, _ := newTestCompositor(t, f, nil)

	sheet, err := c.Compose(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	want := []string{"a", "b", "a", "a", "a", "a"}
	for i, slot := range sheet.Slots {
		if slot.ImageURL != want[i] {
			t.Errorf("slot %d url %s, want %s", i, slot.ImageURL, want[i])
		}
	}
	if f.calls["a"] != 5 || f.calls["b"] != 1 {
		t.Errorf("unexpected fetch counts %v", f.calls)
	}
}

func TestCompositor_TruncatesLongBatch(t *testing.T) {
	f := newFakeFetcher()
	urls := sampleURLs(BatchSize + 2)
	for _, u := range urls {
		f.add(u, solidPNG(t, 8, 8, color.Black))
	}
	c, _, _ := newTestCompositor(t, f, nil)

	sheet, err := c.Compose(context.Background(), urls)
	if err != nil {
		t.Fatalf("Compose error: %v", err)
	}
	if len(sheet.Slots) != BatchSize {
		t.Fatalf("expected %d slots, got %d", BatchSize, len(sheet.Slots))
	}
	for i, slot := range sheet.Slots {
		if slot.ImageURL != urls[i] {
			t.Errorf("slot %d url %s, want %s", i, slot.ImageURL, urls[i])
		}
	}
	for _, u := range urls[BatchSize:] {
		if f.calls[u] != 0 {
			t.Errorf("url %s beyond the sheet was fetched %d times", u, f.calls[u])
		}
	}
}

func TestCompositor_FetchFailureAbortsSheet(t *testing.T) {
	f := newFakeFetcher()
	urls := sampleURLs(BatchSize)
	for _, u := range urls[:4] {
		f.add(u, solidPNG(t, 8, 8, color.Black))
	}
	c, imagesDir, batchesDir := newTestCompositor(t, f, nil)

	sheet, err := c.Compose(context.Background(), urls)
	if err == nil {
		t.Fatal("expected error when an image cannot be fetched")
	}
	if sheet != nil {
		t.Fatal("expected no partial sheet")
	}
	if !strings.Contains(err.Error(), "slot 4") {
		t.Errorf("expected error to name the failing slot, got %v", err)
	}
	if countFiles(t, imagesDir) != 0 {
		t.Error("archived images of an aborted sheet must be removed")
	}
	if countFiles(t, batchesDir) != 0 {
		t.Error("no document may be written for an aborted sheet")
	}
}

func TestCompositor_PipelineAndPlacement(t *testing.T) {
	f := newFakeFetcher()
	urls := sampleURLs(BatchSize)
	for _, u := range urls {
		f.add(u, solidPNG(t, 2000, 2000, color.RGBA{255, 0, 0, 255}))
	}
	thumb, err := commands.NewThumbnailCommandWithParams(942, 942)
	if err != nil {
		t.Fatalf("NewThumbnailCommandWithParams error: %v", err)
	}
	c, _, _ := newTestCompositor(t, f, commandstructure.NewCommandInvoker([]commandstructure.Command{thumb}))

	canvas, sheet, err := c.composeCanvas(context.Background(), urls)
	if err != nil {
		t.Fatalf("composeCanvas error: %v", err)
	}
	if len(sheet.Slots) != BatchSize {
		t.Fatalf("expected %d slots, got %d", BatchSize, len(sheet.Slots))
	}
	if b := canvas.Bounds(); b.Dx() != SheetWidth || b.Dy() != SheetHeight {
		t.Fatalf("unexpected canvas size %v", b)
	}

	white := color.RGBA{255, 255, 255, 255}
	for i, s := range Slots {
		if got := canvas.RGBAAt(s.X+10, s.Y+10); got.R < 250 || got.G > 5 || got.B > 5 {
			t.Errorf("slot %d: expected image pixel, got %v", i, got)
		}
		// the thumbnail is 942 wide, so just past it the sheet stays blank
		if got := canvas.RGBAAt(s.X+950, s.Y+10); got != white {
			t.Errorf("slot %d: expected blank sheet right of the thumbnail, got %v", i, got)
		}
	}
	if got := canvas.RGBAAt(0, 0); got != white {
		t.Errorf("expected white margin, got %v", got)
	}
}

func TestCompositor_WithHTTPFetcher(t *testing.T) {
	img := solidPNG(t, 16, 16, color.RGBA{0, 0, 255, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	c, _, _ := newTestCompositor(t, fetch.NewHTTPFetcher(5*time.Second, 1<<20), nil)
	claim := &database.BatchClaim{ID: "batch-1", Submissions: submissionsWithURLs(srv.URL + "/one.png")}
	sheet, err := c.ComposeBatch(context.Background(), claim)
	if err != nil {
		t.Fatalf("ComposeBatch error: %v", err)
	}
	if len(sheet.Slots) != BatchSize {
		t.Errorf("expected %d slots, got %d", BatchSize, len(sheet.Slots))
	}
	// padding slots are not backed by a submission
	images := sheet.PrintedImages()
	if len(images) != 1 || images[0].SubmissionID != "id-0" || images[0].ImageURL != srv.URL+"/one.png" || images[0].FileName != sheet.Slots[0].FileName {
		t.Errorf("unexpected printed images %+v", images)
	}
}

func TestCompositor_ComposeBatchRepeatedURL(t *testing.T) {
	f := newFakeFetcher()
	urls := sampleURLs(BatchSize - 1)
	for _, u := range urls {
		f.add(u, solidPNG(t, 8, 8, color.Black))
	}
	c, _, _ := newTestCompositor(t, f, nil)

	claim := &database.BatchClaim{ID: "batch-1", Submissions: submissionsWithURLs(append(urls, urls[0])...)}
	sheet, err := c.ComposeBatch(context.Background(), claim)
	if err != nil {
		t.Fatalf("ComposeBatch error: %v", err)
	}

	images := sheet.PrintedImages()
	if len(images) != BatchSize {
		t.Fatalf("expected %d printed images, got %d", BatchSize, len(images))
	}
	first, last := images[0], images[BatchSize-1]
	if first.ImageURL != last.ImageURL {
		t.Fatalf("expected the first and last slot to share a url, got %s and %s", first.ImageURL, last.ImageURL)
	}
	if first.SubmissionID == last.SubmissionID || first.FileName == last.FileName {
		t.Errorf("repeated url must keep separate submissions and archives, got %+v and %+v", first, last)
	}
	for i, img := range images {
		if img.SubmissionID != claim.Submissions[i].ID {
			t.Errorf("slot %d bound to %s, want %s", i, img.SubmissionID, claim.Submissions[i].ID)
		}
	}
}

func TestCompositor_ComposeBatchNilClaim(t *testing.T) {
	f := newFakeFetcher()
	c, _, _ := newTestCompositor(t, f, nil)

	sheet, err := c.ComposeBatch(context.Background(), nil)
	if err != nil || sheet != nil {
		t.Fatalf("ComposeBatch(nil) = %v, %v; expected nil, nil", sheet, err)
	}
}
